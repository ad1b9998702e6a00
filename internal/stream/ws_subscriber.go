package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/sirupsen/logrus"
)

var ErrSubscriberClosed = errors.New("subscriber closed")

const maxReconnectBackoff = 30 * time.Second

// WSSubscriber streams account changes over a single Solana websocket
// connection, one receive loop per subscription. When the connection
// drops it is redialed once and every live subscription is reissued on
// the new connection.
type WSSubscriber struct {
	url        string
	commitment solanarpc.CommitmentType
	backoff    time.Duration
	logger     *logrus.Logger

	// dialMu serializes redials so a drop seen by many loops dials once.
	dialMu sync.Mutex

	mu     sync.Mutex
	client *ws.Client
	subs   map[*wsSubscription]struct{}
	closed bool
	done   chan struct{}
}

// WSSubscriberConfig holds configuration for the websocket subscriber
type WSSubscriberConfig struct {
	URL        string
	Commitment solanarpc.CommitmentType
	// ReconnectBackoff is the first redial delay; it doubles up to 30s.
	ReconnectBackoff time.Duration
	Logger           *logrus.Logger
}

// NewWSSubscriber dials the websocket endpoint
func NewWSSubscriber(ctx context.Context, cfg WSSubscriberConfig) (*WSSubscriber, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Commitment == "" {
		cfg.Commitment = solanarpc.CommitmentConfirmed
	}
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = 500 * time.Millisecond
	}

	client, err := ws.Connect(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("websocket connect: %w", err)
	}

	cfg.Logger.WithField("commitment", cfg.Commitment).Info("connected to solana websocket")

	return &WSSubscriber{
		url:        cfg.URL,
		commitment: cfg.Commitment,
		backoff:    cfg.ReconnectBackoff,
		logger:     cfg.Logger,
		client:     client,
		subs:       make(map[*wsSubscription]struct{}),
		done:       make(chan struct{}),
	}, nil
}

// Subscribe starts an accountSubscribe stream and delivers every
// notification to handler until Unsubscribe or ctx cancellation. The
// stream survives connection drops.
func (s *WSSubscriber) Subscribe(ctx context.Context, account solana.PublicKey, handler UpdateHandler) (Subscription, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSubscriberClosed
	}
	client := s.client
	s.mu.Unlock()

	raw, err := client.AccountSubscribe(account, s.commitment)
	if err != nil {
		return nil, fmt.Errorf("account subscribe %s: %w", account, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &wsSubscription{
		parent:  s,
		client:  client,
		raw:     raw,
		account: account,
		cancel:  cancel,
	}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	go sub.loop(subCtx, handler)

	s.logger.WithField("account", account.String()).Debug("account subscription opened")
	return sub, nil
}

// Close ends every open subscription and the underlying connection
func (s *WSSubscriber) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	subs := make([]*wsSubscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}

	s.dialMu.Lock()
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	client.Close()
	s.dialMu.Unlock()

	s.logger.Info("solana websocket closed")
}

// reconnect returns a live client to replace stale. Only the first caller
// holding a given stale client redials; the others get its result. It
// retries with backoff until it succeeds, ctx ends or the subscriber
// closes.
func (s *WSSubscriber) reconnect(ctx context.Context, stale *ws.Client) (*ws.Client, error) {
	s.dialMu.Lock()
	defer s.dialMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSubscriberClosed
	}
	if s.client != stale {
		client := s.client
		s.mu.Unlock()
		return client, nil
	}
	s.mu.Unlock()

	stale.Close()

	delay := s.backoff
	for attempt := 1; ; attempt++ {
		client, err := ws.Connect(ctx, s.url)
		if err == nil {
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				client.Close()
				return nil, ErrSubscriberClosed
			}
			s.client = client
			s.mu.Unlock()
			s.logger.WithField("attempt", attempt).Info("reconnected to solana websocket")
			return client, nil
		}

		s.logger.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"retry":   delay,
		}).Warn("websocket redial failed")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.done:
			return nil, ErrSubscriberClosed
		case <-time.After(delay):
		}
		delay = min(delay*2, maxReconnectBackoff)
	}
}

func (s *WSSubscriber) forget(sub *wsSubscription) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}

type wsSubscription struct {
	parent  *WSSubscriber
	account solana.PublicKey
	cancel  context.CancelFunc
	once    sync.Once

	mu     sync.Mutex
	client *ws.Client
	raw    *ws.AccountSubscription
}

func (w *wsSubscription) loop(ctx context.Context, handler UpdateHandler) {
	log := w.parent.logger.WithField("account", w.account.String())

	w.mu.Lock()
	raw := w.raw
	w.mu.Unlock()

	for {
		res, err := raw.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("account subscription dropped, resubscribing")
			if raw, err = w.resubscribe(ctx); err != nil {
				if ctx.Err() == nil {
					log.WithError(err).Error("account subscription ended")
				}
				return
			}
			continue
		}
		if res == nil || res.Value == nil {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		var data []byte
		if res.Value.Data != nil {
			data = res.Value.Data.GetBinary()
		}
		handler(AccountUpdate{
			Address:  w.account,
			Owner:    res.Value.Owner,
			Lamports: res.Value.Lamports,
			Data:     data,
			Slot:     res.Context.Slot,
			Closed:   isClosed(res.Value.Lamports, data),
		})
	}
}

// resubscribe reissues accountSubscribe on a live connection, redialing
// when the current one is gone.
func (w *wsSubscription) resubscribe(ctx context.Context) (*ws.AccountSubscription, error) {
	w.mu.Lock()
	stale := w.client
	w.mu.Unlock()

	delay := w.parent.backoff
	for {
		client, err := w.parent.reconnect(ctx, stale)
		if err != nil {
			return nil, err
		}

		raw, err := client.AccountSubscribe(w.account, w.parent.commitment)
		if err == nil {
			w.mu.Lock()
			if ctx.Err() != nil {
				w.mu.Unlock()
				raw.Unsubscribe()
				return nil, ctx.Err()
			}
			w.client, w.raw = client, raw
			w.mu.Unlock()
			return raw, nil
		}

		// the fresh connection failed too; redial it next round
		stale = client
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, maxReconnectBackoff)
	}
}

// Unsubscribe stops delivery. It is safe to call more than once and from
// inside the handler; no new delivery starts after it returns.
func (w *wsSubscription) Unsubscribe() {
	w.once.Do(func() {
		w.cancel()
		w.mu.Lock()
		raw := w.raw
		w.mu.Unlock()
		raw.Unsubscribe()
		w.parent.forget(w)
		w.parent.logger.WithField("account", w.account.String()).Debug("account subscription closed")
	})
}
