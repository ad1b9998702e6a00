package stream

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aman-zulfiqar/solana-price-relay/internal/rpc"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

// AccountFetcher performs one-shot account reads
type AccountFetcher interface {
	FetchAccount(ctx context.Context, address solana.PublicKey) (*rpc.AccountInfo, error)
}

// RPCPoller implements AccountSubscriber by polling getAccountInfo. It is
// the fallback when no websocket endpoint is configured.
type RPCPoller struct {
	client       AccountFetcher
	pollInterval time.Duration
	logger       *logrus.Logger

	// closing ends every subscription
	closing context.Context
	close   context.CancelFunc
}

// RPCPollerConfig holds configuration for the RPC poller
type RPCPollerConfig struct {
	RPCClient    AccountFetcher
	PollInterval time.Duration
	Logger       *logrus.Logger
}

// NewRPCPoller creates a new RPC poller
func NewRPCPoller(cfg RPCPollerConfig) *RPCPoller {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}

	closing, cancel := context.WithCancel(context.Background())
	return &RPCPoller{
		client:       cfg.RPCClient,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger,
		closing:      closing,
		close:        cancel,
	}
}

// Close stops polling for every subscription
func (r *RPCPoller) Close() {
	r.close()
}

// Subscribe polls account and calls handler whenever its lamports or data
// change. The first successful read is always delivered.
func (r *RPCPoller) Subscribe(ctx context.Context, account solana.PublicKey, handler UpdateHandler) (Subscription, error) {
	if r.closing.Err() != nil {
		return nil, ErrSubscriberClosed
	}
	pollCtx, cancel := context.WithCancel(ctx)
	context.AfterFunc(r.closing, cancel)
	sub := &pollSubscription{cancel: cancel}

	r.logger.WithFields(logrus.Fields{
		"account":  account.String(),
		"interval": r.pollInterval,
	}).Debug("starting account polling")

	go r.run(pollCtx, account, handler)
	return sub, nil
}

func (r *RPCPoller) run(ctx context.Context, account solana.PublicKey, handler UpdateHandler) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	var last *AccountUpdate
	for {
		update, err := r.poll(ctx, account)
		if err != nil && ctx.Err() == nil {
			r.logger.WithError(err).WithField("account", account.String()).Warn("poll error")
		}
		if update != nil && changed(last, update) && ctx.Err() == nil {
			handler(*update)
			last = update
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// poll reads the account once. A missing account is reported as closed.
func (r *RPCPoller) poll(ctx context.Context, account solana.PublicKey) (*AccountUpdate, error) {
	info, err := r.client.FetchAccount(ctx, account)
	if errors.Is(err, rpc.ErrAccountNotFound) {
		return &AccountUpdate{Address: account, Closed: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return &AccountUpdate{
		Address:  account,
		Owner:    info.Owner,
		Lamports: info.Lamports,
		Data:     info.Data,
		Slot:     info.Slot,
		Closed:   isClosed(info.Lamports, info.Data),
	}, nil
}

func changed(prev, next *AccountUpdate) bool {
	if prev == nil {
		return true
	}
	return prev.Lamports != next.Lamports ||
		prev.Closed != next.Closed ||
		!bytes.Equal(prev.Data, next.Data)
}

type pollSubscription struct {
	cancel context.CancelFunc
	once   sync.Once
}

func (p *pollSubscription) Unsubscribe() {
	p.once.Do(p.cancel)
}
