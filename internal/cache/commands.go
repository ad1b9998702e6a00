package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aman-zulfiqar/solana-price-relay/internal/constants"
	"github.com/aman-zulfiqar/solana-price-relay/internal/models"
	"github.com/sirupsen/logrus"
)

// CommandChannels are the inbound control channels the relay listens on.
var CommandChannels = []string{
	constants.ChannelPoolSubscribe,
	constants.ChannelPoolUnsubscribe,
	constants.ChannelBondingCurveSubscribe,
	constants.ChannelBondingCurveUnsubscribe,
}

// CommandTarget applies subscribe and unsubscribe commands
type CommandTarget interface {
	Subscribe(ctx context.Context, poolID string) error
	SubscribeBondingCurve(ctx context.Context, mint, tradeID string) error
	Unsubscribe(ctx context.Context, id string)
}

type CommandKind uint8

const (
	SubscribePool CommandKind = iota + 1
	SubscribeBondingCurve
	Unsubscribe
)

// Command is a decoded control message. ID is the pool address for pools
// and the trade id for bonding curves.
type Command struct {
	Kind CommandKind
	ID   string
	Mint string
}

// DecodeCommand parses a message received on one of CommandChannels.
func DecodeCommand(channel string, payload []byte) (Command, error) {
	switch channel {
	case constants.ChannelPoolSubscribe, constants.ChannelPoolUnsubscribe:
		var msg models.PoolCommand
		if err := json.Unmarshal(payload, &msg); err != nil {
			return Command{}, fmt.Errorf("decode pool command: %w", err)
		}
		if msg.PoolID == "" {
			return Command{}, fmt.Errorf("pool command without poolId")
		}
		if channel == constants.ChannelPoolUnsubscribe {
			return Command{Kind: Unsubscribe, ID: msg.PoolID}, nil
		}
		return Command{Kind: SubscribePool, ID: msg.PoolID}, nil

	case constants.ChannelBondingCurveSubscribe, constants.ChannelBondingCurveUnsubscribe:
		var msg models.BondingCurveCommand
		if err := json.Unmarshal(payload, &msg); err != nil {
			return Command{}, fmt.Errorf("decode bonding curve command: %w", err)
		}
		if msg.TradeID == "" {
			return Command{}, fmt.Errorf("bonding curve command without trade_id")
		}
		if channel == constants.ChannelBondingCurveUnsubscribe {
			return Command{Kind: Unsubscribe, ID: msg.TradeID}, nil
		}
		return Command{Kind: SubscribeBondingCurve, ID: msg.TradeID, Mint: msg.TokenMint}, nil
	}
	return Command{}, fmt.Errorf("unknown command channel %q", channel)
}

// Apply runs cmd against target.
func (cmd Command) Apply(ctx context.Context, target CommandTarget) error {
	switch cmd.Kind {
	case SubscribePool:
		return target.Subscribe(ctx, cmd.ID)
	case SubscribeBondingCurve:
		return target.SubscribeBondingCurve(ctx, cmd.Mint, cmd.ID)
	case Unsubscribe:
		target.Unsubscribe(ctx, cmd.ID)
		return nil
	}
	return fmt.Errorf("unknown command kind %d", cmd.Kind)
}

// CommandConsumer feeds bus commands into a CommandTarget. Commands for the
// same identifier run in arrival order; different identifiers run
// concurrently so a slow resolve never blocks the bus.
type CommandConsumer struct {
	bus            *PubSubManager
	target         CommandTarget
	commandTimeout time.Duration
	logger         *logrus.Logger
	queue          *keyedQueue
}

// CommandConsumerConfig holds configuration for the command consumer
type CommandConsumerConfig struct {
	Bus            *PubSubManager
	Target         CommandTarget
	CommandTimeout time.Duration
	Logger         *logrus.Logger
}

// NewCommandConsumer creates a consumer for the command channels
func NewCommandConsumer(cfg CommandConsumerConfig) *CommandConsumer {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 30 * time.Second
	}
	return &CommandConsumer{
		bus:            cfg.Bus,
		target:         cfg.Target,
		commandTimeout: cfg.CommandTimeout,
		logger:         cfg.Logger,
		queue:          newKeyedQueue(),
	}
}

// Run consumes commands until ctx is cancelled
func (c *CommandConsumer) Run(ctx context.Context) error {
	return c.bus.Subscribe(ctx, func(channel string, payload []byte) {
		c.Handle(ctx, channel, payload)
	}, CommandChannels...)
}

// Handle decodes one message and schedules it behind earlier commands for
// the same identifier.
func (c *CommandConsumer) Handle(ctx context.Context, channel string, payload []byte) {
	cmd, err := DecodeCommand(channel, payload)
	if err != nil {
		c.logger.WithError(err).WithField("channel", channel).Warn("dropping malformed command")
		return
	}

	c.queue.Do(cmd.ID, func() {
		cmdCtx, cancel := context.WithTimeout(ctx, c.commandTimeout)
		defer cancel()
		if err := cmd.Apply(cmdCtx, c.target); err != nil {
			c.logger.WithError(err).WithFields(logrus.Fields{
				"channel": channel,
				"id":      cmd.ID,
			}).Warn("command failed")
		}
	})
}

// keyedQueue runs functions sequentially per key and concurrently across keys.
type keyedQueue struct {
	mu      sync.Mutex
	pending map[string][]func()
}

func newKeyedQueue() *keyedQueue {
	return &keyedQueue{pending: make(map[string][]func())}
}

func (q *keyedQueue) Do(key string, fn func()) {
	q.mu.Lock()
	queued, draining := q.pending[key]
	q.pending[key] = append(queued, fn)
	q.mu.Unlock()

	if !draining {
		go q.drain(key)
	}
}

func (q *keyedQueue) drain(key string) {
	for {
		q.mu.Lock()
		queued := q.pending[key]
		if len(queued) == 0 {
			delete(q.pending, key)
			q.mu.Unlock()
			return
		}
		fn := queued[0]
		q.pending[key] = queued[1:]
		q.mu.Unlock()

		fn()
	}
}
