package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aman-zulfiqar/solana-price-relay/internal/constants"
	"github.com/aman-zulfiqar/solana-price-relay/internal/models"
	"github.com/aman-zulfiqar/solana-price-relay/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var ErrNotFound = errors.New("not found")

const (
	poolPricePrefix  = "price:pool:"
	curvePricePrefix = "price:curve:"

	// DefaultPriceTTL bounds how long a last price is served after the
	// market stops updating.
	DefaultPriceTTL = 10 * time.Minute
)

// PubSubManager is the Redis-backed event bus. Every published quote is
// also stored as the market's last price.
type PubSubManager struct {
	client   *redis.Client
	priceTTL time.Duration
	logger   *logrus.Logger
}

// PubSubConfig holds configuration for the pub/sub manager
type PubSubConfig struct {
	Client   *redis.Client
	PriceTTL time.Duration
	Logger   *logrus.Logger
}

// NewPubSubManager wraps an existing Redis client
func NewPubSubManager(cfg PubSubConfig) (*PubSubManager, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.PriceTTL <= 0 {
		cfg.PriceTTL = DefaultPriceTTL
	}
	return &PubSubManager{
		client:   cfg.Client,
		priceTTL: cfg.PriceTTL,
		logger:   cfg.Logger,
	}, nil
}

// PublishPrice publishes a pool quote and stores it as the pool's last price
func (p *PubSubManager) PublishPrice(ctx context.Context, quote *models.PriceQuote) error {
	data, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("marshal price: %w", err)
	}

	pipe := p.client.TxPipeline()
	pipe.Publish(ctx, constants.ChannelPoolPrices, data)
	pipe.Set(ctx, poolPricePrefix+quote.PoolID, data, p.priceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish price: %w", err)
	}
	return nil
}

// PublishBondingCurvePrice publishes a bonding-curve quote and stores it
// under its trade id
func (p *PubSubManager) PublishBondingCurvePrice(ctx context.Context, quote *models.BondingCurveQuote) error {
	data, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("marshal bonding curve price: %w", err)
	}

	pipe := p.client.TxPipeline()
	pipe.Publish(ctx, constants.ChannelBondingCurvePrices, data)
	pipe.Set(ctx, curvePricePrefix+quote.TradeID, data, p.priceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish bonding curve price: %w", err)
	}
	return nil
}

// PublishLiquidityWithdrawn publishes the withdrawal signal and drops the
// trade's last price
func (p *PubSubManager) PublishLiquidityWithdrawn(ctx context.Context, event *models.LiquidityWithdrawn) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal liquidity withdrawn: %w", err)
	}

	pipe := p.client.TxPipeline()
	pipe.Publish(ctx, constants.ChannelLiquidityWithdrawn, data)
	pipe.Del(ctx, curvePricePrefix+event.TradeID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish liquidity withdrawn: %w", err)
	}
	return nil
}

// PublishJSON marshals v and publishes it on channel
func (p *PubSubManager) PublishJSON(ctx context.Context, channel string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

// LastPrice returns the last quote published for poolID
func (p *PubSubManager) LastPrice(ctx context.Context, poolID string) (*models.PriceQuote, error) {
	var q models.PriceQuote
	if err := p.getJSON(ctx, poolPricePrefix+poolID, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// LastBondingCurvePrice returns the last quote published for tradeID
func (p *PubSubManager) LastBondingCurvePrice(ctx context.Context, tradeID string) (*models.BondingCurveQuote, error) {
	var q models.BondingCurveQuote
	if err := p.getJSON(ctx, curvePricePrefix+tradeID, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (p *PubSubManager) getJSON(ctx context.Context, key string, v any) error {
	val, err := p.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(val), v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return nil
}

// Subscribe delivers every message on channels to handler. It blocks until
// ctx is cancelled or the subscription fails.
func (p *PubSubManager) Subscribe(ctx context.Context, handler storage.MessageHandler, channels ...string) error {
	pubsub := p.client.Subscribe(ctx, channels...)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed before reading.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %v: %w", channels, err)
	}

	p.logger.WithField("channels", channels).Info("subscribed to channels")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			handler(msg.Channel, []byte(msg.Payload))
		}
	}
}

// Ping checks if Redis is reachable
func (p *PubSubManager) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
