package storage

import (
	"context"
	"io"

	"github.com/aman-zulfiqar/solana-price-relay/internal/models"
)

// PoolStore persists auxiliary pool metadata. It never stores prices.
type PoolStore interface {
	// UpsertPool records the latest resolved snapshot of a pool
	UpsertPool(ctx context.Context, snap *models.PoolSnapshot) error

	// ListPools returns up to limit known pools, most recently resolved first
	ListPools(ctx context.Context, limit int) ([]*models.PoolRecord, error)

	// Ping checks if the store is reachable
	Ping(ctx context.Context) error

	// Close closes the store connection
	io.Closer
}

// PriceCache holds the most recent quote per market
type PriceCache interface {
	// LastPrice returns the last quote published for a pool
	LastPrice(ctx context.Context, poolID string) (*models.PriceQuote, error)

	// LastBondingCurvePrice returns the last quote published for a trade id
	LastBondingCurvePrice(ctx context.Context, tradeID string) (*models.BondingCurveQuote, error)
}

// EventBus publishes commands and relays events between the front door
// and the relay
type EventBus interface {
	PriceCache

	// PublishJSON marshals v and publishes it on channel
	PublishJSON(ctx context.Context, channel string, v any) error

	// Subscribe delivers every message on channels to handler until ctx ends
	Subscribe(ctx context.Context, handler MessageHandler, channels ...string) error

	// Ping checks if the bus is reachable
	Ping(ctx context.Context) error
}

// MessageHandler processes one raw pub/sub message
type MessageHandler func(channel string, payload []byte)
