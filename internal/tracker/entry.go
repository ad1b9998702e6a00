package tracker

import (
	"sync"
	"time"

	"github.com/aman-zulfiqar/solana-price-relay/internal/models"
	"github.com/aman-zulfiqar/solana-price-relay/internal/pricing"
	"github.com/aman-zulfiqar/solana-price-relay/internal/stream"
	"github.com/shopspring/decimal"
)

// Role says which side of a tracked market a watched account feeds.
type Role uint8

const (
	RoleBaseVault Role = iota + 1
	RoleQuoteVault
	// RolePool is a concentrated-liquidity pool account priced from its sqrt price.
	RolePool
	// RoleCurve is a bonding-curve account whose lamports are the SOL side.
	RoleCurve
)

func (r Role) String() string {
	switch r {
	case RoleBaseVault:
		return "base_vault"
	case RoleQuoteVault:
		return "quote_vault"
	case RolePool:
		return "pool"
	case RoleCurve:
		return "curve"
	default:
		return "unknown"
	}
}

// entry is the mutable tracking state of one identifier. Every field is
// guarded by mu.
type entry struct {
	mu sync.Mutex

	id      string
	tradeID string // bonding curves only
	snap    *models.PoolSnapshot
	subs    []stream.Subscription
	stopped bool

	// nil until the first update for that side arrives
	baseBalance  *decimal.Decimal
	quoteBalance *decimal.Decimal

	lastPrice decimal.Decimal
	updatedAt time.Time
}

// TrackedPool is a read-only view of an entry.
type TrackedPool struct {
	ID           string               `json:"id"`
	TradeID      string               `json:"tradeId,omitempty"`
	Snapshot     *models.PoolSnapshot `json:"snapshot"`
	BaseBalance  *float64             `json:"baseBalance,omitempty"`
	QuoteBalance *float64             `json:"quoteBalance,omitempty"`
	LastPrice    float64              `json:"lastPrice"`
	UpdatedAt    *time.Time           `json:"updatedAt,omitempty"`
}

func (e *entry) isBondingCurve() bool {
	return e.snap != nil && e.snap.Variant == models.BondingCurve
}

func (e *entry) view() TrackedPool {
	v := TrackedPool{
		ID:           e.id,
		TradeID:      e.tradeID,
		Snapshot:     e.snap,
		BaseBalance:  floatPtr(e.baseBalance),
		QuoteBalance: floatPtr(e.quoteBalance),
		LastPrice:    pricing.Float(e.lastPrice),
	}
	if !e.updatedAt.IsZero() {
		t := e.updatedAt
		v.UpdatedAt = &t
	}
	return v
}

func floatPtr(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := pricing.Float(*d)
	return &f
}
