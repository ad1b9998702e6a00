package models

import "time"

// PriceQuote is published on the pool price channel whenever a tracked
// pool produces a non-zero price.
type PriceQuote struct {
	Timestamp         time.Time `json:"timestamp"`
	PoolID            string    `json:"poolID"`
	QuoteMint         string    `json:"quoteMint"`
	BaseMint          string    `json:"baseMint"`
	Price             float64   `json:"price"`
	QuoteVault        string    `json:"quoteVault,omitempty"`
	QuoteVaultBalance *float64  `json:"quoteVaultBalance,omitempty"`
	BaseVault         string    `json:"baseVault,omitempty"`
	BaseVaultBalance  *float64  `json:"baseVaultBalance,omitempty"`
}

// BondingCurveQuote is the price event for a bonding-curve market, keyed by
// the trade id the subscriber supplied.
type BondingCurveQuote struct {
	Timestamp    time.Time `json:"timestamp"`
	TradeID      string    `json:"trade_id"`
	Mint         string    `json:"mint"`
	Price        float64   `json:"price"`
	SolBalance   float64   `json:"solBalance"`
	TokenBalance float64   `json:"tokenBalance"`
}

// LiquidityWithdrawn signals that a bonding curve fell under the liquidity
// floor and is no longer tracked.
type LiquidityWithdrawn struct {
	Timestamp time.Time `json:"timestamp"`
	TradeID   string    `json:"trade_id"`
	Mint      string    `json:"mint,omitempty"`
	Message   string    `json:"message"`
}

// PoolCommand is the subscribe/unsubscribe message for AMM pools.
type PoolCommand struct {
	PoolID string `json:"poolId"`
}

// BondingCurveCommand is the subscribe/unsubscribe message for bonding curves.
type BondingCurveCommand struct {
	TokenMint string `json:"tokenMint"`
	TradeID   string `json:"trade_id"`
}
