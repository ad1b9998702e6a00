package tracker

import (
	"errors"

	"github.com/aman-zulfiqar/solana-price-relay/internal/constants"
	"github.com/aman-zulfiqar/solana-price-relay/internal/layout"
	"github.com/aman-zulfiqar/solana-price-relay/internal/models"
	"github.com/aman-zulfiqar/solana-price-relay/internal/pricing"
	"github.com/aman-zulfiqar/solana-price-relay/internal/stream"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const liquidityWithdrawnMessage = "liquidity withdrawn"

var liquidityFloor = decimal.NewFromInt(constants.LiquidityFloorSOL)

// apply is the only path that mutates an entry's balances.
func (r *Registry) apply(e *entry, role Role, u stream.AccountUpdate) {
	e.mu.Lock()
	defer e.mu.Unlock()

	log := r.logger.WithFields(logrus.Fields{
		"id":      e.id,
		"role":    role.String(),
		"account": u.Address.String(),
		"slot":    u.Slot,
	})

	if e.stopped || e.snap == nil {
		log.Debug("update for stopped entry dropped")
		return
	}

	if u.Closed {
		if e.isBondingCurve() {
			r.withdrawn(e)
			return
		}
		r.stop(e, "account closed")
		return
	}

	switch role {
	case RoleBaseVault, RoleQuoteVault:
		if !r.applyVault(e, role, u, log) {
			return
		}
	case RoleCurve:
		sol := pricing.Balance(u.Lamports, constants.NativeDecimals)
		e.quoteBalance = &sol
	case RolePool:
		r.applyPool(e, u, log)
		return
	default:
		log.Warn("update for unknown role")
		return
	}

	r.evaluate(e, log)
}

// applyVault replaces one vault balance from raw token-account bytes. A
// malformed push leaves the previous balance in place.
func (r *Registry) applyVault(e *entry, role Role, u stream.AccountUpdate, log *logrus.Entry) bool {
	acct, err := layout.DecodeTokenAccount(u.Data)
	if err != nil {
		log.WithError(err).Warn("failed to decode vault, keeping previous balance")
		return false
	}

	switch {
	case role == RoleBaseVault && acct.Mint.Equals(e.snap.BaseMint):
		b := pricing.Balance(acct.Amount.Uint64(), e.snap.BaseDecimals)
		e.baseBalance = &b
	case role == RoleQuoteVault && acct.Mint.Equals(e.snap.QuoteMint):
		q := pricing.Balance(acct.Amount.Uint64(), e.snap.QuoteDecimals)
		e.quoteBalance = &q
	default:
		log.WithField("vault_mint", acct.Mint.String()).Warn("vault mint does not match pool, ignoring update")
		return false
	}
	return true
}

// applyPool prices a concentrated-liquidity pool straight from its sqrt
// price. Vault balances are not tracked for this variant.
func (r *Registry) applyPool(e *entry, u stream.AccountUpdate, log *logrus.Entry) {
	pool, err := layout.DecodeClmmPool(u.Data)
	if err != nil {
		log.WithError(err).Warn("failed to decode pool update")
		return
	}

	price, err := pricing.PriceFromSqrtX64(pool.SqrtPriceX64.String(), e.snap.BaseDecimals, e.snap.QuoteDecimals)
	if err != nil {
		log.WithError(err).Warn("failed to price pool update")
		return
	}
	if price.Round(constants.PriceDecimals).IsZero() {
		return
	}

	e.lastPrice = price
	e.updatedAt = r.now().UTC()
	r.publishPrice(e, price, log)
}

// evaluate emits a price once both sides are known, and enforces the
// bonding-curve liquidity floor.
func (r *Registry) evaluate(e *entry, log *logrus.Entry) {
	if e.isBondingCurve() && e.quoteBalance != nil && e.quoteBalance.LessThan(liquidityFloor) {
		r.withdrawn(e)
		return
	}

	if e.baseBalance == nil || e.quoteBalance == nil {
		return
	}

	price, err := pricing.VaultRatioPrice(e.snap.QuoteMint, e.snap.BaseMint, *e.quoteBalance, *e.baseBalance)
	if errors.Is(err, pricing.ErrZeroDivisor) {
		log.Warn("zero divisor balance, price withheld")
		return
	}
	if err != nil || price.IsZero() {
		return
	}

	e.lastPrice = price
	e.updatedAt = r.now().UTC()

	if e.isBondingCurve() {
		r.publishBondingCurvePrice(e, price, log)
		return
	}
	r.publishPrice(e, price, log)
}

func (r *Registry) publishPrice(e *entry, price decimal.Decimal, log *logrus.Entry) {
	quote := &models.PriceQuote{
		Timestamp: e.updatedAt,
		PoolID:    e.id,
		QuoteMint: e.snap.QuoteMint.String(),
		BaseMint:  e.snap.BaseMint.String(),
		Price:     pricing.Float(price),
	}
	if e.snap.Variant != models.ConcentratedLiquidity {
		quote.QuoteVault = e.snap.QuoteVault.String()
		quote.BaseVault = e.snap.BaseVault.String()
		quote.QuoteVaultBalance = floatPtr(e.quoteBalance)
		quote.BaseVaultBalance = floatPtr(e.baseBalance)
	}

	if err := r.publisher.PublishPrice(r.ctx, quote); err != nil {
		log.WithError(err).Error("failed to publish price")
		return
	}
	log.WithField("price", quote.Price).Debug("published price")
}

func (r *Registry) publishBondingCurvePrice(e *entry, price decimal.Decimal, log *logrus.Entry) {
	quote := &models.BondingCurveQuote{
		Timestamp:    e.updatedAt,
		TradeID:      e.tradeID,
		Mint:         e.snap.BaseMint.String(),
		Price:        pricing.Float(price),
		SolBalance:   pricing.Float(*e.quoteBalance),
		TokenBalance: pricing.Float(*e.baseBalance),
	}

	if err := r.publisher.PublishBondingCurvePrice(r.ctx, quote); err != nil {
		log.WithError(err).Error("failed to publish bonding curve price")
		return
	}
	log.WithField("price", quote.Price).Debug("published bonding curve price")
}

// withdrawn signals a drained bonding curve and stops the entry. Caller
// holds e.mu.
func (r *Registry) withdrawn(e *entry) {
	event := &models.LiquidityWithdrawn{
		Timestamp: r.now().UTC(),
		TradeID:   e.tradeID,
		Mint:      e.snap.BaseMint.String(),
		Message:   liquidityWithdrawnMessage,
	}
	if err := r.publisher.PublishLiquidityWithdrawn(r.ctx, event); err != nil {
		r.logger.WithError(err).WithField("trade_id", e.tradeID).Error("failed to publish liquidity withdrawal")
	}
	r.stop(e, liquidityWithdrawnMessage)
}
