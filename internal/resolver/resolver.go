package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aman-zulfiqar/solana-price-relay/internal/constants"
	"github.com/aman-zulfiqar/solana-price-relay/internal/layout"
	"github.com/aman-zulfiqar/solana-price-relay/internal/models"
	"github.com/aman-zulfiqar/solana-price-relay/internal/rpc"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnsupportedPoolOwner = errors.New("unsupported pool owner")
	ErrFetchFailed          = errors.New("fetch failed")
	ErrInvalidDecimals      = errors.New("invalid decimals")
)

// AccountFetcher performs one-shot account reads
type AccountFetcher interface {
	FetchAccount(ctx context.Context, address solana.PublicKey) (*rpc.AccountInfo, error)
}

// PoolStore records resolved pool metadata
type PoolStore interface {
	UpsertPool(ctx context.Context, snap *models.PoolSnapshot) error
}

// Resolver turns a pool address into a normalized PoolSnapshot.
// It never retries; retry policy belongs to the fetcher and the caller.
type Resolver struct {
	fetcher AccountFetcher
	store   PoolStore
	logger  *logrus.Logger
	now     func() time.Time
}

// Config holds configuration for the resolver
type Config struct {
	Fetcher AccountFetcher
	Store   PoolStore // optional
	Logger  *logrus.Logger
}

// New creates a resolver backed by the given fetcher
func New(cfg Config) *Resolver {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Resolver{
		fetcher: cfg.Fetcher,
		store:   cfg.Store,
		logger:  cfg.Logger,
		now:     time.Now,
	}
}

// VariantForOwner maps an owning program to its pool layout.
func VariantForOwner(owner solana.PublicKey) (models.PoolVariant, bool) {
	switch {
	case owner.Equals(constants.RaydiumAmmV4Program):
		return models.ClassicAmm, true
	case owner.Equals(constants.RaydiumCpmmProgram):
		return models.ConstantProduct, true
	case owner.Equals(constants.RaydiumClmmProgram):
		return models.ConcentratedLiquidity, true
	case owner.Equals(constants.PumpProgram):
		return models.BondingCurve, true
	}
	return models.VariantUnknown, false
}

// Resolve fetches the pool account, classifies it by owner and decodes it.
func (r *Resolver) Resolve(ctx context.Context, poolAddress solana.PublicKey) (*models.PoolSnapshot, error) {
	info, err := r.fetch(ctx, poolAddress)
	if err != nil {
		return nil, err
	}

	variant, ok := VariantForOwner(info.Owner)
	if !ok || variant == models.BondingCurve {
		return nil, fmt.Errorf("%w: %s is owned by %s", ErrUnsupportedPoolOwner, poolAddress, info.Owner)
	}

	rec, err := layout.Decode(variant, info.Data)
	if err != nil {
		return nil, fmt.Errorf("decode %s pool %s: %w", variant, poolAddress, err)
	}

	snap, err := Normalize(rec)
	if err != nil {
		return nil, fmt.Errorf("normalize pool %s: %w", poolAddress, err)
	}
	snap.PoolID = poolAddress
	snap.Owner = info.Owner
	snap.ResolvedAt = r.now().UTC()

	r.logger.WithFields(logrus.Fields{
		"pool":       poolAddress.String(),
		"variant":    variant.String(),
		"base_mint":  snap.BaseMint.String(),
		"quote_mint": snap.QuoteMint.String(),
	}).Debug("resolved pool")

	r.record(ctx, snap)
	return snap, nil
}

// record stores pool metadata. A store failure never fails resolution.
func (r *Resolver) record(ctx context.Context, snap *models.PoolSnapshot) {
	if r.store == nil {
		return
	}
	if err := r.store.UpsertPool(ctx, snap); err != nil {
		r.logger.WithError(err).WithField("pool", snap.PoolID.String()).Warn("failed to record pool metadata")
	}
}

// Normalize extracts the fields the price engine needs from a decoded pool
// record. Constant-product and concentrated-liquidity pools map A to base
// and B to quote.
func Normalize(rec layout.Record) (*models.PoolSnapshot, error) {
	switch p := rec.(type) {
	case *layout.AmmV4Pool:
		baseDecimals, err := checkDecimals("baseDecimal", p.BaseDecimal.Uint64())
		if err != nil {
			return nil, err
		}
		quoteDecimals, err := checkDecimals("quoteDecimal", p.QuoteDecimal.Uint64())
		if err != nil {
			return nil, err
		}
		return &models.PoolSnapshot{
			Variant:       models.ClassicAmm,
			BaseVault:     p.BaseVault,
			BaseMint:      p.BaseMint,
			BaseDecimals:  baseDecimals,
			QuoteVault:    p.QuoteVault,
			QuoteMint:     p.QuoteMint,
			QuoteDecimals: quoteDecimals,
			Record:        p,
		}, nil

	case *layout.CpmmPool:
		baseDecimals, err := checkDecimals("mintDecimalA", uint64(p.MintDecimalA))
		if err != nil {
			return nil, err
		}
		quoteDecimals, err := checkDecimals("mintDecimalB", uint64(p.MintDecimalB))
		if err != nil {
			return nil, err
		}
		return &models.PoolSnapshot{
			Variant:       models.ConstantProduct,
			BaseVault:     p.VaultA,
			BaseMint:      p.MintA,
			BaseDecimals:  baseDecimals,
			QuoteVault:    p.VaultB,
			QuoteMint:     p.MintB,
			QuoteDecimals: quoteDecimals,
			Record:        p,
		}, nil

	case *layout.ClmmPool:
		baseDecimals, err := checkDecimals("mintDecimalsA", uint64(p.MintDecimalsA))
		if err != nil {
			return nil, err
		}
		quoteDecimals, err := checkDecimals("mintDecimalsB", uint64(p.MintDecimalsB))
		if err != nil {
			return nil, err
		}
		tick := p.TickCurrent
		return &models.PoolSnapshot{
			Variant:       models.ConcentratedLiquidity,
			BaseVault:     p.VaultA,
			BaseMint:      p.MintA,
			BaseDecimals:  baseDecimals,
			QuoteVault:    p.VaultB,
			QuoteMint:     p.MintB,
			QuoteDecimals: quoteDecimals,
			SqrtPriceX64:  p.SqrtPriceX64.String(),
			TickCurrent:   &tick,
			Record:        p,
		}, nil
	}
	return nil, fmt.Errorf("no normalization for %T", rec)
}

func checkDecimals(field string, v uint64) (uint8, error) {
	if v > constants.MaxMintDecimals {
		return 0, fmt.Errorf("%w: %s = %d", ErrInvalidDecimals, field, v)
	}
	return uint8(v), nil
}

func (r *Resolver) fetch(ctx context.Context, address solana.PublicKey) (*rpc.AccountInfo, error) {
	info, err := r.fetcher.FetchAccount(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetchFailed, address, err)
	}
	return info, nil
}
