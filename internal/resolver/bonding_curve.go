package resolver

import (
	"context"
	"fmt"

	"github.com/aman-zulfiqar/solana-price-relay/internal/constants"
	"github.com/aman-zulfiqar/solana-price-relay/internal/layout"
	"github.com/aman-zulfiqar/solana-price-relay/internal/models"
	"github.com/aman-zulfiqar/solana-price-relay/internal/pricing"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

// BondingCurvePrice is a one-shot bonding curve quote.
type BondingCurvePrice struct {
	Mint              string  `json:"mint"`
	BondingCurve      string  `json:"bondingCurve"`
	TokenPrice        float64 `json:"tokenPrice"`
	SolVaultBalance   float64 `json:"solVaultBalance"`
	TokenVaultBalance float64 `json:"tokenVaultBalance"`
	Complete          bool    `json:"complete"`
}

// BondingCurveAddresses derives the curve PDA and its associated token
// account for a mint.
func BondingCurveAddresses(mint solana.PublicKey) (curve, tokenAccount solana.PublicKey, err error) {
	curve, _, err = solana.FindProgramAddress(
		[][]byte{[]byte(constants.BondingCurveSeed), mint.Bytes()},
		constants.PumpProgram,
	)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("derive bonding curve for %s: %w", mint, err)
	}
	tokenAccount, _, err = solana.FindAssociatedTokenAddress(curve, mint)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("derive curve token account for %s: %w", mint, err)
	}
	return curve, tokenAccount, nil
}

// ResolveBondingCurve builds a snapshot for a bonding curve market. The
// curve account holds the SOL side as lamports, so it doubles as the quote
// vault; the base vault is the curve's token account.
func (r *Resolver) ResolveBondingCurve(ctx context.Context, mint solana.PublicKey) (*models.PoolSnapshot, error) {
	snap, _, err := r.resolveBondingCurve(ctx, mint)
	return snap, err
}

func (r *Resolver) resolveBondingCurve(ctx context.Context, mint solana.PublicKey) (*models.PoolSnapshot, uint64, error) {
	curve, tokenAccount, err := BondingCurveAddresses(mint)
	if err != nil {
		return nil, 0, err
	}

	info, err := r.fetch(ctx, curve)
	if err != nil {
		return nil, 0, err
	}
	if !info.Owner.Equals(constants.PumpProgram) {
		return nil, 0, fmt.Errorf("%w: bonding curve %s is owned by %s", ErrUnsupportedPoolOwner, curve, info.Owner)
	}

	rec, err := layout.DecodeBondingCurve(info.Data)
	if err != nil {
		return nil, 0, fmt.Errorf("decode bonding curve %s: %w", curve, err)
	}

	snap := &models.PoolSnapshot{
		PoolID:        curve,
		Variant:       models.BondingCurve,
		Owner:         info.Owner,
		BaseVault:     tokenAccount,
		BaseMint:      mint,
		BaseDecimals:  r.mintDecimals(ctx, mint),
		QuoteVault:    curve,
		QuoteMint:     constants.NativeSOLMint,
		QuoteDecimals: constants.NativeDecimals,
		Record:        rec,
		ResolvedAt:    r.now().UTC(),
	}

	r.logger.WithFields(logrus.Fields{
		"mint":          mint.String(),
		"bonding_curve": curve.String(),
		"complete":      rec.Complete,
	}).Debug("resolved bonding curve")

	r.record(ctx, snap)
	return snap, info.Lamports, nil
}

// mintDecimals reads the mint's decimals, falling back to the pump.fun
// default when the mint cannot be read.
func (r *Resolver) mintDecimals(ctx context.Context, mint solana.PublicKey) uint8 {
	info, err := r.fetch(ctx, mint)
	if err == nil {
		var m *layout.Mint
		if m, err = layout.DecodeMint(info.Data); err == nil && m.Decimals <= constants.MaxMintDecimals {
			return m.Decimals
		}
	}
	r.logger.WithError(err).WithField("mint", mint.String()).
		Warn("could not read mint decimals, using default")
	return constants.DefaultTokenDecimals
}

// QuoteBondingCurve prices a bonding curve market once, without tracking it.
func (r *Resolver) QuoteBondingCurve(ctx context.Context, mint solana.PublicKey) (*BondingCurvePrice, error) {
	snap, lamports, err := r.resolveBondingCurve(ctx, mint)
	if err != nil {
		return nil, err
	}

	info, err := r.fetch(ctx, snap.BaseVault)
	if err != nil {
		return nil, err
	}
	tokenAccount, err := layout.DecodeTokenAccount(info.Data)
	if err != nil {
		return nil, fmt.Errorf("decode curve token account %s: %w", snap.BaseVault, err)
	}

	sol := pricing.Balance(lamports, constants.NativeDecimals)
	tokens := pricing.Balance(tokenAccount.Amount.Uint64(), snap.BaseDecimals)
	price, err := pricing.VaultRatioPrice(snap.QuoteMint, snap.BaseMint, sol, tokens)
	if err != nil {
		r.logger.WithError(err).WithField("mint", mint.String()).Warn("bonding curve has no token balance")
	}

	return &BondingCurvePrice{
		Mint:              mint.String(),
		BondingCurve:      snap.PoolID.String(),
		TokenPrice:        pricing.Float(price),
		SolVaultBalance:   pricing.Float(sol),
		TokenVaultBalance: pricing.Float(tokens),
		Complete:          snap.Record.(*layout.BondingCurve).Complete,
	}, nil
}
