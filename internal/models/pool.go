package models

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
)

// PoolVariant identifies which on-chain program layout a pool account uses.
// It is resolved once from the account owner and never changes afterwards.
type PoolVariant uint8

const (
	VariantUnknown PoolVariant = iota
	ClassicAmm
	ConstantProduct
	ConcentratedLiquidity
	BondingCurve
)

func (v PoolVariant) String() string {
	switch v {
	case ClassicAmm:
		return "classic_amm"
	case ConstantProduct:
		return "constant_product"
	case ConcentratedLiquidity:
		return "concentrated_liquidity"
	case BondingCurve:
		return "bonding_curve"
	default:
		return "unknown"
	}
}

func (v PoolVariant) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *PoolVariant) UnmarshalText(b []byte) error {
	switch string(b) {
	case "classic_amm":
		*v = ClassicAmm
	case "constant_product":
		*v = ConstantProduct
	case "concentrated_liquidity":
		*v = ConcentratedLiquidity
	case "bonding_curve":
		*v = BondingCurve
	default:
		return fmt.Errorf("unknown pool variant %q", string(b))
	}
	return nil
}

// PoolSnapshot is the normalized, read-only view of a pool produced at
// subscribe time. Base/quote fields are filled for every variant; the
// variant specific fields are only set where the layout carries them.
type PoolSnapshot struct {
	PoolID  solana.PublicKey `json:"poolId"`
	Variant PoolVariant      `json:"variant"`
	Owner   solana.PublicKey `json:"owner"`

	BaseVault     solana.PublicKey `json:"baseVault"`
	BaseMint      solana.PublicKey `json:"baseMint"`
	BaseDecimals  uint8            `json:"baseDecimals"`
	QuoteVault    solana.PublicKey `json:"quoteVault"`
	QuoteMint     solana.PublicKey `json:"quoteMint"`
	QuoteDecimals uint8            `json:"quoteDecimals"`

	// Concentrated liquidity only
	SqrtPriceX64 string `json:"sqrtPriceX64,omitempty"`
	TickCurrent  *int32 `json:"tickCurrent,omitempty"`

	// Record is the fully decoded layout record the snapshot was built from.
	Record any `json:"record,omitempty"`

	ResolvedAt time.Time `json:"resolvedAt"`
}

// PoolRecord is the flat metadata row kept in the pool store.
type PoolRecord struct {
	PoolID        string    `json:"poolId" ch:"pool_id"`
	Variant       string    `json:"variant" ch:"variant"`
	Owner         string    `json:"owner" ch:"owner"`
	BaseMint      string    `json:"baseMint" ch:"base_mint"`
	BaseVault     string    `json:"baseVault" ch:"base_vault"`
	BaseDecimals  uint8     `json:"baseDecimals" ch:"base_decimals"`
	QuoteMint     string    `json:"quoteMint" ch:"quote_mint"`
	QuoteVault    string    `json:"quoteVault" ch:"quote_vault"`
	QuoteDecimals uint8     `json:"quoteDecimals" ch:"quote_decimals"`
	ResolvedAt    time.Time `json:"resolvedAt" ch:"resolved_at"`
}

// Row flattens a snapshot for storage.
func (s *PoolSnapshot) Row() *PoolRecord {
	return &PoolRecord{
		PoolID:        s.PoolID.String(),
		Variant:       s.Variant.String(),
		Owner:         s.Owner.String(),
		BaseMint:      s.BaseMint.String(),
		BaseVault:     s.BaseVault.String(),
		BaseDecimals:  s.BaseDecimals,
		QuoteMint:     s.QuoteMint.String(),
		QuoteVault:    s.QuoteVault.String(),
		QuoteDecimals: s.QuoteDecimals,
		ResolvedAt:    s.ResolvedAt,
	}
}
