package layout

import "github.com/aman-zulfiqar/solana-price-relay/internal/models"

const BondingCurveSize = discriminatorSize + 5*8 + 1

// BondingCurve is the pump.fun bonding curve account.
type BondingCurve struct {
	VirtualTokenReserves U64  `json:"virtualTokenReserves"`
	VirtualSolReserves   U64  `json:"virtualSolReserves"`
	RealTokenReserves    U64  `json:"realTokenReserves"`
	RealSolReserves      U64  `json:"realSolReserves"`
	TokenTotalSupply     U64  `json:"tokenTotalSupply"`
	Complete             bool `json:"complete"`
}

func (*BondingCurve) Variant() models.PoolVariant { return models.BondingCurve }

func DecodeBondingCurve(buf []byte) (*BondingCurve, error) {
	if err := checkSize("bonding curve", buf, BondingCurveSize); err != nil {
		return nil, err
	}

	r := newReader(buf)
	r.skip("discriminator", discriminatorSize)

	c := &BondingCurve{
		VirtualTokenReserves: r.u64("virtualTokenReserves"),
		VirtualSolReserves:   r.u64("virtualSolReserves"),
		RealTokenReserves:    r.u64("realTokenReserves"),
		RealSolReserves:      r.u64("realSolReserves"),
		TokenTotalSupply:     r.u64("tokenTotalSupply"),
		Complete:             r.boolean("complete"),
	}
	if r.err != nil {
		return nil, r.err
	}
	return c, nil
}
