package layout

import (
	"fmt"

	"github.com/aman-zulfiqar/solana-price-relay/internal/models"
)

// Decode dispatches buf to the decoder for variant. The caller is responsible
// for picking the variant; the bytes alone cannot tell the layouts apart.
func Decode(variant models.PoolVariant, buf []byte) (Record, error) {
	switch variant {
	case models.ClassicAmm:
		return record(DecodeAmmV4Pool(buf))
	case models.ConstantProduct:
		return record(DecodeCpmmPool(buf))
	case models.ConcentratedLiquidity:
		return record(DecodeClmmPool(buf))
	case models.BondingCurve:
		return record(DecodeBondingCurve(buf))
	default:
		return nil, fmt.Errorf("no layout for pool variant %s", variant)
	}
}

// record keeps a failed decode from leaking a typed nil through the interface.
func record[T Record](rec T, err error) (Record, error) {
	if err != nil {
		return nil, err
	}
	return rec, nil
}
