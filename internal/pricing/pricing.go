package pricing

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/aman-zulfiqar/solana-price-relay/internal/constants"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

var (
	// ErrZeroDivisor is a warning: the price is reported as zero and tracking continues.
	ErrZeroDivisor = errors.New("zero divisor balance")

	ErrInvalidSqrtPrice = errors.New("invalid sqrt price")
)

// sqrtPricePrecision is the number of fractional digits kept when inverting
// a Q64.64 price. It is well past the 9 digits ever emitted.
const sqrtPricePrecision = 40

var twoPow128 = new(big.Int).Lsh(big.NewInt(1), 128)

// IsReferenceAsset reports whether mint is native SOL or one of the
// recognized stablecoins.
func IsReferenceAsset(mint solana.PublicKey) bool {
	switch {
	case mint.Equals(constants.NativeSOLMint),
		mint.Equals(constants.USDCMint),
		mint.Equals(constants.USDTMint):
		return true
	}
	return false
}

// Balance converts a raw token amount into whole units.
func Balance(amount uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals))
}

// VaultRatioPrice prices a pool from its two vault balances.
//
// When the quote mint is a reference asset the price is quote/base. In every
// other case it is base/quote, including pools where neither side is a
// reference asset. A zero divisor yields zero and ErrZeroDivisor.
func VaultRatioPrice(quoteMint, baseMint solana.PublicKey, quoteBalance, baseBalance decimal.Decimal) (decimal.Decimal, error) {
	var num, den decimal.Decimal
	switch {
	case IsReferenceAsset(quoteMint):
		num, den = quoteBalance, baseBalance
	case IsReferenceAsset(baseMint):
		num, den = baseBalance, quoteBalance
	default:
		// TODO: decide an orientation for pairs with no reference asset; consumers
		// currently expect base/quote here.
		num, den = baseBalance, quoteBalance
	}

	if den.IsZero() {
		return decimal.Zero, ErrZeroDivisor
	}
	return num.DivRound(den, constants.PriceDecimals), nil
}

// PriceFromSqrtX64 converts a Q64.64 square-root price into the price of
// token A in terms of token B:
//
//	1 / ((sqrtPriceX64 / 2^64)^2 * 10^(decimalsA - decimalsB))
//
// The computation stays in exact integer and decimal arithmetic.
func PriceFromSqrtX64(sqrtPriceX64 string, decimalsA, decimalsB uint8) (decimal.Decimal, error) {
	x, ok := new(big.Int).SetString(sqrtPriceX64, 10)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q is not an integer", ErrInvalidSqrtPrice, sqrtPriceX64)
	}
	if x.Sign() <= 0 || x.BitLen() > 128 {
		return decimal.Zero, fmt.Errorf("%w: %s out of range", ErrInvalidSqrtPrice, sqrtPriceX64)
	}

	// 2^128 * 10^(dB - dA) / x^2 is the same expression with the inversion folded in.
	num := decimal.NewFromBigInt(twoPow128, int32(decimalsB)-int32(decimalsA))
	den := decimal.NewFromBigInt(new(big.Int).Mul(x, x), 0)
	return num.DivRound(den, sqrtPricePrecision), nil
}

// Float rounds a price to the emitted precision and converts it for display.
func Float(price decimal.Decimal) float64 {
	return price.Round(constants.PriceDecimals).InexactFloat64()
}
