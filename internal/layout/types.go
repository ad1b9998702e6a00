package layout

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/aman-zulfiqar/solana-price-relay/internal/models"
)

// ErrTruncatedBuffer is returned when a buffer is shorter than the layout requires.
var ErrTruncatedBuffer = errors.New("truncated buffer")

// Record is implemented by every decoded account layout.
type Record interface {
	Variant() models.PoolVariant
}

// U64 is a little-endian u64 field. It serializes as a decimal string so
// consumers without native 64-bit integers never lose precision.
type U64 uint64

func (u U64) Uint64() uint64 { return uint64(u) }

func (u U64) BigInt() *big.Int { return new(big.Int).SetUint64(uint64(u)) }

func (u U64) String() string { return strconv.FormatUint(uint64(u), 10) }

func (u U64) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

func (u *U64) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parse u64: %w", err)
	}
	*u = U64(v)
	return nil
}

// U128 is a little-endian u128 field split into its two 64-bit halves.
type U128 struct {
	Lo uint64
	Hi uint64
}

func (u U128) IsZero() bool { return u.Lo == 0 && u.Hi == 0 }

func (u U128) BigInt() *big.Int {
	v := new(big.Int).SetUint64(u.Hi)
	v.Lsh(v, 64)
	return v.Or(v, new(big.Int).SetUint64(u.Lo))
}

func (u U128) String() string { return u.BigInt().String() }

func (u U128) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

func (u *U128) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 || v.BitLen() > 128 {
		return fmt.Errorf("parse u128: invalid value %q", s)
	}
	mask := new(big.Int).SetUint64(^uint64(0))
	u.Lo = new(big.Int).And(v, mask).Uint64()
	u.Hi = new(big.Int).Rsh(v, 64).Uint64()
	return nil
}

func checkSize(name string, buf []byte, want int) error {
	if len(buf) < want {
		return fmt.Errorf("%w: %s: have %d want >= %d", ErrTruncatedBuffer, name, len(buf), want)
	}
	return nil
}
