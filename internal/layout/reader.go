package layout

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// reader walks a fixed layout field by field. The first failure sticks and
// every later read becomes a no-op, so decoders check err once at the end.
type reader struct {
	dec *bin.Decoder
	err error
}

func newReader(buf []byte) *reader {
	return &reader{dec: bin.NewBinDecoder(buf)}
}

func (r *reader) fail(field string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("read %s: %w", field, err)
	}
}

func (r *reader) skip(field string, n int) {
	if r.err != nil {
		return
	}
	if _, err := r.dec.ReadNBytes(n); err != nil {
		r.fail(field, err)
	}
}

func (r *reader) u8(field string) uint8 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint8()
	if err != nil {
		r.fail(field, err)
	}
	return v
}

// boolean treats any nonzero byte as true.
func (r *reader) boolean(field string) bool {
	return r.u8(field) != 0
}

func (r *reader) u16(field string) uint16 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint16(bin.LE)
	if err != nil {
		r.fail(field, err)
	}
	return v
}

func (r *reader) u32(field string) uint32 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint32(bin.LE)
	if err != nil {
		r.fail(field, err)
	}
	return v
}

func (r *reader) i32(field string) int32 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadInt32(bin.LE)
	if err != nil {
		r.fail(field, err)
	}
	return v
}

func (r *reader) u64(field string) U64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint64(bin.LE)
	if err != nil {
		r.fail(field, err)
	}
	return U64(v)
}

func (r *reader) u128(field string) U128 {
	if r.err != nil {
		return U128{}
	}
	v, err := r.dec.ReadUint128(bin.LE)
	if err != nil {
		r.fail(field, err)
		return U128{}
	}
	return U128{Lo: v.Lo, Hi: v.Hi}
}

func (r *reader) u64s(field string, out []U64) {
	for i := range out {
		out[i] = r.u64(fmt.Sprintf("%s[%d]", field, i))
	}
}

func (r *reader) pubkey(field string) solana.PublicKey {
	if r.err != nil {
		return solana.PublicKey{}
	}
	b, err := r.dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		r.fail(field, err)
		return solana.PublicKey{}
	}
	return solana.PublicKeyFromBytes(b)
}
