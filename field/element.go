package field

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"

	"github.com/holiman/uint256"
)

// modulusTail is the reduction polynomial x^128 + x^7 + x^2 + x + 1 without its x^128 term
const modulusTail = 0x87

// ElementSize is the size of a serialized element in bytes
const ElementSize = 16

// Element represents an element of GF(2^128)
// Bit i of the 128-bit value (hi:lo) is the coefficient of x^i in the polynomial basis.
type Element struct {
	hi uint64
	lo uint64
}

// New creates an element from the high and low 64-bit words of its 128-bit value
func New(hi, lo uint64) Element {
	return Element{hi: hi, lo: lo}
}

// FromUint64 creates an element whose value fits in the low word
func FromUint64(v uint64) Element {
	return Element{lo: v}
}

// Zero returns the additive identity
func Zero() Element {
	return Element{}
}

// One returns the multiplicative identity
func One() Element {
	return Element{lo: 1}
}

// Random returns a uniformly random element read from r
func Random(r io.Reader) (Element, error) {
	var buf [ElementSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Element{}, fmt.Errorf("failed to read random element: %w", err)
	}
	return FromBytes(buf), nil
}

// Hi returns the high 64 bits of the value
func (e Element) Hi() uint64 { return e.hi }

// Lo returns the low 64 bits of the value
func (e Element) Lo() uint64 { return e.lo }

// Add returns e + b (XOR)
func (e Element) Add(b Element) Element {
	return Element{hi: e.hi ^ b.hi, lo: e.lo ^ b.lo}
}

// Sub returns e - b (same as Add in characteristic 2)
func (e Element) Sub(b Element) Element {
	return e.Add(b)
}

// Mul returns e * b reduced modulo x^128 + x^7 + x^2 + x + 1
func (e Element) Mul(b Element) Element {
	// Karatsuba over the two 64-bit halves
	llLo, llHi := clmul64(e.lo, b.lo)
	hhLo, hhHi := clmul64(e.hi, b.hi)
	mLo, mHi := clmul64(e.lo^e.hi, b.lo^b.hi)
	mLo ^= llLo ^ hhLo
	mHi ^= llHi ^ hhHi

	r0 := llLo
	r1 := llHi ^ mLo
	r2 := mHi ^ hhLo
	r3 := hhHi
	return reduce(r0, r1, r2, r3)
}

// Square returns e * e
func (e Element) Square() Element {
	return e.Mul(e)
}

// Inv returns the multiplicative inverse a^(2^128-2)
func (e Element) Inv() Element {
	if e.IsZero() {
		panic("zero element is not invertible")
	}

	// t = e^(2^k - 1) for k = 1..127, then one squaring
	t := e
	for i := 0; i < 126; i++ {
		t = t.Square().Mul(e)
	}
	return t.Square()
}

// Div returns e / b
func (e Element) Div(b Element) Element {
	return e.Mul(b.Inv())
}

// Pow returns e^exp by square-and-multiply over the bits of exp
func (e Element) Pow(exp *uint256.Int) Element {
	result := One()
	for i := exp.BitLen() - 1; i >= 0; i-- {
		result = result.Square()
		if exp[i/64]>>(i%64)&1 == 1 {
			result = result.Mul(e)
		}
	}
	return result
}

// Sqrt returns the unique square root e^(2^127)
func (e Element) Sqrt() Element {
	r := e
	for i := 0; i < 127; i++ {
		r = r.Square()
	}
	return r
}

// Frobenius returns e^(2^128), which equals e for every element of the field
func (e Element) Frobenius() Element {
	return e.Sqrt().Square()
}

// IsZero returns true if e is the additive identity
func (e Element) IsZero() bool {
	return e.hi == 0 && e.lo == 0
}

// IsOne returns true if e is the multiplicative identity
func (e Element) IsOne() bool {
	return e.hi == 0 && e.lo == 1
}

// Equal returns true if e equals b
func (e Element) Equal(b Element) bool {
	return e == b
}

// Bytes returns the big-endian encoding of the 128-bit value
func (e Element) Bytes() [ElementSize]byte {
	var out [ElementSize]byte
	binary.BigEndian.PutUint64(out[:8], e.hi)
	binary.BigEndian.PutUint64(out[8:], e.lo)
	return out
}

// FromBytes decodes a big-endian 128-bit value
func FromBytes(b [ElementSize]byte) Element {
	return Element{
		hi: binary.BigEndian.Uint64(b[:8]),
		lo: binary.BigEndian.Uint64(b[8:]),
	}
}

// Block returns the GCM block encoding of e, where the most significant bit of the
// first byte holds the coefficient of x^0
func (e Element) Block() [ElementSize]byte {
	var out [ElementSize]byte
	binary.BigEndian.PutUint64(out[:8], bits.Reverse64(e.lo))
	binary.BigEndian.PutUint64(out[8:], bits.Reverse64(e.hi))
	return out
}

// FromBlock decodes a GCM block
func FromBlock(b [ElementSize]byte) Element {
	return Element{
		hi: bits.Reverse64(binary.BigEndian.Uint64(b[8:])),
		lo: bits.Reverse64(binary.BigEndian.Uint64(b[:8])),
	}
}

// MarshalBinary encodes e as a GCM block
func (e Element) MarshalBinary() ([]byte, error) {
	b := e.Block()
	return b[:], nil
}

// UnmarshalBinary decodes a GCM block into e
func (e *Element) UnmarshalBinary(data []byte) error {
	if len(data) != ElementSize {
		return fmt.Errorf("invalid element length %d, expected %d", len(data), ElementSize)
	}
	*e = FromBlock([ElementSize]byte(data))
	return nil
}

// String returns the hex representation of the 128-bit value
func (e Element) String() string {
	return fmt.Sprintf("0x%016x%016x", e.hi, e.lo)
}

// clmul64 returns the 128-bit carry-less product of a and b as (lo, hi)
func clmul64(a, b uint64) (lo, hi uint64) {
	// a*i for every 4-bit i; a*15 spans 67 bits
	var tLo, tHi [16]uint64
	tLo[1] = a
	for i := 2; i < 16; i += 2 {
		tLo[i] = tLo[i/2] << 1
		tHi[i] = tHi[i/2]<<1 | tLo[i/2]>>63
		tLo[i+1] = tLo[i] ^ a
		tHi[i+1] = tHi[i]
	}

	for shift := 60; shift >= 0; shift -= 4 {
		hi = hi<<4 | lo>>60
		lo <<= 4
		nibble := (b >> shift) & 0xf
		lo ^= tLo[nibble]
		hi ^= tHi[nibble]
	}
	return lo, hi
}

// reduce folds the 256-bit product r3:r2:r1:r0 back into 128 bits using x^128 = x^7 + x^2 + x + 1
func reduce(r0, r1, r2, r3 uint64) Element {
	l2, h2 := clmul64(r2, modulusTail)
	l3, h3 := clmul64(r3, modulusTail)
	// h3 holds at most 7 bits that landed on x^128 again
	t, _ := clmul64(h3, modulusTail)
	return Element{
		hi: r1 ^ h2 ^ l3,
		lo: r0 ^ l2 ^ t,
	}
}
