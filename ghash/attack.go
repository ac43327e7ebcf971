package ghash

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppopth/gf128-factor/field"
	"github.com/ppopth/gf128-factor/poly"
)

// ErrIdenticalMessages is returned when two messages give no equation in the hash key
var ErrIdenticalMessages = errors.New("messages have identical GHASH inputs and tags")

// Message is an AES-GCM ciphertext with its additional data and tag
type Message struct {
	AdditionalData []byte
	Ciphertext     []byte
	Tag            [BlockSize]byte
}

// RootFinder finds the roots of a polynomial over GF(2^128)
// *factor.Factorizer satisfies it.
type RootFinder interface {
	Roots(ctx context.Context, p poly.Polynomial) ([]field.Element, error)
}

// TagPolynomial returns the polynomial in H that evaluates to GHASH_H(m) + tag
// With blocks X_1..X_n it is X_1*H^n + ... + X_n*H + tag. Under a fixed key and nonce
// this equals the encrypted counter block E_K(Y_0) at the real H.
func TagPolynomial(m Message) poly.Polynomial {
	blocks := Blocks(m.AdditionalData, m.Ciphertext)
	coeffs := make([]field.Element, len(blocks)+1)
	coeffs[0] = field.FromBlock(m.Tag)
	for i, b := range blocks {
		coeffs[len(blocks)-i] = field.FromBlock(b)
	}
	return poly.New(coeffs...)
}

// RecoverAuthKey returns the candidates for the hash key H shared by two messages
// that were encrypted under the same key and nonce
// The masks E_K(Y_0) cancel in the difference of the tag polynomials, so H is one of
// its roots.
func RecoverAuthKey(ctx context.Context, finder RootFinder, a, b Message) ([]field.Element, error) {
	diff := TagPolynomial(a).Sub(TagPolynomial(b))
	if diff.IsZero() {
		return nil, ErrIdenticalMessages
	}
	candidates, err := finder.Roots(ctx, diff)
	if err != nil {
		return nil, fmt.Errorf("failed to find roots of degree-%d tag difference: %w", diff.Degree(), err)
	}
	return candidates, nil
}

// Mask returns E_K(Y_0) for a known message, assuming h is the hash key
func Mask(h field.Element, known Message) field.Element {
	return Sum(h, known.AdditionalData, known.Ciphertext).Add(field.FromBlock(known.Tag))
}

// Forge computes the tag of (additionalData, ciphertext) under the key and nonce of known
func Forge(h field.Element, known Message, additionalData, ciphertext []byte) [BlockSize]byte {
	return Sum(h, additionalData, ciphertext).Add(Mask(h, known)).Block()
}

// Identify returns the candidate whose forged tag for check matches the real one
// known and check must share the key and nonce.
func Identify(candidates []field.Element, known, check Message) (field.Element, bool) {
	for _, h := range candidates {
		if Forge(h, known, check.AdditionalData, check.Ciphertext) == check.Tag {
			return h, true
		}
	}
	return field.Element{}, false
}
