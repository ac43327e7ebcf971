package factor

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/ppopth/gf128-factor/poly"
)

// cubicExponent is (2^128 - 1) / 3
// Raising a unit of GF(2^128)[x]/(f) to this power lands in the cube roots of unity
// in every irreducible component, which are equally likely for a uniform witness.
var cubicExponent = uint256.MustFromHex("0x55555555555555555555555555555555")

// EqualDegree splits p, a product of distinct monic irreducible factors of degree d,
// into those factors
func (f *Factorizer) EqualDegree(ctx context.Context, p poly.Polynomial, d int) ([]poly.Polynomial, error) {
	if p.IsZero() {
		return nil, ErrZeroPolynomial
	}
	if d < 1 || p.Degree()%d != 0 {
		return nil, fmt.Errorf("%w: degree %d, factor degree %d", ErrDegreeMismatch, p.Degree(), d)
	}
	if p.Degree() == 0 {
		return nil, nil
	}

	p = p.Monic()
	want := p.Degree() / d
	factors := []poly.Polynomial{p}

	for attempts := 0; len(factors) < want; attempts++ {
		if f.maxAttempts > 0 && attempts >= f.maxAttempts {
			return nil, fmt.Errorf("%w: found %d of %d factors after %d attempts", ErrTooManyAttempts, len(factors), want, attempts)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		g, err := f.witness(p, d)
		if err != nil {
			return nil, fmt.Errorf("failed to draw splitting witness: %w", err)
		}
		shifted := g.Add(poly.One())

		// Split the first candidate that the witness separates, then draw again
		for i, candidate := range factors {
			if candidate.Degree() == d {
				continue
			}
			h := poly.Gcd(candidate, shifted)
			if h.Degree() == 0 || h.Degree() == candidate.Degree() {
				continue
			}
			h = h.Monic()
			factors[i] = candidate.Div(h)
			factors = append(factors, h)
			log.Debugf("split degree-%d candidate into %d and %d", candidate.Degree(), factors[i].Degree(), h.Degree())
			break
		}
	}
	return factors, nil
}

// witness returns r^((q^d - 1)/3) mod p for a random r of degree below deg(p)
// The exponent factors as ((2^128 - 1)/3) * (1 + q + ... + q^(d-1)).
func (f *Factorizer) witness(p poly.Polynomial, d int) (poly.Polynomial, error) {
	r, err := poly.Random(f.rand, p.Degree()-1)
	if err != nil {
		return poly.Polynomial{}, err
	}
	h := r.PowMod(cubicExponent, p)
	g := h
	for i := 1; i < d; i++ {
		g = g.FrobeniusMod(p).Mul(h).Mod(p)
	}
	return g, nil
}
