package factor

import (
	"context"

	"github.com/ppopth/gf128-factor/poly"
)

// Group is the product of all irreducible factors of one degree
type Group struct {
	Poly   poly.Polynomial // Monic product of the factors
	Degree int             // Degree of each irreducible factor in Poly
}

// DistinctDegree groups the irreducible factors of a square-free polynomial by degree
// A constant input is reported as a single group of degree 1.
func DistinctDegree(p poly.Polynomial) ([]Group, error) {
	return defaultFactorizer.DistinctDegree(context.Background(), p)
}

// DistinctDegree groups the irreducible factors of a square-free polynomial by degree,
// checking ctx before each degree
func (f *Factorizer) DistinctDegree(ctx context.Context, p poly.Polynomial) ([]Group, error) {
	if p.IsZero() {
		return nil, ErrZeroPolynomial
	}

	var groups []Group
	remaining := p.Monic()
	x := poly.X()

	// After step i, x holds X^(q^i) mod remaining and gcd(remaining, x - X) is the
	// product of the remaining irreducible factors of degree i
	for i := 1; remaining.Degree() >= 2*i; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		x = x.FrobeniusMod(remaining)
		g := poly.Gcd(remaining, x.Sub(poly.X()))
		if g.Degree() > 0 {
			g = g.Monic()
			remaining = remaining.Div(g)
			groups = append(groups, Group{Poly: g, Degree: i})
			log.Debugf("found degree-%d group of degree %d", i, g.Degree())
		}
	}

	// Whatever is left has no factor of degree below half its own, so it is irreducible
	if remaining.Degree() > 0 {
		groups = append(groups, Group{Poly: remaining, Degree: remaining.Degree()})
	}

	if len(groups) == 0 {
		groups = append(groups, Group{Poly: p.Monic(), Degree: 1})
	}
	return groups, nil
}
