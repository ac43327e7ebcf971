package factor

import (
	"context"
	"fmt"

	"github.com/ppopth/gf128-factor/poly"
)

// Term is one layer of a square-free decomposition
type Term struct {
	Poly         poly.Polynomial // Monic and square-free
	Multiplicity int             // Power of Poly dividing the input
}

// SquareFree returns the monic square-free part of p: the product of its distinct
// irreducible factors, each to the first power
func SquareFree(p poly.Polynomial) (poly.Polynomial, error) {
	return defaultFactorizer.SquareFree(context.Background(), p)
}

// SquareFreeDecomposition returns pairwise coprime square-free terms such that the
// product of Poly^Multiplicity over all terms equals the monic form of p
func SquareFreeDecomposition(p poly.Polynomial) ([]Term, error) {
	return defaultFactorizer.SquareFreeDecomposition(context.Background(), p)
}

// SquareFree returns the monic square-free part of p
func (f *Factorizer) SquareFree(ctx context.Context, p poly.Polynomial) (poly.Polynomial, error) {
	terms, err := f.SquareFreeDecomposition(ctx, p)
	if err != nil {
		return poly.Polynomial{}, err
	}
	result := poly.One()
	for _, term := range terms {
		result = result.Mul(term.Poly)
	}
	return result, nil
}

// SquareFreeDecomposition splits p into square-free terms, stopping early once ctx is done
func (f *Factorizer) SquareFreeDecomposition(ctx context.Context, p poly.Polynomial) ([]Term, error) {
	if p.IsZero() {
		return nil, ErrZeroPolynomial
	}
	return squareFreeDecomposition(ctx, p.Monic())
}

func squareFreeDecomposition(ctx context.Context, f poly.Polynomial) ([]Term, error) {
	if f.Degree() == 0 {
		return nil, nil
	}

	var terms []Term

	// c collects the repeated part, w the product of all distinct factors not yet emitted
	c := poly.Gcd(f, f.Derivative()).Monic()
	w := f.Div(c)
	for i := 1; !w.IsOne(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		y := poly.Gcd(w, c).Monic()
		factor := w.Div(y)
		if factor.Degree() > 0 {
			terms = append(terms, Term{Poly: factor, Multiplicity: i})
		}
		w = y
		c = c.Div(y)
	}

	// Factors whose multiplicity is even vanish under the derivative and are left in c,
	// which is then a perfect square
	if c.Degree() > 0 {
		root, err := c.Sqrt()
		if err != nil {
			return nil, fmt.Errorf("repeated part of degree %d: %w", c.Degree(), err)
		}
		log.Debugf("recursing into square root of degree %d", root.Degree())
		rootTerms, err := squareFreeDecomposition(ctx, root)
		if err != nil {
			return nil, err
		}
		for _, term := range rootTerms {
			term.Multiplicity *= 2
			terms = append(terms, term)
		}
	}
	return terms, nil
}
