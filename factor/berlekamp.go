package factor

import (
	"context"

	"github.com/ppopth/gf128-factor/field"
	"github.com/ppopth/gf128-factor/poly"
)

// CountIrreducible returns the number of distinct monic irreducible factors of p
// It builds the Berlekamp matrix Q whose row i holds x^(q*i) mod p; the fixed space of
// the Frobenius map has one dimension per distinct irreducible factor, so the count is
// deg(p) - rank(Q - I).
func CountIrreducible(p poly.Polynomial) (int, error) {
	return defaultFactorizer.CountIrreducible(context.Background(), p)
}

// CountIrreducible returns the number of distinct irreducible factors of p; ctx is
// checked once per matrix row
func (f *Factorizer) CountIrreducible(ctx context.Context, p poly.Polynomial) (int, error) {
	if p.IsZero() {
		return 0, ErrZeroPolynomial
	}
	m := p.Monic()
	n := m.Degree()
	if n == 0 {
		return 0, nil
	}

	xq := poly.X().FrobeniusMod(m)
	rows := make([][]field.Element, n)
	power := poly.One()
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		row := make([]field.Element, n)
		for j := 0; j < n; j++ {
			row[j] = power.Coefficient(j)
		}
		row[i] = row[i].Sub(field.One())
		rows[i] = row
		power = power.Mul(xq).Mod(m)
	}

	return n - field.Rank(rows), nil
}
