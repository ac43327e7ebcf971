package poly

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/holiman/uint256"
	"github.com/ppopth/gf128-factor/field"
)

var (
	// ErrDivisionByZero is returned when dividing by the zero polynomial
	ErrDivisionByZero = errors.New("division by zero polynomial")
	// ErrNotSquare is returned by Sqrt when the polynomial has a nonzero odd-degree term
	ErrNotSquare = errors.New("polynomial is not a perfect square")
)

// Polynomial represents a polynomial over GF(2^128)
// Index i of the coefficient slice holds the coefficient of x^i. The slice is always
// trimmed so that the leading coefficient is nonzero, except for the zero polynomial
// which is the single coefficient 0. Polynomials are values: no operation mutates
// its receiver or arguments, and every result owns a fresh slice.
type Polynomial struct {
	coeffs []field.Element
}

// New creates a polynomial from coefficients in increasing degree order
func New(coeffs ...field.Element) Polynomial {
	return fromOwned(append([]field.Element(nil), coeffs...))
}

// fromOwned trims and wraps a slice that the caller hands over
func fromOwned(coeffs []field.Element) Polynomial {
	n := len(coeffs)
	for n > 1 && coeffs[n-1].IsZero() {
		n--
	}
	if n == 0 {
		return Polynomial{coeffs: []field.Element{field.Zero()}}
	}
	return Polynomial{coeffs: coeffs[:n]}
}

// Zero returns the zero polynomial
func Zero() Polynomial {
	return Polynomial{coeffs: []field.Element{field.Zero()}}
}

// One returns the constant polynomial 1
func One() Polynomial {
	return Polynomial{coeffs: []field.Element{field.One()}}
}

// Constant returns the constant polynomial c
func Constant(c field.Element) Polynomial {
	return Polynomial{coeffs: []field.Element{c}}
}

// X returns the monomial x
func X() Polynomial {
	return Polynomial{coeffs: []field.Element{field.Zero(), field.One()}}
}

// Monomial returns c*x^n
func Monomial(c field.Element, n int) Polynomial {
	coeffs := make([]field.Element, n+1)
	coeffs[n] = c
	return fromOwned(coeffs)
}

// Random returns a polynomial of exactly the given degree with uniformly random coefficients
func Random(r io.Reader, degree int) (Polynomial, error) {
	if degree < 0 {
		return Polynomial{}, fmt.Errorf("invalid degree %d", degree)
	}
	coeffs := make([]field.Element, degree+1)
	for i := range coeffs {
		c, err := field.Random(r)
		if err != nil {
			return Polynomial{}, err
		}
		coeffs[i] = c
	}
	// Resample the leading coefficient until the degree is exact
	for coeffs[degree].IsZero() {
		c, err := field.Random(r)
		if err != nil {
			return Polynomial{}, err
		}
		coeffs[degree] = c
	}
	return Polynomial{coeffs: coeffs}, nil
}

// Len returns the number of coefficients, which is Degree()+1
func (p Polynomial) Len() int {
	if len(p.coeffs) == 0 {
		return 1
	}
	return len(p.coeffs)
}

// Degree returns the degree of the polynomial; the zero polynomial has degree 0
func (p Polynomial) Degree() int {
	return p.Len() - 1
}

// Coefficient returns the coefficient of x^i
func (p Polynomial) Coefficient(i int) field.Element {
	if i < 0 || i >= len(p.coeffs) {
		return field.Zero()
	}
	return p.coeffs[i]
}

// Coefficients returns a copy of the coefficients in increasing degree order
func (p Polynomial) Coefficients() []field.Element {
	if len(p.coeffs) == 0 {
		return []field.Element{field.Zero()}
	}
	return append([]field.Element(nil), p.coeffs...)
}

// Leading returns the coefficient of the highest degree term
func (p Polynomial) Leading() field.Element {
	return p.Coefficient(p.Len() - 1)
}

// IsZero returns true for the zero polynomial
func (p Polynomial) IsZero() bool {
	return p.Len() == 1 && p.Coefficient(0).IsZero()
}

// IsOne returns true for the constant polynomial 1
func (p Polynomial) IsOne() bool {
	return p.Len() == 1 && p.Coefficient(0).IsOne()
}

// IsMonic returns true if the leading coefficient is one
func (p Polynomial) IsMonic() bool {
	return p.Leading().IsOne()
}

// Equal returns true if both polynomials have the same coefficients
func (p Polynomial) Equal(q Polynomial) bool {
	if p.Len() != q.Len() {
		return false
	}
	for i := 0; i < p.Len(); i++ {
		if !p.Coefficient(i).Equal(q.Coefficient(i)) {
			return false
		}
	}
	return true
}

// Eval evaluates the polynomial at x using Horner's rule
func (p Polynomial) Eval(x field.Element) field.Element {
	var result field.Element
	for i := p.Len() - 1; i >= 0; i-- {
		result = result.Mul(x).Add(p.Coefficient(i))
	}
	return result
}

// Add returns p + q
func (p Polynomial) Add(q Polynomial) Polynomial {
	n := max(p.Len(), q.Len())
	out := make([]field.Element, n)
	for i := range out {
		out[i] = p.Coefficient(i).Add(q.Coefficient(i))
	}
	return fromOwned(out)
}

// Sub returns p - q, identical to Add in characteristic 2
func (p Polynomial) Sub(q Polynomial) Polynomial {
	return p.Add(q)
}

// Scale returns c*p
func (p Polynomial) Scale(c field.Element) Polynomial {
	out := make([]field.Element, p.Len())
	for i := range out {
		out[i] = p.Coefficient(i).Mul(c)
	}
	return fromOwned(out)
}

// Mul returns p * q
func (p Polynomial) Mul(q Polynomial) Polynomial {
	if p.IsZero() || q.IsZero() {
		return Zero()
	}
	out := make([]field.Element, p.Len()+q.Len()-1)
	for i, a := range p.coeffs {
		if a.IsZero() {
			continue
		}
		for j, b := range q.coeffs {
			out[i+j] = out[i+j].Add(a.Mul(b))
		}
	}
	return fromOwned(out)
}

// Square returns p * p
// In characteristic 2 the cross terms cancel, so only c_i^2 x^(2i) remain.
func (p Polynomial) Square() Polynomial {
	out := make([]field.Element, 2*p.Len()-1)
	for i := 0; i < p.Len(); i++ {
		out[2*i] = p.Coefficient(i).Square()
	}
	return fromOwned(out)
}

// DivRem returns the quotient and remainder of p divided by d
func (p Polynomial) DivRem(d Polynomial) (quotient, remainder Polynomial, err error) {
	if d.IsZero() {
		return Polynomial{}, Polynomial{}, ErrDivisionByZero
	}
	if p.Degree() < d.Degree() {
		return Zero(), New(p.coeffs...), nil
	}

	rem := p.Coefficients()
	dLen := d.Len()
	q := make([]field.Element, len(rem)-dLen+1)
	invLead := d.Leading().Inv()

	// Eliminate the top coefficient of the remainder one degree at a time
	for i := len(rem) - 1; i >= dLen-1; i-- {
		if rem[i].IsZero() {
			continue
		}
		factor := rem[i].Mul(invLead)
		shift := i - (dLen - 1)
		q[shift] = factor
		for j := 0; j < dLen; j++ {
			rem[shift+j] = rem[shift+j].Sub(factor.Mul(d.coeffs[j]))
		}
	}
	return fromOwned(q), fromOwned(rem[:dLen-1]), nil
}

// Div returns the quotient p / d. It panics if d is the zero polynomial.
func (p Polynomial) Div(d Polynomial) Polynomial {
	q, _, err := p.DivRem(d)
	if err != nil {
		panic(err)
	}
	return q
}

// Mod returns the remainder p % d. It panics if d is the zero polynomial.
func (p Polynomial) Mod(d Polynomial) Polynomial {
	_, r, err := p.DivRem(d)
	if err != nil {
		panic(err)
	}
	return r
}

// Gcd returns a greatest common divisor of a and b
// The result is not normalized; call Monic on it for a canonical representative.
func Gcd(a, b Polynomial) Polynomial {
	for !b.IsZero() {
		a, b = b, a.Mod(b)
	}
	return a
}

// Monic returns p divided by its leading coefficient. It panics on the zero polynomial.
func (p Polynomial) Monic() Polynomial {
	if p.IsZero() {
		panic("zero polynomial has no monic form")
	}
	return p.Scale(p.Leading().Inv())
}

// Derivative returns the formal derivative
// Even-degree terms vanish because their integer multiplier is 0 mod 2.
func (p Polynomial) Derivative() Polynomial {
	if p.Len() == 1 {
		return Zero()
	}
	out := make([]field.Element, p.Len()-1)
	for i := 1; i < p.Len(); i += 2 {
		out[i-1] = p.Coefficient(i)
	}
	return fromOwned(out)
}

// Sqrt returns q such that q*q = p
// Only polynomials without odd-degree terms are squares in characteristic 2.
func (p Polynomial) Sqrt() (Polynomial, error) {
	out := make([]field.Element, p.Len()/2+1)
	for i := 0; i < p.Len(); i++ {
		c := p.Coefficient(i)
		if i%2 == 1 {
			if !c.IsZero() {
				return Polynomial{}, ErrNotSquare
			}
			continue
		}
		out[i/2] = c.Sqrt()
	}
	return fromOwned(out), nil
}

// PowMod returns p^exp mod m. It panics if m is the zero polynomial.
func (p Polynomial) PowMod(exp *uint256.Int, m Polynomial) Polynomial {
	base := p.Mod(m)
	result := One().Mod(m)
	for i := exp.BitLen() - 1; i >= 0; i-- {
		result = result.Square().Mod(m)
		if exp[i/64]>>(i%64)&1 == 1 {
			result = result.Mul(base).Mod(m)
		}
	}
	return result
}

// FrobeniusMod returns p^(2^128) mod m
func (p Polynomial) FrobeniusMod(m Polynomial) Polynomial {
	result := p.Mod(m)
	for i := 0; i < 128; i++ {
		result = result.Square().Mod(m)
	}
	return result
}

// String returns a human readable form, highest degree first
func (p Polynomial) String() string {
	if p.IsZero() {
		return "0"
	}
	var terms []string
	for i := p.Len() - 1; i >= 0; i-- {
		c := p.Coefficient(i)
		if c.IsZero() {
			continue
		}
		switch i {
		case 0:
			terms = append(terms, c.String())
		case 1:
			terms = append(terms, c.String()+"*x")
		default:
			terms = append(terms, fmt.Sprintf("%s*x^%d", c, i))
		}
	}
	return strings.Join(terms, " + ")
}
