package poly

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/holiman/uint256"
	"github.com/ppopth/gf128-factor/field"
)

func newTestRand(seed byte) *rand.ChaCha8 {
	var s [32]byte
	s[0] = seed
	return rand.NewChaCha8(s)
}

func randomPoly(t *testing.T, r *rand.ChaCha8, degree int) Polynomial {
	t.Helper()
	p, err := Random(r, degree)
	if err != nil {
		t.Fatalf("Random polynomial generation failed: %v", err)
	}
	return p
}

func elem(v uint64) field.Element {
	return field.FromUint64(v)
}

func TestCanonicalForm(t *testing.T) {
	p := New(elem(1), elem(2), field.Zero(), field.Zero())
	if p.Len() != 2 || p.Degree() != 1 {
		t.Errorf("trailing zeros should be trimmed, got len %d", p.Len())
	}
	if !New().IsZero() || !New(field.Zero(), field.Zero()).IsZero() {
		t.Errorf("empty and all-zero inputs should give the zero polynomial")
	}
	if Zero().Len() != 1 || Zero().Degree() != 0 {
		t.Errorf("zero polynomial should be a single coefficient")
	}
	var unset Polynomial
	if !unset.IsZero() || !unset.Equal(Zero()) {
		t.Errorf("zero value should behave as the zero polynomial")
	}
	if !New(elem(5), elem(7)).Equal(New(elem(5), elem(7), field.Zero())) {
		t.Errorf("equality should ignore trailing zeros")
	}
}

func TestNoAliasing(t *testing.T) {
	coeffs := []field.Element{elem(1), elem(2), elem(3)}
	p := New(coeffs...)
	coeffs[0] = elem(9)
	if !p.Coefficient(0).Equal(elem(1)) {
		t.Errorf("New should copy its input")
	}

	out := p.Coefficients()
	out[1] = elem(9)
	if !p.Coefficient(1).Equal(elem(2)) {
		t.Errorf("Coefficients should return a copy")
	}

	q := p.Add(Zero())
	if &q.coeffs[0] == &p.coeffs[0] {
		t.Errorf("Add should allocate a fresh result")
	}
}

func TestAddMul(t *testing.T) {
	// (x + 1)(x + 1) = x^2 + 1 in characteristic 2
	xPlusOne := New(elem(1), elem(1))
	if got := xPlusOne.Mul(xPlusOne); !got.Equal(New(elem(1), field.Zero(), elem(1))) {
		t.Errorf("(x+1)^2 should be x^2+1, got %s", got)
	}
	if !xPlusOne.Add(xPlusOne).IsZero() {
		t.Errorf("p + p should be zero")
	}
	if !xPlusOne.Sub(X()).IsOne() {
		t.Errorf("(x+1) - x should be one")
	}
	if !xPlusOne.Mul(Zero()).IsZero() {
		t.Errorf("p * 0 should be zero")
	}

	r := newTestRand(1)
	a, b, c := randomPoly(t, r, 4), randomPoly(t, r, 3), randomPoly(t, r, 6)
	if !a.Mul(b.Add(c)).Equal(a.Mul(b).Add(a.Mul(c))) {
		t.Errorf("multiplication should distribute over addition")
	}
	if !a.Mul(b).Equal(b.Mul(a)) {
		t.Errorf("multiplication should commute")
	}
	if a.Mul(b).Degree() != 7 {
		t.Errorf("degree of product should be 7, got %d", a.Mul(b).Degree())
	}
	if !a.Square().Equal(a.Mul(a)) {
		t.Errorf("Square should match Mul")
	}
}

func TestDivRem(t *testing.T) {
	r := newTestRand(2)
	for i := 0; i < 20; i++ {
		a := randomPoly(t, r, 3+i%5)
		b := randomPoly(t, r, 1+i%4)
		q, rem, err := a.DivRem(b)
		if err != nil {
			t.Fatal(err)
		}
		if rem.Degree() >= b.Degree() && !rem.IsZero() {
			t.Errorf("remainder degree %d should be below divisor degree %d", rem.Degree(), b.Degree())
		}
		if !q.Mul(b).Add(rem).Equal(a) {
			t.Errorf("q*b + r should equal a")
		}
		if !a.Div(b).Equal(q) || !a.Mod(b).Equal(rem) {
			t.Errorf("Div and Mod should match DivRem")
		}
	}

	// Exact division
	a, b := randomPoly(t, r, 3), randomPoly(t, r, 2)
	if !a.Mul(b).Div(b).Equal(a) || !a.Mul(b).Mod(b).IsZero() {
		t.Errorf("exact division failed")
	}

	// Lower degree dividend
	q, rem, err := b.DivRem(a)
	if err != nil || !q.IsZero() || !rem.Equal(b) {
		t.Errorf("dividing by a higher degree polynomial should give (0, dividend)")
	}
}

func TestDivisionByZero(t *testing.T) {
	_, _, err := X().DivRem(Zero())
	if !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("expected ErrDivisionByZero, got %v", err)
	}

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Mod by zero should panic")
		}
	}()
	X().Mod(Zero())
}

func TestGcd(t *testing.T) {
	r := newTestRand(3)
	common := randomPoly(t, r, 2)
	a := common.Mul(randomPoly(t, r, 3))
	b := common.Mul(randomPoly(t, r, 2))

	g := Gcd(a, b)
	if !a.Mod(g).IsZero() || !b.Mod(g).IsZero() {
		t.Errorf("gcd should divide both inputs")
	}
	if !g.Monic().Equal(common.Monic()) {
		t.Errorf("gcd should be the common factor, got %s", g.Monic())
	}
	if !Gcd(a, Zero()).Equal(a) {
		t.Errorf("gcd(a, 0) should be a")
	}

	// x and x+1 are coprime
	if g := Gcd(X(), New(elem(1), elem(1))); g.Degree() != 0 {
		t.Errorf("gcd of coprime polynomials should be constant, got %s", g)
	}
}

func TestMonic(t *testing.T) {
	r := newTestRand(4)
	for i := 0; i < 20; i++ {
		p := randomPoly(t, r, i%6)
		m := p.Monic()
		if !m.IsMonic() {
			t.Errorf("Monic should produce a monic polynomial")
		}
		if !m.Monic().Equal(m) {
			t.Errorf("Monic should be idempotent")
		}
		if !m.Scale(p.Leading()).Equal(p) {
			t.Errorf("scaling back should give the original polynomial")
		}
	}

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Monic of zero should panic")
		}
	}()
	Zero().Monic()
}

func TestDerivative(t *testing.T) {
	// d/dx (c0 + c1 x + c2 x^2 + c3 x^3 + c4 x^4) = c1 + c3 x^2
	p := New(elem(10), elem(11), elem(12), elem(13), elem(14))
	expected := New(elem(11), field.Zero(), elem(13))
	if got := p.Derivative(); !got.Equal(expected) {
		t.Errorf("expected %s, got %s", expected, got)
	}
	if !Constant(elem(5)).Derivative().IsZero() {
		t.Errorf("derivative of a constant should be zero")
	}

	// Squares have zero derivative
	r := newTestRand(5)
	q := randomPoly(t, r, 3)
	if !q.Mul(q).Derivative().IsZero() {
		t.Errorf("derivative of a square should vanish in characteristic 2")
	}
}

func TestSqrt(t *testing.T) {
	r := newTestRand(6)
	for i := 0; i < 10; i++ {
		q := randomPoly(t, r, i%5)
		root, err := q.Mul(q).Sqrt()
		if err != nil {
			t.Fatalf("square should have a root: %v", err)
		}
		if !root.Equal(q) {
			t.Errorf("sqrt(q^2) should be q")
		}
	}

	if _, err := New(elem(1), elem(1)).Sqrt(); !errors.Is(err, ErrNotSquare) {
		t.Errorf("x+1 is not a square, got %v", err)
	}
}

func TestPowMod(t *testing.T) {
	r := newTestRand(7)
	m := randomPoly(t, r, 5)
	p := randomPoly(t, r, 7)

	expected := One()
	for i := 0; i < 13; i++ {
		expected = expected.Mul(p).Mod(m)
	}
	if got := p.PowMod(uint256.NewInt(13), m); !got.Equal(expected) {
		t.Errorf("p^13 mod m mismatch: expected %s, got %s", expected, got)
	}
	if got := p.PowMod(uint256.NewInt(0), m); !got.IsOne() {
		t.Errorf("p^0 should be one, got %s", got)
	}

	// Exponents wider than a machine word
	twoTo127 := new(uint256.Int).Lsh(uint256.NewInt(1), 127)
	twoTo128 := new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	viaSquare := p.PowMod(twoTo127, m).PowMod(uint256.NewInt(2), m)
	direct := p.PowMod(twoTo128, m)
	if !viaSquare.Equal(direct) {
		t.Errorf("(p^(2^127))^2 should equal p^(2^128)")
	}
	if !p.FrobeniusMod(m).Equal(direct) {
		t.Errorf("FrobeniusMod should equal PowMod(2^128)")
	}

	// Constants are fixed by the Frobenius map
	c := Constant(elem(0xabcdef))
	if !c.FrobeniusMod(m).Equal(c) {
		t.Errorf("constants should be fixed by x -> x^(2^128)")
	}
}

func TestRandom(t *testing.T) {
	r := newTestRand(8)
	for degree := 0; degree < 8; degree++ {
		p := randomPoly(t, r, degree)
		if p.Degree() != degree {
			t.Errorf("expected degree %d, got %d", degree, p.Degree())
		}
	}
	if _, err := Random(r, -1); err == nil {
		t.Errorf("negative degree should be rejected")
	}
}

func TestEval(t *testing.T) {
	// (x + a)(x + b) vanishes at a and b
	a, b := elem(0x1234), field.New(0xdead, 0xbeef)
	p := New(a, field.One()).Mul(New(b, field.One()))
	if !p.Eval(a).IsZero() || !p.Eval(b).IsZero() {
		t.Errorf("polynomial should vanish at its roots")
	}
	if !p.Eval(field.Zero()).Equal(a.Mul(b)) {
		t.Errorf("p(0) should be the constant term")
	}
}

func TestCoefficientsDiff(t *testing.T) {
	p := New(elem(1), elem(2), elem(3))
	want := []field.Element{elem(1), elem(2), elem(3)}
	if diff := cmp.Diff(want, p.Coefficients()); diff != "" {
		t.Errorf("Coefficients mismatch (-want +got):\n%s", diff)
	}
}

func TestString(t *testing.T) {
	p := New(elem(1), field.Zero(), elem(2))
	expected := "0x00000000000000000000000000000002*x^2 + 0x00000000000000000000000000000001"
	if p.String() != expected {
		t.Errorf("expected %q, got %q", expected, p.String())
	}
	if Zero().String() != "0" {
		t.Errorf("zero should print as 0")
	}
}
