package factor

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"

	logging "github.com/ipfs/go-log/v2"
	"github.com/ppopth/gf128-factor/field"
	"github.com/ppopth/gf128-factor/poly"
)

var log = logging.Logger("factor")

var (
	// ErrZeroPolynomial is returned when factoring the zero polynomial
	ErrZeroPolynomial = errors.New("cannot factor the zero polynomial")
	// ErrDegreeMismatch is returned when the factor degree does not divide the polynomial degree
	ErrDegreeMismatch = errors.New("factor degree does not divide polynomial degree")
	// ErrTooManyAttempts is returned when equal-degree splitting exceeds its attempt budget
	ErrTooManyAttempts = errors.New("too many splitting attempts")
)

// Option configures a Factorizer during construction
type Option func(*Factorizer) error

// WithRand sets the entropy source used for splitting witnesses (default crypto/rand)
func WithRand(r io.Reader) Option {
	return func(f *Factorizer) error {
		if r == nil {
			return fmt.Errorf("entropy source is required")
		}
		f.rand = &lockedReader{r: r}
		return nil
	}
}

// WithMaxAttempts caps the number of witness draws per equal-degree split (0 means unbounded)
func WithMaxAttempts(n int) Option {
	return func(f *Factorizer) error {
		if n < 0 {
			return fmt.Errorf("invalid max attempts %d", n)
		}
		f.maxAttempts = n
		return nil
	}
}

// Factorizer runs the Cantor-Zassenhaus pipeline with a configurable entropy source
// A Factorizer is safe for concurrent use.
type Factorizer struct {
	rand        io.Reader // Entropy for witness polynomials
	maxAttempts int       // Witness draws allowed per EqualDegree call, 0 for no limit
}

// New creates a Factorizer and applies options
func New(opts ...Option) (*Factorizer, error) {
	f := &Factorizer{
		rand: crand.Reader,
	}
	for _, opt := range opts {
		err := opt(f)
		if err != nil {
			return nil, err
		}
	}
	return f, nil
}

var defaultFactorizer = &Factorizer{rand: crand.Reader}

// Factor returns the monic irreducible factors of p, each repeated according to its
// multiplicity, so that their product equals the monic form of p
func Factor(p poly.Polynomial) ([]poly.Polynomial, error) {
	return defaultFactorizer.Factor(context.Background(), p)
}

// Roots returns the distinct roots of p in GF(2^128)
func Roots(p poly.Polynomial) ([]field.Element, error) {
	return defaultFactorizer.Roots(context.Background(), p)
}

// EqualDegree splits a product of distinct irreducible factors of degree d
func EqualDegree(p poly.Polynomial, d int) ([]poly.Polynomial, error) {
	return defaultFactorizer.EqualDegree(context.Background(), p, d)
}

// Factor returns the monic irreducible factors of p with multiplicity
// Every stage checks ctx between iterations and returns its error once it is done.
func (f *Factorizer) Factor(ctx context.Context, p poly.Polynomial) ([]poly.Polynomial, error) {
	if p.IsZero() {
		return nil, ErrZeroPolynomial
	}

	terms, err := f.SquareFreeDecomposition(ctx, p)
	if err != nil {
		return nil, err
	}

	var factors []poly.Polynomial
	for _, term := range terms {
		groups, err := f.DistinctDegree(ctx, term.Poly)
		if err != nil {
			return nil, err
		}
		for _, group := range groups {
			irreducible := []poly.Polynomial{group.Poly}
			if group.Poly.Degree() != group.Degree {
				irreducible, err = f.EqualDegree(ctx, group.Poly, group.Degree)
				if err != nil {
					return nil, fmt.Errorf("failed to split degree-%d group: %w", group.Degree, err)
				}
			}
			for _, factor := range irreducible {
				for i := 0; i < term.Multiplicity; i++ {
					factors = append(factors, factor)
				}
			}
		}
	}
	log.Debugf("factored degree-%d polynomial into %d irreducible factors", p.Degree(), len(factors))
	return factors, nil
}

// Roots returns the distinct roots of p, the constant terms of its monic linear factors
func (f *Factorizer) Roots(ctx context.Context, p poly.Polynomial) ([]field.Element, error) {
	factors, err := f.Factor(ctx, p)
	if err != nil {
		return nil, err
	}

	var roots []field.Element
	seen := make(map[field.Element]struct{})
	for _, factor := range factors {
		if factor.Degree() != 1 {
			continue
		}
		// x + r vanishes at r in characteristic 2
		root := factor.Monic().Coefficient(0)
		if _, ok := seen[root]; ok {
			continue
		}
		seen[root] = struct{}{}
		roots = append(roots, root)
	}
	return roots, nil
}

// lockedReader serializes reads so one entropy source can feed concurrent factorizations
type lockedReader struct {
	mutex sync.Mutex
	r     io.Reader
}

func (lr *lockedReader) Read(p []byte) (int, error) {
	lr.mutex.Lock()
	defer lr.mutex.Unlock()
	return lr.r.Read(p)
}
