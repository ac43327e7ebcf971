package factor

import (
	"context"
	"fmt"

	"github.com/ppopth/gf128-factor/poly"
	"golang.org/x/sync/errgroup"
)

// FactorAll factors independent polynomials concurrently with at most workers goroutines
// Result i holds the factors of polys[i]. The first failure cancels the remaining work.
func (f *Factorizer) FactorAll(ctx context.Context, polys []poly.Polynomial, workers int) ([][]poly.Polynomial, error) {
	if workers < 1 {
		return nil, fmt.Errorf("invalid worker count %d", workers)
	}

	results := make([][]poly.Polynomial, len(polys))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range polys {
		g.Go(func() error {
			factors, err := f.Factor(ctx, p)
			if err != nil {
				return fmt.Errorf("polynomial %d: %w", i, err)
			}
			results[i] = factors
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Debugf("factored batch of %d polynomials with %d workers", len(polys), workers)
	return results, nil
}

// FactorAll factors independent polynomials concurrently using the default Factorizer
func FactorAll(ctx context.Context, polys []poly.Polynomial, workers int) ([][]poly.Polynomial, error) {
	return defaultFactorizer.FactorAll(ctx, polys, workers)
}
