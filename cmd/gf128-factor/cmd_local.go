package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ppopth/gf128-factor/binding"
	"github.com/ppopth/gf128-factor/field"
	"github.com/ppopth/gf128-factor/host"
	"github.com/ppopth/gf128-factor/poly"
)

func newRootsCommand(gopts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "roots coefficient...",
		Short: "Print the distinct roots of a polynomial",
		Long: `
The "roots" command prints every distinct root of the polynomial in the field,
one GCM block per line.
`,
		Args:              cobra.MinimumNArgs(1),
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd.Context(), gopts)
			defer cancel()
			return runRoots(ctx, *gopts, args, cmd.OutOrStdout())
		},
	}
}

func runRoots(ctx context.Context, gopts GlobalOptions, args []string, out io.Writer) error {
	p, err := binding.DecodePolynomial(args)
	if err != nil {
		return err
	}
	f, err := gopts.Factorizer()
	if err != nil {
		return err
	}
	roots, err := f.Roots(ctx, p)
	if err != nil {
		return err
	}
	for _, r := range roots {
		fmt.Fprintln(out, binding.EncodeElement(r))
	}
	return nil
}

// maxBatchLineSize fits one maximum-size request frame of coefficients written in hex
const maxBatchLineSize = host.DefaultMaxMessageSize / field.ElementSize * (2*field.ElementSize + 1)

// FactorOptions collects the options for the factor command
type FactorOptions struct {
	Batch   bool
	Workers int
}

func (opts *FactorOptions) AddFlags(f *pflag.FlagSet) {
	f.BoolVar(&opts.Batch, "batch", false, "read one polynomial per line from stdin")
	f.IntVar(&opts.Workers, "workers", runtime.NumCPU(), "factor up to `n` batch polynomials concurrently")
}

func newFactorCommand(gopts *GlobalOptions) *cobra.Command {
	var opts FactorOptions

	cmd := &cobra.Command{
		Use:   "factor [coefficient...]",
		Short: "Print the irreducible factors of a polynomial",
		Long: `
The "factor" command prints the monic irreducible factors of the polynomial,
one per line, each repeated according to its multiplicity.

With --batch, polynomials are read from stdin one per line and the factors of
each are printed as a block followed by an empty line.
`,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd.Context(), gopts)
			defer cancel()
			if opts.Batch {
				return runFactorBatch(ctx, opts, *gopts, cmd.InOrStdin(), cmd.OutOrStdout())
			}
			return runFactor(ctx, *gopts, args, cmd.OutOrStdout())
		},
	}
	opts.AddFlags(cmd.Flags())
	return cmd
}

func runFactor(ctx context.Context, gopts GlobalOptions, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("no coefficients given")
	}
	p, err := binding.DecodePolynomial(args)
	if err != nil {
		return err
	}
	f, err := gopts.Factorizer()
	if err != nil {
		return err
	}
	factors, err := f.Factor(ctx, p)
	if err != nil {
		return err
	}
	for _, q := range factors {
		printPolynomial(out, q)
	}
	return nil
}

func runFactorBatch(ctx context.Context, opts FactorOptions, gopts GlobalOptions, in io.Reader, out io.Writer) error {
	var polys []poly.Polynomial
	scanner := bufio.NewScanner(in)
	scanner.Buffer(nil, maxBatchLineSize)
	for line := 1; scanner.Scan(); line++ {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		p, err := binding.DecodePolynomial(fields)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		polys = append(polys, p)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	f, err := gopts.Factorizer()
	if err != nil {
		return err
	}
	results, err := f.FactorAll(ctx, polys, opts.Workers)
	if err != nil {
		return err
	}
	for _, factors := range results {
		for _, q := range factors {
			printPolynomial(out, q)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func newSquareFreeCommand(gopts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:               "square-free coefficient...",
		Short:             "Print the monic square-free part of a polynomial",
		Args:              cobra.MinimumNArgs(1),
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd.Context(), gopts)
			defer cancel()
			return runSquareFree(ctx, *gopts, args, cmd.OutOrStdout())
		},
	}
}

func runSquareFree(ctx context.Context, gopts GlobalOptions, args []string, out io.Writer) error {
	p, err := binding.DecodePolynomial(args)
	if err != nil {
		return err
	}
	f, err := gopts.Factorizer()
	if err != nil {
		return err
	}
	sf, err := f.SquareFree(ctx, p)
	if err != nil {
		return err
	}
	printPolynomial(out, sf)
	return nil
}

func newDistinctDegreeCommand(gopts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "distinct-degree coefficient...",
		Short: "Group the factors of the square-free part by degree",
		Long: `
The "distinct-degree" command prints one line per group: the degree shared by
the irreducible factors in the group, then the coefficients of their product.
`,
		Args:              cobra.MinimumNArgs(1),
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd.Context(), gopts)
			defer cancel()
			return runDistinctDegree(ctx, *gopts, args, cmd.OutOrStdout())
		},
	}
}

func runDistinctDegree(ctx context.Context, gopts GlobalOptions, args []string, out io.Writer) error {
	p, err := binding.DecodePolynomial(args)
	if err != nil {
		return err
	}
	f, err := gopts.Factorizer()
	if err != nil {
		return err
	}
	sf, err := f.SquareFree(ctx, p)
	if err != nil {
		return err
	}
	groups, err := f.DistinctDegree(ctx, sf)
	if err != nil {
		return err
	}
	for _, g := range groups {
		fmt.Fprintf(out, "%d: ", g.Degree)
		printPolynomial(out, g.Poly)
	}
	return nil
}

func newCountCommand(gopts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "count coefficient...",
		Short: "Print the number of distinct irreducible factors",
		Long: `
The "count" command computes the number of distinct irreducible factors with
Berlekamp's rank formula, without factoring.
`,
		Args:              cobra.MinimumNArgs(1),
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd.Context(), gopts)
			defer cancel()
			return runCount(ctx, *gopts, args, cmd.OutOrStdout())
		},
	}
}

func runCount(ctx context.Context, gopts GlobalOptions, args []string, out io.Writer) error {
	p, err := binding.DecodePolynomial(args)
	if err != nil {
		return err
	}
	f, err := gopts.Factorizer()
	if err != nil {
		return err
	}
	n, err := f.CountIrreducible(ctx, p)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, n)
	return nil
}

func printPolynomial(out io.Writer, p poly.Polynomial) {
	fmt.Fprintln(out, strings.Join(binding.EncodePolynomial(p), " "))
}

func withTimeout(ctx context.Context, gopts *GlobalOptions) (context.Context, context.CancelFunc) {
	if gopts.Timeout > 0 {
		return context.WithTimeout(ctx, gopts.Timeout)
	}
	return context.WithCancel(ctx)
}
