package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/netip"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ppopth/gf128-factor/binding"
	"github.com/ppopth/gf128-factor/host"
	"github.com/ppopth/gf128-factor/service"
)

// RemoteOptions collects the options for the remote command
type RemoteOptions struct {
	Retries int
}

func (opts *RemoteOptions) AddFlags(f *pflag.FlagSet) {
	f.IntVar(&opts.Retries, "retries", 3, "retry a failed connection up to `n` times")
}

func newRemoteCommand(gopts *GlobalOptions) *cobra.Command {
	var opts RemoteOptions

	cmd := &cobra.Command{
		Use:   "remote address operation coefficient...",
		Short: "Send a request to a factoring server",
		Long: `
The "remote" command connects to a server started with "serve" and runs one
operation there. The operation is one of roots, factor, square-free,
distinct-degree or count, and the output matches the local command.
`,
		Args:              cobra.MinimumNArgs(3),
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd.Context(), gopts)
			defer cancel()
			return runRemote(ctx, opts, args[0], args[1], args[2:], cmd.OutOrStdout())
		},
	}
	opts.AddFlags(cmd.Flags())
	return cmd
}

var remoteOps = map[string]bool{
	"roots":           true,
	"factor":          true,
	"square-free":     true,
	"distinct-degree": true,
	"count":           true,
}

func runRemote(ctx context.Context, opts RemoteOptions, address, op string, coeffs []string, out io.Writer) error {
	if !remoteOps[op] {
		return fmt.Errorf("unknown operation %q", op)
	}
	p, err := binding.DecodePolynomial(coeffs)
	if err != nil {
		return err
	}
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return err
	}

	h, err := host.NewHost(host.WithAddrPort(netip.AddrPortFrom(netip.IPv4Unspecified(), 0)))
	if err != nil {
		return err
	}
	defer h.Close()

	client, err := service.Dial(ctx, h, addr, opts.Retries)
	if err != nil {
		return err
	}

	switch op {
	case "roots":
		roots, err := client.Roots(ctx, p)
		if err != nil {
			return err
		}
		for _, r := range roots {
			fmt.Fprintln(out, binding.EncodeElement(r))
		}
	case "factor":
		factors, err := client.Factor(ctx, p)
		if err != nil {
			return err
		}
		for _, q := range factors {
			printPolynomial(out, q)
		}
	case "square-free":
		sf, err := client.SquareFree(ctx, p)
		if err != nil {
			return err
		}
		printPolynomial(out, sf)
	case "distinct-degree":
		groups, err := client.DistinctDegree(ctx, p)
		if err != nil {
			return err
		}
		for _, g := range groups {
			fmt.Fprintf(out, "%d: ", g.Degree)
			printPolynomial(out, g.Poly)
		}
	case "count":
		n, err := client.CountIrreducible(ctx, p)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, n)
	}
	return nil
}
