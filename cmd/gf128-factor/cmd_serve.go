package main

import (
	"context"
	"fmt"
	"io"
	"net/netip"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"github.com/ppopth/gf128-factor/host"
	"github.com/ppopth/gf128-factor/service"
)

// ServeOptions collects the options for the serve command
type ServeOptions struct {
	Listen       string
	MaxTimeout   time.Duration
	MaxDegree    int
	CacheSize    int
	ReplayWindow time.Duration
	StatsEvery   time.Duration
	Rate         float64
	Burst        int
}

func (opts *ServeOptions) AddFlags(f *pflag.FlagSet) {
	f.StringVar(&opts.Listen, "listen", "0.0.0.0:"+strconv.Itoa(host.DefaultPort), "UDP `address` to accept QUIC connections on")
	f.DurationVar(&opts.MaxTimeout, "max-timeout", service.DefaultMaxTimeout, "upper bound on the time spent per request")
	f.IntVar(&opts.MaxDegree, "max-degree", service.DefaultMaxDegree, "reject polynomials of degree above `n`")
	f.IntVar(&opts.CacheSize, "cache-size", service.DefaultCacheSize, "number of results to keep (0 disables the cache)")
	f.DurationVar(&opts.ReplayWindow, "replay-window", service.DefaultReplayWindow, "how long job IDs are remembered per peer")
	f.Float64Var(&opts.Rate, "rate", 0, "allow each peer `n` requests per second (0 means unlimited)")
	f.IntVar(&opts.Burst, "burst", 8, "number of requests a peer may send at once when --rate is set")
	f.DurationVar(&opts.StatsEvery, "stats-interval", time.Minute, "log traffic counters every `duration` (0 disables)")
}

func newServeCommand(gopts *GlobalOptions) *cobra.Command {
	var opts ServeOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Answer factoring requests from peers over QUIC",
		Long: `
The "serve" command runs a factoring server until it is interrupted. Peers
connect over QUIC with a self-signed certificate and send one request per stream.
`,
		Args:              cobra.NoArgs,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts, *gopts, cmd.OutOrStdout())
		},
	}
	opts.AddFlags(cmd.Flags())
	return cmd
}

func runServe(ctx context.Context, opts ServeOptions, gopts GlobalOptions, out io.Writer) error {
	addr, err := netip.ParseAddrPort(opts.Listen)
	if err != nil {
		return fmt.Errorf("invalid --listen: %w", err)
	}
	f, err := gopts.Factorizer()
	if err != nil {
		return err
	}

	h, err := host.NewHost(host.WithAddrPort(addr))
	if err != nil {
		return err
	}
	defer h.Close()

	sopts := []service.ServerOption{
		service.WithFactorizer(f),
		service.WithMaxTimeout(opts.MaxTimeout),
		service.WithMaxDegree(opts.MaxDegree),
		service.WithCacheSize(opts.CacheSize),
		service.WithReplayWindow(opts.ReplayWindow),
	}
	if opts.Rate > 0 {
		sopts = append(sopts, service.WithRateLimit(rate.Limit(opts.Rate), opts.Burst))
	}
	s, err := service.NewServer(h, sopts...)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Fprintf(out, "serving as %s on %s\n", h.ID(), h.LocalAddr())

	var tick <-chan time.Time
	if opts.StatsEvery > 0 {
		ticker := time.NewTicker(opts.StatsEvery)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			stats := h.Stats()
			log.Infof("shutting down after serving %d requests (%d bytes in, %d bytes out)", stats.Served, stats.BytesReceived, stats.BytesSent)
			return nil
		case <-tick:
			stats := h.Stats()
			log.Infof("%d peers, %d requests served, %d bytes in, %d bytes out", len(h.Peers()), stats.Served, stats.BytesReceived, stats.BytesSent)
		}
	}
}
