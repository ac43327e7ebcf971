package main

import (
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/pflag"

	"github.com/ppopth/gf128-factor/factor"
)

// GlobalOptions holds the flags shared by all commands
type GlobalOptions struct {
	LogLevel    string
	MaxAttempts int
	Timeout     time.Duration
	Seed        uint64
}

func (opts *GlobalOptions) AddFlags(f *pflag.FlagSet) {
	f.StringVar(&opts.LogLevel, "log-level", "error", "log `level` for all subsystems (debug|info|warn|error) (default: $GF128_LOG_LEVEL)")
	f.IntVar(&opts.MaxAttempts, "max-attempts", 0, "give up equal-degree splitting after `n` random draws (0 means unbounded)")
	f.DurationVar(&opts.Timeout, "timeout", 0, "abort after `duration` (default: no timeout)")
	f.Uint64Var(&opts.Seed, "seed", 0, "seed the splitting randomness for reproducible output (0 uses crypto/rand)")

	if level := os.Getenv("GF128_LOG_LEVEL"); level != "" {
		opts.LogLevel = level
	}
}

func (opts *GlobalOptions) PreRun() error {
	level, err := logging.LevelFromString(opts.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", opts.LogLevel, err)
	}
	logging.SetAllLoggers(level)
	if opts.MaxAttempts < 0 {
		return fmt.Errorf("invalid --max-attempts %d", opts.MaxAttempts)
	}
	if opts.Timeout < 0 {
		return fmt.Errorf("invalid --timeout %s", opts.Timeout)
	}
	return nil
}

// Factorizer builds a Factorizer from the global flags
func (opts *GlobalOptions) Factorizer() (*factor.Factorizer, error) {
	fopts := []factor.Option{factor.WithMaxAttempts(opts.MaxAttempts)}
	if opts.Seed != 0 {
		var seed [32]byte
		for i := 0; i < 8; i++ {
			seed[i] = byte(opts.Seed >> (8 * i))
		}
		fopts = append(fopts, factor.WithRand(rand.NewChaCha8(seed)))
	}
	return factor.New(fopts...)
}
