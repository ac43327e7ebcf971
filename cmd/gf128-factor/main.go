package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

var log = logging.Logger("cmd")

func init() {
	// Match GOMAXPROCS to the container CPU quota for the factoring workers
	_, _ = maxprocs.Set()
}

func newRootCommand() *cobra.Command {
	gopts := &GlobalOptions{}

	cmd := &cobra.Command{
		Use:   "gf128-factor",
		Short: "Factor polynomials over GF(2^128)",
		Long: `
gf128-factor factors polynomials over the GCM field GF(2^128) with the
Cantor-Zassenhaus algorithm.

Coefficients are given lowest degree first, each as a 16-byte GCM block in hex
(32 hex digits). The element 1 is 80000000000000000000000000000000.
`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		DisableAutoGenTag: true,

		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return gopts.PreRun()
		},
	}

	gopts.AddFlags(cmd.PersistentFlags())
	cmd.CompletionOptions.DisableDefaultCmd = true

	cmd.AddCommand(
		newRootsCommand(gopts),
		newFactorCommand(gopts),
		newSquareFreeCommand(gopts),
		newDistinctDegreeCommand(gopts),
		newCountCommand(gopts),
		newRecoverKeyCommand(gopts),
		newServeCommand(gopts),
		newRemoteCommand(gopts),
	)
	return cmd
}

func createGlobalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func main() {
	ctx, cancel := createGlobalContext()
	defer cancel()

	err := newRootCommand().ExecuteContext(ctx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}
