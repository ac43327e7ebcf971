package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppopth/gf128-factor/binding"
	"github.com/ppopth/gf128-factor/field"
	"github.com/ppopth/gf128-factor/ghash"
)

func newRecoverKeyCommand(gopts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recover-key message message [message]",
		Short: "Recover the GHASH key from AES-GCM messages that reuse a nonce",
		Long: `
The "recover-key" command takes two messages encrypted under the same key and
nonce and prints every candidate for the GHASH key H. Each message is written as
additional-data:ciphertext:tag in hex; the additional data may be empty.

With a third message under the same key and nonce, only the candidate that
reproduces its tag is printed.
`,
		Args:              cobra.RangeArgs(2, 3),
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd.Context(), gopts)
			defer cancel()
			return runRecoverKey(ctx, *gopts, args, cmd.OutOrStdout())
		},
	}
}

func runRecoverKey(ctx context.Context, gopts GlobalOptions, args []string, out io.Writer) error {
	msgs := make([]ghash.Message, len(args))
	for i, arg := range args {
		m, err := parseMessage(arg)
		if err != nil {
			return fmt.Errorf("message %d: %w", i+1, err)
		}
		msgs[i] = m
	}

	f, err := gopts.Factorizer()
	if err != nil {
		return err
	}
	candidates, err := ghash.RecoverAuthKey(ctx, f, msgs[0], msgs[1])
	if err != nil {
		return err
	}
	log.Infof("found %d candidates for the hash key", len(candidates))

	if len(msgs) == 3 {
		h, ok := ghash.Identify(candidates, msgs[0], msgs[2])
		if !ok {
			return fmt.Errorf("no candidate reproduces the tag of message 3")
		}
		candidates = []field.Element{h}
	}
	for _, h := range candidates {
		fmt.Fprintln(out, binding.EncodeElement(h))
	}
	return nil
}

func parseMessage(s string) (ghash.Message, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return ghash.Message{}, fmt.Errorf("expected additional-data:ciphertext:tag, got %d fields", len(parts))
	}
	ad, err := hex.DecodeString(parts[0])
	if err != nil {
		return ghash.Message{}, fmt.Errorf("additional data: %w", err)
	}
	ct, err := hex.DecodeString(parts[1])
	if err != nil {
		return ghash.Message{}, fmt.Errorf("ciphertext: %w", err)
	}
	tag, err := hex.DecodeString(parts[2])
	if err != nil {
		return ghash.Message{}, fmt.Errorf("tag: %w", err)
	}
	if len(tag) != ghash.BlockSize {
		return ghash.Message{}, fmt.Errorf("tag must be %d bytes, got %d", ghash.BlockSize, len(tag))
	}
	return ghash.Message{AdditionalData: ad, Ciphertext: ct, Tag: [ghash.BlockSize]byte(tag)}, nil
}
