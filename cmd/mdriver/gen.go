// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wundergraph/go-malloc/internal/trace"
)

type genFlags struct {
	seed    uint64
	ops     int
	ids     int
	maxSize int
	out     string
}

func newGenCmd() *cobra.Command {
	var f genFlags
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate a random trace",
		Long: `The gen command writes a random trace. The same flags always produce
the same trace.

Example:
  mdriver gen --ops 10000 --max-size 8192 --out random.rep
  mdriver gen --seed 7 | mdriver run /dev/stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGen(f)
		},
	}
	cmd.Flags().Uint64Var(&f.seed, "seed", 1, "Random seed")
	cmd.Flags().IntVar(&f.ops, "ops", 1000, "Operations before the closing frees")
	cmd.Flags().IntVar(&f.ids, "ids", 0, "Most block ids to use (default: ops)")
	cmd.Flags().IntVar(&f.maxSize, "max-size", 4096, "Largest request in bytes")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Output file (default: stdout)")
	return cmd
}

func runGen(f genFlags) error {
	if f.ops <= 0 {
		return fmt.Errorf("--ops must be positive, got %d", f.ops)
	}
	tr := trace.Generate(trace.Config{
		Seed:    f.seed,
		Ops:     f.ops,
		IDs:     f.ids,
		MaxSize: f.maxSize,
	})

	var w io.Writer = stdout
	if f.out != "" {
		fh, err := os.Create(f.out)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer fh.Close()
		w = fh
	}
	if _, err := tr.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write trace: %w", err)
	}
	logger.Debug("trace generated", "ops", len(tr.Ops), "ids", tr.IDs, "heap_size", tr.HeapSize)
	return nil
}
