// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wundergraph/go-malloc"
	"github.com/wundergraph/go-malloc/internal/trace"
	"github.com/wundergraph/go-malloc/memory"
)

type runFlags struct {
	limit int
	chunk int
	mmap  bool
	check bool
	debug bool
}

// traceReport is the per-trace line of a run.
type traceReport struct {
	File        string        `json:"file"`
	Ops         int           `json:"ops"`
	PeakPayload int           `json:"peak_payload"`
	ArenaBytes  int           `json:"arena_bytes"`
	Utilization float64       `json:"utilization"`
	Extensions  int           `json:"extensions"`
	Elapsed     time.Duration `json:"elapsed_ns"`
	Error       string        `json:"error,omitempty"`
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run <trace>...",
		Short: "Replay traces and report utilisation and throughput",
		Long: `The run command replays each trace on a fresh heap. Every live payload is
filled with a pattern and verified before it is freed or reallocated.

Example:
  mdriver run traces/*.rep
  mdriver run --check --debug short1.rep
  mdriver run --mmap --limit 104857600 --json big.rep`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraces(args, f)
		},
	}
	cmd.Flags().IntVar(&f.limit, "limit", memory.DefaultLimit, "Arena reservation in bytes")
	cmd.Flags().IntVar(&f.chunk, "chunk", 128, "Minimum arena growth in bytes")
	cmd.Flags().BoolVar(&f.mmap, "mmap", false, "Reserve the arena with mmap instead of the Go heap")
	cmd.Flags().BoolVar(&f.check, "check", false, "Run the heap consistency checker after every operation")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "Validate pointers passed to free and realloc")
	return cmd
}

func runTraces(files []string, f runFlags) error {
	reports := make([]traceReport, 0, len(files))
	failed := 0
	for _, file := range files {
		rep := traceReport{File: file}
		res, err := runTrace(file, f)
		if err != nil {
			rep.Error = err.Error()
			failed++
			logger.Error("trace failed", "file", file, "error", err)
		} else {
			rep.Ops = res.Ops
			rep.PeakPayload = res.PeakPayload
			rep.ArenaBytes = res.ArenaBytes
			rep.Utilization = res.Utilization
			rep.Extensions = res.Extensions
			rep.Elapsed = res.Elapsed
		}
		reports = append(reports, rep)
	}

	if jsonOut {
		if err := printJSON(reports); err != nil {
			return err
		}
	} else {
		printReports(reports)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d traces failed", failed, len(files))
	}
	return nil
}

func runTrace(file string, f runFlags) (trace.Result, error) {
	fh, err := os.Open(file)
	if err != nil {
		return trace.Result{}, fmt.Errorf("failed to open trace: %w", err)
	}
	tr, err := trace.Parse(fh)
	fh.Close()
	if err != nil {
		return trace.Result{}, err
	}

	var mem malloc.Memory
	if f.mmap {
		m, err := memory.NewMmap(f.limit)
		if err != nil {
			return trace.Result{}, err
		}
		mem = m
	} else {
		mem = memory.NewSlice(f.limit)
	}

	h, err := malloc.New(mem,
		malloc.WithChunkSize(f.chunk),
		malloc.WithDebugChecks(f.debug),
		malloc.WithLogger(logger.With("trace", file)),
	)
	if err != nil {
		return trace.Result{}, err
	}
	defer h.Release()

	logger.Debug("replaying trace", "file", file, "ops", len(tr.Ops), "ids", tr.IDs)
	return trace.Replay(h, tr, trace.Options{Check: f.check, Logger: logger})
}

func printReports(reports []traceReport) {
	var (
		ops     int
		util    float64
		elapsed time.Duration
		ok      int
	)
	printInfo("%-32s %10s %12s %12s %7s %12s\n", "trace", "ops", "peak", "arena", "util", "Kops/s")
	for _, r := range reports {
		if r.Error != "" {
			printInfo("%-32s FAILED: %s\n", r.File, r.Error)
			continue
		}
		printInfo("%-32s %10d %12d %12d %6.1f%% %12.0f\n",
			r.File, r.Ops, r.PeakPayload, r.ArenaBytes, 100*r.Utilization, kops(r.Ops, r.Elapsed))
		ops += r.Ops
		util += r.Utilization
		elapsed += r.Elapsed
		ok++
	}
	if ok > 1 {
		printInfo("%-32s %10d %12s %12s %6.1f%% %12.0f\n",
			"total", ops, "", "", 100*util/float64(ok), kops(ops, elapsed))
	}
}

func kops(ops int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(ops) / d.Seconds() / 1000
}
