// SPDX-License-Identifier: Apache-2.0

package trace

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/wundergraph/go-malloc"
)

var (
	// ErrOverlap reports two live allocations sharing bytes.
	ErrOverlap = errors.New("trace: allocations overlap")
	// ErrCorrupt reports payload bytes that changed while the block was live.
	ErrCorrupt = errors.New("trace: payload corrupted")
	// ErrMisaligned reports a payload address that is not 16-byte aligned.
	ErrMisaligned = errors.New("trace: payload misaligned")
	// ErrLive reports an allocation for an id that is still live.
	ErrLive = errors.New("trace: id already allocated")
)

// ReplayError wraps the failure of a single operation.
type ReplayError struct {
	Index int
	Op    Op
	Err   error
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("trace: op %d (%s id %d): %v", e.Index, e.Op.Kind, e.Op.ID, e.Err)
}

func (e *ReplayError) Unwrap() error {
	return e.Err
}

// Options controls Replay.
type Options struct {
	// Check runs the heap consistency checker after every operation.
	Check  bool
	Logger *slog.Logger
}

// Result summarises a replay.
type Result struct {
	Ops         int
	PeakPayload int           // largest sum of live request sizes
	ArenaBytes  int           // arena size at the end of the run
	Utilization float64       // PeakPayload / ArenaBytes
	Extensions  int           // arena growths during the run
	Elapsed     time.Duration // time spent inside the allocator and checks
}

type span struct {
	start, end uintptr
	id         int
}

type replayer struct {
	h       *malloc.Heap
	ptrs    []malloc.Ptr
	sizes   []int
	live    []bool
	spans   []span // live payloads sorted by start
	payload int
	peak    int
}

// Replay runs tr against h, filling every payload with an id-specific
// pattern and verifying it, together with alignment and non-overlap of live
// payloads, as the trace goes.
func Replay(h *malloc.Heap, tr *Trace, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &replayer{
		h:     h,
		ptrs:  make([]malloc.Ptr, tr.IDs),
		sizes: make([]int, tr.IDs),
		live:  make([]bool, tr.IDs),
	}
	ext := h.Stats().Extensions

	start := time.Now()
	for i, op := range tr.Ops {
		if err := r.apply(op); err != nil {
			return Result{}, &ReplayError{Index: i, Op: op, Err: err}
		}
		if opts.Check {
			if err := h.Check(); err != nil {
				return Result{}, &ReplayError{Index: i, Op: op, Err: err}
			}
		}
	}
	elapsed := time.Since(start)

	res := Result{
		Ops:         len(tr.Ops),
		PeakPayload: r.peak,
		ArenaBytes:  h.Cap(),
		Extensions:  h.Stats().Extensions - ext,
		Elapsed:     elapsed,
	}
	if res.ArenaBytes > 0 {
		res.Utilization = float64(res.PeakPayload) / float64(res.ArenaBytes)
	}
	logger.Debug("trace replayed",
		"ops", res.Ops,
		"peak_payload", res.PeakPayload,
		"arena", res.ArenaBytes,
		"elapsed", res.Elapsed)
	return res, nil
}

func (r *replayer) apply(op Op) error {
	switch op.Kind {
	case Alloc:
		if r.live[op.ID] {
			return ErrLive
		}
		p, err := r.h.Malloc(op.Size)
		if err != nil {
			return err
		}
		return r.track(op.ID, p, op.Size)

	case Realloc:
		old, oldSize := r.ptrs[op.ID], r.sizes[op.ID]
		if r.live[op.ID] {
			if err := r.verify(op.ID, oldSize); err != nil {
				return err
			}
		}
		p, err := r.h.Realloc(old, op.Size)
		if err != nil {
			return err
		}
		if r.live[op.ID] {
			r.untrack(op.ID)
		}
		if p != malloc.Nil {
			keep := min(oldSize, op.Size)
			if !checkPattern(r.h.Bytes(p)[:keep], op.ID) {
				return fmt.Errorf("%w: first %d bytes not preserved by realloc", ErrCorrupt, keep)
			}
		}
		return r.track(op.ID, p, op.Size)

	case Free:
		if !r.live[op.ID] {
			return nil
		}
		if err := r.verify(op.ID, r.sizes[op.ID]); err != nil {
			return err
		}
		r.h.Free(r.ptrs[op.ID])
		r.untrack(op.ID)
		return nil
	}
	return fmt.Errorf("unknown operation %s", op.Kind)
}

func (r *replayer) track(id int, p malloc.Ptr, size int) error {
	if p == malloc.Nil {
		return nil
	}
	addr := uintptr(r.h.Pointer(p))
	if addr%16 != 0 {
		return fmt.Errorf("%w: %#x", ErrMisaligned, addr)
	}
	s := span{start: addr, end: addr + uintptr(size), id: id}
	i, _ := slices.BinarySearchFunc(r.spans, s.start, func(e span, t uintptr) int {
		return cmp.Compare(e.start, t)
	})
	if i > 0 && r.spans[i-1].end > s.start {
		return fmt.Errorf("%w: with id %d", ErrOverlap, r.spans[i-1].id)
	}
	if i < len(r.spans) && r.spans[i].start < s.end {
		return fmt.Errorf("%w: with id %d", ErrOverlap, r.spans[i].id)
	}
	r.spans = slices.Insert(r.spans, i, s)

	fillPattern(r.h.Bytes(p)[:size], id)
	r.ptrs[id], r.sizes[id], r.live[id] = p, size, true
	r.payload += size
	r.peak = max(r.peak, r.payload)
	return nil
}

func (r *replayer) untrack(id int) {
	addr := uintptr(r.h.Pointer(r.ptrs[id]))
	if i, ok := slices.BinarySearchFunc(r.spans, addr, func(e span, t uintptr) int {
		return cmp.Compare(e.start, t)
	}); ok {
		r.spans = slices.Delete(r.spans, i, i+1)
	}
	r.payload -= r.sizes[id]
	r.ptrs[id], r.sizes[id], r.live[id] = malloc.Nil, 0, false
}

func (r *replayer) verify(id, size int) error {
	if !checkPattern(r.h.Bytes(r.ptrs[id])[:size], id) {
		return fmt.Errorf("%w: id %d", ErrCorrupt, id)
	}
	return nil
}

func fillPattern(b []byte, id int) {
	for i := range b {
		b[i] = byte(id*31 + i)
	}
}

func checkPattern(b []byte, id int) bool {
	for i := range b {
		if b[i] != byte(id*31+i) {
			return false
		}
	}
	return true
}
