// SPDX-License-Identifier: Apache-2.0

package trace

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wundergraph/go-malloc"
	"github.com/wundergraph/go-malloc/memory"
)

func newHeap(t *testing.T, limit int) *malloc.Heap {
	t.Helper()
	h, err := malloc.New(memory.NewSlice(limit), malloc.WithDebugChecks(true))
	require.NoError(t, err)
	return h
}

func TestReplayShortTrace(t *testing.T) {
	tr, err := Parse(strings.NewReader(shortTrace))
	require.NoError(t, err)
	h := newHeap(t, 1<<20)

	res, err := Replay(h, tr, Options{Check: true})
	require.NoError(t, err)
	require.Equal(t, 5, res.Ops)
	require.Equal(t, 6000+4010, res.PeakPayload)
	require.Equal(t, h.Cap(), res.ArenaBytes)
	require.Greater(t, res.Utilization, 0.5)
	require.LessOrEqual(t, res.Utilization, 1.0)
	require.Positive(t, res.Extensions)
	require.Zero(t, h.Len())
}

func TestReplayGeneratedTraces(t *testing.T) {
	for _, seed := range []uint64{1, 2, 3} {
		tr := Generate(Config{Seed: seed, Ops: 2000, MaxSize: 3000})
		h := newHeap(t, 16<<20)

		res, err := Replay(h, tr, Options{Check: true})
		require.NoError(t, err, "seed %d", seed)
		require.Equal(t, len(tr.Ops), res.Ops)
		require.Equal(t, tr.HeapSize, res.PeakPayload)
		require.Zero(t, h.Len())
		require.NoError(t, h.Check())
	}
}

func TestReplayZeroSizedRequests(t *testing.T) {
	tr := &Trace{IDs: 2, Ops: []Op{
		{Kind: Alloc, ID: 0, Size: 0},
		{Kind: Free, ID: 0},
		{Kind: Realloc, ID: 1, Size: 32},
		{Kind: Realloc, ID: 1, Size: 0},
		{Kind: Free, ID: 1},
	}}
	h := newHeap(t, 1<<20)
	res, err := Replay(h, tr, Options{Check: true})
	require.NoError(t, err)
	require.Equal(t, 32, res.PeakPayload)
	require.Zero(t, h.Len())
}

func TestReplayRejectsDoubleAlloc(t *testing.T) {
	tr := &Trace{IDs: 1, Ops: []Op{
		{Kind: Alloc, ID: 0, Size: 8},
		{Kind: Alloc, ID: 0, Size: 8},
	}}
	_, err := Replay(newHeap(t, 1<<20), tr, Options{})
	require.ErrorIs(t, err, ErrLive)
	var re *ReplayError
	require.ErrorAs(t, err, &re)
	require.Equal(t, 1, re.Index)
	require.Equal(t, "trace: op 1 (alloc id 0): trace: id already allocated", re.Error())
}

func TestReplayReportsOutOfMemory(t *testing.T) {
	tr := &Trace{IDs: 1, Ops: []Op{{Kind: Alloc, ID: 0, Size: 1 << 20}}}
	_, err := Replay(newHeap(t, 4096), tr, Options{})
	require.ErrorIs(t, err, malloc.ErrOutOfMemory)
}

func TestReplayDetectsCorruption(t *testing.T) {
	tr := &Trace{IDs: 2, Ops: []Op{
		{Kind: Alloc, ID: 0, Size: 64},
		{Kind: Free, ID: 0},
	}}
	h := newHeap(t, 1<<20)

	r := &replayer{
		h:     h,
		ptrs:  make([]malloc.Ptr, tr.IDs),
		sizes: make([]int, tr.IDs),
		live:  make([]bool, tr.IDs),
	}
	require.NoError(t, r.apply(tr.Ops[0]))
	h.Bytes(r.ptrs[0])[10] ^= 0xff
	require.ErrorIs(t, r.apply(tr.Ops[1]), ErrCorrupt)
}

func TestReplayDetectsOverlap(t *testing.T) {
	h := newHeap(t, 1<<20)
	r := &replayer{
		h:     h,
		ptrs:  make([]malloc.Ptr, 2),
		sizes: make([]int, 2),
		live:  make([]bool, 2),
	}
	p, err := h.Malloc(64)
	require.NoError(t, err)
	require.NoError(t, r.track(0, p, 64))
	require.ErrorIs(t, r.track(1, p, 16), ErrOverlap)
}
