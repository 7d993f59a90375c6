// SPDX-License-Identifier: Apache-2.0

package malloc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestHeapArenaLenCapPeak(t *testing.T) {
	h := newTestHeap(t, 1<<20)
	require.Equal(t, 0, h.Len())
	require.Equal(t, initWords*wsize, h.Cap())

	ptr1 := h.Alloc(100, 8)
	require.NotNil(t, ptr1)
	require.Equal(t, adjustedSize(100), h.Len())

	ptr2 := h.Alloc(200, 16)
	require.NotNil(t, ptr2)
	require.Equal(t, adjustedSize(100)+adjustedSize(200), h.Len())
	peak := h.Peak()
	require.Equal(t, h.Len(), peak)

	h.Dealloc(ptr1)
	require.Equal(t, adjustedSize(200), h.Len())
	require.Equal(t, peak, h.Peak())
	require.NoError(t, h.Check())
}

func TestHeapArenaCapCountsLayoutAndFreeBlocks(t *testing.T) {
	h := newTestHeap(t, 1<<20)

	ptrs := make([]unsafe.Pointer, 0, 8)
	for i := range 8 {
		p := h.Alloc(uintptr(24+i*40), 8)
		require.NotNil(t, p)
		ptrs = append(ptrs, p)
	}
	for i := 0; i < len(ptrs); i += 2 {
		h.Dealloc(ptrs[i])
	}

	s := h.Stats()
	require.Equal(t, s.AllocatedBytes, h.Len())
	require.Equal(t, s.ArenaBytes, h.Cap())
	require.Equal(t, initWords*wsize+h.Len()+s.FreeBytes, h.Cap())

	for i := 1; i < len(ptrs); i += 2 {
		h.Dealloc(ptrs[i])
	}
	require.Zero(t, h.Len())
	require.Greater(t, h.Cap(), initWords*wsize)
	require.NoError(t, h.Check())
}

func TestHeapArenaAllocRejects(t *testing.T) {
	h := newTestHeap(t, 1<<20)
	require.Nil(t, h.Alloc(0, 1))
	require.Nil(t, h.Alloc(64, 32))
	require.Nil(t, h.Alloc(64, 3))
	require.Nil(t, h.Alloc(2<<20, 8))
	require.Zero(t, h.Len())
	require.NoError(t, h.Check())
}

func TestHeapArenaAllocZeroes(t *testing.T) {
	h := newTestHeap(t, 1<<20)
	p, err := h.Malloc(64)
	require.NoError(t, err)
	b := h.Bytes(p)
	for i := range b {
		b[i] = 0xff
	}
	h.Free(p)

	ptr := h.Alloc(64, 8)
	require.Equal(t, h.Pointer(p), ptr)
	for _, c := range unsafe.Slice((*byte)(ptr), 64) {
		require.Zero(t, c)
	}
}

func TestHeapArenaDeallocIgnoresForeignPointers(t *testing.T) {
	h := newTestHeap(t, 1<<20)
	ptr := h.Alloc(32, 8)
	require.NotNil(t, ptr)
	before := h.Stats()

	x := new(int64)
	h.Dealloc(unsafe.Pointer(x))
	h.Dealloc(nil)
	require.Equal(t, before, h.Stats())
}

func TestHeapArenaReset(t *testing.T) {
	h := newTestHeap(t, 1<<20)
	for range 10 {
		require.NotNil(t, h.Alloc(500, 8))
	}
	peak := h.Peak()
	require.Greater(t, h.Cap(), initWords*wsize)

	h.Reset()
	require.Equal(t, 0, h.Len())
	require.Equal(t, initWords*wsize, h.Cap())
	require.Equal(t, peak, h.Peak())
	require.NoError(t, h.Check())

	require.NotNil(t, h.Alloc(500, 8))
	require.NoError(t, h.Check())
}

func TestHeapArenaRelease(t *testing.T) {
	h := newTestHeap(t, 1<<20)
	require.NotNil(t, h.Alloc(500, 8))

	h.Release()
	require.Zero(t, h.Cap())
	require.Nil(t, h.Alloc(8, 8))
	_, err := h.Malloc(8)
	require.ErrorIs(t, err, ErrNotInitialized)

	// Reset after Release has nothing to reset
	h.Reset()
	require.Zero(t, h.Cap())
}

func TestAllocateOnHeap(t *testing.T) {
	h := newTestHeap(t, 1<<20)

	type TestStruct struct {
		a int64
		b int32
		c int16
	}

	ptr := Allocate[TestStruct](h)
	require.NotNil(t, ptr)
	require.Equal(t, TestStruct{}, *ptr)
	require.NotEqual(t, Nil, h.PtrOf(unsafe.Pointer(ptr)))
	ptr.a, ptr.b, ptr.c = 1, 2, 3
	require.Equal(t, TestStruct{a: 1, b: 2, c: 3}, *ptr)

	Deallocate(h, ptr)
	require.Zero(t, h.Len())
	require.NoError(t, h.Check())
}

func TestAllocateFallsBackWithoutArena(t *testing.T) {
	ptr := Allocate[int64](nil)
	require.NotNil(t, ptr)
	Deallocate[int64](nil, ptr)

	// values larger than the reservation come from the Go heap
	h := newTestHeap(t, 1<<20)
	big := Allocate[[2 << 20]byte](h)
	require.NotNil(t, big)
	require.Zero(t, h.Len())
	Deallocate(h, big)
	require.NoError(t, h.Check())
}
