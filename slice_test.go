// SPDX-License-Identifier: Apache-2.0

package malloc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// mockArena is a simple implementation of the Arena interface for testing purposes.
// It simply allocates memory using Go's built-in make function.
type mockArena struct{}

func (m *mockArena) Alloc(size, _ uintptr) unsafe.Pointer {
	return unsafe.Pointer(&make([]byte, size)[0])
}

func (m *mockArena) Reset() {}

func (m *mockArena) Release() {}

func (m *mockArena) Len() int {
	return 0
}

func (m *mockArena) Cap() int {
	return int(^uintptr(0) >> 1)
}

func (m *mockArena) Peak() int {
	return 0
}

// TestSliceAppendWithArena tests the SliceAppend function using a mockArena.
func TestSliceAppendWithArena(t *testing.T) {
	a := &mockArena{}

	s := AllocateSlice[int](a, 3, 3)
	s[0] = 1
	s[1] = 2
	s[2] = 3

	result := SliceAppend[int](a, s, 4, 5)
	require.Equal(t, []int{1, 2, 3, 4, 5}, result)

	// mockArena cannot take memory back
	SliceFree(a, result)
}

func TestSliceAppendOnHeap(t *testing.T) {
	h := newTestHeap(t, 1<<20)

	s := AllocateSlice[int64](h, 0, 4)
	require.Len(t, s, 0)
	require.Equal(t, 4, cap(s))
	require.NotEqual(t, Nil, h.PtrOf(unsafe.Pointer(unsafe.SliceData(s))))

	for i := range int64(100) {
		old := s
		s = SliceAppend(h, s, i)
		if cap(old) != cap(s) {
			SliceFree(h, old)
		}
	}
	require.Len(t, s, 100)
	for i, v := range s {
		require.Equal(t, int64(i), v)
	}
	require.NoError(t, h.Check())
	require.Equal(t, 1, h.Stats().AllocatedBlocks)

	SliceFree(h, s)
	require.Zero(t, h.Len())
	require.NoError(t, h.Check())
}

func TestAllocateSliceWithoutArena(t *testing.T) {
	s := AllocateSlice[byte](nil, 2, 8)
	require.Len(t, s, 2)
	require.Equal(t, 8, cap(s))
	require.Equal(t, []byte{1, 2}, SliceAppend[byte](nil, nil, 1, 2))

	h := newTestHeap(t, 1<<20)
	empty := AllocateSlice[byte](h, 0, 0)
	require.Empty(t, empty)
	require.Zero(t, h.Len())
	SliceFree(h, empty)
}
