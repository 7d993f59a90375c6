// SPDX-License-Identifier: Apache-2.0

package malloc

import (
	"unsafe"
)

const growThreshold = 256

// AllocateSlice creates a slice of type T with a given length and capacity,
// using the provided Arena for memory allocation.
// If the arena is non-nil, it returns a slice with memory allocated from the arena.
// Otherwise, or if the arena cannot serve the request, it returns a slice using Go's built-in make function.
func AllocateSlice[T any](a Arena, len, cap int) []T {
	if a != nil && cap > 0 {
		var x T
		bufSize := int(unsafe.Sizeof(x)) * cap
		if ptr := (*T)(a.Alloc(uintptr(bufSize), unsafe.Alignof(x))); ptr != nil {
			s := unsafe.Slice(ptr, cap)
			return s[:len]
		}
	}
	return make([]T, len, cap)
}

// SliceAppend appends elements to a slice of type T using a provided Arena
// for memory allocation if needed.
// The old backing array is not released; see SliceFree.
func SliceAppend[T any](a Arena, s []T, data ...T) []T {
	if a == nil {
		return append(s, data...)
	}
	s = growSlice(a, s, len(data))
	s = append(s, data...)
	return s
}

// SliceFree returns the backing array of s to a if a is a Deallocator.
// s must start at the beginning of a slice obtained from AllocateSlice or
// SliceAppend with the same arena. Slices the arena does not own are ignored.
func SliceFree[T any](a Arena, s []T) {
	if cap(s) == 0 {
		return
	}
	if d, ok := a.(Deallocator); ok {
		d.Dealloc(unsafe.Pointer(unsafe.SliceData(s)))
	}
}

// growSlice returns s unchanged when it has room for extra more elements,
// otherwise a heap copy whose capacity doubles until growThreshold and grows
// by a quarter past it. The heap rounds the request up to its block size, so
// the usable bytes of the new block may exceed the capacity reported here.
func growSlice[T any](a Arena, s []T, extra int) []T {
	want := len(s) + extra
	if want <= cap(s) {
		return s
	}
	s2 := AllocateSlice[T](a, len(s), nextCap(cap(s), want))
	copy(s2, s)
	return s2
}

func nextCap(c, want int) int {
	if c == 0 {
		return want
	}
	for c < want {
		if c < growThreshold {
			c *= 2
		} else {
			c += c / 4
		}
	}
	return c
}
