// SPDX-License-Identifier: Apache-2.0

package malloc

import (
	"unsafe"
)

// Arena is an interface that describes a memory allocation arena.
// *Heap implements it, so the typed helpers below can place values in a heap.
// The garbage collector does not scan arena memory: values stored there must
// not hold the only reference to memory owned by the Go heap.
type Arena interface {
	// Alloc allocates zeroed memory of the given size and returns a pointer to it,
	// or nil if the arena cannot serve the request.
	// The alignment parameter specifies the alignment of the allocated memory.
	Alloc(size, alignment uintptr) unsafe.Pointer

	// Reset resets the arena's state without releasing the underlying memory.
	// After invoking this method any pointer previously returned by Alloc becomes immediately invalid.
	Reset()

	// Release releases the arena's underlying memory back to the system.
	// After invoking this method, the arena should not be used for further allocations.
	Release()

	// Len returns the number of bytes held by live allocations. For *Heap
	// that is the size of every allocated block, header and footer words
	// included, not the sum of the sizes callers asked for.
	Len() int

	// Cap returns the number of bytes the arena spans so far. For *Heap that
	// is the growth primitive's break: bucket heads, prologue, epilogue and
	// free blocks count alongside allocated ones, so Cap is never below
	// the initial layout even when Len is zero.
	Cap() int

	// Peak returns the peak number of bytes that have been allocated in the arena.
	// This value is not reset when Reset is called, allowing tracking of maximum usage.
	Peak() int
}

// Deallocator is implemented by arenas that can take back a single allocation.
type Deallocator interface {
	// Dealloc returns memory obtained from Alloc. Pointers the arena does not
	// own are ignored.
	Dealloc(ptr unsafe.Pointer)
}

// Allocate allocates memory for a value of type T using the provided Arena.
// If the arena is non-nil, it returns a  *T pointer with memory allocated from the arena.
// If passed arena is nil or cannot serve the request, it falls back to Go's built-in new function.
func Allocate[T any](a Arena) *T {
	if a != nil {
		var x T
		if ptr := a.Alloc(unsafe.Sizeof(x), unsafe.Alignof(x)); ptr != nil {
			return (*T)(ptr)
		}
	}
	return new(T)
}

// Deallocate hands x back to a if a is a Deallocator. x must have come from
// Allocate with the same arena.
func Deallocate[T any](a Arena, x *T) {
	if d, ok := a.(Deallocator); ok && x != nil {
		d.Dealloc(unsafe.Pointer(x))
	}
}

var (
	_ Arena       = (*Heap)(nil)
	_ Deallocator = (*Heap)(nil)
)

// Alloc satisfies the Arena interface. It returns nil for zero sizes,
// alignments above 16 bytes and when the heap is out of memory.
func (h *Heap) Alloc(size, alignment uintptr) unsafe.Pointer {
	if size == 0 || size > maxRequest || alignment > dsize || (alignment != 0 && dsize%alignment != 0) {
		return nil
	}
	p, err := h.Malloc(int(size))
	if err != nil {
		return nil
	}
	clear(h.Bytes(p))
	return h.Pointer(p)
}

// Dealloc satisfies the Deallocator interface.
func (h *Heap) Dealloc(ptr unsafe.Pointer) {
	h.Free(h.PtrOf(ptr))
}

// Reset satisfies the Arena interface. The growth primitive's break goes
// back to zero and an empty heap is laid out again.
func (h *Heap) Reset() {
	if h.data == nil {
		return
	}
	h.mem.Reset()
	h.ready = false
	if err := h.Init(); err != nil {
		h.logger.Warn("heap reset failed", "error", err)
	}
}

// Release satisfies the Arena interface.
func (h *Heap) Release() {
	h.ready = false
	h.data = nil
	if err := h.mem.Release(); err != nil {
		h.logger.Warn("heap release failed", "error", err)
	}
}

// Len returns the number of bytes in allocated blocks, overhead included.
func (h *Heap) Len() int {
	return h.inUse
}

// Cap returns the current arena size, bucket heads and sentinels included.
func (h *Heap) Cap() int {
	if h.data == nil {
		return 0
	}
	return h.mem.Len()
}

// Peak returns the largest value Len has had.
func (h *Heap) Peak() int {
	return h.peak
}
