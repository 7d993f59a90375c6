// SPDX-License-Identifier: Apache-2.0

package malloc

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"unsafe"

	"github.com/wundergraph/go-malloc/memory"
)

// Memory is the growth primitive a Heap draws its arena from.
//
// Grow must hand out contiguous regions: every grant starts where the
// previous one ended. A request that cannot be met in full fails without
// changing the break. Data must return the same backing array for the
// lifetime of the reservation so that payload addresses stay valid.
type Memory interface {
	// Grow extends the break by n bytes and returns the offset of the old break.
	Grow(n int) (int, error)
	// Data returns the whole reservation.
	Data() []byte
	// Len returns the current break.
	Len() int
	// Cap returns the reservation limit.
	Cap() int
	// Reset moves the break back to zero.
	Reset()
	// Release returns the reservation to the system.
	Release() error
}

// initWords is the size of the initial reservation: the bucket heads, the
// prologue header and footer and the epilogue header.
const initWords = NumBuckets + 3

// maxRequest keeps adjustedSize from overflowing.
const maxRequest = math.MaxInt - 2*dsize

// Heap is a segregated free-list allocator over a single growable arena.
//
// A Heap is not safe for concurrent use.
type Heap struct {
	mem  Memory
	data []byte

	heads     int // offset of bucket head 0
	prologue  Ptr
	epilogue  Ptr
	chunkSize int
	ready     bool

	inUse      int // bytes in allocated blocks
	liveBlocks int
	peak       int
	extensions int

	debug  bool
	logger *slog.Logger
}

// New creates a heap over mem and initialises it. A nil mem gets a
// slice-backed primitive of memory.DefaultLimit bytes.
func New(mem Memory, opts ...Option) (*Heap, error) {
	if mem == nil {
		mem = memory.NewSlice(memory.DefaultLimit)
	}
	h := &Heap{
		mem:       mem,
		chunkSize: defaultChunkSize,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	if err := h.Init(); err != nil {
		return nil, err
	}
	return h, nil
}

// Init lays out an empty heap at the current break: zeroed bucket heads, an
// allocated prologue of dsize bytes and a zero-sized allocated epilogue.
// It must run before any other operation; New calls it. A heap that is
// already initialised is left alone and ErrAlreadyInitialized is returned;
// Reset is the way to start over.
func (h *Heap) Init() error {
	if h.mem == nil {
		return fmt.Errorf("%w: no growth primitive", ErrNotInitialized)
	}
	if h.ready {
		return ErrAlreadyInitialized
	}
	base, err := h.mem.Grow(initWords * wsize)
	if err != nil {
		return fmt.Errorf("%w: initial reservation: %w", ErrOutOfMemory, err)
	}
	if base%dsize != 0 {
		return fmt.Errorf("malloc: arena break %d is not %d-byte aligned", base, dsize)
	}
	h.data = h.mem.Data()
	h.heads = base
	for i := range NumBuckets {
		h.put(h.headSlot(i), 0)
	}
	h.prologue = Ptr(base + (NumBuckets+1)*wsize)
	h.setTags(h.prologue, dsize, true)
	h.epilogue = h.prologue + dsize
	h.put(hdrp(h.epilogue), pack(0, true))

	h.inUse = 0
	h.liveBlocks = 0
	h.extensions = 0
	h.ready = true
	return nil
}

// extend grows the arena by at least words words and returns the resulting
// free block, merged with a trailing free block if there was one. On failure
// the arena is left untouched.
func (h *Heap) extend(words int) (Ptr, error) {
	if words%2 != 0 {
		words++
	}
	size := words * wsize
	off, err := h.mem.Grow(size)
	if err != nil {
		h.logger.Debug("arena extension failed", "bytes", size, "arena", h.mem.Len(), "error", err)
		return Nil, fmt.Errorf("%w: extend by %d bytes: %w", ErrOutOfMemory, size, err)
	}
	if Ptr(off) != h.epilogue {
		panic(fmt.Sprintf("malloc: growth primitive granted offset %d, expected %d", off, h.epilogue))
	}

	// The old epilogue header becomes the new block's header.
	bp := Ptr(off)
	h.setTags(bp, size, false)
	h.epilogue = h.nextBlk(bp)
	h.put(hdrp(h.epilogue), pack(0, true))
	h.extensions++

	h.remove(h.prevBlk(bp))
	bp = h.coalesce(bp)
	h.insert(bp)

	h.logger.Debug("arena extended", "bytes", size, "arena", h.mem.Len(), "block", h.blockSize(bp))
	return bp, nil
}

// Malloc allocates a block with at least n usable bytes and returns its
// payload. A zero-byte request returns Nil and no error.
func (h *Heap) Malloc(n int) (Ptr, error) {
	if !h.ready {
		return Nil, ErrNotInitialized
	}
	if n < 0 {
		return Nil, fmt.Errorf("%w: %d", ErrInvalidSize, n)
	}
	if n == 0 {
		return Nil, nil
	}
	if n > maxRequest {
		return Nil, fmt.Errorf("%w: request of %d bytes", ErrOutOfMemory, n)
	}

	asize := adjustedSize(n)
	if bp := h.findFit(asize); bp != Nil {
		h.remove(bp)
		h.place(bp, asize)
		return bp, nil
	}

	bp, err := h.extend(max(asize, h.chunkSize) / wsize)
	if err != nil {
		return Nil, err
	}
	h.remove(bp)
	h.place(bp, asize)
	return bp, nil
}

// Free returns the block at p to the heap, merging it with free neighbours.
// Freeing Nil does nothing. Freeing anything that Malloc or Realloc did not
// return, or freeing twice, corrupts the heap unless debug checks are on.
func (h *Heap) Free(p Ptr) {
	if p == Nil || !h.ready {
		return
	}
	if h.debug {
		if err := h.validate(p); err != nil {
			panic(err)
		}
	}

	size := h.blockSize(p)
	h.inUse -= size
	h.liveBlocks--
	h.setTags(p, size, false)

	h.remove(h.prevBlk(p))
	h.remove(h.nextBlk(p))
	p = h.coalesce(p)
	h.insert(p)
}

// Realloc moves the allocation at p to a new block of at least n usable
// bytes, copying the old contents up to the smaller of the two sizes.
// Realloc(Nil, n) is Malloc(n) and Realloc(p, 0) is Free(p). If the new block
// cannot be allocated the error is returned and p stays valid.
func (h *Heap) Realloc(p Ptr, n int) (Ptr, error) {
	if n == 0 {
		h.Free(p)
		return Nil, nil
	}
	if p == Nil {
		return h.Malloc(n)
	}
	if !h.ready {
		return Nil, ErrNotInitialized
	}
	if h.debug {
		if err := h.validate(p); err != nil {
			return Nil, err
		}
	}

	np, err := h.Malloc(n)
	if err != nil {
		return Nil, err
	}
	copy(h.data[np:int(np)+min(n, h.UsableSize(p))], h.data[p:])
	h.Free(p)
	return np, nil
}

// UsableSize returns the number of payload bytes of the block at p.
func (h *Heap) UsableSize(p Ptr) int {
	if p == Nil {
		return 0
	}
	return h.blockSize(p) - overhead
}

// Bytes returns the payload of the block at p. The slice aliases the arena
// and is valid until p is freed.
func (h *Heap) Bytes(p Ptr) []byte {
	if p == Nil {
		return nil
	}
	n := h.UsableSize(p)
	return h.data[p : int(p)+n : int(p)+n]
}

// Pointer returns the address of the payload at p.
func (h *Heap) Pointer(p Ptr) unsafe.Pointer {
	if p == Nil {
		return nil
	}
	return unsafe.Pointer(&h.data[p])
}

// PtrOf returns the Ptr for an address inside the arena's block area, or
// Nil if ptr lies outside it.
func (h *Heap) PtrOf(ptr unsafe.Pointer) Ptr {
	if ptr == nil || !h.ready {
		return Nil
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(h.data)))
	addr := uintptr(ptr)
	if addr < base+uintptr(h.prologue)+dsize || addr >= base+uintptr(h.epilogue) {
		return Nil
	}
	return Ptr(addr - base)
}

// validate reports whether p names an allocated block.
func (h *Heap) validate(p Ptr) error {
	if p < h.prologue+dsize || p >= h.epilogue || p%dsize != 0 {
		return fmt.Errorf("%w: %d outside the block area", ErrInvalidPointer, p)
	}
	hdr := h.get(hdrp(p))
	size := int(hdr & sizeMask)
	switch {
	case hdr&allocBit == 0:
		return fmt.Errorf("%w: %d is not allocated", ErrInvalidPointer, p)
	case size < minBlockSize || p+Ptr(size) > h.epilogue:
		return fmt.Errorf("%w: %d has a corrupt header", ErrInvalidPointer, p)
	case h.get(int(p)+size-dsize) != hdr:
		return fmt.Errorf("%w: %d header and footer disagree", ErrInvalidPointer, p)
	}
	return nil
}
