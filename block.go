// SPDX-License-Identifier: Apache-2.0

package malloc

import (
	"unsafe"
)

// Block layout
//
//	      hdrp(bp)         bp                           ftrp(bp)
//	      |                |                            |
//	... | size|a | payload ...                      | size|a | ...
//
// The header and footer words carry the block size (header, payload and
// footer together, always a multiple of dsize) with the allocated flag in
// bit 0. While a block is free the first two payload words hold its bucket
// links: word 0 is the offset of the next free block (0 ends the list) and
// word 1 is the offset of the word that points at this block, which is
// either a bucket head slot or word 0 of the previous free block.
const (
	wsize        = 8         // word size
	dsize        = 2 * wsize // alignment granularity
	minBlockSize = 2 * dsize // header, footer and two link words
	overhead     = dsize     // header and footer

	allocBit = uint64(1)
	sizeMask = ^uint64(dsize - 1)
)

// Ptr is the offset of a payload from the start of the arena.
// Offset 0 is taken by the bucket heads, so it never names a payload.
type Ptr uintptr

// Nil is the Ptr returned when nothing was allocated.
const Nil Ptr = 0

// Block describes one block of the arena as seen by Walk.
type Block struct {
	Ptr       Ptr
	Size      int
	Allocated bool
}

func pack(size int, alloc bool) uint64 {
	if alloc {
		return uint64(size) | allocBit
	}
	return uint64(size)
}

func (h *Heap) get(off int) uint64 {
	return *(*uint64)(unsafe.Pointer(&h.data[off]))
}

func (h *Heap) put(off int, v uint64) {
	*(*uint64)(unsafe.Pointer(&h.data[off])) = v
}

func (h *Heap) sizeAt(off int) int {
	return int(h.get(off) & sizeMask)
}

func (h *Heap) allocAt(off int) bool {
	return h.get(off)&allocBit != 0
}

// hdrp returns the offset of bp's header.
func hdrp(bp Ptr) int {
	return int(bp) - wsize
}

// ftrp returns the offset of bp's footer. The header must be valid.
func (h *Heap) ftrp(bp Ptr) int {
	return int(bp) + h.blockSize(bp) - dsize
}

func (h *Heap) blockSize(bp Ptr) int {
	return h.sizeAt(hdrp(bp))
}

func (h *Heap) allocated(bp Ptr) bool {
	return h.allocAt(hdrp(bp))
}

// nextBlk returns the block following bp. Must not be called on the epilogue.
func (h *Heap) nextBlk(bp Ptr) Ptr {
	return bp + Ptr(h.blockSize(bp))
}

// prevBlk returns the block preceding bp, found through its footer.
// Must not be called on the prologue.
func (h *Heap) prevBlk(bp Ptr) Ptr {
	return bp - Ptr(h.sizeAt(int(bp)-dsize))
}

// setTags writes matching header and footer words for a block of size bytes at bp.
func (h *Heap) setTags(bp Ptr, size int, alloc bool) {
	v := pack(size, alloc)
	h.put(hdrp(bp), v)
	h.put(int(bp)+size-dsize, v)
}

// nextFree and prevLink read the bucket links of a free block.
func (h *Heap) nextFree(bp Ptr) Ptr {
	return Ptr(h.get(int(bp)))
}

func (h *Heap) prevLink(bp Ptr) int {
	return int(h.get(int(bp) + wsize))
}

func (h *Heap) setLinks(bp, next Ptr, prev int) {
	h.put(int(bp), uint64(next))
	h.put(int(bp)+wsize, uint64(prev))
}

// adjustedSize returns the block size needed to serve a request of n bytes.
func adjustedSize(n int) int {
	if n <= dsize {
		return minBlockSize
	}
	return dsize * ((n + overhead + dsize - 1) / dsize)
}

func alignUp(n, to int) int {
	return (n + to - 1) &^ (to - 1)
}
