// SPDX-License-Identifier: Apache-2.0

package malloc

// coalesce merges the free block bp with whichever neighbours are free and
// returns the merged block. Free neighbours must already be out of their
// buckets, and the caller inserts the result.
func (h *Heap) coalesce(bp Ptr) Ptr {
	prev := h.prevBlk(bp)
	next := h.nextBlk(bp)
	prevAlloc := h.allocAt(int(bp) - dsize)
	nextAlloc := h.allocated(next)
	size := h.blockSize(bp)

	switch {
	case prevAlloc && nextAlloc:
		return bp

	case prevAlloc && !nextAlloc:
		size += h.blockSize(next)
		h.setTags(bp, size, false)
		return bp

	case !prevAlloc && nextAlloc:
		size += h.blockSize(prev)
		h.setTags(prev, size, false)
		return prev

	default:
		size += h.blockSize(prev) + h.blockSize(next)
		h.setTags(prev, size, false)
		return prev
	}
}
