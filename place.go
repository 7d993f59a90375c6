// SPDX-License-Identifier: Apache-2.0

package malloc

// place marks asize bytes of the free block bp as allocated. bp must already
// be out of its bucket. A remainder of at least minBlockSize is split off and
// inserted as a new free block, anything smaller stays with the allocation.
func (h *Heap) place(bp Ptr, asize int) {
	bsize := h.blockSize(bp)
	if bsize-asize >= minBlockSize {
		h.setTags(bp, asize, true)
		rest := bp + Ptr(asize)
		h.setTags(rest, bsize-asize, false)
		h.insert(rest)
	} else {
		h.setTags(bp, bsize, true)
		asize = bsize
	}

	h.inUse += asize
	h.liveBlocks++
	if h.inUse > h.peak {
		h.peak = h.inUse
	}
}
