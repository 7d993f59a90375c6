// SPDX-License-Identifier: Apache-2.0

package malloc

// Check walks the arena and every bucket and returns a *CheckError for the
// first broken invariant:
//
//   - the prologue and epilogue sentinels keep their shape and the epilogue
//     sits at the break;
//   - every block is aligned, at least minBlockSize and has matching header
//     and footer words;
//   - no two free blocks are adjacent;
//   - every free block is in exactly one bucket, the one for its size, and no
//     allocated block is in any bucket;
//   - bucket links are symmetric;
//   - the allocation counters match the arena.
func (h *Heap) Check() error {
	if !h.ready {
		return ErrNotInitialized
	}
	if h.get(hdrp(h.prologue)) != pack(dsize, true) || h.get(int(h.prologue)) != pack(dsize, true) {
		return inconsistent(h.prologue, "bad prologue")
	}

	free := make(map[Ptr]bool)
	inUse, live := 0, 0
	prevFree := false
	bp := h.nextBlk(h.prologue)
	for bp < h.epilogue {
		hdr := h.get(hdrp(bp))
		size := int(hdr & sizeMask)
		switch {
		case bp%dsize != 0:
			return inconsistent(bp, "payload not %d-byte aligned", dsize)
		case size < minBlockSize:
			return inconsistent(bp, "block size %d below minimum", size)
		case bp+Ptr(size) > h.epilogue:
			return inconsistent(bp, "block of %d bytes runs past the epilogue", size)
		case h.get(int(bp)+size-dsize) != hdr:
			return inconsistent(bp, "header %#x and footer %#x disagree", hdr, h.get(int(bp)+size-dsize))
		}
		if hdr&allocBit == 0 {
			if prevFree {
				return inconsistent(bp, "adjacent free blocks")
			}
			free[bp] = true
			prevFree = true
		} else {
			inUse += size
			live++
			prevFree = false
		}
		bp += Ptr(size)
	}
	if bp != h.epilogue {
		return inconsistent(bp, "block chain ends at %d, epilogue at %d", bp, h.epilogue)
	}
	if h.get(hdrp(h.epilogue)) != pack(0, true) {
		return inconsistent(h.epilogue, "bad epilogue")
	}
	if int(h.epilogue) != h.mem.Len() {
		return inconsistent(h.epilogue, "epilogue is not at the break %d", h.mem.Len())
	}
	if inUse != h.inUse || live != h.liveBlocks {
		return inconsistent(Nil, "counters report %d bytes in %d blocks, arena holds %d bytes in %d blocks",
			h.inUse, h.liveBlocks, inUse, live)
	}

	for i := range NumBuckets {
		link := h.headSlot(i)
		for bp := h.head(i); bp != Nil; bp = h.nextFree(bp) {
			listed, known := free[bp]
			switch {
			case !known:
				return inconsistent(bp, "bucket %d links to a block that is not free", i)
			case !listed:
				return inconsistent(bp, "block listed twice")
			case bucketIndex(h.blockSize(bp)) != i:
				return inconsistent(bp, "block of %d bytes in bucket %d", h.blockSize(bp), i)
			case h.prevLink(bp) != link:
				return inconsistent(bp, "back link %d, expected %d", h.prevLink(bp), link)
			}
			free[bp] = false
			link = int(bp)
		}
	}
	for bp, missing := range free {
		if missing {
			return inconsistent(bp, "free block of %d bytes not in any bucket", h.blockSize(bp))
		}
	}
	return nil
}

// Valid reports whether Check finds the heap consistent.
func (h *Heap) Valid() bool {
	return h.Check() == nil
}
