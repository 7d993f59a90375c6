// SPDX-License-Identifier: Apache-2.0

package malloc

// NumBuckets is the number of segregated size classes.
const NumBuckets = 9

// bucketLimits holds the largest block size of every class but the last,
// which takes everything above 4096 bytes.
var bucketLimits = [NumBuckets - 1]int{32, 64, 128, 256, 512, 1024, 2048, 4096}

// bucketIndex maps a block size to its size class.
func bucketIndex(size int) int {
	for i, limit := range bucketLimits {
		if size <= limit {
			return i
		}
	}
	return NumBuckets - 1
}

// headSlot returns the offset of the word holding bucket i's first block.
func (h *Heap) headSlot(i int) int {
	return h.heads + i*wsize
}

func (h *Heap) head(i int) Ptr {
	return Ptr(h.get(h.headSlot(i)))
}

// insert pushes the free block bp onto the front of its bucket.
func (h *Heap) insert(bp Ptr) {
	slot := h.headSlot(bucketIndex(h.blockSize(bp)))
	first := Ptr(h.get(slot))
	h.setLinks(bp, first, slot)
	if first != Nil {
		h.put(int(first)+wsize, uint64(bp))
	}
	h.put(slot, uint64(bp))
}

// remove unlinks bp from its bucket. Allocated blocks are left alone, so
// callers may pass a neighbour without first checking whether it is free.
func (h *Heap) remove(bp Ptr) {
	if h.allocated(bp) {
		return
	}
	prev := h.prevLink(bp)
	next := h.nextFree(bp)
	h.put(prev, uint64(next))
	if next != Nil {
		h.put(int(next)+wsize, uint64(prev))
	}
}

// findFit returns the first block of at least asize bytes, searching from
// asize's own class upwards. Within a class the list order decides, so this
// is first fit inside an approximate best-fit class.
func (h *Heap) findFit(asize int) Ptr {
	for i := bucketIndex(asize); i < NumBuckets; i++ {
		for bp := h.head(i); bp != Nil; bp = h.nextFree(bp) {
			if h.blockSize(bp) >= asize {
				return bp
			}
		}
	}
	return Nil
}
