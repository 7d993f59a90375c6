// SPDX-License-Identifier: Apache-2.0

package malloc

// Stats is a snapshot of the heap's layout.
type Stats struct {
	ArenaBytes         int
	AllocatedBytes     int
	AllocatedBlocks    int
	FreeBytes          int
	FreeBlocks         int
	Buckets            [NumBuckets]int // free blocks per size class
	PeakAllocatedBytes int
	Extensions         int
}

// Stats walks the arena and returns its current layout.
func (h *Heap) Stats() Stats {
	s := Stats{
		PeakAllocatedBytes: h.peak,
		Extensions:         h.extensions,
	}
	if !h.ready {
		return s
	}
	s.ArenaBytes = h.mem.Len()
	h.Walk(func(b Block) bool {
		if b.Allocated {
			s.AllocatedBytes += b.Size
			s.AllocatedBlocks++
		} else {
			s.FreeBytes += b.Size
			s.FreeBlocks++
			s.Buckets[bucketIndex(b.Size)]++
		}
		return true
	})
	return s
}

// Walk calls fn for every block between the sentinels in address order
// until fn returns false.
func (h *Heap) Walk(fn func(Block) bool) {
	if !h.ready {
		return
	}
	for bp := h.nextBlk(h.prologue); bp < h.epilogue; bp = h.nextBlk(bp) {
		if !fn(Block{Ptr: bp, Size: h.blockSize(bp), Allocated: h.allocated(bp)}) {
			return
		}
	}
}
