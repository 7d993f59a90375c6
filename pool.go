// SPDX-License-Identifier: Apache-2.0

package malloc

import (
	"sync"
	"weak"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/wundergraph/go-malloc/memory"
)

// Pool provides a thread-safe pool of heaps for workloads that repeatedly
// build up and tear down short-lived allocations.
// Heaps are held through weak pointers, so the GC can reclaim idle heaps
// under memory pressure and the pool sizes itself to the load.
//
// Each acquired heap is owned by a single goroutine until it is released.
type Pool struct {
	// pool is a slice of weak pointers to the items holding idle heaps
	pool  []weak.Pointer[PoolItem]
	sizes *xsync.MapOf[uint64, poolItemSize]
	opts  []Option
	mu    sync.Mutex
}

// poolItemSize tracks the arena size reached across the last 50 heaps of a key.
type poolItemSize struct {
	count      int
	totalBytes int
}

// PoolItem wraps a Heap for use in the pool.
type PoolItem struct {
	Heap *Heap
	Key  uint64
}

const (
	defaultPoolHeapLimit = 1024 * 1024 // 1MB
	poolSizeWindow       = 50
)

// NewHeapPool creates a new Pool. Heaps it creates are configured with opts.
func NewHeapPool(opts ...Option) *Pool {
	return &Pool{
		sizes: xsync.NewMapOf[uint64, poolItemSize](),
		opts:  opts,
	}
}

// Acquire gets a heap from the pool or creates a new one if none are available.
// The key identifies the use case; new heaps for a key reserve room for twice
// the arena size its previous heaps reached.
func (p *Pool) Acquire(key uint64) (*PoolItem, error) {
	p.mu.Lock()
	for len(p.pool) > 0 {
		lastIdx := len(p.pool) - 1
		wp := p.pool[lastIdx]
		p.pool = p.pool[:lastIdx]

		if v := wp.Value(); v != nil {
			p.mu.Unlock()
			v.Key = key
			return v, nil
		}
		// collected by the GC, try the next one
	}
	p.mu.Unlock()

	h, err := New(memory.NewSlice(p.heapLimit(key)), p.opts...)
	if err != nil {
		return nil, err
	}
	return &PoolItem{Heap: h, Key: key}, nil
}

// Release empties the item's heap and returns it to the pool.
func (p *Pool) Release(item *PoolItem) {
	p.recordAndReset(item)

	p.mu.Lock()
	p.pool = append(p.pool, weak.Make(item))
	p.mu.Unlock()
}

// ReleaseMany releases several items at once.
func (p *Pool) ReleaseMany(items []*PoolItem) {
	for _, item := range items {
		p.recordAndReset(item)
	}

	p.mu.Lock()
	for _, item := range items {
		p.pool = append(p.pool, weak.Make(item))
	}
	p.mu.Unlock()
}

func (p *Pool) recordAndReset(item *PoolItem) {
	arenaBytes := item.Heap.Cap()
	item.Heap.Reset()

	p.sizes.Compute(item.Key, func(size poolItemSize, loaded bool) (poolItemSize, bool) {
		if loaded && size.count == poolSizeWindow {
			size.count = 1
			size.totalBytes /= poolSizeWindow
		}
		size.count++
		size.totalBytes += arenaBytes
		return size, false
	})
	item.Key = 0
}

// heapLimit returns the reservation size for a new heap of the given key.
func (p *Pool) heapLimit(key uint64) int {
	if size, ok := p.sizes.Load(key); ok && size.count > 0 {
		return max(2*size.totalBytes/size.count, defaultPoolHeapLimit)
	}
	return defaultPoolHeapLimit
}
