// SPDX-License-Identifier: Apache-2.0

package malloc

import (
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolAcquireRelease(t *testing.T) {
	pool := NewHeapPool(WithChunkSize(4096))

	item, err := pool.Acquire(1)
	require.NoError(t, err)
	require.NotNil(t, item.Heap)
	require.Equal(t, uint64(1), item.Key)
	require.Equal(t, 4096, item.Heap.chunkSize)

	p, err := item.Heap.Malloc(1000)
	require.NoError(t, err)
	require.NotEqual(t, Nil, p)
	arena := item.Heap.Cap()

	pool.Release(item)
	require.Zero(t, item.Key)
	require.Zero(t, item.Heap.Len())
	require.NoError(t, item.Heap.Check())

	size, ok := pool.sizes.Load(1)
	require.True(t, ok)
	require.Equal(t, 1, size.count)
	require.Equal(t, arena, size.totalBytes)
}

func TestPoolReusesReleasedHeaps(t *testing.T) {
	pool := NewHeapPool()

	item, err := pool.Acquire(7)
	require.NoError(t, err)
	pool.Release(item)

	again, err := pool.Acquire(8)
	require.NoError(t, err)
	// the pool may have lost the item to the GC, but when it hands it back
	// it is empty and carries the new key
	require.Equal(t, uint64(8), again.Key)
	require.Zero(t, again.Heap.Len())
	runtime.KeepAlive(item)
}

func TestPoolHeapLimit(t *testing.T) {
	pool := NewHeapPool()
	require.Equal(t, defaultPoolHeapLimit, pool.heapLimit(3))

	pool.sizes.Store(3, poolItemSize{count: 2, totalBytes: 4 * defaultPoolHeapLimit})
	require.Equal(t, 4*defaultPoolHeapLimit, pool.heapLimit(3))

	pool.sizes.Store(4, poolItemSize{count: 1, totalBytes: 1024})
	require.Equal(t, defaultPoolHeapLimit, pool.heapLimit(4))
}

func TestPoolSizeWindow(t *testing.T) {
	pool := NewHeapPool()
	pool.sizes.Store(5, poolItemSize{count: poolSizeWindow, totalBytes: poolSizeWindow * 1000})

	item, err := pool.Acquire(5)
	require.NoError(t, err)
	arena := item.Heap.Cap()
	pool.Release(item)

	size, ok := pool.sizes.Load(5)
	require.True(t, ok)
	require.Equal(t, 2, size.count)
	require.Equal(t, 1000+arena, size.totalBytes)
}

func TestPoolReleaseMany(t *testing.T) {
	pool := NewHeapPool()

	var items []*PoolItem
	for range 3 {
		item, err := pool.Acquire(9)
		require.NoError(t, err)
		_, err = item.Heap.Malloc(64)
		require.NoError(t, err)
		items = append(items, item)
	}
	pool.ReleaseMany(items)

	size, ok := pool.sizes.Load(9)
	require.True(t, ok)
	require.Equal(t, 3, size.count)
	for _, item := range items {
		require.Zero(t, item.Heap.Len())
	}
}

func TestPoolConcurrentUse(t *testing.T) {
	pool := NewHeapPool()

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				item, err := pool.Acquire(uint64(g % 2))
				if err != nil {
					t.Error(err)
					return
				}
				p, err := item.Heap.Malloc(256)
				if err != nil {
					t.Error(err)
					return
				}
				item.Heap.Bytes(p)[0] = byte(g)
				if err := item.Heap.Check(); err != nil {
					t.Error(err)
				}
				pool.Release(item)
			}
		}()
	}
	wg.Wait()
}
