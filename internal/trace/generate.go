// SPDX-License-Identifier: Apache-2.0

package trace

import (
	"math/rand/v2"
)

// Config controls Generate.
type Config struct {
	Seed    uint64
	Ops     int // operations before the closing frees
	IDs     int // most block ids to use, defaults to Ops
	MaxSize int // largest request in bytes, defaults to 4096
}

// Generate builds a random trace from cfg. The same config always yields
// the same trace. Every id is allocated once, may be reallocated and is
// freed by the end of the trace.
func Generate(cfg Config) *Trace {
	if cfg.IDs <= 0 {
		cfg.IDs = cfg.Ops
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 4096
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	var (
		ops   []Op
		live  []int
		sizes = make(map[int]int)
		next  int
		cur   int
		peak  int
	)
	for len(ops) < cfg.Ops {
		canAlloc := next < cfg.IDs
		if !canAlloc && len(live) == 0 {
			break
		}
		if canAlloc && (len(live) == 0 || rng.IntN(2) == 0) {
			size := 1 + rng.IntN(cfg.MaxSize)
			ops = append(ops, Op{Kind: Alloc, ID: next, Size: size})
			live = append(live, next)
			sizes[next] = size
			cur += size
			next++
		} else {
			i := rng.IntN(len(live))
			id := live[i]
			if rng.IntN(3) == 0 {
				size := 1 + rng.IntN(cfg.MaxSize)
				ops = append(ops, Op{Kind: Realloc, ID: id, Size: size})
				cur += size - sizes[id]
				sizes[id] = size
			} else {
				ops = append(ops, Op{Kind: Free, ID: id})
				cur -= sizes[id]
				delete(sizes, id)
				live[i] = live[len(live)-1]
				live = live[:len(live)-1]
			}
		}
		peak = max(peak, cur)
	}
	for _, id := range live {
		ops = append(ops, Op{Kind: Free, ID: id})
	}

	return &Trace{
		HeapSize: peak,
		IDs:      next,
		Weight:   1,
		Ops:      ops,
	}
}
