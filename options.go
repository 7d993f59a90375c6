// SPDX-License-Identifier: Apache-2.0

package malloc

import (
	"log/slog"
)

// defaultChunkSize is the smallest amount the arena grows by.
const defaultChunkSize = 1 << 7

// Option configures a Heap.
type Option func(*Heap)

// WithChunkSize sets the minimum arena growth in bytes. It is rounded up to
// the alignment granularity and never drops below the minimum block size.
func WithChunkSize(size int) Option {
	return func(h *Heap) {
		h.chunkSize = max(alignUp(size, dsize), minBlockSize)
	}
}

// WithDebugChecks makes Free, Realloc and Dealloc validate their pointer
// argument before touching the arena. Free and Dealloc panic on an invalid
// pointer, Realloc returns ErrInvalidPointer.
func WithDebugChecks(enabled bool) Option {
	return func(h *Heap) {
		h.debug = enabled
	}
}

// WithLogger sets the logger used for arena growth events.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Heap) {
		if logger != nil {
			h.logger = logger
		}
	}
}
