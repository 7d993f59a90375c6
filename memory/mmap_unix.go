// SPDX-License-Identifier: Apache-2.0

//go:build unix

package memory

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Mmap is a growth primitive backed by an anonymous private mapping.
// The kernel commits pages when they are first touched, so a large limit
// costs address space rather than memory.
type Mmap struct {
	region
	limit int
}

// NewMmap maps limit bytes of anonymous memory.
func NewMmap(limit int) (*Mmap, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	data, err := unix.Mmap(-1, 0, limit,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("memory: mmap %d bytes: %w", limit, err)
	}
	return &Mmap{region: region{data: data}, limit: limit}, nil
}

// Grow extends the break by n bytes and returns the offset of the old break.
func (m *Mmap) Grow(n int) (int, error) {
	return m.grow(n)
}

// Data returns the whole mapping.
func (m *Mmap) Data() []byte {
	return m.data
}

// Len returns the current break.
func (m *Mmap) Len() int {
	return m.brk
}

// Cap returns the mapping size.
func (m *Mmap) Cap() int {
	return m.limit
}

// Reset moves the break back to zero. The bytes below the old break are
// zeroed so a reset mapping reads like a fresh one.
func (m *Mmap) Reset() {
	if m.brk == 0 || m.data == nil {
		return
	}
	clear(m.data[:m.brk])
	m.brk = 0
}

// Release unmaps the region. Further Grow calls fail with ErrReleased.
func (m *Mmap) Release() error {
	if m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	m.brk = 0
	m.limit = 0
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("memory: munmap: %w", err)
	}
	return nil
}
