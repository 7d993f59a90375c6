// SPDX-License-Identifier: Apache-2.0

//go:build !unix

package memory

// Mmap falls back to a Go allocation on platforms without mmap.
type Mmap struct {
	*Slice
}

// NewMmap returns a slice-backed primitive of limit bytes.
func NewMmap(limit int) (*Mmap, error) {
	return &Mmap{Slice: NewSlice(limit)}, nil
}
