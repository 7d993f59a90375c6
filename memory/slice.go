// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"unsafe"
)

// Slice is a growth primitive backed by a single Go allocation.
// The backing array is allocated lazily on the first Grow.
type Slice struct {
	region
	limit int
}

// NewSlice returns a slice-backed primitive able to grant up to limit bytes.
func NewSlice(limit int) *Slice {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Slice{limit: limit}
}

func (s *Slice) reserve() {
	buf := make([]byte, s.limit+alignment) // allocate the reservation lazily
	alignOffset := 0
	for p := uintptr(unsafe.Pointer(unsafe.SliceData(buf))); p%alignment != 0; p++ {
		alignOffset++
	}
	s.data = buf[alignOffset : alignOffset+s.limit : alignOffset+s.limit]
}

// Grow extends the break by n bytes and returns the offset of the old break.
func (s *Slice) Grow(n int) (int, error) {
	if s.data == nil && s.limit > 0 {
		s.reserve()
	}
	return s.grow(n)
}

// Data returns the whole reservation. Its address never changes until Release.
func (s *Slice) Data() []byte {
	if s.data == nil && s.limit > 0 {
		s.reserve()
	}
	return s.data
}

// Len returns the current break.
func (s *Slice) Len() int {
	return s.brk
}

// Cap returns the reservation limit.
func (s *Slice) Cap() int {
	return s.limit
}

// Reset moves the break back to zero without releasing the reservation.
func (s *Slice) Reset() {
	if s.brk == 0 {
		return
	}
	clear(s.data[:s.brk])
	s.brk = 0
}

// Release drops the reservation. Further Grow calls fail with ErrReleased.
func (s *Slice) Release() error {
	s.brk = 0
	s.data = nil
	s.limit = 0
	return nil
}
