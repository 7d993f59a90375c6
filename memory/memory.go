// SPDX-License-Identifier: Apache-2.0

// Package memory provides the arena growth primitives a heap draws from.
//
// A primitive reserves an address-stable region up front and hands it out
// monotonically, the way sbrk moves a program break: every grant starts where
// the previous one ended and a request that does not fit is refused whole.
package memory

import "errors"

var (
	// ErrExhausted is returned by Grow when the reservation cannot satisfy the request.
	ErrExhausted = errors.New("memory: reservation exhausted")
	// ErrReleased is returned by Grow after Release.
	ErrReleased = errors.New("memory: released")
	// ErrInvalidIncrement is returned by Grow for negative increments.
	ErrInvalidIncrement = errors.New("memory: negative increment")
)

// DefaultLimit is the reservation size used when a constructor is given a
// non-positive limit.
const DefaultLimit = 20 * 1024 * 1024 // 20MB

// alignment every reservation base is aligned to.
const alignment = 16

// region is the break bookkeeping shared by the backends.
type region struct {
	data []byte // whole reservation, len == cap == limit
	brk  int
}

func (r *region) grow(n int) (int, error) {
	if r.data == nil {
		return 0, ErrReleased
	}
	if n < 0 {
		return 0, ErrInvalidIncrement
	}
	if n > len(r.data)-r.brk {
		return 0, ErrExhausted
	}
	old := r.brk
	r.brk += n
	return old, nil
}
