// SPDX-License-Identifier: Apache-2.0

package malloc

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfMemory is returned when the growth primitive cannot extend the arena.
	ErrOutOfMemory = errors.New("malloc: out of memory")
	// ErrInvalidSize is returned for negative request sizes.
	ErrInvalidSize = errors.New("malloc: invalid size")
	// ErrNotInitialized is returned by operations on a heap that was never
	// initialised or has been released.
	ErrNotInitialized = errors.New("malloc: heap not initialized")
	// ErrAlreadyInitialized is returned by Init on a heap that is in use.
	ErrAlreadyInitialized = errors.New("malloc: heap already initialized")
	// ErrInvalidPointer reports a pointer that does not name an allocated
	// block. It is only detected when debug checks are enabled.
	ErrInvalidPointer = errors.New("malloc: invalid pointer")
)

// CheckError describes the first inconsistency Check found.
type CheckError struct {
	Ptr    Ptr // block or link at fault, Nil for arena-wide problems
	Reason string
}

func (e *CheckError) Error() string {
	if e.Ptr == Nil {
		return "malloc: heap inconsistent: " + e.Reason
	}
	return fmt.Sprintf("malloc: heap inconsistent at %d: %s", e.Ptr, e.Reason)
}

func inconsistent(bp Ptr, format string, args ...any) error {
	return &CheckError{Ptr: bp, Reason: fmt.Sprintf(format, args...)}
}
