// SPDX-License-Identifier: Apache-2.0

package malloc

import (
	"io"
	"unsafe"
)

// Buffer is a bytes.Buffer-like struct backed by an arena.
// It implements io.Writer, io.ReaderFrom and io.WriterTo and provides similar methods to bytes.Buffer.
// All memory allocation is done through the provided arena. When the arena is
// a Deallocator, storage outgrown by the buffer is handed back to it.
type Buffer struct {
	arena   Arena
	buf     []byte // unread data
	readBuf []byte // intermediate buffer for ReadFrom
}

// NewArenaBuffer creates a new Buffer backed by the given arena.
// If arena is nil, it will fall back to standard Go allocation.
func NewArenaBuffer(arena Arena) *Buffer {
	return &Buffer{arena: arena}
}

func (b *Buffer) append(p ...byte) {
	old := b.buf
	b.buf = SliceAppend(b.arena, b.buf, p...)
	if cap(old) > 0 && unsafe.SliceData(old) != unsafe.SliceData(b.buf) {
		SliceFree(b.arena, old[:0])
	}
}

// consume drops the first n unread bytes, keeping the storage.
func (b *Buffer) consume(n int) {
	rest := copy(b.buf, b.buf[n:])
	b.buf = b.buf[:rest]
}

// Write implements io.Writer interface.
// It writes len(p) bytes from p to the buffer.
func (b *Buffer) Write(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	b.append(p...)
	return len(p), nil
}

// WriteByte writes a single byte to the buffer.
func (b *Buffer) WriteByte(c byte) error {
	b.append(c)
	return nil
}

// WriteString writes a string to the buffer.
func (b *Buffer) WriteString(s string) (n int, err error) {
	if len(s) == 0 {
		return 0, nil
	}
	b.append(unsafe.Slice(unsafe.StringData(s), len(s))...)
	return len(s), nil
}

// WriteTo implements io.WriterTo. Bytes accepted by w are removed from the buffer.
func (b *Buffer) WriteTo(w io.Writer) (n int64, err error) {
	if len(b.buf) == 0 {
		return 0, nil
	}
	m, err := w.Write(b.buf)
	if m > 0 {
		n = int64(m)
		b.consume(m)
	}
	return n, err
}

// Read reads up to len(p) bytes from the buffer into p.
// It returns the number of bytes read and any error encountered.
func (b *Buffer) Read(p []byte) (n int, err error) {
	if len(b.buf) == 0 {
		return 0, io.EOF
	}
	n = copy(p, b.buf)
	if n < len(p) {
		err = io.EOF
	}
	b.consume(n)
	return n, err
}

// ReadByte reads and returns the next byte from the buffer.
// If no byte is available, it returns io.EOF.
func (b *Buffer) ReadByte() (byte, error) {
	if len(b.buf) == 0 {
		return 0, io.EOF
	}
	c := b.buf[0]
	b.consume(1)
	return c, nil
}

// Bytes returns a slice of length b.Len() holding the unread portion of the buffer.
// The slice is valid for use only until the next buffer modification.
func (b *Buffer) Bytes() []byte {
	if len(b.buf) == 0 {
		return []byte{}
	}
	return b.buf
}

// String returns the contents of the unread portion of the buffer as a string.
func (b *Buffer) String() string {
	return string(b.buf)
}

// Len returns the number of bytes of the unread portion of the buffer.
func (b *Buffer) Len() int {
	return len(b.buf)
}

// Cap returns the capacity of the buffer's underlying byte slice.
func (b *Buffer) Cap() int {
	return cap(b.buf)
}

// Reset resets the buffer to be empty but keeps its storage.
func (b *Buffer) Reset() {
	b.buf = b.buf[:0]
}

// Free empties the buffer and returns its storage to the arena.
func (b *Buffer) Free() {
	SliceFree(b.arena, b.buf[:0])
	SliceFree(b.arena, b.readBuf)
	b.buf = nil
	b.readBuf = nil
}

// Truncate discards all but the first n unread bytes from the buffer.
// It panics if n is negative or greater than the length of the buffer.
func (b *Buffer) Truncate(n int) {
	if n < 0 || n > len(b.buf) {
		panic("malloc: truncation out of range")
	}
	b.buf = b.buf[:n]
}

// Next returns a slice containing the next n bytes from the buffer,
// advancing the buffer as if the bytes had been returned by Read.
func (b *Buffer) Next(n int) []byte {
	n = min(n, len(b.buf))
	if n <= 0 {
		return []byte{}
	}
	result := make([]byte, n)
	copy(result, b.buf)
	b.consume(n)
	return result
}

// ReadFrom implements io.ReaderFrom interface.
// It reads data from r until EOF or error, writing it to the buffer.
// The intermediate read buffer is allocated from the arena.
func (b *Buffer) ReadFrom(r io.Reader) (n int64, err error) {
	if b.readBuf == nil {
		const readBufferSize = 4 * 1024
		b.readBuf = AllocateSlice[byte](b.arena, readBufferSize, readBufferSize)
	}
	for {
		nr, er := r.Read(b.readBuf)
		if nr > 0 {
			b.append(b.readBuf[:nr]...)
			n += int64(nr)
		}
		if er != nil {
			if er == io.EOF {
				return n, nil
			}
			return n, er
		}
	}
}
