// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestMmapGrow(t *testing.T) {
	m, err := NewMmap(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Release() })

	require.Equal(t, 1<<20, m.Cap())
	require.Zero(t, uintptr(unsafe.Pointer(unsafe.SliceData(m.Data())))%alignment)

	off, err := m.Grow(4096)
	require.NoError(t, err)
	require.Equal(t, 0, off)
	data := m.Data()
	data[0], data[4095] = 1, 2

	off, err = m.Grow(1<<20 - 4096)
	require.NoError(t, err)
	require.Equal(t, 4096, off)

	_, err = m.Grow(1)
	require.ErrorIs(t, err, ErrExhausted)
	require.Equal(t, 1<<20, m.Len())
}

func TestMmapResetAndRelease(t *testing.T) {
	m, err := NewMmap(64 * 1024)
	require.NoError(t, err)

	_, err = m.Grow(10000)
	require.NoError(t, err)
	data := m.Data()
	data[0], data[9999] = 0xff, 0xff
	m.Reset()
	require.Equal(t, 0, m.Len())

	off, err := m.Grow(10000)
	require.NoError(t, err)
	require.Equal(t, 0, off)
	require.Zero(t, m.Data()[0])
	require.Zero(t, m.Data()[9999])

	require.NoError(t, m.Release())
	require.NoError(t, m.Release())
	_, err = m.Grow(16)
	require.ErrorIs(t, err, ErrReleased)
}
