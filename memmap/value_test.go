package memmap

import (
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wnxd/irmem/emulator"
	"github.com/wnxd/irmem/encoding"
)

type frame struct {
	Kind  uint8
	Depth int32
	PC    uintptr
}

func TestMallocValue_RoundTrip(t *testing.T) {
	m := newHostMap(t, &Options{PageSize: 1})
	pad, err := m.Malloc(3, 1, rw, Policy_HostOnly, false)
	require.NoError(t, err)
	require.Zero(t, pad)

	in := frame{Kind: 2, Depth: -5, PC: 0x401000}
	addr, err := m.MallocValue(&in, rw, Policy_HostOnly)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), addr, "aligned to the pointer width")

	a, ok := m.Allocation(addr)
	require.True(t, ok)
	assert.Equal(t, uint64(16), a.Size)

	pc, err := m.ReadPointer(addr + 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x401000), pc)

	var out frame
	require.NoError(t, m.ReadValue(addr, &out))
	assert.Equal(t, in, out)
}

func TestWriteValue_FollowsProcessLayout(t *testing.T) {
	m, p, _ := newProcessMap(t)
	p.order, p.width = emulator.BO_BIG_ENDIAN, 4

	addr, err := m.MallocValue(frame{Kind: 1, Depth: 1, PC: 0x1020}, rw, Policy_ProcessOnly)
	require.NoError(t, err)

	layout, err := m.Layout()
	require.NoError(t, err)
	assert.Equal(t, 4, layout.PointerSize)

	data, err := p.ReadMemory(addr, 12)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0x10, 0x20}, data)
}

func TestMallocValue_Errors(t *testing.T) {
	m := newHostMap(t, nil)
	_, err := m.MallocValue("text", rw, Policy_HostOnly)
	assert.ErrorIs(t, err, encoding.ErrUnsupportedType)
	assert.Zero(t, m.Len())

	// the write fails after the allocation is made, which must then be released
	withProc, p, _ := newProcessMap(t)
	p.failWrite = errFakeUnmapped
	_, err = withProc.MallocValue(uint32(1), rw, Policy_ProcessOnly)
	assert.ErrorIs(t, err, errFakeUnmapped)
	assert.Zero(t, withProc.Len())
	assert.Len(t, p.deallocs, 1)

	bare, err := New(nil, nil, nil)
	require.NoError(t, err)
	_, err = bare.MallocValue(uint32(1), rw, Policy_HostOnly)
	assert.ErrorIs(t, err, ErrUnknownByteOrder)
}

func TestMallocValue_ReportsFailedRelease(t *testing.T) {
	m, p, _ := newProcessMap(t)
	p.failWrite = errFakeUnmapped
	p.failDealloc = errFakeOutOfMemory

	_, err := m.MallocValue(uint64(1), rw, Policy_Mirror)
	assert.True(t, errors.Is(err, errFakeUnmapped))
	assert.True(t, errors.Is(err, ErrMirrorInconsistent))
	assert.Contains(t, fmt.Sprintf("%+v", err), "fake: out of memory")
	assert.Zero(t, m.Len())
}
