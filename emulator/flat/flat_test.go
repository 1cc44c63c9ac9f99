package flat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wnxd/irmem/emulator"
)

const rw = emulator.MEM_PROT_READ | emulator.MEM_PROT_WRITE

func newEmu(t *testing.T) *Emulator {
	t.Helper()
	e, err := New(emulator.ARCH_ARM64, emulator.BO_LITTLE_ENDIAN, 0)
	require.NoError(t, err)
	return e
}

func TestNew(t *testing.T) {
	e := newEmu(t)
	assert.Equal(t, uint64(DefaultPageSize), e.PageSize())
	assert.Equal(t, emulator.ARCH_ARM64, e.Arch())
	assert.Equal(t, emulator.BO_LITTLE_ENDIAN, e.ByteOrder())

	_, err := New(emulator.ARCH_UNKNOWN, emulator.BO_LITTLE_ENDIAN, 0)
	assert.ErrorIs(t, err, emulator.ErrArchUnsupported)
	_, err = New(emulator.ARCH_X86, emulator.BO_LITTLE_ENDIAN, 0x1800)
	assert.Error(t, err)
}

func TestMapUnmap(t *testing.T) {
	e := newEmu(t)

	assert.ErrorIs(t, e.MemMap(0x1001, 0x1000, rw), emulator.ErrUnaligned)
	assert.ErrorIs(t, e.MemMap(0x1000, 0x10, rw), emulator.ErrUnaligned)
	assert.ErrorIs(t, e.MemMap(0x1000, 0, rw), emulator.ErrUnaligned)

	require.NoError(t, e.MemMap(0x1000, 0x2000, rw))
	assert.ErrorIs(t, e.MemMap(0x2000, 0x2000, rw), emulator.ErrMapped)

	assert.ErrorIs(t, e.MemUnmap(0x2000, 0x2000), emulator.ErrUnmapped)
	require.NoError(t, e.MemUnmap(0x2000, 0x1000))
	_, err := e.MemRead(0x2000, 1)
	assert.ErrorIs(t, err, emulator.ErrUnmapped)
}

func TestReadWriteAcrossPages(t *testing.T) {
	e := newEmu(t)
	require.NoError(t, e.MemMap(0x10000, 0x2000, emulator.MEM_PROT_READ))

	data := []byte{1, 2, 3, 4, 5, 6}
	// protection is not enforced host-side
	require.NoError(t, e.MemWrite(0x10FFD, data))
	got, err := e.MemRead(0x10FFD, uint64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, data, got)

	got, err = e.MemRead(0x10000, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, got)

	assert.ErrorIs(t, e.MemWrite(0x11FFF, []byte{1, 2}), emulator.ErrUnmapped)
	_, err = e.MemRead(^uint64(0), 2)
	assert.ErrorIs(t, err, emulator.ErrUnmapped)
}

func TestRegionsAndProtect(t *testing.T) {
	e := newEmu(t)
	require.NoError(t, e.MemMap(0x1000, 0x3000, rw))
	require.NoError(t, e.MemMap(0x8000, 0x1000, rw))
	require.NoError(t, e.MemProtect(0x2000, 0x1000, emulator.MEM_PROT_READ))
	assert.ErrorIs(t, e.MemProtect(0x5000, 0x1000, rw), emulator.ErrUnmapped)

	regions, err := e.MemRegions()
	require.NoError(t, err)
	assert.Equal(t, []emulator.MemRegion{
		{Addr: 0x1000, Size: 0x1000, Prot: rw},
		{Addr: 0x2000, Size: 0x1000, Prot: emulator.MEM_PROT_READ},
		{Addr: 0x3000, Size: 0x1000, Prot: rw},
		{Addr: 0x8000, Size: 0x1000, Prot: rw},
	}, regions)
}

func TestClose(t *testing.T) {
	e := newEmu(t)
	require.NoError(t, e.MemMap(0x1000, 0x1000, rw))
	require.NoError(t, e.Close())
	_, err := e.MemRead(0x1000, 1)
	assert.ErrorIs(t, err, emulator.ErrUnmapped)
	regions, err := e.MemRegions()
	require.NoError(t, err)
	assert.Empty(t, regions)
}

func TestMemRead_HugeSizeFailsBeforeAllocating(t *testing.T) {
	e := newEmu(t)
	require.NoError(t, e.MemMap(0x1000, 0x1000, rw))

	_, err := e.MemRead(0x1000, 1<<62)
	assert.ErrorIs(t, err, emulator.ErrUnmapped)
	_, err = e.MemRead(0x1000, ^uint64(0)-0x1000)
	assert.ErrorIs(t, err, emulator.ErrUnmapped)
}

func TestNew_DefaultByteOrder(t *testing.T) {
	e, err := New(emulator.ARCH_ARM, emulator.BO_INVALID, 0)
	require.NoError(t, err)
	assert.Equal(t, emulator.BO_LITTLE_ENDIAN, e.ByteOrder())

	e, err = New(emulator.ARCH_ARM, emulator.BO_BIG_ENDIAN, 0)
	require.NoError(t, err)
	assert.Equal(t, emulator.BO_BIG_ENDIAN, e.ByteOrder())
}
