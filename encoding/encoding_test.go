package encoding

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	le64 = Layout{Order: binary.LittleEndian, PointerSize: 8}
	be32 = Layout{Order: binary.BigEndian, PointerSize: 4}
)

type header struct {
	Tag   uint8
	Count uint32
	Flag  bool
	Size  uintptr
}

type withIgnored struct {
	A     uint16
	Cache []byte `encoding:"ignore"`
	B     uint16
}

func TestMeasure_StructPadding(t *testing.T) {
	size, align, err := Measure(le64, header{})
	require.NoError(t, err)
	// tag@0 count@4 flag@8 size@16
	assert.Equal(t, 24, size)
	assert.Equal(t, 8, align)

	size, align, err = Measure(be32, &header{})
	require.NoError(t, err)
	// tag@0 count@4 flag@8 size@12
	assert.Equal(t, 16, size)
	assert.Equal(t, 4, align)
}

func TestMarshal_ByteOrder(t *testing.T) {
	v := uint32(0x11223344)
	data, err := Marshal(le64, &v)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x44, 0x33, 0x22, 0x11}, data)

	data, err = Marshal(be32, v)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x11, 0x22, 0x33, 0x44}, data)
}

func TestMarshal_StructLayout(t *testing.T) {
	h := header{Tag: 7, Count: 0x01020304, Flag: true, Size: 0xAABB}
	data, err := Marshal(be32, &h)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		7, 0, 0, 0,
		1, 2, 3, 4,
		1, 0, 0, 0,
		0, 0, 0xAA, 0xBB,
	}, data)

	var out header
	require.NoError(t, Unmarshal(be32, data, &out))
	assert.Equal(t, h, out)
}

func TestUnmarshal_SignExtendsInt(t *testing.T) {
	var v int
	require.NoError(t, Unmarshal(be32, []byte{0xFF, 0xFF, 0xFF, 0xFE}, &v))
	assert.Equal(t, -2, v)
}

func TestMarshal_ArraysAndFloats(t *testing.T) {
	in := struct {
		F [2]float32
		D float64
	}{F: [2]float32{1.5, -2}, D: 3.25}
	data, err := Marshal(le64, &in)
	require.NoError(t, err)
	require.Len(t, data, 16)

	out := in
	out.F, out.D = [2]float32{}, 0
	require.NoError(t, Unmarshal(le64, data, &out))
	assert.Equal(t, in, out)
}

func TestMarshal_IgnoredFields(t *testing.T) {
	in := withIgnored{A: 1, Cache: []byte("skip"), B: 2}
	data, err := Marshal(le64, &in)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 2, 0}, data)
}

func TestMarshal_Unsupported(t *testing.T) {
	_, err := Marshal(le64, "text")
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = Marshal(le64, &struct{ P *int }{})
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = Marshal(Layout{PointerSize: 8}, uint8(1))
	assert.ErrorIs(t, err, ErrInvalidLayout)
}

func TestUnmarshal_Errors(t *testing.T) {
	var v uint64
	assert.ErrorIs(t, Unmarshal(le64, []byte{1, 2}, &v), ErrShortBuffer)
	assert.ErrorIs(t, Unmarshal(le64, make([]byte, 8), v), ErrNotPointer)
	assert.ErrorIs(t, Unmarshal(le64, make([]byte, 8), (*uint64)(nil)), ErrNotPointer)
}
