package memmap

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"

	"github.com/wnxd/irmem/emulator"
)

// ByteOrder resolves the byte order from the process, then the target, else BO_INVALID.
func (m *Map) ByteOrder() emulator.ByteOrder {
	if p, ok := m.resolveProcess(); ok {
		return p.ByteOrder()
	}
	if t, ok := m.resolveTarget(); ok {
		return t.ByteOrder()
	}
	return emulator.BO_INVALID
}

// AddressByteSize resolves the pointer width from the process, then the target, else
// AddressSizeUnknown.
func (m *Map) AddressByteSize() uint32 {
	if p, ok := m.resolveProcess(); ok {
		return p.AddressByteSize()
	}
	if t, ok := m.resolveTarget(); ok {
		return t.AddressByteSize()
	}
	return AddressSizeUnknown
}

func (m *Map) binaryOrder() (binary.ByteOrder, error) {
	bo := m.ByteOrder()
	if order := bo.Binary(); order != nil {
		return order, nil
	}
	return nil, errors.Wrapf(ErrUnknownByteOrder, "byte order %d", int(bo))
}

func checkScalarSize(size uint64) error {
	switch size {
	case 0:
		return ErrZeroSizeOperation
	case 1, 2, 4, 8:
		return nil
	}
	return errors.Wrapf(ErrUnsupportedSize, "%d bytes", size)
}

// ReadScalar reads an unsigned integer of size 1, 2, 4 or 8 bytes in target byte order.
func (m *Map) ReadScalar(addr, size uint64) (uint64, error) {
	if err := checkScalarSize(size); err != nil {
		return 0, errors.Wrap(err, "couldn't read scalar")
	}
	order, err := m.binaryOrder()
	if err != nil {
		return 0, errors.Wrap(err, "couldn't read scalar")
	}
	var buf [8]byte
	if err := m.Read(buf[:size], addr); err != nil {
		return 0, err
	}
	switch size {
	case 1:
		return uint64(buf[0]), nil
	case 2:
		return uint64(order.Uint16(buf[:])), nil
	case 4:
		return uint64(order.Uint32(buf[:])), nil
	}
	return order.Uint64(buf[:]), nil
}

// WriteScalar stores the low size bytes of value in target byte order.
func (m *Map) WriteScalar(addr, value, size uint64) error {
	if err := checkScalarSize(size); err != nil {
		return errors.Wrap(err, "couldn't write scalar")
	}
	order, err := m.binaryOrder()
	if err != nil {
		return errors.Wrap(err, "couldn't write scalar")
	}
	var buf [8]byte
	switch size {
	case 1:
		buf[0] = byte(value)
	case 2:
		order.PutUint16(buf[:], uint16(value))
	case 4:
		order.PutUint32(buf[:], uint32(value))
	case 8:
		order.PutUint64(buf[:], value)
	}
	return m.Write(addr, buf[:size])
}

func (m *Map) pointerSize() (uint64, error) {
	size := m.AddressByteSize()
	if size == AddressSizeUnknown {
		return 0, errors.Wrap(ErrUnsupportedSize, "address size unknown")
	}
	return uint64(size), nil
}

func (m *Map) ReadPointer(addr uint64) (uint64, error) {
	size, err := m.pointerSize()
	if err != nil {
		return 0, errors.Wrap(err, "couldn't read pointer")
	}
	return m.ReadScalar(addr, size)
}

func (m *Map) WritePointer(addr, value uint64) error {
	size, err := m.pointerSize()
	if err != nil {
		return errors.Wrap(err, "couldn't write pointer")
	}
	return m.WriteScalar(addr, value, size)
}
