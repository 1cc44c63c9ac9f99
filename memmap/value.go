package memmap

import (
	"github.com/cockroachdb/errors"

	"github.com/wnxd/irmem/emulator"
	"github.com/wnxd/irmem/encoding"
)

// Layout resolves the target memory model used to encode typed values.
func (m *Map) Layout() (encoding.Layout, error) {
	order, err := m.binaryOrder()
	if err != nil {
		return encoding.Layout{}, err
	}
	size, err := m.pointerSize()
	if err != nil {
		return encoding.Layout{}, err
	}
	return encoding.Layout{Order: order, PointerSize: int(size)}, nil
}

// WriteValue encodes val in the target layout and writes it at addr.
func (m *Map) WriteValue(addr uint64, val any) error {
	layout, err := m.Layout()
	if err != nil {
		return errors.Wrap(err, "couldn't write value")
	}
	data, err := encoding.Marshal(layout, val)
	if err != nil {
		return errors.Wrap(err, "couldn't write value")
	}
	if len(data) == 0 {
		return nil
	}
	return m.Write(addr, data)
}

// ReadValue reads the target representation of *val from addr and decodes it into val.
func (m *Map) ReadValue(addr uint64, val any) error {
	layout, err := m.Layout()
	if err != nil {
		return errors.Wrap(err, "couldn't read value")
	}
	size, _, err := encoding.Measure(layout, val)
	if err != nil {
		return errors.Wrap(err, "couldn't read value")
	}
	buf := make([]byte, size)
	if size > 0 {
		if err := m.Read(buf, addr); err != nil {
			return err
		}
	}
	return encoding.Unmarshal(layout, buf, val)
}

// MallocValue allocates room for val with its natural target alignment and stores it there.
// The allocation is released again if the value cannot be written.
func (m *Map) MallocValue(val any, perm emulator.MemProt, policy Policy) (uint64, error) {
	layout, err := m.Layout()
	if err != nil {
		return 0, errors.Wrap(err, "couldn't malloc value")
	}
	size, align, err := encoding.Measure(layout, val)
	if err != nil {
		return 0, errors.Wrap(err, "couldn't malloc value")
	}
	addr, err := m.Malloc(uint64(size), uint64(align), perm, policy, false)
	if err != nil {
		return 0, err
	}
	if err := m.WriteValue(addr, val); err != nil {
		return 0, errors.CombineErrors(err, m.Free(addr))
	}
	return addr, nil
}
