package memmap

import (
	"github.com/cockroachdb/errors"
)

// Read fills dst from addr. Ranges outside every allocation are read from the process, or
// from the target image when there is no process.
func (m *Map) Read(dst []byte, addr uint64) error {
	if m.closed {
		return ErrClosed
	}
	size := uint64(len(dst))
	a, ok := m.find(addr, size)
	if !ok {
		if p, ok := m.resolveProcess(); ok {
			return readProcess(p, dst, addr)
		}
		if t, ok := m.resolveTarget(); ok {
			if r, ok := t.(TargetReader); ok {
				data, err := r.ReadMemory(addr, size)
				if err != nil {
					return errors.Wrapf(err, "couldn't read [%#x..%#x) from target", addr, addr+size)
				}
				return fill(dst, data, addr)
			}
		}
		return errors.Wrapf(ErrNoBackingStore, "couldn't read [%#x..%#x)", addr, addr+size)
	}

	offset := addr - a.aligned
	switch a.policy {
	case Policy_HostOnly:
		if err := a.readShadow(dst, offset); err != nil {
			return errors.Wrapf(err, "couldn't read %#x", addr)
		}
	case Policy_Mirror:
		if p, ok := m.resolveProcess(); ok {
			if err := readProcess(p, dst, addr); err != nil {
				return err
			}
			if a.data.Fits(offset, size) {
				copy(a.data[offset:], dst)
			}
		} else if err := a.readShadow(dst, offset); err != nil {
			return errors.Wrapf(err, "couldn't read %#x", addr)
		}
	case Policy_ProcessOnly:
		p, ok := m.resolveProcess()
		if !ok {
			return errors.Wrapf(ErrProcessUnavailable, "couldn't read %#x", addr)
		}
		if err := readProcess(p, dst, addr); err != nil {
			return err
		}
	default:
		return errors.Wrapf(ErrInvalidPolicy, "couldn't read %#x", addr)
	}

	m.log.Debug("read", "address", addr, "size", size, "start", a.aligned, "end", a.aligned+a.size)
	return nil
}

// Write stores src at addr. Outside every allocation only a process can take the write.
//
// A mirrored allocation updates its shadow copy first and then the process. If the process
// write fails the returned error is marked ErrMirrorInconsistent and the shadow keeps the
// new bytes.
func (m *Map) Write(addr uint64, src []byte) error {
	if m.closed {
		return ErrClosed
	}
	size := uint64(len(src))
	a, ok := m.find(addr, size)
	if !ok {
		if p, ok := m.resolveProcess(); ok {
			if err := p.WriteMemory(addr, src); err != nil {
				return errors.Wrapf(err, "couldn't write [%#x..%#x) to process", addr, addr+size)
			}
			return nil
		}
		return errors.Wrapf(ErrNoBackingStore, "couldn't write [%#x..%#x)", addr, addr+size)
	}

	offset := addr - a.aligned
	switch a.policy {
	case Policy_HostOnly:
		if err := a.writeShadow(src, offset); err != nil {
			return errors.Wrapf(err, "couldn't write %#x", addr)
		}
	case Policy_Mirror:
		if err := a.writeShadow(src, offset); err != nil {
			return errors.Wrapf(err, "couldn't write %#x", addr)
		}
		if p, ok := m.resolveProcess(); ok {
			if err := p.WriteMemory(addr, src); err != nil {
				return errors.Mark(errors.Wrapf(err, "couldn't write [%#x..%#x) to process", addr, addr+size), ErrMirrorInconsistent)
			}
		}
	case Policy_ProcessOnly:
		p, ok := m.resolveProcess()
		if !ok {
			return errors.Wrapf(ErrProcessUnavailable, "couldn't write %#x", addr)
		}
		if err := p.WriteMemory(addr, src); err != nil {
			return errors.Wrapf(err, "couldn't write [%#x..%#x) to process", addr, addr+size)
		}
	default:
		return errors.Wrapf(ErrInvalidPolicy, "couldn't write %#x", addr)
	}

	m.log.Debug("write", "address", addr, "size", size, "start", a.aligned, "end", a.aligned+a.size)
	return nil
}

// GetMemoryData returns the bytes of [addr, addr+size) without copying. The range must lie in
// a single allocation that has a shadow buffer; mirrored allocations are refreshed from the
// process first. The slice aliases the shadow buffer and is valid until the allocation is
// written or freed.
func (m *Map) GetMemoryData(addr, size uint64) ([]byte, error) {
	if m.closed {
		return nil, ErrClosed
	}
	if size == 0 {
		return nil, errors.Wrap(ErrZeroSizeOperation, "couldn't get memory data")
	}
	a, ok := m.find(addr, size)
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "couldn't find an allocation containing [%#x..%#x)", addr, addr+size)
	}
	offset := addr - a.aligned
	switch a.policy {
	case Policy_ProcessOnly:
		return nil, errors.Wrapf(ErrNoLocalBuffer, "couldn't get memory data at %#x", addr)
	case Policy_Mirror:
		if a.data.Empty() {
			return nil, errors.Wrapf(ErrEmptyBuffer, "couldn't get memory data at %#x", addr)
		}
		if p, ok := m.resolveProcess(); ok {
			if err := readProcess(p, a.data, a.aligned); err != nil {
				return nil, err
			}
		}
	case Policy_HostOnly:
		if a.data.Empty() {
			return nil, errors.Wrapf(ErrEmptyBuffer, "couldn't get memory data at %#x", addr)
		}
	default:
		return nil, errors.Wrapf(ErrInvalidPolicy, "couldn't get memory data at %#x", addr)
	}
	if !a.data.Fits(offset, size) {
		return nil, errors.Wrapf(ErrInsufficientData, "couldn't get memory data at %#x", addr)
	}
	return a.data.View(offset, size), nil
}

func (a *allocation) readShadow(dst []byte, offset uint64) error {
	if a.data.Empty() {
		return ErrEmptyBuffer
	}
	if !a.data.Fits(offset, uint64(len(dst))) {
		return ErrInsufficientData
	}
	if _, err := a.data.ReadAt(dst, int64(offset)); err != nil {
		return ErrInsufficientData
	}
	return nil
}

func (a *allocation) writeShadow(src []byte, offset uint64) error {
	if a.data.Empty() {
		return ErrEmptyBuffer
	}
	if _, err := a.data.WriteAt(src, int64(offset)); err != nil {
		return ErrInsufficientData
	}
	return nil
}

func readProcess(p Process, dst []byte, addr uint64) error {
	data, err := p.ReadMemory(addr, uint64(len(dst)))
	if err != nil {
		return errors.Wrapf(err, "couldn't read [%#x..%#x) from process", addr, addr+uint64(len(dst)))
	}
	return fill(dst, data, addr)
}

func fill(dst, data []byte, addr uint64) error {
	if len(data) < len(dst) {
		return errors.Wrapf(ErrInsufficientData, "couldn't read %#x: got %d of %d bytes", addr, len(data), len(dst))
	}
	copy(dst, data)
	return nil
}
