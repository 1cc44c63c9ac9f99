package memmap

import (
	"github.com/cockroachdb/errors"

	"github.com/wnxd/irmem/emulator"
	"github.com/wnxd/irmem/internal/ranges"
	"github.com/wnxd/irmem/internal/shadow"
)

// Malloc reserves size bytes aligned to alignment under policy and returns the aligned address.
// A zero size reserves exactly one alignment unit. On failure the map is unchanged.
func (m *Map) Malloc(size, alignment uint64, perm emulator.MemProt, policy Policy, zeroFill bool) (uint64, error) {
	if m.closed {
		return 0, ErrClosed
	}
	if !policy.valid() {
		return 0, errors.Wrapf(ErrInvalidPolicy, "couldn't malloc: policy %d", int(policy))
	}
	if !isPowerOfTwo(alignment) {
		return 0, errors.Wrapf(ErrInvalidAlignment, "couldn't malloc: alignment %d", alignment)
	}
	allocSize := alignment
	if size != 0 {
		allocSize = Align(size, alignment)
		if allocSize < size {
			return 0, errors.Wrapf(ErrAddressSpaceFull, "couldn't malloc: size %#x", size)
		}
	}

	var (
		raw       uint64
		owner     Process
		effective = policy
		err       error
	)
	switch policy {
	case Policy_HostOnly:
		raw, err = m.findSpace(allocSize, alignment)
	case Policy_Mirror:
		p, ok := m.resolveProcess()
		capable := ok && p.CanInjectCode() && p.IsAlive()
		m.log.Debug("mirror allocation", "process", ok, "capable", capable)
		if capable {
			raw, err = m.allocateAligned(p, allocSize, alignment, perm, zeroFill)
			owner = p
		} else {
			m.log.Debug("switching to HostOnly: no capable process")
			effective = Policy_HostOnly
			raw, err = m.findSpace(allocSize, alignment)
		}
	case Policy_ProcessOnly:
		p, ok := m.resolveProcess()
		if !ok {
			return 0, errors.Wrap(ErrProcessUnavailable, "couldn't malloc: this memory must be in the process")
		}
		if !p.CanInjectCode() || !p.IsAlive() {
			return 0, errors.Wrap(ErrProcessNotCapable, "couldn't malloc")
		}
		raw, err = m.allocateAligned(p, allocSize, alignment, perm, zeroFill)
		owner = p
	}
	if err != nil {
		return 0, errors.Wrap(err, "couldn't malloc")
	}

	aligned := Align(raw, alignment)
	if aligned < raw || aligned+allocSize < aligned {
		m.release(owner, raw)
		return 0, errors.Wrapf(ErrAddressSpaceFull, "couldn't malloc: %#x+%#x", raw, allocSize)
	}
	if owner == nil && aligned+allocSize > m.opts.SimulatedLimit {
		return 0, errors.Wrapf(ErrAddressSpaceFull, "couldn't malloc: %#x+%#x exceeds %#x", aligned, allocSize, m.opts.SimulatedLimit)
	}

	a := &allocation{
		raw:       raw,
		aligned:   aligned,
		size:      allocSize,
		perm:      perm,
		alignment: alignment,
		policy:    effective,
		requested: policy,
	}
	if effective != Policy_ProcessOnly {
		a.data = shadow.New(allocSize)
	}
	if !m.allocs.Insert(aligned, allocSize, a) {
		m.release(owner, raw)
		return 0, errors.Wrapf(ErrOverlap, "couldn't malloc: [%#x..%#x)", aligned, aligned+allocSize)
	}

	m.log.Debug("malloc",
		"size", allocSize,
		"alignment", alignment,
		"permissions", perm.String(),
		"policy", effective.String(),
		"address", aligned)
	return aligned, nil
}

// allocateAligned asks p for size bytes starting on an alignment boundary. A block that comes
// back misaligned is released and requested again with alignment-1 bytes of slack, so that
// [Align(raw, alignment), +size) lies inside the memory the process handed out.
func (m *Map) allocateAligned(p Process, size, alignment uint64, perm emulator.MemProt, zeroFill bool) (uint64, error) {
	raw, err := p.Allocate(size, perm, zeroFill)
	if err != nil || raw&(alignment-1) == 0 {
		return raw, err
	}
	m.release(p, raw)
	padded := size + alignment - 1
	if padded < size {
		return 0, errors.Wrapf(ErrAddressSpaceFull, "%#x bytes aligned to %#x", size, alignment)
	}
	m.log.Debug("misaligned process block", "address", raw, "alignment", alignment, "retry", padded)
	return p.Allocate(padded, perm, zeroFill)
}

// release returns memory the process handed out for an allocation that could not be tracked.
func (m *Map) release(p Process, raw uint64) {
	if p == nil {
		return
	}
	if err := p.Deallocate(raw); err != nil {
		m.log.Debug("release failed", "address", raw, "error", err)
	}
}

// FindSpace picks the start of the next simulated allocation: 0 when there is none, otherwise the
// end of the highest simulated allocation rounded up to the page size. Process-backed allocations
// in the way are stepped over. Freed simulated ranges are never handed out again.
func (m *Map) FindSpace(size uint64) (uint64, error) {
	return m.findSpace(size, 1)
}

// findSpace is FindSpace for a range that will start at Align(addr, alignment).
func (m *Map) findSpace(size, alignment uint64) (uint64, error) {
	if size == 0 {
		return 0, errors.Wrap(ErrZeroSizeOperation, "couldn't find space")
	}
	var addr uint64
	for e := range m.allocs.Backward() {
		if e.Value.policy != Policy_HostOnly {
			continue
		}
		next, ok := m.pageAfter(e)
		if !ok {
			return 0, errors.Wrap(ErrAddressSpaceFull, "couldn't find space")
		}
		addr = next
		break
	}
	for {
		start := Align(addr, alignment)
		if start < addr || size > m.opts.SimulatedLimit || start > m.opts.SimulatedLimit-size {
			return 0, errors.Wrapf(ErrAddressSpaceFull, "couldn't find space for %#x bytes at %#x", size, addr)
		}
		blocking, ok := m.allocs.Floor(start + size - 1)
		if !ok || blocking.End() <= start {
			return addr, nil
		}
		next, ok := m.pageAfter(blocking)
		if !ok {
			return 0, errors.Wrap(ErrAddressSpaceFull, "couldn't find space")
		}
		addr = next
	}
}

func (m *Map) pageAfter(e ranges.Entry[*allocation]) (uint64, bool) {
	end := e.End()
	next := Align(end, m.opts.PageSize)
	return next, end >= e.Start && next >= end
}

// Free releases the allocation at addr. Process-backed memory is returned to the process when
// one is attached; the tracker forgets the allocation either way. A deallocation error is
// reported after the entry has been removed.
func (m *Map) Free(addr uint64) error {
	if m.closed {
		return ErrClosed
	}
	e, ok := m.allocs.Get(addr)
	if !ok {
		return errors.Wrapf(ErrNotFound, "couldn't free %#x", addr)
	}
	a := e.Value
	var err error
	switch a.policy {
	case Policy_ProcessOnly, Policy_Mirror:
		if p, ok := m.resolveProcess(); ok {
			if derr := p.Deallocate(a.raw); derr != nil {
				err = errors.Wrapf(derr, "couldn't free %#x: process deallocation of %#x", addr, a.raw)
			}
		}
	}
	a.data = nil
	m.allocs.Delete(addr)
	m.log.Debug("free", "address", addr, "start", a.aligned, "end", a.aligned+a.size)
	return err
}

// Leak excludes the allocation at addr from the teardown in Close. It stays readable,
// writable and explicitly freeable.
func (m *Map) Leak(addr uint64) error {
	if m.closed {
		return ErrClosed
	}
	e, ok := m.allocs.Get(addr)
	if !ok {
		return errors.Wrapf(ErrNotFound, "couldn't leak %#x", addr)
	}
	e.Value.leak = true
	return nil
}
