package memmap

// FindAllocation returns the allocation that contains all of [addr, addr+size).
// A range that straddles the edge of an allocation is not found.
func (m *Map) FindAllocation(addr, size uint64) (Allocation, bool) {
	a, ok := m.find(addr, size)
	if !ok {
		return Allocation{}, false
	}
	return a.info(), true
}

// find treats a zero size as one byte, so a zero-size range at an allocation's end is outside
// it. LLDB's IRMemoryMap::FindAllocation accepts that range.
func (m *Map) find(addr, size uint64) (*allocation, bool) {
	e, ok := m.allocs.Containing(addr, size)
	if !ok {
		return nil, false
	}
	return e.Value, true
}

// IntersectsAllocation reports whether [addr, addr+size) overlaps any allocation.
func (m *Map) IntersectsAllocation(addr, size uint64) bool {
	return m.allocs.Intersects(addr, size)
}
