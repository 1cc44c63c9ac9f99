// Package flat implements emulator.Emulator as a sparse map of host pages.
//
// It executes nothing; it only models the address space of a debuggee so that
// memory consumers can be driven deterministically without a CPU backend.
package flat

import (
	"maps"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/wnxd/irmem/emulator"
)

const DefaultPageSize = 0x1000

type page struct {
	data []byte
	prot emulator.MemProt
}

type Emulator struct {
	arch     emulator.Arch
	order    emulator.ByteOrder
	pageSize uint64
	mu       sync.Mutex
	pages    map[uint64]*page
	closed   bool
}

var _ emulator.Emulator = (*Emulator)(nil)

// New creates an empty address space. BO_INVALID selects the architecture's default byte order.
// pageSize must be a power of two; zero selects DefaultPageSize.
func New(arch emulator.Arch, order emulator.ByteOrder, pageSize uint64) (*Emulator, error) {
	if arch.AddressByteSize() == 0 {
		return nil, emulator.ErrArchUnsupported
	}
	if order == emulator.BO_INVALID {
		order = arch.DefaultByteOrder()
	}
	if pageSize == 0 {
		pageSize = DefaultPageSize
	} else if pageSize&(pageSize-1) != 0 {
		return nil, errors.Newf("flat: page size %#x is not a power of two", pageSize)
	}
	return &Emulator{
		arch:     arch,
		order:    order,
		pageSize: pageSize,
		pages:    make(map[uint64]*page),
	}, nil
}

func (e *Emulator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	clear(e.pages)
	e.closed = true
	return nil
}

func (e *Emulator) Arch() emulator.Arch {
	return e.arch
}

func (e *Emulator) ByteOrder() emulator.ByteOrder {
	return e.order
}

func (e *Emulator) PageSize() uint64 {
	return e.pageSize
}

func (e *Emulator) MemMap(addr, size uint64, prot emulator.MemProt) error {
	if err := e.checkRange(addr, size); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for base := range e.rangePages(addr, size) {
		if _, ok := e.pages[base]; ok {
			return errors.Wrapf(emulator.ErrMapped, "flat: page %#x", base)
		}
	}
	for base := range e.rangePages(addr, size) {
		e.pages[base] = &page{data: make([]byte, e.pageSize), prot: prot}
	}
	return nil
}

func (e *Emulator) MemUnmap(addr, size uint64) error {
	if err := e.checkRange(addr, size); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkMapped(addr, size); err != nil {
		return err
	}
	for base := range e.rangePages(addr, size) {
		delete(e.pages, base)
	}
	return nil
}

func (e *Emulator) MemProtect(addr, size uint64, prot emulator.MemProt) error {
	if err := e.checkRange(addr, size); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkMapped(addr, size); err != nil {
		return err
	}
	for base := range e.rangePages(addr, size) {
		e.pages[base].prot = prot
	}
	return nil
}

// MemRegions merges adjacent pages with identical protection into regions, lowest address first.
func (e *Emulator) MemRegions() ([]emulator.MemRegion, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var regions []emulator.MemRegion
	for _, base := range slices.Sorted(maps.Keys(e.pages)) {
		prot := e.pages[base].prot
		if n := len(regions); n > 0 && regions[n-1].End() == base && regions[n-1].Prot == prot {
			regions[n-1].Size += e.pageSize
			continue
		}
		regions = append(regions, emulator.MemRegion{Addr: base, Size: e.pageSize, Prot: prot})
	}
	return regions, nil
}

// MemRead copies host-side, so page protection does not apply.
func (e *Emulator) MemRead(addr, size uint64) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkAccess(addr, size); err != nil {
		return nil, err
	}
	data := make([]byte, size)
	e.access(addr, data, func(mem, buf []byte) { copy(buf, mem) })
	return data, nil
}

func (e *Emulator) MemWrite(addr uint64, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkAccess(addr, uint64(len(data))); err != nil {
		return err
	}
	e.access(addr, data, func(mem, buf []byte) { copy(mem, buf) })
	return nil
}

// checkAccess requires every page of [addr, addr+size) to be mapped.
func (e *Emulator) checkAccess(addr, size uint64) error {
	if e.closed {
		return errors.Wrap(emulator.ErrUnmapped, "flat: emulator closed")
	}
	if addr+size < addr {
		return errors.Wrapf(emulator.ErrUnmapped, "flat: range %#x+%#x wraps", addr, size)
	}
	return e.checkMapped(addr&^(e.pageSize-1), size+addr&(e.pageSize-1))
}

// access walks a checked range page by page.
func (e *Emulator) access(addr uint64, buf []byte, fn func(mem, buf []byte)) {
	size := uint64(len(buf))
	for done := uint64(0); done < size; {
		cur := addr + done
		off := cur & (e.pageSize - 1)
		p := e.pages[cur-off]
		n := min(e.pageSize-off, size-done)
		fn(p.data[off:off+n], buf[done:done+n])
		done += n
	}
}

func (e *Emulator) checkRange(addr, size uint64) error {
	mask := e.pageSize - 1
	if addr&mask != 0 || size&mask != 0 || size == 0 {
		return errors.Wrapf(emulator.ErrUnaligned, "flat: range %#x+%#x", addr, size)
	}
	if addr+size < addr {
		return errors.Wrapf(emulator.ErrUnaligned, "flat: range %#x+%#x wraps", addr, size)
	}
	return nil
}

func (e *Emulator) checkMapped(addr, size uint64) error {
	for base := range e.rangePages(addr, size) {
		if _, ok := e.pages[base]; !ok {
			return errors.Wrapf(emulator.ErrUnmapped, "flat: page %#x", base)
		}
	}
	return nil
}

func (e *Emulator) rangePages(addr, size uint64) func(yield func(uint64) bool) {
	return func(yield func(uint64) bool) {
		for off := uint64(0); off < size; off += e.pageSize {
			if !yield(addr + off) {
				return
			}
		}
	}
}
