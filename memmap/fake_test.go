package memmap

import (
	"github.com/cockroachdb/errors"

	"github.com/wnxd/irmem/emulator"
)

var (
	errFakeUnmapped    = errors.New("fake: unmapped")
	errFakeOutOfMemory = errors.New("fake: out of memory")
)

// fakeProcess is a sparse byte-addressed debuggee that records every deallocation.
type fakeProcess struct {
	alive     bool
	jit       bool
	order     emulator.ByteOrder
	width     uint32
	next      uint64
	skew      uint64
	mem       map[uint64]byte
	allocs    map[uint64]uint64
	deallocs  []uint64
	failAlloc error
	// failAfter > 0 makes every allocation after the first failAfter fail
	failAfter int
	allocated int
	failWrite   error
	failRead    error
	failDealloc error
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{
		alive:  true,
		jit:    true,
		order:  emulator.BO_LITTLE_ENDIAN,
		width:  8,
		next:   0x7f0000000000,
		mem:    make(map[uint64]byte),
		allocs: make(map[uint64]uint64),
	}
}

func (p *fakeProcess) IsAlive() bool       { return p.alive }
func (p *fakeProcess) CanInjectCode() bool { return p.jit }

func (p *fakeProcess) Allocate(size uint64, perm emulator.MemProt, zeroFill bool) (uint64, error) {
	if p.failAlloc != nil {
		return 0, p.failAlloc
	}
	if p.failAfter > 0 && p.allocated >= p.failAfter {
		return 0, errFakeOutOfMemory
	}
	p.allocated++
	addr := p.next + p.skew
	p.next += Align(size+p.skew, 0x1000)
	p.allocs[addr] = size
	for i := uint64(0); i < size; i++ {
		if zeroFill {
			p.mem[addr+i] = 0
		} else {
			p.mem[addr+i] = 0xCC
		}
	}
	return addr, nil
}

func (p *fakeProcess) Deallocate(addr uint64) error {
	p.deallocs = append(p.deallocs, addr)
	if p.failDealloc != nil {
		return p.failDealloc
	}
	if _, ok := p.allocs[addr]; !ok {
		return errFakeUnmapped
	}
	delete(p.allocs, addr)
	return nil
}

func (p *fakeProcess) ReadMemory(addr, size uint64) ([]byte, error) {
	if p.failRead != nil {
		return nil, p.failRead
	}
	data := make([]byte, size)
	for i := range data {
		b, ok := p.mem[addr+uint64(i)]
		if !ok {
			return nil, errFakeUnmapped
		}
		data[i] = b
	}
	return data, nil
}

func (p *fakeProcess) WriteMemory(addr uint64, data []byte) error {
	if p.failWrite != nil {
		return p.failWrite
	}
	for i, b := range data {
		p.mem[addr+uint64(i)] = b
	}
	return nil
}

func (p *fakeProcess) ByteOrder() emulator.ByteOrder { return p.order }
func (p *fakeProcess) AddressByteSize() uint32       { return p.width }

func (p *fakeProcess) deallocCount(addr uint64) int {
	n := 0
	for _, a := range p.deallocs {
		if a == addr {
			n++
		}
	}
	return n
}

// fakeTarget is a static image; with data set it also serves reads.
type fakeTarget struct {
	ArchTarget
	data map[uint64]byte
}

func (t *fakeTarget) ReadMemory(addr, size uint64) ([]byte, error) {
	out := make([]byte, size)
	for i := range out {
		b, ok := t.data[addr+uint64(i)]
		if !ok {
			return nil, errFakeUnmapped
		}
		out[i] = b
	}
	return out, nil
}
