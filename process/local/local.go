//go:build linux || darwin

// Package local exposes the host process itself as a memmap.Process, so expressions can be
// JIT-compiled and run in-process. Memory comes from anonymous mappings.
package local

import (
	"encoding/binary"
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"

	"github.com/wnxd/irmem/emulator"
	"github.com/wnxd/irmem/memmap"
)

var (
	ErrAddressInvalid = errors.New("local: address invalid")
	ErrClosed         = errors.New("local: process closed")
)

type Process struct {
	mu       sync.Mutex
	pageSize uint64
	regions  map[uint64][]byte
	closed   bool
}

var _ memmap.Process = (*Process)(nil)

func New() *Process {
	return &Process{
		pageSize: uint64(unix.Getpagesize()),
		regions:  make(map[uint64][]byte),
	}
}

func toProt(perm emulator.MemProt) int {
	prot := unix.PROT_NONE
	if perm&emulator.MEM_PROT_READ != 0 {
		prot |= unix.PROT_READ
	}
	if perm&emulator.MEM_PROT_WRITE != 0 {
		prot |= unix.PROT_WRITE
	}
	if perm&emulator.MEM_PROT_EXEC != 0 {
		prot |= unix.PROT_EXEC
	}
	return prot
}

func (p *Process) IsAlive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed
}

func (p *Process) CanInjectCode() bool {
	return true
}

// Allocate maps fresh anonymous pages. The kernel hands them out zeroed, so zeroFill needs no work.
// Pages stay readable and writable from the host whatever perm says, since ReadMemory and
// WriteMemory access them directly; perm only adds execute. Use Protect to narrow them.
func (p *Process) Allocate(size uint64, perm emulator.MemProt, zeroFill bool) (uint64, error) {
	if size == 0 {
		return 0, errors.Wrap(ErrAddressInvalid, "local: zero-size allocation")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrClosed
	}
	size = memmap.Align(size, p.pageSize)
	mem, err := unix.Mmap(-1, 0, int(size), toProt(perm)|unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return 0, errors.Wrapf(err, "local: mmap %#x bytes", size)
	}
	addr := uint64(uintptr(unsafe.Pointer(unsafe.SliceData(mem))))
	p.regions[addr] = mem
	return addr, nil
}

func (p *Process) Deallocate(addr uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	mem, ok := p.regions[addr]
	if !ok {
		return errors.Wrapf(ErrAddressInvalid, "local: deallocate %#x", addr)
	}
	delete(p.regions, addr)
	if err := unix.Munmap(mem); err != nil {
		return errors.Wrapf(err, "local: munmap %#x", addr)
	}
	return nil
}

// Protect applies perm to the whole region starting at addr.
func (p *Process) Protect(addr uint64, perm emulator.MemProt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	mem, ok := p.regions[addr]
	if !ok {
		return errors.Wrapf(ErrAddressInvalid, "local: protect %#x", addr)
	}
	return unix.Mprotect(mem, toProt(perm))
}

// region returns the mapping bytes backing [addr, addr+size). Access outside mappings made by
// this Process is refused rather than risking a fault in the host.
func (p *Process) region(addr, size uint64) ([]byte, error) {
	if p.closed {
		return nil, ErrClosed
	}
	for base, mem := range p.regions {
		if (emulator.MemRegion{Addr: base, Size: uint64(len(mem))}).Contains(addr, size) {
			return mem[addr-base : addr-base+size], nil
		}
	}
	return nil, errors.Wrapf(ErrAddressInvalid, "local: [%#x..%#x) is not mapped", addr, addr+size)
}

func (p *Process) ReadMemory(addr, size uint64) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	mem, err := p.region(addr, size)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), mem...), nil
}

func (p *Process) WriteMemory(addr uint64, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	mem, err := p.region(addr, uint64(len(data)))
	if err != nil {
		return err
	}
	copy(mem, data)
	return nil
}

func (p *Process) ByteOrder() emulator.ByteOrder {
	var probe [2]byte
	binary.NativeEndian.PutUint16(probe[:], 1)
	if probe[0] == 1 {
		return emulator.BO_LITTLE_ENDIAN
	}
	return emulator.BO_BIG_ENDIAN
}

func (p *Process) AddressByteSize() uint32 {
	return uint32(unsafe.Sizeof(uintptr(0)))
}

// Close unmaps every region. The process reports itself dead afterwards.
func (p *Process) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs error
	for addr, mem := range p.regions {
		errs = errors.CombineErrors(errs, unix.Munmap(mem))
		delete(p.regions, addr)
	}
	p.closed = true
	return errs
}
