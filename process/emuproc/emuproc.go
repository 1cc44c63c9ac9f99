// Package emuproc runs a debuggee inside an emulator.Emulator and exposes it as a memmap.Process.
package emuproc

import (
	"io"
	"log/slog"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/wnxd/irmem/emulator"
	"github.com/wnxd/irmem/memmap"
)

var (
	ErrAddressInvalid = errors.New("emuproc: address invalid")
	ErrNotAlive       = errors.New("emuproc: process not alive")
)

// DefaultBaseAddress keeps process memory clear of the simulated addresses a memmap.Map hands
// out upward from 0.
const DefaultBaseAddress = 0x40000000

type Options struct {
	// BaseAddress is where the first allocation is mapped. It is rounded up to the emulator page size.
	BaseAddress uint64
	Logger      *slog.Logger
}

// Process allocates page-granular regions from a bump cursor; released regions are not reused.
type Process struct {
	emu     emulator.Emulator
	log     *slog.Logger
	mu      sync.Mutex
	mapAddr uint64
	maps    map[uint64]uint64
	alive   bool
	jit     bool
}

var (
	_ memmap.Process      = (*Process)(nil)
	_ memmap.TargetReader = Target{}
)

func New(emu emulator.Emulator, opts *Options) *Process {
	if opts == nil {
		opts = &Options{}
	}
	base := opts.BaseAddress
	if base == 0 {
		base = DefaultBaseAddress
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Process{
		emu:     emu,
		log:     log.With("component", "emuproc"),
		mapAddr: memmap.Align(base, emu.PageSize()),
		maps:    make(map[uint64]uint64),
		alive:   true,
		jit:     true,
	}
}

// Kill marks the debuggee dead. Its memory stays readable through the emulator.
func (p *Process) Kill() {
	p.mu.Lock()
	p.alive = false
	p.mu.Unlock()
}

// SetJIT controls whether the debuggee accepts injected code.
func (p *Process) SetJIT(enabled bool) {
	p.mu.Lock()
	p.jit = enabled
	p.mu.Unlock()
}

func (p *Process) IsAlive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

func (p *Process) CanInjectCode() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jit
}

func (p *Process) Allocate(size uint64, perm emulator.MemProt, zeroFill bool) (uint64, error) {
	if size == 0 {
		return 0, errors.Wrap(ErrAddressInvalid, "emuproc: zero-size allocation")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.alive {
		return 0, ErrNotAlive
	}
	size = memmap.Align(size, p.emu.PageSize())
	addr := p.mapAddr
	if err := p.emu.MemMap(addr, size, perm); err != nil {
		return 0, errors.Wrapf(err, "emuproc: map [%#x..%#x)", addr, addr+size)
	}
	p.mapAddr += size
	p.maps[addr] = size
	if zeroFill {
		// freshly mapped emulator pages may be recycled host memory
		if err := p.emu.MemWrite(addr, make([]byte, size)); err != nil {
			p.emu.MemUnmap(addr, size)
			delete(p.maps, addr)
			return 0, errors.Wrapf(err, "emuproc: zero [%#x..%#x)", addr, addr+size)
		}
	}
	p.log.Debug("allocate", "address", addr, "size", size, "prot", perm.String())
	return addr, nil
}

func (p *Process) Deallocate(addr uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	size, ok := p.maps[addr]
	if !ok {
		return errors.Wrapf(ErrAddressInvalid, "emuproc: deallocate %#x", addr)
	}
	if err := p.emu.MemUnmap(addr, size); err != nil {
		return errors.Wrapf(err, "emuproc: unmap [%#x..%#x)", addr, addr+size)
	}
	delete(p.maps, addr)
	p.log.Debug("deallocate", "address", addr, "size", size)
	return nil
}

// Regions returns the live allocations as address -> size.
func (p *Process) Regions() map[uint64]uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	regions := make(map[uint64]uint64, len(p.maps))
	for addr, size := range p.maps {
		regions[addr] = size
	}
	return regions
}

func (p *Process) ReadMemory(addr, size uint64) ([]byte, error) {
	if !p.IsAlive() {
		return nil, ErrNotAlive
	}
	return p.emu.MemRead(addr, size)
}

func (p *Process) WriteMemory(addr uint64, data []byte) error {
	if !p.IsAlive() {
		return ErrNotAlive
	}
	return p.emu.MemWrite(addr, data)
}

func (p *Process) ByteOrder() emulator.ByteOrder {
	return p.emu.ByteOrder()
}

func (p *Process) AddressByteSize() uint32 {
	if size := p.emu.Arch().AddressByteSize(); size != 0 {
		return size
	}
	return memmap.AddressSizeUnknown
}

// Target describes the process statically. It keeps reading the emulator after the process dies,
// the way a debugger reads a core image.
func (p *Process) Target() Target {
	return Target{p.emu}
}

type Target struct {
	emu emulator.Emulator
}

func (t Target) ByteOrder() emulator.ByteOrder {
	return t.emu.ByteOrder()
}

func (t Target) AddressByteSize() uint32 {
	if size := t.emu.Arch().AddressByteSize(); size != 0 {
		return size
	}
	return memmap.AddressSizeUnknown
}

func (t Target) ReadMemory(addr, size uint64) ([]byte, error) {
	return t.emu.MemRead(addr, size)
}
