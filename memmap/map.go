package memmap

import (
	"iter"
	"log/slog"
	"math"

	"github.com/cockroachdb/errors"

	"github.com/wnxd/irmem/emulator"
	"github.com/wnxd/irmem/internal/ranges"
	"github.com/wnxd/irmem/internal/shadow"
)

// AddressSizeUnknown is returned by AddressByteSize when neither a process nor a target resolves.
// Callers must treat it as a failure, not as a width.
const AddressSizeUnknown = math.MaxUint32

// Allocation describes one tracked region.
type Allocation struct {
	// RawAddress is what the allocation source returned, before alignment.
	RawAddress uint64
	// AlignedAddress is the address handed to the caller and the key of the allocation.
	AlignedAddress uint64
	Size           uint64
	Permissions    emulator.MemProt
	Alignment      uint64
	// Policy is the effective policy; a Mirror request without a capable process reports HostOnly.
	Policy          Policy
	RequestedPolicy Policy
	Leaked          bool
	HasShadow       bool
}

func (a Allocation) End() uint64 {
	return a.AlignedAddress + a.Size
}

type allocation struct {
	raw       uint64
	aligned   uint64
	size      uint64
	perm      emulator.MemProt
	alignment uint64
	policy    Policy
	requested Policy
	data      shadow.Buffer
	leak      bool
}

func (a *allocation) info() Allocation {
	return Allocation{
		RawAddress:      a.raw,
		AlignedAddress:  a.aligned,
		Size:            a.size,
		Permissions:     a.perm,
		Alignment:       a.alignment,
		Policy:          a.policy,
		RequestedPolicy: a.requested,
		Leaked:          a.leak,
		HasShadow:       a.data != nil,
	}
}

// Map is the allocation tracker of one expression evaluation session.
type Map struct {
	target  TargetHandle
	process ProcessHandle
	opts    Options
	log     *slog.Logger
	allocs  ranges.Index[*allocation]
	closed  bool
}

// New binds a Map to a target and, optionally, a live process. Either handle may be nil.
func New(target TargetHandle, process ProcessHandle, opts *Options) (*Map, error) {
	if opts == nil {
		opts = &DefaultOptions
	}
	o, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	return &Map{
		target:  target,
		process: process,
		opts:    o,
		log:     o.Logger.With("component", "memmap"),
	}, nil
}

// Close frees every allocation that was not leaked, through the same path as Free, and drops
// the leaked ones without touching the process. Free errors are combined; the map ends up
// empty regardless.
func (m *Map) Close() error {
	if m.closed {
		return nil
	}
	var errs error
	for _, addr := range m.allocs.Starts() {
		e, _ := m.allocs.Get(addr)
		if e.Value.leak {
			m.allocs.Delete(addr)
			continue
		}
		errs = errors.CombineErrors(errs, m.Free(addr))
	}
	m.allocs.Clear()
	m.closed = true
	return errs
}

func (m *Map) resolveProcess() (Process, bool) {
	if m.process == nil {
		return nil, false
	}
	return m.process.Process()
}

func (m *Map) resolveTarget() (Target, bool) {
	if m.target == nil {
		return nil, false
	}
	return m.target.Target()
}

// ExecutionScope reports which collaborators currently resolve. Out-of-allocation accesses go
// to the process when there is one and to the target otherwise.
func (m *Map) ExecutionScope() (Process, Target) {
	p, _ := m.resolveProcess()
	t, _ := m.resolveTarget()
	return p, t
}

func (m *Map) Len() int {
	return m.allocs.Len()
}

// Allocation looks up the allocation whose aligned address is exactly addr.
func (m *Map) Allocation(addr uint64) (Allocation, bool) {
	e, ok := m.allocs.Get(addr)
	if !ok {
		return Allocation{}, false
	}
	return e.Value.info(), true
}

// Allocations yields every allocation in ascending address order.
func (m *Map) Allocations() iter.Seq[Allocation] {
	return func(yield func(Allocation) bool) {
		for e := range m.allocs.All() {
			if !yield(e.Value.info()) {
				return
			}
		}
	}
}

// AllocSize reports how many bytes of the containing allocation remain from addr to its end.
func (m *Map) AllocSize(addr uint64) (uint64, bool) {
	a, ok := m.find(addr, 1)
	if !ok {
		return 0, false
	}
	return a.aligned + a.size - addr, true
}
