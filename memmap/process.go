package memmap

import (
	"sync"
	"weak"

	"github.com/wnxd/irmem/emulator"
)

// Process is a live debuggee. Every method may block on a round trip to it.
type Process interface {
	IsAlive() bool
	CanInjectCode() bool
	Allocate(size uint64, perm emulator.MemProt, zeroFill bool) (uint64, error)
	Deallocate(addr uint64) error
	ReadMemory(addr, size uint64) ([]byte, error)
	WriteMemory(addr uint64, data []byte) error
	ByteOrder() emulator.ByteOrder
	AddressByteSize() uint32
}

// Target is the static description of a debuggee, available without a running process.
type Target interface {
	ByteOrder() emulator.ByteOrder
	AddressByteSize() uint32
}

// TargetReader is a Target that can read memory from its image, e.g. initialized data sections.
type TargetReader interface {
	Target
	ReadMemory(addr, size uint64) ([]byte, error)
}

// ProcessHandle resolves the live process for the duration of one operation.
// The result must not be retained past that operation.
type ProcessHandle interface {
	Process() (Process, bool)
}

type TargetHandle interface {
	Target() (Target, bool)
}

type strongProcess struct{ p Process }

func (h strongProcess) Process() (Process, bool) {
	return h.p, h.p != nil
}

// StaticProcess keeps p reachable for as long as the handle is.
func StaticProcess(p Process) ProcessHandle {
	return strongProcess{p}
}

type weakProcess[T any, P interface {
	*T
	Process
}] struct {
	wp weak.Pointer[T]
}

func (h weakProcess[T, P]) Process() (Process, bool) {
	p := h.wp.Value()
	if p == nil {
		return nil, false
	}
	return P(p), true
}

// WeakProcess refers to p without keeping it alive; once the debugger drops its last
// reference the handle stops resolving.
func WeakProcess[T any, P interface {
	*T
	Process
}](p P) ProcessHandle {
	return weakProcess[T, P]{weak.Make((*T)(p))}
}

type strongTarget struct{ t Target }

func (h strongTarget) Target() (Target, bool) {
	return h.t, h.t != nil
}

func StaticTarget(t Target) TargetHandle {
	return strongTarget{t}
}

type weakTarget[T any, P interface {
	*T
	Target
}] struct {
	wp weak.Pointer[T]
}

func (h weakTarget[T, P]) Target() (Target, bool) {
	t := h.wp.Value()
	if t == nil {
		return nil, false
	}
	return P(t), true
}

func WeakTarget[T any, P interface {
	*T
	Target
}](t P) TargetHandle {
	return weakTarget[T, P]{weak.Make((*T)(t))}
}

// ProcessSlot is a ProcessHandle the debugger attaches and detaches as the debuggee comes and goes.
// It may be updated from another goroutine while a Map uses it.
type ProcessSlot struct {
	mu sync.RWMutex
	p  Process
}

func (s *ProcessSlot) Attach(p Process) {
	s.mu.Lock()
	s.p = p
	s.mu.Unlock()
}

func (s *ProcessSlot) Detach() {
	s.Attach(nil)
}

func (s *ProcessSlot) Process() (Process, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.p, s.p != nil
}

// ArchTarget describes a target by architecture and byte order alone.
type ArchTarget struct {
	Arch  emulator.Arch
	Order emulator.ByteOrder
}

func (t ArchTarget) ByteOrder() emulator.ByteOrder {
	return t.Order
}

func (t ArchTarget) AddressByteSize() uint32 {
	if size := t.Arch.AddressByteSize(); size != 0 {
		return size
	}
	return AddressSizeUnknown
}
