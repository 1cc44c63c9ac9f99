package emulator

import "encoding/binary"

type ByteOrder int

const (
	BO_INVALID ByteOrder = iota - 1
	BO_LITTLE_ENDIAN
	BO_BIG_ENDIAN
)

func (bo ByteOrder) String() string {
	switch bo {
	case BO_LITTLE_ENDIAN:
		return "little-endian"
	case BO_BIG_ENDIAN:
		return "big-endian"
	}
	return "invalid"
}

// Binary returns the encoding/binary order for bo, or nil for BO_INVALID.
func (bo ByteOrder) Binary() binary.ByteOrder {
	switch bo {
	case BO_LITTLE_ENDIAN:
		return binary.LittleEndian
	case BO_BIG_ENDIAN:
		return binary.BigEndian
	}
	return nil
}

type MemProt int

const (
	MEM_PROT_NONE MemProt = 0
	MEM_PROT_READ MemProt = 1 << (iota - 1)
	MEM_PROT_WRITE
	MEM_PROT_EXEC

	MEM_PROT_ALL = MEM_PROT_READ | MEM_PROT_WRITE | MEM_PROT_EXEC
)

func (p MemProt) String() string {
	var s [3]byte
	for i, c := range [...]struct {
		flag MemProt
		ch   byte
	}{{MEM_PROT_READ, 'r'}, {MEM_PROT_WRITE, 'w'}, {MEM_PROT_EXEC, 'x'}} {
		if p&c.flag != 0 {
			s[i] = c.ch
		} else {
			s[i] = '-'
		}
	}
	return string(s[:])
}

type MemRegion struct {
	Addr, Size uint64
	Prot       MemProt
}

func (r MemRegion) End() uint64 {
	return r.Addr + r.Size
}

func (r MemRegion) Contains(addr, size uint64) bool {
	return addr >= r.Addr && addr+size <= r.End() && addr+size >= addr
}
