package emulator

type Arch int

const (
	ARCH_UNKNOWN Arch = iota
	ARCH_ARM
	ARCH_ARM64
	ARCH_X86
	ARCH_X86_64
)

var archNames = map[Arch]string{
	ARCH_UNKNOWN: "unknown",
	ARCH_ARM:     "arm",
	ARCH_ARM64:   "arm64",
	ARCH_X86:     "x86",
	ARCH_X86_64:  "x86_64",
}

func (a Arch) String() string {
	if name, ok := archNames[a]; ok {
		return name
	}
	return archNames[ARCH_UNKNOWN]
}

// AddressByteSize reports the pointer width of the architecture, or 0 when it is unknown.
func (a Arch) AddressByteSize() uint32 {
	switch a {
	case ARCH_ARM, ARCH_X86:
		return 4
	case ARCH_ARM64, ARCH_X86_64:
		return 8
	}
	return 0
}

// DefaultByteOrder is the byte order the architecture runs in unless configured otherwise.
func (a Arch) DefaultByteOrder() ByteOrder {
	if a == ARCH_UNKNOWN {
		return BO_INVALID
	}
	return BO_LITTLE_ENDIAN
}
