package memmap

import "github.com/cockroachdb/errors"

var (
	ErrInvalidPolicy      = errors.New("invalid allocation policy")
	ErrInvalidAlignment   = errors.New("alignment is not a power of two")
	ErrAddressSpaceFull   = errors.New("address space is full")
	ErrProcessUnavailable = errors.New("process doesn't exist")
	ErrProcessNotCapable  = errors.New("process doesn't support allocating memory")
	ErrNotFound           = errors.New("allocation doesn't exist")
	ErrOverlap            = errors.New("allocation overlaps an existing allocation")
	ErrEmptyBuffer        = errors.New("data buffer is empty")
	ErrInsufficientData   = errors.New("not enough underlying data")
	ErrNoBackingStore     = errors.New("no allocation contains the range and neither the process nor the target exist")
	ErrNoLocalBuffer      = errors.New("memory is only in the process")
	ErrUnsupportedSize    = errors.New("unsupported size")
	ErrZeroSizeOperation  = errors.New("size is zero")
	ErrUnknownByteOrder   = errors.New("byte order unknown")
	ErrClosed             = errors.New("memory map closed")

	// ErrMirrorInconsistent marks a mirrored write whose shadow copy was updated but whose
	// process write failed; the two copies now differ. The process error stays in the chain.
	ErrMirrorInconsistent = errors.New("mirror inconsistent: shadow written, process write failed")
)
