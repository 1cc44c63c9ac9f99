package emulator

import "github.com/cockroachdb/errors"

var (
	ErrArchUnsupported = errors.New("architecture unsupported")
	ErrUnmapped        = errors.New("memory unmapped")
	ErrMapped          = errors.New("memory already mapped")
	ErrUnaligned       = errors.New("address or size not page aligned")
)
