package memmap

import (
	"io"
	"log/slog"
	"math"

	"github.com/cockroachdb/errors"
)

// Options configures a Map. A nil *Options passed to New means DefaultOptions.
type Options struct {
	// PageSize is the granularity at which FindSpace starts a new simulated allocation.
	// It must be a power of two; 1 packs simulated allocations back to back.
	PageSize uint64
	// SimulatedLimit is the exclusive upper bound of the simulated address range.
	SimulatedLimit uint64
	// Logger receives Debug records for every allocation and access. Nil discards them.
	Logger *slog.Logger
}

var DefaultOptions = Options{
	PageSize:       0x1000,
	SimulatedLimit: math.MaxUint64,
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func (o Options) normalize() (Options, error) {
	if o.PageSize == 0 {
		o.PageSize = DefaultOptions.PageSize
	} else if !isPowerOfTwo(o.PageSize) {
		return o, errors.Wrapf(ErrInvalidAlignment, "page size %#x", o.PageSize)
	}
	if o.SimulatedLimit == 0 {
		o.SimulatedLimit = DefaultOptions.SimulatedLimit
	}
	if o.Logger == nil {
		o.Logger = discard
	}
	return o, nil
}
