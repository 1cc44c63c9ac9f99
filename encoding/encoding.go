// Package encoding lays out fixed-size Go values the way a target ABI stores them in memory.
//
// Integers and floats are written in the target byte order, int, uint and uintptr take the
// target pointer width, and struct fields are padded to their natural alignment. Fields tagged
// `encoding:"ignore"` are skipped and occupy no target memory.
package encoding

import (
	"encoding/binary"
	"reflect"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/modern-go/reflect2"
)

var (
	ErrUnsupportedType = errors.New("encoding: unsupported type")
	ErrInvalidLayout   = errors.New("encoding: invalid layout")
	ErrShortBuffer     = errors.New("encoding: short buffer")
	ErrNotPointer      = errors.New("encoding: destination is not a non-nil pointer")
)

// Layout describes the target memory model.
type Layout struct {
	Order       binary.ByteOrder
	PointerSize int
}

func (l Layout) validate() error {
	if l.Order == nil {
		return errors.Wrap(ErrInvalidLayout, "byte order unknown")
	}
	if l.PointerSize != 4 && l.PointerSize != 8 {
		return errors.Wrapf(ErrInvalidLayout, "pointer size %d", l.PointerSize)
	}
	return nil
}

type codecKey struct {
	rtype uintptr
	ps    int
}

var codecCache sync.Map

func codecFor(typ reflect2.Type, ps int) (*codec, error) {
	key := codecKey{typ.RType(), ps}
	if v, ok := codecCache.Load(key); ok {
		return v.(*codec), nil
	}
	c, err := build(typ, ps)
	if err != nil {
		return nil, err
	}
	v, _ := codecCache.LoadOrStore(key, c)
	return v.(*codec), nil
}

// valueType returns the type to lay out: the element type for pointers, the type itself otherwise.
func valueType(val any) (reflect2.Type, error) {
	if val == nil {
		return nil, errors.Wrap(ErrUnsupportedType, "nil")
	}
	typ := reflect2.TypeOf(val)
	if typ.Kind() == reflect.Pointer {
		return typ.(reflect2.PtrType).Elem(), nil
	}
	return typ, nil
}

// Measure reports the target size and alignment of val, or of *val when val is a pointer.
func Measure(l Layout, val any) (size, align int, err error) {
	if err = l.validate(); err != nil {
		return
	}
	typ, err := valueType(val)
	if err != nil {
		return
	}
	c, err := codecFor(typ, l.PointerSize)
	if err != nil {
		return
	}
	return c.size, c.align, nil
}

// Marshal encodes val, or *val when val is a pointer.
func Marshal(l Layout, val any) ([]byte, error) {
	if err := l.validate(); err != nil {
		return nil, err
	}
	typ, err := valueType(val)
	if err != nil {
		return nil, err
	}
	c, err := codecFor(typ, l.PointerSize)
	if err != nil {
		return nil, err
	}
	ptr := reflect2.PtrOf(val)
	if ptr == nil {
		return nil, errors.Wrap(ErrNotPointer, "nil pointer")
	}
	buf := make([]byte, c.size)
	c.enc(l.Order, buf, ptr)
	return buf, nil
}

// Unmarshal decodes data into the value val points to.
func Unmarshal(l Layout, data []byte, val any) error {
	if err := l.validate(); err != nil {
		return err
	}
	if val == nil || reflect2.TypeOf(val).Kind() != reflect.Pointer {
		return ErrNotPointer
	}
	ptr := reflect2.PtrOf(val)
	if ptr == nil {
		return ErrNotPointer
	}
	typ, err := valueType(val)
	if err != nil {
		return err
	}
	c, err := codecFor(typ, l.PointerSize)
	if err != nil {
		return err
	}
	if len(data) < c.size {
		return errors.Wrapf(ErrShortBuffer, "need %d bytes, have %d", c.size, len(data))
	}
	c.dec(l.Order, data, ptr)
	return nil
}
