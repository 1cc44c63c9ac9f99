package encoding

import (
	"encoding/binary"
	"math"
	"reflect"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/modern-go/reflect2"
)

type (
	encoder = func(order binary.ByteOrder, buf []byte, ptr unsafe.Pointer)
	decoder = func(order binary.ByteOrder, buf []byte, ptr unsafe.Pointer)
)

type codec struct {
	size  int
	align int
	enc   encoder
	dec   decoder
}

type fieldCodec struct {
	field  reflect2.StructField
	offset int
	codec  *codec
}

func build(typ reflect2.Type, ps int) (*codec, error) {
	switch typ.Kind() {
	case reflect.Bool:
		return &codec{1, 1,
			func(_ binary.ByteOrder, buf []byte, ptr unsafe.Pointer) {
				buf[0] = 0
				if *(*bool)(ptr) {
					buf[0] = 1
				}
			},
			func(_ binary.ByteOrder, buf []byte, ptr unsafe.Pointer) {
				*(*bool)(ptr) = buf[0] != 0
			}}, nil
	case reflect.Int8, reflect.Uint8:
		return &codec{1, 1,
			func(_ binary.ByteOrder, buf []byte, ptr unsafe.Pointer) { buf[0] = *(*uint8)(ptr) },
			func(_ binary.ByteOrder, buf []byte, ptr unsafe.Pointer) { *(*uint8)(ptr) = buf[0] }}, nil
	case reflect.Int16, reflect.Uint16:
		return &codec{2, 2,
			func(order binary.ByteOrder, buf []byte, ptr unsafe.Pointer) { order.PutUint16(buf, *(*uint16)(ptr)) },
			func(order binary.ByteOrder, buf []byte, ptr unsafe.Pointer) { *(*uint16)(ptr) = order.Uint16(buf) }}, nil
	case reflect.Int32, reflect.Uint32:
		return &codec{4, 4,
			func(order binary.ByteOrder, buf []byte, ptr unsafe.Pointer) { order.PutUint32(buf, *(*uint32)(ptr)) },
			func(order binary.ByteOrder, buf []byte, ptr unsafe.Pointer) { *(*uint32)(ptr) = order.Uint32(buf) }}, nil
	case reflect.Int64, reflect.Uint64:
		return &codec{8, 8,
			func(order binary.ByteOrder, buf []byte, ptr unsafe.Pointer) { order.PutUint64(buf, *(*uint64)(ptr)) },
			func(order binary.ByteOrder, buf []byte, ptr unsafe.Pointer) { *(*uint64)(ptr) = order.Uint64(buf) }}, nil
	case reflect.Float32:
		return &codec{4, 4,
			func(order binary.ByteOrder, buf []byte, ptr unsafe.Pointer) {
				order.PutUint32(buf, math.Float32bits(*(*float32)(ptr)))
			},
			func(order binary.ByteOrder, buf []byte, ptr unsafe.Pointer) {
				*(*float32)(ptr) = math.Float32frombits(order.Uint32(buf))
			}}, nil
	case reflect.Float64:
		return &codec{8, 8,
			func(order binary.ByteOrder, buf []byte, ptr unsafe.Pointer) {
				order.PutUint64(buf, math.Float64bits(*(*float64)(ptr)))
			},
			func(order binary.ByteOrder, buf []byte, ptr unsafe.Pointer) {
				*(*float64)(ptr) = math.Float64frombits(order.Uint64(buf))
			}}, nil
	case reflect.Int, reflect.Uint, reflect.Uintptr:
		return buildWord(typ, ps), nil
	case reflect.Array:
		return buildArray(typ.(reflect2.ArrayType), ps)
	case reflect.Struct:
		return buildStruct(typ.(reflect2.StructType), ps)
	}
	return nil, errors.Wrapf(ErrUnsupportedType, "%s", typ.String())
}

// buildWord maps host-sized integers onto the target pointer width. Signed values are
// sign-extended when they grow on decode.
func buildWord(typ reflect2.Type, ps int) *codec {
	hostSize := typ.Type1().Size()
	signed := typ.Kind() == reflect.Int
	load := func(ptr unsafe.Pointer) uint64 {
		if hostSize == 4 {
			if signed {
				return uint64(int64(*(*int32)(ptr)))
			}
			return uint64(*(*uint32)(ptr))
		}
		return *(*uint64)(ptr)
	}
	store := func(ptr unsafe.Pointer, v uint64) {
		if hostSize == 4 {
			*(*uint32)(ptr) = uint32(v)
			return
		}
		*(*uint64)(ptr) = v
	}
	if ps == 4 {
		return &codec{4, 4,
			func(order binary.ByteOrder, buf []byte, ptr unsafe.Pointer) { order.PutUint32(buf, uint32(load(ptr))) },
			func(order binary.ByteOrder, buf []byte, ptr unsafe.Pointer) {
				v := order.Uint32(buf)
				if signed {
					store(ptr, uint64(int64(int32(v))))
				} else {
					store(ptr, uint64(v))
				}
			}}
	}
	return &codec{8, 8,
		func(order binary.ByteOrder, buf []byte, ptr unsafe.Pointer) { order.PutUint64(buf, load(ptr)) },
		func(order binary.ByteOrder, buf []byte, ptr unsafe.Pointer) { store(ptr, order.Uint64(buf)) }}
}

func buildArray(typ reflect2.ArrayType, ps int) (*codec, error) {
	elem, err := codecFor(typ.Elem(), ps)
	if err != nil {
		return nil, err
	}
	n := typ.Len()
	return &codec{n * elem.size, elem.align,
		func(order binary.ByteOrder, buf []byte, ptr unsafe.Pointer) {
			for i := 0; i < n; i++ {
				elem.enc(order, buf[i*elem.size:], typ.UnsafeGetIndex(ptr, i))
			}
		},
		func(order binary.ByteOrder, buf []byte, ptr unsafe.Pointer) {
			for i := 0; i < n; i++ {
				elem.dec(order, buf[i*elem.size:], typ.UnsafeGetIndex(ptr, i))
			}
		}}, nil
}

func buildStruct(typ reflect2.StructType, ps int) (*codec, error) {
	count := typ.NumField()
	fields := make([]fieldCodec, 0, count)
	offset, maxAlign := 0, 1
	for i := 0; i < count; i++ {
		field := typ.Field(i)
		if field.Tag().Get("encoding") == "ignore" {
			continue
		}
		c, err := codecFor(field.Type(), ps)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", field.Name())
		}
		offset = align(offset, c.align)
		fields = append(fields, fieldCodec{field, offset, c})
		offset += c.size
		maxAlign = max(maxAlign, c.align)
	}
	return &codec{align(offset, maxAlign), maxAlign,
		func(order binary.ByteOrder, buf []byte, ptr unsafe.Pointer) {
			clear(buf[:align(offset, maxAlign)])
			for _, f := range fields {
				f.codec.enc(order, buf[f.offset:], f.field.UnsafeGet(ptr))
			}
		},
		func(order binary.ByteOrder, buf []byte, ptr unsafe.Pointer) {
			for _, f := range fields {
				f.codec.dec(order, buf[f.offset:], f.field.UnsafeGet(ptr))
			}
		}}, nil
}

func align(a, b int) int {
	return (a + b - 1) &^ (b - 1)
}
