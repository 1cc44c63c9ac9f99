// Package shadow holds the host-side copies of tracked allocations.
package shadow

import (
	"io"
)

// Buffer is a fixed-size byte buffer. Unlike a growable buffer it never extends past
// the size it was created with, so an out-of-range write cannot silently enlarge an allocation.
type Buffer []byte

// New returns a zeroed buffer of size bytes.
func New(size uint64) Buffer {
	return make(Buffer, size)
}

func (buf Buffer) Len() uint64 {
	return uint64(len(buf))
}

func (buf Buffer) Empty() bool {
	return len(buf) == 0
}

// Fits reports whether [off, off+size) lies inside the buffer.
func (buf Buffer) Fits(off, size uint64) bool {
	end := off + size
	return end >= off && end <= buf.Len()
}

func (buf Buffer) ReadAt(b []byte, off int64) (n int, err error) {
	if off < 0 || uint64(off) >= buf.Len() {
		return 0, io.EOF
	}
	n = copy(b, buf[off:])
	if n < len(b) {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

func (buf Buffer) WriteAt(b []byte, off int64) (n int, err error) {
	if off < 0 || uint64(off) > buf.Len() {
		return 0, io.ErrShortWrite
	}
	n = copy(buf[off:], b)
	if n < len(b) {
		err = io.ErrShortWrite
	}
	return n, err
}

// View aliases [off, off+size) without copying.
func (buf Buffer) View(off, size uint64) []byte {
	return buf[off : off+size : off+size]
}
