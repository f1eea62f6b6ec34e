// Package wire implements the binary encoding of a DeviceProfile. The
// layout is a fixed external contract: 4-byte little-endian floats and
// unsigned ints, 8-byte string length prefixes that count a trailing NUL.
// Every read goes through a cursor that validates remaining length, so a
// truncated or corrupted buffer yields an error instead of an out-of-bounds
// read.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrShortBuffer reports a read past the end of the wire buffer.
	ErrShortBuffer = errors.New("wire: buffer too short")

	// ErrStringLength reports a string length prefix that cannot be
	// satisfied by the remaining buffer.
	ErrStringLength = errors.New("wire: invalid string length")

	// ErrBadHeader reports a missing or unknown extended-format header.
	ErrBadHeader = errors.New("wire: bad header")

	// ErrTrailingBytes reports leftover bytes after a complete decode.
	ErrTrailingBytes = errors.New("wire: trailing bytes after record")
)

// writer fills a preallocated buffer front to back. Encode computes the
// exact size up front, so writes never grow the buffer.
type writer struct {
	buf []byte
	off int
}

func newWriter(size int) *writer {
	return &writer{buf: make([]byte, size)}
}

func (w *writer) putUint32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[w.off:], v)
	w.off += 4
}

func (w *writer) putUint64(v uint64) {
	binary.LittleEndian.PutUint64(w.buf[w.off:], v)
	w.off += 8
}

func (w *writer) putFloat32(v float32) {
	w.putUint32(math.Float32bits(v))
}

func (w *writer) putInt64(v int64) {
	w.putUint64(uint64(v))
}

func (w *writer) putBool(v bool) {
	if v {
		w.buf[w.off] = 1
	}
	w.off++
}

// putString writes the 8-byte length prefix (string bytes plus one NUL
// terminator) followed by the bytes and the NUL. An empty string is a
// length of 1 and a single NUL.
func (w *writer) putString(s string) {
	w.putUint64(uint64(len(s)) + 1)
	copy(w.buf[w.off:], s)
	w.off += len(s)
	w.buf[w.off] = 0
	w.off++
}

func (w *writer) bytes() []byte {
	return w.buf[:w.off]
}

// stringWireSize is the encoded size of a string field.
func stringWireSize(s string) int {
	return 8 + len(s) + 1
}

type reader struct {
	buf []byte
	off int
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

func (r *reader) need(n int) error {
	if remaining := len(r.buf) - r.off; remaining < n {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortBuffer, n, r.off, remaining)
	}

	return nil
}

func (r *reader) uint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}

	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4

	return v, nil
}

func (r *reader) uint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}

	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8

	return v, nil
}

func (r *reader) float32() (float32, error) {
	bits, err := r.uint32()
	if err != nil {
		return 0, err
	}

	return math.Float32frombits(bits), nil
}

func (r *reader) int64() (int64, error) {
	v, err := r.uint64()
	if err != nil {
		return 0, err
	}

	return int64(v), nil
}

func (r *reader) bool() (bool, error) {
	if err := r.need(1); err != nil {
		return false, err
	}

	v := r.buf[r.off] != 0
	r.off++

	return v, nil
}

// string reads a length-prefixed string. The copy is fresh storage owned by
// the caller; it never aliases the wire buffer.
func (r *reader) string() (string, error) {
	length, err := r.uint64()
	if err != nil {
		return "", err
	}

	if length < 1 || length > uint64(len(r.buf)-r.off) {
		return "", fmt.Errorf("%w: prefix %d with %d bytes remaining", ErrStringLength, length, len(r.buf)-r.off)
	}

	// The last prefixed byte is the NUL terminator.
	s := string(r.buf[r.off : r.off+int(length)-1])
	r.off += int(length)

	return s, nil
}

// UnknownVersionError reports an extended-format version this decoder does
// not speak.
type UnknownVersionError struct {
	Version byte
}

func (e *UnknownVersionError) Error() string {
	return fmt.Sprintf("wire: unknown format version 0x%02x", e.Version)
}

func (r *reader) expect(magic string) error {
	if err := r.need(len(magic)); err != nil {
		return err
	}

	for i := 0; i < len(magic); i++ {
		if r.buf[r.off+i] != magic[i] {
			return fmt.Errorf("%w: magic mismatch at byte %d", ErrBadHeader, i)
		}
	}

	r.off += len(magic)

	return nil
}

func (r *reader) done() error {
	if r.off != len(r.buf) {
		return fmt.Errorf("%w: %d of %d bytes consumed", ErrTrailingBytes, r.off, len(r.buf))
	}

	return nil
}
