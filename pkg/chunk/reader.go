// Package chunk provides a big-endian reader over seekable byte sources for
// length-prefixed binary formats.
//
// Reads past the end of the source do not fail individually: they return
// zero values and set a sticky error that the caller inspects once a
// logical unit has been consumed.
package chunk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-restruct/restruct"
)

// ErrShortRead is the sticky error set when a read runs past the end of the
// source.
var ErrShortRead = errors.New("read past end of stream")

// Reader reads big-endian values from an io.ReadSeeker.
type Reader struct {
	rs   io.ReadSeeker
	size int64
	pos  int64
	err  error
	eos  bool
}

// NewReader wraps rs. The size is taken by seeking to the end; the current
// position is kept.
func NewReader(rs io.ReadSeeker) (*Reader, error) {
	pos, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to get size: %w", err)
	}
	if _, err := rs.Seek(pos, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to restore position: %w", err)
	}
	return &Reader{rs: rs, size: size, pos: pos}, nil
}

// FromBytes returns a Reader over an in-memory buffer.
func FromBytes(b []byte) *Reader {
	return &Reader{rs: bytes.NewReader(b), size: int64(len(b))}
}

// Size returns the total size of the source.
func (r *Reader) Size() int64 { return r.size }

// Pos returns the current offset.
func (r *Reader) Pos() int64 { return r.pos }

// Remaining returns the number of bytes between the cursor and the end.
func (r *Reader) Remaining() int64 {
	if r.pos >= r.size {
		return 0
	}
	return r.size - r.pos
}

// EOS reports whether a read has hit the end of the source.
func (r *Reader) EOS() bool { return r.eos }

// Err returns the sticky error, if any.
func (r *Reader) Err() error { return r.err }

// ClearErr resets the sticky error and end-of-stream flag so that reading
// can resume after a seek.
func (r *Reader) ClearErr() {
	r.err = nil
	r.eos = false
}

func (r *Reader) fill(buf []byte) bool {
	if r.err != nil {
		clear(buf)
		return false
	}
	n, err := io.ReadFull(r.rs, buf)
	r.pos += int64(n)
	if err != nil {
		clear(buf)
		r.eos = errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
		if r.eos {
			r.err = fmt.Errorf("%w: wanted %d bytes at offset %d", ErrShortRead, len(buf), r.pos-int64(n))
		} else {
			r.err = fmt.Errorf("read at offset %d: %w", r.pos-int64(n), err)
		}
		return false
	}
	return true
}

// ReadU8 reads one byte.
func (r *Reader) ReadU8() uint8 {
	var b [1]byte
	r.fill(b[:])
	return b[0]
}

// ReadU16BE reads a big-endian uint16.
func (r *Reader) ReadU16BE() uint16 {
	var b [2]byte
	r.fill(b[:])
	return binary.BigEndian.Uint16(b[:])
}

// ReadS16BE reads a big-endian int16.
func (r *Reader) ReadS16BE() int16 { return int16(r.ReadU16BE()) }

// ReadU32BE reads a big-endian uint32.
func (r *Reader) ReadU32BE() uint32 {
	var b [4]byte
	r.fill(b[:])
	return binary.BigEndian.Uint32(b[:])
}

// ReadS32BE reads a big-endian int32.
func (r *Reader) ReadS32BE() int32 { return int32(r.ReadU32BE()) }

// ReadU64BE reads a big-endian uint64.
func (r *Reader) ReadU64BE() uint64 {
	var b [8]byte
	r.fill(b[:])
	return binary.BigEndian.Uint64(b[:])
}

// ReadBytes reads n bytes. A negative n sets the sticky error.
func (r *Reader) ReadBytes(n int) []byte {
	if n < 0 {
		if r.err == nil {
			r.err = fmt.Errorf("negative read length %d at offset %d", n, r.pos)
		}
		return nil
	}
	if int64(n) > r.Remaining() {
		// do not allocate what the source cannot hold
		r.fill(make([]byte, r.Remaining()))
		if r.err == nil {
			r.eos = true
			r.err = fmt.Errorf("%w: wanted %d bytes at offset %d", ErrShortRead, n, r.pos)
		}
		return make([]byte, 0)
	}
	buf := make([]byte, n)
	r.fill(buf)
	return buf
}

// ReadPascalString reads a length-prefixed string and returns its raw bytes.
func (r *Reader) ReadPascalString() []byte {
	n := r.ReadU8()
	return r.ReadBytes(int(n))
}

// ReadFixedString reads a field of exactly n bytes and returns the part
// before the first NUL.
func (r *Reader) ReadFixedString(n int) []byte {
	b := r.ReadBytes(n)
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return b
}

// ReadStruct decodes a fixed-layout big-endian struct.
func (r *Reader) ReadStruct(v any) error {
	size, err := restruct.SizeOf(v)
	if err != nil {
		return fmt.Errorf("failed to size %T: %w", v, err)
	}
	buf := r.ReadBytes(size)
	if r.err != nil {
		return r.err
	}
	if err := restruct.Unpack(buf, binary.BigEndian, v); err != nil {
		return fmt.Errorf("failed to decode %T: %w", v, err)
	}
	return nil
}

// Skip advances the cursor by n bytes. A failed seek sets the sticky error.
func (r *Reader) Skip(n int64) {
	if _, err := r.Seek(n, io.SeekCurrent); err != nil && r.err == nil {
		r.err = err
	}
}

// Seek moves the cursor. Seeking does not clear the sticky error.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = r.pos + offset
	case io.SeekEnd:
		target = r.size + offset
	default:
		return r.pos, fmt.Errorf("invalid whence %d", whence)
	}
	if target < 0 {
		return r.pos, fmt.Errorf("seek to negative offset %d", target)
	}
	if _, err := r.rs.Seek(target, io.SeekStart); err != nil {
		return r.pos, fmt.Errorf("seek to %d: %w", target, err)
	}
	r.pos = target
	return target, nil
}
