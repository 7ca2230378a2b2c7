package chunk

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestReader_Integers(t *testing.T) {
	r := FromBytes([]byte{
		0x7F,
		0x12, 0x34,
		0xFF, 0xFE,
		0xDE, 0xAD, 0xBE, 0xEF,
		0xFF, 0xFF, 0xFF, 0xFF,
		0, 0, 0, 1, 0, 0, 0, 2,
	})

	if got := r.ReadU8(); got != 0x7F {
		t.Errorf("ReadU8() = %#x", got)
	}
	if got := r.ReadU16BE(); got != 0x1234 {
		t.Errorf("ReadU16BE() = %#x", got)
	}
	if got := r.ReadS16BE(); got != -2 {
		t.Errorf("ReadS16BE() = %d", got)
	}
	if got := r.ReadU32BE(); got != 0xDEADBEEF {
		t.Errorf("ReadU32BE() = %#x", got)
	}
	if got := r.ReadS32BE(); got != -1 {
		t.Errorf("ReadS32BE() = %d", got)
	}
	if got := r.ReadU64BE(); got != 1<<32|2 {
		t.Errorf("ReadU64BE() = %#x", got)
	}
	if r.Pos() != r.Size() || r.Err() != nil || r.EOS() {
		t.Errorf("Pos=%d Size=%d Err=%v EOS=%v", r.Pos(), r.Size(), r.Err(), r.EOS())
	}
}

func TestReader_StickyError(t *testing.T) {
	r := FromBytes([]byte{0x01, 0x02, 0x03})

	if got := r.ReadU32BE(); got != 0 {
		t.Errorf("short ReadU32BE() = %#x, want 0", got)
	}
	if !errors.Is(r.Err(), ErrShortRead) || !r.EOS() {
		t.Fatalf("Err() = %v EOS() = %v, want ErrShortRead and EOS", r.Err(), r.EOS())
	}

	// sticky: a read that would fit still returns zero
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	if got := r.ReadU8(); got != 0 {
		t.Errorf("ReadU8() after error = %d, want 0", got)
	}

	r.ClearErr()
	if got := r.ReadU8(); got != 0x01 {
		t.Errorf("ReadU8() after ClearErr = %d, want 1", got)
	}
}

func TestReader_Strings(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		read func(*Reader) []byte
		want string
		pos  int64
	}{
		{
			name: "pascal",
			data: []byte{5, 'h', 'e', 'l', 'l', 'o', 'x'},
			read: (*Reader).ReadPascalString,
			want: "hello",
			pos:  6,
		},
		{
			name: "empty pascal",
			data: []byte{0, 'x'},
			read: (*Reader).ReadPascalString,
			want: "",
			pos:  1,
		},
		{
			name: "fixed with padding",
			data: []byte{'a', 'b', 0, 'z', 'z', 'q'},
			read: func(r *Reader) []byte { return r.ReadFixedString(5) },
			want: "ab",
			pos:  5,
		},
		{
			name: "fixed without terminator",
			data: []byte{'a', 'b', 'c'},
			read: func(r *Reader) []byte { return r.ReadFixedString(3) },
			want: "abc",
			pos:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := FromBytes(tt.data)
			if got := string(tt.read(r)); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if r.Pos() != tt.pos {
				t.Errorf("Pos() = %d, want %d", r.Pos(), tt.pos)
			}
			if r.Err() != nil {
				t.Errorf("Err() = %v", r.Err())
			}
		})
	}
}

func TestReader_ReadBytesOverrun(t *testing.T) {
	r := FromBytes([]byte{1, 2, 3})
	b := r.ReadBytes(1 << 30)
	if len(b) != 0 {
		t.Errorf("ReadBytes() returned %d bytes", len(b))
	}
	if !errors.Is(r.Err(), ErrShortRead) {
		t.Errorf("Err() = %v, want ErrShortRead", r.Err())
	}

	r = FromBytes(nil)
	if r.ReadBytes(-1) != nil || r.Err() == nil {
		t.Error("negative length should set the sticky error")
	}
}

type header struct {
	Version  uint8
	Flags    [3]byte
	Count    uint32
	Reserved [2]byte
	Value    int16
}

func TestReader_ReadStruct(t *testing.T) {
	r := FromBytes([]byte{1, 0, 0, 2, 0, 0, 1, 0, 0xAA, 0xBB, 0xFF, 0x9C, 0x42})

	var h header
	if err := r.ReadStruct(&h); err != nil {
		t.Fatal(err)
	}
	if h.Version != 1 || h.Flags != [3]byte{0, 0, 2} || h.Count != 256 || h.Value != -100 {
		t.Errorf("ReadStruct() = %+v", h)
	}
	if r.Pos() != 12 {
		t.Errorf("Pos() = %d, want 12", r.Pos())
	}

	if err := r.ReadStruct(&h); !errors.Is(err, ErrShortRead) {
		t.Errorf("short ReadStruct() error = %v, want ErrShortRead", err)
	}
}

func TestReader_Seek(t *testing.T) {
	r, err := NewReader(bytes.NewReader([]byte{0, 1, 2, 3, 4, 5, 6, 7}))
	if err != nil {
		t.Fatal(err)
	}
	if r.Size() != 8 {
		t.Fatalf("Size() = %d", r.Size())
	}

	tests := []struct {
		name   string
		offset int64
		whence int
		want   int64
	}{
		{"start", 2, io.SeekStart, 2},
		{"current", 3, io.SeekCurrent, 5},
		{"end", -1, io.SeekEnd, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, err := r.Seek(tt.offset, tt.whence)
			if err != nil {
				t.Fatal(err)
			}
			if pos != tt.want || r.Pos() != tt.want {
				t.Errorf("Seek() = %d, Pos() = %d, want %d", pos, r.Pos(), tt.want)
			}
		})
	}

	if got := r.ReadU8(); got != 7 {
		t.Errorf("ReadU8() at end-1 = %d, want 7", got)
	}
	r.Skip(-3)
	if r.Err() != nil || r.Pos() != 5 {
		t.Errorf("Skip(-3): Err() = %v, Pos() = %d", r.Err(), r.Pos())
	}
	if r.Remaining() != 3 {
		t.Errorf("Remaining() = %d, want 3", r.Remaining())
	}
	if _, err := r.Seek(-20, io.SeekCurrent); err == nil {
		t.Error("seek before start should fail")
	}
	r.Skip(-20)
	if r.Err() == nil || r.Pos() != 5 {
		t.Errorf("Skip(-20): Err() = %v, Pos() = %d, want error at 5", r.Err(), r.Pos())
	}
}
