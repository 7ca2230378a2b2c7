package vm

import (
	"bytes"
	"encoding/binary"
	"sort"
)

// ElementType is the storage type code of an array.
type ElementType int32

// Element type codes as they appear in bytecode and index files.
// Bit and nibble arrays are declared but stored one element per byte.
const (
	TypeBit    ElementType = 1
	TypeNibble ElementType = 2
	TypeByte   ElementType = 3
	TypeString ElementType = 4
	TypeInt    ElementType = 5
	TypeDword  ElementType = 6
)

var elementBits = [...]int64{0, 1, 4, 8, 8, 16, 32}

// MaxArrayBytes is the largest storage size a single array may have.
// Larger dimensions are rejected with ErrorInvalidDimension.
const MaxArrayBytes = 64 << 20

func (t ElementType) String() string {
	switch t {
	case TypeBit:
		return "bit"
	case TypeNibble:
		return "nibble"
	case TypeByte:
		return "byte"
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeDword:
		return "dword"
	}
	return "invalid"
}

// storage collapses declaration aliases to the type actually stored.
func (t ElementType) storage() ElementType {
	if t == TypeBit || t == TypeNibble {
		return TypeByte
	}
	return t
}

func (t ElementType) valid() bool {
	return t >= TypeBit && t <= TypeDword
}

// Range is an inclusive index range.
type Range struct {
	Start int32
	End   int32
}

// Extent returns the number of indices in r. Ranges of a defined array
// always fit; see MaxArrayBytes.
func (r Range) Extent() int32 {
	return r.End - r.Start + 1
}

func (r Range) extent() int64 {
	return int64(r.End) - int64(r.Start) + 1
}

func (r Range) contains(i int32) bool {
	return i >= r.Start && i <= r.End
}

// Array is one entry of the array store. Dim2 selects the row and Dim1 the
// column; storage is row-major.
type Array struct {
	Type ElementType
	Dim2 Range
	Dim1 Range
	Data []byte
}

func byteSize(t ElementType, dim2, dim1 Range) int64 {
	return elementBits[t] * dim2.extent() * dim1.extent() >> 3
}

// checkShape validates the dimensions and returns the storage size of an
// array of storage type t.
func checkShape(id int32, t ElementType, dim2, dim1 Range) (int, error) {
	if dim2.Start < 0 || dim2.Start > dim2.End || dim1.Start < 0 || dim1.Start > dim1.End {
		return 0, NewScriptError(ErrorInvalidDimension, "array %d: dimensions [%d..%d, %d..%d]",
			id, dim2.Start, dim2.End, dim1.Start, dim1.End)
	}
	// extent は高々 2^31 なので要素数の積は int64 に収まる
	if n := dim2.extent() * dim1.extent(); n > MaxArrayBytes*8/elementBits[t] {
		return 0, NewScriptError(ErrorInvalidDimension, "array %d: [%d..%d, %d..%d] has %d elements, limit is %d bytes",
			id, dim2.Start, dim2.End, dim1.Start, dim1.End, n, MaxArrayBytes)
	}
	return int(byteSize(t, dim2, dim1)), nil
}

// Size returns the storage size in bytes.
func (a *Array) Size() int {
	return len(a.Data)
}

func (a *Array) offset(idx2, idx1 int32) int {
	return int(a.Dim1.Extent()*(idx2-a.Dim2.Start) - a.Dim1.Start + idx1)
}

func (a *Array) inBounds(idx2, idx1 int32) bool {
	return a.Dim2.contains(idx2) && a.Dim1.contains(idx1)
}

func (a *Array) get(off int) int32 {
	switch a.Type {
	case TypeInt:
		return int32(int16(binary.LittleEndian.Uint16(a.Data[off*2:])))
	case TypeDword:
		return int32(binary.LittleEndian.Uint32(a.Data[off*4:]))
	default:
		return int32(a.Data[off])
	}
}

func (a *Array) set(off int, v int32) {
	switch a.Type {
	case TypeInt:
		binary.LittleEndian.PutUint16(a.Data[off*2:], uint16(v))
	case TypeDword:
		binary.LittleEndian.PutUint32(a.Data[off*4:], uint32(v))
	default:
		a.Data[off] = byte(v)
	}
}

// String returns the bytes of a byte or string array up to the first NUL.
func (a *Array) String() string {
	if i := bytes.IndexByte(a.Data, 0); i >= 0 {
		return string(a.Data[:i])
	}
	return string(a.Data)
}

// ArrayStore owns every script-visible array, addressed by id.
// Id 0 is reserved: a variable holding 0 refers to no array.
type ArrayStore struct {
	arrays map[int32]*Array
	limit  int32
}

// NewArrayStore creates a store that hands out ids 1..limit.
func NewArrayStore(limit int) *ArrayStore {
	return &ArrayStore{
		arrays: make(map[int32]*Array),
		limit:  int32(limit),
	}
}

// Define allocates a zeroed array under id, replacing any existing entry.
func (s *ArrayStore) Define(id int32, t ElementType, dim2, dim1 Range) (*Array, error) {
	if id <= 0 || id > s.limit {
		return nil, NewScriptError(ErrorUnknownArray, "array id %d outside 1..%d", id, s.limit)
	}
	if !t.valid() {
		return nil, NewScriptError(ErrorInvalidElementType, "element type %d", t)
	}

	t = t.storage()
	size, err := checkShape(id, t, dim2, dim1)
	if err != nil {
		return nil, err
	}
	a := &Array{
		Type: t,
		Dim2: dim2,
		Dim1: dim1,
		Data: make([]byte, size),
	}
	s.arrays[id] = a
	return a, nil
}

// Get returns the array stored under id.
func (s *ArrayStore) Get(id int32) (*Array, error) {
	a, ok := s.arrays[id]
	if !ok {
		return nil, errUnknownArray(id)
	}
	return a, nil
}

// Read returns element (idx2, idx1) widened to 32 bits. Byte and string
// elements are unsigned; int elements are sign-extended.
func (s *ArrayStore) Read(id, idx2, idx1 int32) (int32, error) {
	a, err := s.Get(id)
	if err != nil {
		return 0, err
	}
	if !a.inBounds(idx2, idx1) {
		return 0, errOutOfBounds(id, idx2, idx1, a)
	}
	return a.get(a.offset(idx2, idx1)), nil
}

// Write stores v truncated to the element width.
func (s *ArrayStore) Write(id, idx2, idx1, v int32) error {
	a, err := s.Get(id)
	if err != nil {
		return err
	}
	if !a.inBounds(idx2, idx1) {
		return errOutOfBounds(id, idx2, idx1, a)
	}
	a.set(a.offset(idx2, idx1), v)
	return nil
}

// Redimension reinterprets the existing bytes of id under a new shape and
// element type. The total byte size must not change. Whether the new type
// makes sense for the stored bytes is left to the caller.
func (s *ArrayStore) Redimension(id int32, dim2, dim1 Range, t ElementType) error {
	a, err := s.Get(id)
	if err != nil {
		return err
	}
	if !t.valid() {
		return NewScriptError(ErrorInvalidElementType, "element type %d", t)
	}

	t = t.storage()
	newSize, err := checkShape(id, t, dim2, dim1)
	if err != nil {
		return err
	}
	if newSize != len(a.Data) {
		return NewScriptError(ErrorSizeMismatch, "array %d redim mismatch: %d bytes, want %d",
			id, newSize, len(a.Data))
	}
	a.Type = t
	a.Dim2 = dim2
	a.Dim1 = dim1
	return nil
}

// Release frees id. It reports whether an array was stored there.
func (s *ArrayStore) Release(id int32) bool {
	if _, ok := s.arrays[id]; !ok {
		return false
	}
	delete(s.arrays, id)
	return true
}

// FreeID returns the smallest unused id.
func (s *ArrayStore) FreeID() (int32, error) {
	for id := int32(1); id <= s.limit; id++ {
		if _, ok := s.arrays[id]; !ok {
			return id, nil
		}
	}
	return 0, NewScriptError(ErrorArrayTableFull, "all %d array ids in use", s.limit)
}

// Len returns the number of live arrays.
func (s *ArrayStore) Len() int {
	return len(s.arrays)
}

// IDs returns the live array ids in ascending order.
func (s *ArrayStore) IDs() []int32 {
	ids := make([]int32, 0, len(s.arrays))
	for id := range s.arrays {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Reset releases every array.
func (s *ArrayStore) Reset() {
	s.arrays = make(map[int32]*Array)
}
