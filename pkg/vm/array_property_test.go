package vm

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func truncateTo(t ElementType, v int32) int32 {
	switch t.storage() {
	case TypeInt:
		return int32(int16(v))
	case TypeDword:
		return v
	default:
		return int32(uint8(v))
	}
}

// TestProperty1_ArrayRoundTrip checks that a write followed by a read returns
// the value truncated to the element width.
func TestProperty1_ArrayRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("read after write returns truncated value", prop.ForAll(
		func(typ int32, start2, ext2, start1, ext1 int32, pick2, pick1 int32, value int32) bool {
			s := NewArrayStore(4)
			dim2 := Range{start2, start2 + ext2 - 1}
			dim1 := Range{start1, start1 + ext1 - 1}
			if _, err := s.Define(1, ElementType(typ), dim2, dim1); err != nil {
				return false
			}
			idx2 := dim2.Start + pick2%ext2
			idx1 := dim1.Start + pick1%ext1
			if err := s.Write(1, idx2, idx1, value); err != nil {
				return false
			}
			got, err := s.Read(1, idx2, idx1)
			return err == nil && got == truncateTo(ElementType(typ), value)
		},
		gen.Int32Range(1, 6),
		gen.Int32Range(0, 5), gen.Int32Range(1, 6),
		gen.Int32Range(0, 5), gen.Int32Range(1, 10),
		gen.Int32Range(0, 100), gen.Int32Range(0, 100),
		gen.Int32(),
	))

	properties.Property("writes do not disturb other elements", prop.ForAll(
		func(ext1 int32, a, b int32, value int32) bool {
			s := NewArrayStore(4)
			if _, err := s.Define(1, TypeDword, Range{0, 0}, Range{0, ext1 - 1}); err != nil {
				return false
			}
			a, b = a%ext1, b%ext1
			if a == b {
				return true
			}
			if err := s.Write(1, 0, a, value); err != nil {
				return false
			}
			got, err := s.Read(1, 0, b)
			return err == nil && got == 0
		},
		gen.Int32Range(2, 64),
		gen.Int32Range(0, 1000), gen.Int32Range(0, 1000),
		gen.Int32Range(1, 1<<30),
	))

	properties.TestingRun(t)
}

// TestProperty2_ArrayBounds checks that indices outside the declared ranges
// always fail with OUT_OF_BOUNDS.
func TestProperty2_ArrayBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("out of range indices are rejected", prop.ForAll(
		func(start2, end2, start1, end1, idx2, idx1 int32) bool {
			if end2 < start2 {
				start2, end2 = end2, start2
			}
			if end1 < start1 {
				start1, end1 = end1, start1
			}
			s := NewArrayStore(4)
			if _, err := s.Define(1, TypeInt, Range{start2, end2}, Range{start1, end1}); err != nil {
				return false
			}
			inside := idx2 >= start2 && idx2 <= end2 && idx1 >= start1 && idx1 <= end1
			_, rerr := s.Read(1, idx2, idx1)
			werr := s.Write(1, idx2, idx1, 7)
			if inside {
				return rerr == nil && werr == nil
			}
			return errors.Is(rerr, ErrorOutOfBounds) && errors.Is(werr, ErrorOutOfBounds)
		},
		gen.Int32Range(0, 8), gen.Int32Range(0, 8),
		gen.Int32Range(0, 8), gen.Int32Range(0, 8),
		gen.Int32Range(-3, 12), gen.Int32Range(-3, 12),
	))

	properties.TestingRun(t)
}

// TestProperty3_Redimension checks that redimensioning succeeds exactly when
// the byte size is unchanged and never alters the stored bytes.
func TestProperty3_Redimension(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	types := []ElementType{TypeByte, TypeInt, TypeDword}

	properties.Property("redimension iff sizes match", prop.ForAll(
		func(oldT, newT int, ext2, ext1, newExt2, newExt1 int32, seed byte) bool {
			s := NewArrayStore(4)
			a, err := s.Define(1, types[oldT], Range{0, ext2 - 1}, Range{0, ext1 - 1})
			if err != nil {
				return false
			}
			for i := range a.Data {
				a.Data[i] = seed + byte(i)
			}
			before := append([]byte(nil), a.Data...)

			dim2 := Range{0, newExt2 - 1}
			dim1 := Range{0, newExt1 - 1}
			same := byteSize(types[newT], dim2, dim1) == int64(len(before))
			err = s.Redimension(1, dim2, dim1, types[newT])

			if same != (err == nil) {
				return false
			}
			if !same && !errors.Is(err, ErrorSizeMismatch) {
				return false
			}
			got, _ := s.Get(1)
			for i := range before {
				if got.Data[i] != before[i] {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 2), gen.IntRange(0, 2),
		gen.Int32Range(1, 4), gen.Int32Range(1, 8),
		gen.Int32Range(1, 4), gen.Int32Range(1, 8),
		gen.UInt8(),
	))

	properties.TestingRun(t)
}
