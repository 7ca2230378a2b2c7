package vm

// Variable index encoding.
const (
	varBitFlag   = 0x8000
	varLocalFlag = 0x4000
	varKindMask  = 0xF000
)

// NumLocals is the number of script-local variables per interpreter.
const NumLocals = 25

// State is the game-wide memory shared by every interpreter of a session:
// global variables, bit variables and the array store.
type State struct {
	Globals []int32
	Bits    []bool
	Arrays  *ArrayStore
}

// NewState creates a zeroed state.
func NewState(numGlobals, numBits, arrayLimit int) *State {
	return &State{
		Globals: make([]int32, numGlobals),
		Bits:    make([]bool, numBits),
		Arrays:  NewArrayStore(arrayLimit),
	}
}

// ReadGlobal returns global variable idx.
func (s *State) ReadGlobal(idx int) (int32, error) {
	if idx < 0 || idx >= len(s.Globals) {
		return 0, NewScriptError(ErrorInvalidVariable, "global %d outside 0..%d", idx, len(s.Globals)-1)
	}
	return s.Globals[idx], nil
}

// WriteGlobal sets global variable idx.
func (s *State) WriteGlobal(idx int, v int32) error {
	if idx < 0 || idx >= len(s.Globals) {
		return NewScriptError(ErrorInvalidVariable, "global %d outside 0..%d", idx, len(s.Globals)-1)
	}
	s.Globals[idx] = v
	return nil
}

func (s *State) readBit(idx int) (int32, error) {
	if idx < 0 || idx >= len(s.Bits) {
		return 0, NewScriptError(ErrorInvalidVariable, "bit variable %d outside 0..%d", idx, len(s.Bits)-1)
	}
	if s.Bits[idx] {
		return 1, nil
	}
	return 0, nil
}

func (s *State) writeBit(idx int, v int32) error {
	if idx < 0 || idx >= len(s.Bits) {
		return NewScriptError(ErrorInvalidVariable, "bit variable %d outside 0..%d", idx, len(s.Bits)-1)
	}
	s.Bits[idx] = v != 0
	return nil
}

// ArraySnapshot is the saved form of one array.
type ArraySnapshot struct {
	ID        int32
	Type      ElementType
	Dim2Start int32
	Dim2End   int32
	Dim1Start int32
	Dim1End   int32
	Data      []byte
}

// Snapshot is the saved form of a State.
type Snapshot struct {
	Globals []int32
	Bits    []bool
	Arrays  []ArraySnapshot
}

// Snapshot copies the state.
func (s *State) Snapshot() *Snapshot {
	snap := &Snapshot{
		Globals: append([]int32(nil), s.Globals...),
		Bits:    append([]bool(nil), s.Bits...),
	}
	for _, id := range s.Arrays.IDs() {
		a := s.Arrays.arrays[id]
		snap.Arrays = append(snap.Arrays, ArraySnapshot{
			ID:        id,
			Type:      a.Type,
			Dim2Start: a.Dim2.Start,
			Dim2End:   a.Dim2.End,
			Dim1Start: a.Dim1.Start,
			Dim1End:   a.Dim1.End,
			Data:      append([]byte(nil), a.Data...),
		})
	}
	return snap
}

// Restore replaces the state with snap. Variable tables keep their
// configured sizes; extra saved entries are rejected.
func (s *State) Restore(snap *Snapshot) error {
	if len(snap.Globals) > len(s.Globals) {
		return NewScriptError(ErrorInvalidVariable, "snapshot has %d globals, state holds %d", len(snap.Globals), len(s.Globals))
	}
	if len(snap.Bits) > len(s.Bits) {
		return NewScriptError(ErrorInvalidVariable, "snapshot has %d bit variables, state holds %d", len(snap.Bits), len(s.Bits))
	}

	arrays := NewArrayStore(int(s.Arrays.limit))
	for _, as := range snap.Arrays {
		a, err := arrays.Define(as.ID, as.Type,
			Range{as.Dim2Start, as.Dim2End}, Range{as.Dim1Start, as.Dim1End})
		if err != nil {
			return err
		}
		if len(as.Data) != len(a.Data) {
			return NewScriptError(ErrorSizeMismatch, "array %d: saved %d bytes, want %d", as.ID, len(as.Data), len(a.Data))
		}
		copy(a.Data, as.Data)
	}

	clear(s.Globals)
	copy(s.Globals, snap.Globals)
	clear(s.Bits)
	copy(s.Bits, snap.Bits)
	s.Arrays = arrays
	return nil
}
