package vm

// Bytecode names arrays through variables: the variable holds the array id
// and 0 means no array. The helpers below resolve that indirection.

func (in *Interpreter) arrayID(v int32) (int32, error) {
	id, err := in.ReadVar(v)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, NewScriptError(ErrorUndefinedArrayReference, "variable 0x%04X holds no array", v)
	}
	return id, nil
}

// ArrayOf returns the array referenced by variable v.
func (in *Interpreter) ArrayOf(v int32) (*Array, error) {
	id, err := in.arrayID(v)
	if err != nil {
		return nil, err
	}
	return in.session.state.Arrays.Get(id)
}

// DefineArray releases the array referenced by v, allocates a fresh id,
// defines it and stores the id in v.
func (in *Interpreter) DefineArray(v int32, t ElementType, dim2, dim1 Range) (*Array, error) {
	if v&varBitFlag != 0 {
		return nil, NewScriptError(ErrorInvalidVariable, "bit variable 0x%04X cannot hold an array", v)
	}
	if err := in.NukeArray(v); err != nil {
		return nil, err
	}

	arrays := in.session.state.Arrays
	id, err := arrays.FreeID()
	if err != nil {
		return nil, err
	}
	a, err := arrays.Define(id, t, dim2, dim1)
	if err != nil {
		return nil, err
	}
	if err := in.WriteVar(v, id); err != nil {
		arrays.Release(id)
		return nil, err
	}
	in.log.Debug("array defined", "var", v, "id", id, "type", a.Type,
		"dim2", dim2, "dim1", dim1)
	return a, nil
}

// NukeArray releases the array referenced by v and zeroes v.
func (in *Interpreter) NukeArray(v int32) error {
	id, err := in.ReadVar(v)
	if err != nil {
		return err
	}
	if id == 0 {
		return nil
	}
	in.session.state.Arrays.Release(id)
	return in.WriteVar(v, 0)
}

// ReadArray reads element (idx2, idx1) of the array referenced by v.
func (in *Interpreter) ReadArray(v, idx2, idx1 int32) (int32, error) {
	id, err := in.arrayID(v)
	if err != nil {
		return 0, err
	}
	return in.session.state.Arrays.Read(id, idx2, idx1)
}

// WriteArray writes element (idx2, idx1) of the array referenced by v.
func (in *Interpreter) WriteArray(v, idx2, idx1, value int32) error {
	id, err := in.arrayID(v)
	if err != nil {
		return err
	}
	return in.session.state.Arrays.Write(id, idx2, idx1, value)
}

// RedimArray reshapes the array referenced by v.
func (in *Interpreter) RedimArray(v int32, dim2, dim1 Range, t ElementType) error {
	id, err := in.arrayID(v)
	if err != nil {
		return err
	}
	return in.session.state.Arrays.Redimension(id, dim2, dim1, t)
}

// shuffleArray swaps random element pairs of v's row 0 between minIdx and
// maxIdx inclusive.
func (in *Interpreter) shuffleArray(v, minIdx, maxIdx int32) error {
	span := maxIdx - minIdx
	for count := span * 2; count > 0; count-- {
		i := in.session.randomInt(span) + minIdx
		j := in.session.randomInt(span) + minIdx
		a, err := in.ReadArray(v, 0, i)
		if err != nil {
			return err
		}
		b, err := in.ReadArray(v, 0, j)
		if err != nil {
			return err
		}
		if err := in.WriteArray(v, 0, i, b); err != nil {
			return err
		}
		if err := in.WriteArray(v, 0, j, a); err != nil {
			return err
		}
	}
	return nil
}
