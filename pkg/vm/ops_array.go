package vm

// Dimension sub-op codes used by dimArray and dim2dimArray.
var dimSubOpTypes = map[byte]ElementType{
	2: TypeBit,
	3: TypeNibble,
	4: TypeByte,
	5: TypeInt,
	6: TypeDword,
	7: TypeString,
}

// Redimension sub-op codes.
var redimSubOpTypes = map[byte]ElementType{
	4: TypeByte,
	5: TypeInt,
	6: TypeDword,
}

const (
	subOpUndim        = 204
	stringArrayLength = 1024
)

func opWriteWordVar(in *Interpreter) error {
	v, err := in.FetchWord()
	if err != nil {
		return err
	}
	val, err := in.Pop()
	if err != nil {
		return err
	}
	return in.WriteVar(v, val)
}

func varAdjust(delta int32) OpcodeFunc {
	return func(in *Interpreter) error {
		v, err := in.FetchWord()
		if err != nil {
			return err
		}
		val, err := in.ReadVar(v)
		if err != nil {
			return err
		}
		return in.WriteVar(v, val+delta)
	}
}

func opWordArrayRead(in *Interpreter) error {
	base, err := in.Pop()
	if err != nil {
		return err
	}
	v, err := in.FetchWord()
	if err != nil {
		return err
	}
	val, err := in.ReadArray(v, 0, base)
	if err != nil {
		return err
	}
	in.Push(val)
	return nil
}

func opWordArrayIndexedRead(in *Interpreter) error {
	base, err := in.Pop()
	if err != nil {
		return err
	}
	idx, err := in.Pop()
	if err != nil {
		return err
	}
	v, err := in.FetchWord()
	if err != nil {
		return err
	}
	val, err := in.ReadArray(v, idx, base)
	if err != nil {
		return err
	}
	in.Push(val)
	return nil
}

func opWordArrayWrite(in *Interpreter) error {
	val, err := in.Pop()
	if err != nil {
		return err
	}
	v, err := in.FetchWord()
	if err != nil {
		return err
	}
	base, err := in.Pop()
	if err != nil {
		return err
	}
	return in.WriteArray(v, 0, base, val)
}

func opWordArrayIndexedWrite(in *Interpreter) error {
	val, err := in.Pop()
	if err != nil {
		return err
	}
	base, err := in.Pop()
	if err != nil {
		return err
	}
	v, err := in.FetchWord()
	if err != nil {
		return err
	}
	idx, err := in.Pop()
	if err != nil {
		return err
	}
	return in.WriteArray(v, idx, base, val)
}

func arrayAdjust(delta int32) OpcodeFunc {
	return func(in *Interpreter) error {
		v, err := in.FetchWord()
		if err != nil {
			return err
		}
		base, err := in.Pop()
		if err != nil {
			return err
		}
		val, err := in.ReadArray(v, 0, base)
		if err != nil {
			return err
		}
		return in.WriteArray(v, 0, base, val+delta)
	}
}

func opGetArrayDimSize(in *Interpreter) error {
	sub, err := in.FetchByte()
	if err != nil {
		return err
	}
	if sub < 1 || sub > 3 {
		return errUnknownSubOp("getArrayDimSize", sub)
	}
	v, err := in.FetchWord()
	if err != nil {
		return err
	}
	a, err := in.ArrayOf(v)
	if err != nil {
		return err
	}
	if sub == 2 {
		in.Push(a.Dim2.Extent())
	} else {
		in.Push(a.Dim1.Extent())
	}
	return nil
}

func opArrayOps(in *Interpreter) error {
	sub, err := in.FetchByte()
	if err != nil {
		return err
	}
	v, err := in.FetchWord()
	if err != nil {
		return err
	}

	switch sub {
	case 7, 194:
		if sub == 194 {
			// formatting arguments are consumed but not applied
			if _, err := in.GetStackList(maxListArgs); err != nil {
				return err
			}
		}
		s, err := in.FetchString()
		if err != nil {
			return err
		}
		a, err := in.DefineArray(v, TypeString, Range{0, 0}, Range{0, stringArrayLength})
		if err != nil {
			return err
		}
		copy(a.Data[:len(a.Data)-1], s)
		return nil

	case 208:
		base, err := in.Pop()
		if err != nil {
			return err
		}
		count, err := in.Pop()
		if err != nil {
			return err
		}
		if count < 0 {
			return NewScriptError(ErrorMalformedOperand, "arrayOps: negative list length %d", count)
		}
		id, err := in.ReadVar(v)
		if err != nil {
			return err
		}
		if id == 0 {
			if _, err := in.DefineArray(v, TypeDword, Range{0, 0}, Range{0, base + count}); err != nil {
				return err
			}
		}
		for i := count - 1; i >= 0; i-- {
			val, err := in.Pop()
			if err != nil {
				return err
			}
			if err := in.WriteArray(v, 0, base+i, val); err != nil {
				return err
			}
		}
		return nil

	case 212:
		list, err := in.GetStackList(maxListArgs)
		if err != nil {
			return err
		}
		if _, err := in.arrayID(v); err != nil {
			return err
		}
		row, err := in.Pop()
		if err != nil {
			return err
		}
		for i := len(list) - 1; i >= 0; i-- {
			if err := in.WriteArray(v, row, int32(i), list[i]); err != nil {
				return err
			}
		}
		return nil
	}
	return errUnknownSubOp("arrayOps", sub)
}

func opDimArray(in *Interpreter) error {
	sub, err := in.FetchByte()
	if err != nil {
		return err
	}
	if sub == subOpUndim {
		v, err := in.FetchWord()
		if err != nil {
			return err
		}
		return in.NukeArray(v)
	}
	t, ok := dimSubOpTypes[sub]
	if !ok {
		return errUnknownSubOp("dimArray", sub)
	}
	end, err := in.Pop()
	if err != nil {
		return err
	}
	v, err := in.FetchWord()
	if err != nil {
		return err
	}
	_, err = in.DefineArray(v, t, Range{0, 0}, Range{0, end})
	return err
}

func opDim2DimArray(in *Interpreter) error {
	sub, err := in.FetchByte()
	if err != nil {
		return err
	}
	t, ok := dimSubOpTypes[sub]
	if !ok {
		return errUnknownSubOp("dim2dimArray", sub)
	}
	dim1End, err := in.Pop()
	if err != nil {
		return err
	}
	dim2End, err := in.Pop()
	if err != nil {
		return err
	}
	v, err := in.FetchWord()
	if err != nil {
		return err
	}
	_, err = in.DefineArray(v, t, Range{0, dim2End}, Range{0, dim1End})
	return err
}

func opRedimArray(in *Interpreter) error {
	dim1End, err := in.Pop()
	if err != nil {
		return err
	}
	dim2End, err := in.Pop()
	if err != nil {
		return err
	}
	sub, err := in.FetchByte()
	if err != nil {
		return err
	}
	t, ok := redimSubOpTypes[sub]
	if !ok {
		return errUnknownSubOp("redimArray", sub)
	}
	v, err := in.FetchWord()
	if err != nil {
		return err
	}
	return in.RedimArray(v, Range{0, dim2End}, Range{0, dim1End}, t)
}

func opShuffle(in *Interpreter) error {
	maxIdx, err := in.Pop()
	if err != nil {
		return err
	}
	minIdx, err := in.Pop()
	if err != nil {
		return err
	}
	v, err := in.FetchWord()
	if err != nil {
		return err
	}
	return in.shuffleArray(v, minIdx, maxIdx)
}

// opPickVarRandom deals the listed values in random order, one per call.
// Element 0 of the backing array holds the index of the next value; the
// deck is reshuffled once exhausted, avoiding an immediate repeat.
func opPickVarRandom(in *Interpreter) error {
	list, err := in.GetStackList(maxPickArgs)
	if err != nil {
		return err
	}
	v, err := in.FetchWord()
	if err != nil {
		return err
	}

	id, err := in.ReadVar(v)
	if err != nil {
		return err
	}
	if id == 0 {
		n := int32(len(list))
		if _, err := in.DefineArray(v, TypeDword, Range{0, 0}, Range{0, n}); err != nil {
			return err
		}
		for i, val := range list {
			if err := in.WriteArray(v, 0, int32(i)+1, val); err != nil {
				return err
			}
		}
		if err := in.shuffleArray(v, 1, n); err != nil {
			return err
		}
		if err := in.WriteArray(v, 0, 0, 2); err != nil {
			return err
		}
		val, err := in.ReadArray(v, 0, 1)
		if err != nil {
			return err
		}
		in.Push(val)
		return nil
	}

	next, err := in.ReadArray(v, 0, 0)
	if err != nil {
		return err
	}
	a, err := in.ArrayOf(v)
	if err != nil {
		return err
	}
	last := a.Dim1.End
	if last < next {
		prev, err := in.ReadArray(v, 0, next-1)
		if err != nil {
			return err
		}
		if err := in.shuffleArray(v, 1, last); err != nil {
			return err
		}
		next = 1
		first, err := in.ReadArray(v, 0, 1)
		if err != nil {
			return err
		}
		if first == prev && last >= 2 {
			second, err := in.ReadArray(v, 0, 2)
			if err != nil {
				return err
			}
			if err := in.WriteArray(v, 0, 1, second); err != nil {
				return err
			}
			if err := in.WriteArray(v, 0, 2, prev); err != nil {
				return err
			}
		}
	}
	if err := in.WriteArray(v, 0, 0, next+1); err != nil {
		return err
	}
	val, err := in.ReadArray(v, 0, next)
	if err != nil {
		return err
	}
	in.Push(val)
	return nil
}

// opStringLen pushes the length of the string in the array whose id is on
// the stack, or 0 when there is no such array.
func opStringLen(in *Interpreter) error {
	id, err := in.Pop()
	if err != nil {
		return err
	}
	a, err := in.session.state.Arrays.Get(id)
	if err != nil {
		in.log.Warn("stringLen: no array", "id", id)
		in.Push(0)
		return nil
	}
	in.Push(int32(len(a.String())))
	return nil
}
