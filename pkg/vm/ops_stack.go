package vm

func opPushByte(in *Interpreter) error {
	b, err := in.FetchByte()
	if err != nil {
		return err
	}
	in.Push(int32(b))
	return nil
}

func opPushWord(in *Interpreter) error {
	v, err := in.FetchWordSigned()
	if err != nil {
		return err
	}
	in.Push(v)
	return nil
}

func opPushDWord(in *Interpreter) error {
	v, err := in.FetchDWord()
	if err != nil {
		return err
	}
	in.Push(v)
	return nil
}

func opPushWordVar(in *Interpreter) error {
	v, err := in.FetchWord()
	if err != nil {
		return err
	}
	val, err := in.ReadVar(v)
	if err != nil {
		return err
	}
	in.Push(val)
	return nil
}

func opDup(in *Interpreter) error {
	v, err := in.stack.Peek()
	if err != nil {
		return err
	}
	in.Push(v)
	return nil
}

func opPop(in *Interpreter) error {
	_, err := in.Pop()
	return err
}

func opNot(in *Interpreter) error {
	v, err := in.Pop()
	if err != nil {
		return err
	}
	in.PushBool(v == 0)
	return nil
}

func opAbs(in *Interpreter) error {
	v, err := in.Pop()
	if err != nil {
		return err
	}
	if v < 0 {
		v = -v
	}
	in.Push(v)
	return nil
}

// binaryOp pops a then b and pushes fn(b, a), so fn sees operands in push
// order.
func binaryOp(fn func(b, a int32) (int32, error)) OpcodeFunc {
	return func(in *Interpreter) error {
		a, err := in.Pop()
		if err != nil {
			return err
		}
		b, err := in.Pop()
		if err != nil {
			return err
		}
		v, err := fn(b, a)
		if err != nil {
			return err
		}
		in.Push(v)
		return nil
	}
}

func divide(b, a int32) (int32, error) {
	if a == 0 {
		return 0, NewScriptError(ErrorDivisionByZero, "division by zero")
	}
	return b / a, nil
}

// opIsAnyOf pushes 1 if the value below the list is in the list.
func opIsAnyOf(in *Interpreter) error {
	list, err := in.GetStackList(maxListArgs)
	if err != nil {
		return err
	}
	value, err := in.Pop()
	if err != nil {
		return err
	}
	for _, v := range list {
		if v == value {
			in.Push(1)
			return nil
		}
	}
	in.Push(0)
	return nil
}

func opPickOneOf(in *Interpreter) error {
	list, err := in.GetStackList(maxListArgs)
	if err != nil {
		return err
	}
	i, err := in.Pop()
	if err != nil {
		return err
	}
	if i < 0 || int(i) >= len(list) {
		return NewScriptError(ErrorOutOfBounds, "pickOneOf: %d out of range (0, %d)", i, len(list)-1)
	}
	in.Push(list[i])
	return nil
}

func opPickOneOfDefault(in *Interpreter) error {
	def, err := in.Pop()
	if err != nil {
		return err
	}
	list, err := in.GetStackList(maxListArgs)
	if err != nil {
		return err
	}
	i, err := in.Pop()
	if err != nil {
		return err
	}
	if i < 0 || int(i) >= len(list) {
		in.Push(def)
		return nil
	}
	in.Push(list[i])
	return nil
}

func opGetRandomNumber(in *Interpreter) error {
	max, err := in.Pop()
	if err != nil {
		return err
	}
	in.Push(in.session.randomInt(max))
	return nil
}

func opGetRandomNumberRange(in *Interpreter) error {
	max, err := in.Pop()
	if err != nil {
		return err
	}
	min, err := in.Pop()
	if err != nil {
		return err
	}
	in.Push(in.session.randomRange(min, max))
	return nil
}
