package vm

// Stack is the operand stack of one interpreter.
type Stack struct {
	values []int32
}

// Push pushes v.
func (s *Stack) Push(v int32) {
	s.values = append(s.values, v)
}

// Pop removes and returns the top value.
func (s *Stack) Pop() (int32, error) {
	n := len(s.values)
	if n == 0 {
		return 0, errStackUnderflow()
	}
	v := s.values[n-1]
	s.values = s.values[:n-1]
	return v, nil
}

// Peek returns the top value without removing it.
func (s *Stack) Peek() (int32, error) {
	n := len(s.values)
	if n == 0 {
		return 0, errStackUnderflow()
	}
	return s.values[n-1], nil
}

// Len returns the stack depth.
func (s *Stack) Len() int {
	return len(s.values)
}

// Values returns a copy of the stack, bottom first.
func (s *Stack) Values() []int32 {
	out := make([]int32, len(s.values))
	copy(out, s.values)
	return out
}

// Reset empties the stack.
func (s *Stack) Reset() {
	s.values = s.values[:0]
}

// GetStackList pops a count followed by that many values. The result is in
// push order: list[0] was pushed first.
func (s *Stack) GetStackList(max int) ([]int32, error) {
	n, err := s.Pop()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, NewScriptError(ErrorMalformedOperand, "negative argument count %d", n)
	}
	if int(n) > max {
		return nil, NewScriptError(ErrorTooManyArguments, "argument count %d exceeds %d", n, max)
	}

	list := make([]int32, n)
	for i := int(n) - 1; i >= 0; i-- {
		v, err := s.Pop()
		if err != nil {
			return nil, err
		}
		list[i] = v
	}
	return list, nil
}
