package vm

import (
	"errors"
	"testing"

	"github.com/zurustar/hecore/pkg/opcode"
)

func TestInterpreter_AddAndStore(t *testing.T) {
	s := newTestSession(t)
	code := asm{}.op(opcode.PushByte).u8(5).op(opcode.PushByte).u8(3).op(opcode.Add).write(0)

	in := mustRun(t, s, code, nil)

	if got := global(t, s, 0); got != 8 {
		t.Errorf("var 0 = %d, want 8", got)
	}
	if in.Stack().Len() != 0 {
		t.Errorf("stack depth = %d, want 0", in.Stack().Len())
	}
	if in.Status() != StatusStopped {
		t.Errorf("status = %v, want stopped", in.Status())
	}
}

func TestInterpreter_Lifecycle(t *testing.T) {
	s := newTestSession(t)
	code := asm{}.push(1).op(opcode.BreakHere).push(2).write(0)
	in := s.NewInterpreterWithCode(ScriptRequest{ScriptID: 7}, code, nil)

	if in.Status() != StatusReady {
		t.Fatalf("new interpreter status = %v, want ready", in.Status())
	}
	if err := in.Step(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Step() before Start error = %v, want ErrNotRunning", err)
	}
	if err := in.Start(); err != nil {
		t.Fatal(err)
	}
	if err := in.Start(); err == nil {
		t.Error("second Start() should fail")
	}

	if err := in.Run(0); err != nil {
		t.Fatal(err)
	}
	if in.Status() != StatusSuspended {
		t.Fatalf("status after breakHere = %v, want suspended", in.Status())
	}
	if !in.Tick() {
		t.Fatal("Tick() should resume after breakHere")
	}
	if err := in.Run(0); err != nil {
		t.Fatal(err)
	}
	if in.Status() != StatusStopped {
		t.Errorf("status = %v, want stopped", in.Status())
	}
	if got := global(t, s, 0); got != 2 {
		t.Errorf("var 0 = %d, want 2", got)
	}
	if v, _ := in.Stack().Peek(); v != 1 {
		t.Errorf("stack top = %d, want 1", v)
	}
}

func TestInterpreter_Errors(t *testing.T) {
	tests := []struct {
		name string
		code asm
		want ErrorType
	}{
		{"stack underflow", asm{}.op(opcode.Add), ErrorStackUnderflow},
		{"invalid opcode", asm{0x04}, ErrorInvalidOpcode},
		{"truncated word", asm{}.op(opcode.PushWord).u8(1), ErrorMalformedOperand},
		{"truncated dword", asm{}.op(opcode.PushDWord).word(1), ErrorMalformedOperand},
		{"division by zero", asm{}.push(4).push(0).op(opcode.Div), ErrorDivisionByZero},
		{"jump before start", asm{}.op(opcode.Jump).word(-10), ErrorMalformedOperand},
		{"jump past end", asm{}.op(opcode.Jump).word(50), ErrorMalformedOperand},
		{"undefined array", asm{}.push(0).op(opcode.WordArrayRead).word(3), ErrorUndefinedArrayReference},
		{"bad variable", asm{}.pushVar(0x2000), ErrorInvalidVariable},
		{"bad local", asm{}.pushVar(0x4000 | 30), ErrorInvalidVariable},
		{"too many script args", asm{}.push(1).list(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17).op(opcode.StartScript).u8(0), ErrorTooManyArguments},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(t)
			in, err := run(t, s, tt.code, newFakeHost())
			if !errors.Is(err, tt.want) {
				t.Fatalf("Run() error = %v, want %v", err, tt.want)
			}
			if in.Status() != StatusStopped {
				t.Errorf("status = %v, want stopped", in.Status())
			}
			if !errors.Is(in.Err(), tt.want) {
				t.Errorf("Err() = %v, want %v", in.Err(), tt.want)
			}

			var se *ScriptError
			if !errors.As(err, &se) {
				t.Fatalf("error %v is not a *ScriptError", err)
			}
			if se.ScriptID != 1 || se.Offset < 0 {
				t.Errorf("position = script %d offset %d, want script 1 and a valid offset", se.ScriptID, se.Offset)
			}
		})
	}
}

func TestInterpreter_StepLimit(t *testing.T) {
	s := newTestSession(t)
	// jump -3 loops on itself forever
	code := asm{}.op(opcode.Jump).word(-3)
	in, err := run(t, s, code, nil)
	if !errors.Is(err, ErrorStepLimitExceeded) {
		t.Fatalf("Run() error = %v, want STEP_LIMIT_EXCEEDED", err)
	}
	if in.Status() != StatusStopped {
		t.Errorf("status = %v, want stopped", in.Status())
	}
}

func TestInterpreter_Variables(t *testing.T) {
	s := newTestSession(t)
	code := asm{}.
		pushVar(0x4000).pushVar(0x4001).op(opcode.Add).write(10).
		push(5).write(0x8000 | 12).
		push(0).write(0x8000 | 13).
		pushVar(0x8000 | 12).write(11).
		push(77).write(0x4002)
	in := s.NewInterpreterWithCode(ScriptRequest{ScriptID: 1, Args: []int32{30, 12}}, code, nil)
	if err := in.Start(); err != nil {
		t.Fatal(err)
	}
	if err := in.Run(0); err != nil {
		t.Fatal(err)
	}

	if got := global(t, s, 10); got != 42 {
		t.Errorf("var 10 = %d, want 42", got)
	}
	if got := global(t, s, 11); got != 1 {
		t.Errorf("var 11 = %d, want bit value 1", got)
	}
	if !s.State().Bits[12] || s.State().Bits[13] {
		t.Errorf("bits 12,13 = %v,%v, want true,false", s.State().Bits[12], s.State().Bits[13])
	}
	if in.Local(2) != 77 {
		t.Errorf("local 2 = %d, want 77", in.Local(2))
	}
}

func TestInterpreter_SharedState(t *testing.T) {
	s := newTestSession(t)
	mustRun(t, s, asm{}.push(1).op(opcode.DimArray).u8(5).word(20).push(0).push(321).op(opcode.WordArrayWrite).word(20), nil)

	// a second instance sees the array through the same variable
	code := asm{}.push(0).op(opcode.WordArrayRead).word(20).write(21)
	mustRun(t, s, code, nil)
	if got := global(t, s, 21); got != 321 {
		t.Errorf("var 21 = %d, want 321", got)
	}

	other := newTestSession(t)
	if _, err := run(t, other, code, nil); !errors.Is(err, ErrorUndefinedArrayReference) {
		t.Errorf("independent session error = %v, want UNDEFINED_ARRAY_REFERENCE", err)
	}
}

func TestInterpreter_FetchStringFromArray(t *testing.T) {
	s := newTestSession(t)
	a, err := s.State().Arrays.Define(5, TypeString, Range{0, 0}, Range{0, 15})
	if err != nil {
		t.Fatal(err)
	}
	copy(a.Data, "hello")

	in := s.NewInterpreterWithCode(ScriptRequest{}, asm{}.str("").str("inline"), nil)
	in.Push(5)
	got, err := in.FetchString()
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Errorf("FetchString() = %q, want %q", got, "hello")
	}
	got, err = in.FetchString()
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "inline" {
		t.Errorf("FetchString() = %q, want %q", got, "inline")
	}
	if _, err := in.FetchString(); !errors.Is(err, ErrorMalformedOperand) {
		t.Errorf("FetchString() at end error = %v, want MALFORMED_OPERAND", err)
	}
}

func TestInterpreter_SuspendUntil(t *testing.T) {
	s := newTestSession(t)
	in := s.NewInterpreterWithCode(ScriptRequest{}, asm{}.push(1).write(0), nil)
	if err := in.Start(); err != nil {
		t.Fatal(err)
	}

	ready := false
	in.SuspendUntil(func() bool { return ready })
	if in.Tick() {
		t.Fatal("Tick() resumed before condition held")
	}
	ready = true
	if !in.Tick() {
		t.Fatal("Tick() did not resume after condition held")
	}
	if in.Status() != StatusRunning {
		t.Errorf("status = %v, want running", in.Status())
	}
}
