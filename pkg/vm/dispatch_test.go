package vm

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/zurustar/hecore/pkg/logger"
	"github.com/zurustar/hecore/pkg/opcode"
)

// TestProperty5_OpcodeTableCompleteness checks that every byte reaches an
// entry and unregistered bytes reach the invalid sentinel.
func TestProperty5_OpcodeTableCompleteness(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 256

	properties := gopter.NewProperties(parameters)
	table := DefaultOpcodeTable()

	properties.Property("every code dispatches", prop.ForAll(
		func(code uint8) bool {
			entry := table.Lookup(code)
			if entry.Func == nil {
				return false
			}
			_, known := opcode.Lookup(opcode.Code(code))
			if known {
				return entry.Name != "invalid"
			}

			s := NewSession(WithLogger(logger.Discard()), WithOpcodeTable(table))
			in := s.NewInterpreterWithCode(ScriptRequest{}, []byte{code}, nil)
			if err := in.Start(); err != nil {
				return false
			}
			err := in.Step()
			return errors.Is(err, ErrorInvalidOpcode) && in.Status() == StatusStopped
		},
		gen.UInt8(),
	))

	properties.TestingRun(t)
}

func TestOpcodeTable_Register(t *testing.T) {
	t.Run("custom handler runs", func(t *testing.T) {
		table := DefaultOpcodeTable()
		called := false
		if err := table.Register(0xF0, "custom", func(in *Interpreter) error {
			called = true
			in.Push(99)
			return nil
		}); err != nil {
			t.Fatalf("Register() error: %v", err)
		}

		s := newTestSession(t, WithOpcodeTable(table))
		in := mustRun(t, s, asm{0xF0}, nil)
		if !called {
			t.Error("custom handler was not called")
		}
		if v, _ := in.Stack().Peek(); v != 99 {
			t.Errorf("top of stack = %d, want 99", v)
		}
	})

	t.Run("sealed table rejects registration", func(t *testing.T) {
		table := DefaultOpcodeTable()
		s := newTestSession(t, WithOpcodeTable(table))
		s.NewInterpreterWithCode(ScriptRequest{}, nil, nil)

		if !table.Sealed() {
			t.Fatal("table should be sealed after first interpreter")
		}
		err := table.Register(0xF0, "late", func(*Interpreter) error { return nil })
		if !errors.Is(err, ErrTableSealed) {
			t.Errorf("Register() error = %v, want ErrTableSealed", err)
		}
	})

	t.Run("nil handler restores sentinel", func(t *testing.T) {
		table := DefaultOpcodeTable()
		if err := table.Register(opcode.Add, "add", nil); err != nil {
			t.Fatal(err)
		}
		if table.Lookup(byte(opcode.Add)).Name != "invalid" {
			t.Error("nil registration should install the invalid sentinel")
		}
	})
}

func TestNewOpcodeTable_AllInvalid(t *testing.T) {
	table := NewOpcodeTable()
	for i := 0; i < 256; i++ {
		if name := table.Lookup(byte(i)).Name; name != "invalid" {
			t.Fatalf("slot 0x%02X = %q, want invalid", i, name)
		}
	}
}
