package vm

import (
	"errors"
	"fmt"

	"github.com/zurustar/hecore/pkg/opcode"
)

// ErrTableSealed is returned when registering into a table that is already
// in use by an interpreter.
var ErrTableSealed = errors.New("opcode table is sealed")

// OpcodeFunc executes one instruction. The opcode byte has already been
// consumed; the handler fetches its own operands from in.
type OpcodeFunc func(in *Interpreter) error

// OpcodeEntry is one slot of an OpcodeTable.
type OpcodeEntry struct {
	Name string
	Func OpcodeFunc
}

// OpcodeTable maps every byte to a handler. Slots without a registered
// handler hold a sentinel that fails with ErrorInvalidOpcode.
type OpcodeTable struct {
	entries [256]OpcodeEntry
	sealed  bool
}

// NewOpcodeTable creates a table where every slot is invalid.
func NewOpcodeTable() *OpcodeTable {
	t := &OpcodeTable{}
	for i := range t.entries {
		t.entries[i] = invalidEntry(byte(i))
	}
	return t
}

// DefaultOpcodeTable creates a table with the core instruction set
// registered. Engines add their own codes before the first interpreter is
// created.
func DefaultOpcodeTable() *OpcodeTable {
	t := NewOpcodeTable()
	registerCoreOpcodes(t)
	return t
}

func invalidEntry(code byte) OpcodeEntry {
	return OpcodeEntry{
		Name: "invalid",
		Func: func(in *Interpreter) error {
			return NewScriptError(ErrorInvalidOpcode, "invalid opcode 0x%02X", code)
		},
	}
}

// Register installs fn under code, replacing the previous entry.
func (t *OpcodeTable) Register(code opcode.Code, name string, fn OpcodeFunc) error {
	if t.sealed {
		return fmt.Errorf("register 0x%02X (%s): %w", byte(code), name, ErrTableSealed)
	}
	if fn == nil {
		t.entries[code] = invalidEntry(byte(code))
		return nil
	}
	t.entries[code] = OpcodeEntry{Name: name, Func: fn}
	return nil
}

// Seal makes the table read-only.
func (t *OpcodeTable) Seal() {
	t.sealed = true
}

// Sealed reports whether the table is read-only.
func (t *OpcodeTable) Sealed() bool {
	return t.sealed
}

// Lookup returns the entry for code.
func (t *OpcodeTable) Lookup(code byte) OpcodeEntry {
	return t.entries[code]
}

// Dispatch runs the handler for code against in.
func (t *OpcodeTable) Dispatch(in *Interpreter, code byte) error {
	return t.entries[code].Func(in)
}

func mustRegister(t *OpcodeTable, code opcode.Code, fn OpcodeFunc) {
	if err := t.Register(code, code.String(), fn); err != nil {
		panic(err)
	}
}
