// Package disasm decodes script bytecode into a listing, using the operand
// layouts of package opcode.
package disasm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"

	"github.com/zurustar/hecore/pkg/opcode"
)

// ErrTruncated is returned when an instruction runs past the end of the code.
var ErrTruncated = errors.New("truncated instruction")

// Variable index flags.
const (
	localFlag = 0x4000
	bitFlag   = 0x8000
)

// Arg is one decoded inline operand.
type Arg struct {
	Kind  opcode.Operand
	Value int32
	Text  []byte // String operands only
}

// Instruction is one decoded instruction.
type Instruction struct {
	Offset int
	Code   opcode.Code
	Name   string
	Bytes  []byte
	Args   []Arg
	// Known is false for codes outside the core set and unknown sub-opcodes.
	Known bool
}

// Next returns the offset of the following instruction.
func (ins Instruction) Next() int { return ins.Offset + len(ins.Bytes) }

// Target returns the absolute jump target of a relative operand.
func (ins Instruction) Target() (int, bool) {
	for _, a := range ins.Args {
		if a.Kind == opcode.Rel {
			return ins.Next() + int(a.Value), true
		}
	}
	return 0, false
}

// Decode decodes the instruction at off.
func Decode(code []byte, off int) (Instruction, error) {
	if off < 0 || off >= len(code) {
		return Instruction{}, fmt.Errorf("%w: offset 0x%04X outside %d bytes", ErrTruncated, off, len(code))
	}
	c := opcode.Code(code[off])
	ins := Instruction{Offset: off, Code: c, Name: c.String()}
	pos := off + 1

	info, ok := opcode.Lookup(c)
	if !ok {
		ins.Bytes = code[off:pos]
		return ins, nil
	}
	ins.Known = true

	layout := info.Operands
	if info.SubOps != nil {
		if pos >= len(code) {
			return ins, fmt.Errorf("%w: %s at 0x%04X needs a sub-opcode", ErrTruncated, info.Name, off)
		}
		sub := code[pos]
		pos++
		so, ok := info.SubOps[sub]
		if !ok {
			ins.Known = false
			ins.Name = fmt.Sprintf("%s.%d", info.Name, sub)
			ins.Bytes = code[off:pos]
			return ins, nil
		}
		ins.Name = info.Name + "." + so.Name
		layout = so.Operands
	}

	for _, kind := range layout {
		arg, n, err := readOperand(code, pos, kind)
		if err != nil {
			return ins, fmt.Errorf("%s at 0x%04X: %w", ins.Name, off, err)
		}
		ins.Args = append(ins.Args, arg)
		pos += n
	}
	ins.Bytes = code[off:pos]
	return ins, nil
}

func readOperand(code []byte, pos int, kind opcode.Operand) (Arg, int, error) {
	need := 0
	switch kind {
	case opcode.Byte:
		need = 1
	case opcode.Word, opcode.Var, opcode.Rel:
		need = 2
	case opcode.DWord:
		need = 4
	case opcode.String:
		end := slices.Index(code[pos:], 0)
		if end < 0 {
			return Arg{}, 0, fmt.Errorf("%w: unterminated string", ErrTruncated)
		}
		return Arg{Kind: kind, Text: code[pos : pos+end]}, end + 1, nil
	}
	if pos+need > len(code) {
		return Arg{}, 0, fmt.Errorf("%w: %s operand", ErrTruncated, kind)
	}

	arg := Arg{Kind: kind}
	switch kind {
	case opcode.Byte:
		arg.Value = int32(code[pos])
	case opcode.Word, opcode.Rel:
		arg.Value = int32(int16(binary.LittleEndian.Uint16(code[pos:])))
	case opcode.Var:
		arg.Value = int32(binary.LittleEndian.Uint16(code[pos:]))
	case opcode.DWord:
		arg.Value = int32(binary.LittleEndian.Uint32(code[pos:]))
	}
	return arg, need, nil
}

// Disassemble decodes code from start to end. On a truncated instruction it
// returns the instructions decoded so far with the error.
func Disassemble(code []byte) ([]Instruction, error) {
	var out []Instruction
	for off := 0; off < len(code); {
		ins, err := Decode(code, off)
		if err != nil {
			return out, err
		}
		out = append(out, ins)
		off = ins.Next()
	}
	return out, nil
}

// VarName formats a variable index the way listings show it.
func VarName(v int32) string {
	switch {
	case v&bitFlag != 0:
		return "bit" + strconv.Itoa(int(v&^bitFlag))
	case v&localFlag != 0:
		return "local" + strconv.Itoa(int(v&^localFlag))
	}
	return "var" + strconv.Itoa(int(v))
}

// Printer writes listings.
type Printer struct {
	enc encoding.Encoding
}

// Option is a functional option for configuring a Printer.
type Option func(*Printer)

// WithEncoding decodes inline strings with enc before quoting them.
func WithEncoding(enc encoding.Encoding) Option {
	return func(p *Printer) {
		p.enc = enc
	}
}

// NewPrinter creates a Printer.
func NewPrinter(opts ...Option) *Printer {
	p := &Printer{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Format renders one instruction without offset or bytes.
func (p *Printer) Format(ins Instruction) string {
	if _, ok := opcode.Lookup(ins.Code); !ok {
		return fmt.Sprintf(".byte 0x%02X", byte(ins.Code))
	}
	var sb strings.Builder
	sb.WriteString(ins.Name)
	for i, a := range ins.Args {
		if i == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(p.formatArg(ins, a))
	}
	return sb.String()
}

func (p *Printer) formatArg(ins Instruction, a Arg) string {
	switch a.Kind {
	case opcode.Var:
		return VarName(a.Value)
	case opcode.Rel:
		return fmt.Sprintf("L%04X", ins.Next()+int(a.Value))
	case opcode.String:
		if len(a.Text) == 0 {
			return "[array]"
		}
		return strconv.Quote(p.decode(a.Text))
	}
	return strconv.Itoa(int(a.Value))
}

func (p *Printer) decode(b []byte) string {
	if p.enc == nil {
		return string(b)
	}
	s, err := p.enc.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

// Fprint writes a listing of code to w. Jump targets get a label line.
func (p *Printer) Fprint(w io.Writer, code []byte) error {
	listing, decodeErr := Disassemble(code)

	labels := make(map[int]bool)
	for _, ins := range listing {
		if t, ok := ins.Target(); ok {
			labels[t] = true
		}
	}

	for _, ins := range listing {
		if labels[ins.Offset] {
			if _, err := fmt.Fprintf(w, "L%04X:\n", ins.Offset); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "  %04X: %-18s %s\n", ins.Offset, hexBytes(ins.Bytes, 6), p.Format(ins)); err != nil {
			return err
		}
	}
	if end := len(code); labels[end] {
		if _, err := fmt.Fprintf(w, "L%04X:\n", end); err != nil {
			return err
		}
	}
	return decodeErr
}

// hexBytes formats up to limit bytes, marking the rest with "..".
func hexBytes(b []byte, limit int) string {
	parts := make([]string, 0, limit+1)
	for i, c := range b {
		if i == limit {
			parts = append(parts, "..")
			break
		}
		parts = append(parts, fmt.Sprintf("%02X", c))
	}
	return strings.Join(parts, " ")
}
