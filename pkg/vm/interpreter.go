package vm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// ErrNotRunning is returned by Step when the interpreter is not Running.
var ErrNotRunning = errors.New("interpreter is not running")

// Status is the lifecycle state of an interpreter.
type Status int

const (
	StatusReady Status = iota
	StatusRunning
	StatusSuspended
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusRunning:
		return "running"
	case StatusSuspended:
		return "suspended"
	case StatusStopped:
		return "stopped"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ScriptRequest describes one script or object-script invocation.
type ScriptRequest struct {
	ScriptID int32
	// ObjectID is non-zero for object scripts; EntryPoint then selects the verb.
	ObjectID   int32
	EntryPoint int32
	Args       []int32
	Exclusive  bool
	Recursive  bool
}

// Host is the scheduler side of the script start and stop opcodes.
type Host interface {
	RunScript(req ScriptRequest) error
	StopScript(scriptID int32)
	IsScriptRunning(scriptID int32) bool
}

// WaitFunc reports whether a suspended interpreter may resume.
type WaitFunc func() bool

// Interpreter executes one script instance. It is not safe for concurrent
// use; a scheduler steps many interpreters in turn.
type Interpreter struct {
	id      uuid.UUID
	req     ScriptRequest
	code    []byte
	pc      int
	opStart int
	status  Status

	stack  Stack
	locals [NumLocals]int32

	session *Session
	host    Host
	log     *slog.Logger

	delay      int
	wait       WaitFunc
	frameDelay int32
	lastErr    error
}

func newInterpreter(s *Session, req ScriptRequest, code []byte, entry int, host Host) *Interpreter {
	in := &Interpreter{
		id:      uuid.New(),
		req:     req,
		code:    code,
		pc:      entry,
		session: s,
		host:    host,
	}
	in.log = s.log.With("script", req.ScriptID, "instance", in.id.String()[:8])
	for i, a := range req.Args {
		if i >= NumLocals {
			break
		}
		in.locals[i] = a
	}
	return in
}

// ID returns the instance handle.
func (in *Interpreter) ID() uuid.UUID { return in.id }

// ScriptID returns the script number.
func (in *Interpreter) ScriptID() int32 { return in.req.ScriptID }

// ObjectID returns the owning object, or 0 for global scripts.
func (in *Interpreter) ObjectID() int32 { return in.req.ObjectID }

// Request returns the invocation that created the instance.
func (in *Interpreter) Request() ScriptRequest { return in.req }

// Status returns the lifecycle state.
func (in *Interpreter) Status() Status { return in.status }

// PC returns the cursor offset.
func (in *Interpreter) PC() int { return in.pc }

// Err returns the error that stopped the instance, if any.
func (in *Interpreter) Err() error { return in.lastErr }

// Stack returns the operand stack.
func (in *Interpreter) Stack() *Stack { return &in.stack }

// Session returns the owning session.
func (in *Interpreter) Session() *Session { return in.session }

// Logger returns the instance logger.
func (in *Interpreter) Logger() *slog.Logger { return in.log }

// Start moves a Ready interpreter to Running.
func (in *Interpreter) Start() error {
	if in.status != StatusReady {
		return fmt.Errorf("start: interpreter is %s", in.status)
	}
	in.status = StatusRunning
	in.log.Debug("script started", "entry", in.pc, "args", in.req.Args)
	return nil
}

// Step executes one instruction. Reaching the end of the script on an
// instruction boundary stops the interpreter cleanly.
func (in *Interpreter) Step() error {
	if in.status != StatusRunning {
		return ErrNotRunning
	}
	if in.pc >= len(in.code) {
		in.Stop()
		return nil
	}

	in.opStart = in.pc
	code := in.code[in.pc]
	in.pc++

	if err := in.session.table.Dispatch(in, code); err != nil {
		return in.fail(code, err)
	}
	return nil
}

// Run steps until the interpreter yields or stops. A positive maxSteps
// bounds the number of instructions; exceeding it is fatal.
func (in *Interpreter) Run(maxSteps int) error {
	steps := 0
	for in.status == StatusRunning {
		if maxSteps > 0 && steps >= maxSteps {
			err := NewScriptError(ErrorStepLimitExceeded, "no yield after %d instructions", steps)
			return in.fail(in.code[in.opStart], err)
		}
		if err := in.Step(); err != nil {
			return err
		}
		steps++
	}
	return nil
}

func (in *Interpreter) fail(code byte, err error) error {
	var se *ScriptError
	if errors.As(err, &se) && se.Offset < 0 {
		se.ScriptID = in.req.ScriptID
		se.Offset = in.opStart
	}
	in.lastErr = fmt.Errorf("opcode 0x%02X (%s): %w", code, in.session.table.Lookup(code).Name, err)
	in.status = StatusStopped
	return in.lastErr
}

// Stop terminates the instance.
func (in *Interpreter) Stop() {
	if in.status == StatusStopped {
		return
	}
	in.status = StatusStopped
	in.wait = nil
	in.log.Debug("script stopped", "pc", in.pc)
}

// Jump moves the cursor by rel bytes from the current position.
func (in *Interpreter) Jump(rel int32) error {
	target := in.pc + int(rel)
	if target < 0 || target > len(in.code) {
		return NewScriptError(ErrorMalformedOperand, "jump target 0x%X outside script of %d bytes", target, len(in.code))
	}
	in.pc = target
	return nil
}

// BreakHere yields until the next tick.
func (in *Interpreter) BreakHere() {
	in.SuspendFor(0)
}

// SuspendFor yields for the given number of ticks.
func (in *Interpreter) SuspendFor(ticks int) {
	if in.status != StatusRunning {
		return
	}
	in.delay = ticks
	in.status = StatusSuspended
}

// SuspendUntil yields until cond reports true.
func (in *Interpreter) SuspendUntil(cond WaitFunc) {
	if in.status != StatusRunning {
		return
	}
	in.wait = cond
	in.status = StatusSuspended
}

// Resume moves a Suspended interpreter back to Running.
func (in *Interpreter) Resume() {
	if in.status != StatusSuspended {
		return
	}
	in.delay = 0
	in.wait = nil
	in.status = StatusRunning
}

// Tick advances a suspension by one tick and resumes the interpreter once
// its delay has elapsed and its wait condition holds. It reports whether the
// interpreter is Running afterwards.
func (in *Interpreter) Tick() bool {
	switch in.status {
	case StatusRunning:
		return true
	case StatusSuspended:
	default:
		return false
	}
	if in.delay > 0 {
		in.delay--
		if in.delay > 0 {
			return false
		}
	}
	if in.wait != nil && !in.wait() {
		return false
	}
	in.Resume()
	return true
}

// FetchByte reads an unsigned byte operand.
func (in *Interpreter) FetchByte() (byte, error) {
	if in.pc >= len(in.code) {
		return 0, in.truncated(1)
	}
	b := in.code[in.pc]
	in.pc++
	return b, nil
}

// FetchWord reads an unsigned 16-bit little-endian operand.
func (in *Interpreter) FetchWord() (int32, error) {
	if in.pc+2 > len(in.code) {
		return 0, in.truncated(2)
	}
	v := binary.LittleEndian.Uint16(in.code[in.pc:])
	in.pc += 2
	return int32(v), nil
}

// FetchWordSigned reads a signed 16-bit little-endian operand.
func (in *Interpreter) FetchWordSigned() (int32, error) {
	v, err := in.FetchWord()
	return int32(int16(v)), err
}

// FetchDWord reads a signed 32-bit little-endian operand.
func (in *Interpreter) FetchDWord() (int32, error) {
	if in.pc+4 > len(in.code) {
		return 0, in.truncated(4)
	}
	v := binary.LittleEndian.Uint32(in.code[in.pc:])
	in.pc += 4
	return int32(v), nil
}

// FetchString reads a NUL-terminated inline string. An empty inline string
// pops an array id and returns that array's contents instead.
func (in *Interpreter) FetchString() ([]byte, error) {
	end := bytes.IndexByte(in.code[in.pc:], 0)
	if end < 0 {
		return nil, NewScriptError(ErrorMalformedOperand, "unterminated string at 0x%X", in.pc)
	}
	s := in.code[in.pc : in.pc+end]
	in.pc += end + 1
	if len(s) > 0 {
		return append([]byte(nil), s...), nil
	}

	id, err := in.Pop()
	if err != nil {
		return nil, err
	}
	a, err := in.session.state.Arrays.Get(id)
	if err != nil {
		return nil, err
	}
	return []byte(a.String()), nil
}

func (in *Interpreter) truncated(n int) error {
	return NewScriptError(ErrorMalformedOperand, "%d-byte operand at 0x%X runs past end of script (%d bytes)", n, in.pc, len(in.code))
}

// Push pushes v onto the operand stack.
func (in *Interpreter) Push(v int32) { in.stack.Push(v) }

// PushBool pushes 1 or 0.
func (in *Interpreter) PushBool(b bool) {
	if b {
		in.stack.Push(1)
		return
	}
	in.stack.Push(0)
}

// Pop pops the operand stack.
func (in *Interpreter) Pop() (int32, error) { return in.stack.Pop() }

// GetStackList pops a count-prefixed argument list.
func (in *Interpreter) GetStackList(max int) ([]int32, error) {
	return in.stack.GetStackList(max)
}

// ReadVar reads a global, local or bit variable by encoded index.
func (in *Interpreter) ReadVar(v int32) (int32, error) {
	st := in.session.state
	switch {
	case v&varKindMask == 0:
		return st.ReadGlobal(int(v))
	case v&varBitFlag != 0:
		return st.readBit(int(v &^ varBitFlag))
	case v&varLocalFlag != 0:
		idx := v &^ varLocalFlag
		if idx < 0 || idx >= NumLocals {
			return 0, NewScriptError(ErrorInvalidVariable, "local %d outside 0..%d", idx, NumLocals-1)
		}
		return in.locals[idx], nil
	}
	return 0, NewScriptError(ErrorInvalidVariable, "variable 0x%04X", v)
}

// WriteVar writes a global, local or bit variable by encoded index.
func (in *Interpreter) WriteVar(v, value int32) error {
	st := in.session.state
	switch {
	case v&varKindMask == 0:
		return st.WriteGlobal(int(v), value)
	case v&varBitFlag != 0:
		return st.writeBit(int(v&^varBitFlag), value)
	case v&varLocalFlag != 0:
		idx := v &^ varLocalFlag
		if idx < 0 || idx >= NumLocals {
			return NewScriptError(ErrorInvalidVariable, "local %d outside 0..%d", idx, NumLocals-1)
		}
		in.locals[idx] = value
		return nil
	}
	return NewScriptError(ErrorInvalidVariable, "variable 0x%04X", v)
}

// Local returns local variable i.
func (in *Interpreter) Local(i int) int32 { return in.locals[i] }
