package vm

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/zurustar/hecore/pkg/logger"
	"github.com/zurustar/hecore/pkg/opcode"
)

// asm builds bytecode for tests.
type asm []byte

func (a asm) op(c opcode.Code) asm { return append(a, byte(c)) }

func (a asm) u8(v byte) asm { return append(a, v) }

func (a asm) word(v int) asm { return binary.LittleEndian.AppendUint16(a, uint16(v)) }

func (a asm) dword(v int32) asm { return binary.LittleEndian.AppendUint32(a, uint32(v)) }

func (a asm) str(s string) asm { return append(append(a, s...), 0) }

func (a asm) push(v int) asm { return a.op(opcode.PushWord).word(v) }

func (a asm) pushVar(v int) asm { return a.op(opcode.PushWordVar).word(v) }

func (a asm) write(v int) asm { return a.op(opcode.WriteWordVar).word(v) }

// list pushes values followed by their count.
func (a asm) list(values ...int) asm {
	for _, v := range values {
		a = a.push(v)
	}
	return a.push(len(values))
}

// fakeHost records script start and stop requests.
type fakeHost struct {
	started []ScriptRequest
	stopped []int32
	running map[int32]bool
}

func newFakeHost() *fakeHost {
	return &fakeHost{running: make(map[int32]bool)}
}

func (h *fakeHost) RunScript(req ScriptRequest) error {
	h.started = append(h.started, req)
	h.running[req.ScriptID] = true
	return nil
}

func (h *fakeHost) StopScript(id int32) {
	h.stopped = append(h.stopped, id)
	delete(h.running, id)
}

func (h *fakeHost) IsScriptRunning(id int32) bool {
	return h.running[id]
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	base := []Option{WithLogger(logger.Discard()), WithRandSeed(1), WithFileRoot(t.TempDir())}
	s := NewSession(append(base, opts...)...)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// run executes code to its end or first yield and returns the interpreter.
func run(t *testing.T, s *Session, code asm, host Host) (*Interpreter, error) {
	t.Helper()
	in := s.NewInterpreterWithCode(ScriptRequest{ScriptID: 1}, code, host)
	if err := in.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	return in, in.Run(1000)
}

func mustRun(t *testing.T, s *Session, code asm, host Host) *Interpreter {
	t.Helper()
	in, err := run(t, s, code, host)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	return in
}

func global(t *testing.T, s *Session, idx int) int32 {
	t.Helper()
	v, err := s.State().ReadGlobal(idx)
	if err != nil {
		t.Fatalf("ReadGlobal(%d): %v", idx, err)
	}
	return v
}
