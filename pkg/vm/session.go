// Package vm implements a stack-based bytecode interpreter with a 256-slot
// opcode table and a typed, two-dimensional array memory model.
//
// A Session owns the state shared by every script of one game: global and
// bit variables, the array store, timers, the random source and open files.
// Interpreters are created from a session and stepped by an external
// scheduler; nothing in this package blocks or spawns goroutines.
package vm

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/zurustar/hecore/pkg/logger"
)

// Default session sizes.
const (
	DefaultNumVariables = 2048
	DefaultNumBitVars   = 4096
	DefaultArrayLimit   = 4096
	numTimers           = 3
)

// ErrNoScriptSource is returned when a session without a script source is
// asked to load a script by number.
var ErrNoScriptSource = errors.New("session has no script source")

// ScriptSource supplies bytecode by script number.
type ScriptSource interface {
	// Script returns the bytecode of a global script.
	Script(id int32) ([]byte, error)
	// ObjectScript returns the bytecode of an object and the offset of the
	// given verb's entry point within it.
	ObjectScript(object, verb int32) ([]byte, int, error)
}

// Session is the shared game state and configuration for a set of
// interpreters.
type Session struct {
	state   *State
	table   *OpcodeTable
	scripts ScriptSource
	files   *FileTable
	rng     *rand.Rand
	clock   func() time.Time
	timers  [numTimers + 1]time.Time
	log     *slog.Logger

	numVars    int
	numBits    int
	arrayLimit int
	fileRoot   string
}

// Option is a functional option for configuring a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) {
		s.log = log
	}
}

// WithOpcodeTable replaces the default opcode table.
func WithOpcodeTable(t *OpcodeTable) Option {
	return func(s *Session) {
		s.table = t
	}
}

// WithScriptSource sets where scripts are loaded from.
func WithScriptSource(src ScriptSource) Option {
	return func(s *Session) {
		s.scripts = src
	}
}

// WithRandSeed makes the random source deterministic.
func WithRandSeed(seed uint64) Option {
	return func(s *Session) {
		s.rng = rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
	}
}

// WithClock replaces the wall clock used by script timers.
func WithClock(clock func() time.Time) Option {
	return func(s *Session) {
		s.clock = clock
	}
}

// WithFileRoot confines script file access to dir.
func WithFileRoot(dir string) Option {
	return func(s *Session) {
		s.fileRoot = dir
	}
}

// WithVariableCount sets the number of global and bit variables.
func WithVariableCount(globals, bits int) Option {
	return func(s *Session) {
		s.numVars = globals
		s.numBits = bits
	}
}

// WithArrayLimit sets the highest array id.
func WithArrayLimit(n int) Option {
	return func(s *Session) {
		s.arrayLimit = n
	}
}

// NewSession creates a session with zeroed state.
func NewSession(opts ...Option) *Session {
	s := &Session{
		log:        logger.GetLogger(),
		clock:      time.Now,
		numVars:    DefaultNumVariables,
		numBits:    DefaultNumBitVars,
		arrayLimit: DefaultArrayLimit,
		fileRoot:   ".",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.table == nil {
		s.table = DefaultOpcodeTable()
	}
	if s.rng == nil {
		seed := uint64(s.clock().UnixNano())
		s.rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	s.state = NewState(s.numVars, s.numBits, s.arrayLimit)
	s.files = NewFileTable(s.fileRoot)

	now := s.clock()
	for i := range s.timers {
		s.timers[i] = now
	}
	return s
}

// State returns the shared variable and array state.
func (s *Session) State() *State { return s.state }

// Table returns the opcode table.
func (s *Session) Table() *OpcodeTable { return s.table }

// Files returns the open file table.
func (s *Session) Files() *FileTable { return s.files }

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger { return s.log }

// NewInterpreter loads the script named by req and returns a Ready
// interpreter for it. The opcode table is sealed on first use.
func (s *Session) NewInterpreter(req ScriptRequest, host Host) (*Interpreter, error) {
	if s.scripts == nil {
		return nil, ErrNoScriptSource
	}

	if req.ObjectID != 0 {
		code, entry, err := s.scripts.ObjectScript(req.ObjectID, req.EntryPoint)
		if err != nil {
			return nil, fmt.Errorf("failed to load object %d verb %d: %w", req.ObjectID, req.EntryPoint, err)
		}
		if entry < 0 || entry > len(code) {
			return nil, fmt.Errorf("object %d verb %d: entry 0x%X outside %d bytes", req.ObjectID, req.EntryPoint, entry, len(code))
		}
		s.table.Seal()
		return newInterpreter(s, req, code, entry, host), nil
	}

	code, err := s.scripts.Script(req.ScriptID)
	if err != nil {
		return nil, fmt.Errorf("failed to load script %d: %w", req.ScriptID, err)
	}
	s.table.Seal()
	return newInterpreter(s, req, code, 0, host), nil
}

// NewInterpreterWithCode returns a Ready interpreter over code.
func (s *Session) NewInterpreterWithCode(req ScriptRequest, code []byte, host Host) *Interpreter {
	s.table.Seal()
	return newInterpreter(s, req, code, 0, host)
}

// randomInt returns a value in [0, max].
func (s *Session) randomInt(max int32) int32 {
	if max <= 0 {
		return 0
	}
	return s.rng.Int32N(max + 1)
}

// randomRange returns a value in [min, max].
func (s *Session) randomRange(min, max int32) int32 {
	if max < min {
		min, max = max, min
	}
	return min + s.randomInt(max-min)
}

// ResetTimer restarts timer t (1..3).
func (s *Session) ResetTimer(t int32) error {
	if t < 1 || t > numTimers {
		return NewScriptError(ErrorOutOfBounds, "timer %d out of range 1..%d", t, numTimers)
	}
	s.timers[t] = s.clock()
	return nil
}

// TimerElapsed returns the milliseconds since timer t was reset.
func (s *Session) TimerElapsed(t int32) (int32, error) {
	if t < 1 || t > numTimers {
		return 0, NewScriptError(ErrorOutOfBounds, "timer %d out of range 1..%d", t, numTimers)
	}
	return int32(s.clock().Sub(s.timers[t]).Milliseconds()), nil
}

// Snapshot copies the shared state for saving.
func (s *Session) Snapshot() *Snapshot {
	return s.state.Snapshot()
}

// Restore replaces the shared state with snap.
func (s *Session) Restore(snap *Snapshot) error {
	if err := s.state.Restore(snap); err != nil {
		return fmt.Errorf("failed to restore state: %w", err)
	}
	s.log.Info("state restored", "globals", len(snap.Globals), "arrays", len(snap.Arrays))
	return nil
}

// Close closes every file opened by scripts.
func (s *Session) Close() error {
	return s.files.CloseAll()
}
