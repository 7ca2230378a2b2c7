// Package engine schedules script instances of a vm.Session.
//
// The scheduler is cooperative: once per tick every live instance runs until
// it yields or stops, in the order the instances were started. An exclusive
// instance runs alone until it stops. Failing instances are logged and
// removed; the rest of the game keeps running.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zurustar/hecore/pkg/logger"
	"github.com/zurustar/hecore/pkg/vm"
)

// Defaults.
const (
	DefaultTickRate     = 60
	DefaultMaxSteps     = 100000
	DefaultMaxInstances = 80
)

var (
	// ErrTerminated is returned by Update once the scheduler has finished.
	ErrTerminated = errors.New("engine terminated")
	// ErrTooManyScripts is returned when a start would exceed the instance limit.
	ErrTooManyScripts = errors.New("too many running scripts")
)

// InstanceInfo describes one live instance.
type InstanceInfo struct {
	ID        uuid.UUID
	ScriptID  int32
	ObjectID  int32
	Status    vm.Status
	PC        int
	Exclusive bool
}

// Scheduler steps the interpreters of one session. It implements vm.Host.
// It is not safe for concurrent use except for Terminate and IsTerminated.
type Scheduler struct {
	session *vm.Session
	log     *slog.Logger
	clock   func() time.Time

	maxSteps     int
	maxInstances int
	timeout      time.Duration
	startTime    time.Time

	instances []*vm.Interpreter
	exclusive *vm.Interpreter
	tick      uint64
	failures  int
	lastErr   error

	terminated atomic.Bool
}

// Option is a functional option for configuring a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Scheduler) {
		s.log = log
	}
}

// WithMaxSteps bounds the instructions an instance may run without
// yielding. Zero disables the bound.
func WithMaxSteps(n int) Option {
	return func(s *Scheduler) {
		s.maxSteps = n
	}
}

// WithMaxInstances limits the number of live instances.
func WithMaxInstances(n int) Option {
	return func(s *Scheduler) {
		s.maxInstances = n
	}
}

// WithTimeout stops the scheduler after d has elapsed. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.timeout = d
	}
}

// WithClock replaces the clock used for the timeout.
func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// NewScheduler creates a scheduler for session.
func NewScheduler(session *vm.Session, opts ...Option) *Scheduler {
	s := &Scheduler{
		session:      session,
		log:          logger.GetLogger(),
		clock:        time.Now,
		maxSteps:     DefaultMaxSteps,
		maxInstances: DefaultMaxInstances,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startTime = s.clock()
	return s
}

// Session returns the scheduled session.
func (s *Scheduler) Session() *vm.Session { return s.session }

// Start resets the timeout clock and the termination flag.
func (s *Scheduler) Start() {
	s.startTime = s.clock()
	s.terminated.Store(false)
	if s.timeout > 0 {
		s.log.Info("Timeout set", "timeout", s.timeout)
	}
	s.log.Info("Scheduler started")
}

// Boot starts the first script of a game.
func (s *Scheduler) Boot(scriptID int32, args ...int32) error {
	return s.RunScript(vm.ScriptRequest{ScriptID: scriptID, Args: args})
}

// RunScript creates and starts an instance for req. A non-recursive start
// stops the running instances of the same script first; an exclusive start
// suspends everything else until the new instance stops.
func (s *Scheduler) RunScript(req vm.ScriptRequest) error {
	// 置き換え先が作れない場合は既存のインスタンスを残す
	in, err := s.session.NewInterpreter(req, s)
	if err != nil {
		return err
	}
	if err := in.Start(); err != nil {
		return err
	}

	if !req.Recursive {
		s.stopMatching(func(in *vm.Interpreter) bool { return sameScript(in.Request(), req) })
	}
	if s.liveCount() >= s.maxInstances {
		return fmt.Errorf("%w: limit %d", ErrTooManyScripts, s.maxInstances)
	}
	s.instances = append(s.instances, in)
	if req.Exclusive {
		s.exclusive = in
	}
	s.log.Debug("script scheduled", "script", req.ScriptID, "object", req.ObjectID,
		"exclusive", req.Exclusive, "recursive", req.Recursive)
	return nil
}

// StopScript stops every instance of scriptID.
func (s *Scheduler) StopScript(scriptID int32) {
	s.stopMatching(func(in *vm.Interpreter) bool { return in.ScriptID() == scriptID })
}

// IsScriptRunning reports whether an instance of scriptID is alive.
func (s *Scheduler) IsScriptRunning(scriptID int32) bool {
	for _, in := range s.instances {
		if in.ScriptID() == scriptID && in.Status() != vm.StatusStopped {
			return true
		}
	}
	return false
}

func sameScript(a, b vm.ScriptRequest) bool {
	if a.ObjectID != 0 || b.ObjectID != 0 {
		return a.ObjectID == b.ObjectID && a.EntryPoint == b.EntryPoint
	}
	return a.ScriptID == b.ScriptID
}

func (s *Scheduler) stopMatching(match func(*vm.Interpreter) bool) {
	for _, in := range s.instances {
		if in.Status() != vm.StatusStopped && match(in) {
			in.Stop()
		}
	}
}

func (s *Scheduler) liveCount() int {
	n := 0
	for _, in := range s.instances {
		if in.Status() != vm.StatusStopped {
			n++
		}
	}
	return n
}

// Tick runs one scheduling round. Instances started during the round run in
// the same round.
func (s *Scheduler) Tick() {
	s.tick++
	for i := 0; i < len(s.instances); i++ {
		in := s.instances[i]
		if s.exclusive != nil && s.exclusive.Status() == vm.StatusStopped {
			s.exclusive = nil
		}
		if s.exclusive != nil && in != s.exclusive {
			continue
		}
		if !in.Tick() {
			continue
		}
		if err := in.Run(s.maxSteps); err != nil {
			s.failures++
			s.lastErr = err
			in.Logger().Error("script failed", "error", err)
		}
	}
	s.compact()
}

// compact drops stopped instances.
func (s *Scheduler) compact() {
	live := s.instances[:0]
	for _, in := range s.instances {
		if in.Status() != vm.StatusStopped {
			live = append(live, in)
		}
	}
	clear(s.instances[len(live):])
	s.instances = live
	if s.exclusive != nil && s.exclusive.Status() == vm.StatusStopped {
		s.exclusive = nil
	}
}

// Terminate requests the scheduler to stop.
func (s *Scheduler) Terminate() {
	if !s.terminated.Swap(true) {
		s.log.Info("Termination requested")
	}
}

// IsTerminated reports whether termination was requested.
func (s *Scheduler) IsTerminated() bool {
	return s.terminated.Load()
}

// CheckTermination reports whether the scheduler should stop, requesting
// termination when the timeout has passed.
func (s *Scheduler) CheckTermination() bool {
	if s.terminated.Load() {
		return true
	}
	if s.timeout > 0 {
		if elapsed := s.clock().Sub(s.startTime); elapsed >= s.timeout {
			s.log.Info("Timeout exceeded", "elapsed", elapsed)
			s.Terminate()
			return true
		}
	}
	return false
}

// Update performs one tick and returns ErrTerminated once termination was
// requested, the timeout passed or every script has finished.
func (s *Scheduler) Update() error {
	if s.CheckTermination() {
		return ErrTerminated
	}

	s.Tick()

	if len(s.instances) == 0 {
		s.log.Info("All scripts completed, terminating", "ticks", s.tick)
		s.Terminate()
		return ErrTerminated
	}
	if s.CheckTermination() {
		return ErrTerminated
	}
	return nil
}

// TickCount returns the number of ticks run so far.
func (s *Scheduler) TickCount() uint64 { return s.tick }

// Failures returns how many instances have failed and the last failure.
func (s *Scheduler) Failures() (int, error) { return s.failures, s.lastErr }

// Instances lists the live instances in scheduling order.
func (s *Scheduler) Instances() []InstanceInfo {
	out := make([]InstanceInfo, 0, len(s.instances))
	for _, in := range s.instances {
		if in.Status() == vm.StatusStopped {
			continue
		}
		out = append(out, InstanceInfo{
			ID:        in.ID(),
			ScriptID:  in.ScriptID(),
			ObjectID:  in.ObjectID(),
			Status:    in.Status(),
			PC:        in.PC(),
			Exclusive: in == s.exclusive,
		})
	}
	return out
}
