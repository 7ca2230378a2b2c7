package vm

import "math"

// Script start flag values.
const (
	flagRecursive          = 195
	flagExclusive          = 199
	flagExclusiveRecursive = 200
)

const (
	timerGet   = 10
	timerReset = 158
)

func branch(when bool) OpcodeFunc {
	return func(in *Interpreter) error {
		rel, err := in.FetchWordSigned()
		if err != nil {
			return err
		}
		cond, err := in.Pop()
		if err != nil {
			return err
		}
		if (cond != 0) == when {
			return in.Jump(rel)
		}
		return nil
	}
}

func opJump(in *Interpreter) error {
	rel, err := in.FetchWordSigned()
	if err != nil {
		return err
	}
	return in.Jump(rel)
}

func opBreakHere(in *Interpreter) error {
	in.BreakHere()
	return nil
}

func opStopObjectCode(in *Interpreter) error {
	in.Stop()
	return nil
}

func opStopScript(in *Interpreter) error {
	id, err := in.Pop()
	if err != nil {
		return err
	}
	if id == 0 {
		in.Stop()
		return nil
	}
	host, err := in.requireHost()
	if err != nil {
		return err
	}
	host.StopScript(id)
	return nil
}

func (in *Interpreter) requireHost() (Host, error) {
	if in.host == nil {
		return nil, NewScriptError(ErrorNoHost, "script %d has no scheduler", in.req.ScriptID)
	}
	return in.host, nil
}

func (in *Interpreter) runScript(req ScriptRequest) error {
	host, err := in.requireHost()
	if err != nil {
		return err
	}
	return host.RunScript(req)
}

func startFlags(flags byte) (exclusive, recursive bool) {
	exclusive = flags == flagExclusive || flags == flagExclusiveRecursive
	recursive = flags == flagRecursive || flags == flagExclusiveRecursive
	return exclusive, recursive
}

// popScriptCall pops the argument list and script number of a script start.
func (in *Interpreter) popScriptCall() (ScriptRequest, error) {
	args, err := in.GetStackList(maxScriptArgs)
	if err != nil {
		return ScriptRequest{}, err
	}
	script, err := in.Pop()
	if err != nil {
		return ScriptRequest{}, err
	}
	return ScriptRequest{ScriptID: script, Args: args}, nil
}

func opStartScript(in *Interpreter) error {
	req, err := in.popScriptCall()
	if err != nil {
		return err
	}
	flags, err := in.FetchByte()
	if err != nil {
		return err
	}
	req.Exclusive, req.Recursive = startFlags(flags)
	return in.runScript(req)
}

func startScriptQuick(recursive bool) OpcodeFunc {
	return func(in *Interpreter) error {
		req, err := in.popScriptCall()
		if err != nil {
			return err
		}
		req.Recursive = recursive
		return in.runScript(req)
	}
}

// popObjectCall pops the argument list, verb and object of an object start.
func (in *Interpreter) popObjectCall() (ScriptRequest, error) {
	args, err := in.GetStackList(maxScriptArgs)
	if err != nil {
		return ScriptRequest{}, err
	}
	entry, err := in.Pop()
	if err != nil {
		return ScriptRequest{}, err
	}
	object, err := in.Pop()
	if err != nil {
		return ScriptRequest{}, err
	}
	return ScriptRequest{ScriptID: object, ObjectID: object, EntryPoint: entry, Args: args}, nil
}

func opStartObject(in *Interpreter) error {
	req, err := in.popObjectCall()
	if err != nil {
		return err
	}
	flags, err := in.FetchByte()
	if err != nil {
		return err
	}
	req.Exclusive, req.Recursive = startFlags(flags)
	return in.runScript(req)
}

func opStartObjectQuick(in *Interpreter) error {
	req, err := in.popObjectCall()
	if err != nil {
		return err
	}
	req.Recursive = true
	return in.runScript(req)
}

// opJumpToScript ends the current script and starts another in its place.
func opJumpToScript(in *Interpreter) error {
	req, err := in.popScriptCall()
	if err != nil {
		return err
	}
	flags, err := in.FetchByte()
	if err != nil {
		return err
	}
	req.Exclusive, req.Recursive = startFlags(flags)
	in.Stop()
	return in.runScript(req)
}

func opIsScriptRunning(in *Interpreter) error {
	id, err := in.Pop()
	if err != nil {
		return err
	}
	host, err := in.requireHost()
	if err != nil {
		return err
	}
	in.PushBool(host.IsScriptRunning(id))
	return nil
}

// maxDelayTicks caps a single delay.
const maxDelayTicks = math.MaxInt32

// delay suspends for the popped count multiplied by scale ticks. The
// product is clamped to 0..maxDelayTicks.
func delay(scale int32) OpcodeFunc {
	return func(in *Interpreter) error {
		n, err := in.Pop()
		if err != nil {
			return err
		}
		in.SuspendFor(int(min(max(int64(n)*int64(scale), 0), maxDelayTicks)))
		return nil
	}
}

// opDelayFrames re-executes itself once per tick until its count runs out.
func opDelayFrames(in *Interpreter) error {
	if in.frameDelay == 0 {
		n, err := in.Pop()
		if err != nil {
			return err
		}
		in.frameDelay = n
	} else {
		in.frameDelay--
	}
	if in.frameDelay > 0 {
		in.pc = in.opStart
		in.BreakHere()
	} else {
		in.frameDelay = 0
	}
	return nil
}

func opGetTimer(in *Interpreter) error {
	timer, err := in.Pop()
	if err != nil {
		return err
	}
	cmd, err := in.FetchByte()
	if err != nil {
		return err
	}
	if cmd != timerGet {
		in.Push(0)
		return nil
	}
	ms, err := in.session.TimerElapsed(timer)
	if err != nil {
		return err
	}
	in.Push(ms)
	return nil
}

func opSetTimer(in *Interpreter) error {
	timer, err := in.Pop()
	if err != nil {
		return err
	}
	cmd, err := in.FetchByte()
	if err != nil {
		return err
	}
	if cmd != timerReset {
		return errUnknownSubOp("setTimer", cmd)
	}
	return in.session.ResetTimer(timer)
}
