package vm

import (
	"github.com/zurustar/hecore/pkg/opcode"
)

// Argument list limits used by the list-taking opcodes.
const (
	maxScriptArgs = 16
	maxListArgs   = 128
	maxPickArgs   = 100
)

func registerCoreOpcodes(t *OpcodeTable) {
	// stack and arithmetic
	mustRegister(t, opcode.PushByte, opPushByte)
	mustRegister(t, opcode.PushWord, opPushWord)
	mustRegister(t, opcode.PushDWord, opPushDWord)
	mustRegister(t, opcode.PushWordVar, opPushWordVar)
	mustRegister(t, opcode.Dup, opDup)
	mustRegister(t, opcode.Not, opNot)
	mustRegister(t, opcode.Eq, binaryOp(func(a, b int32) (int32, error) { return boolInt(a == b), nil }))
	mustRegister(t, opcode.Neq, binaryOp(func(a, b int32) (int32, error) { return boolInt(a != b), nil }))
	mustRegister(t, opcode.Gt, binaryOp(func(a, b int32) (int32, error) { return boolInt(a > b), nil }))
	mustRegister(t, opcode.Lt, binaryOp(func(a, b int32) (int32, error) { return boolInt(a < b), nil }))
	mustRegister(t, opcode.Le, binaryOp(func(a, b int32) (int32, error) { return boolInt(a <= b), nil }))
	mustRegister(t, opcode.Ge, binaryOp(func(a, b int32) (int32, error) { return boolInt(a >= b), nil }))
	mustRegister(t, opcode.Add, binaryOp(func(a, b int32) (int32, error) { return a + b, nil }))
	mustRegister(t, opcode.Sub, binaryOp(func(a, b int32) (int32, error) { return a - b, nil }))
	mustRegister(t, opcode.Mul, binaryOp(func(a, b int32) (int32, error) { return a * b, nil }))
	mustRegister(t, opcode.Div, binaryOp(divide))
	mustRegister(t, opcode.Land, binaryOp(func(a, b int32) (int32, error) { return boolInt(a != 0 && b != 0), nil }))
	mustRegister(t, opcode.Lor, binaryOp(func(a, b int32) (int32, error) { return boolInt(a != 0 || b != 0), nil }))
	mustRegister(t, opcode.Band, binaryOp(func(a, b int32) (int32, error) { return a & b, nil }))
	mustRegister(t, opcode.Bor, binaryOp(func(a, b int32) (int32, error) { return a | b, nil }))
	mustRegister(t, opcode.Abs, opAbs)
	mustRegister(t, opcode.Pop, opPop)
	mustRegister(t, opcode.Pop2, opPop)
	mustRegister(t, opcode.Dummy, func(*Interpreter) error { return nil })
	mustRegister(t, opcode.CompareStackList, opIsAnyOf)
	mustRegister(t, opcode.IsAnyOf, opIsAnyOf)
	mustRegister(t, opcode.PickOneOf, opPickOneOf)
	mustRegister(t, opcode.PickOneOfDefault, opPickOneOfDefault)
	mustRegister(t, opcode.GetRandomNumber, opGetRandomNumber)
	mustRegister(t, opcode.GetRandomNumberRange, opGetRandomNumberRange)

	// variables and arrays
	mustRegister(t, opcode.WriteWordVar, opWriteWordVar)
	mustRegister(t, opcode.WordVarInc, varAdjust(1))
	mustRegister(t, opcode.WordVarDec, varAdjust(-1))
	mustRegister(t, opcode.WordArrayRead, opWordArrayRead)
	mustRegister(t, opcode.WordArrayIndexedRead, opWordArrayIndexedRead)
	mustRegister(t, opcode.WordArrayWrite, opWordArrayWrite)
	mustRegister(t, opcode.WordArrayIndexedWrite, opWordArrayIndexedWrite)
	mustRegister(t, opcode.WordArrayInc, arrayAdjust(1))
	mustRegister(t, opcode.WordArrayDec, arrayAdjust(-1))
	mustRegister(t, opcode.GetArrayDimSize, opGetArrayDimSize)
	mustRegister(t, opcode.ArrayOps, opArrayOps)
	mustRegister(t, opcode.DimArray, opDimArray)
	mustRegister(t, opcode.Dim2DimArray, opDim2DimArray)
	mustRegister(t, opcode.RedimArray, opRedimArray)
	mustRegister(t, opcode.Shuffle, opShuffle)
	mustRegister(t, opcode.PickVarRandom, opPickVarRandom)
	mustRegister(t, opcode.StringLen, opStringLen)

	// control flow and scripts
	mustRegister(t, opcode.If, branch(true))
	mustRegister(t, opcode.IfNot, branch(false))
	mustRegister(t, opcode.Jump, opJump)
	mustRegister(t, opcode.BreakHere, opBreakHere)
	mustRegister(t, opcode.StopObjectCode, opStopObjectCode)
	mustRegister(t, opcode.StopObjectCode2, opStopObjectCode)
	mustRegister(t, opcode.StopScript, opStopScript)
	mustRegister(t, opcode.StartScript, opStartScript)
	mustRegister(t, opcode.StartScriptQuick, startScriptQuick(false))
	mustRegister(t, opcode.StartScriptQuick2, startScriptQuick(true))
	mustRegister(t, opcode.StartObject, opStartObject)
	mustRegister(t, opcode.StartObjectQuick, opStartObjectQuick)
	mustRegister(t, opcode.JumpToScript, opJumpToScript)
	mustRegister(t, opcode.IsScriptRunning, opIsScriptRunning)
	mustRegister(t, opcode.Delay, delay(1))
	mustRegister(t, opcode.DelaySeconds, delay(60))
	mustRegister(t, opcode.DelayMinutes, delay(3600))
	mustRegister(t, opcode.DelayFrames, opDelayFrames)
	mustRegister(t, opcode.GetTimer, opGetTimer)
	mustRegister(t, opcode.SetTimer, opSetTimer)

	// files
	mustRegister(t, opcode.OpenFile, opOpenFile)
	mustRegister(t, opcode.CloseFile, opCloseFile)
	mustRegister(t, opcode.ReadFile, opReadFile)
	mustRegister(t, opcode.WriteFile, opWriteFile)
	mustRegister(t, opcode.DeleteFile, opDeleteFile)
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
