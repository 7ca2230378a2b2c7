// Package vm provides error handling for the script interpreter.
package vm

import (
	"fmt"
)

// ErrorType represents the type of a script error. It implements error so
// that callers can match wrapped failures with errors.Is.
type ErrorType string

// Every script error is fatal to the script instance that raised it.
const (
	ErrorStackUnderflow          ErrorType = "STACK_UNDERFLOW"
	ErrorInvalidOpcode           ErrorType = "INVALID_OPCODE"
	ErrorOutOfBounds             ErrorType = "OUT_OF_BOUNDS"
	ErrorUndefinedArrayReference ErrorType = "UNDEFINED_ARRAY_REFERENCE"
	ErrorUnknownArray            ErrorType = "UNKNOWN_ARRAY"
	ErrorSizeMismatch            ErrorType = "SIZE_MISMATCH"
	ErrorInvalidDimension        ErrorType = "INVALID_DIMENSION"
	ErrorInvalidElementType      ErrorType = "INVALID_ELEMENT_TYPE"
	ErrorTooManyArguments        ErrorType = "TOO_MANY_ARGUMENTS"
	ErrorInvalidVariable         ErrorType = "INVALID_VARIABLE"
	ErrorMalformedOperand        ErrorType = "MALFORMED_OPERAND"
	ErrorUnknownSubOp            ErrorType = "UNKNOWN_SUBOP"
	ErrorDivisionByZero          ErrorType = "DIVISION_BY_ZERO"
	ErrorArrayTableFull          ErrorType = "ARRAY_TABLE_FULL"
	ErrorStepLimitExceeded       ErrorType = "STEP_LIMIT_EXCEEDED"
	ErrorNoHost                  ErrorType = "NO_HOST"
	ErrorFile                    ErrorType = "FILE_ERROR"
)

// Error implements the error interface.
func (t ErrorType) Error() string {
	return string(t)
}

// ScriptError is a failure raised while executing bytecode.
// ScriptID and Offset are -1 until the interpreter attaches its position.
type ScriptError struct {
	Type     ErrorType
	Message  string
	ScriptID int32
	Offset   int
}

// Error implements the error interface.
func (e *ScriptError) Error() string {
	if e.ScriptID >= 0 && e.Offset >= 0 {
		return fmt.Sprintf("[%s] %s (script %d at 0x%04X)", e.Type, e.Message, e.ScriptID, e.Offset)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap exposes the error type for errors.Is.
func (e *ScriptError) Unwrap() error {
	return e.Type
}

// NewScriptError creates a ScriptError without position information.
func NewScriptError(errType ErrorType, format string, args ...any) *ScriptError {
	return &ScriptError{
		Type:     errType,
		Message:  fmt.Sprintf(format, args...),
		ScriptID: -1,
		Offset:   -1,
	}
}

func errStackUnderflow() *ScriptError {
	return NewScriptError(ErrorStackUnderflow, "pop on empty stack")
}

func errOutOfBounds(id int32, idx2, idx1 int32, a *Array) *ScriptError {
	return NewScriptError(ErrorOutOfBounds, "array %d out of bounds: [%d, %d] exceeds [%d..%d, %d..%d]",
		id, idx2, idx1, a.Dim2.Start, a.Dim2.End, a.Dim1.Start, a.Dim1.End)
}

func errUnknownArray(id int32) *ScriptError {
	return NewScriptError(ErrorUnknownArray, "array %d does not exist", id)
}

func errUnknownSubOp(op string, sub byte) *ScriptError {
	return NewScriptError(ErrorUnknownSubOp, "%s: unknown sub-op %d", op, sub)
}
