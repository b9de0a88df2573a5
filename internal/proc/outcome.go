package proc

import (
	"errors"
	"fmt"
)

type outcomeKind uint8

const (
	outcomeYield outcomeKind = iota
	outcomeSuccess
	outcomeError
	outcomeRepeat
)

func (k outcomeKind) String() string {
	switch k {
	case outcomeYield:
		return "yield"
	case outcomeSuccess:
		return "success"
	case outcomeError:
		return "error"
	case outcomeRepeat:
		return "repeat"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(k))
	}
}

// Outcome is the result of a single Init, Step or React call.
//
// The zero value is Yield. Outcomes are built with Success, Fail, Yield and
// Repeat; the variant set is closed.
type Outcome struct {
	kind  outcomeKind
	value any
	err   error
}

// errUnspecified replaces a nil error passed to Fail.
var errUnspecified = errors.New("procedure failed")

// Success resolves the procedure with a value.
func Success(value any) Outcome {
	return Outcome{kind: outcomeSuccess, value: value}
}

// Fail resolves the procedure with an error.
func Fail(err error) Outcome {
	if err == nil {
		err = errUnspecified
	}
	return Outcome{kind: outcomeError, err: err}
}

// Yield suspends the procedure until an event arrives or it is stepped again.
func Yield() Outcome {
	return Outcome{kind: outcomeYield}
}

// Repeat asks the Registry to call Step again before returning control.
func Repeat() Outcome {
	return Outcome{kind: outcomeRepeat}
}

// IsTerminal reports whether the outcome resolves the procedure.
func (o Outcome) IsTerminal() bool {
	return o.kind == outcomeSuccess || o.kind == outcomeError
}

func (o Outcome) IsSuccess() bool { return o.kind == outcomeSuccess }
func (o Outcome) IsError() bool   { return o.kind == outcomeError }
func (o Outcome) IsYield() bool   { return o.kind == outcomeYield }
func (o Outcome) IsRepeat() bool  { return o.kind == outcomeRepeat }

// Value returns the success value (nil for other outcomes).
func (o Outcome) Value() any { return o.value }

// Err returns the failure reason (nil for other outcomes).
func (o Outcome) Err() error { return o.err }

// String returns "yield", "success", "error" or "repeat".
func (o Outcome) String() string {
	return o.kind.String()
}

// result converts a terminal outcome to the Result handed to Then.
func (o Outcome) result() Result {
	return Result{Value: o.value, Err: o.err}
}

// Result is the final state of a resolved procedure.
type Result struct {
	Value any
	Err   error
}

// IsSuccess reports whether the procedure resolved with Success.
func (r Result) IsSuccess() bool { return r.Err == nil }

// IsError reports whether the procedure resolved with an error, including
// cancellation.
func (r Result) IsError() bool { return r.Err != nil }

// IsCancelled reports whether the procedure was cancelled by its owner.
func (r Result) IsCancelled() bool { return IsCancelled(r.Err) }

// String returns "success", "cancelled" or "error".
func (r Result) String() string {
	switch {
	case r.IsSuccess():
		return "success"
	case r.IsCancelled():
		return "cancelled"
	default:
		return "error"
	}
}
