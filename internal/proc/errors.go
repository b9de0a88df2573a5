package proc

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes procedure errors.
type ErrorCode string

const (
	// ErrCodePrecondition indicates Init found the stack in the wrong state.
	ErrCodePrecondition ErrorCode = "PRECONDITION_FAILED"

	// ErrCodeConfigApply indicates a lower layer rejected a configuration.
	ErrCodeConfigApply ErrorCode = "CONFIG_APPLY_FAILED"

	// ErrCodeDecode indicates the message codec could not unpack a blob.
	ErrCodeDecode ErrorCode = "DECODE_FAILED"

	// ErrCodeLowerLayer indicates a lower layer reported failure in an event.
	ErrCodeLowerLayer ErrorCode = "LOWER_LAYER_FAILURE"

	// ErrCodeNotImplemented indicates a state whose event handling does not exist yet.
	ErrCodeNotImplemented ErrorCode = "NOT_IMPLEMENTED"

	// ErrCodeCancelled indicates the owner cancelled the procedure.
	ErrCodeCancelled ErrorCode = "CANCELLED"

	// ErrCodeBusy indicates a launch into an occupied registry slot.
	ErrCodeBusy ErrorCode = "BUSY"

	// ErrCodeStepsExceeded indicates a procedure kept returning Repeat.
	ErrCodeStepsExceeded ErrorCode = "STEPS_EXCEEDED"
)

// ErrCancelled is wrapped by every cancellation error.
var ErrCancelled = errors.New("procedure cancelled")

// ProcError is an error resolved inside a procedure or refused by the Registry.
type ProcError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Kind identifies the procedure.
	Kind Kind

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *ProcError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Kind != "" {
		msg = fmt.Sprintf("%s (proc=%s)", msg, e.Kind)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ProcError) Unwrap() error {
	return e.Err
}

// CodeOf returns the ErrorCode of err, or "" if err is not a ProcError.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var pe *ProcError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsCancelled returns true if err is a cancellation error.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsBusy returns true if err is a busy-slot launch rejection.
func IsBusy(err error) bool {
	return CodeOf(err) == ErrCodeBusy
}

// NewPreconditionError creates an error for a failed Init precondition.
func NewPreconditionError(kind Kind, cause error) *ProcError {
	return &ProcError{
		Code:    ErrCodePrecondition,
		Kind:    kind,
		Message: "precondition not met",
		Err:     cause,
	}
}

// NewApplyError creates an error for a configuration a lower layer rejected.
func NewApplyError(kind Kind, what string) *ProcError {
	return &ProcError{
		Code:    ErrCodeConfigApply,
		Kind:    kind,
		Message: fmt.Sprintf("failed to apply %s", what),
	}
}

// NewDecodeError creates an error for a codec failure.
func NewDecodeError(kind Kind, what string, cause error) *ProcError {
	return &ProcError{
		Code:    ErrCodeDecode,
		Kind:    kind,
		Message: fmt.Sprintf("could not unpack %s", what),
		Err:     cause,
	}
}

// NewLowerLayerError creates an error for a failure reported by an event.
func NewLowerLayerError(kind Kind, message string) *ProcError {
	return &ProcError{
		Code:    ErrCodeLowerLayer,
		Kind:    kind,
		Message: message,
	}
}

// NewNotImplementedError creates an error for a known gap in a procedure.
func NewNotImplementedError(kind Kind, what string) *ProcError {
	return &ProcError{
		Code:    ErrCodeNotImplemented,
		Kind:    kind,
		Message: fmt.Sprintf("%s not implemented", what),
	}
}

func newCancelledError(kind Kind) *ProcError {
	return &ProcError{
		Code:    ErrCodeCancelled,
		Kind:    kind,
		Message: "cancelled by owner",
		Err:     ErrCancelled,
	}
}

func newBusyError(kind Kind) *ProcError {
	return &ProcError{
		Code:    ErrCodeBusy,
		Kind:    kind,
		Message: "procedure already running",
	}
}
