package proc

import (
	"errors"
	"fmt"
)

// DefaultMaxRepeats bounds how many Repeat outcomes a single turn may fold.
// This keeps a procedure that never stops returning Repeat from spinning the
// scheduler goroutine forever.
const DefaultMaxRepeats = 64

// repeatBudget counts Repeat folds within one Init/Step/React turn.
type repeatBudget struct {
	max     int
	current int
}

func newRepeatBudget(max int) *repeatBudget {
	return &repeatBudget{max: max}
}

// Check increments the counter and validates against the limit.
func (b *repeatBudget) Check(kind Kind) error {
	b.current++
	if b.current > b.max {
		return &StepsExceededError{Kind: kind, Steps: b.current, Limit: b.max}
	}
	return nil
}

// StepsExceededError is returned when a turn exceeds the repeat budget.
type StepsExceededError struct {
	Kind  Kind
	Steps int
	Limit int
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("procedure %s exceeded repeat budget: %d steps > %d limit",
		e.Kind, e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
