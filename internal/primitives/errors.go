package primitives

import (
	"errors"
	"fmt"
)

var (
	// ErrInvariant marks a structural invariant violation. It is fatal to a run.
	ErrInvariant = errors.New("invariant violated")

	// ErrEmptyHistory is returned when a reading is requested before any exists.
	ErrEmptyHistory = errors.New("no reading available yet")

	// ErrDivisionByZero is returned by estimators whose denominator is zero.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrReentrantSet is the panic value raised when an Observable is assigned
	// from inside one of its own listeners.
	ErrReentrantSet = errors.New("observable assigned from its own listener")
)

// InvariantError reports which field broke an invariant and when.
type InvariantError struct {
	Field    string
	TimeStep TimeStep
	Value    float64
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s = %g at t=%s", ErrInvariant, e.Field, e.Value, e.TimeStep)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariant
}
