package models

import (
	"errors"
	"fmt"
)

// ValidationError reports invalid input or plan configuration. It is fatal
// to the triggering call only.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// NewValidationError builds a ValidationError with a formatted reason.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing plan or installment.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.Key)
}

// ErrInstallmentSettled is returned when a payment targets an installment
// that is already paid.
var ErrInstallmentSettled = errors.New("installment is already paid")

// ErrPlanConflict is returned by the repository when a concurrent write to
// the same plan was detected. The losing operation must be retried by the
// caller.
var ErrPlanConflict = errors.New("payment plan was modified concurrently")
