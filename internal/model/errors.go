package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrBudgetExhausted is returned when the polling budget is spent without
	// the mesh reaching a terminal state.
	ErrBudgetExhausted = errors.New("deployment budget exhausted")
)

// SubmissionError is returned when the mesh provisioning request itself is
// rejected by the external CLI. It is a terminal failure, not a timeout.
type SubmissionError struct {
	Output string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("mesh submission rejected: %s", e.Output)
}
