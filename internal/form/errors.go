package form

import (
	"errors"
	"fmt"

	"github.com/alexanderramin/pipedeck/internal/domain"
)

// ErrSubmitInFlight is returned by Submit while a previous submission is pending.
var ErrSubmitInFlight = errors.New("submission already in flight")

// ValidationFailed aborts a submission before anything is sent. Section is
// the first section holding an error; the controller makes it active.
type ValidationFailed struct {
	Errors  domain.ValidationErrors
	Section Section
}

func (e *ValidationFailed) Error() string {
	return fmt.Sprintf("form invalid in %q: %v", e.Section, e.Errors)
}

func (e *ValidationFailed) Unwrap() error {
	return e.Errors
}

// SubmissionError wraps a failed create or update. The form keeps its state
// and stays dirty.
type SubmissionError struct {
	Op  string
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s opportunity: %v", e.Op, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}
