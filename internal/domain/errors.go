package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates the requested pipeline, stage, field or opportunity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict indicates a write lost an optimistic concurrency race.
	ErrVersionConflict = errors.New("version conflict")

	// ErrMoveInFlight indicates a move for the same opportunity is still pending.
	ErrMoveInFlight = errors.New("move already in flight for opportunity")

	// ErrTransitionNotAllowed indicates the pipeline's transition policy rejects the move.
	ErrTransitionNotAllowed = errors.New("stage transition not allowed")

	// ErrStageNotInPipeline indicates a stage reference outside the opportunity's pipeline.
	ErrStageNotInPipeline = errors.New("stage does not belong to pipeline")

	// ErrColumnBusy indicates a column is already loading a page.
	ErrColumnBusy = errors.New("column is already loading")

	// ErrUnknownColumn indicates a stage id with no column on the board.
	ErrUnknownColumn = errors.New("unknown column")
)

// FieldError describes one validation failure for one field.
type FieldError struct {
	Field   string
	Kind    ErrorKind
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors maps field keys to their validation failure.
type ValidationErrors map[string]*FieldError

func (v ValidationErrors) Error() string {
	keys := v.Keys()
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, v[k].Error())
	}
	return fmt.Sprintf("validation failed (%d errors): %s", len(v), strings.Join(parts, "; "))
}

// Keys returns the failing field keys in sorted order.
func (v ValidationErrors) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge copies every entry of other into v, keeping existing entries.
func (v ValidationErrors) Merge(other ValidationErrors) {
	for k, e := range other {
		if _, ok := v[k]; !ok {
			v[k] = e
		}
	}
}

// Add records an error for field unless one is already present.
func (v ValidationErrors) Add(field string, kind ErrorKind, msg string) {
	if _, ok := v[field]; ok {
		return
	}
	v[field] = &FieldError{Field: field, Kind: kind, Message: msg}
}

// RequiredMessage is the user-facing text for a missing required field.
func RequiredMessage(label string) string {
	return label + " é obrigatório"
}
