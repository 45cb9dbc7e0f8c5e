package remote

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/alexanderramin/pipedeck/internal/contract"
	"github.com/alexanderramin/pipedeck/internal/domain"
)

var (
	// ErrUnavailable indicates the pipedeck server is unreachable.
	ErrUnavailable = errors.New("pipedeck server unavailable")

	// ErrTimeout indicates the request exceeded its deadline.
	ErrTimeout = errors.New("pipedeck request timed out")

	// ErrInvalidResponse indicates a response body that could not be decoded.
	ErrInvalidResponse = errors.New("invalid pipedeck response")

	// ErrRetryExhausted indicates every attempt of a read failed.
	ErrRetryExhausted = errors.New("pipedeck retry attempts exhausted")
)

// StatusError is a non-2xx answer. It unwraps to the matching domain
// sentinel so callers keep using errors.Is against the domain taxonomy.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d %s: %s", e.Status, e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	switch e.Code {
	case contract.CodeNotFound:
		return domain.ErrNotFound
	case contract.CodeVersionConflict:
		return domain.ErrVersionConflict
	case contract.CodeTransitionNotAllowed:
		return domain.ErrTransitionNotAllowed
	case contract.CodeStageNotInPipeline:
		return domain.ErrStageNotInPipeline
	}
	switch e.Status {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusConflict:
		return domain.ErrVersionConflict
	}
	return nil
}

func (e *StatusError) retryable() bool {
	return e.Status >= http.StatusInternalServerError
}

func errorCode(err error) string {
	var se *StatusError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "TIMEOUT"
	case errors.Is(err, ErrUnavailable):
		return "UNAVAILABLE"
	case errors.Is(err, ErrInvalidResponse):
		return "INVALID_RESPONSE"
	case errors.As(err, &se):
		return se.Code
	default:
		var verrs domain.ValidationErrors
		if errors.As(err, &verrs) {
			return contract.CodeValidation
		}
		return "UNKNOWN"
	}
}
