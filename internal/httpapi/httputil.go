package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alexanderramin/pipedeck/internal/app"
	"github.com/alexanderramin/pipedeck/internal/contract"
	"github.com/alexanderramin/pipedeck/internal/domain"
)

const maxPageLimit = 100

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, code, message string) {
	writeJSON(w, logger, status, contract.Error{Code: code, Message: message})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// parsePagination reads offset and limit. Invalid values fall back to the
// defaults; limit is capped at maxPageLimit.
func parsePagination(r *http.Request) app.PageRequest {
	var p app.PageRequest
	q := r.URL.Query()
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			p.Offset = n
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Limit = min(n, maxPageLimit)
		}
	}
	return p.Normalize()
}

// writeDomainError maps the domain error taxonomy onto status codes.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verrs domain.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		writeJSON(w, logger, http.StatusUnprocessableEntity, contract.Error{
			Code:    contract.CodeValidation,
			Message: verrs.Error(),
			Fields:  contract.FromValidation(verrs),
		})
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, logger, http.StatusNotFound, contract.CodeNotFound, err.Error())
	case errors.Is(err, domain.ErrVersionConflict):
		writeError(w, logger, http.StatusConflict, contract.CodeVersionConflict, err.Error())
	case errors.Is(err, domain.ErrTransitionNotAllowed):
		writeError(w, logger, http.StatusConflict, contract.CodeTransitionNotAllowed, err.Error())
	case errors.Is(err, domain.ErrStageNotInPipeline):
		writeError(w, logger, http.StatusUnprocessableEntity, contract.CodeStageNotInPipeline, err.Error())
	default:
		logger.Error("internal error", "error", err)
		writeError(w, logger, http.StatusInternalServerError, contract.CodeInternal, "internal server error")
	}
}
