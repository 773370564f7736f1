package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"meurenda/internal/core"
	"meurenda/internal/goals"
	applog "meurenda/internal/log"
	"meurenda/internal/report"
	"meurenda/internal/services"
	"meurenda/internal/state"
)

// HeaderPersistenceError is set when a mutation was applied in memory but
// could not be saved.
const HeaderPersistenceError = "X-Persistence-Error"

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// errBadRequest marks malformed input that never reached the domain.
var errBadRequest = errors.New("bad request")

// ErrorStatus maps a domain error to its HTTP status.
func ErrorStatus(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, report.ErrInvalidPeriod),
		errors.Is(err, report.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, state.ErrTransactionNotFound),
		errors.Is(err, state.ErrGoalNotFound),
		errors.Is(err, services.ErrNoActiveGoal):
		return http.StatusNotFound
	case isValidationError(err):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func isValidationError(err error) bool {
	for _, target := range []error{
		core.ErrInvalidDate, core.ErrInvalidAmount, core.ErrInvalidType,
		core.ErrDescriptionTooLong, core.ErrCategoryTooLong,
		goals.ErrInvalidGoalType, goals.ErrInvalidMarginMode, goals.ErrNegativeTarget,
		goals.ErrInvalidWeekday, goals.ErrNoWorkDays, goals.ErrInvalidCustomDays,
		goals.ErrZeroWorkDays, goals.ErrMissingManualMargin,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeError logs server-side failures and renders err as {"error": ...}.
// Internal errors are not echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := ErrorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err.Error())
		msg = http.StatusText(status)
	}
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeMutation renders a successful write, flagging a failed save.
func (s *Server) writeMutation(w http.ResponseWriter, status int, v any) {
	if err := s.finance.LastPersistError(); err != nil {
		w.Header().Set(HeaderPersistenceError, strings.ReplaceAll(err.Error(), "\n", "; "))
	}
	writeJSON(w, status, v)
}
