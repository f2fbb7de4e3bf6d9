package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"tally/internal/core"
)

// fieldError names the failing field and carries a stable reason code so
// clients can react without parsing messages.
type fieldError struct {
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error fieldError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			slog.Error("Failed to encode response", "error", err)
		}
	}
}

// writeBadRequest reports a malformed input that never reached the domain
// layer: an unparseable body, date, path ID or missing identity header.
func writeBadRequest(w http.ResponseWriter, field string, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: fieldError{
		Field:   field,
		Code:    "invalid_request",
		Message: err.Error(),
	}})
}

// writeError maps domain errors onto HTTP statuses: validation failures are
// 422, duplicate budget scopes 409, missing rows 404, everything else 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method, "url", r.URL.Path, "error", err)
		writeJSON(w, status, errorResponse{Error: fieldError{
			Code:    "internal",
			Message: "internal server error",
		}})
		return
	}
	writeJSON(w, status, errorResponse{Error: detailForError(err)})
}

var errorDetails = []struct {
	err   error
	field string
	code  string
}{
	{core.ErrNotFound, "", "not_found"},
	{core.ErrDuplicateBudgetScope, "", "duplicate_budget"},
	{core.ErrInvalidAmount, "amount", "invalid_amount"},
	{core.ErrFutureDate, "date", "future_date"},
	{core.ErrZeroDate, "date", "missing_date"},
	{core.ErrInvalidType, "type", "invalid_type"},
	{core.ErrInvalidPeriod, "period", "invalid_period"},
	{core.ErrInvalidDateRange, "end_date", "invalid_date_range"},
	{core.ErrMissingDates, "start_date", "missing_dates"},
	{core.ErrEmptyName, "name", "empty_name"},
	{core.ErrNameTooLong, "name", "name_too_long"},
	{core.ErrDescriptionTooLong, "description", "description_too_long"},
	{core.ErrCategoryCycle, "parent_id", "category_cycle"},
	{core.ErrEmptyUser, "", "missing_user"},
}

func detailForError(err error) fieldError {
	var mismatch *core.TypeMismatchError
	if errors.As(err, &mismatch) {
		return fieldError{Field: "category_id", Code: "category_type_mismatch", Message: mismatch.Error()}
	}
	for _, d := range errorDetails {
		if errors.Is(err, d.err) {
			return fieldError{Field: d.field, Code: d.code, Message: err.Error()}
		}
	}
	return fieldError{Code: "invalid_request", Message: err.Error()}
}

func statusForError(err error) int {
	var mismatch *core.TypeMismatchError
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateBudgetScope):
		return http.StatusConflict
	case errors.As(err, &mismatch),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrFutureDate),
		errors.Is(err, core.ErrInvalidDateRange),
		errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrInvalidPeriod),
		errors.Is(err, core.ErrCategoryCycle),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrEmptyUser),
		errors.Is(err, core.ErrNameTooLong),
		errors.Is(err, core.ErrDescriptionTooLong),
		errors.Is(err, core.ErrZeroDate),
		errors.Is(err, core.ErrMissingDates):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
