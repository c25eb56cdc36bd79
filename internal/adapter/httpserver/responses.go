package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quave-io/frida-go/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error, details any) {
	status := http.StatusInternalServerError
	code := "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrValidation):
		status, code = http.StatusBadRequest, "VALIDATION"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrFilter):
		status, code = http.StatusBadRequest, "FILTER"
	case errors.Is(err, domain.ErrEvaluation):
		status, code = http.StatusUnprocessableEntity, "EVALUATION"
	case errors.Is(err, domain.ErrConfig):
		status, code = http.StatusServiceUnavailable, "CONFIG"
	case errors.Is(err, domain.ErrStorage):
		status, code = http.StatusInternalServerError, "STORAGE"
	}
	writeJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: err.Error(), Details: details}})
}
