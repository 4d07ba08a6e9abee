// Package httpserver contains HTTP handlers and middleware.
//
// It exposes the interview session facade and monitoring ingest as a JSON
// REST API, keeping HTTP concerns separate from the session logic.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fairyhunter13/ai-interview-engine/internal/domain"
)

type errorEnvelope struct {
	Success bool     `json:"success"`
	Error   apiError `json:"error"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, _ *http.Request, err error, details interface{}) {
	code := http.StatusInternalServerError
	codeStr := "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		code = http.StatusBadRequest
		codeStr = "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrSessionNotFound):
		code = http.StatusNotFound
		codeStr = "SESSION_NOT_FOUND"
	case errors.Is(err, domain.ErrInvalidConfiguration):
		code = http.StatusUnprocessableEntity
		codeStr = "INVALID_CONFIGURATION"
	case errors.Is(err, domain.ErrInvalidState):
		code = http.StatusConflict
		codeStr = "INVALID_STATE"
	case errors.Is(err, domain.ErrConflict):
		code = http.StatusConflict
		codeStr = "CONCURRENT_MODIFICATION"
	case errors.Is(err, domain.ErrPersistence):
		code = http.StatusInternalServerError
		codeStr = "PERSISTENCE"
	}
	writeJSON(w, code, errorEnvelope{Success: false, Error: apiError{Code: codeStr, Message: err.Error(), Details: details}})
}
