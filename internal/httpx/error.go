package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atelierops/api/internal/middleware"
)

type ErrorEnvelope struct {
	Error     ErrorBody `json:"error"`
	RequestID string    `json:"requestId"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Error is a handler failure that already knows its response shape.
type Error struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

func NewError(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	WriteJSON(w, status, ErrorEnvelope{
		Error:     ErrorBody{Code: code, Message: message, Details: details},
		RequestID: middleware.RequestIDFromContext(r.Context()),
	})
}

// Write renders err, reporting anything that is not an *Error as a 500.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	var e *Error
	if errors.As(err, &e) {
		WriteError(w, r, e.Status, e.Code, e.Message, e.Details)
		return
	}
	WriteError(w, r, http.StatusInternalServerError, "INTERNAL", "Internal server error", nil)
}
