// Package domainerrors carries coded errors across service boundaries so the
// HTTP layer can translate them into consistent JSON envelopes without leaking
// internals to the caller.
package domainerrors

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Code classifies an error for transport translation.
type Code string

const (
	CodeInvalidInput Code = "invalid_input"
	CodeUnauthorized Code = "unauthorized"
	CodeNotFound     Code = "not_found"
	CodeInternal     Code = "internal"
)

// Error is the only error type handlers inspect. Message is safe to show to
// any caller, including a hostile one.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// New builds a coded error with a caller-safe message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// ToHTTPStatus maps a code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON renders err as the standard error envelope. Unknown error types
// collapse to a generic internal envelope so stack details never escape.
func WriteJSON(w http.ResponseWriter, err error) {
	code := CodeInternal
	message := "internal error"
	var de *Error
	if errors.As(err, &de) {
		code = de.Code
		message = de.Message
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             string(code),
		"error_description": message,
	})
}
