// Package responders provides the standardized JSON response helpers for
// the API layer. Every error body uses the same envelope:
//
//	{"error": {"code": "...", "message": "..."}, "request_id": "..."}
package responders

import (
	"encoding/json"
	"net/http"

	"github.com/example/lingoflow/internal/errcode"
)

// ErrorDetail is the machine-readable error payload.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the envelope for JSON errors.
type ErrorResponse struct {
	Error     ErrorDetail `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
}

// JSON writes payload with the given status. A nil payload writes only
// headers.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	// Headers are already sent; an encode failure can only be dropped.
	_ = json.NewEncoder(w).Encode(payload)
}

// Error writes the error envelope for an error code, using its canonical
// message and status mapping.
func Error(w http.ResponseWriter, code, requestID string) {
	ErrorWithMessage(w, code, errcode.Message(code), requestID)
}

// ErrorWithMessage writes the error envelope with a custom message.
func ErrorWithMessage(w http.ResponseWriter, code, message, requestID string) {
	JSON(w, errcode.HTTPStatus(code), ErrorResponse{
		Error:     ErrorDetail{Code: code, Message: message},
		RequestID: requestID,
	})
}

// ErrorFrom renders any error: carriers keep their code and message,
// anything else becomes INTERNAL_ERROR with the generic message.
func ErrorFrom(w http.ResponseWriter, err error, requestID string) {
	te := errcode.From(err)
	ErrorWithMessage(w, te.Code, te.Message, requestID)
}
