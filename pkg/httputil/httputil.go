// Package httputil centralizes JSON response writing and domain error
// translation so every handler returns the same error envelope.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "ofactrack/pkg/domain-errors"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteError translates a domain error into its HTTP status and envelope.
// Unknown errors become opaque 500s; internal detail never leaks to clients.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := statusOf(code)

	resp := ErrorResponse{Error: string(code)}
	var de *dErrors.Error
	if status < http.StatusInternalServerError && errors.As(err, &de) {
		resp.Message = de.Message
	}
	WriteJSON(w, status, resp)
}

func statusOf(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadInput:
		return http.StatusBadRequest
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeTemporalOrder:
		return http.StatusConflict
	case dErrors.CodeRetrieval:
		return http.StatusBadGateway
	case dErrors.CodeSchema, dErrors.CodeConsistency:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
