package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"rental-manager/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorDetails(w, r, message, code, status, nil)
}

func writeErrorDetails(w http.ResponseWriter, r *http.Request, message, code string, status int, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
		Details:   details,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONStatus writes a JSON response with an explicit status code.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps typed core errors onto HTTP statuses:
//
//	availability conflict  → 422, with the conflict tuple in details
//	invalid transition     → 409
//	constraint violation   → 400
//	not found              → 404
//
// Anything untyped is a 500 and the message is not exposed.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *core.ValidationError
	if errors.As(err, &validation) {
		writeErrorDetails(w, r, validation.Error(), "AVAILABILITY_CONFLICT",
			http.StatusUnprocessableEntity, validation.Conflict)
		return
	}
	var transition *core.InvalidTransitionError
	if errors.As(err, &transition) {
		writeError(w, r, transition.Error(), "INVALID_TRANSITION", http.StatusConflict)
		return
	}
	var constraint *core.ConstraintViolation
	if errors.As(err, &constraint) {
		writeError(w, r, constraint.Error(), "CONSTRAINT_VIOLATION", http.StatusBadRequest)
		return
	}
	var notFound *core.NotFoundError
	if errors.As(err, &notFound) {
		writeError(w, r, notFound.Error(), "NOT_FOUND", http.StatusNotFound)
		return
	}
	writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
}
