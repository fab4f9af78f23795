package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	ragerrors "github.com/story-engine/ragcore/internal/platform/errors"
)

// envelope is the response shape every handler writes: data on success,
// error{code,message,details?} on failure, and agent_logs always present
// (empty when the request emitted no events).
type envelope struct {
	Data      any            `json:"data"`
	Error     *envelopeError `json:"error,omitempty"`
	AgentLogs []string       `json:"agent_logs"`
}

type envelopeError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func writeData(w http.ResponseWriter, status int, data any, logs []string) {
	if logs == nil {
		logs = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Data: data, AgentLogs: logs})
}

// writeError maps a domain error to the envelope's error shape and an
// HTTP status, following the teacher's WriteError type-switch idiom.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	e := &envelopeError{Code: "INTERNAL_ERROR", Message: err.Error()}

	switch {
	case ragerrors.IsNotFound(err):
		status = http.StatusNotFound
		e.Code = "NOT_FOUND"
	case ragerrors.IsAlreadyExists(err):
		status = http.StatusConflict
		e.Code = "ALREADY_EXISTS"
	case ragerrors.IsValidation(err):
		status = http.StatusBadRequest
		e.Code = "VALIDATION_ERROR"
	case ragerrors.IsPrecondition(err):
		status = http.StatusBadRequest
		e.Code = "PRECONDITION_FAILED"
	case ragerrors.IsBackendUnavailable(err):
		status = http.StatusBadGateway
		e.Code = "BACKEND_UNAVAILABLE"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Error: e, AgentLogs: []string{}})
}

func writeValidationError(w http.ResponseWriter, field, message string) {
	writeError(w, ragerrors.NewValidation(field, message))
}

func newProjectID() string { return uuid.NewString() }
