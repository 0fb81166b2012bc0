package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"disputeai/auth"
	"disputeai/dispute"
	"disputeai/letter"
	"disputeai/wizard"
)

type successResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

type errorResponse struct {
	Status    string `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successResponse{Status: "success", Data: data})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Status:    "error",
		Code:      code,
		Message:   message,
		RequestID: requestIDFrom(r.Context()),
	})
}

// writeDomainError maps package sentinels onto HTTP status codes. Unknown
// errors are logged and reported without detail.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := mapDomainError(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log().Error("request failed", zapRequest(r, err)...)
		msg = "internal error"
	}
	writeError(w, r, status, code, msg)
}

func mapDomainError(err error) (int, string) {
	switch {
	case errors.Is(err, wizard.ErrSessionNotFound),
		errors.Is(err, dispute.ErrNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, wizard.ErrBusy):
		return http.StatusConflict, "session_busy"
	case errors.Is(err, wizard.ErrSessionCompleted),
		errors.Is(err, wizard.ErrNotAwaitingEvidence),
		errors.Is(err, dispute.ErrAlreadyInState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, auth.ErrDuplicateEmail):
		return http.StatusConflict, "email_taken"
	case errors.Is(err, wizard.ErrEmptyMessage),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrMissingFields),
		errors.Is(err, auth.ErrInvalidEmail):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, letter.ErrConversionFailed):
		return http.StatusBadGateway, "conversion_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
