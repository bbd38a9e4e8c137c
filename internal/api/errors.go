package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"agency/internal/client"
	"agency/internal/request"
	"agency/pkg/logger"
)

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteFieldErrors(w, status, code, message, nil)
}

func WriteFieldErrors(w http.ResponseWriter, status int, code, message string, fields map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(ErrorEnvelope{
		Error: APIError{Code: code, Message: message, Fields: fields},
	})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteDomainError maps store and profile errors onto the JSON error
// envelope. Anything unrecognised is logged and reported as INTERNAL.
func WriteDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	var ve *request.ValidationError
	var te *request.TransitionError
	switch {
	case errors.As(err, &ve):
		WriteFieldErrors(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid input", ve.Fields)
	case errors.As(err, &te):
		WriteError(w, http.StatusConflict, "INVALID_STATE_TRANSITION", te.Error())
	case errors.Is(err, request.ErrNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "service request not found")
	case errors.Is(err, client.ErrNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "client not found")
	case errors.Is(err, client.ErrNoIdentity):
		WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing identity")
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
	default:
		logger.Error(ctx, "request failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

// DecodeJSON reads a JSON body, writing a 400 and returning false when it
// can't be parsed.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid json")
		return false
	}
	return true
}
