package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/service"
)

const (
	defaultLimit = 50
	maxLimit     = 500
	maxBodyBytes = 1 << 20
)

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error  string `json:"error"`
	Status string `json:"status"`
	Report any    `json:"report,omitempty"`
}

// writeJSON serializes v and sets the status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorStatus maps a service error to an HTTP status and a stable status tag.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, "invalid"
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrAlreadyDeclared), errors.Is(err, service.ErrAlreadyResolved):
		return http.StatusConflict, "already_settled"
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, service.ErrNotOpen):
		return http.StatusConflict, "not_open"
	case errors.Is(err, service.ErrNotClosed):
		return http.StatusConflict, "not_closed"
	case errors.Is(err, service.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, "insufficient_balance"
	case errors.Is(err, service.ErrBusy):
		return http.StatusServiceUnavailable, "busy"
	case errors.Is(err, service.ErrLedgerInconsistency):
		return http.StatusInternalServerError, "ledger_inconsistency"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeError renders err. Internal failures are logged and their message is
// not returned to the caller.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, status := errorStatus(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
		if status == "internal" {
			msg = "internal error"
		}
	}
	writeJSON(w, code, errorBody{Error: msg, Status: status})
}

// decode reads a JSON body into v, rejecting unknown fields.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", service.ErrValidation, err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", service.ErrValidation, name)
	}
	return id, nil
}

func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: limit must be a positive integer", service.ErrValidation)
	}
	return min(n, maxLimit), nil
}
