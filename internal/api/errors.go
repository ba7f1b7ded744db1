// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/cylinderd/internal/domain/cylinder/lifecycle"
	"github.com/ManuGH/cylinderd/internal/domain/cylinder/manager"
	"github.com/ManuGH/cylinderd/internal/domain/cylinder/store"
	"github.com/ManuGH/cylinderd/internal/log"
)

type errorBody struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

var errBadBody = errors.New("malformed request body")

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusForOutcome maps a validation result: success is 200, missing input
// is 422, every other rejection is a state conflict.
func statusForOutcome(res lifecycle.Result) int {
	switch {
	case res.Success():
		return http.StatusOK
	case res.Code() == lifecycle.CodeMissingParameter:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusConflict
	}
}

// classify maps an engine or store fault to a status and stable error slug.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, manager.ErrLockTimeout):
		return http.StatusServiceUnavailable, "busy"
	case errors.Is(err, manager.ErrAlreadyRegistered), errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, manager.ErrInvalidRequest),
		errors.Is(err, lifecycle.ErrUnknownAction),
		errors.Is(err, errBadBody):
		return http.StatusBadRequest, "invalid_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, slug := classify(err)
	body := errorBody{Error: slug, RequestID: log.RequestIDFromContext(r.Context())}
	if code < http.StatusInternalServerError {
		body.Detail = err.Error()
	} else {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Str(log.FieldPath, r.URL.Path).Int("status", code).Msg("request failed")
	}
	if code == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, code, body)
}
