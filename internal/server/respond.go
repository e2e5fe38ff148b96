package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/nedlands/propnet/internal/actions"
	"github.com/nedlands/propnet/internal/store"
)

// apiError is the uniform error body: a stable code plus a human
// message.
type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, log zerolog.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, log zerolog.Logger, status int, code, message string) {
	var body apiError
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, log, status, body)
}

// writeStoreError maps repository errors to HTTP statuses.
func writeStoreError(w http.ResponseWriter, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, log, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, store.ErrSnapshotExists), errors.Is(err, store.ErrDuplicateAction):
		writeError(w, log, http.StatusConflict, "CONFLICT", err.Error())
	default:
		log.Error().Err(err).Msg("Internal error")
		writeError(w, log, http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}

// statusForActionError maps processor error codes to HTTP statuses.
// Validation failures are 400, missing resources 404, precondition
// failures 409.
func statusForActionError(code string) int {
	switch code {
	case actions.ErrCodeInvalidActionType, actions.ErrCodeInvalidParams, actions.ErrCodeInvalidVote:
		return http.StatusBadRequest
	case actions.ErrCodeNotFound:
		return http.StatusNotFound
	case actions.ErrCodeInsufficientFunds, actions.ErrCodeInsufficientTokens,
		actions.ErrCodePriceTooHigh, actions.ErrCodePriceTooLow,
		actions.ErrCodeNotTenant, actions.ErrCodeNotTenanted,
		actions.ErrCodeNotServiceProvider, actions.ErrCodeNoVotingPower:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// meta is the standard response envelope metadata.
func meta() map[string]interface{} {
	return map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
}
