package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"chargeslot/backend/services/reservations-service/internal/booking"
	"chargeslot/backend/services/reservations-service/internal/http/middleware"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errorKinds = []struct {
	err    error
	status int
	code   string
}{
	{booking.ErrNotFound, http.StatusNotFound, "not_found"},
	{booking.ErrPolicyViolation, http.StatusUnprocessableEntity, "policy_violation"},
	{booking.ErrSlotConflict, http.StatusConflict, "slot_conflict"},
	{booking.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{booking.ErrDataMismatch, http.StatusUnprocessableEntity, "data_mismatch"},
	{booking.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
}

// writeServiceError maps engine error kinds to HTTP statuses. Anything else is
// logged and reported as an internal error.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	for _, kind := range errorKinds {
		if errors.Is(err, kind.err) {
			writeJSON(w, kind.status, errorResponse{Error: err.Error(), Code: kind.code})
			return
		}
	}
	logger.Error("reservation request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok || caller.ID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return caller.ID, true
}
