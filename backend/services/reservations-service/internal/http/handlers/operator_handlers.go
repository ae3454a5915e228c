package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"chargeslot/backend/services/reservations-service/internal/models"
)

// OperatorReservations is the operator use-case surface the handlers depend on.
type OperatorReservations interface {
	Verify(ctx context.Context, claim models.VerificationClaim, operatorID string) (*models.VerificationResult, error)
	VerifyToken(ctx context.Context, token, operatorID string) (*models.VerificationResult, error)
	Activate(ctx context.Context, claim models.VerificationClaim, operatorID string) (*models.Reservation, error)
	Complete(ctx context.Context, id, operatorID string) (*models.Reservation, error)
	Cancel(ctx context.Context, id, operatorID string) (*models.Reservation, error)
	ListForStation(ctx context.Context, stationID, operatorID string) ([]models.ReservationView, error)
}

// verifyRequest carries either a signed token or the raw scanned fields.
type verifyRequest struct {
	Token         string `json:"token"`
	ReservationID string `json:"reservation_id" validate:"required_without=Token"`
	OwnerID       string `json:"owner_id" validate:"required_without=Token"`
	StationID     string `json:"station_id" validate:"required_without=Token"`
}

// activateRequest carries the owner and station presented on site.
type activateRequest struct {
	OwnerID   string `json:"owner_id" validate:"required,max=64"`
	StationID string `json:"station_id" validate:"required,max=64"`
}

// OperatorHandlers serves /api/operator for station operators.
type OperatorHandlers struct {
	svc       OperatorReservations
	validator *RequestValidator
	logger    *zap.Logger
}

// NewOperatorHandlers returns handler.
func NewOperatorHandlers(svc OperatorReservations, validator *RequestValidator, logger *zap.Logger) *OperatorHandlers {
	return &OperatorHandlers{svc: svc, validator: validator, logger: logger}
}

// Verify handles POST /api/operator/reservations/verify.
func (h *OperatorHandlers) Verify(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req verifyRequest
	if !h.validator.decodeAndValidate(w, r, &req) {
		return
	}

	var (
		result *models.VerificationResult
		err    error
	)
	if token := strings.TrimSpace(req.Token); token != "" {
		result, err = h.svc.VerifyToken(r.Context(), token, operatorID)
	} else {
		result, err = h.svc.Verify(r.Context(), models.VerificationClaim{
			ReservationID: req.ReservationID,
			OwnerID:       req.OwnerID,
			StationID:     req.StationID,
		}, operatorID)
	}
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Activate handles POST /api/operator/reservations/{id}/activate.
func (h *OperatorHandlers) Activate(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req activateRequest
	if !h.validator.decodeAndValidate(w, r, &req) {
		return
	}
	res, err := h.svc.Activate(r.Context(), models.VerificationClaim{
		ReservationID: r.PathValue("id"),
		OwnerID:       req.OwnerID,
		StationID:     req.StationID,
	}, operatorID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Complete handles POST /api/operator/reservations/{id}/complete.
func (h *OperatorHandlers) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Complete)
}

// Cancel handles POST /api/operator/reservations/{id}/cancel.
func (h *OperatorHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Cancel)
}

func (h *OperatorHandlers) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, string, string) (*models.Reservation, error)) {
	operatorID, ok := callerID(w, r)
	if !ok {
		return
	}
	res, err := apply(r.Context(), r.PathValue("id"), operatorID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// StationReservations handles GET /api/operator/stations/{stationID}/reservations.
func (h *OperatorHandlers) StationReservations(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := callerID(w, r)
	if !ok {
		return
	}
	views, err := h.svc.ListForStation(r.Context(), r.PathValue("stationID"), operatorID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if views == nil {
		views = []models.ReservationView{}
	}
	writeJSON(w, http.StatusOK, views)
}
