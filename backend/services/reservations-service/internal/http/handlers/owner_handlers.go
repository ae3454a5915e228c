package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"chargeslot/backend/services/reservations-service/internal/models"
)

// OwnerReservations is the owner use-case surface the handlers depend on.
type OwnerReservations interface {
	Create(ctx context.Context, ownerID, stationID string, scheduledAt time.Time) (*models.Reservation, error)
	GetForOwner(ctx context.Context, id, ownerID string) (*models.ReservationView, bool, error)
	ListUpcoming(ctx context.Context, ownerID string) ([]models.ReservationView, error)
	ListHistory(ctx context.Context, ownerID string) ([]models.ReservationView, error)
	Update(ctx context.Context, id, ownerID, newStationID string, newScheduledAt time.Time) (*models.Reservation, error)
	Cancel(ctx context.Context, id, ownerID string) (*models.Reservation, error)
	IssueClaim(ctx context.Context, id, ownerID string) (*models.VerificationClaim, string, error)
}

type scheduleRequest struct {
	StationID   string     `json:"station_id" validate:"required,max=64"`
	ScheduledAt *time.Time `json:"scheduled_at" validate:"required"`
}

type claimResponse struct {
	Claim *models.VerificationClaim `json:"claim"`
	Token string                    `json:"token,omitempty"`
}

// OwnerHandlers serves /api/reservations for vehicle owners.
type OwnerHandlers struct {
	svc       OwnerReservations
	validator *RequestValidator
	logger    *zap.Logger
}

// NewOwnerHandlers returns handler.
func NewOwnerHandlers(svc OwnerReservations, validator *RequestValidator, logger *zap.Logger) *OwnerHandlers {
	return &OwnerHandlers{svc: svc, validator: validator, logger: logger}
}

// Create handles POST /api/reservations.
func (h *OwnerHandlers) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req scheduleRequest
	if !h.validator.decodeAndValidate(w, r, &req) {
		return
	}
	res, err := h.svc.Create(r.Context(), ownerID, req.StationID, *req.ScheduledAt)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Get handles GET /api/reservations/{id}.
func (h *OwnerHandlers) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(w, r)
	if !ok {
		return
	}
	view, found, err := h.svc.GetForOwner(r.Context(), r.PathValue("id"), ownerID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "reservation not found")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Upcoming handles GET /api/reservations/upcoming.
func (h *OwnerHandlers) Upcoming(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.svc.ListUpcoming)
}

// History handles GET /api/reservations/history.
func (h *OwnerHandlers) History(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.svc.ListHistory)
}

func (h *OwnerHandlers) list(w http.ResponseWriter, r *http.Request, fetch func(context.Context, string) ([]models.ReservationView, error)) {
	ownerID, ok := callerID(w, r)
	if !ok {
		return
	}
	views, err := fetch(r.Context(), ownerID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if views == nil {
		views = []models.ReservationView{}
	}
	writeJSON(w, http.StatusOK, views)
}

// Update handles PUT /api/reservations/{id}.
func (h *OwnerHandlers) Update(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req scheduleRequest
	if !h.validator.decodeAndValidate(w, r, &req) {
		return
	}
	res, err := h.svc.Update(r.Context(), r.PathValue("id"), ownerID, req.StationID, *req.ScheduledAt)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Cancel handles POST /api/reservations/{id}/cancel.
func (h *OwnerHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Cancel(r.Context(), r.PathValue("id"), ownerID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Claim handles GET /api/reservations/{id}/claim.
func (h *OwnerHandlers) Claim(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(w, r)
	if !ok {
		return
	}
	c, token, err := h.svc.IssueClaim(r.Context(), r.PathValue("id"), ownerID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, claimResponse{Claim: c, Token: token})
}
