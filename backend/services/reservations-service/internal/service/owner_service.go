package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"chargeslot/backend/services/reservations-service/internal/booking"
	"chargeslot/backend/services/reservations-service/internal/models"
	"chargeslot/backend/services/reservations-service/internal/repository"
)

// OwnerService implements the owner-facing reservation use cases. Every method is
// scoped to the calling owner's id.
type OwnerService struct {
	core
}

// NewOwnerService builds service.
func NewOwnerService(deps Deps, logger *zap.Logger) *OwnerService {
	return &OwnerService{core: newCore(deps, logger)}
}

// Create reserves stationID at scheduledAt for ownerID. The slot check and the
// insert run under the slot lock, and the store's unique index backs it up.
func (s *OwnerService) Create(ctx context.Context, ownerID, stationID string, scheduledAt time.Time) (*models.Reservation, error) {
	owner, err := s.loadActiveOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	station, err := s.loadActiveStation(ctx, stationID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	at := booking.Normalize(scheduledAt)
	if err := s.policy.ValidateCreationWindow(now, at); err != nil {
		return nil, err
	}
	if _, err := s.machine.Check(booking.StatusNone, models.StatusPending, booking.ActorOwner); err != nil {
		return nil, err
	}

	res := &models.Reservation{
		ID:          s.newID(),
		StationID:   station.ID,
		OwnerID:     owner.Key,
		ScheduledAt: at,
		CreatedAt:   now,
		UpdatedAt:   now,
		Status:      models.StatusPending,
	}

	err = s.allocator.Claim(ctx, station.ID, at, "", func(ctx context.Context) error {
		if err := s.repo.Create(ctx, res); err != nil {
			if errors.Is(err, repository.ErrSlotTaken) {
				return fmt.Errorf("%w: station %s is already reserved at that time", booking.ErrSlotConflict, station.ID)
			}
			return fmt.Errorf("create reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Debug("reservation rejected",
			zap.String("owner_id", owner.Key),
			zap.String("station_id", station.ID),
			zap.Time("scheduled_at", at),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("reservation created",
		zap.String("reservation_id", res.ID),
		zap.String("station_id", res.StationID),
		zap.String("owner_id", res.OwnerID),
		zap.Time("scheduled_at", res.ScheduledAt),
	)
	s.events.emit(ctx, EventCreated, res, booking.ActorOwner, owner.Key, now)
	return res, nil
}

// GetForOwner returns the reservation with its station name when it exists and
// belongs to ownerID. Otherwise found is false and err is nil.
func (s *OwnerService) GetForOwner(ctx context.Context, id, ownerID string) (view *models.ReservationView, found bool, err error) {
	res, err := s.loadReservation(ctx, id)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if res.OwnerID != strings.TrimSpace(ownerID) {
		return nil, false, nil
	}
	v := s.newStationNames().view(ctx, *res)
	return &v, true, nil
}

// ListUpcoming returns the owner's reservations scheduled after now, earliest first.
func (s *OwnerService) ListUpcoming(ctx context.Context, ownerID string) ([]models.ReservationView, error) {
	now := s.now()
	return s.list(ctx, ownerID, func(r models.Reservation) bool { return r.ScheduledAt.After(now) }, false)
}

// ListHistory returns the owner's reservations scheduled at or before now, latest first.
func (s *OwnerService) ListHistory(ctx context.Context, ownerID string) ([]models.ReservationView, error) {
	now := s.now()
	return s.list(ctx, ownerID, func(r models.Reservation) bool { return !r.ScheduledAt.After(now) }, true)
}

func (s *OwnerService) list(ctx context.Context, ownerID string, keep func(models.Reservation) bool, desc bool) ([]models.ReservationView, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return []models.ReservationView{}, nil
	}
	all, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	selected := make([]models.Reservation, 0, len(all))
	for _, r := range all {
		if r.OwnerID == ownerID && keep(r) {
			selected = append(selected, r)
		}
	}
	sort.SliceStable(selected, func(i, j int) bool {
		if desc {
			return selected[i].ScheduledAt.After(selected[j].ScheduledAt)
		}
		return selected[i].ScheduledAt.Before(selected[j].ScheduledAt)
	})

	names := s.newStationNames()
	views := make([]models.ReservationView, 0, len(selected))
	for _, r := range selected {
		views = append(views, names.view(ctx, r))
	}
	return views, nil
}

// Update moves a pending reservation to another station and/or time.
func (s *OwnerService) Update(ctx context.Context, id, ownerID, newStationID string, newScheduledAt time.Time) (*models.Reservation, error) {
	res, err := s.loadOwned(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if res.Status != models.StatusPending {
		return nil, fmt.Errorf("%w: only pending reservations can be changed, reservation is %s", booking.ErrInvalidTransition, res.Status)
	}

	now := s.now()
	if err := s.policy.ValidateChangeCutoff(now, res.ScheduledAt); err != nil {
		return nil, err
	}
	station, err := s.loadActiveStation(ctx, newStationID)
	if err != nil {
		return nil, err
	}
	at := booking.Normalize(newScheduledAt)
	if err := s.policy.ValidateCreationWindow(now, at); err != nil {
		return nil, err
	}

	updated := *res
	updated.StationID = station.ID
	updated.ScheduledAt = at
	err = s.allocator.Claim(ctx, station.ID, at, res.ID, func(ctx context.Context) error {
		return s.save(ctx, &updated, models.StatusPending)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("reservation rescheduled",
		zap.String("reservation_id", updated.ID),
		zap.String("station_id", updated.StationID),
		zap.Time("scheduled_at", updated.ScheduledAt),
		zap.String("previous_station_id", res.StationID),
		zap.Time("previous_scheduled_at", res.ScheduledAt),
	)
	s.events.emit(ctx, EventUpdated, &updated, booking.ActorOwner, res.OwnerID, now)
	return &updated, nil
}

// Cancel cancels the owner's reservation, subject to the change cutoff.
func (s *OwnerService) Cancel(ctx context.Context, id, ownerID string) (*models.Reservation, error) {
	res, err := s.loadOwned(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, res, models.StatusCancelled, booking.ActorOwner, res.OwnerID, EventCancelled)
}

// IssueClaim returns the verification claim for an owned active reservation and,
// when a codec is configured, its signed compact token.
func (s *OwnerService) IssueClaim(ctx context.Context, id, ownerID string) (*models.VerificationClaim, string, error) {
	view, found, err := s.GetForOwner(ctx, id, ownerID)
	if err != nil {
		return nil, "", err
	}
	if !found {
		return nil, "", fmt.Errorf("%w: reservation %s", booking.ErrNotFound, strings.TrimSpace(id))
	}
	if view.Status != models.StatusActive {
		return nil, "", fmt.Errorf("%w: a claim is only available for active reservations, reservation is %s", booking.ErrInvalidTransition, view.Status)
	}

	c := &models.VerificationClaim{
		ReservationID: view.ID,
		OwnerID:       view.OwnerID,
		StationID:     view.StationID,
		ScheduledAt:   view.ScheduledAt,
		Status:        view.Status,
	}
	if s.claims == nil {
		return c, "", nil
	}
	token, err := s.claims.Sign(*c)
	if err != nil {
		return nil, "", fmt.Errorf("sign claim: %w", err)
	}
	return c, token, nil
}

// loadOwned loads a reservation for mutation by ownerID. Another owner's
// reservation is reported as an invalid transition.
func (s *OwnerService) loadOwned(ctx context.Context, id, ownerID string) (*models.Reservation, error) {
	res, err := s.loadReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.OwnerID != strings.TrimSpace(ownerID) {
		return nil, fmt.Errorf("%w: reservation %s does not belong to the caller", booking.ErrInvalidTransition, res.ID)
	}
	return res, nil
}
