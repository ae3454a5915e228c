package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"chargeslot/backend/services/reservations-service/internal/booking"
	"chargeslot/backend/services/reservations-service/internal/models"
)

// OperatorService implements the on-site operator use cases. Every action is
// scoped to the stations the operator is assigned to.
type OperatorService struct {
	core
}

// NewOperatorService builds service.
func NewOperatorService(deps Deps, logger *zap.Logger) *OperatorService {
	return &OperatorService{core: newCore(deps, logger)}
}

// Verify checks a scanned claim against the stored reservation.
func (s *OperatorService) Verify(ctx context.Context, claim models.VerificationClaim, operatorID string) (*models.VerificationResult, error) {
	res, err := s.loadReservation(ctx, claim.ReservationID)
	if err != nil {
		return nil, err
	}
	if err := matchClaim(res, claim); err != nil {
		return nil, err
	}
	if res.Status != models.StatusActive {
		return nil, fmt.Errorf("%w: only active reservations may be verified for charging, reservation is %s", booking.ErrInvalidTransition, res.Status)
	}
	station, err := s.loadActiveStation(ctx, res.StationID)
	if err != nil {
		return nil, err
	}
	if err := booking.AuthorizeOperator(operatorID, station); err != nil {
		return nil, err
	}

	s.logger.Info("reservation verified",
		zap.String("reservation_id", res.ID),
		zap.String("station_id", res.StationID),
		zap.String("operator_id", strings.TrimSpace(operatorID)),
	)
	return &models.VerificationResult{
		ReservationID: res.ID,
		OwnerID:       res.OwnerID,
		StationID:     res.StationID,
		StationName:   station.Name,
		ScheduledAt:   res.ScheduledAt,
		Status:        res.Status,
	}, nil
}

// VerifyToken decodes a signed claim and verifies it. A token that fails to
// decode is reported as a data mismatch.
func (s *OperatorService) VerifyToken(ctx context.Context, token, operatorID string) (*models.VerificationResult, error) {
	if s.claims == nil {
		return nil, fmt.Errorf("%w: signed claims are not enabled", booking.ErrDataMismatch)
	}
	claim, err := s.claims.Parse(strings.TrimSpace(token))
	if err != nil {
		return nil, errors.Join(booking.ErrDataMismatch, err)
	}
	return s.Verify(ctx, claim, operatorID)
}

// Activate moves a pending reservation to active once the owner and station
// presented on site match the stored reservation.
func (s *OperatorService) Activate(ctx context.Context, claim models.VerificationClaim, operatorID string) (*models.Reservation, error) {
	res, err := s.loadReservation(ctx, claim.ReservationID)
	if err != nil {
		return nil, err
	}
	if err := matchClaim(res, claim); err != nil {
		return nil, err
	}
	return s.advance(ctx, res, operatorID, models.StatusPending, models.StatusActive, EventActivated)
}

// Complete moves an active reservation to completed.
func (s *OperatorService) Complete(ctx context.Context, id, operatorID string) (*models.Reservation, error) {
	return s.act(ctx, id, operatorID, models.StatusActive, models.StatusCompleted, EventCompleted)
}

// Cancel cancels an open reservation on behalf of the station operator. The change
// cutoff applies as it does for owners.
func (s *OperatorService) Cancel(ctx context.Context, id, operatorID string) (*models.Reservation, error) {
	res, err := s.loadReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.machine.Check(res.Status, models.StatusCancelled, booking.ActorOperator); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, res.StationID, operatorID); err != nil {
		return nil, err
	}
	return s.transition(ctx, res, models.StatusCancelled, booking.ActorOperator, strings.TrimSpace(operatorID), EventCancelled)
}

// ListForStation returns the open reservations of a station the operator is assigned to.
func (s *OperatorService) ListForStation(ctx context.Context, stationID, operatorID string) ([]models.ReservationView, error) {
	station, err := s.loadStation(ctx, stationID)
	if err != nil {
		return nil, err
	}
	if err := booking.AuthorizeOperator(operatorID, station); err != nil {
		return nil, err
	}
	open, err := s.repo.ListOpenByStation(ctx, station.ID)
	if err != nil {
		return nil, fmt.Errorf("list station reservations: %w", err)
	}
	views := make([]models.ReservationView, 0, len(open))
	for _, r := range open {
		views = append(views, models.ReservationView{Reservation: r, StationName: station.Name})
	}
	return views, nil
}

func (s *OperatorService) act(ctx context.Context, id, operatorID string, from, to models.Status, event string) (*models.Reservation, error) {
	res, err := s.loadReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.advance(ctx, res, operatorID, from, to, event)
}

func (s *OperatorService) advance(ctx context.Context, res *models.Reservation, operatorID string, from, to models.Status, event string) (*models.Reservation, error) {
	if res.Status != from {
		return nil, fmt.Errorf("%w: reservation %s is %s, expected %s", booking.ErrInvalidTransition, res.ID, res.Status, from)
	}
	if err := s.authorize(ctx, res.StationID, operatorID); err != nil {
		return nil, err
	}
	return s.transition(ctx, res, to, booking.ActorOperator, strings.TrimSpace(operatorID), event)
}

func (s *OperatorService) authorize(ctx context.Context, stationID, operatorID string) error {
	station, err := s.loadStation(ctx, stationID)
	if err != nil {
		return err
	}
	return booking.AuthorizeOperator(operatorID, station)
}

// matchClaim reports a data mismatch when the presented owner or station differs
// from the stored reservation.
func matchClaim(res *models.Reservation, claim models.VerificationClaim) error {
	if strings.TrimSpace(claim.OwnerID) != res.OwnerID {
		return fmt.Errorf("%w: owner does not match reservation %s", booking.ErrDataMismatch, res.ID)
	}
	if strings.TrimSpace(claim.StationID) != res.StationID {
		return fmt.Errorf("%w: station does not match reservation %s", booking.ErrDataMismatch, res.ID)
	}
	return nil
}
