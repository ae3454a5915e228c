package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"chargeslot/backend/services/reservations-service/internal/booking"
	"chargeslot/backend/services/reservations-service/internal/models"
	"chargeslot/backend/services/reservations-service/internal/repository"
)

func (c *core) loadReservation(ctx context.Context, id string) (*models.Reservation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: reservation id is required", booking.ErrNotFound)
	}
	res, err := c.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return nil, fmt.Errorf("%w: reservation %s", booking.ErrNotFound, id)
		}
		return nil, fmt.Errorf("load reservation: %w", err)
	}
	return res, nil
}

func (c *core) loadStation(ctx context.Context, id string) (*models.Station, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: station id is required", booking.ErrNotFound)
	}
	station, err := c.stations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrStationNotFound) {
			return nil, fmt.Errorf("%w: station %s", booking.ErrNotFound, id)
		}
		return nil, fmt.Errorf("load station: %w", err)
	}
	return station, nil
}

func (c *core) loadActiveStation(ctx context.Context, id string) (*models.Station, error) {
	station, err := c.loadStation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !station.IsActive {
		return nil, fmt.Errorf("%w: station %s is not active", booking.ErrPolicyViolation, station.ID)
	}
	return station, nil
}

func (c *core) loadActiveOwner(ctx context.Context, key string) (*models.Owner, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: owner id is required", booking.ErrNotFound)
	}
	owner, err := c.owners.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrOwnerNotFound) {
			return nil, fmt.Errorf("%w: owner %s", booking.ErrNotFound, key)
		}
		return nil, fmt.Errorf("load owner: %w", err)
	}
	if !owner.IsActive {
		return nil, fmt.Errorf("%w: owner %s is not active", booking.ErrPolicyViolation, owner.Key)
	}
	return owner, nil
}

// save writes res if its stored status is still expected and translates storage
// sentinels into engine error kinds.
func (c *core) save(ctx context.Context, res *models.Reservation, expected models.Status) error {
	return c.storeError(c.repo.Update(ctx, res, expected), res)
}

func (c *core) storeError(err error, res *models.Reservation) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrSlotTaken):
		return fmt.Errorf("%w: station %s is already reserved at that time", booking.ErrSlotConflict, res.StationID)
	case errors.Is(err, repository.ErrStatusChanged):
		return fmt.Errorf("%w: reservation %s was changed by another request", booking.ErrInvalidTransition, res.ID)
	case errors.Is(err, repository.ErrReservationNotFound):
		return fmt.Errorf("%w: reservation %s", booking.ErrNotFound, res.ID)
	default:
		return fmt.Errorf("save reservation: %w", err)
	}
}

// transition moves res to status `to` on behalf of actor, enforcing the state
// machine and, where the rule demands it, the change cutoff on the current time.
// Only the status column is written; the returned reservation is the stored row,
// so a reschedule committed after res was read is kept.
func (c *core) transition(ctx context.Context, res *models.Reservation, to models.Status, actor booking.Actor, actorID, event string) (*models.Reservation, error) {
	rule, err := c.machine.Check(res.Status, to, actor)
	if err != nil {
		return nil, err
	}
	now := c.now()
	if rule.Cutoff {
		if err := c.policy.ValidateChangeCutoff(now, res.ScheduledAt); err != nil {
			return nil, err
		}
	}

	updated, err := c.repo.SetStatus(ctx, res.ID, res.Status, to)
	if err != nil {
		return nil, c.storeError(err, res)
	}

	c.logger.Info("reservation status changed",
		zap.String("reservation_id", updated.ID),
		zap.String("station_id", updated.StationID),
		zap.String("from", string(res.Status)),
		zap.String("to", string(to)),
		zap.String("actor", string(actor)),
		zap.String("actor_id", actorID),
	)
	c.events.emit(ctx, event, updated, actor, actorID, now)
	return updated, nil
}

// stationNames memoizes station display names for the duration of one call.
type stationNames struct {
	core  *core
	names map[string]string
}

func (c *core) newStationNames() *stationNames {
	return &stationNames{core: c, names: make(map[string]string)}
}

// resolve returns the station name, or "" when the station cannot be loaded.
func (s *stationNames) resolve(ctx context.Context, stationID string) string {
	if name, ok := s.names[stationID]; ok {
		return name
	}
	name := ""
	station, err := s.core.stations.GetByID(ctx, stationID)
	if err != nil {
		s.core.logger.Debug("station name unavailable", zap.String("station_id", stationID), zap.Error(err))
	} else {
		name = station.Name
	}
	s.names[stationID] = name
	return name
}

func (s *stationNames) view(ctx context.Context, res models.Reservation) models.ReservationView {
	return models.ReservationView{Reservation: res, StationName: s.resolve(ctx, res.StationID)}
}
