package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"chargeslot/backend/services/reservations-service/internal/booking"
	"chargeslot/backend/services/reservations-service/internal/models"
)

// Routing keys of reservation lifecycle events.
const (
	EventCreated   = "reservation.created"
	EventUpdated   = "reservation.updated"
	EventCancelled = "reservation.cancelled"
	EventActivated = "reservation.activated"
	EventCompleted = "reservation.completed"
)

// Event is the payload published for every committed lifecycle change.
type Event struct {
	Type          string        `json:"type"`
	ReservationID string        `json:"reservation_id"`
	StationID     string        `json:"station_id"`
	OwnerID       string        `json:"owner_id"`
	ScheduledAt   time.Time     `json:"scheduled_at"`
	Status        models.Status `json:"status"`
	Actor         booking.Actor `json:"actor"`
	ActorID       string        `json:"actor_id"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

type emitter struct {
	publisher EventPublisher
	logger    *zap.Logger
}

func newEmitter(p EventPublisher, logger *zap.Logger) *emitter {
	return &emitter{publisher: p, logger: logger}
}

// emit publishes best effort; the reservation change is already committed.
func (e *emitter) emit(ctx context.Context, typ string, res *models.Reservation, actor booking.Actor, actorID string, at time.Time) {
	if e.publisher == nil {
		return
	}
	evt := Event{
		Type:          typ,
		ReservationID: res.ID,
		StationID:     res.StationID,
		OwnerID:       res.OwnerID,
		ScheduledAt:   res.ScheduledAt,
		Status:        res.Status,
		Actor:         actor,
		ActorID:       actorID,
		OccurredAt:    at,
	}
	if err := e.publisher.PublishJSON(ctx, typ, evt); err != nil {
		e.logger.Warn("failed to publish reservation event",
			zap.String("event", typ),
			zap.String("reservation_id", res.ID),
			zap.Error(err),
		)
	}
}
