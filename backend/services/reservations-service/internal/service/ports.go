package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chargeslot/backend/services/reservations-service/internal/booking"
	"chargeslot/backend/services/reservations-service/internal/models"
)

// ReservationRepository is the storage contract used by the orchestrators.
// Implementations report missing rows with repository.ErrReservationNotFound,
// slot uniqueness violations with repository.ErrSlotTaken and lost status races
// with repository.ErrStatusChanged.
type ReservationRepository interface {
	GetByID(ctx context.Context, id string) (*models.Reservation, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Reservation, error)
	ListOpenByStation(ctx context.Context, stationID string) ([]models.Reservation, error)
	FindOpenBySlot(ctx context.Context, stationID string, scheduledAt time.Time) ([]models.Reservation, error)
	Create(ctx context.Context, res *models.Reservation) error
	Update(ctx context.Context, res *models.Reservation, expected models.Status) error
	SetStatus(ctx context.Context, id string, expected, to models.Status) (*models.Reservation, error)
}

// StationLookup resolves stations; missing ones yield repository.ErrStationNotFound.
type StationLookup interface {
	GetByID(ctx context.Context, id string) (*models.Station, error)
}

// OwnerLookup resolves owners by natural key; missing ones yield repository.ErrOwnerNotFound.
type OwnerLookup interface {
	GetByKey(ctx context.Context, key string) (*models.Owner, error)
}

// EventPublisher delivers lifecycle events to downstream consumers.
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// ClaimCodec turns verification claims into signed compact tokens and back.
type ClaimCodec interface {
	Sign(c models.VerificationClaim) (string, error)
	Parse(token string) (models.VerificationClaim, error)
}

// Deps groups the collaborators shared by both orchestrators.
type Deps struct {
	Reservations ReservationRepository
	Stations     StationLookup
	Owners       OwnerLookup
	// Locker serializes check-and-write per slot; nil means an in-process keyed mutex.
	Locker booking.SlotLocker
	Policy booking.Policy
	// Machine defaults to booking.NewStateMachine().
	Machine *booking.StateMachine
	// Events and Claims are optional.
	Events EventPublisher
	Claims ClaimCodec
	// Clock defaults to time.Now.
	Clock func() time.Time
	// NewID defaults to random UUIDs.
	NewID func() string
}

// core is the state shared by the owner and operator orchestrators.
type core struct {
	repo      ReservationRepository
	stations  StationLookup
	owners    OwnerLookup
	allocator *booking.SlotAllocator
	policy    booking.Policy
	machine   *booking.StateMachine
	events    *emitter
	claims    ClaimCodec
	clock     func() time.Time
	newID     func() string
	logger    *zap.Logger
}

func newCore(deps Deps, logger *zap.Logger) core {
	if logger == nil {
		logger = zap.NewNop()
	}
	machine := deps.Machine
	if machine == nil {
		machine = booking.NewStateMachine()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return core{
		repo:      deps.Reservations,
		stations:  deps.Stations,
		owners:    deps.Owners,
		allocator: booking.NewSlotAllocator(deps.Reservations, deps.Locker),
		policy:    deps.Policy,
		machine:   machine,
		events:    newEmitter(deps.Events, logger),
		claims:    deps.Claims,
		clock:     clock,
		newID:     newID,
		logger:    logger,
	}
}

func (c *core) now() time.Time {
	return booking.Normalize(c.clock())
}
