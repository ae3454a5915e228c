package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chargeslot/backend/services/reservations-service/internal/models"
)

// SlotReader returns the open (pending or active) reservations holding a slot.
// Implementations filter in the store; the allocator never scans all reservations.
type SlotReader interface {
	FindOpenBySlot(ctx context.Context, stationID string, scheduledAt time.Time) ([]models.Reservation, error)
}

// SlotLocker serializes work on one slot key. Lock blocks until the key is held,
// ctx is done, or the implementation gives up, and returns the release func.
type SlotLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// SlotAllocator detects slot collisions and provides the serialization point
// around check-and-write sequences.
type SlotAllocator struct {
	reader SlotReader
	locker SlotLocker
}

// NewSlotAllocator builds an allocator. A nil locker falls back to an in-process KeyedMutex.
func NewSlotAllocator(reader SlotReader, locker SlotLocker) *SlotAllocator {
	if locker == nil {
		locker = NewKeyedMutex()
	}
	return &SlotAllocator{reader: reader, locker: locker}
}

// SlotKey identifies a station slot by station and normalized instant.
func SlotKey(stationID string, scheduledAt time.Time) string {
	return strings.TrimSpace(stationID) + "@" + Normalize(scheduledAt).Format(time.RFC3339Nano)
}

// IsSlotTaken reports whether an open reservation other than excludeID holds
// exactly (stationID, scheduledAt). There is no tolerance window.
func (a *SlotAllocator) IsSlotTaken(ctx context.Context, stationID string, scheduledAt time.Time, excludeID string) (bool, error) {
	at := Normalize(scheduledAt)
	existing, err := a.reader.FindOpenBySlot(ctx, stationID, at)
	if err != nil {
		return false, fmt.Errorf("slot lookup: %w", err)
	}
	for _, r := range existing {
		if excludeID != "" && r.ID == excludeID {
			continue
		}
		if r.StationID != stationID || r.Status.Terminal() {
			continue
		}
		if Normalize(r.ScheduledAt).Equal(at) {
			return true, nil
		}
	}
	return false, nil
}

// WithSlot runs fn while holding the slot's lock. fn should re-check IsSlotTaken
// and write; nothing else may claim the same slot through this allocator meanwhile.
func (a *SlotAllocator) WithSlot(ctx context.Context, stationID string, scheduledAt time.Time, fn func(ctx context.Context) error) error {
	unlock, err := a.locker.Lock(ctx, SlotKey(stationID, scheduledAt))
	if err != nil {
		return err
	}
	defer unlock()
	return fn(ctx)
}

// Claim is the full check-and-write sequence: under the slot lock it fails with
// ErrSlotConflict when the slot is taken, otherwise it calls write.
func (a *SlotAllocator) Claim(ctx context.Context, stationID string, scheduledAt time.Time, excludeID string, write func(ctx context.Context) error) error {
	return a.WithSlot(ctx, stationID, scheduledAt, func(ctx context.Context) error {
		taken, err := a.IsSlotTaken(ctx, stationID, scheduledAt, excludeID)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: station %s is already reserved at %s", ErrSlotConflict, stationID, Normalize(scheduledAt).Format(time.RFC3339))
		}
		return write(ctx)
	})
}
