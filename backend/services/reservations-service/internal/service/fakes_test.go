package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"chargeslot/backend/services/reservations-service/internal/booking"
	"chargeslot/backend/services/reservations-service/internal/models"
	"chargeslot/backend/services/reservations-service/internal/repository"
)

var testNow = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

type fakeReservations struct {
	mu      sync.Mutex
	items   map[string]models.Reservation
	unique  bool
	updates int
}

func newFakeReservations(unique bool) *fakeReservations {
	return &fakeReservations{items: make(map[string]models.Reservation), unique: unique}
}

func (f *fakeReservations) GetByID(_ context.Context, id string) (*models.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[id]
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	return &r, nil
}

func (f *fakeReservations) ListByOwner(_ context.Context, ownerID string) ([]models.Reservation, error) {
	return f.filter(func(r models.Reservation) bool { return r.OwnerID == ownerID }), nil
}

func (f *fakeReservations) ListOpenByStation(_ context.Context, stationID string) ([]models.Reservation, error) {
	return f.filter(func(r models.Reservation) bool { return r.StationID == stationID && !r.Status.Terminal() }), nil
}

func (f *fakeReservations) FindOpenBySlot(_ context.Context, stationID string, at time.Time) ([]models.Reservation, error) {
	return f.filter(func(r models.Reservation) bool {
		return r.StationID == stationID && r.ScheduledAt.Equal(at) && !r.Status.Terminal()
	}), nil
}

func (f *fakeReservations) Create(_ context.Context, res *models.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unique && f.slotHeldLocked(res.StationID, res.ScheduledAt, res.ID) {
		return repository.ErrSlotTaken
	}
	f.items[res.ID] = *res
	return nil
}

func (f *fakeReservations) Update(_ context.Context, res *models.Reservation, expected models.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.items[res.ID]
	if !ok {
		return repository.ErrReservationNotFound
	}
	if stored.Status != expected {
		return repository.ErrStatusChanged
	}
	if f.unique && !res.Status.Terminal() && f.slotHeldLocked(res.StationID, res.ScheduledAt, res.ID) {
		return repository.ErrSlotTaken
	}
	f.items[res.ID] = *res
	f.updates++
	return nil
}

func (f *fakeReservations) SetStatus(_ context.Context, id string, expected, to models.Status) (*models.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.items[id]
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	if stored.Status != expected {
		return nil, repository.ErrStatusChanged
	}
	stored.Status = to
	stored.UpdatedAt = testNow
	f.items[id] = stored
	f.updates++
	return &stored, nil
}

func (f *fakeReservations) slotHeldLocked(stationID string, at time.Time, excludeID string) bool {
	for id, r := range f.items {
		if id != excludeID && r.StationID == stationID && r.ScheduledAt.Equal(at) && !r.Status.Terminal() {
			return true
		}
	}
	return false
}

func (f *fakeReservations) filter(keep func(models.Reservation) bool) []models.Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Reservation
	for _, r := range f.items {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeReservations) put(r models.Reservation) {
	f.mu.Lock()
	f.items[r.ID] = r
	f.mu.Unlock()
}

func (f *fakeReservations) openAt(stationID string, at time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.items {
		if r.StationID == stationID && r.ScheduledAt.Equal(at) && !r.Status.Terminal() {
			n++
		}
	}
	return n
}

type fakeStations struct {
	mu      sync.Mutex
	items   map[string]models.Station
	lookups int
}

func (f *fakeStations) GetByID(_ context.Context, id string) (*models.Station, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	s, ok := f.items[id]
	if !ok {
		return nil, repository.ErrStationNotFound
	}
	return &s, nil
}

func (f *fakeStations) lookupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups
}

type fakeOwners map[string]models.Owner

func (f fakeOwners) GetByKey(_ context.Context, key string) (*models.Owner, error) {
	o, ok := f[key]
	if !ok {
		return nil, repository.ErrOwnerNotFound
	}
	return &o, nil
}

type fakePublisher struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (f *fakePublisher) PublishJSON(_ context.Context, key string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return f.err
}

func (f *fakePublisher) published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.keys...)
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }

type fixture struct {
	reservations *fakeReservations
	stations     *fakeStations
	events       *fakePublisher
	deps         Deps
	owner        *OwnerService
	operator     *OperatorService
}

// newFixture wires both services over in-memory fakes. Station st-1 is assigned to
// op-1, st-2 is unrestricted, st-off is inactive.
func newFixture(t *testing.T, unique bool, locker booking.SlotLocker) *fixture {
	t.Helper()
	var (
		mu  sync.Mutex
		seq int
	)
	f := &fixture{
		reservations: newFakeReservations(unique),
		stations: &fakeStations{items: map[string]models.Station{
			"st-1":   {ID: "st-1", Name: "Central Plaza", IsActive: true, OperatorIDs: []string{"op-1"}},
			"st-2":   {ID: "st-2", Name: "Airport North", IsActive: true},
			"st-off": {ID: "st-off", Name: "Closed Depot", IsActive: false},
		}},
		events: &fakePublisher{},
	}
	f.deps = Deps{
		Reservations: f.reservations,
		Stations:     f.stations,
		Owners: fakeOwners{
			"owner-a":   {Key: "owner-a", Name: "Ana", IsActive: true},
			"owner-b":   {Key: "owner-b", Name: "Bo", IsActive: true},
			"owner-off": {Key: "owner-off", Name: "Off", IsActive: false},
		},
		Locker: locker,
		Events: f.events,
		Clock:  func() time.Time { return testNow },
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("res-%03d", seq)
		},
	}
	f.owner = NewOwnerService(f.deps, nil)
	f.operator = NewOperatorService(f.deps, nil)
	return f
}

func (f *fixture) mustCreate(t *testing.T, ownerID, stationID string, at time.Time) *models.Reservation {
	t.Helper()
	res, err := f.owner.Create(context.Background(), ownerID, stationID, at)
	if err != nil {
		t.Fatalf("Create(%s, %s, %s) returned error: %v", ownerID, stationID, at, err)
	}
	return res
}

// claimFor is what the owner presents on site for res.
func claimFor(res *models.Reservation) models.VerificationClaim {
	return models.VerificationClaim{
		ReservationID: res.ID,
		OwnerID:       res.OwnerID,
		StationID:     res.StationID,
		ScheduledAt:   res.ScheduledAt,
		Status:        res.Status,
	}
}

func expectKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}
