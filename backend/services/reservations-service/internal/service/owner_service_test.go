package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"chargeslot/backend/services/reservations-service/internal/booking"
	"chargeslot/backend/services/reservations-service/internal/models"
)

func TestCreatePendingReservation(t *testing.T) {
	f := newFixture(t, false, nil)
	at := testNow.Add(time.Hour)

	res := f.mustCreate(t, "owner-a", "st-1", at)

	if res.Status != models.StatusPending {
		t.Fatalf("expected pending, got %s", res.Status)
	}
	if res.OwnerID != "owner-a" || res.StationID != "st-1" {
		t.Fatalf("unexpected reservation %+v", res)
	}
	if !res.ScheduledAt.Equal(at) || res.ScheduledAt.Location() != time.UTC {
		t.Fatalf("expected scheduled_at %s in UTC, got %s", at, res.ScheduledAt)
	}
	if !res.CreatedAt.Equal(testNow) {
		t.Fatalf("expected created_at %s, got %s", testNow, res.CreatedAt)
	}
	if got := f.events.published(); len(got) != 1 || got[0] != EventCreated {
		t.Fatalf("expected one created event, got %v", got)
	}
}

func TestCreateSameSlotConflicts(t *testing.T) {
	f := newFixture(t, false, nil)
	at := testNow.Add(time.Hour)
	f.mustCreate(t, "owner-a", "st-1", at)

	_, err := f.owner.Create(context.Background(), "owner-a", "st-1", at)
	expectKind(t, err, booking.ErrSlotConflict)

	_, err = f.owner.Create(context.Background(), "owner-b", "st-1", at.In(time.FixedZone("UTC+3", 3*3600)))
	expectKind(t, err, booking.ErrSlotConflict)

	if _, err := f.owner.Create(context.Background(), "owner-b", "st-2", at); err != nil {
		t.Fatalf("same time at another station should succeed: %v", err)
	}
	if _, err := f.owner.Create(context.Background(), "owner-b", "st-1", at.Add(time.Second)); err != nil {
		t.Fatalf("another instant at the same station should succeed: %v", err)
	}
}

func TestCreateWindow(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		ok   bool
	}{
		{"now", testNow, false},
		{"past", testNow.Add(-time.Minute), false},
		{"just after now", testNow.Add(time.Microsecond), true},
		{"exactly seven days", testNow.Add(7 * 24 * time.Hour), true},
		{"past seven days", testNow.Add(7*24*time.Hour + time.Microsecond), false},
		{"eight days", testNow.Add(8 * 24 * time.Hour), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, false, nil)
			_, err := f.owner.Create(context.Background(), "owner-a", "st-2", tc.at)
			if tc.ok && err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if !tc.ok {
				expectKind(t, err, booking.ErrPolicyViolation)
			}
		})
	}
}

func TestCreateRejectsUnknownOrInactiveParties(t *testing.T) {
	f := newFixture(t, false, nil)
	at := testNow.Add(2 * time.Hour)
	ctx := context.Background()

	_, err := f.owner.Create(ctx, "nobody", "st-1", at)
	expectKind(t, err, booking.ErrNotFound)

	_, err = f.owner.Create(ctx, "owner-off", "st-1", at)
	expectKind(t, err, booking.ErrPolicyViolation)

	_, err = f.owner.Create(ctx, "owner-a", "st-missing", at)
	expectKind(t, err, booking.ErrNotFound)

	_, err = f.owner.Create(ctx, "owner-a", "st-off", at)
	expectKind(t, err, booking.ErrPolicyViolation)

	if got := f.events.published(); len(got) != 0 {
		t.Fatalf("rejected commands must not publish events, got %v", got)
	}
}

func TestConcurrentCreateKeepsSlotExclusive(t *testing.T) {
	cases := []struct {
		name   string
		unique bool
		locker booking.SlotLocker
	}{
		{"keyed mutex over plain store", false, nil},
		{"unique store without lock", true, noopLocker{}},
		{"keyed mutex over unique store", true, booking.NewKeyedMutex()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.unique, tc.locker)
			at := testNow.Add(36 * time.Hour)

			const workers = 32
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				successes int
				conflicts int
			)
			start := make(chan struct{})
			for i := 0; i < workers; i++ {
				owner := "owner-a"
				if i%2 == 1 {
					owner = "owner-b"
				}
				wg.Add(1)
				go func(owner string) {
					defer wg.Done()
					<-start
					_, err := f.owner.Create(context.Background(), owner, "st-2", at)
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						successes++
					case errors.Is(err, booking.ErrSlotConflict):
						conflicts++
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}(owner)
			}
			close(start)
			wg.Wait()

			if successes != 1 || conflicts != workers-1 {
				t.Fatalf("expected 1 success and %d conflicts, got %d and %d", workers-1, successes, conflicts)
			}
			if n := f.reservations.openAt("st-2", at); n != 1 {
				t.Fatalf("expected one open reservation at slot, found %d", n)
			}
		})
	}
}

func TestGetForOwnerIsScopedToOwner(t *testing.T) {
	f := newFixture(t, false, nil)
	res := f.mustCreate(t, "owner-a", "st-1", testNow.Add(20*time.Hour))
	ctx := context.Background()

	view, found, err := f.owner.GetForOwner(ctx, res.ID, "owner-a")
	if err != nil || !found {
		t.Fatalf("expected reservation, got found=%v err=%v", found, err)
	}
	if view.StationName != "Central Plaza" {
		t.Fatalf("expected station name, got %q", view.StationName)
	}

	for _, tc := range []struct{ id, owner string }{
		{res.ID, "owner-b"},
		{"res-missing", "owner-a"},
		{"", "owner-a"},
	} {
		view, found, err := f.owner.GetForOwner(ctx, tc.id, tc.owner)
		if err != nil || found || view != nil {
			t.Fatalf("GetForOwner(%q, %q) = %v, %v, %v; want absent", tc.id, tc.owner, view, found, err)
		}
	}
}

func TestListUpcomingAndHistory(t *testing.T) {
	f := newFixture(t, false, nil)
	ctx := context.Background()
	seed := []models.Reservation{
		{ID: "h-old", StationID: "st-1", OwnerID: "owner-a", ScheduledAt: testNow.Add(-72 * time.Hour), Status: models.StatusCompleted},
		{ID: "h-recent", StationID: "st-2", OwnerID: "owner-a", ScheduledAt: testNow.Add(-2 * time.Hour), Status: models.StatusCancelled},
		{ID: "h-now", StationID: "st-1", OwnerID: "owner-a", ScheduledAt: testNow, Status: models.StatusActive},
		{ID: "u-late", StationID: "st-1", OwnerID: "owner-a", ScheduledAt: testNow.Add(48 * time.Hour), Status: models.StatusPending},
		{ID: "u-soon", StationID: "st-1", OwnerID: "owner-a", ScheduledAt: testNow.Add(3 * time.Hour), Status: models.StatusPending},
		{ID: "u-gone", StationID: "st-gone", OwnerID: "owner-a", ScheduledAt: testNow.Add(5 * time.Hour), Status: models.StatusPending},
		{ID: "other", StationID: "st-1", OwnerID: "owner-b", ScheduledAt: testNow.Add(4 * time.Hour), Status: models.StatusPending},
	}
	for _, r := range seed {
		f.reservations.put(r)
	}

	before := f.stations.lookupCount()
	upcoming, err := f.owner.ListUpcoming(ctx, "owner-a")
	if err != nil {
		t.Fatalf("ListUpcoming returned error: %v", err)
	}
	assertIDs(t, upcoming, "u-soon", "u-gone", "u-late")
	if lookups := f.stations.lookupCount() - before; lookups != 2 {
		t.Fatalf("expected one lookup per distinct station, got %d", lookups)
	}
	if upcoming[0].StationName != "Central Plaza" || upcoming[1].StationName != "" {
		t.Fatalf("unexpected station names %q, %q", upcoming[0].StationName, upcoming[1].StationName)
	}

	history, err := f.owner.ListHistory(ctx, "owner-a")
	if err != nil {
		t.Fatalf("ListHistory returned error: %v", err)
	}
	assertIDs(t, history, "h-now", "h-recent", "h-old")

	empty, err := f.owner.ListUpcoming(ctx, "owner-none")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty listing, got %v, %v", empty, err)
	}
}

func assertIDs(t *testing.T, views []models.ReservationView, want ...string) {
	t.Helper()
	if len(views) != len(want) {
		t.Fatalf("expected %d reservations, got %d", len(want), len(views))
	}
	for i, id := range want {
		if views[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, views[i].ID)
		}
	}
}

func TestUpdateMovesPendingReservation(t *testing.T) {
	f := newFixture(t, true, nil)
	ctx := context.Background()
	oldAt := testNow.Add(24 * time.Hour)
	res := f.mustCreate(t, "owner-a", "st-1", oldAt)

	newAt := testNow.Add(30 * time.Hour)
	updated, err := f.owner.Update(ctx, res.ID, "owner-a", "st-2", newAt)
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.StationID != "st-2" || !updated.ScheduledAt.Equal(newAt) || updated.Status != models.StatusPending {
		t.Fatalf("unexpected updated reservation %+v", updated)
	}
	if !updated.CreatedAt.Equal(res.CreatedAt) || updated.OwnerID != res.OwnerID {
		t.Fatalf("update must not touch owner or created_at: %+v", updated)
	}

	// The vacated slot is free again.
	f.mustCreate(t, "owner-b", "st-1", oldAt)

	// Rescheduling onto its own slot is not a collision.
	if _, err := f.owner.Update(ctx, res.ID, "owner-a", "st-2", newAt); err != nil {
		t.Fatalf("updating onto own slot returned error: %v", err)
	}

	got := f.events.published()
	if len(got) != 4 || got[1] != EventUpdated || got[3] != EventUpdated {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestUpdateRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("taken slot", func(t *testing.T) {
		f := newFixture(t, false, nil)
		res := f.mustCreate(t, "owner-a", "st-1", testNow.Add(24*time.Hour))
		other := f.mustCreate(t, "owner-b", "st-2", testNow.Add(40*time.Hour))
		_, err := f.owner.Update(ctx, res.ID, "owner-a", other.StationID, other.ScheduledAt)
		expectKind(t, err, booking.ErrSlotConflict)
	})

	t.Run("cutoff uses current time", func(t *testing.T) {
		f := newFixture(t, false, nil)
		res := f.mustCreate(t, "owner-a", "st-1", testNow.Add(11*time.Hour))
		_, err := f.owner.Update(ctx, res.ID, "owner-a", "st-1", testNow.Add(5*24*time.Hour))
		expectKind(t, err, booking.ErrPolicyViolation)
	})

	t.Run("cutoff boundary", func(t *testing.T) {
		f := newFixture(t, false, nil)
		res := f.mustCreate(t, "owner-a", "st-1", testNow.Add(12*time.Hour))
		if _, err := f.owner.Update(ctx, res.ID, "owner-a", "st-1", testNow.Add(13*time.Hour)); err != nil {
			t.Fatalf("exactly 12h notice should be accepted: %v", err)
		}
	})

	t.Run("new time outside window", func(t *testing.T) {
		f := newFixture(t, false, nil)
		res := f.mustCreate(t, "owner-a", "st-1", testNow.Add(24*time.Hour))
		_, err := f.owner.Update(ctx, res.ID, "owner-a", "st-1", testNow.Add(8*24*time.Hour))
		expectKind(t, err, booking.ErrPolicyViolation)
	})

	t.Run("inactive station", func(t *testing.T) {
		f := newFixture(t, false, nil)
		res := f.mustCreate(t, "owner-a", "st-1", testNow.Add(24*time.Hour))
		_, err := f.owner.Update(ctx, res.ID, "owner-a", "st-off", testNow.Add(30*time.Hour))
		expectKind(t, err, booking.ErrPolicyViolation)
	})

	t.Run("not pending", func(t *testing.T) {
		f := newFixture(t, false, nil)
		res := f.mustCreate(t, "owner-a", "st-1", testNow.Add(24*time.Hour))
		if _, err := f.operator.Activate(ctx, claimFor(res), "op-1"); err != nil {
			t.Fatalf("Activate returned error: %v", err)
		}
		_, err := f.owner.Update(ctx, res.ID, "owner-a", "st-1", testNow.Add(30*time.Hour))
		expectKind(t, err, booking.ErrInvalidTransition)
	})

	t.Run("missing", func(t *testing.T) {
		f := newFixture(t, false, nil)
		_, err := f.owner.Update(ctx, "res-missing", "owner-a", "st-1", testNow.Add(30*time.Hour))
		expectKind(t, err, booking.ErrNotFound)
	})
}

func TestCancelRespectsCutoff(t *testing.T) {
	f := newFixture(t, false, nil)
	ctx := context.Background()

	soon := f.mustCreate(t, "owner-a", "st-1", testNow.Add(10*time.Hour))
	_, err := f.owner.Cancel(ctx, soon.ID, "owner-a")
	expectKind(t, err, booking.ErrPolicyViolation)

	later := f.mustCreate(t, "owner-a", "st-1", testNow.Add(12*time.Hour))
	cancelled, err := f.owner.Cancel(ctx, later.ID, "owner-a")
	if err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if cancelled.Status != models.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}

	// A cancelled reservation releases its slot.
	f.mustCreate(t, "owner-b", "st-1", testNow.Add(12*time.Hour))
}

func TestOwnerMayCancelActiveReservation(t *testing.T) {
	f := newFixture(t, false, nil)
	ctx := context.Background()
	res := f.mustCreate(t, "owner-a", "st-1", testNow.Add(24*time.Hour))
	if _, err := f.operator.Activate(ctx, claimFor(res), "op-1"); err != nil {
		t.Fatalf("Activate returned error: %v", err)
	}

	cancelled, err := f.owner.Cancel(ctx, res.ID, "owner-a")
	if err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if cancelled.Status != models.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
}

func TestOwnershipIsolation(t *testing.T) {
	f := newFixture(t, false, nil)
	ctx := context.Background()
	res := f.mustCreate(t, "owner-a", "st-1", testNow.Add(24*time.Hour))

	_, err := f.owner.Update(ctx, res.ID, "owner-b", "st-2", testNow.Add(30*time.Hour))
	expectKind(t, err, booking.ErrInvalidTransition)

	_, err = f.owner.Cancel(ctx, res.ID, "owner-b")
	expectKind(t, err, booking.ErrInvalidTransition)

	stored, _ := f.reservations.GetByID(ctx, res.ID)
	if stored.Status != models.StatusPending || stored.StationID != "st-1" {
		t.Fatalf("reservation changed by another owner: %+v", stored)
	}
}

func TestTerminalStatusesAreAbsorbing(t *testing.T) {
	ctx := context.Background()
	for _, status := range []models.Status{models.StatusCompleted, models.StatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t, false, nil)
			f.reservations.put(models.Reservation{
				ID: "res-final", StationID: "st-1", OwnerID: "owner-a",
				ScheduledAt: testNow.Add(48 * time.Hour), Status: status,
			})

			_, err := f.owner.Cancel(ctx, "res-final", "owner-a")
			expectKind(t, err, booking.ErrInvalidTransition)
			_, err = f.owner.Update(ctx, "res-final", "owner-a", "st-1", testNow.Add(50*time.Hour))
			expectKind(t, err, booking.ErrInvalidTransition)
			_, err = f.operator.Activate(ctx, models.VerificationClaim{ReservationID: "res-final", OwnerID: "owner-a", StationID: "st-1"}, "op-1")
			expectKind(t, err, booking.ErrInvalidTransition)
			_, err = f.operator.Complete(ctx, "res-final", "op-1")
			expectKind(t, err, booking.ErrInvalidTransition)
			_, err = f.operator.Cancel(ctx, "res-final", "op-1")
			expectKind(t, err, booking.ErrInvalidTransition)

			stored, _ := f.reservations.GetByID(ctx, "res-final")
			if stored.Status != status {
				t.Fatalf("terminal status changed to %s", stored.Status)
			}
			if f.reservations.updates != 0 {
				t.Fatalf("expected no writes, got %d", f.reservations.updates)
			}
		})
	}
}

func TestIssueClaim(t *testing.T) {
	f := newFixture(t, false, nil)
	ctx := context.Background()
	res := f.mustCreate(t, "owner-a", "st-1", testNow.Add(24*time.Hour))

	_, _, err := f.owner.IssueClaim(ctx, res.ID, "owner-a")
	expectKind(t, err, booking.ErrInvalidTransition)

	if _, err := f.operator.Activate(ctx, claimFor(res), "op-1"); err != nil {
		t.Fatalf("Activate returned error: %v", err)
	}

	c, token, err := f.owner.IssueClaim(ctx, res.ID, "owner-a")
	if err != nil {
		t.Fatalf("IssueClaim returned error: %v", err)
	}
	if token != "" {
		t.Fatalf("expected no token without a codec, got %q", token)
	}
	if c.ReservationID != res.ID || c.OwnerID != "owner-a" || c.StationID != "st-1" || c.Status != models.StatusActive {
		t.Fatalf("unexpected claim %+v", c)
	}

	_, _, err = f.owner.IssueClaim(ctx, res.ID, "owner-b")
	expectKind(t, err, booking.ErrNotFound)
}

func TestLostStatusRaceIsInvalidTransition(t *testing.T) {
	f := newFixture(t, false, nil)
	ctx := context.Background()
	res := f.mustCreate(t, "owner-a", "st-1", testNow.Add(24*time.Hour))
	stale := *res

	if _, err := f.operator.Activate(ctx, claimFor(res), "op-1"); err != nil {
		t.Fatalf("Activate returned error: %v", err)
	}

	_, err := f.owner.transition(ctx, &stale, models.StatusCancelled, booking.ActorOwner, "owner-a", EventCancelled)
	expectKind(t, err, booking.ErrInvalidTransition)
}

func TestStaleTransitionKeepsReschedule(t *testing.T) {
	for _, unique := range []bool{false, true} {
		t.Run(fmt.Sprintf("unique=%v", unique), func(t *testing.T) {
			f := newFixture(t, unique, nil)
			ctx := context.Background()
			slotA := testNow.Add(24 * time.Hour)
			slotB := testNow.Add(30 * time.Hour)

			res := f.mustCreate(t, "owner-a", "st-2", slotA)
			stale := *res
			if _, err := f.owner.Update(ctx, res.ID, "owner-a", "st-2", slotB); err != nil {
				t.Fatalf("Update returned error: %v", err)
			}
			f.mustCreate(t, "owner-b", "st-2", slotA)

			active, err := f.operator.transition(ctx, &stale, models.StatusActive, booking.ActorOperator, "op-1", EventActivated)
			if err != nil {
				t.Fatalf("transition returned error: %v", err)
			}
			if !active.ScheduledAt.Equal(slotB) {
				t.Fatalf("returned reservation at %s, want %s", active.ScheduledAt, slotB)
			}
			stored, _ := f.reservations.GetByID(ctx, res.ID)
			if stored.Status != models.StatusActive || !stored.ScheduledAt.Equal(slotB) {
				t.Fatalf("reschedule lost: %+v", stored)
			}
			if n := f.reservations.openAt("st-2", slotA); n != 1 {
				t.Fatalf("expected 1 open reservation at the old slot, got %d", n)
			}

			slotC := testNow.Add(48 * time.Hour)
			slotD := testNow.Add(54 * time.Hour)
			other := f.mustCreate(t, "owner-a", "st-2", slotC)
			staleOther := *other
			if _, err := f.owner.Update(ctx, other.ID, "owner-a", "st-2", slotD); err != nil {
				t.Fatalf("Update returned error: %v", err)
			}
			cancelled, err := f.owner.transition(ctx, &staleOther, models.StatusCancelled, booking.ActorOwner, "owner-a", EventCancelled)
			if err != nil {
				t.Fatalf("transition returned error: %v", err)
			}
			if cancelled.Status != models.StatusCancelled || !cancelled.ScheduledAt.Equal(slotD) {
				t.Fatalf("cancel reverted reschedule: %+v", cancelled)
			}
		})
	}
}

func TestPublishFailureDoesNotFailCommand(t *testing.T) {
	f := newFixture(t, false, nil)
	f.events.err = errors.New("broker unavailable")

	res := f.mustCreate(t, "owner-a", "st-1", testNow.Add(24*time.Hour))
	stored, err := f.reservations.GetByID(context.Background(), res.ID)
	if err != nil || stored.Status != models.StatusPending {
		t.Fatalf("reservation not stored: %v %v", stored, err)
	}
}
