package booking

import (
	"fmt"
	"time"
)

const (
	// DefaultCreationWindow is how far ahead a reservation may be scheduled.
	DefaultCreationWindow = 7 * 24 * time.Hour
	// DefaultChangeCutoff is the minimum notice for changing or cancelling a reservation.
	DefaultChangeCutoff = 12 * time.Hour
)

// Policy evaluates the temporal reservation rules. It holds no state and never
// reads the wall clock; callers pass now explicitly.
type Policy struct {
	CreationWindow time.Duration
	ChangeCutoff   time.Duration
}

// DefaultPolicy returns the 7 day window / 12 hour cutoff policy.
func DefaultPolicy() Policy {
	return Policy{
		CreationWindow: DefaultCreationWindow,
		ChangeCutoff:   DefaultChangeCutoff,
	}
}

func (p Policy) withDefaults() Policy {
	if p.CreationWindow <= 0 {
		p.CreationWindow = DefaultCreationWindow
	}
	if p.ChangeCutoff <= 0 {
		p.ChangeCutoff = DefaultChangeCutoff
	}
	return p
}

// ValidateCreationWindow requires now < scheduledAt <= now + CreationWindow.
func (p Policy) ValidateCreationWindow(now, scheduledAt time.Time) error {
	p = p.withDefaults()
	now, scheduledAt = Normalize(now), Normalize(scheduledAt)

	if !scheduledAt.After(now) {
		return fmt.Errorf("%w: reservation time must be in the future", ErrPolicyViolation)
	}
	if scheduledAt.After(now.Add(p.CreationWindow)) {
		return fmt.Errorf("%w: reservation time must be within %s", ErrPolicyViolation, humanDuration(p.CreationWindow))
	}
	return nil
}

// ValidateChangeCutoff requires scheduledAt - now >= ChangeCutoff. It is evaluated
// against the reservation's current time, before any proposed change.
func (p Policy) ValidateChangeCutoff(now, scheduledAt time.Time) error {
	p = p.withDefaults()
	if Normalize(scheduledAt).Sub(Normalize(now)) < p.ChangeCutoff {
		return fmt.Errorf("%w: changes and cancellations require at least %s notice", ErrPolicyViolation, humanDuration(p.ChangeCutoff))
	}
	return nil
}

// Normalize converts t to UTC at the storage precision (microseconds) and drops the
// monotonic reading, so equal instants compare equal however they were produced.
func Normalize(t time.Time) time.Time {
	return t.Round(0).UTC().Truncate(time.Microsecond)
}

func humanDuration(d time.Duration) string {
	if d%(24*time.Hour) == 0 {
		days := int(d / (24 * time.Hour))
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	if d%time.Hour == 0 {
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	}
	return d.String()
}
