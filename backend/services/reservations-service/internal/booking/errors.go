package booking

import "errors"

// Error kinds reported by the reservation engine. Callers classify with errors.Is;
// the wrapped message is safe to show to the user.
var (
	// ErrNotFound means the reservation, station or owner does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPolicyViolation covers the creation window, the change cutoff and inactive stations/owners.
	ErrPolicyViolation = errors.New("policy violation")
	// ErrSlotConflict means the station slot is already held by an open reservation.
	ErrSlotConflict = errors.New("slot conflict")
	// ErrInvalidTransition means the status change is not allowed, or the caller does not own the reservation.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrDataMismatch means a verification claim disagrees with the stored reservation.
	ErrDataMismatch = errors.New("data mismatch")
	// ErrUnauthorized means the operator is missing or not assigned to the station.
	ErrUnauthorized = errors.New("unauthorized")
)
