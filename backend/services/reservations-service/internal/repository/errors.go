package repository

import "errors"

var (
	// ErrReservationNotFound is returned when no reservation row matches.
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrStationNotFound is returned when no station row matches.
	ErrStationNotFound = errors.New("station not found")
	// ErrOwnerNotFound is returned when no owner row matches.
	ErrOwnerNotFound = errors.New("owner not found")
	// ErrSlotTaken is returned when a write would give a slot a second open reservation.
	ErrSlotTaken = errors.New("slot already taken")
	// ErrStatusChanged is returned when the reservation status moved since it was read.
	ErrStatusChanged = errors.New("reservation status changed concurrently")
)
