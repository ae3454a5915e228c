package models

import "time"

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Reservation is a claim on a station slot by an owner.
type Reservation struct {
	ID          string    `db:"id" json:"id"`
	StationID   string    `db:"station_id" json:"station_id"`
	OwnerID     string    `db:"owner_id" json:"owner_id"`
	ScheduledAt time.Time `db:"scheduled_at" json:"scheduled_at"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
	Status      Status    `db:"status" json:"status"`
}

// ReservationView is a reservation enriched with the station display name.
type ReservationView struct {
	Reservation
	StationName string `json:"station_name"`
}
