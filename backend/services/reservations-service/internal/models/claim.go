package models

import "time"

// VerificationClaim is the compact, non-secret reservation summary an owner presents
// on site, usually rendered as a QR code.
type VerificationClaim struct {
	ReservationID string    `json:"reservation_id"`
	OwnerID       string    `json:"owner_id"`
	StationID     string    `json:"station_id"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	Status        Status    `json:"status"`
}

// VerificationResult is returned to an operator after a successful verification.
type VerificationResult struct {
	ReservationID string    `json:"reservation_id"`
	OwnerID       string    `json:"owner_id"`
	StationID     string    `json:"station_id"`
	StationName   string    `json:"station_name"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	Status        Status    `json:"status"`
}
