package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"chargeslot/backend/libs/db"
	"chargeslot/backend/services/reservations-service/internal/models"
)

const reservationColumns = `id, station_id, owner_id, scheduled_at, status, created_at, updated_at`

// ReservationRepository persists reservations in PostgreSQL. Slot exclusivity is
// enforced by the reservations_open_slot_uidx partial unique index.
type ReservationRepository struct {
	db *sql.DB
}

// NewReservationRepository returns repository.
func NewReservationRepository(db *sql.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// GetByID fetches one reservation.
func (r *ReservationRepository) GetByID(ctx context.Context, id string) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	res, err := scanReservation(r.db.QueryRowContext(ctx, query, strings.TrimSpace(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return res, nil
}

// ListByOwner returns all reservations of an owner ordered by scheduled time.
func (r *ReservationRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE owner_id = $1
		ORDER BY scheduled_at ASC`
	return r.list(ctx, query, ownerID)
}

// ListOpenByStation returns pending and active reservations of a station ordered by time.
func (r *ReservationRepository) ListOpenByStation(ctx context.Context, stationID string) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE station_id = $1 AND status IN ('pending', 'active')
		ORDER BY scheduled_at ASC`
	return r.list(ctx, query, stationID)
}

// FindOpenBySlot returns open reservations at exactly (stationID, scheduledAt).
func (r *ReservationRepository) FindOpenBySlot(ctx context.Context, stationID string, scheduledAt time.Time) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE station_id = $1 AND scheduled_at = $2 AND status IN ('pending', 'active')`
	return r.list(ctx, query, stationID, scheduledAt.UTC())
}

// Create inserts a reservation. A concurrent open reservation on the same slot
// surfaces as ErrSlotTaken.
func (r *ReservationRepository) Create(ctx context.Context, res *models.Reservation) error {
	const query = `
		INSERT INTO reservations (id, station_id, owner_id, scheduled_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		res.ID,
		res.StationID,
		res.OwnerID,
		res.ScheduledAt.UTC(),
		string(res.Status),
		res.CreatedAt.UTC(),
	)
	if err != nil {
		if db.IsUniqueViolation(err, OpenSlotConstraint) {
			return ErrSlotTaken
		}
		return fmt.Errorf("insert reservation: %w", err)
	}
	res.UpdatedAt = res.CreatedAt
	return nil
}

// Update overwrites station, time and status of a reservation whose stored status
// still equals expected. owner_id and created_at are never written.
func (r *ReservationRepository) Update(ctx context.Context, res *models.Reservation, expected models.Status) error {
	const query = `
		UPDATE reservations
		SET station_id = $3,
		    scheduled_at = $4,
		    status = $5,
		    updated_at = $6
		WHERE id = $1 AND status = $2
	`
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		res.ID,
		string(expected),
		res.StationID,
		res.ScheduledAt.UTC(),
		string(res.Status),
		now,
	)
	if err != nil {
		if db.IsUniqueViolation(err, OpenSlotConstraint) {
			return ErrSlotTaken
		}
		return fmt.Errorf("update reservation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := r.GetByID(ctx, res.ID); err != nil {
			return err
		}
		return ErrStatusChanged
	}
	res.UpdatedAt = now
	return nil
}

// SetStatus moves reservation id from status expected to status to and returns
// the stored row. Station and time are left as they are in the table.
func (r *ReservationRepository) SetStatus(ctx context.Context, id string, expected, to models.Status) (*models.Reservation, error) {
	query := `
		UPDATE reservations
		SET status = $3,
		    updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING ` + reservationColumns
	res, err := scanReservation(r.db.QueryRowContext(ctx, query,
		id,
		string(expected),
		string(to),
		time.Now().UTC(),
	))
	if err == nil {
		return res, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrStatusChanged
	}
	if db.IsUniqueViolation(err, OpenSlotConstraint) {
		return nil, ErrSlotTaken
	}
	return nil, fmt.Errorf("set reservation status: %w", err)
}

func (r *ReservationRepository) list(ctx context.Context, query string, args ...any) ([]models.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var (
		res    models.Reservation
		status string
	)
	if err := row.Scan(
		&res.ID,
		&res.StationID,
		&res.OwnerID,
		&res.ScheduledAt,
		&status,
		&res.CreatedAt,
		&res.UpdatedAt,
	); err != nil {
		return nil, err
	}
	res.Status = models.Status(status)
	if !res.Status.Valid() {
		return nil, fmt.Errorf("reservation %s has unknown status %q", res.ID, status)
	}
	res.ScheduledAt = res.ScheduledAt.UTC()
	res.CreatedAt = res.CreatedAt.UTC()
	res.UpdatedAt = res.UpdatedAt.UTC()
	return &res, nil
}
