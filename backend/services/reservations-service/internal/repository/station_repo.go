package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"

	"chargeslot/backend/services/reservations-service/internal/models"
)

// StationRepository reads station metadata maintained by the station admin tooling.
type StationRepository struct {
	db      *sql.DB
	typeMap *pgtype.Map
}

// NewStationRepository returns repository.
func NewStationRepository(db *sql.DB) *StationRepository {
	return &StationRepository{db: db, typeMap: pgtype.NewMap()}
}

// GetByID fetches a station with its assigned operators.
func (r *StationRepository) GetByID(ctx context.Context, id string) (*models.Station, error) {
	const query = `
		SELECT id, name, location, is_active, operator_ids
		FROM stations
		WHERE id = $1
	`
	var station models.Station
	err := r.db.QueryRowContext(ctx, query, strings.TrimSpace(id)).Scan(
		&station.ID,
		&station.Name,
		&station.Location,
		&station.IsActive,
		r.typeMap.SQLScanner(&station.OperatorIDs),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStationNotFound
		}
		return nil, err
	}
	return &station, nil
}

// Upsert persists station metadata; used by seeding and admin sync jobs.
func (r *StationRepository) Upsert(ctx context.Context, station *models.Station) error {
	const query = `
		INSERT INTO stations (id, name, location, is_active, operator_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			location = EXCLUDED.location,
			is_active = EXCLUDED.is_active,
			operator_ids = EXCLUDED.operator_ids,
			updated_at = NOW()
	`
	operators := station.OperatorIDs
	if operators == nil {
		operators = []string{}
	}
	_, err := r.db.ExecContext(ctx, query, station.ID, station.Name, station.Location, station.IsActive, operators)
	return err
}
