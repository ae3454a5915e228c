package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"chargeslot/backend/services/reservations-service/internal/models"
)

// OwnerRepository reads vehicle owners by natural key.
type OwnerRepository struct {
	db *sql.DB
}

// NewOwnerRepository returns repository.
func NewOwnerRepository(db *sql.DB) *OwnerRepository {
	return &OwnerRepository{db: db}
}

// GetByKey fetches an owner by natural key.
func (r *OwnerRepository) GetByKey(ctx context.Context, key string) (*models.Owner, error) {
	const query = `
		SELECT key, name, is_active
		FROM owners
		WHERE key = $1
		LIMIT 1
	`
	var owner models.Owner
	if err := r.db.QueryRowContext(ctx, query, strings.TrimSpace(key)).Scan(&owner.Key, &owner.Name, &owner.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOwnerNotFound
		}
		return nil, err
	}
	return &owner, nil
}

// Upsert persists an owner record; used by seeding and admin sync jobs.
func (r *OwnerRepository) Upsert(ctx context.Context, owner *models.Owner) error {
	const query = `
		INSERT INTO owners (key, name, is_active, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE SET
			name = EXCLUDED.name,
			is_active = EXCLUDED.is_active
	`
	_, err := r.db.ExecContext(ctx, query, strings.TrimSpace(owner.Key), owner.Name, owner.IsActive)
	return err
}
