package repository

import (
	"context"
	"database/sql"
	_ "embed"
)

//go:embed schema.sql
var schemaSQL string

// OpenSlotConstraint is the partial unique index enforcing slot exclusivity.
const OpenSlotConstraint = "reservations_open_slot_uidx"

// EnsureSchema creates the tables and indexes if they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schemaSQL)
	return err
}
