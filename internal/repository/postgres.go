package repository

import (
	"context"
	"fmt"

	"github.com/UnknownOlympus/jobmap/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

const locationsSchema = `
	CREATE TABLE IF NOT EXISTS employer_locations (
		id            BIGSERIAL PRIMARY KEY,
		state         TEXT NOT NULL,
		case_number   TEXT NOT NULL DEFAULT '',
		employer_name TEXT NOT NULL DEFAULT '',
		job_title     TEXT NOT NULL DEFAULT '',
		full_address  TEXT NOT NULL,
		latitude      DOUBLE PRECISION NOT NULL,
		longitude     DOUBLE PRECISION NOT NULL,
		location      BYTEA NOT NULL,
		exported_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS employer_locations_state_idx ON employer_locations (state);
`

const deleteStateLocations = `DELETE FROM employer_locations WHERE state = $1;`

// LocationColumns are the columns filled by SaveLocations, in copy order.
var LocationColumns = []string{
	"state", "case_number", "employer_name", "job_title", "full_address", "latitude", "longitude", "location",
}

// EnsureSchema creates the employer_locations table and its index when they do not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, locationsSchema); err != nil {
		return fmt.Errorf("failed to create employer_locations table: %w", err)
	}

	return nil
}

// SaveLocations replaces every stored location of state with records.
// The delete and the copy run in one transaction, so readers see either
// the previous export or the new one.
func (r *Repository) SaveLocations(ctx context.Context, state string, records []models.ResolvedRecord) error {
	rows, err := locationRows(state, records)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	tag, err := tx.Exec(ctx, deleteStateLocations, state)
	if err != nil {
		return rollback(ctx, tx, fmt.Errorf("failed to delete previous locations: %w", err))
	}

	copied, err := tx.CopyFrom(ctx, pgx.Identifier{"employer_locations"}, LocationColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return rollback(ctx, tx, fmt.Errorf("failed to copy locations: %w", err))
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.log.InfoContext(ctx, "Locations exported",
		"state", state, "replaced", tag.RowsAffected(), "inserted", copied)

	return nil
}

func locationRows(state string, records []models.ResolvedRecord) ([][]any, error) {
	rows := make([][]any, 0, len(records))
	for _, record := range records {
		point := record.Point
		if point == nil {
			point = geom.NewPointFlat(geom.XY, []float64{record.Coordinates.Longitude, record.Coordinates.Latitude}).
				SetSRID(4326)
		}
		location, err := ewkb.Marshal(point, ewkb.NDR)
		if err != nil {
			return nil, fmt.Errorf("failed to encode location of %q: %w", record.Key.Full, err)
		}
		rows = append(rows, []any{
			state,
			record.CaseNumber,
			record.EmployerName,
			record.JobTitle,
			record.Key.Full,
			record.Coordinates.Latitude,
			record.Coordinates.Longitude,
			location,
		})
	}

	return rows, nil
}

func rollback(ctx context.Context, tx pgx.Tx, cause error) error {
	if err := tx.Rollback(ctx); err != nil {
		return fmt.Errorf("%w (rollback failed: %w)", cause, err)
	}

	return cause
}
