package repository

import (
	"context"
	"log/slog"

	"github.com/UnknownOlympus/jobmap/internal/models"
)

// Repository stores resolved employer locations in PostgreSQL.
type Repository struct {
	db  Database
	log *slog.Logger
}

type Interface interface {
	EnsureSchema(ctx context.Context) error
	SaveLocations(ctx context.Context, state string, records []models.ResolvedRecord) error
}

// NewRepository creates a new instance of Repository with the provided Database.
// It returns a pointer to the newly created Repository.
func NewRepository(db Database, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log}
}
