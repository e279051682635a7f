package status

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joshua-vybe/feedbridge/internal/model"
)

// Store is the durable event status store. Get returns (nil, nil)
// when no record exists.
type Store interface {
	Get(ctx context.Context, eventID string) (*model.EventStatusRecord, error)
	Create(ctx context.Context, rec model.EventStatusRecord) error
	Update(ctx context.Context, eventID, status, source string) error
}

// PostgresStore implements Store on the event_status table.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore wraps a connection pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the event_status table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS event_status (
			event_id   TEXT PRIMARY KEY,
			source     TEXT NOT NULL,
			status     TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create event_status table: %w", err)
	}
	return nil
}

// Get fetches the record for an event.
func (s *PostgresStore) Get(ctx context.Context, eventID string) (*model.EventStatusRecord, error) {
	var rec model.EventStatusRecord
	err := s.db.QueryRow(ctx,
		`SELECT event_id, source, status, updated_at FROM event_status WHERE event_id = $1`,
		eventID,
	).Scan(&rec.EventID, &rec.Source, &rec.Status, &rec.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event status: %w", err)
	}
	return &rec, nil
}

// Create inserts a new record.
func (s *PostgresStore) Create(ctx context.Context, rec model.EventStatusRecord) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO event_status (event_id, source, status, updated_at) VALUES ($1, $2, $3, now())`,
		rec.EventID, rec.Source, rec.Status,
	)
	if err != nil {
		return fmt.Errorf("create event status: %w", err)
	}
	return nil
}

// Update overwrites the status and source of an existing record.
func (s *PostgresStore) Update(ctx context.Context, eventID, status, source string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE event_status SET status = $2, source = $3, updated_at = now() WHERE event_id = $1`,
		eventID, status, source,
	)
	if err != nil {
		return fmt.Errorf("update event status: %w", err)
	}
	return nil
}
