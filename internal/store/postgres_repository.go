/**
 * @description
 * This file provides the PostgreSQL implementation of the audit-event
 * `Repository`. Events are append-only; nothing updates or deletes a recorded
 * event, matching the audit-trail contract external observers rely on.
 *
 * @dependencies
 * - context, encoding/json, fmt: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver.
 * - internal/domain: The event model.
 */

package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tari-project/stable-coin/internal/domain"
)

// PostgresRepository is the PostgreSQL-backed audit-event repository.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgresRepository on the given pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the audit-event table if it does not exist.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS audit_events (
			id          uuid PRIMARY KEY,
			name        text NOT NULL,
			fields      jsonb NOT NULL DEFAULT '{}'::jsonb,
			emitted_at  timestamptz NOT NULL
		);
		CREATE INDEX IF NOT EXISTS audit_events_name_idx ON audit_events (name, emitted_at DESC);`
	if _, err := db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("migrate audit_events: %w", err)
	}
	return nil
}

// RecordEvent appends one event to the trail.
func (r *PostgresRepository) RecordEvent(ctx context.Context, event domain.Event) error {
	fields, err := json.Marshal(event.Fields)
	if err != nil {
		return fmt.Errorf("marshal event fields: %w", err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO audit_events (id, name, fields, emitted_at) VALUES ($1, $2, $3, $4)`,
		event.ID, event.Name, fields, event.EmittedAt,
	)
	if err != nil {
		return fmt.Errorf("record event %s: %w", event.Name, err)
	}
	return nil
}

// GetEvent fetches one event by id.
func (r *PostgresRepository) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	var (
		event  domain.Event
		fields []byte
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, name, fields, emitted_at FROM audit_events WHERE id = $1`, id,
	).Scan(&event.ID, &event.Name, &fields, &event.EmittedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(fields, &event.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal event fields: %w", err)
	}
	return &event, nil
}

// ListEvents returns events newest-first, optionally filtered by name.
func (r *PostgresRepository) ListEvents(ctx context.Context, opts EventListOptions) ([]domain.Event, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT id, name, fields, emitted_at FROM audit_events`
	args := []any{}
	if opts.Name != "" {
		query += ` WHERE name = $1`
		args = append(args, opts.Name)
	}
	query += fmt.Sprintf(` ORDER BY emitted_at DESC LIMIT %d OFFSET %d`, limit, max(opts.Offset, 0))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			event  domain.Event
			fields []byte
		)
		if err := rows.Scan(&event.ID, &event.Name, &fields, &event.EmittedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(fields, &event.Fields); err != nil {
			return nil, fmt.Errorf("unmarshal event fields: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
