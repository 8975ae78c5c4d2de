/**
 * @description
 * This file defines the `Repository` interface for the durable audit-event
 * trail. Every state-changing issuer operation emits one event; repositories
 * append them and serve them back to external observers. The interface keeps
 * the issuer decoupled from the storage implementation (PostgreSQL in
 * production, in-memory for tests and storeless deployments).
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/google/uuid: Event identifiers.
 * - internal/domain: The event model.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/tari-project/stable-coin/internal/domain"
)

// ErrEventNotFound is returned when no event exists for the requested id.
var ErrEventNotFound = errors.New("event not found")

// EventListOptions controls pagination and filtering of the audit trail.
type EventListOptions struct {
	Name   string
	Limit  int
	Offset int
}

// Repository defines the audit-event data access contract.
type Repository interface {
	// RecordEvent appends one event to the trail.
	RecordEvent(ctx context.Context, event domain.Event) error
	// GetEvent fetches one event by id.
	GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	// ListEvents returns events newest-first, optionally filtered by name.
	ListEvents(ctx context.Context, opts EventListOptions) ([]domain.Event, error)
}
