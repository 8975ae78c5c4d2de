/**
 * @description
 * In-memory implementation of the audit-event `Repository`. Used when no
 * database is configured and by tests.
 */

package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/tari-project/stable-coin/internal/domain"
)

// MemoryRepository holds events in process memory, newest appended last.
type MemoryRepository struct {
	mu     sync.RWMutex
	events []domain.Event
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) RecordEvent(_ context.Context, event domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *MemoryRepository) GetEvent(_ context.Context, id uuid.UUID) (*domain.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.events {
		if r.events[i].ID == id {
			event := r.events[i]
			return &event, nil
		}
	}
	return nil, ErrEventNotFound
}

func (r *MemoryRepository) ListEvents(_ context.Context, opts EventListOptions) ([]domain.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limit := opts.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var filtered []domain.Event
	// Newest first.
	for i := len(r.events) - 1; i >= 0; i-- {
		if opts.Name != "" && r.events[i].Name != opts.Name {
			continue
		}
		filtered = append(filtered, r.events[i])
	}
	offset := max(opts.Offset, 0)
	if offset >= len(filtered) {
		return nil, nil
	}
	filtered = filtered[offset:]
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, nil
}
