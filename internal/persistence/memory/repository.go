// Package memory keeps sessions in process for local development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"example.com/training/internal/domain"
)

// Repository is a mutex-guarded in-memory session store.
type Repository struct {
	mu       sync.RWMutex
	sessions []domain.Session
}

// NewRepository constructs an empty Repository.
func NewRepository() *Repository {
	return &Repository{}
}

// Prepare implements persistence.Store.
func (r *Repository) Prepare(context.Context) error { return nil }

// Close implements persistence.Store.
func (r *Repository) Close(context.Context) error { return nil }

// Create implements domain.SessionRepository.
func (r *Repository) Create(_ context.Context, session domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, session.Clone())
	return nil
}

// ListByOwner returns the owner's sessions, newest first. Sessions sharing a
// timestamp are returned most recently inserted first.
func (r *Repository) ListByOwner(_ context.Context, owner string) ([]domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Session, 0)
	for i := len(r.sessions) - 1; i >= 0; i-- {
		if r.sessions[i].Owner == owner {
			out = append(out, r.sessions[i].Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RecordedAt.After(out[j].RecordedAt)
	})
	return out, nil
}
