package repository

import (
	"context"
	"sync"

	"bizconnect/internal/domain/repository"
)

// MemoryBusinessRepository is a fixed business directory for local runs and tests.
type MemoryBusinessRepository struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

func NewMemoryBusinessRepository(businessIDs ...string) *MemoryBusinessRepository {
	r := &MemoryBusinessRepository{ids: make(map[string]struct{}, len(businessIDs))}
	for _, id := range businessIDs {
		r.ids[id] = struct{}{}
	}
	return r
}

var _ repository.BusinessRepository = (*MemoryBusinessRepository)(nil)

func (r *MemoryBusinessRepository) Add(businessID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[businessID] = struct{}{}
}

func (r *MemoryBusinessRepository) Exists(ctx context.Context, businessID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ids[businessID]
	return ok, nil
}
