package profile

import (
	"context"
	"sync"
	"time"
)

type memoryRepository struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryRepository builds an in-memory profile store for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{records: make(map[string]Record)}
}

func (r *memoryRepository) Get(_ context.Context, identityID string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[identityID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return record, nil
}

func (r *memoryRepository) Insert(_ context.Context, record Record) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[record.IdentityID]; exists {
		return Record{}, ErrExists
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	r.records[record.IdentityID] = record
	return record, nil
}

func (r *memoryRepository) Update(_ context.Context, identityID string, patch Patch) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[identityID]
	if !ok {
		return Record{}, ErrNotFound
	}
	patch.Apply(&record)
	record.UpdatedAt = time.Now().UTC()
	r.records[identityID] = record
	return record, nil
}
