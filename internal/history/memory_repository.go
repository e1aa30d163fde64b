package history

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing and local runs. Production should use
// PostgresRepository.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records []*Record
}

// NewInMemoryRepository creates a new in-memory record repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Insert stores copies of records.
func (r *InMemoryRepository) Insert(_ context.Context, records []*Record) ([]string, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, len(records))
	for i, rec := range records {
		cpy := *rec
		r.records = append(r.records, &cpy)
		ids[i] = rec.ID
	}
	return ids, nil
}

// List returns matching records, newest first.
func (r *InMemoryRepository) List(_ context.Context, filter Filter) ([]*Record, error) {
	filter = filter.Normalize()

	r.mu.RLock()
	var out []*Record
	for _, rec := range r.records {
		if filter.Matches(rec) {
			cpy := *rec
			out = append(out, &cpy)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Count returns the number of stored records.
func (r *InMemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
