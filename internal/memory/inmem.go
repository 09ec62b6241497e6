package memory

import (
	"context"
	"sort"
	"sync"
	"time"
)

type inmemEntry struct {
	record Record
	vector []float32
}

// InMemIndex is a mutex-guarded in-process Index. It backs tests and offline
// runs where no Weaviate instance is reachable.
type InMemIndex struct {
	mu      sync.RWMutex
	entries []inmemEntry
}

// NewInMemIndex returns an empty in-process index.
func NewInMemIndex() *InMemIndex {
	return &InMemIndex{}
}

// Insert implements Index.
func (x *InMemIndex) Insert(_ context.Context, rec Record, vector []float32) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	stored := make([]float32, len(vector))
	copy(stored, vector)

	x.entries = append(x.entries, inmemEntry{record: rec, vector: stored})

	return nil
}

// Query implements Index.
func (x *InMemIndex) Query(_ context.Context, vector []float32, filter Filter, limit int) ([]Neighbor, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	neighbors := make([]Neighbor, 0, len(x.entries))

	for _, entry := range x.entries {
		if entry.record.Ticker != filter.Ticker || !filter.matchesRole(entry.record.Role) {
			continue
		}

		neighbors = append(neighbors, Neighbor{
			Record:     entry.record,
			Similarity: cosine(vector, entry.vector),
		})
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Similarity > neighbors[j].Similarity
	})

	if limit > 0 && len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}

	return neighbors, nil
}

// Recent implements Index.
func (x *InMemIndex) Recent(_ context.Context, filter Filter, limit int) ([]Record, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	records := x.filtered(filter)

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}

// Oldest implements Index.
func (x *InMemIndex) Oldest(_ context.Context, filter Filter, before time.Time, limit int) ([]Record, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	all := x.filtered(filter)

	records := all[:0]

	for _, rec := range all {
		if rec.CreatedAt.Before(before) {
			records = append(records, rec)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}

// Delete implements Index.
func (x *InMemIndex) Delete(_ context.Context, ids []string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	doomed := make(map[string]bool, len(ids))
	for _, id := range ids {
		doomed[id] = true
	}

	kept := x.entries[:0]

	for _, entry := range x.entries {
		if !doomed[entry.record.ID] {
			kept = append(kept, entry)
		}
	}

	x.entries = kept

	return nil
}

// Count implements Index.
func (x *InMemIndex) Count(_ context.Context, filter Filter) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	return len(x.filtered(filter)), nil
}

func (x *InMemIndex) filtered(filter Filter) []Record {
	records := make([]Record, 0, len(x.entries))

	for _, entry := range x.entries {
		if entry.record.Ticker != filter.Ticker || !filter.matchesRole(entry.record.Role) {
			continue
		}

		records = append(records, entry.record)
	}

	return records
}
