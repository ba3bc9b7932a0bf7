package history

import (
	"context"
	"sort"
	"sync"

	v1 "github.com/vellum-cms/vellum/internal/api/v1"
)

// MemoryStore keeps versions in process. It backs the in-memory document store.
type MemoryStore struct {
	mu       sync.RWMutex
	versions []*v1.HistoryVersion
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(ctx context.Context, version *v1.HistoryVersion) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	copy := *version
	s.mu.Lock()
	s.versions = append(s.versions, &copy)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Find(ctx context.Context, q StoreQuery) ([]*v1.HistoryVersion, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	s.mu.RLock()
	var matched []*v1.HistoryVersion
	for i := len(s.versions) - 1; i >= 0; i-- {
		v := s.versions[i]
		if v.ContentType != q.ContentType ||
			(q.DocumentID != "" && v.DocumentID != q.DocumentID) ||
			(q.Locale != "" && v.Locale != q.Locale) {
			continue
		}
		copy := *v
		matched = append(matched, &copy)
	}
	s.mu.RUnlock()

	// Insertion order breaks ties between equal timestamps.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := q.Offset
	if start > total {
		start = total
	}
	end := total
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}
	return matched[start:end], total, nil
}
