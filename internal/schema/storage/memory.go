package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/vellum-cms/vellum/internal/schema"
)

// MemoryRepository is an in-memory implementation of schema.Repository.
// Useful for testing and development.
type MemoryRepository struct {
	mu   sync.RWMutex
	defs map[string]*schema.Definition
}

// NewMemoryRepository creates a new in-memory schema repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		defs: make(map[string]*schema.Definition),
	}
}

// Put stores a definition under name, replacing any previous one.
func (r *MemoryRepository) Put(name string, format schema.Format, content []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.defs[name] = &schema.Definition{
		Name:        name,
		Format:      format,
		Content:     append([]byte(nil), content...),
		Fingerprint: schema.ComputeFingerprint(content),
	}
}

// List returns copies of all definitions ordered by name.
func (r *MemoryRepository) List(ctx context.Context) ([]*schema.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*schema.Definition, 0, len(r.defs))
	for _, d := range r.defs {
		copy := *d
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}
