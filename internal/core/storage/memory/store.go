package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	v1 "github.com/vellum-cms/vellum/internal/api/v1"
	"github.com/vellum-cms/vellum/internal/core/storage"
)

// Store implements storage.DocumentStore in process memory.
//
// Committed snapshots are never mutated: a transaction clones the current snapshot,
// applies its writes and swaps the pointer on commit. Readers therefore always see a
// consistent snapshot without holding a lock while they work.
type Store struct {
	mu  sync.RWMutex
	st  *state
	now func() time.Time
}

// New creates an empty in-memory document store.
func New() *Store {
	return &Store{
		st:  newState(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) snapshot() view {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{st: s.st}
}

// WithTx runs fn against a private copy of the store and commits it when fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&tx{view: view{st: work}, now: s.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	slog.Info("[Memory] Document store closed")
	return nil
}

func (s *Store) GetVariant(ctx context.Context, key storage.VariantKey) (*v1.Variant, error) {
	return s.snapshot().GetVariant(ctx, key)
}

func (s *Store) GetVariantByID(ctx context.Context, contentType string, id int64) (*v1.Variant, error) {
	return s.snapshot().GetVariantByID(ctx, contentType, id)
}

func (s *Store) ListVariants(ctx context.Context, contentType, documentID string) ([]*v1.Variant, error) {
	return s.snapshot().ListVariants(ctx, contentType, documentID)
}

func (s *Store) FindVariants(ctx context.Context, q storage.VariantQuery) ([]*v1.Variant, int, error) {
	return s.snapshot().FindVariants(ctx, q)
}

func (s *Store) ExistingDocumentIDs(ctx context.Context, contentType string, documentIDs []string, status v1.Status, locale string) (map[string]bool, error) {
	return s.snapshot().ExistingDocumentIDs(ctx, contentType, documentIDs, status, locale)
}

func (s *Store) PublishedAt(ctx context.Context, contentType string, documentIDs []string, locale string) (map[string]time.Time, error) {
	return s.snapshot().PublishedAt(ctx, contentType, documentIDs, locale)
}

func (s *Store) GetComponent(ctx context.Context, id int64) (*v1.Component, error) {
	return s.snapshot().GetComponent(ctx, id)
}

func (s *Store) ListComponents(ctx context.Context, variantID int64) ([]*v1.Component, error) {
	return s.snapshot().ListComponents(ctx, variantID)
}

func (s *Store) ListLinks(ctx context.Context, source v1.LinkSource, field string) ([]*v1.Link, error) {
	return s.snapshot().ListLinks(ctx, source, field)
}

func (s *Store) ListInverseSources(ctx context.Context, q storage.InverseQuery) ([]string, error) {
	return s.snapshot().ListInverseSources(ctx, q)
}

// view implements storage.Reader over one snapshot. Returned values are copies.
type view struct {
	st *state
}

func (v view) GetVariant(ctx context.Context, key storage.VariantKey) (*v1.Variant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, row := range v.st.variants {
		if row.ContentType == key.ContentType && row.DocumentID == key.DocumentID &&
			row.Status == key.Status && row.Locale == key.Locale {
			return cloneVariant(row), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (v view) GetVariantByID(ctx context.Context, contentType string, id int64) (*v1.Variant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row, ok := v.st.variants[id]
	if !ok || row.ContentType != contentType {
		return nil, storage.ErrNotFound
	}
	return cloneVariant(row), nil
}

func (v view) ListVariants(ctx context.Context, contentType, documentID string) ([]*v1.Variant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*v1.Variant
	for _, row := range v.st.variants {
		if row.ContentType == contentType && row.DocumentID == documentID {
			out = append(out, cloneVariant(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v view) FindVariants(ctx context.Context, q storage.VariantQuery) ([]*v1.Variant, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	var allowed map[string]bool
	if q.DocumentIDs != nil {
		allowed = make(map[string]bool, len(q.DocumentIDs))
		for _, id := range q.DocumentIDs {
			allowed[id] = true
		}
	}

	var matched []*v1.Variant
	for _, row := range v.st.variants {
		if row.ContentType != q.ContentType || row.Status != q.Status || row.Locale != q.Locale {
			continue
		}
		if allowed != nil && !allowed[row.DocumentID] {
			continue
		}
		matched = append(matched, row)
	}

	sort.Slice(matched, func(i, j int) bool {
		if q.SortField != "" {
			a, aok := sortKey(matched[i].Data[q.SortField])
			b, bok := sortKey(matched[j].Data[q.SortField])
			switch {
			case aok && !bok:
				return true
			case !aok && bok:
				return false
			case aok && bok && a != b:
				return a < b
			}
		}
		return matched[i].ID < matched[j].ID
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

	out := make([]*v1.Variant, 0, end-start)
	for _, row := range matched[start:end] {
		out = append(out, cloneVariant(row))
	}
	return out, total, nil
}

func (v view) ExistingDocumentIDs(ctx context.Context, contentType string, documentIDs []string, status v1.Status, locale string) (map[string]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(documentIDs))
	for _, id := range documentIDs {
		wanted[id] = true
	}
	out := make(map[string]bool)
	for _, row := range v.st.variants {
		if row.ContentType == contentType && row.Status == status && row.Locale == locale && wanted[row.DocumentID] {
			out[row.DocumentID] = true
		}
	}
	return out, nil
}

func (v view) PublishedAt(ctx context.Context, contentType string, documentIDs []string, locale string) (map[string]time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(documentIDs))
	for _, id := range documentIDs {
		wanted[id] = true
	}
	out := make(map[string]time.Time)
	for _, row := range v.st.variants {
		if row.ContentType == contentType && row.Status == v1.StatusPublished && row.Locale == locale &&
			wanted[row.DocumentID] && row.PublishedAt != nil {
			out[row.DocumentID] = *row.PublishedAt
		}
	}
	return out, nil
}

func (v view) GetComponent(ctx context.Context, id int64) (*v1.Component, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, ok := v.st.components[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneComponent(c), nil
}

func (v view) ListComponents(ctx context.Context, variantID int64) ([]*v1.Component, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*v1.Component
	for _, c := range v.st.components {
		if c.VariantID == variantID {
			out = append(out, cloneComponent(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ParentKind != b.ParentKind {
			return a.ParentKind > b.ParentKind // variant before component
		}
		if a.ParentID != b.ParentID {
			return a.ParentID < b.ParentID
		}
		if a.Field != b.Field {
			return a.Field < b.Field
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (v view) ListLinks(ctx context.Context, source v1.LinkSource, field string) ([]*v1.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	links := v.st.sortedLinks(
		func(l *v1.Link) bool {
			return l.SourceKind == source.Kind && l.SourceID == source.ID && (field == "" || l.Field == field)
		},
		func(a, b *v1.Link) bool {
			if a.Field != b.Field {
				return a.Field < b.Field
			}
			return a.Position < b.Position
		},
	)
	out := make([]*v1.Link, len(links))
	for i, l := range links {
		copy := *l
		out[i] = &copy
	}
	return out, nil
}

func (v view) ListInverseSources(ctx context.Context, q storage.InverseQuery) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	links := v.st.sortedLinks(
		func(l *v1.Link) bool {
			if l.SourceKind != v1.OwnerVariant || l.SourceUID != q.SourceUID || l.Field != q.Field ||
				l.TargetDocumentID != q.TargetDocumentID {
				return false
			}
			src, ok := v.st.variants[l.SourceID]
			return ok && src.Status == q.Status && src.Locale == q.Locale
		},
		func(a, b *v1.Link) bool { return a.InversePosition < b.InversePosition },
	)

	seen := make(map[string]bool, len(links))
	var out []string
	for _, l := range links {
		docID := v.st.variants[l.SourceID].DocumentID
		if !seen[docID] {
			seen[docID] = true
			out = append(out, docID)
		}
	}
	return out, nil
}
