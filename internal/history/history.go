// Package history records immutable snapshots of document variants and pages through
// them newest first.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	v1 "github.com/vellum-cms/vellum/internal/api/v1"
	coreerrors "github.com/vellum-cms/vellum/internal/core/errors"
	"github.com/vellum-cms/vellum/internal/core/pagination"
	"github.com/vellum-cms/vellum/internal/schema"
)

// DefaultPageSize applies when a query does not set pageSize.
const DefaultPageSize = 20

// StoreQuery selects versions of one content type, newest first. Empty DocumentID and
// Locale do not filter; Limit 0 returns everything after Offset.
type StoreQuery struct {
	ContentType string
	DocumentID  string
	Locale      string
	Offset      int
	Limit       int
}

// Store persists history versions. Versions are never updated.
type Store interface {
	Insert(ctx context.Context, version *v1.HistoryVersion) error
	Find(ctx context.Context, q StoreQuery) ([]*v1.HistoryVersion, int, error)
}

// Query is a findVersionsPage request. It is expected to be already scoped by the
// caller's permission checks.
type Query struct {
	ContentType string `form:"contentType"`
	DocumentID  string `form:"documentId"`
	Locale      string `form:"locale"`
	pagination.Params
}

// Page is one page of versions.
type Page struct {
	Results    []*v1.HistoryVersion `json:"results"`
	Pagination pagination.PageInfo  `json:"pagination"`
}

// Service writes and reads history versions.
type Service struct {
	registry *schema.Registry
	store    Store
	limits   pagination.Limits
}

func NewService(reg *schema.Registry, store Store, maxPageSize int) *Service {
	return &Service{
		registry: reg,
		store:    store,
		limits:   pagination.Limits{DefaultPageSize: DefaultPageSize, MaxPageSize: maxPageSize},
	}
}

// Record stores version, assigning an id when it has none.
func (s *Service) Record(ctx context.Context, version *v1.HistoryVersion) error {
	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	if err := s.store.Insert(ctx, version); err != nil {
		return fmt.Errorf("failed to record history version of %s %s: %w", version.ContentType, version.DocumentID, err)
	}
	slog.Debug("History version recorded",
		"content_type", version.ContentType, "document_id", version.DocumentID, "status", version.Status)
	return nil
}

// FindVersionsPage returns a page of versions, newest first. Without a documentId every
// version of the content type is listed.
func (s *Service) FindVersionsPage(ctx context.Context, q Query) (*Page, error) {
	if q.ContentType == "" && q.DocumentID == "" {
		return nil, coreerrors.Forbidden("contentType and documentId are required")
	}
	if q.ContentType == "" {
		return nil, coreerrors.Forbidden("contentType is required")
	}
	m, err := s.registry.Get(q.ContentType)
	if errors.Is(err, schema.ErrNotFound) || (err == nil && m.IsComponent()) {
		return nil, coreerrors.NotFound(fmt.Sprintf("content type %q not found", q.ContentType))
	}
	if err != nil {
		return nil, err
	}
	page, err := s.limits.Normalize(q.Params)
	if err != nil {
		return nil, coreerrors.BadRequest(err.Error())
	}

	versions, total, err := s.store.Find(ctx, StoreQuery{
		ContentType: m.UID,
		DocumentID:  q.DocumentID,
		Locale:      q.Locale,
		Offset:      page.Offset(),
		Limit:       page.PageSize,
	})
	if err != nil {
		return nil, err
	}
	if versions == nil {
		versions = []*v1.HistoryVersion{}
	}
	return &Page{Results: versions, Pagination: page.Info(total)}, nil
}
