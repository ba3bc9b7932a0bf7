package document

import (
	"context"
	"errors"
	"fmt"

	v1 "github.com/vellum-cms/vellum/internal/api/v1"
	coreerrors "github.com/vellum-cms/vellum/internal/core/errors"
	"github.com/vellum-cms/vellum/internal/core/storage"
	"github.com/vellum-cms/vellum/internal/schema"
)

// Ref identifies a document by documentId or by the storage id of one of its variants.
// Both may be empty for single types.
type Ref struct {
	ContentType string
	DocumentID  string
	EntityID    int64
}

// Resolver maps (documentId, status, locale) onto the stored variant row.
type Resolver struct {
	registry      *schema.Registry
	store         storage.Reader
	defaultLocale string
}

// NewResolver creates a resolver. defaultLocale applies to localized content types
// when the caller supplies no locale.
func NewResolver(reg *schema.Registry, store storage.Reader, defaultLocale string) *Resolver {
	return &Resolver{
		registry:      reg,
		store:         store,
		defaultLocale: defaultLocale,
	}
}

// Model returns the content type schema for uid, or NotFound for unknown UIDs and components.
func (r *Resolver) Model(uid string) (*schema.Model, error) {
	m, err := r.registry.Get(uid)
	if err != nil || m.IsComponent() {
		return nil, coreerrors.NotFound(fmt.Sprintf("content type %q not found", uid))
	}
	return m, nil
}

// Locale normalizes a requested locale for m: localized types fall back to the default
// locale, non-localized types ignore the request.
func (r *Resolver) Locale(m *schema.Model, requested string) string {
	if !m.Localized {
		return v1.NoLocale
	}
	if requested == "" {
		return r.defaultLocale
	}
	return requested
}

// Resolve returns the variant of ref at (status, locale).
func (r *Resolver) Resolve(ctx context.Context, ref Ref, status v1.Status, locale string) (*v1.Variant, error) {
	return r.resolveWith(ctx, r.store, ref, status, locale)
}

func (r *Resolver) resolveWith(ctx context.Context, store storage.Reader, ref Ref, status v1.Status, locale string) (*v1.Variant, error) {
	m, err := r.Model(ref.ContentType)
	if err != nil {
		return nil, err
	}

	documentID := ref.DocumentID
	switch {
	case ref.EntityID != 0:
		row, err := store.GetVariantByID(ctx, m.UID, ref.EntityID)
		if err != nil {
			return nil, notFoundOr(err)
		}
		documentID = row.DocumentID
		if m.Localized && locale == "" {
			locale = row.Locale
		}
	case documentID == "" && m.IsSingleType():
		rows, _, err := store.FindVariants(ctx, storage.VariantQuery{
			ContentType: m.UID,
			Status:      status,
			Locale:      r.Locale(m, locale),
			Limit:       1,
		})
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, coreerrors.NotFound("")
		}
		return rows[0], nil
	case documentID == "":
		return nil, coreerrors.NotFound("")
	}

	v, err := store.GetVariant(ctx, storage.VariantKey{
		ContentType: m.UID,
		DocumentID:  documentID,
		Status:      status,
		Locale:      r.Locale(m, locale),
	})
	if err != nil {
		return nil, notFoundOr(err)
	}
	return v, nil
}

// SingleDocumentID returns the documentId of a single type's document, if it exists
// in any status. Other locales of a localized single type share the documentId of the
// default-locale document.
func (r *Resolver) SingleDocumentID(ctx context.Context, store storage.Reader, m *schema.Model, locale string) (string, error) {
	locales := []string{r.Locale(m, locale)}
	if m.Localized && locales[0] != r.defaultLocale {
		locales = append(locales, r.defaultLocale)
	}
	for _, loc := range locales {
		for _, status := range []v1.Status{v1.StatusDraft, v1.StatusPublished} {
			rows, _, err := store.FindVariants(ctx, storage.VariantQuery{
				ContentType: m.UID,
				Status:      status,
				Locale:      loc,
				Limit:       1,
			})
			if err != nil {
				return "", err
			}
			if len(rows) > 0 {
				return rows[0].DocumentID, nil
			}
		}
	}
	return "", nil
}

func notFoundOr(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return coreerrors.NotFound("")
	}
	return err
}
