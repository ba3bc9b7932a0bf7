package document

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/vellum-cms/vellum/internal/api/v1"
	coreerrors "github.com/vellum-cms/vellum/internal/core/errors"
	"github.com/vellum-cms/vellum/internal/schema/schematest"
)

func TestResolver_Locale(t *testing.T) {
	svc, _ := newTestService(t)
	r := svc.Resolver()

	product, err := r.Model(schematest.ProductUID)
	require.NoError(t, err)
	article, err := r.Model(schematest.ArticleUID)
	require.NoError(t, err)

	assert.Equal(t, v1.NoLocale, r.Locale(product, "fr"))
	assert.Equal(t, "en", r.Locale(article, ""))
	assert.Equal(t, "fr", r.Locale(article, "fr"))
}

func TestResolver_Resolve(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	r := svc.Resolver()
	p := mustCreate(t, svc, schematest.ProductUID, map[string]interface{}{"name": "Skate"})

	tests := []struct {
		name    string
		ref     Ref
		status  v1.Status
		locale  string
		wantErr bool
	}{
		{"by documentId", Ref{ContentType: schematest.ProductUID, DocumentID: p.DocumentID}, v1.StatusDraft, "", false},
		{"locale ignored for non-localized", Ref{ContentType: schematest.ProductUID, DocumentID: p.DocumentID}, v1.StatusDraft, "fr", false},
		{"by storage id", Ref{ContentType: schematest.ProductUID, EntityID: p.ID}, v1.StatusDraft, "", false},
		{"no published variant", Ref{ContentType: schematest.ProductUID, DocumentID: p.DocumentID}, v1.StatusPublished, "", true},
		{"unknown documentId", Ref{ContentType: schematest.ProductUID, DocumentID: "nope"}, v1.StatusDraft, "", true},
		{"unknown storage id", Ref{ContentType: schematest.ProductUID, EntityID: 999}, v1.StatusDraft, "", true},
		{"missing documentId", Ref{ContentType: schematest.ProductUID}, v1.StatusDraft, "", true},
		{"unknown content type", Ref{ContentType: "api::nope.nope", DocumentID: p.DocumentID}, v1.StatusDraft, "", true},
		{"component uid", Ref{ContentType: schematest.CompoUID, DocumentID: p.DocumentID}, v1.StatusDraft, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := r.Resolve(ctx, tt.ref, tt.status, tt.locale)
			if tt.wantErr {
				assert.True(t, errors.Is(err, coreerrors.NotFound("")), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, p.DocumentID, v.DocumentID)
			assert.Equal(t, v1.NoLocale, v.Locale)
		})
	}
}
