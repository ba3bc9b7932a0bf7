package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	v1 "github.com/vellum-cms/vellum/internal/api/v1"
	"github.com/vellum-cms/vellum/internal/core/storage"
)

const (
	shopUID    = "api::shop.shop"
	productUID = "api::product.product"
)

func insertVariant(t *testing.T, s *Store, uid, docID string, status v1.Status, data map[string]interface{}) *v1.Variant {
	t.Helper()
	v := &v1.Variant{DocumentID: docID, ContentType: uid, Status: status, Data: data}
	if status == v1.StatusPublished {
		now := time.Now().UTC()
		v.PublishedAt = &now
	}
	require.NoError(t, s.WithTx(context.Background(), func(tx storage.Tx) error {
		return tx.InsertVariant(context.Background(), v)
	}))
	return v
}

func replace(t *testing.T, s *Store, owner *v1.Variant, field string, exclusive bool, targets ...string) {
	t.Helper()
	require.NoError(t, s.WithTx(context.Background(), func(tx storage.Tx) error {
		return tx.ReplaceLinks(context.Background(), storage.LinkSet{
			Source:            v1.SourceOf(owner),
			Field:             field,
			TargetUID:         productUID,
			TargetDocumentIDs: targets,
			Exclusive:         exclusive,
			Status:            owner.Status,
			Locale:            owner.Locale,
		})
	}))
}

func TestStore_InsertVariantDuplicate(t *testing.T) {
	s := New()
	insertVariant(t, s, productUID, "skate", v1.StatusDraft, nil)

	err := s.WithTx(context.Background(), func(tx storage.Tx) error {
		return tx.InsertVariant(context.Background(), &v1.Variant{DocumentID: "skate", ContentType: productUID, Status: v1.StatusDraft})
	})
	require.ErrorIs(t, err, storage.ErrDuplicate)
}

func TestStore_FailedTxLeavesNoTrace(t *testing.T) {
	s := New()
	boom := errors.New("boom")

	err := s.WithTx(context.Background(), func(tx storage.Tx) error {
		if err := tx.InsertVariant(context.Background(), &v1.Variant{DocumentID: "skate", ContentType: productUID, Status: v1.StatusDraft}); err != nil {
			return err
		}
		// Reads inside the tx see the write.
		_, err := tx.GetVariant(context.Background(), storage.VariantKey{ContentType: productUID, DocumentID: "skate", Status: v1.StatusDraft})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetVariant(context.Background(), storage.VariantKey{ContentType: productUID, DocumentID: "skate", Status: v1.StatusDraft})
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_ReturnedVariantsAreCopies(t *testing.T) {
	s := New()
	v := insertVariant(t, s, productUID, "skate", v1.StatusDraft, map[string]interface{}{"name": "Skate"})

	got, err := s.GetVariantByID(context.Background(), productUID, v.ID)
	require.NoError(t, err)
	got.Data["name"] = "mutated"

	again, err := s.GetVariantByID(context.Background(), productUID, v.ID)
	require.NoError(t, err)
	require.Equal(t, "Skate", again.Data["name"])
}

func TestStore_FindVariantsSortsAndPages(t *testing.T) {
	s := New()
	insertVariant(t, s, productUID, "tofu", v1.StatusDraft, map[string]interface{}{"name": "Tofu"})
	insertVariant(t, s, productUID, "skate", v1.StatusDraft, map[string]interface{}{"name": "Skate"})
	insertVariant(t, s, productUID, "candle", v1.StatusDraft, map[string]interface{}{"name": "Candle"})
	insertVariant(t, s, productUID, "noname", v1.StatusDraft, map[string]interface{}{})

	page, total, err := s.FindVariants(context.Background(), storage.VariantQuery{
		ContentType: productUID,
		Status:      v1.StatusDraft,
		SortField:   "name",
		Offset:      1,
		Limit:       2,
	})
	require.NoError(t, err)
	require.Equal(t, 4, total)
	require.Len(t, page, 2)
	require.Equal(t, "skate", page[0].DocumentID)
	require.Equal(t, "tofu", page[1].DocumentID)

	page, total, err = s.FindVariants(context.Background(), storage.VariantQuery{
		ContentType: productUID,
		Status:      v1.StatusDraft,
		DocumentIDs: []string{},
	})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, page)
}

func TestStore_ReplaceLinksOrdersAndKeepsInversePosition(t *testing.T) {
	s := New()
	shopA := insertVariant(t, s, shopUID, "shop-a", v1.StatusDraft, nil)
	shopB := insertVariant(t, s, shopUID, "shop-b", v1.StatusDraft, nil)

	replace(t, s, shopB, "products_mm", false, "skate")
	replace(t, s, shopA, "products_mm", false, "skate", "candle")
	// Reordering shop A keeps it behind shop B on the inverse side.
	replace(t, s, shopA, "products_mm", false, "candle", "skate")

	links, err := s.ListLinks(context.Background(), v1.SourceOf(shopA), "products_mm")
	require.NoError(t, err)
	require.Len(t, links, 2)
	require.Equal(t, "candle", links[0].TargetDocumentID)
	require.Equal(t, 1, links[0].Position)
	require.Equal(t, "skate", links[1].TargetDocumentID)

	sources, err := s.ListInverseSources(context.Background(), storage.InverseQuery{
		SourceUID:        shopUID,
		Field:            "products_mm",
		TargetDocumentID: "skate",
		Status:           v1.StatusDraft,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"shop-b", "shop-a"}, sources)
}

func TestStore_ExclusiveReplaceStealsWithinSameStatus(t *testing.T) {
	s := New()
	draftA := insertVariant(t, s, shopUID, "shop-a", v1.StatusDraft, nil)
	publishedA := insertVariant(t, s, shopUID, "shop-a", v1.StatusPublished, nil)
	draftB := insertVariant(t, s, shopUID, "shop-b", v1.StatusDraft, nil)

	replace(t, s, draftA, "products_om", true, "skate", "candle")
	replace(t, s, publishedA, "products_om", true, "skate")
	replace(t, s, draftB, "products_om", true, "skate")

	links, err := s.ListLinks(context.Background(), v1.SourceOf(draftA), "products_om")
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, "candle", links[0].TargetDocumentID)

	// The published variant of shop A is untouched by a draft-side steal.
	links, err = s.ListLinks(context.Background(), v1.SourceOf(publishedA), "products_om")
	require.NoError(t, err)
	require.Len(t, links, 1)
}

func TestStore_DeleteVariantCascades(t *testing.T) {
	s := New()
	shop := insertVariant(t, s, shopUID, "shop-a", v1.StatusDraft, nil)
	replace(t, s, shop, "products_mm", false, "skate")

	var comp *v1.Component
	require.NoError(t, s.WithTx(context.Background(), func(tx storage.Tx) error {
		comp = &v1.Component{ComponentUID: "default.compo", VariantID: shop.ID, ParentKind: v1.OwnerVariant, ParentID: shop.ID, Field: "myCompo", Position: 1}
		if err := tx.InsertComponent(context.Background(), comp); err != nil {
			return err
		}
		return tx.ReplaceLinks(context.Background(), storage.LinkSet{
			Source: v1.ComponentSource(comp), Field: "compo_products_mw", TargetUID: productUID, TargetDocumentIDs: []string{"candle"},
		})
	}))

	require.NoError(t, s.WithTx(context.Background(), func(tx storage.Tx) error {
		return tx.DeleteVariant(context.Background(), shop.ID)
	}))

	_, err := s.GetComponent(context.Background(), comp.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
	links, err := s.ListLinks(context.Background(), v1.ComponentSource(comp), "")
	require.NoError(t, err)
	require.Empty(t, links)
	links, err = s.ListLinks(context.Background(), v1.SourceOf(shop), "")
	require.NoError(t, err)
	require.Empty(t, links)
}

func TestStore_PublishedAtAndExisting(t *testing.T) {
	s := New()
	insertVariant(t, s, productUID, "skate", v1.StatusDraft, nil)
	insertVariant(t, s, productUID, "skate", v1.StatusPublished, nil)
	insertVariant(t, s, productUID, "candle", v1.StatusDraft, nil)

	published, err := s.PublishedAt(context.Background(), productUID, []string{"skate", "candle"}, v1.NoLocale)
	require.NoError(t, err)
	require.Contains(t, published, "skate")
	require.NotContains(t, published, "candle")

	existing, err := s.ExistingDocumentIDs(context.Background(), productUID, []string{"skate", "candle", "tofu"}, v1.StatusPublished, v1.NoLocale)
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"skate": true}, existing)
}

func TestStore_HonoursCancellation(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.GetVariant(ctx, storage.VariantKey{ContentType: productUID, DocumentID: "skate", Status: v1.StatusDraft})
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, s.WithTx(ctx, func(tx storage.Tx) error { return nil }), context.Canceled)
}
