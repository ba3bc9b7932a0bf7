package memory

import (
	"context"
	"time"

	v1 "github.com/vellum-cms/vellum/internal/api/v1"
	"github.com/vellum-cms/vellum/internal/core/storage"
)

// tx applies writes to the working snapshot of one WithTx call.
type tx struct {
	view
	now func() time.Time
}

func (t *tx) InsertVariant(ctx context.Context, v *v1.Variant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, row := range t.st.variants {
		if row.ContentType == v.ContentType && row.DocumentID == v.DocumentID &&
			row.Status == v.Status && row.Locale == v.Locale {
			return storage.ErrDuplicate
		}
	}

	now := t.now()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = now
	}
	v.ID = t.st.allocID()
	t.st.variants[v.ID] = cloneVariant(v)
	return nil
}

func (t *tx) UpdateVariantData(ctx context.Context, id int64, data map[string]interface{}, updatedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	row, ok := t.st.variants[id]
	if !ok {
		return storage.ErrNotFound
	}
	row.Data = cloneData(data)
	row.UpdatedAt = updatedAt
	return nil
}

func (t *tx) DeleteVariant(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := t.st.variants[id]; !ok {
		return storage.ErrNotFound
	}
	if err := t.DeleteComponents(ctx, id); err != nil {
		return err
	}
	for lid, l := range t.st.links {
		if l.SourceKind == v1.OwnerVariant && l.SourceID == id {
			delete(t.st.links, lid)
		}
	}
	delete(t.st.variants, id)
	return nil
}

func (t *tx) InsertComponent(ctx context.Context, c *v1.Component) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := t.st.variants[c.VariantID]; !ok {
		return storage.ErrNotFound
	}
	c.ID = t.st.allocID()
	t.st.components[c.ID] = cloneComponent(c)
	return nil
}

func (t *tx) DeleteComponents(ctx context.Context, variantID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for lid, l := range t.st.links {
		if l.SourceKind == v1.OwnerComponent && t.st.ownedBy(l, variantID) {
			delete(t.st.links, lid)
		}
	}
	for id, c := range t.st.components {
		if c.VariantID == variantID {
			delete(t.st.components, id)
		}
	}
	return nil
}

func (t *tx) ReplaceLinks(ctx context.Context, set storage.LinkSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	kept := make(map[string]int)
	for lid, l := range t.st.links {
		if l.SourceKind == set.Source.Kind && l.SourceID == set.Source.ID && l.Field == set.Field {
			kept[l.TargetDocumentID] = l.InversePosition
			delete(t.st.links, lid)
		}
	}

	if set.Exclusive {
		targets := make(map[string]bool, len(set.TargetDocumentIDs))
		for _, id := range set.TargetDocumentIDs {
			targets[id] = true
		}
		for lid, l := range t.st.links {
			if l.SourceKind != v1.OwnerVariant || l.SourceUID != set.Source.UID || l.Field != set.Field ||
				!targets[l.TargetDocumentID] {
				continue
			}
			src, ok := t.st.variants[l.SourceID]
			if ok && src.Status == set.Status && src.Locale == set.Locale {
				delete(t.st.links, lid)
			}
		}
	}

	for pos, target := range set.TargetDocumentIDs {
		inversePos, ok := kept[target]
		if !ok {
			inversePos = t.nextInversePosition(set.Source.UID, set.Field, target)
		}
		id := t.st.allocID()
		t.st.links[id] = &v1.Link{
			ID:               id,
			SourceKind:       set.Source.Kind,
			SourceID:         set.Source.ID,
			SourceUID:        set.Source.UID,
			Field:            set.Field,
			TargetUID:        set.TargetUID,
			TargetDocumentID: target,
			Position:         pos + 1,
			InversePosition:  inversePos,
		}
	}
	return nil
}

func (t *tx) nextInversePosition(sourceUID, field, target string) int {
	max := 0
	for _, l := range t.st.links {
		if l.SourceUID == sourceUID && l.Field == field && l.TargetDocumentID == target && l.InversePosition > max {
			max = l.InversePosition
		}
	}
	return max + 1
}

func (t *tx) SetInversePositions(ctx context.Context, q storage.InverseQuery, sources []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	order := make(map[string]int, len(sources))
	for i, id := range sources {
		order[id] = i + 1
	}
	for _, l := range t.st.links {
		if l.SourceKind != v1.OwnerVariant || l.SourceUID != q.SourceUID || l.Field != q.Field ||
			l.TargetDocumentID != q.TargetDocumentID {
			continue
		}
		src, ok := t.st.variants[l.SourceID]
		if !ok || src.Status != q.Status || src.Locale != q.Locale {
			continue
		}
		if pos, ok := order[src.DocumentID]; ok {
			l.InversePosition = pos
		}
	}
	return nil
}

func (t *tx) DeleteInboundLinks(ctx context.Context, targetUID, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for lid, l := range t.st.links {
		if l.TargetUID == targetUID && l.TargetDocumentID == documentID {
			delete(t.st.links, lid)
		}
	}
	return nil
}
