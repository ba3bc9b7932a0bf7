package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	v1 "github.com/vellum-cms/vellum/internal/api/v1"
	"github.com/vellum-cms/vellum/internal/core/storage"
)

// tx implements storage.Tx on a *sql.Tx. Reads go through the embedded conn so they
// observe the transaction's own writes.
type tx struct {
	conn
}

func (t *tx) InsertVariant(ctx context.Context, v *v1.Variant) error {
	dataJSON, err := marshalData(v.Data)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = now
	}

	var publishedAt interface{}
	if v.PublishedAt != nil {
		publishedAt = *v.PublishedAt
	}

	var id int64
	err = t.tx.QueryRowContext(ctx, queryInsertVariant,
		v.DocumentID,
		v.ContentType,
		string(v.Status),
		v.Locale,
		dataJSON,
		v.CreatedAt,
		v.UpdatedAt,
		publishedAt,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		// ON CONFLICT DO NOTHING - the variant already exists
		return storage.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert variant: %w", err)
	}

	v.ID = id
	slog.Debug("[Postgres] Inserted variant",
		"content_type", v.ContentType,
		"document_id", v.DocumentID,
		"status", v.Status,
		"id", id)
	return nil
}

func (t *tx) UpdateVariantData(ctx context.Context, id int64, data map[string]interface{}, updatedAt time.Time) error {
	dataJSON, err := marshalData(data)
	if err != nil {
		return err
	}
	result, err := t.tx.ExecContext(ctx, queryUpdateVariantData, id, dataJSON, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to update variant %d: %w", id, err)
	}
	return requireAffected(result, id)
}

func (t *tx) DeleteVariant(ctx context.Context, id int64) error {
	if err := t.DeleteComponents(ctx, id); err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, queryDeleteVariantLinks, id); err != nil {
		return fmt.Errorf("failed to delete links of variant %d: %w", id, err)
	}
	result, err := t.tx.ExecContext(ctx, queryDeleteVariant, id)
	if err != nil {
		return fmt.Errorf("failed to delete variant %d: %w", id, err)
	}
	return requireAffected(result, id)
}

func (t *tx) InsertComponent(ctx context.Context, c *v1.Component) error {
	dataJSON, err := marshalData(c.Data)
	if err != nil {
		return err
	}

	var id int64
	err = t.tx.QueryRowContext(ctx, queryInsertComponent,
		c.ComponentUID,
		c.VariantID,
		string(c.ParentKind),
		c.ParentID,
		c.Field,
		c.Position,
		dataJSON,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to insert component: %w", err)
	}
	c.ID = id
	return nil
}

func (t *tx) DeleteComponents(ctx context.Context, variantID int64) error {
	if _, err := t.tx.ExecContext(ctx, queryDeleteComponentLinks, variantID); err != nil {
		return fmt.Errorf("failed to delete component links of variant %d: %w", variantID, err)
	}
	if _, err := t.tx.ExecContext(ctx, queryDeleteComponents, variantID); err != nil {
		return fmt.Errorf("failed to delete components of variant %d: %w", variantID, err)
	}
	return nil
}

func (t *tx) ReplaceLinks(ctx context.Context, set storage.LinkSet) error {
	kept, err := t.deleteFieldLinks(ctx, set)
	if err != nil {
		return err
	}

	if set.Exclusive && len(set.TargetDocumentIDs) > 0 {
		result, err := t.tx.ExecContext(ctx, queryStealLinks,
			set.Source.UID, set.Field, pq.Array(set.TargetDocumentIDs), string(set.Status), set.Locale)
		if err != nil {
			return fmt.Errorf("failed to detach exclusive targets: %w", err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			slog.Debug("[Postgres] Detached exclusive targets from other owners",
				"source_uid", set.Source.UID, "field", set.Field, "links", n)
		}
	}

	insert, err := t.tx.PrepareContext(ctx, queryInsertLink)
	if err != nil {
		return fmt.Errorf("failed to prepare link insert: %w", err)
	}
	defer insert.Close()

	for i, target := range set.TargetDocumentIDs {
		inversePos, ok := kept[target]
		if !ok {
			err := t.tx.QueryRowContext(ctx, queryNextInversePosition, set.Source.UID, set.Field, target).Scan(&inversePos)
			if err != nil {
				return fmt.Errorf("failed to compute inverse position: %w", err)
			}
		}
		if _, err := insert.ExecContext(ctx,
			string(set.Source.Kind),
			set.Source.ID,
			set.Source.UID,
			set.Field,
			set.TargetUID,
			target,
			i+1,
			inversePos,
		); err != nil {
			return fmt.Errorf("failed to insert link %s.%s -> %s: %w", set.Source.UID, set.Field, target, err)
		}
	}
	return nil
}

// deleteFieldLinks removes the current links of the field and returns the inverse
// position of every removed target.
func (t *tx) deleteFieldLinks(ctx context.Context, set storage.LinkSet) (map[string]int, error) {
	rows, err := t.tx.QueryContext(ctx, queryDeleteFieldLinks, string(set.Source.Kind), set.Source.ID, set.Field)
	if err != nil {
		return nil, fmt.Errorf("failed to delete field links: %w", err)
	}
	defer rows.Close()

	kept := make(map[string]int)
	for rows.Next() {
		var target string
		var inversePos int
		if err := rows.Scan(&target, &inversePos); err != nil {
			return nil, fmt.Errorf("failed to scan removed link: %w", err)
		}
		kept[target] = inversePos
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating removed links: %w", err)
	}
	return kept, nil
}

func (t *tx) SetInversePositions(ctx context.Context, q storage.InverseQuery, sources []string) error {
	if len(sources) == 0 {
		return nil
	}
	_, err := t.tx.ExecContext(ctx, querySetInversePositions,
		q.SourceUID, q.Field, q.TargetDocumentID, string(q.Status), q.Locale, pq.Array(sources))
	if err != nil {
		return fmt.Errorf("failed to reorder inverse links of %s.%s -> %s: %w", q.SourceUID, q.Field, q.TargetDocumentID, err)
	}
	return nil
}

func (t *tx) DeleteInboundLinks(ctx context.Context, targetUID, documentID string) error {
	if _, err := t.tx.ExecContext(ctx, queryDeleteInboundLinks, targetUID, documentID); err != nil {
		return fmt.Errorf("failed to delete inbound links of %s: %w", documentID, err)
	}
	return nil
}

func requireAffected(result sql.Result, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("variant %d: %w", id, storage.ErrNotFound)
	}
	return nil
}
