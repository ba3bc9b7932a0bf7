package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	v1 "github.com/vellum-cms/vellum/internal/api/v1"
)

// marshalData encodes a data map as JSONB. A nil map is stored as an empty object.
func marshalData(data map[string]interface{}) ([]byte, error) {
	if data == nil {
		return []byte(`{}`), nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal data: %w", err)
	}
	return raw, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanVariantRow scans a row selected with variantColumns.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanVariantRow(row scanner) (*v1.Variant, error) {
	var v v1.Variant
	var status string
	var dataJSON []byte
	var publishedAt sql.NullTime

	err := row.Scan(
		&v.ID,
		&v.DocumentID,
		&v.ContentType,
		&status,
		&v.Locale,
		&dataJSON,
		&v.CreatedAt,
		&v.UpdatedAt,
		&publishedAt,
	)
	if err != nil {
		return nil, err
	}

	v.Status = v1.Status(status)
	if publishedAt.Valid {
		t := publishedAt.Time
		v.PublishedAt = &t
	}
	if err := json.Unmarshal(dataJSON, &v.Data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variant data: %w", err)
	}
	return &v, nil
}

func scanComponentRow(row scanner) (*v1.Component, error) {
	var c v1.Component
	var parentKind string
	var dataJSON []byte

	err := row.Scan(
		&c.ID,
		&c.ComponentUID,
		&c.VariantID,
		&parentKind,
		&c.ParentID,
		&c.Field,
		&c.Position,
		&dataJSON,
	)
	if err != nil {
		return nil, err
	}

	c.ParentKind = v1.OwnerKind(parentKind)
	if err := json.Unmarshal(dataJSON, &c.Data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal component data: %w", err)
	}
	return &c, nil
}

func scanLinkRow(row scanner) (*v1.Link, error) {
	var l v1.Link
	var sourceKind string

	err := row.Scan(
		&l.ID,
		&sourceKind,
		&l.SourceID,
		&l.SourceUID,
		&l.Field,
		&l.TargetUID,
		&l.TargetDocumentID,
		&l.Position,
		&l.InversePosition,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan link row: %w", err)
	}
	l.SourceKind = v1.OwnerKind(sourceKind)
	return &l, nil
}

func nullableLimit(limit int) interface{} {
	if limit <= 0 {
		return nil
	}
	return limit
}
