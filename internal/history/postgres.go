package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	v1 "github.com/vellum-cms/vellum/internal/api/v1"
)

const (
	queryInsertVersion = `
		INSERT INTO history_versions (id, content_type, document_id, status, locale, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	// Empty $2/$3 disable the documentId/locale filters.
	queryCountVersions = `
		SELECT COUNT(*)
		FROM history_versions
		WHERE content_type = $1
		  AND ($2 = '' OR document_id = $2)
		  AND ($3 = '' OR locale = $3)
	`

	queryFindVersions = `
		SELECT id, content_type, document_id, status, locale, data, created_at
		FROM history_versions
		WHERE content_type = $1
		  AND ($2 = '' OR document_id = $2)
		  AND ($3 = '' OR locale = $3)
		ORDER BY created_at DESC, id DESC
		OFFSET $4
		LIMIT $5
	`
)

// PostgresStore stores versions in the history_versions table of the document database.
type PostgresStore struct {
	insert *sql.Stmt
	count  *sql.Stmt
	find   *sql.Stmt
}

// NewPostgresStore prepares the history statements on db.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{}
	for _, p := range []struct {
		stmt  **sql.Stmt
		query string
	}{
		{&s.insert, queryInsertVersion},
		{&s.count, queryCountVersions},
		{&s.find, queryFindVersions},
	} {
		stmt, err := db.Prepare(p.query)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to prepare history statement: %w", err)
		}
		*p.stmt = stmt
	}
	return s, nil
}

func (s *PostgresStore) Insert(ctx context.Context, version *v1.HistoryVersion) error {
	data, err := json.Marshal(version.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal history data: %w", err)
	}
	_, err = s.insert.ExecContext(ctx,
		version.ID, version.ContentType, version.DocumentID, string(version.Status),
		version.Locale, data, version.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert history version: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, q StoreQuery) ([]*v1.HistoryVersion, int, error) {
	var total int
	if err := s.count.QueryRowContext(ctx, q.ContentType, q.DocumentID, q.Locale).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count history versions: %w", err)
	}
	if total == 0 || q.Offset >= total {
		return []*v1.HistoryVersion{}, total, nil
	}

	var limit interface{}
	if q.Limit > 0 {
		limit = q.Limit
	}
	rows, err := s.find.QueryContext(ctx, q.ContentType, q.DocumentID, q.Locale, q.Offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query history versions: %w", err)
	}
	defer rows.Close()

	var out []*v1.HistoryVersion
	for rows.Next() {
		var (
			v      v1.HistoryVersion
			status string
			raw    []byte
		)
		if err := rows.Scan(&v.ID, &v.ContentType, &v.DocumentID, &status, &v.Locale, &raw, &v.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan history version: %w", err)
		}
		v.Status = v1.Status(status)
		if err := json.Unmarshal(raw, &v.Data); err != nil {
			return nil, 0, fmt.Errorf("failed to unmarshal history data of %s: %w", v.ID, err)
		}
		out = append(out, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate history versions: %w", err)
	}
	return out, total, nil
}

func (s *PostgresStore) Close() error {
	var firstErr error
	for _, stmt := range []*sql.Stmt{s.insert, s.count, s.find} {
		if stmt == nil {
			continue
		}
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
