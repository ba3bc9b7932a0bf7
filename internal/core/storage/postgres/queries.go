package postgres

// SQL queries for document, component and relation link storage.

const (
	variantColumns = `id, document_id, content_type, status, locale, data, created_at, updated_at, published_at`

	queryGetVariant = `
		SELECT ` + variantColumns + `
		FROM document_variants
		WHERE content_type = $1 AND document_id = $2 AND status = $3 AND locale = $4
	`

	queryGetVariantByID = `
		SELECT ` + variantColumns + `
		FROM document_variants
		WHERE content_type = $1 AND id = $2
	`

	queryListVariants = `
		SELECT ` + variantColumns + `
		FROM document_variants
		WHERE content_type = $1 AND document_id = $2
		ORDER BY id ASC
	`

	// queryFindVariants pages one (content type, status, locale) slice.
	// A NULL $4 disables the documentId filter; a NULL $7 means LIMIT ALL.
	// data->>'' is NULL for every row, so an empty sort field orders by id only.
	queryFindVariants = `
		SELECT ` + variantColumns + `
		FROM document_variants
		WHERE content_type = $1 AND status = $2 AND locale = $3
		  AND ($4::text[] IS NULL OR document_id = ANY($4))
		ORDER BY data->>$5::text ASC NULLS LAST, id ASC
		OFFSET $6
		LIMIT $7
	`

	queryCountVariants = `
		SELECT COUNT(*)
		FROM document_variants
		WHERE content_type = $1 AND status = $2 AND locale = $3
		  AND ($4::text[] IS NULL OR document_id = ANY($4))
	`

	queryExistingDocumentIDs = `
		SELECT document_id
		FROM document_variants
		WHERE content_type = $1 AND status = $2 AND locale = $3 AND document_id = ANY($4)
	`

	queryPublishedAt = `
		SELECT document_id, published_at
		FROM document_variants
		WHERE content_type = $1 AND status = 'published' AND locale = $2 AND document_id = ANY($3)
	`

	componentColumns = `id, component_uid, variant_id, parent_kind, parent_id, field, position, data`

	queryGetComponent = `
		SELECT ` + componentColumns + `
		FROM components
		WHERE id = $1
	`

	queryListComponents = `
		SELECT ` + componentColumns + `
		FROM components
		WHERE variant_id = $1
		ORDER BY CASE parent_kind WHEN 'variant' THEN 0 ELSE 1 END, parent_id, field, position, id
	`

	linkColumns = `id, source_kind, source_id, source_uid, field, target_uid, target_document_id, position, inverse_position`

	queryListLinks = `
		SELECT ` + linkColumns + `
		FROM relation_links
		WHERE source_kind = $1 AND source_id = $2 AND ($3::text = '' OR field = $3)
		ORDER BY field, position, id
	`

	// queryInverseSources reads the inverse projection of an edge: owning variants at
	// the requested status/locale that link to the target document.
	queryInverseSources = `
		SELECT v.document_id
		FROM relation_links l
		JOIN document_variants v ON v.id = l.source_id
		WHERE l.source_kind = 'variant'
		  AND l.source_uid = $1
		  AND l.field = $2
		  AND l.target_document_id = $3
		  AND v.status = $4
		  AND v.locale = $5
		ORDER BY l.inverse_position ASC, l.id ASC
	`

	// queryInsertVariant returns no rows (sql.ErrNoRows) on an identity collision.
	queryInsertVariant = `
		INSERT INTO document_variants (
			document_id, content_type, status, locale, data, created_at, updated_at, published_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (content_type, document_id, status, locale) DO NOTHING
		RETURNING id
	`

	queryUpdateVariantData = `
		UPDATE document_variants SET data = $2, updated_at = $3 WHERE id = $1
	`

	queryDeleteVariantLinks = `
		DELETE FROM relation_links WHERE source_kind = 'variant' AND source_id = $1
	`

	queryDeleteVariant = `DELETE FROM document_variants WHERE id = $1`

	queryInsertComponent = `
		INSERT INTO components (component_uid, variant_id, parent_kind, parent_id, field, position, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	queryDeleteComponentLinks = `
		DELETE FROM relation_links
		WHERE source_kind = 'component'
		  AND source_id IN (SELECT id FROM components WHERE variant_id = $1)
	`

	queryDeleteComponents = `DELETE FROM components WHERE variant_id = $1`

	queryDeleteFieldLinks = `
		DELETE FROM relation_links
		WHERE source_kind = $1 AND source_id = $2 AND field = $3
		RETURNING target_document_id, inverse_position
	`

	// queryStealLinks detaches targets from other owner variants at the same status/locale.
	queryStealLinks = `
		DELETE FROM relation_links l
		USING document_variants v
		WHERE l.source_kind = 'variant'
		  AND l.source_id = v.id
		  AND l.source_uid = $1
		  AND l.field = $2
		  AND l.target_document_id = ANY($3)
		  AND v.status = $4
		  AND v.locale = $5
	`

	queryNextInversePosition = `
		SELECT COALESCE(MAX(inverse_position), 0) + 1
		FROM relation_links
		WHERE source_uid = $1 AND field = $2 AND target_document_id = $3
	`

	queryInsertLink = `
		INSERT INTO relation_links (
			source_kind, source_id, source_uid, field, target_uid, target_document_id, position, inverse_position
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	// querySetInversePositions numbers the listed source documents 1..n in array order.
	querySetInversePositions = `
		UPDATE relation_links l
		SET inverse_position = o.pos
		FROM document_variants v, unnest($6::text[]) WITH ORDINALITY AS o(document_id, pos)
		WHERE l.source_kind = 'variant'
		  AND l.source_id = v.id
		  AND l.source_uid = $1
		  AND l.field = $2
		  AND l.target_document_id = $3
		  AND v.status = $4
		  AND v.locale = $5
		  AND v.document_id = o.document_id
	`

	queryDeleteInboundLinks = `
		DELETE FROM relation_links WHERE target_uid = $1 AND target_document_id = $2
	`
)
