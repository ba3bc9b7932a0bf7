package storage

import (
	"context"
	"errors"
	"time"

	v1 "github.com/vellum-cms/vellum/internal/api/v1"
)

var (
	// ErrNotFound is returned when a variant or component row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a variant already exists for (content type, documentId, status, locale).
	ErrDuplicate = errors.New("variant already exists")
)

// VariantKey addresses exactly one variant row.
type VariantKey struct {
	ContentType string
	DocumentID  string
	Status      v1.Status
	Locale      string
}

// VariantQuery selects variants of one content type at one (status, locale).
type VariantQuery struct {
	ContentType string
	Status      v1.Status
	Locale      string

	// DocumentIDs restricts the result to these documents. Nil means no restriction;
	// an empty non-nil slice matches nothing.
	DocumentIDs []string

	// SortField orders by a data attribute (text comparison, nulls last), then by id.
	// Empty orders by id only.
	SortField string

	Offset int
	// Limit of 0 returns every matching row.
	Limit int
}

// InverseQuery selects the documents whose variant at (Status, Locale) links to
// TargetDocumentID through SourceUID.Field.
type InverseQuery struct {
	SourceUID        string
	Field            string
	TargetDocumentID string
	Status           v1.Status
	Locale           string
}

// LinkSet is the complete ordered target list of one relation field on one owner row.
type LinkSet struct {
	Source            v1.LinkSource
	Field             string
	TargetUID         string
	TargetDocumentIDs []string

	// Exclusive detaches every target from other owner variants at the same Status
	// and Locale before attaching it here.
	Exclusive bool
	Status    v1.Status
	Locale    string
}

// Reader is the read side of the document store. Every call observes committed state only.
type Reader interface {
	GetVariant(ctx context.Context, key VariantKey) (*v1.Variant, error)
	GetVariantByID(ctx context.Context, contentType string, id int64) (*v1.Variant, error)
	ListVariants(ctx context.Context, contentType, documentID string) ([]*v1.Variant, error)

	// FindVariants returns one page of matching variants and the total match count.
	FindVariants(ctx context.Context, q VariantQuery) ([]*v1.Variant, int, error)

	// ExistingDocumentIDs returns the subset of documentIDs that have a variant at
	// (status, locale).
	ExistingDocumentIDs(ctx context.Context, contentType string, documentIDs []string, status v1.Status, locale string) (map[string]bool, error)

	// PublishedAt returns the publication timestamp of every listed document that has
	// a published variant in locale.
	PublishedAt(ctx context.Context, contentType string, documentIDs []string, locale string) (map[string]time.Time, error)

	GetComponent(ctx context.Context, id int64) (*v1.Component, error)
	// ListComponents returns every component owned by a variant, nested ones included,
	// ordered by (parent, field, position).
	ListComponents(ctx context.Context, variantID int64) ([]*v1.Component, error)

	// ListLinks returns the links of one owner row ordered by position. An empty field
	// returns the links of every field.
	ListLinks(ctx context.Context, source v1.LinkSource, field string) ([]*v1.Link, error)

	// ListInverseSources returns source documentIDs ordered by inverse position.
	ListInverseSources(ctx context.Context, q InverseQuery) ([]string, error)
}

// Tx is a unit of atomic writes. Reads through a Tx observe its own uncommitted writes.
type Tx interface {
	Reader

	// InsertVariant stores v and sets its ID. Returns ErrDuplicate on key collision.
	InsertVariant(ctx context.Context, v *v1.Variant) error
	UpdateVariantData(ctx context.Context, id int64, data map[string]interface{}, updatedAt time.Time) error
	// DeleteVariant removes a variant together with its components and every link they own.
	DeleteVariant(ctx context.Context, id int64) error

	InsertComponent(ctx context.Context, c *v1.Component) error
	// DeleteComponents removes every component owned by a variant and the links they own.
	DeleteComponents(ctx context.Context, variantID int64) error

	// ReplaceLinks atomically replaces the link set of one field. Kept targets retain
	// their inverse position; new targets are appended on the inverse side.
	ReplaceLinks(ctx context.Context, set LinkSet) error
	// SetInversePositions renumbers the inverse side of q so that the listed source
	// documents come back from ListInverseSources in the given order. Sources absent
	// from the list keep their position.
	SetInversePositions(ctx context.Context, q InverseQuery, sources []string) error
	// DeleteInboundLinks removes every link pointing at a document.
	DeleteInboundLinks(ctx context.Context, targetUID, documentID string) error
}

// DocumentStore is the persistence port of the document engine.
type DocumentStore interface {
	Reader

	// WithTx runs fn in a transaction, committing when it returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
}
