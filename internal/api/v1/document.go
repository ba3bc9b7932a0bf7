package v1

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state of a document variant.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// ParseStatus maps a transport value onto a Status. Empty input yields def.
func ParseStatus(s string, def Status) (Status, error) {
	switch s {
	case "":
		return def, nil
	case "draft", "DRAFT":
		return StatusDraft, nil
	case "published", "PUBLISHED":
		return StatusPublished, nil
	default:
		return "", fmt.Errorf("invalid status %q (must be draft or published)", s)
	}
}

// NoLocale is stored for variants of non-localized content types.
const NoLocale = ""

// OwnerKind discriminates the two kinds of rows that can own components and relation links.
type OwnerKind string

const (
	OwnerVariant   OwnerKind = "variant"
	OwnerComponent OwnerKind = "component"
)

// Variant is one concrete (status, locale) row of a document.
//
// ID is the storage identifier and changes whenever a variant is re-materialized
// (e.g. on publish). DocumentID is stable across all variants.
type Variant struct {
	ID          int64                  `json:"id"`
	DocumentID  string                 `json:"documentId"`
	ContentType string                 `json:"-"`
	Status      Status                 `json:"status"`
	Locale      string                 `json:"locale,omitempty"`
	Data        map[string]interface{} `json:"-"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`

	// PublishedAt is only set on rows with StatusPublished.
	PublishedAt *time.Time `json:"-"`
}

// Component is an ownership-bound instance of a component schema.
type Component struct {
	ID           int64                  `json:"id"`
	ComponentUID string                 `json:"__component"`
	VariantID    int64                  `json:"-"`
	ParentKind   OwnerKind              `json:"-"`
	ParentID     int64                  `json:"-"`
	Field        string                 `json:"-"`
	Position     int                    `json:"-"`
	Data         map[string]interface{} `json:"-"`
}

// Link is a stored relation edge from an owner row to a target document identity.
type Link struct {
	ID               int64     `json:"id"`
	SourceKind       OwnerKind `json:"sourceKind"`
	SourceID         int64     `json:"sourceId"`
	SourceUID        string    `json:"sourceUid"`
	Field            string    `json:"field"`
	TargetUID        string    `json:"targetUid"`
	TargetDocumentID string    `json:"targetDocumentId"`
	Position         int       `json:"position"`
	InversePosition  int       `json:"inversePosition"`
}

// LinkSource identifies the owner row of a set of links.
type LinkSource struct {
	Kind OwnerKind
	ID   int64
	UID  string
}

// SourceOf returns the LinkSource for a variant.
func SourceOf(v *Variant) LinkSource {
	return LinkSource{Kind: OwnerVariant, ID: v.ID, UID: v.ContentType}
}

// ComponentSource returns the LinkSource for a component instance.
func ComponentSource(c *Component) LinkSource {
	return LinkSource{Kind: OwnerComponent, ID: c.ID, UID: c.ComponentUID}
}

// Entity is a variant as seen by clients: its own fields plus the computed publication
// timestamp of the document it belongs to.
type Entity struct {
	*Variant

	// PublishedAt is non-nil iff the document has a published variant, regardless of
	// which variant this entity is.
	PublishedAt *time.Time
}

// Attributes renders the entity as a flat object: system keys first, then data keys.
// Data keys never shadow system keys.
func (e *Entity) Attributes(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data)+7)
	for k, v := range data {
		out[k] = v
	}
	out["id"] = e.ID
	out["documentId"] = e.DocumentID
	out["status"] = e.Status
	if e.Locale != NoLocale {
		out["locale"] = e.Locale
	}
	out["createdAt"] = e.CreatedAt
	out["updatedAt"] = e.UpdatedAt
	if e.PublishedAt != nil {
		out["publishedAt"] = *e.PublishedAt
	} else {
		out["publishedAt"] = nil
	}
	return out
}

// MarshalJSON flattens the variant data next to the system keys.
func (e *Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Attributes(e.Data))
}

// HistoryVersion is an immutable snapshot of a variant.
type HistoryVersion struct {
	ID          string                 `json:"id" bson:"_id"`
	DocumentID  string                 `json:"documentId" bson:"documentId"`
	ContentType string                 `json:"contentType" bson:"contentType"`
	Status      Status                 `json:"status" bson:"status"`
	Locale      string                 `json:"locale,omitempty" bson:"locale"`
	Data        map[string]interface{} `json:"data" bson:"data"`
	CreatedAt   time.Time              `json:"createdAt" bson:"createdAt"`
}
