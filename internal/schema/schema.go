package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Kind distinguishes content types from components.
type Kind string

const (
	KindCollectionType Kind = "collectionType"
	KindSingleType     Kind = "singleType"
	KindComponent      Kind = "component"
)

// Format represents the format of a schema definition file.
type Format string

const (
	FormatYaml Format = "yaml"
	FormatJSON Format = "json"
)

// AttributeKind is the discriminator of the Attribute tagged union.
type AttributeKind string

const (
	AttributeScalar    AttributeKind = "scalar"
	AttributeRelation  AttributeKind = "relation"
	AttributeComponent AttributeKind = "component"
)

// ScalarType enumerates the supported scalar attribute types.
type ScalarType string

const (
	TypeString      ScalarType = "string"
	TypeText        ScalarType = "text"
	TypeRichText    ScalarType = "richtext"
	TypeEmail       ScalarType = "email"
	TypeEnumeration ScalarType = "enumeration"
	TypeInteger     ScalarType = "integer"
	TypeBigInteger  ScalarType = "biginteger"
	TypeFloat       ScalarType = "float"
	TypeDecimal     ScalarType = "decimal"
	TypeBoolean     ScalarType = "boolean"
	TypeDate        ScalarType = "date"
	TypeDateTime    ScalarType = "datetime"
	TypeJSON        ScalarType = "json"
)

// IsTextual reports whether values of this type are strings.
func (t ScalarType) IsTextual() bool {
	switch t {
	case TypeString, TypeText, TypeRichText, TypeEmail, TypeEnumeration, TypeDate, TypeDateTime:
		return true
	}
	return false
}

// Cardinality is the multiplicity contract of a relation attribute.
type Cardinality string

const (
	OneWay     Cardinality = "oneWay"
	OneToOne   Cardinality = "oneToOne"
	OneToMany  Cardinality = "oneToMany"
	ManyToOne  Cardinality = "manyToOne"
	ManyToMany Cardinality = "manyToMany"
	ManyWay    Cardinality = "manyWay"
)

// Valid reports whether c is a known cardinality.
func (c Cardinality) Valid() bool {
	switch c {
	case OneWay, OneToOne, OneToMany, ManyToOne, ManyToMany, ManyWay:
		return true
	}
	return false
}

// IsSingle reports whether a field of this cardinality holds at most one target.
func (c Cardinality) IsSingle() bool {
	return c == OneWay || c == OneToOne || c == ManyToOne
}

// IsBidirectional reports whether the relation has an inverse attribute on its target.
func (c Cardinality) IsBidirectional() bool {
	return c == OneToOne || c == OneToMany || c == ManyToOne || c == ManyToMany
}

// Mirror returns the cardinality seen from the inverse side.
func (c Cardinality) Mirror() Cardinality {
	switch c {
	case OneToMany:
		return ManyToOne
	case ManyToOne:
		return OneToMany
	default:
		return c
	}
}

// TargetIsExclusive reports whether a target may be linked from at most one source
// through this field, i.e. the inverse side is single-valued.
func (c Cardinality) TargetIsExclusive() bool {
	return c == OneToOne || c == OneToMany
}

// ScalarSpec holds the constraints of a scalar attribute.
type ScalarSpec struct {
	Type      ScalarType `json:"type"`
	Enum      []string   `json:"enum,omitempty"`
	Min       *float64   `json:"min,omitempty"`
	Max       *float64   `json:"max,omitempty"`
	MinLength *int       `json:"minLength,omitempty"`
	MaxLength *int       `json:"maxLength,omitempty"`
	Pattern   string     `json:"pattern,omitempty"`

	compiledPattern *regexp.Regexp
}

// RelationSpec describes a relation attribute.
type RelationSpec struct {
	Cardinality Cardinality `json:"relation"`
	Target      string      `json:"target"`
	Inverse     string      `json:"inverse,omitempty"`

	// MappedBy marks the inverse side of a bidirectional relation. Links are always
	// stored from the owning side; the mapped side is a read projection.
	MappedBy bool `json:"mappedBy,omitempty"`
}

// ComponentSpec describes a component attribute.
type ComponentSpec struct {
	UID        string `json:"component"`
	Repeatable bool   `json:"repeatable"`
}

// Attribute is a tagged union: exactly one of Scalar, Relation, Component is set,
// matching Kind.
type Attribute struct {
	Name     string        `json:"name"`
	Kind     AttributeKind `json:"kind"`
	Required bool          `json:"required,omitempty"`

	Scalar    *ScalarSpec    `json:"scalar,omitempty"`
	Relation  *RelationSpec  `json:"relation,omitempty"`
	Component *ComponentSpec `json:"component,omitempty"`
}

// IsRelation reports whether the attribute is a relation.
func (a *Attribute) IsRelation() bool {
	return a != nil && a.Kind == AttributeRelation && a.Relation != nil
}

// IsComponent reports whether the attribute embeds a component.
func (a *Attribute) IsComponent() bool {
	return a != nil && a.Kind == AttributeComponent && a.Component != nil
}

func (a *Attribute) validate() error {
	switch a.Kind {
	case AttributeScalar:
		if a.Scalar == nil || a.Relation != nil || a.Component != nil {
			return fmt.Errorf("attribute %q: scalar attribute must only carry a scalar spec", a.Name)
		}
		return a.Scalar.validate()
	case AttributeRelation:
		if a.Relation == nil || a.Scalar != nil || a.Component != nil {
			return fmt.Errorf("attribute %q: relation attribute must only carry a relation spec", a.Name)
		}
		r := a.Relation
		if !r.Cardinality.Valid() {
			return fmt.Errorf("attribute %q: unknown relation %q", a.Name, r.Cardinality)
		}
		if r.Target == "" {
			return fmt.Errorf("attribute %q: relation target is required", a.Name)
		}
		if r.Cardinality.IsBidirectional() && r.Inverse == "" {
			return fmt.Errorf("attribute %q: %s relation requires an inverse attribute", a.Name, r.Cardinality)
		}
		if !r.Cardinality.IsBidirectional() && r.Inverse != "" {
			return fmt.Errorf("attribute %q: %s relation cannot declare an inverse", a.Name, r.Cardinality)
		}
		return nil
	case AttributeComponent:
		if a.Component == nil || a.Scalar != nil || a.Relation != nil {
			return fmt.Errorf("attribute %q: component attribute must only carry a component spec", a.Name)
		}
		if a.Component.UID == "" {
			return fmt.Errorf("attribute %q: component uid is required", a.Name)
		}
		return nil
	default:
		return fmt.Errorf("attribute %q: unknown kind %q", a.Name, a.Kind)
	}
}

func (s *ScalarSpec) validate() error {
	switch s.Type {
	case TypeString, TypeText, TypeRichText, TypeEmail, TypeInteger, TypeBigInteger,
		TypeFloat, TypeDecimal, TypeBoolean, TypeDate, TypeDateTime, TypeJSON:
	case TypeEnumeration:
		if len(s.Enum) == 0 {
			return fmt.Errorf("enumeration requires at least one value")
		}
	default:
		return fmt.Errorf("unsupported type %q", s.Type)
	}
	if s.MinLength != nil && s.MaxLength != nil && *s.MinLength > *s.MaxLength {
		return fmt.Errorf("minLength (%d) cannot exceed maxLength (%d)", *s.MinLength, *s.MaxLength)
	}
	if s.Min != nil && s.Max != nil && *s.Min > *s.Max {
		return fmt.Errorf("min (%v) cannot exceed max (%v)", *s.Min, *s.Max)
	}
	if s.Pattern != "" {
		re, err := regexp.Compile(s.Pattern)
		if err != nil {
			return fmt.Errorf("invalid regex pattern: %w", err)
		}
		s.compiledPattern = re
	}
	return nil
}

// Info carries naming metadata used by client surfaces.
type Info struct {
	SingularName string `json:"singularName"`
	PluralName   string `json:"pluralName"`
	DisplayName  string `json:"displayName"`
	Category     string `json:"category,omitempty"`
}

// Model is a registered content type or component schema. Models are immutable once
// the registry is frozen.
type Model struct {
	UID        string       `json:"uid"`
	Kind       Kind         `json:"kind"`
	Info       Info         `json:"info"`
	Localized  bool         `json:"localized,omitempty"`
	MainField  string       `json:"mainField,omitempty"`
	Attributes []*Attribute `json:"attributes"`

	byName map[string]*Attribute
}

// IsComponent reports whether the model is a component schema.
func (m *Model) IsComponent() bool {
	return m.Kind == KindComponent
}

// IsSingleType reports whether the model is a single type.
func (m *Model) IsSingleType() bool {
	return m.Kind == KindSingleType
}

// Attribute returns the named attribute.
func (m *Model) Attribute(name string) (*Attribute, bool) {
	if m.byName == nil {
		m.index()
	}
	a, ok := m.byName[name]
	return a, ok
}

// RepresentativeField returns the attribute used to label entities of this model in
// listings: MainField when set, else "name" or "title" when present.
func (m *Model) RepresentativeField() string {
	if m.MainField != "" {
		return m.MainField
	}
	for _, candidate := range []string{"name", "title"} {
		if a, ok := m.Attribute(candidate); ok && a.Kind == AttributeScalar {
			return candidate
		}
	}
	return ""
}

func (m *Model) index() {
	m.byName = make(map[string]*Attribute, len(m.Attributes))
	for _, a := range m.Attributes {
		m.byName[a.Name] = a
	}
}

// Validate checks the structural validity of the model in isolation. Cross-model
// checks (targets, inverses) happen when the registry is frozen.
func (m *Model) Validate() error {
	if m.UID == "" {
		return fmt.Errorf("uid is required")
	}
	switch m.Kind {
	case KindCollectionType, KindSingleType:
		if !strings.Contains(m.UID, "::") {
			return fmt.Errorf("content type uid %q must be namespaced (e.g. api::shop.shop)", m.UID)
		}
	case KindComponent:
		if strings.Contains(m.UID, "::") || !strings.Contains(m.UID, ".") {
			return fmt.Errorf("component uid %q must be <category>.<name>", m.UID)
		}
		if m.Localized {
			return fmt.Errorf("component %q cannot be localized", m.UID)
		}
	default:
		return fmt.Errorf("unknown kind %q", m.Kind)
	}

	seen := make(map[string]bool, len(m.Attributes))
	for _, a := range m.Attributes {
		if a == nil || a.Name == "" {
			return fmt.Errorf("attribute name cannot be empty")
		}
		if isReserved(a.Name) {
			return fmt.Errorf("attribute %q is reserved", a.Name)
		}
		if seen[a.Name] {
			return fmt.Errorf("duplicate attribute %q", a.Name)
		}
		seen[a.Name] = true
		if err := a.validate(); err != nil {
			return err
		}
		if m.IsComponent() && a.IsRelation() && a.Relation.Cardinality.IsBidirectional() {
			return fmt.Errorf("attribute %q: component relations must be oneWay or manyWay", a.Name)
		}
	}
	if m.MainField != "" && !seen[m.MainField] {
		return fmt.Errorf("mainField %q is not an attribute", m.MainField)
	}
	m.index()
	return nil
}

// Fingerprint is a SHA-256 over the canonical JSON form of the model.
func (m *Model) Fingerprint() string {
	raw, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return ComputeFingerprint(raw)
}

// ComputeFingerprint calculates SHA-256 hash of the definition.
func ComputeFingerprint(definition []byte) string {
	hash := sha256.Sum256(definition)
	return hex.EncodeToString(hash[:])
}

func isReserved(name string) bool {
	switch name {
	case "id", "documentId", "locale", "status", "publishedAt", "createdAt", "updatedAt", "__component":
		return true
	}
	return false
}

// Definition is a raw schema definition as read from a Repository.
type Definition struct {
	// Name identifies the definition within its source (e.g. a relative file path).
	Name        string
	Format      Format
	Content     []byte
	Fingerprint string
}
