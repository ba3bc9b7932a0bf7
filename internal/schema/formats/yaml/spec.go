package yaml

import (
	"fmt"
	"strings"

	"github.com/vellum-cms/vellum/internal/schema"
	"gopkg.in/yaml.v3"
)

// ModelSpec is the YAML representation of a content type or component.
type ModelSpec struct {
	Kind       string     `yaml:"kind"`
	UID        string     `yaml:"uid"`
	Info       InfoSpec   `yaml:"info"`
	Localized  bool       `yaml:"localized,omitempty"`
	MainField  string     `yaml:"mainField,omitempty"`
	Attributes Attributes `yaml:"attributes"`
}

// InfoSpec mirrors schema.Info.
type InfoSpec struct {
	SingularName string `yaml:"singularName"`
	PluralName   string `yaml:"pluralName"`
	DisplayName  string `yaml:"displayName"`
	Category     string `yaml:"category,omitempty"`
}

// Attributes keeps declaration order, which drives field order on every client surface.
type Attributes []*AttributeSpec

// UnmarshalYAML decodes the attributes mapping in document order.
func (a *Attributes) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("attributes must be a mapping")
	}
	out := make(Attributes, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		name := value.Content[i].Value
		var attr AttributeSpec
		if err := value.Content[i+1].Decode(&attr); err != nil {
			return fmt.Errorf("attribute %q: %w", name, err)
		}
		attr.Name = name
		out = append(out, &attr)
	}
	*a = out
	return nil
}

// AttributeSpec defines a single attribute.
//
// Attributes support two declaration styles:
//
//	Shorthand (scalar): name: string!
//	Long form (mapping): products:
//	                       type: relation
//	                       relation: manyToMany
//	                       target: api::product.product
//	                       inverse: shops
//
// Append "!" to a type name to mark the attribute as required.
type AttributeSpec struct {
	Name string `yaml:"-"`

	Type     string `yaml:"type"`
	Required bool   `yaml:"required,omitempty"`

	// Scalar constraints.
	Enum      []string `yaml:"enum,omitempty"`
	Min       *float64 `yaml:"min,omitempty"`
	Max       *float64 `yaml:"max,omitempty"`
	MinLength *int     `yaml:"minLength,omitempty"`
	MaxLength *int     `yaml:"maxLength,omitempty"`
	Pattern   string   `yaml:"pattern,omitempty"`

	// Relation attributes.
	Relation string `yaml:"relation,omitempty"`
	Target   string `yaml:"target,omitempty"`
	Inverse  string `yaml:"inverse,omitempty"`

	// Component attributes.
	Component  string `yaml:"component,omitempty"`
	Repeatable bool   `yaml:"repeatable,omitempty"`
}

// UnmarshalYAML implements custom unmarshaling to support both shorthand
// and long-form attribute declarations.
func (f *AttributeSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		f.Type = value.Value
		return f.parseTypeString()
	}

	// Decode via alias to avoid infinite recursion.
	type attrAlias AttributeSpec
	var alias attrAlias
	if err := value.Decode(&alias); err != nil {
		return err
	}
	*f = AttributeSpec(alias)

	if f.Type == "" {
		return fmt.Errorf("attribute missing 'type'")
	}
	return f.parseTypeString()
}

func (f *AttributeSpec) parseTypeString() error {
	if strings.HasSuffix(f.Type, "!") {
		f.Required = true
		f.Type = strings.TrimSuffix(f.Type, "!")
	}
	if f.Type == "bool" {
		f.Type = string(schema.TypeBoolean)
	}
	return nil
}

// ToModel converts the spec into a schema model. Structural validation is left to
// schema.Model.Validate.
func (s *ModelSpec) ToModel() (*schema.Model, error) {
	m := &schema.Model{
		UID:       s.UID,
		Kind:      schema.Kind(s.Kind),
		Localized: s.Localized,
		MainField: s.MainField,
		Info: schema.Info{
			SingularName: s.Info.SingularName,
			PluralName:   s.Info.PluralName,
			DisplayName:  s.Info.DisplayName,
			Category:     s.Info.Category,
		},
	}
	if m.Kind == "" {
		m.Kind = schema.KindCollectionType
	}

	for _, a := range s.Attributes {
		attr, err := a.toAttribute()
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", a.Name, err)
		}
		m.Attributes = append(m.Attributes, attr)
	}
	return m, nil
}

func (f *AttributeSpec) toAttribute() (*schema.Attribute, error) {
	attr := &schema.Attribute{Name: f.Name, Required: f.Required}

	switch f.Type {
	case "relation":
		if f.Component != "" || f.Repeatable {
			return nil, fmt.Errorf("relation attributes do not support component options")
		}
		cardinality := schema.Cardinality(f.Relation)
		// A one-sided relation without an inverse is stored as its unidirectional form.
		if f.Inverse == "" {
			switch cardinality {
			case schema.OneToOne:
				cardinality = schema.OneWay
			case schema.OneToMany:
				cardinality = schema.ManyWay
			}
		}
		attr.Kind = schema.AttributeRelation
		attr.Relation = &schema.RelationSpec{
			Cardinality: cardinality,
			Target:      f.Target,
			Inverse:     f.Inverse,
		}

	case "component":
		if f.Relation != "" || f.Target != "" || f.Inverse != "" {
			return nil, fmt.Errorf("component attributes do not support relation options")
		}
		attr.Kind = schema.AttributeComponent
		attr.Component = &schema.ComponentSpec{
			UID:        f.Component,
			Repeatable: f.Repeatable,
		}

	default:
		if f.Relation != "" || f.Target != "" || f.Component != "" {
			return nil, fmt.Errorf("scalar type %q does not support relation or component options", f.Type)
		}
		if f.MinLength != nil && *f.MinLength < 0 {
			return nil, fmt.Errorf("minLength cannot be negative")
		}
		if f.MaxLength != nil && *f.MaxLength < 0 {
			return nil, fmt.Errorf("maxLength cannot be negative")
		}
		if len(f.Pattern) > 1000 {
			return nil, fmt.Errorf("pattern too long (max 1000 chars)")
		}
		attr.Kind = schema.AttributeScalar
		attr.Scalar = &schema.ScalarSpec{
			Type:      schema.ScalarType(f.Type),
			Enum:      f.Enum,
			Min:       f.Min,
			Max:       f.Max,
			MinLength: f.MinLength,
			MaxLength: f.MaxLength,
			Pattern:   f.Pattern,
		}
	}
	return attr, nil
}
