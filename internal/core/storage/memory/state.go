package memory

import (
	"fmt"
	"sort"

	v1 "github.com/vellum-cms/vellum/internal/api/v1"
)

// state is one immutable snapshot once committed. Transactions work on a clone.
type state struct {
	nextID     int64
	variants   map[int64]*v1.Variant
	components map[int64]*v1.Component
	links      map[int64]*v1.Link
}

func newState() *state {
	return &state{
		variants:   make(map[int64]*v1.Variant),
		components: make(map[int64]*v1.Component),
		links:      make(map[int64]*v1.Link),
	}
}

func (s *state) clone() *state {
	c := &state{
		nextID:     s.nextID,
		variants:   make(map[int64]*v1.Variant, len(s.variants)),
		components: make(map[int64]*v1.Component, len(s.components)),
		links:      make(map[int64]*v1.Link, len(s.links)),
	}
	for id, v := range s.variants {
		c.variants[id] = cloneVariant(v)
	}
	for id, comp := range s.components {
		c.components[id] = cloneComponent(comp)
	}
	for id, l := range s.links {
		copy := *l
		c.links[id] = &copy
	}
	return c
}

func (s *state) allocID() int64 {
	s.nextID++
	return s.nextID
}

// ownedBy reports whether link l belongs to the variant or one of its components.
func (s *state) ownedBy(l *v1.Link, variantID int64) bool {
	switch l.SourceKind {
	case v1.OwnerVariant:
		return l.SourceID == variantID
	case v1.OwnerComponent:
		c, ok := s.components[l.SourceID]
		return ok && c.VariantID == variantID
	}
	return false
}

func (s *state) sortedLinks(match func(*v1.Link) bool, less func(a, b *v1.Link) bool) []*v1.Link {
	var out []*v1.Link
	for _, l := range s.links {
		if match(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if less(out[i], out[j]) {
			return true
		}
		if less(out[j], out[i]) {
			return false
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func cloneVariant(v *v1.Variant) *v1.Variant {
	c := *v
	c.Data = cloneData(v.Data)
	if v.PublishedAt != nil {
		t := *v.PublishedAt
		c.PublishedAt = &t
	}
	return &c
}

func cloneComponent(comp *v1.Component) *v1.Component {
	c := *comp
	c.Data = cloneData(comp.Data)
	return &c
}

func cloneData(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return nil
	}
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return cloneData(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// sortKey renders a data value the way Postgres renders data->>'field'.
func sortKey(v interface{}) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	default:
		return fmt.Sprint(t), true
	}
}
