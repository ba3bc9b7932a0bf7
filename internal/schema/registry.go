package schema

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Registry holds every content type and component schema, keyed by UID.
//
// Models are registered during boot and the registry is then frozen: Freeze resolves
// cross-model references and synthesizes missing inverse attributes. Lookups are only
// meaningful on a frozen registry; a schema problem must surface at boot, never per request.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*Model
	frozen bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		models: make(map[string]*Model),
	}
}

// Register adds a model. Registering the same UID twice is accepted when both shapes
// are identical and rejected with ErrConflict otherwise.
func (r *Registry) Register(m *Model) error {
	if m == nil {
		return fmt.Errorf("schema is required")
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid schema %q: %w", m.UID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("%w: cannot register %q", ErrFrozen, m.UID)
	}
	if existing, ok := r.models[m.UID]; ok {
		if existing.Fingerprint() == m.Fingerprint() {
			return nil
		}
		return fmt.Errorf("%w: %q registered twice with different attributes", ErrConflict, m.UID)
	}

	r.models[m.UID] = m
	return nil
}

// Freeze validates cross-model references, pairs bidirectional relations and makes the
// registry read-only. It is idempotent.
func (r *Registry) Freeze() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return nil
	}

	uids := r.sortedUIDsLocked()
	for _, uid := range uids {
		if err := r.checkReferencesLocked(r.models[uid]); err != nil {
			return err
		}
	}
	for _, uid := range uids {
		if err := r.checkComponentCyclesLocked(uid, map[string]bool{}); err != nil {
			return err
		}
	}
	for _, uid := range uids {
		m := r.models[uid]
		// Attributes may be appended to m while pairing self-relations.
		attrs := append([]*Attribute(nil), m.Attributes...)
		for _, a := range attrs {
			if !a.IsRelation() || !a.Relation.Cardinality.IsBidirectional() || a.Relation.MappedBy {
				continue
			}
			if err := r.pairInverseLocked(m, a); err != nil {
				return err
			}
		}
	}

	r.frozen = true
	slog.Info("Schema registry frozen", "models", len(r.models))
	return nil
}

func (r *Registry) checkReferencesLocked(m *Model) error {
	for _, a := range m.Attributes {
		switch {
		case a.IsRelation():
			target, ok := r.models[a.Relation.Target]
			if !ok {
				return fmt.Errorf("%s.%s: relation target %q is not registered", m.UID, a.Name, a.Relation.Target)
			}
			if target.IsComponent() {
				return fmt.Errorf("%s.%s: relation target %q is a component", m.UID, a.Name, a.Relation.Target)
			}
		case a.IsComponent():
			c, ok := r.models[a.Component.UID]
			if !ok {
				return fmt.Errorf("%s.%s: component %q is not registered", m.UID, a.Name, a.Component.UID)
			}
			if !c.IsComponent() {
				return fmt.Errorf("%s.%s: %q is not a component", m.UID, a.Name, a.Component.UID)
			}
		}
	}
	return nil
}

func (r *Registry) checkComponentCyclesLocked(uid string, visiting map[string]bool) error {
	if visiting[uid] {
		return fmt.Errorf("component cycle through %q", uid)
	}
	visiting[uid] = true
	defer delete(visiting, uid)

	for _, a := range r.models[uid].Attributes {
		if a.IsComponent() {
			if err := r.checkComponentCyclesLocked(a.Component.UID, visiting); err != nil {
				return err
			}
		}
	}
	return nil
}

// pairInverseLocked makes sure the owning attribute a on m has a matching inverse on
// its target, synthesizing one when the target does not declare it.
func (r *Registry) pairInverseLocked(m *Model, a *Attribute) error {
	rel := a.Relation
	target := r.models[rel.Target]
	mirror := rel.Cardinality.Mirror()

	inv, ok := target.Attribute(rel.Inverse)
	if !ok {
		target.Attributes = append(target.Attributes, &Attribute{
			Name: rel.Inverse,
			Kind: AttributeRelation,
			Relation: &RelationSpec{
				Cardinality: mirror,
				Target:      m.UID,
				Inverse:     a.Name,
				MappedBy:    true,
			},
		})
		target.index()
		return nil
	}

	if inv == a {
		return fmt.Errorf("%w: %s.%s cannot be its own inverse", ErrConflict, m.UID, a.Name)
	}
	if !inv.IsRelation() {
		return fmt.Errorf("%w: %s.%s is the inverse of %s.%s but is not a relation",
			ErrConflict, target.UID, inv.Name, m.UID, a.Name)
	}
	if inv.Relation.Target != m.UID || inv.Relation.Inverse != a.Name {
		return fmt.Errorf("%w: %s.%s does not point back to %s.%s",
			ErrConflict, target.UID, inv.Name, m.UID, a.Name)
	}
	if inv.Relation.Cardinality != mirror {
		return fmt.Errorf("%w: %s.%s is %s but %s.%s is %s (expected %s)",
			ErrConflict, m.UID, a.Name, rel.Cardinality, target.UID, inv.Name, inv.Relation.Cardinality, mirror)
	}
	// Both sides declared: the side visited first owns the links.
	inv.Relation.MappedBy = true
	return nil
}

func (r *Registry) sortedUIDsLocked() []string {
	uids := make([]string, 0, len(r.models))
	for uid := range r.models {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	return uids
}

// Get returns the model registered under uid.
func (r *Registry) Get(uid string) (*Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.models[uid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uid)
	}
	return m, nil
}

// List returns all models ordered by UID.
func (r *Registry) List() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Model, 0, len(r.models))
	for _, uid := range r.sortedUIDsLocked() {
		out = append(out, r.models[uid])
	}
	return out
}

// ContentTypes returns the collection and single types ordered by UID.
func (r *Registry) ContentTypes() []*Model {
	var out []*Model
	for _, m := range r.List() {
		if !m.IsComponent() {
			out = append(out, m)
		}
	}
	return out
}

// IsRelationField reports whether fieldName on uid is a relation attribute.
func (r *Registry) IsRelationField(uid, fieldName string) bool {
	a, err := r.Field(uid, fieldName)
	return err == nil && a.IsRelation()
}

// GetInverse returns the target UID and inverse attribute of a bidirectional relation.
func (r *Registry) GetInverse(uid, fieldName string) (string, string, bool) {
	a, err := r.Field(uid, fieldName)
	if err != nil || !a.IsRelation() || a.Relation.Inverse == "" {
		return "", "", false
	}
	return a.Relation.Target, a.Relation.Inverse, true
}

// Field resolves a possibly dotted attribute path on uid. Every segment but the last
// must be a component attribute; the walk continues into that component's schema.
func (r *Registry) Field(uid, path string) (*Attribute, error) {
	chain, err := r.Path(uid, path)
	if err != nil {
		return nil, err
	}
	return chain[len(chain)-1], nil
}

// Path resolves a dotted attribute path and returns every attribute along it.
func (r *Registry) Path(uid, path string) ([]*Attribute, error) {
	m, err := r.Get(uid)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty attribute path on %s", ErrNotFound, uid)
	}

	segments := strings.Split(path, ".")
	chain := make([]*Attribute, 0, len(segments))
	for i, seg := range segments {
		a, ok := m.Attribute(seg)
		if !ok {
			return nil, fmt.Errorf("%w: attribute %q on %s", ErrNotFound, seg, m.UID)
		}
		chain = append(chain, a)
		if i == len(segments)-1 {
			break
		}
		if !a.IsComponent() {
			return nil, fmt.Errorf("%w: attribute %q on %s is not a component", ErrNotFound, seg, m.UID)
		}
		if m, err = r.Get(a.Component.UID); err != nil {
			return nil, err
		}
	}
	return chain, nil
}

// Load compiles every definition from repo, registers the resulting models and freezes
// the registry. Any error is fatal for the process.
func Load(ctx context.Context, repo Repository, formats *FormatRegistry) (*Registry, error) {
	defs, err := repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list schema definitions: %w", err)
	}

	reg := NewRegistry()
	for _, def := range defs {
		compiler, err := formats.GetCompiler(def.Format)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", def.Name, err)
		}
		models, err := compiler.Compile(ctx, def)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", def.Name, err)
		}
		for _, m := range models {
			if err := reg.Register(m); err != nil {
				return nil, fmt.Errorf("%s: %w", def.Name, err)
			}
		}
		slog.Debug("Loaded schema definition", "name", def.Name, "models", len(models))
	}

	if err := reg.Freeze(); err != nil {
		return nil, err
	}
	return reg, nil
}
