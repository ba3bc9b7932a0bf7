package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	v1 "github.com/vellum-cms/vellum/internal/api/v1"
	coreerrors "github.com/vellum-cms/vellum/internal/core/errors"
	"github.com/vellum-cms/vellum/internal/core/storage"
	"github.com/vellum-cms/vellum/internal/schema"
)

// content is the editable shape of a variant or of one component instance: scalar
// data, owning relation links by field and nested component instances by field.
type content struct {
	// id is the stored component id; zero for variants and parsed input.
	id         int64
	model      *schema.Model
	data       map[string]interface{}
	relations  map[string][]string
	components map[string][]*content
}

func newContent(m *schema.Model) *content {
	return &content{
		model:      m,
		data:       map[string]interface{}{},
		relations:  map[string][]string{},
		components: map[string][]*content{},
	}
}

// input is a parsed create/update payload.
type input struct {
	*content

	// mapped holds writes to the inverse side of bidirectional relations. They are
	// applied to the owning documents' link sets.
	mapped map[string][]string
}

type parser struct {
	registry  *schema.Registry
	validator *schema.Validator
	reader    storage.Reader
	locale    string
}

// parse splits a client payload by attribute kind and validates it. mode governs
// required attributes of m itself; components are always validated as full values.
func (p *parser) parse(ctx context.Context, m *schema.Model, raw map[string]interface{}, mode schema.ValidationMode) (*input, error) {
	values := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		values[k] = v
	}
	if err := p.validator.Validate(m, values, mode); err != nil {
		return nil, validationError(err)
	}

	in := &input{content: newContent(m), mapped: map[string][]string{}}
	for key, value := range values {
		a, ok := m.Attribute(key)
		if !ok {
			continue // reserved keys
		}

		switch a.Kind {
		case schema.AttributeScalar:
			in.data[key] = value

		case schema.AttributeRelation:
			ids, err := p.parseRelation(ctx, m, a, value)
			if err != nil {
				return nil, err
			}
			if a.Relation.MappedBy {
				in.mapped[key] = ids
			} else {
				in.relations[key] = ids
			}

		case schema.AttributeComponent:
			instances, err := p.parseComponent(ctx, m, a, value)
			if err != nil {
				return nil, err
			}
			in.components[key] = instances
		}
	}
	return in, nil
}

func (p *parser) parseComponent(ctx context.Context, owner *schema.Model, a *schema.Attribute, value interface{}) ([]*content, error) {
	compModel, err := p.registry.Get(a.Component.UID)
	if err != nil {
		return nil, err
	}

	var items []interface{}
	switch v := value.(type) {
	case nil:
	case []interface{}:
		if !a.Component.Repeatable {
			return nil, coreerrors.Validation(fmt.Sprintf("%s must be an object", a.Name), map[string]interface{}{"field": a.Name})
		}
		items = v
	case map[string]interface{}:
		if a.Component.Repeatable {
			return nil, coreerrors.Validation(fmt.Sprintf("%s must be an array", a.Name), map[string]interface{}{"field": a.Name})
		}
		items = []interface{}{v}
	default:
		return nil, coreerrors.Validation(fmt.Sprintf("%s must be a component value", a.Name), map[string]interface{}{"field": a.Name})
	}

	out := make([]*content, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, coreerrors.Validation(fmt.Sprintf("%s entries must be objects", a.Name), map[string]interface{}{"field": a.Name})
		}
		parsed, err := p.parse(ctx, compModel, obj, schema.ValidateCreate)
		if err != nil {
			return nil, err
		}
		out = append(out, parsed.content)
	}
	return out, nil
}

// parseRelation accepts documentIds, storage ids, {documentId}/{id} objects, arrays
// of those, or {set: [...]}. The result is de-duplicated and every target must exist.
func (p *parser) parseRelation(ctx context.Context, owner *schema.Model, a *schema.Attribute, value interface{}) ([]string, error) {
	target, err := p.registry.Get(a.Relation.Target)
	if err != nil {
		return nil, err
	}

	var refs []interface{}
	var collect func(v interface{}) error
	collect = func(v interface{}) error {
		switch t := v.(type) {
		case nil:
		case []interface{}:
			for _, e := range t {
				if err := collect(e); err != nil {
					return err
				}
			}
		case map[string]interface{}:
			if set, ok := t["set"]; ok {
				return collect(set)
			}
			if docID, ok := t["documentId"]; ok {
				refs = append(refs, docID)
			} else if id, ok := t["id"]; ok {
				refs = append(refs, id)
			} else {
				return fmt.Errorf("relation object needs documentId or id")
			}
		default:
			refs = append(refs, t)
		}
		return nil
	}
	if err := collect(value); err != nil {
		return nil, coreerrors.Validation(fmt.Sprintf("%s: %v", a.Name, err), map[string]interface{}{"field": a.Name})
	}

	seen := make(map[string]bool, len(refs))
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		docID, err := p.documentIDOf(ctx, target, ref)
		if err != nil {
			return nil, coreerrors.Validation(fmt.Sprintf("%s: %v", a.Name, err), map[string]interface{}{"field": a.Name})
		}
		if !seen[docID] {
			seen[docID] = true
			ids = append(ids, docID)
		}
	}

	if a.Relation.Cardinality.IsSingle() && len(ids) > 1 {
		return nil, coreerrors.Validation(
			fmt.Sprintf("%s accepts at most one target", a.Name),
			map[string]interface{}{"field": a.Name},
		)
	}

	locale := v1.NoLocale
	if target.Localized {
		locale = p.locale
	}
	existing, err := p.reader.ExistingDocumentIDs(ctx, target.UID, ids, v1.StatusDraft, locale)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, id := range ids {
		if !existing[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, coreerrors.Validation(
			fmt.Sprintf("%s: relation targets not found", a.Name),
			map[string]interface{}{"field": a.Name, "documentIds": missing},
		)
	}
	return ids, nil
}

func (p *parser) documentIDOf(ctx context.Context, target *schema.Model, ref interface{}) (string, error) {
	var id int64
	switch t := ref.(type) {
	case string:
		if t == "" {
			return "", fmt.Errorf("empty documentId")
		}
		return t, nil
	case float64:
		id = int64(t)
	case int:
		id = int64(t)
	case int64:
		id = t
	case json.Number:
		n, err := strconv.ParseInt(t.String(), 10, 64)
		if err != nil {
			return "", fmt.Errorf("invalid id %s", t)
		}
		id = n
	default:
		return "", fmt.Errorf("unsupported relation value %T", ref)
	}

	row, err := p.reader.GetVariantByID(ctx, target.UID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("no %s with id %d", target.UID, id)
	}
	if err != nil {
		return "", err
	}
	return row.DocumentID, nil
}

func validationError(err error) error {
	var detailer schema.ValidationDetailer
	var details map[string]interface{}
	if errors.As(err, &detailer) {
		details = detailer.Details()
	}
	return coreerrors.Validation(err.Error(), details)
}

// loadContent reads the full editable content of a variant.
func loadContent(ctx context.Context, reg *schema.Registry, r storage.Reader, v *v1.Variant) (*content, error) {
	m, err := reg.Get(v.ContentType)
	if err != nil {
		return nil, err
	}

	root := newContent(m)
	for k, val := range v.Data {
		root.data[k] = val
	}
	if err := loadLinks(ctx, r, v1.SourceOf(v), root); err != nil {
		return nil, err
	}

	comps, err := r.ListComponents(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	children := make(map[v1.LinkSource][]*v1.Component)
	for _, c := range comps {
		parent := v1.LinkSource{Kind: c.ParentKind, ID: c.ParentID}
		children[parent] = append(children[parent], c)
	}

	var attach func(parent v1.LinkSource, into *content) error
	attach = func(parent v1.LinkSource, into *content) error {
		for _, c := range children[parent] {
			cm, err := reg.Get(c.ComponentUID)
			if err != nil {
				return err
			}
			node := newContent(cm)
			node.id = c.ID
			for k, val := range c.Data {
				node.data[k] = val
			}
			if err := loadLinks(ctx, r, v1.ComponentSource(c), node); err != nil {
				return err
			}
			if err := attach(v1.LinkSource{Kind: v1.OwnerComponent, ID: c.ID}, node); err != nil {
				return err
			}
			into.components[c.Field] = append(into.components[c.Field], node)
		}
		return nil
	}
	if err := attach(v1.LinkSource{Kind: v1.OwnerVariant, ID: v.ID}, root); err != nil {
		return nil, err
	}
	return root, nil
}

func loadLinks(ctx context.Context, r storage.Reader, src v1.LinkSource, into *content) error {
	links, err := r.ListLinks(ctx, src, "")
	if err != nil {
		return err
	}
	for _, l := range links {
		into.relations[l.Field] = append(into.relations[l.Field], l.TargetDocumentID)
	}
	return nil
}

// writeContent stores the links and components of c under variant v. Existing
// components of v must already be deleted.
func writeContent(ctx context.Context, tx storage.Tx, v *v1.Variant, c *content, fields map[string]bool) error {
	if err := writeLinks(ctx, tx, v, v1.SourceOf(v), c, fields); err != nil {
		return err
	}
	return writeComponents(ctx, tx, v, v1.LinkSource{Kind: v1.OwnerVariant, ID: v.ID}, c)
}

// writeLinks replaces the owning link sets of c. A nil fields filter writes every field.
func writeLinks(ctx context.Context, tx storage.Tx, v *v1.Variant, src v1.LinkSource, c *content, fields map[string]bool) error {
	for _, name := range sortedKeys(c.relations) {
		if fields != nil && !fields[name] {
			continue
		}
		a, ok := c.model.Attribute(name)
		if !ok || !a.IsRelation() || a.Relation.MappedBy {
			continue
		}
		err := tx.ReplaceLinks(ctx, storage.LinkSet{
			Source:            src,
			Field:             name,
			TargetUID:         a.Relation.Target,
			TargetDocumentIDs: c.relations[name],
			Exclusive:         a.Relation.Cardinality.TargetIsExclusive(),
			Status:            v.Status,
			Locale:            v.Locale,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func writeComponents(ctx context.Context, tx storage.Tx, v *v1.Variant, parent v1.LinkSource, c *content) error {
	for _, field := range sortedKeys(c.components) {
		for i, node := range c.components[field] {
			row := &v1.Component{
				ComponentUID: node.model.UID,
				VariantID:    v.ID,
				ParentKind:   parent.Kind,
				ParentID:     parent.ID,
				Field:        field,
				Position:     i + 1,
				Data:         node.data,
			}
			if err := tx.InsertComponent(ctx, row); err != nil {
				return err
			}
			if err := writeLinks(ctx, tx, v, v1.ComponentSource(row), node, nil); err != nil {
				return err
			}
			if err := writeComponents(ctx, tx, v, v1.LinkSource{Kind: v1.OwnerComponent, ID: row.ID}, node); err != nil {
				return err
			}
		}
	}
	return nil
}

// snapshot renders c as plain data: scalars, components as nested objects and, when
// withRelations is set, owning relation fields as documentId lists.
func (c *content) snapshot(withRelations bool) map[string]interface{} {
	out := make(map[string]interface{}, len(c.data)+len(c.relations)+len(c.components))
	for k, v := range c.data {
		out[k] = v
	}
	for k, ids := range c.relations {
		if !withRelations {
			break
		}
		list := make([]interface{}, len(ids))
		for i, id := range ids {
			list[i] = id
		}
		out[k] = list
	}
	for k, nodes := range c.components {
		a, _ := c.model.Attribute(k)
		items := make([]interface{}, len(nodes))
		for i, n := range nodes {
			snap := n.snapshot(withRelations)
			snap["__component"] = n.model.UID
			if n.id != 0 {
				snap["id"] = n.id
			}
			items[i] = snap
		}
		if a != nil && a.IsComponent() && !a.Component.Repeatable {
			if len(items) == 0 {
				out[k] = nil
			} else {
				out[k] = items[0]
			}
			continue
		}
		out[k] = items
	}
	return out
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
