// Package relation resolves relation fields of documents and component instances into
// the target entities visible at a requested status and locale.
package relation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	v1 "github.com/vellum-cms/vellum/internal/api/v1"
	coreerrors "github.com/vellum-cms/vellum/internal/core/errors"
	"github.com/vellum-cms/vellum/internal/core/pagination"
	"github.com/vellum-cms/vellum/internal/core/storage"
	"github.com/vellum-cms/vellum/internal/document"
	"github.com/vellum-cms/vellum/internal/schema"
)

// fieldNotRelational is the message for fields that are missing or are not relations.
const fieldNotRelational = "This relational field doesn't exist"

// Resolution modes, as reported to the Observer.
const (
	ModeDirect   = "direct"
	ModeExisting = "existing"
)

// ResolutionContext is the status and locale a traversal resolves targets under.
// Nested traversals inherit it unless they override it.
type ResolutionContext struct {
	Status v1.Status
	Locale string
}

// WithStatus returns a copy of rc with status replaced when set.
func (rc ResolutionContext) WithStatus(status v1.Status) ResolutionContext {
	if status != "" {
		rc.Status = status
	}
	return rc
}

// Owner identifies what a relation field is read from: a document variant, or a
// component instance when ComponentID is set.
type Owner struct {
	document.Ref
	ComponentID int64

	// Status pins the owner variant's status. Empty resolves the owner at the
	// requested status.
	Status v1.Status
}

// Options configures one resolution.
type Options struct {
	ResolutionContext
	Pagination pagination.Params

	// Search is accepted for findExisting and not applied.
	Search string
}

// Result is one page of related entities.
type Result struct {
	Results    []*v1.Entity        `json:"results"`
	Pagination pagination.PageInfo `json:"pagination"`
}

// Observer receives resolution measurements.
type Observer interface {
	ObserveResolution(mode string, cardinality schema.Cardinality, elapsed time.Duration)
	TargetsDropped(n int)
}

type nopObserver struct{}

func (nopObserver) ObserveResolution(string, schema.Cardinality, time.Duration) {}
func (nopObserver) TargetsDropped(int)                                          {}

// Engine resolves relation fields against a storage reader. It holds no per-request
// state and is safe for concurrent use.
type Engine struct {
	registry *schema.Registry
	store    storage.Reader
	resolver *document.Resolver
	limits   pagination.Limits
	observer Observer
}

func NewEngine(reg *schema.Registry, store storage.Reader, resolver *document.Resolver, limits pagination.Limits, obs Observer) *Engine {
	if obs == nil {
		obs = nopObserver{}
	}
	return &Engine{
		registry: reg,
		store:    store,
		resolver: resolver,
		limits:   limits,
		observer: obs,
	}
}

// linked is the filtered, ordered set of target documentIds of one field.
type linked struct {
	attr   *schema.Attribute
	target *schema.Model
	locale string
	ids    []string
}

// Resolve returns the targets linked from field in stored link order. Targets without
// a variant at the requested status and locale are dropped silently.
func (e *Engine) Resolve(ctx context.Context, owner Owner, field string, opts Options) (*Result, error) {
	start := time.Now()
	page, err := e.limits.Normalize(opts.Pagination)
	if err != nil {
		return nil, coreerrors.BadRequest(err.Error())
	}

	l, err := e.collect(ctx, owner, field, opts.ResolutionContext)
	if err != nil {
		return nil, err
	}

	from, to := page.Bounds(len(l.ids))
	entities, err := e.load(ctx, l, l.ids[from:to], opts.Status)
	if err != nil {
		return nil, err
	}

	e.observer.ObserveResolution(ModeDirect, l.attr.Relation.Cardinality, time.Since(start))
	return &Result{Results: entities, Pagination: page.Info(len(l.ids))}, nil
}

// FindExisting pages the targets already linked from field, sorted by the target's
// representative field and then by storage id.
func (e *Engine) FindExisting(ctx context.Context, owner Owner, field string, opts Options) (*Result, error) {
	start := time.Now()
	page, err := e.limits.Normalize(opts.Pagination)
	if err != nil {
		return nil, coreerrors.BadRequest(err.Error())
	}
	if opts.Search != "" {
		slog.Debug("Search is not applied to existing relations", "field", field)
	}

	l, err := e.collect(ctx, owner, field, opts.ResolutionContext)
	if err != nil {
		return nil, err
	}
	if len(l.ids) == 0 {
		e.observer.ObserveResolution(ModeExisting, l.attr.Relation.Cardinality, time.Since(start))
		return &Result{Results: []*v1.Entity{}, Pagination: page.Info(0)}, nil
	}

	rows, total, err := e.store.FindVariants(ctx, storage.VariantQuery{
		ContentType: l.target.UID,
		Status:      opts.Status,
		Locale:      l.locale,
		DocumentIDs: l.ids,
		SortField:   l.target.RepresentativeField(),
		Offset:      page.Offset(),
		Limit:       page.PageSize,
	})
	if err != nil {
		return nil, err
	}
	entities, err := e.withPublishedAt(ctx, l, rows)
	if err != nil {
		return nil, err
	}

	e.observer.ObserveResolution(ModeExisting, l.attr.Relation.Cardinality, time.Since(start))
	return &Result{Results: entities, Pagination: page.Info(total)}, nil
}

// collect looks up the field, resolves the owner and gathers the visible target ids.
func (e *Engine) collect(ctx context.Context, owner Owner, field string, rc ResolutionContext) (*linked, error) {
	var (
		ownerModel *schema.Model
		source     v1.LinkSource
		variant    *v1.Variant
		err        error
	)

	if owner.ComponentID != 0 {
		comp, err := e.store.GetComponent(ctx, owner.ComponentID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, coreerrors.NotFound("")
		}
		if err != nil {
			return nil, err
		}
		if ownerModel, err = e.registry.Get(comp.ComponentUID); err != nil {
			return nil, err
		}
		source = v1.ComponentSource(comp)
	} else if ownerModel, err = e.resolver.Model(owner.ContentType); err != nil {
		return nil, err
	}

	if !e.registry.IsRelationField(ownerModel.UID, field) {
		return nil, coreerrors.BadRequest(fieldNotRelational)
	}
	path, err := e.registry.Path(ownerModel.UID, field)
	if err != nil {
		return nil, err
	}
	attr := path[len(path)-1]
	if owner.ComponentID == 0 {
		ownerStatus := rc.Status
		if owner.Status != "" {
			ownerStatus = owner.Status
		}
		if variant, err = e.resolver.Resolve(ctx, owner.Ref, ownerStatus, rc.Locale); err != nil {
			return nil, err
		}
		source = v1.SourceOf(variant)
	}

	target, err := e.registry.Get(attr.Relation.Target)
	if err != nil {
		return nil, err
	}
	locale := rc.Locale
	if locale == "" && variant != nil {
		locale = variant.Locale
	}
	l := &linked{attr: attr, target: target, locale: e.resolver.Locale(target, locale)}

	var ids []string
	switch {
	case len(path) > 1:
		ids, err = e.componentLinks(ctx, source, path)
	case attr.Relation.MappedBy:
		if variant == nil {
			return nil, coreerrors.BadRequest(fieldNotRelational)
		}
		ids, err = e.store.ListInverseSources(ctx, storage.InverseQuery{
			SourceUID:        target.UID,
			Field:            attr.Relation.Inverse,
			TargetDocumentID: variant.DocumentID,
			Status:           rc.Status,
			Locale:           l.locale,
		})
	default:
		ids, err = e.links(ctx, source, attr.Name)
	}
	if err != nil {
		return nil, err
	}

	if l.ids, err = e.visible(ctx, l, ids, rc.Status); err != nil {
		return nil, err
	}
	if attr.Relation.Cardinality.IsSingle() && len(l.ids) > 1 {
		l.ids = l.ids[:1]
	}
	return l, nil
}

func (e *Engine) links(ctx context.Context, source v1.LinkSource, field string) ([]string, error) {
	links, err := e.store.ListLinks(ctx, source, field)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(links))
	for i, l := range links {
		ids[i] = l.TargetDocumentID
	}
	return ids, nil
}

// componentLinks walks the component attributes of path from source and concatenates
// the links of the final relation over all reached instances in position order.
func (e *Engine) componentLinks(ctx context.Context, source v1.LinkSource, path []*schema.Attribute) ([]string, error) {
	variantID := source.ID
	if source.Kind == v1.OwnerComponent {
		comp, err := e.store.GetComponent(ctx, source.ID)
		if err != nil {
			return nil, err
		}
		variantID = comp.VariantID
	}
	comps, err := e.store.ListComponents(ctx, variantID)
	if err != nil {
		return nil, err
	}

	type parentKey struct {
		kind v1.OwnerKind
		id   int64
	}
	children := make(map[parentKey][]*v1.Component)
	for _, c := range comps {
		k := parentKey{c.ParentKind, c.ParentID}
		children[k] = append(children[k], c)
	}

	level := []parentKey{{source.Kind, source.ID}}
	var reached []*v1.Component
	for _, a := range path[:len(path)-1] {
		reached = reached[:0]
		for _, p := range level {
			for _, c := range children[p] {
				if c.Field == a.Name {
					reached = append(reached, c)
				}
			}
		}
		level = level[:0]
		for _, c := range reached {
			level = append(level, parentKey{v1.OwnerComponent, c.ID})
		}
	}

	field := path[len(path)-1].Name
	perComponent := make([][]string, len(reached))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range reached {
		g.Go(func() error {
			ids, err := e.links(gctx, v1.ComponentSource(c), field)
			perComponent[i] = ids
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var ids []string
	for _, list := range perComponent {
		for _, id := range list {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// visible keeps the ids that have a variant at (status, locale), preserving order.
func (e *Engine) visible(ctx context.Context, l *linked, ids []string, status v1.Status) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}
	existing, err := e.store.ExistingDocumentIDs(ctx, l.target.UID, ids, status, l.locale)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if existing[id] {
			out = append(out, id)
		}
	}
	if dropped := len(ids) - len(out); dropped > 0 {
		e.observer.TargetsDropped(dropped)
		slog.Debug("Dropped relation targets without a matching variant",
			"target", l.target.UID, "field", l.attr.Name, "status", status, "locale", l.locale, "dropped", dropped)
	}
	return out, nil
}

// load fetches the page of targets and their publication timestamps concurrently and
// returns them in ids order.
func (e *Engine) load(ctx context.Context, l *linked, ids []string, status v1.Status) ([]*v1.Entity, error) {
	if len(ids) == 0 {
		return []*v1.Entity{}, nil
	}

	var rows []*v1.Variant
	var published map[string]time.Time
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, _, err = e.store.FindVariants(gctx, storage.VariantQuery{
			ContentType: l.target.UID,
			Status:      status,
			Locale:      l.locale,
			DocumentIDs: ids,
		})
		return err
	})
	g.Go(func() error {
		var err error
		published, err = e.store.PublishedAt(gctx, l.target.UID, ids, l.locale)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[string]*v1.Variant, len(rows))
	for _, v := range rows {
		byID[v.DocumentID] = v
	}
	out := make([]*v1.Entity, 0, len(ids))
	for _, id := range ids {
		v, ok := byID[id]
		if !ok {
			continue
		}
		out = append(out, entity(v, published))
	}
	return out, nil
}

func (e *Engine) withPublishedAt(ctx context.Context, l *linked, rows []*v1.Variant) ([]*v1.Entity, error) {
	out := make([]*v1.Entity, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]string, len(rows))
	for i, v := range rows {
		ids[i] = v.DocumentID
	}
	published, err := e.store.PublishedAt(ctx, l.target.UID, ids, l.locale)
	if err != nil {
		return nil, err
	}
	for _, v := range rows {
		out = append(out, entity(v, published))
	}
	return out, nil
}

func entity(v *v1.Variant, published map[string]time.Time) *v1.Entity {
	e := &v1.Entity{Variant: v}
	if at, ok := published[v.DocumentID]; ok {
		e.PublishedAt = &at
	}
	return e
}
