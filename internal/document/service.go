package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	v1 "github.com/vellum-cms/vellum/internal/api/v1"
	coreerrors "github.com/vellum-cms/vellum/internal/core/errors"
	"github.com/vellum-cms/vellum/internal/core/pagination"
	"github.com/vellum-cms/vellum/internal/core/storage"
	"github.com/vellum-cms/vellum/internal/schema"
)

// HistoryRecorder persists a snapshot of a variant after a committed mutation.
type HistoryRecorder interface {
	Record(ctx context.Context, version *v1.HistoryVersion) error
}

// Document is a variant with its scalar and component content.
type Document struct {
	*v1.Entity

	// Fields holds scalar values and component instances. Relation fields are resolved
	// separately.
	Fields map[string]interface{}
}

// MarshalJSON renders the document as one flat object.
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Attributes(d.Fields))
}

// FindParams selects one page of a content type's variants.
type FindParams struct {
	Status     v1.Status
	Locale     string
	Sort       string
	Pagination pagination.Params
}

// FindResult is one page of documents.
type FindResult struct {
	Results    []*Document         `json:"results"`
	Pagination pagination.PageInfo `json:"pagination"`
}

type Option func(*Service)

// WithHistory records a HistoryVersion after every mutation.
func WithHistory(rec HistoryRecorder) Option {
	return func(s *Service) { s.history = rec }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDocumentIDs overrides documentId generation.
func WithDocumentIDs(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// Service implements the document lifecycle on top of a DocumentStore. Each operation
// runs in one store transaction.
type Service struct {
	registry  *schema.Registry
	validator *schema.Validator
	store     storage.DocumentStore
	resolver  *Resolver
	limits    pagination.Limits
	history   HistoryRecorder
	now       func() time.Time
	newID     func() string
}

func NewService(reg *schema.Registry, val *schema.Validator, store storage.DocumentStore, defaultLocale string, limits pagination.Limits, opts ...Option) *Service {
	if reg == nil {
		panic("document: registry must not be nil")
	}
	if val == nil {
		panic("document: validator must not be nil")
	}
	if store == nil {
		panic("document: store must not be nil")
	}
	s := &Service{
		registry:  reg,
		validator: val,
		store:     store,
		resolver:  NewResolver(reg, store, defaultLocale),
		limits:    limits,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolver returns the identity resolver bound to the service's store.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

func (s *Service) parser(r storage.Reader, locale string) *parser {
	return &parser{registry: s.registry, validator: s.validator, reader: r, locale: locale}
}

// Create stores a new draft variant. For single types the existing documentId is
// reused so that every locale belongs to the same document.
func (s *Service) Create(ctx context.Context, uid, locale string, raw map[string]interface{}) (*Document, error) {
	m, err := s.resolver.Model(uid)
	if err != nil {
		return nil, err
	}
	locale = s.resolver.Locale(m, locale)

	var created *v1.Variant
	var body *content
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		in, err := s.parser(tx, locale).parse(ctx, m, raw, schema.ValidateCreate)
		if err != nil {
			return err
		}

		documentID := s.newID()
		if m.IsSingleType() {
			existing, err := s.resolver.SingleDocumentID(ctx, tx, m, locale)
			if err != nil {
				return err
			}
			if existing != "" {
				documentID = existing
			}
		}

		now := s.now()
		v := &v1.Variant{
			DocumentID:  documentID,
			ContentType: m.UID,
			Status:      v1.StatusDraft,
			Locale:      locale,
			Data:        in.data,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.InsertVariant(ctx, v); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return coreerrors.BadRequest(fmt.Sprintf("document %s already has a draft for this locale", documentID))
			}
			return err
		}
		if err := writeContent(ctx, tx, v, in.content, nil); err != nil {
			return err
		}
		if err := s.writeMapped(ctx, tx, m, v, in.mapped); err != nil {
			return err
		}
		created, body = v, in.content
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Document created", "content_type", m.UID, "document_id", created.DocumentID, "locale", created.Locale)
	s.record(ctx, created, body)
	return s.FindOne(ctx, Ref{ContentType: m.UID, DocumentID: created.DocumentID}, v1.StatusDraft, locale)
}

// Update patches the draft variant. Scalars are merged, given component fields are
// replaced and given relation fields replace their whole ordered link set.
func (s *Service) Update(ctx context.Context, ref Ref, locale string, raw map[string]interface{}) (*Document, error) {
	m, err := s.resolver.Model(ref.ContentType)
	if err != nil {
		return nil, err
	}

	var updated *v1.Variant
	var body *content
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		v, err := s.resolver.resolveWith(ctx, tx, ref, v1.StatusDraft, locale)
		if err != nil {
			return err
		}
		in, err := s.parser(tx, v.Locale).parse(ctx, m, raw, schema.ValidatePatch)
		if err != nil {
			return err
		}
		current, err := loadContent(ctx, s.registry, tx, v)
		if err != nil {
			return err
		}

		for k, val := range in.data {
			current.data[k] = val
		}
		for k, ids := range in.relations {
			current.relations[k] = ids
		}
		for k, nodes := range in.components {
			current.components[k] = nodes
		}
		if missing := missingRequired(m, current); len(missing) > 0 {
			return coreerrors.Validation(
				fmt.Sprintf("missing required fields: %v", missing),
				map[string]interface{}{"fields": missing},
			)
		}

		now := s.now()
		if err := tx.UpdateVariantData(ctx, v.ID, current.data, now); err != nil {
			return err
		}
		v.Data, v.UpdatedAt = current.data, now

		if len(in.components) > 0 {
			if err := tx.DeleteComponents(ctx, v.ID); err != nil {
				return err
			}
			if err := writeComponents(ctx, tx, v, v1.LinkSource{Kind: v1.OwnerVariant, ID: v.ID}, current); err != nil {
				return err
			}
		}

		fields := make(map[string]bool, len(in.relations))
		for k := range in.relations {
			fields[k] = true
		}
		if err := writeLinks(ctx, tx, v, v1.SourceOf(v), current, fields); err != nil {
			return err
		}
		if err := s.writeMapped(ctx, tx, m, v, in.mapped); err != nil {
			return err
		}
		updated, body = v, current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, updated, body)
	return s.FindOne(ctx, Ref{ContentType: m.UID, DocumentID: updated.DocumentID}, v1.StatusDraft, updated.Locale)
}

// Publish replaces the published variant with a copy of the current draft, including
// its components and links.
func (s *Service) Publish(ctx context.Context, ref Ref, locale string) (*Document, error) {
	m, err := s.resolver.Model(ref.ContentType)
	if err != nil {
		return nil, err
	}

	var published *v1.Variant
	var body *content
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		draft, err := s.resolver.resolveWith(ctx, tx, ref, v1.StatusDraft, locale)
		if err != nil {
			return err
		}
		published, body, err = s.materialize(ctx, tx, draft, v1.StatusPublished)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Document published", "content_type", m.UID, "document_id", published.DocumentID, "locale", published.Locale)
	s.record(ctx, published, body)
	return s.FindOne(ctx, Ref{ContentType: m.UID, DocumentID: published.DocumentID}, v1.StatusPublished, published.Locale)
}

// Unpublish deletes the published variant. A document always keeps a draft, so one is
// created from the published content if it is missing.
func (s *Service) Unpublish(ctx context.Context, ref Ref, locale string) (*Document, error) {
	m, err := s.resolver.Model(ref.ContentType)
	if err != nil {
		return nil, err
	}

	var draft *v1.Variant
	var body *content
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		pub, err := s.resolver.resolveWith(ctx, tx, ref, v1.StatusPublished, locale)
		if err != nil {
			return err
		}

		draft, err = tx.GetVariant(ctx, storage.VariantKey{
			ContentType: m.UID, DocumentID: pub.DocumentID, Status: v1.StatusDraft, Locale: pub.Locale,
		})
		switch {
		case errors.Is(err, storage.ErrNotFound):
			if draft, body, err = s.materialize(ctx, tx, pub, v1.StatusDraft); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if body, err = loadContent(ctx, s.registry, tx, draft); err != nil {
				return err
			}
		}
		return tx.DeleteVariant(ctx, pub.ID)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Document unpublished", "content_type", m.UID, "document_id", draft.DocumentID, "locale", draft.Locale)
	s.record(ctx, draft, body)
	return s.FindOne(ctx, Ref{ContentType: m.UID, DocumentID: draft.DocumentID}, v1.StatusDraft, draft.Locale)
}

// Discard resets the draft to the published content.
func (s *Service) Discard(ctx context.Context, ref Ref, locale string) (*Document, error) {
	m, err := s.resolver.Model(ref.ContentType)
	if err != nil {
		return nil, err
	}

	var draft *v1.Variant
	var body *content
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		pub, err := s.resolver.resolveWith(ctx, tx, ref, v1.StatusPublished, locale)
		if err != nil {
			return err
		}
		draft, body, err = s.materialize(ctx, tx, pub, v1.StatusDraft)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, draft, body)
	return s.FindOne(ctx, Ref{ContentType: m.UID, DocumentID: draft.DocumentID}, v1.StatusDraft, draft.Locale)
}

// materialize replaces the (status, locale) variant of from's document with a copy of
// from. Components get fresh ids; links are re-inserted under the new status, which
// applies the exclusive-target rule among variants of that status.
func (s *Service) materialize(ctx context.Context, tx storage.Tx, from *v1.Variant, status v1.Status) (*v1.Variant, *content, error) {
	body, err := loadContent(ctx, s.registry, tx, from)
	if err != nil {
		return nil, nil, err
	}

	createdAt := from.CreatedAt
	old, err := tx.GetVariant(ctx, storage.VariantKey{
		ContentType: from.ContentType, DocumentID: from.DocumentID, Status: status, Locale: from.Locale,
	})
	switch {
	case err == nil:
		createdAt = old.CreatedAt
		if err := tx.DeleteVariant(ctx, old.ID); err != nil {
			return nil, nil, err
		}
	case !errors.Is(err, storage.ErrNotFound):
		return nil, nil, err
	}

	now := s.now()
	v := &v1.Variant{
		DocumentID:  from.DocumentID,
		ContentType: from.ContentType,
		Status:      status,
		Locale:      from.Locale,
		Data:        body.data,
		CreatedAt:   createdAt,
		UpdatedAt:   now,
	}
	if status == v1.StatusPublished {
		v.PublishedAt = &now
	}
	if err := tx.InsertVariant(ctx, v); err != nil {
		return nil, nil, err
	}
	if err := writeContent(ctx, tx, v, body, nil); err != nil {
		return nil, nil, err
	}
	return v, body, nil
}

// Delete removes the document. For localized types only the variants of the requested
// locale are removed; links pointing at the document are dropped once no variant is left.
func (s *Service) Delete(ctx context.Context, ref Ref, locale string) (*Document, error) {
	m, err := s.resolver.Model(ref.ContentType)
	if err != nil {
		return nil, err
	}
	locale = s.resolver.Locale(m, locale)

	var deleted *Document
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		documentID, err := s.documentID(ctx, tx, m, ref, locale)
		if err != nil {
			return err
		}
		variants, err := tx.ListVariants(ctx, m.UID, documentID)
		if err != nil {
			return err
		}

		remaining := 0
		for _, v := range variants {
			if v.Locale != locale {
				remaining++
				continue
			}
			if deleted == nil || v.Status == v1.StatusDraft {
				body, err := loadContent(ctx, s.registry, tx, v)
				if err != nil {
					return err
				}
				deleted = &Document{Entity: &v1.Entity{Variant: v}, Fields: body.snapshot(false)}
			}
		}
		if deleted == nil {
			return coreerrors.NotFound("")
		}

		for _, v := range variants {
			if v.Locale != locale {
				continue
			}
			if err := tx.DeleteVariant(ctx, v.ID); err != nil {
				return err
			}
		}
		if remaining == 0 {
			return tx.DeleteInboundLinks(ctx, m.UID, documentID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Document deleted", "content_type", m.UID, "document_id", deleted.DocumentID, "locale", locale)
	return deleted, nil
}

func (s *Service) documentID(ctx context.Context, r storage.Reader, m *schema.Model, ref Ref, locale string) (string, error) {
	switch {
	case ref.EntityID != 0:
		row, err := r.GetVariantByID(ctx, m.UID, ref.EntityID)
		if err != nil {
			return "", notFoundOr(err)
		}
		return row.DocumentID, nil
	case ref.DocumentID != "":
		return ref.DocumentID, nil
	case m.IsSingleType():
		id, err := s.resolver.SingleDocumentID(ctx, r, m, locale)
		if err != nil {
			return "", err
		}
		if id == "" {
			return "", coreerrors.NotFound("")
		}
		return id, nil
	default:
		return "", coreerrors.NotFound("")
	}
}

// FindOne returns the (status, locale) variant of a document.
func (s *Service) FindOne(ctx context.Context, ref Ref, status v1.Status, locale string) (*Document, error) {
	v, err := s.resolver.Resolve(ctx, ref, status, locale)
	if err != nil {
		return nil, err
	}
	docs, err := s.documents(ctx, []*v1.Variant{v})
	if err != nil {
		return nil, err
	}
	return docs[0], nil
}

// Find pages the variants of a content type at (status, locale), ordered by Sort
// (a scalar attribute) and then by storage id.
func (s *Service) Find(ctx context.Context, uid string, p FindParams) (*FindResult, error) {
	m, err := s.resolver.Model(uid)
	if err != nil {
		return nil, err
	}
	page, err := s.limits.Normalize(p.Pagination)
	if err != nil {
		return nil, coreerrors.BadRequest(err.Error())
	}
	if p.Sort != "" {
		if a, ok := m.Attribute(p.Sort); !ok || a.Kind != schema.AttributeScalar {
			return nil, coreerrors.BadRequest(fmt.Sprintf("cannot sort by %q", p.Sort))
		}
	}

	rows, total, err := s.store.FindVariants(ctx, storage.VariantQuery{
		ContentType: m.UID,
		Status:      p.Status,
		Locale:      s.resolver.Locale(m, p.Locale),
		SortField:   p.Sort,
		Offset:      page.Offset(),
		Limit:       page.PageSize,
	})
	if err != nil {
		return nil, err
	}
	docs, err := s.documents(ctx, rows)
	if err != nil {
		return nil, err
	}
	return &FindResult{Results: docs, Pagination: page.Info(total)}, nil
}

// documents attaches publishedAt and content to rows of one content type and locale.
func (s *Service) documents(ctx context.Context, rows []*v1.Variant) ([]*Document, error) {
	out := make([]*Document, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}

	ids := make([]string, len(rows))
	for i, v := range rows {
		ids[i] = v.DocumentID
	}
	published, err := s.store.PublishedAt(ctx, rows[0].ContentType, ids, rows[0].Locale)
	if err != nil {
		return nil, err
	}

	for _, v := range rows {
		body, err := loadContent(ctx, s.registry, s.store, v)
		if err != nil {
			return nil, err
		}
		e := &v1.Entity{Variant: v}
		if at, ok := published[v.DocumentID]; ok {
			e.PublishedAt = &at
		}
		out = append(out, &Document{Entity: e, Fields: body.snapshot(false)})
	}
	return out, nil
}

// writeMapped applies writes to inverse-side fields by editing the owning field on each
// added or removed source document at the same status and locale, then renumbers the
// inverse side in the requested order.
func (s *Service) writeMapped(ctx context.Context, tx storage.Tx, m *schema.Model, v *v1.Variant, mapped map[string][]string) error {
	for _, name := range sortedKeys(mapped) {
		ownerUID, inverse, ok := s.registry.GetInverse(m.UID, name)
		if !ok {
			return fmt.Errorf("%s.%s has no inverse", m.UID, name)
		}
		owner, err := s.registry.Get(ownerUID)
		if err != nil {
			return err
		}
		owning, ok := owner.Attribute(inverse)
		if !ok || !owning.IsRelation() {
			return fmt.Errorf("inverse %s.%s not found", owner.UID, inverse)
		}
		locale := s.resolver.Locale(owner, v.Locale)

		q := storage.InverseQuery{
			SourceUID:        owner.UID,
			Field:            owning.Name,
			TargetDocumentID: v.DocumentID,
			Status:           v.Status,
			Locale:           locale,
		}
		current, err := tx.ListInverseSources(ctx, q)
		if err != nil {
			return err
		}

		want := make(map[string]bool, len(mapped[name]))
		for _, id := range mapped[name] {
			want[id] = true
		}
		have := make(map[string]bool, len(current))
		for _, id := range current {
			have[id] = true
			if !want[id] {
				if err := s.relink(ctx, tx, owner, owning, id, v, locale, false); err != nil {
					return err
				}
			}
		}
		for _, id := range mapped[name] {
			if !have[id] {
				if err := s.relink(ctx, tx, owner, owning, id, v, locale, true); err != nil {
					return err
				}
			}
		}
		// The requested order is the inverse order, including for kept sources.
		if err := tx.SetInversePositions(ctx, q, mapped[name]); err != nil {
			return err
		}
	}
	return nil
}

// relink adds target to, or removes it from, the owning field of source.
func (s *Service) relink(ctx context.Context, tx storage.Tx, owner *schema.Model, owning *schema.Attribute, source string, target *v1.Variant, locale string, attach bool) error {
	src, err := tx.GetVariant(ctx, storage.VariantKey{
		ContentType: owner.UID, DocumentID: source, Status: target.Status, Locale: locale,
	})
	if errors.Is(err, storage.ErrNotFound) {
		return coreerrors.Validation(
			fmt.Sprintf("%s %s has no %s variant", owner.UID, source, target.Status),
			map[string]interface{}{"documentId": source},
		)
	}
	if err != nil {
		return err
	}

	links, err := tx.ListLinks(ctx, v1.SourceOf(src), owning.Name)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(links)+1)
	for _, l := range links {
		if l.TargetDocumentID != target.DocumentID {
			ids = append(ids, l.TargetDocumentID)
		}
	}
	if attach {
		if owning.Relation.Cardinality.IsSingle() {
			ids = ids[:0]
		}
		ids = append(ids, target.DocumentID)
	}

	return tx.ReplaceLinks(ctx, storage.LinkSet{
		Source:            v1.SourceOf(src),
		Field:             owning.Name,
		TargetUID:         owning.Relation.Target,
		TargetDocumentIDs: ids,
		Exclusive:         owning.Relation.Cardinality.TargetIsExclusive(),
		Status:            src.Status,
		Locale:            src.Locale,
	})
}

func (s *Service) record(ctx context.Context, v *v1.Variant, body *content) {
	if s.history == nil {
		return
	}
	version := &v1.HistoryVersion{
		ID:          uuid.NewString(),
		DocumentID:  v.DocumentID,
		ContentType: v.ContentType,
		Status:      v.Status,
		Locale:      v.Locale,
		Data:        body.snapshot(true),
		CreatedAt:   s.now(),
	}
	if err := s.history.Record(ctx, version); err != nil {
		slog.Warn("Failed to record history version",
			"content_type", v.ContentType, "document_id", v.DocumentID, "error", err)
	}
}

// missingRequired lists required attributes without a value. Inverse-side relations
// are not stored on the document and are never checked.
func missingRequired(m *schema.Model, c *content) []string {
	var missing []string
	for _, a := range m.Attributes {
		if !a.Required {
			continue
		}
		switch a.Kind {
		case schema.AttributeScalar:
			if c.data[a.Name] == nil {
				missing = append(missing, a.Name)
			}
		case schema.AttributeRelation:
			if !a.Relation.MappedBy && len(c.relations[a.Name]) == 0 {
				missing = append(missing, a.Name)
			}
		case schema.AttributeComponent:
			if len(c.components[a.Name]) == 0 {
				missing = append(missing, a.Name)
			}
		}
	}
	sort.Strings(missing)
	return missing
}
