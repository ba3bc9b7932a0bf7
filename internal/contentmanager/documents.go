package contentmanager

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	v1 "github.com/vellum-cms/vellum/internal/api/v1"
	coreerrors "github.com/vellum-cms/vellum/internal/core/errors"
	"github.com/vellum-cms/vellum/internal/core/pagination"
	"github.com/vellum-cms/vellum/internal/document"
	"github.com/vellum-cms/vellum/internal/relation"
)

// CreateHandler handles POST /collection-types/{uid}.
func (s *Service) CreateHandler(c *gin.Context) {
	body, err := s.parseBody(c)
	if err != nil {
		abort(c, err)
		return
	}

	doc, err := s.documents.Create(c.Request.Context(), c.Param("uid"), c.Query("locale"), body)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": doc})
}

// FindHandler handles GET /collection-types/{uid}.
func (s *Service) FindHandler(c *gin.Context) {
	uid := c.Param("uid")
	q, err := s.readQuery(c, uid)
	if err != nil {
		abort(c, err)
		return
	}
	st, err := status(q)
	if err != nil {
		abort(c, err)
		return
	}
	p, err := page(q)
	if err != nil {
		abort(c, err)
		return
	}

	res, err := s.documents.Find(c.Request.Context(), uid, document.FindParams{
		Status:     st,
		Locale:     q.Get("locale"),
		Sort:       q.Get("sort"),
		Pagination: p,
	})
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// FindOneHandler handles GET /collection-types/{uid}/{id} and GET /single-types/{uid}.
// ?populate=a,b (or *) resolves the named relation fields in link order.
func (s *Service) FindOneHandler(c *gin.Context) {
	r := ref(c)
	q, err := s.readQuery(c, r.ContentType)
	if err != nil {
		abort(c, err)
		return
	}
	st, err := status(q)
	if err != nil {
		abort(c, err)
		return
	}

	ctx := c.Request.Context()
	doc, err := s.documents.FindOne(ctx, r, st, q.Get("locale"))
	if err != nil {
		abort(c, err)
		return
	}
	if doc, err = s.populate(ctx, doc, st, q); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": doc})
}

// UpdateHandler handles PUT /collection-types/{uid}/{id}.
func (s *Service) UpdateHandler(c *gin.Context) {
	body, err := s.parseBody(c)
	if err != nil {
		abort(c, err)
		return
	}

	doc, err := s.documents.Update(c.Request.Context(), ref(c), c.Query("locale"), body)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": doc})
}

// UpsertSingleHandler handles PUT /single-types/{uid}: it updates the draft of the
// single document, creating it when the locale has none yet.
func (s *Service) UpsertSingleHandler(c *gin.Context) {
	body, err := s.parseBody(c)
	if err != nil {
		abort(c, err)
		return
	}

	ctx := c.Request.Context()
	uid, locale := c.Param("uid"), c.Query("locale")
	doc, err := s.documents.Update(ctx, document.Ref{ContentType: uid}, locale, body)
	if isNotFound(err) {
		doc, err = s.documents.Create(ctx, uid, locale, body)
	}
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": doc})
}

// DeleteHandler handles DELETE /collection-types/{uid}/{id} and DELETE /single-types/{uid}.
func (s *Service) DeleteHandler(c *gin.Context) {
	doc, err := s.documents.Delete(c.Request.Context(), ref(c), c.Query("locale"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": doc})
}

// ActionHandler handles POST .../actions/{publish|unpublish|discard}.
func (s *Service) ActionHandler(c *gin.Context) {
	var action func(context.Context, document.Ref, string) (*document.Document, error)
	switch c.Param("action") {
	case "publish":
		action = s.documents.Publish
	case "unpublish":
		action = s.documents.Unpublish
	case "discard":
		action = s.documents.Discard
	default:
		abort(c, coreerrors.NotFound(fmt.Sprintf("unknown action %q", c.Param("action"))))
		return
	}

	doc, err := action(c.Request.Context(), ref(c), c.Query("locale"))
	if err != nil {
		abort(c, err)
		return
	}
	slog.Debug("Document action applied", "action", c.Param("action"), "content_type", doc.ContentType, "document_id", doc.DocumentID)
	c.JSON(http.StatusOK, gin.H{"data": doc})
}

// populate resolves the relation fields named by ?populate under the requested status.
func (s *Service) populate(ctx context.Context, doc *document.Document, st v1.Status, q url.Values) (*document.Document, error) {
	fields := populateFields(q.Get("populate"))
	if len(fields) == 0 {
		return doc, nil
	}
	m, err := s.documents.Resolver().Model(doc.ContentType)
	if err != nil {
		return nil, err
	}
	if len(fields) == 1 && fields[0] == "*" {
		fields = fields[:0]
		for _, a := range m.Attributes {
			if a.IsRelation() {
				fields = append(fields, a.Name)
			}
		}
	}

	owner := relation.Owner{Ref: document.Ref{ContentType: doc.ContentType, DocumentID: doc.DocumentID}}
	opts := relation.Options{
		ResolutionContext: relation.ResolutionContext{Status: st, Locale: doc.Locale},
		Pagination:        pagination.Params{Page: 1, PageSize: s.populateLimit},
	}

	merged := make(map[string]interface{}, len(doc.Fields)+len(fields))
	for k, v := range doc.Fields {
		merged[k] = v
	}
	for _, field := range fields {
		res, err := s.relations.Resolve(ctx, owner, field, opts)
		if err != nil {
			return nil, err
		}
		if attr, ok := m.Attribute(field); ok && attr.Relation.Cardinality.IsSingle() {
			if len(res.Results) == 0 {
				merged[field] = nil
			} else {
				merged[field] = res.Results[0]
			}
			continue
		}
		merged[field] = res.Results
	}
	return &document.Document{Entity: doc.Entity, Fields: merged}, nil
}

func populateFields(raw string) []string {
	var out []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
