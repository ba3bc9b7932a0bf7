package graphql

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	gql "github.com/graphql-go/graphql"

	v1 "github.com/vellum-cms/vellum/internal/api/v1"
	coreerrors "github.com/vellum-cms/vellum/internal/core/errors"
	"github.com/vellum-cms/vellum/internal/core/pagination"
	"github.com/vellum-cms/vellum/internal/document"
	"github.com/vellum-cms/vellum/internal/relation"
	"github.com/vellum-cms/vellum/internal/schema"
)

// defaultStatus applies to root queries without a status argument.
const defaultStatus = v1.StatusPublished

// gqlError exposes a client error's name, status and details as GraphQL extensions.
type gqlError struct {
	err *coreerrors.Error
}

func (e *gqlError) Error() string { return e.err.Message }

func (e *gqlError) Extensions() map[string]interface{} {
	details := e.err.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	return map[string]interface{}{
		"code":    e.err.Name,
		"status":  e.err.Status,
		"details": details,
	}
}

func graphError(err error) error {
	if e, ok := coreerrors.As(err); ok {
		return &gqlError{err: e}
	}
	slog.Error("GraphQL resolver failed", "error", err)
	_, body := coreerrors.Envelope(err)
	return &gqlError{err: &coreerrors.Error{Name: body.Error.Name, Message: body.Error.Message, Status: body.Error.Status}}
}

func statusArg(args map[string]interface{}) v1.Status {
	if s, ok := args["status"].(string); ok {
		return v1.Status(s)
	}
	return ""
}

func stringArg(args map[string]interface{}, name string) string {
	s, _ := args[name].(string)
	return s
}

func pageArg(args map[string]interface{}) pagination.Params {
	var p pagination.Params
	raw, ok := args["pagination"].(map[string]interface{})
	if !ok {
		return p
	}
	p.Page, _ = raw["page"].(int)
	p.PageSize, _ = raw["pageSize"].(int)
	return p
}

func readContext(args map[string]interface{}) relation.ResolutionContext {
	rc := relation.ResolutionContext{Status: defaultStatus, Locale: stringArg(args, "locale")}
	return rc.WithStatus(statusArg(args))
}

func resolveSystem(name string) gql.FieldResolveFn {
	return func(p gql.ResolveParams) (interface{}, error) {
		n, ok := p.Source.(*node)
		if !ok {
			return nil, nil
		}
		switch name {
		case "documentId":
			return n.entity.DocumentID, nil
		case "locale":
			return n.entity.Locale, nil
		case "createdAt":
			return n.entity.CreatedAt, nil
		case "updatedAt":
			return n.entity.UpdatedAt, nil
		case "publishedAt":
			if n.entity.PublishedAt == nil {
				return nil, nil
			}
			return *n.entity.PublishedAt, nil
		}
		return nil, nil
	}
}

func resolveComponentID(p gql.ResolveParams) (interface{}, error) {
	c, ok := p.Source.(*componentNode)
	if !ok {
		return nil, nil
	}
	return strconv.FormatInt(c.id(), 10), nil
}

func resolveScalar(a *schema.Attribute) gql.FieldResolveFn {
	return func(p gql.ResolveParams) (interface{}, error) {
		switch src := p.Source.(type) {
		case *node:
			return scalarValue(a.Scalar.Type, src.value(a.Name)), nil
		case *componentNode:
			return scalarValue(a.Scalar.Type, src.data[a.Name]), nil
		}
		return nil, nil
	}
}

func (b *builder) resolveComponent(a *schema.Attribute) gql.FieldResolveFn {
	return func(p gql.ResolveParams) (interface{}, error) {
		var raw interface{}
		var rc relation.ResolutionContext
		switch src := p.Source.(type) {
		case *node:
			if err := src.load(p.Context, b.docs); err != nil {
				return nil, graphError(err)
			}
			raw, rc = src.fields[a.Name], src.rc
		case *componentNode:
			raw, rc = src.data[a.Name], src.rc
		}

		if a.Component.Repeatable {
			items, _ := raw.([]interface{})
			out := make([]*componentNode, 0, len(items))
			for _, item := range items {
				if data, ok := item.(map[string]interface{}); ok {
					out = append(out, &componentNode{data: data, rc: rc})
				}
			}
			return out, nil
		}
		if data, ok := raw.(map[string]interface{}); ok {
			return &componentNode{data: data, rc: rc}, nil
		}
		return nil, nil
	}
}

// resolveRelation resolves a relation field under the parent's ResolutionContext, with
// the field's status argument overriding it for this sub-tree.
func (b *builder) resolveRelation(a *schema.Attribute) gql.FieldResolveFn {
	single := a.Relation.Cardinality.IsSingle()
	return func(p gql.ResolveParams) (interface{}, error) {
		var owner relation.Owner
		var rc relation.ResolutionContext
		switch src := p.Source.(type) {
		case *node:
			owner, rc = src.owner(), src.rc
			if src.entity.Locale != v1.NoLocale {
				rc.Locale = src.entity.Locale
			}
		case *componentNode:
			owner, rc = relation.Owner{ComponentID: src.id()}, src.rc
		default:
			return nil, nil
		}
		rc = rc.WithStatus(statusArg(p.Args))

		page := pageArg(p.Args)
		if single {
			page = pagination.Params{Page: 1, PageSize: 1}
		}
		res, err := b.engine.Resolve(p.Context, owner, a.Name, relation.Options{ResolutionContext: rc, Pagination: page})
		if err != nil {
			return nil, graphError(err)
		}

		nodes := make([]*node, len(res.Results))
		for i, e := range res.Results {
			nodes[i] = &node{entity: e, rc: rc}
		}
		if single {
			if len(nodes) == 0 {
				return nil, nil
			}
			return nodes[0], nil
		}
		return nodes, nil
	}
}

func (b *builder) resolveFind(m *schema.Model) gql.FieldResolveFn {
	return func(p gql.ResolveParams) (interface{}, error) {
		rc := readContext(p.Args)
		res, err := b.docs.Find(p.Context, m.UID, document.FindParams{
			Status:     rc.Status,
			Locale:     rc.Locale,
			Sort:       stringArg(p.Args, "sort"),
			Pagination: pageArg(p.Args),
		})
		if err != nil {
			return nil, graphError(err)
		}
		nodes := make([]*node, len(res.Results))
		for i, doc := range res.Results {
			nodes[i] = documentNode(doc, rc)
		}
		return collectionResponse(nodes, res.Pagination), nil
	}
}

// resolveFindOne returns data null for missing documents.
func (b *builder) resolveFindOne(m *schema.Model) gql.FieldResolveFn {
	return func(p gql.ResolveParams) (interface{}, error) {
		rc := readContext(p.Args)
		ref := document.Ref{ContentType: m.UID, DocumentID: stringArg(p.Args, "documentId")}
		doc, err := b.docs.FindOne(p.Context, ref, rc.Status, rc.Locale)
		if errors.Is(err, coreerrors.NotFound("")) {
			return entityResponse(nil), nil
		}
		if err != nil {
			return nil, graphError(err)
		}
		return entityResponse(documentNode(doc, rc)), nil
	}
}

// payload splits the publishedAt marker from the document data.
func payload(args map[string]interface{}) (map[string]interface{}, bool) {
	in, _ := args["data"].(map[string]interface{})
	data := make(map[string]interface{}, len(in))
	publish := false
	for k, v := range in {
		if k == "publishedAt" {
			publish = v != nil
			continue
		}
		data[k] = v
	}
	return data, publish
}

func (b *builder) respond(ctx context.Context, doc *document.Document, publish bool) (interface{}, error) {
	if publish {
		var err error
		doc, err = b.docs.Publish(ctx, document.Ref{ContentType: doc.ContentType, DocumentID: doc.DocumentID}, doc.Locale)
		if err != nil {
			return nil, graphError(err)
		}
	}
	return entityResponse(documentNode(doc, relation.ResolutionContext{Status: doc.Status, Locale: doc.Locale})), nil
}

func (b *builder) resolveCreate(m *schema.Model) gql.FieldResolveFn {
	return func(p gql.ResolveParams) (interface{}, error) {
		data, publish := payload(p.Args)
		doc, err := b.docs.Create(p.Context, m.UID, stringArg(p.Args, "locale"), data)
		if err != nil {
			return nil, graphError(err)
		}
		return b.respond(p.Context, doc, publish)
	}
}

func (b *builder) resolveUpdate(m *schema.Model) gql.FieldResolveFn {
	return func(p gql.ResolveParams) (interface{}, error) {
		data, publish := payload(p.Args)
		ref := document.Ref{ContentType: m.UID, DocumentID: stringArg(p.Args, "documentId")}
		doc, err := b.docs.Update(p.Context, ref, stringArg(p.Args, "locale"), data)
		if err != nil {
			return nil, graphError(err)
		}
		return b.respond(p.Context, doc, publish)
	}
}

// resolveUpsert updates a single type's draft, creating the document when missing.
func (b *builder) resolveUpsert(m *schema.Model) gql.FieldResolveFn {
	return func(p gql.ResolveParams) (interface{}, error) {
		data, publish := payload(p.Args)
		locale := stringArg(p.Args, "locale")
		doc, err := b.docs.Update(p.Context, document.Ref{ContentType: m.UID}, locale, data)
		if errors.Is(err, coreerrors.NotFound("")) {
			doc, err = b.docs.Create(p.Context, m.UID, locale, data)
		}
		if err != nil {
			return nil, graphError(err)
		}
		return b.respond(p.Context, doc, publish)
	}
}

type action func(ctx context.Context, ref document.Ref, locale string) (*document.Document, error)

func (b *builder) lifecycle(m *schema.Model, run action) gql.FieldResolveFn {
	return func(p gql.ResolveParams) (interface{}, error) {
		ref := document.Ref{ContentType: m.UID, DocumentID: stringArg(p.Args, "documentId")}
		doc, err := run(p.Context, ref, stringArg(p.Args, "locale"))
		if err != nil {
			return nil, graphError(err)
		}
		return b.respond(p.Context, doc, false)
	}
}

func (b *builder) resolveDelete(m *schema.Model) gql.FieldResolveFn {
	return b.lifecycle(m, b.docs.Delete)
}

func (b *builder) resolvePublish(m *schema.Model) gql.FieldResolveFn {
	return b.lifecycle(m, b.docs.Publish)
}

func (b *builder) resolveUnpublish(m *schema.Model) gql.FieldResolveFn {
	return b.lifecycle(m, b.docs.Unpublish)
}
