package graphql

import (
	"context"

	v1 "github.com/vellum-cms/vellum/internal/api/v1"
	"github.com/vellum-cms/vellum/internal/core/pagination"
	"github.com/vellum-cms/vellum/internal/document"
	"github.com/vellum-cms/vellum/internal/relation"
)

// node is the source value of a content type object. fields is nil for relation
// targets until a component field needs it.
type node struct {
	entity *v1.Entity
	fields map[string]interface{}
	rc     relation.ResolutionContext
}

func documentNode(doc *document.Document, rc relation.ResolutionContext) *node {
	return &node{entity: doc.Entity, fields: doc.Fields, rc: rc}
}

func (n *node) value(name string) interface{} {
	if n.fields != nil {
		return n.fields[name]
	}
	return n.entity.Data[name]
}

// load fills fields from the document service.
func (n *node) load(ctx context.Context, docs *document.Service) error {
	if n.fields != nil {
		return nil
	}
	doc, err := docs.FindOne(ctx, document.Ref{ContentType: n.entity.ContentType, DocumentID: n.entity.DocumentID}, n.entity.Status, n.entity.Locale)
	if err != nil {
		return err
	}
	n.fields = doc.Fields
	return nil
}

// owner is the relation owner for fields read from n: links come from n's own variant
// whatever status its targets are resolved at.
func (n *node) owner() relation.Owner {
	return relation.Owner{
		Ref:    document.Ref{ContentType: n.entity.ContentType, DocumentID: n.entity.DocumentID},
		Status: n.entity.Status,
	}
}

// componentNode is the source value of a component object.
type componentNode struct {
	data map[string]interface{}
	rc   relation.ResolutionContext
}

func (c *componentNode) id() int64 {
	switch id := c.data["id"].(type) {
	case int64:
		return id
	case float64:
		return int64(id)
	case int:
		return int64(id)
	}
	return 0
}

func entityResponse(n *node) map[string]interface{} {
	if n == nil {
		return map[string]interface{}{"data": nil}
	}
	return map[string]interface{}{"data": n}
}

func collectionResponse(nodes []*node, info pagination.PageInfo) map[string]interface{} {
	return map[string]interface{}{
		"data": nodes,
		"meta": map[string]interface{}{"pagination": map[string]interface{}{
			"page":      info.Page,
			"pageSize":  info.PageSize,
			"pageCount": info.PageCount,
			"total":     info.Total,
		}},
	}
}
