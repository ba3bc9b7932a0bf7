package graphql

import (
	"fmt"

	gql "github.com/graphql-go/graphql"

	"github.com/vellum-cms/vellum/internal/document"
	"github.com/vellum-cms/vellum/internal/relation"
	"github.com/vellum-cms/vellum/internal/schema"
)

// builder generates the GraphQL schema from a frozen registry.
type builder struct {
	registry *schema.Registry
	docs     *document.Service
	engine   *relation.Engine

	objects map[string]*gql.Object

	status     *gql.Enum
	pageArg    *gql.InputObject
	collection *gql.Object
}

func newBuilder(reg *schema.Registry, docs *document.Service, engine *relation.Engine) *builder {
	b := &builder{
		registry: reg,
		docs:     docs,
		engine:   engine,
		objects:  make(map[string]*gql.Object),
	}

	b.status = gql.NewEnum(gql.EnumConfig{
		Name: "PublicationStatus",
		Values: gql.EnumValueConfigMap{
			"DRAFT":     &gql.EnumValueConfig{Value: "draft"},
			"PUBLISHED": &gql.EnumValueConfig{Value: "published"},
		},
	})
	b.pageArg = gql.NewInputObject(gql.InputObjectConfig{
		Name: "PaginationArg",
		Fields: gql.InputObjectConfigFieldMap{
			"page":     &gql.InputObjectFieldConfig{Type: gql.Int},
			"pageSize": &gql.InputObjectFieldConfig{Type: gql.Int},
		},
	})
	pageInfo := gql.NewObject(gql.ObjectConfig{
		Name: "Pagination",
		Fields: gql.Fields{
			"page":      &gql.Field{Type: gql.NewNonNull(gql.Int)},
			"pageSize":  &gql.Field{Type: gql.NewNonNull(gql.Int)},
			"pageCount": &gql.Field{Type: gql.NewNonNull(gql.Int)},
			"total":     &gql.Field{Type: gql.NewNonNull(gql.Int)},
		},
	})
	b.collection = gql.NewObject(gql.ObjectConfig{
		Name: "ResponseCollectionMeta",
		Fields: gql.Fields{
			"pagination": &gql.Field{Type: gql.NewNonNull(pageInfo)},
		},
	})
	return b
}

func (b *builder) build() (*gql.Schema, error) {
	query := gql.Fields{}
	mutation := gql.Fields{}

	for _, m := range b.registry.ContentTypes() {
		obj := b.object(m)
		response := gql.NewObject(gql.ObjectConfig{
			Name:   obj.Name() + "EntityResponse",
			Fields: gql.Fields{"data": &gql.Field{Type: obj}},
		})
		input := b.input(m)

		if m.IsSingleType() {
			b.singleTypeFields(m, response, input, query, mutation)
			continue
		}

		collection := gql.NewObject(gql.ObjectConfig{
			Name: obj.Name() + "EntityResponseCollection",
			Fields: gql.Fields{
				"data": &gql.Field{Type: gql.NewNonNull(gql.NewList(gql.NewNonNull(obj)))},
				"meta": &gql.Field{Type: gql.NewNonNull(b.collection)},
			},
		})
		b.collectionTypeFields(m, response, collection, input, query, mutation)
	}

	if len(query) == 0 {
		return nil, fmt.Errorf("no content types registered")
	}
	s, err := gql.NewSchema(gql.SchemaConfig{
		Query:    gql.NewObject(gql.ObjectConfig{Name: "Query", Fields: query}),
		Mutation: gql.NewObject(gql.ObjectConfig{Name: "Mutation", Fields: mutation}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build graphql schema: %w", err)
	}
	return &s, nil
}

func (b *builder) readArgs() gql.FieldConfigArgument {
	return gql.FieldConfigArgument{
		"status": &gql.ArgumentConfig{Type: b.status},
		"locale": &gql.ArgumentConfig{Type: gql.String},
	}
}

func (b *builder) collectionTypeFields(m *schema.Model, response, collection *gql.Object, input *gql.InputObject, query, mutation gql.Fields) {
	name := pascal(m.Info.SingularName)
	id := &gql.ArgumentConfig{Type: gql.NewNonNull(gql.ID)}
	locale := &gql.ArgumentConfig{Type: gql.String}

	list := b.readArgs()
	list["sort"] = &gql.ArgumentConfig{Type: gql.String}
	list["pagination"] = &gql.ArgumentConfig{Type: b.pageArg}
	query[camel(m.Info.PluralName)] = &gql.Field{Type: collection, Args: list, Resolve: b.resolveFind(m)}

	one := b.readArgs()
	one["documentId"] = id
	query[camel(m.Info.SingularName)] = &gql.Field{Type: response, Args: one, Resolve: b.resolveFindOne(m)}

	data := &gql.ArgumentConfig{Type: gql.NewNonNull(input)}
	mutation["create"+name] = &gql.Field{
		Type:    response,
		Args:    gql.FieldConfigArgument{"data": data, "locale": locale},
		Resolve: b.resolveCreate(m),
	}
	mutation["update"+name] = &gql.Field{
		Type:    response,
		Args:    gql.FieldConfigArgument{"documentId": id, "data": data, "locale": locale},
		Resolve: b.resolveUpdate(m),
	}
	for prefix, action := range map[string]func(m *schema.Model) gql.FieldResolveFn{
		"delete":    b.resolveDelete,
		"publish":   b.resolvePublish,
		"unpublish": b.resolveUnpublish,
	} {
		mutation[prefix+name] = &gql.Field{
			Type:    response,
			Args:    gql.FieldConfigArgument{"documentId": id, "locale": locale},
			Resolve: action(m),
		}
	}
}

func (b *builder) singleTypeFields(m *schema.Model, response *gql.Object, input *gql.InputObject, query, mutation gql.Fields) {
	name := pascal(m.Info.SingularName)
	locale := &gql.ArgumentConfig{Type: gql.String}

	query[camel(m.Info.SingularName)] = &gql.Field{Type: response, Args: b.readArgs(), Resolve: b.resolveFindOne(m)}

	mutation["update"+name] = &gql.Field{
		Type: response,
		Args: gql.FieldConfigArgument{
			"data":   &gql.ArgumentConfig{Type: gql.NewNonNull(input)},
			"locale": locale,
		},
		Resolve: b.resolveUpsert(m),
	}
	for prefix, action := range map[string]func(m *schema.Model) gql.FieldResolveFn{
		"delete":    b.resolveDelete,
		"publish":   b.resolvePublish,
		"unpublish": b.resolveUnpublish,
	} {
		mutation[prefix+name] = &gql.Field{
			Type:    response,
			Args:    gql.FieldConfigArgument{"locale": locale},
			Resolve: action(m),
		}
	}
}

// object returns the output type of m, creating it on first use. Fields are a thunk so
// that mutually related types can reference each other.
func (b *builder) object(m *schema.Model) *gql.Object {
	if obj, ok := b.objects[m.UID]; ok {
		return obj
	}
	obj := gql.NewObject(gql.ObjectConfig{
		Name:   typeName(m),
		Fields: gql.FieldsThunk(func() gql.Fields { return b.fields(m) }),
	})
	b.objects[m.UID] = obj
	return obj
}

func (b *builder) fields(m *schema.Model) gql.Fields {
	fields := gql.Fields{}
	if m.IsComponent() {
		fields["id"] = &gql.Field{Type: gql.NewNonNull(gql.ID), Resolve: resolveComponentID}
	} else {
		fields["documentId"] = &gql.Field{Type: gql.NewNonNull(gql.ID), Resolve: resolveSystem("documentId")}
		fields["createdAt"] = &gql.Field{Type: gql.DateTime, Resolve: resolveSystem("createdAt")}
		fields["updatedAt"] = &gql.Field{Type: gql.DateTime, Resolve: resolveSystem("updatedAt")}
		fields["publishedAt"] = &gql.Field{Type: gql.DateTime, Resolve: resolveSystem("publishedAt")}
		if m.Localized {
			fields["locale"] = &gql.Field{Type: gql.String, Resolve: resolveSystem("locale")}
		}
	}

	for _, a := range m.Attributes {
		switch a.Kind {
		case schema.AttributeScalar:
			fields[a.Name] = &gql.Field{Type: scalarType(a.Scalar.Type), Resolve: resolveScalar(a)}
		case schema.AttributeComponent:
			cm, err := b.registry.Get(a.Component.UID)
			if err != nil {
				continue
			}
			var typ gql.Output = b.object(cm)
			if a.Component.Repeatable {
				typ = gql.NewNonNull(gql.NewList(gql.NewNonNull(b.object(cm))))
			}
			fields[a.Name] = &gql.Field{Type: typ, Resolve: b.resolveComponent(a)}
		case schema.AttributeRelation:
			target, err := b.registry.Get(a.Relation.Target)
			if err != nil {
				continue
			}
			args := gql.FieldConfigArgument{"status": &gql.ArgumentConfig{Type: b.status}}
			var typ gql.Output = b.object(target)
			if !a.Relation.Cardinality.IsSingle() {
				typ = gql.NewNonNull(gql.NewList(gql.NewNonNull(b.object(target))))
				args["pagination"] = &gql.ArgumentConfig{Type: b.pageArg}
			}
			fields[a.Name] = &gql.Field{Type: typ, Args: args, Resolve: b.resolveRelation(a)}
		}
	}
	return fields
}

// input is the create/update payload type of m. Relations take documentIds, components
// take their JSON shape and a non-null publishedAt publishes the result.
func (b *builder) input(m *schema.Model) *gql.InputObject {
	fields := gql.InputObjectConfigFieldMap{
		"publishedAt": &gql.InputObjectFieldConfig{Type: gql.DateTime},
	}
	for _, a := range m.Attributes {
		switch a.Kind {
		case schema.AttributeScalar:
			fields[a.Name] = &gql.InputObjectFieldConfig{Type: scalarInput(a.Scalar.Type)}
		case schema.AttributeComponent:
			fields[a.Name] = &gql.InputObjectFieldConfig{Type: jsonScalar}
		case schema.AttributeRelation:
			if a.Relation.Cardinality.IsSingle() {
				fields[a.Name] = &gql.InputObjectFieldConfig{Type: gql.ID}
			} else {
				fields[a.Name] = &gql.InputObjectFieldConfig{Type: gql.NewList(gql.NewNonNull(gql.ID))}
			}
		}
	}
	return gql.NewInputObject(gql.InputObjectConfig{Name: typeName(m) + "Input", Fields: fields})
}
