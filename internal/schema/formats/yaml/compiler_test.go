package yaml

import (
	"context"
	"strings"
	"testing"

	"github.com/vellum-cms/vellum/internal/schema"
)

func TestCompiler_Compile(t *testing.T) {
	compiler := NewCompiler()
	ctx := context.Background()

	tests := []struct {
		name       string
		definition string
		wantErr    bool
		errMsg     string
		wantModels int
	}{
		{
			name: "valid shorthand - scalar types",
			definition: `
uid: api::product.product
info: {singularName: product, pluralName: products, displayName: Product}
attributes:
  name:     string!
  price:    decimal
  stock:    integer
  active:   bool
  released: date
`,
			wantModels: 1,
		},
		{
			name: "valid long form - relation and component",
			definition: `
kind: collectionType
uid: api::shop.shop
info: {singularName: shop, pluralName: shops, displayName: Shop}
attributes:
  name:
    type: string!
    minLength: 1
    maxLength: 120
  products_mm:
    type: relation
    relation: manyToMany
    target: api::product.product
    inverse: shops
  myCompo:
    type: component
    component: default.compo
`,
			wantModels: 1,
		},
		{
			name: "valid multi-document stream",
			definition: `
kind: component
uid: default.compo
info: {singularName: compo, pluralName: compos, displayName: Compo}
attributes:
  label: string
---
kind: singleType
uid: api::homepage.homepage
info: {singularName: homepage, pluralName: homepages, displayName: Homepage}
attributes:
  title: string
`,
			wantModels: 2,
		},
		{
			name:       "valid json definition",
			definition: `{"uid": "api::tag.tag", "info": {"singularName": "tag", "pluralName": "tags", "displayName": "Tag"}, "attributes": {"name": "string!"}}`,
			wantModels: 1,
		},
		{
			name: "invalid - unknown scalar type",
			definition: `
uid: api::product.product
attributes:
  name: varchar
`,
			wantErr: true,
			errMsg:  "unsupported type",
		},
		{
			name: "invalid - long form missing type",
			definition: `
uid: api::product.product
attributes:
  name:
    minLength: 1
`,
			wantErr: true,
			errMsg:  "attribute missing 'type'",
		},
		{
			name: "invalid - manyToMany without inverse",
			definition: `
uid: api::shop.shop
attributes:
  products:
    type: relation
    relation: manyToMany
    target: api::product.product
`,
			wantErr: true,
			errMsg:  "requires an inverse",
		},
		{
			name: "invalid - reserved attribute name",
			definition: `
uid: api::shop.shop
attributes:
  documentId: string
`,
			wantErr: true,
			errMsg:  "reserved",
		},
		{
			name: "invalid - component with bidirectional relation",
			definition: `
kind: component
uid: default.compo
attributes:
  shop:
    type: relation
    relation: manyToOne
    target: api::shop.shop
    inverse: compos
`,
			wantErr: true,
			errMsg:  "component relations must be oneWay or manyWay",
		},
		{
			name: "invalid - relation with component options",
			definition: `
uid: api::shop.shop
attributes:
  products:
    type: relation
    relation: manyWay
    target: api::product.product
    component: default.compo
`,
			wantErr: true,
			errMsg:  "do not support component options",
		},
		{
			name:       "invalid - empty definition",
			definition: ``,
			wantErr:    true,
			errMsg:     "declares no models",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := &schema.Definition{
				Name:    "test.yaml",
				Format:  schema.FormatYaml,
				Content: []byte(tt.definition),
			}

			models, err := compiler.Compile(ctx, def)

			if tt.wantErr {
				if err == nil {
					t.Errorf("Compile() expected error, got nil")
					return
				}
				if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("Compile() error = %v, want containing %q", err, tt.errMsg)
				}
				return
			}

			if err != nil {
				t.Errorf("Compile() unexpected error: %v", err)
				return
			}
			if len(models) != tt.wantModels {
				t.Errorf("Compile() returned %d models, want %d", len(models), tt.wantModels)
			}
		})
	}
}

func TestCompiler_PreservesAttributeOrder(t *testing.T) {
	def := &schema.Definition{
		Name:   "order.yaml",
		Format: schema.FormatYaml,
		Content: []byte(`
uid: api::article.article
attributes:
  zeta: string
  alpha: string!
  mid: integer
`),
	}

	models, err := NewCompiler().Compile(context.Background(), def)
	if err != nil {
		t.Fatalf("Compile() unexpected error: %v", err)
	}

	var names []string
	for _, a := range models[0].Attributes {
		names = append(names, a.Name)
	}
	if got := strings.Join(names, ","); got != "zeta,alpha,mid" {
		t.Errorf("attribute order = %s, want zeta,alpha,mid", got)
	}

	alpha, _ := models[0].Attribute("alpha")
	if !alpha.Required {
		t.Errorf("alpha should be required via '!' suffix")
	}
}

func TestCompiler_NormalizesOneSidedRelations(t *testing.T) {
	def := &schema.Definition{
		Name:   "shop.yaml",
		Format: schema.FormatYaml,
		Content: []byte(`
uid: api::shop.shop
attributes:
  featured:
    type: relation
    relation: oneToOne
    target: api::product.product
  catalog:
    type: relation
    relation: oneToMany
    target: api::product.product
`),
	}

	models, err := NewCompiler().Compile(context.Background(), def)
	if err != nil {
		t.Fatalf("Compile() unexpected error: %v", err)
	}

	featured, _ := models[0].Attribute("featured")
	if featured.Relation.Cardinality != schema.OneWay {
		t.Errorf("featured cardinality = %s, want oneWay", featured.Relation.Cardinality)
	}
	catalog, _ := models[0].Attribute("catalog")
	if catalog.Relation.Cardinality != schema.ManyWay {
		t.Errorf("catalog cardinality = %s, want manyWay", catalog.Relation.Cardinality)
	}
}
