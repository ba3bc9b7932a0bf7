// Package schematest provides a frozen shop/product schema for tests of packages that
// resolve documents and relations.
package schematest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vellum-cms/vellum/internal/schema"
)

const (
	ProductUID  = "api::product.product"
	ShopUID     = "api::shop.shop"
	HomepageUID = "api::homepage.homepage"
	ArticleUID  = "api::article.article"
	CompoUID    = "default.compo"
)

func Scalar(name string, t schema.ScalarType) *schema.Attribute {
	return &schema.Attribute{Name: name, Kind: schema.AttributeScalar, Scalar: &schema.ScalarSpec{Type: t}}
}

func Relation(name string, c schema.Cardinality, target, inverse string) *schema.Attribute {
	return &schema.Attribute{
		Name:     name,
		Kind:     schema.AttributeRelation,
		Relation: &schema.RelationSpec{Cardinality: c, Target: target, Inverse: inverse},
	}
}

func Component(name, uid string, repeatable bool) *schema.Attribute {
	return &schema.Attribute{
		Name:      name,
		Kind:      schema.AttributeComponent,
		Component: &schema.ComponentSpec{UID: uid, Repeatable: repeatable},
	}
}

// ShopModels returns fresh, unregistered models:
//
//   - product: name; inverses are synthesized on freeze (shop_om, shops, shop_oo, shops_mo)
//   - shop: one field per cardinality plus a single and a repeatable component
//   - homepage: single type with a manyWay relation to products
//   - article: localized collection type with a manyToOne relation to shops
//   - default.compo: component with a manyWay relation to products
func ShopModels() []*schema.Model {
	return []*schema.Model{
		{
			UID:        ProductUID,
			Kind:       schema.KindCollectionType,
			Info:       schema.Info{SingularName: "product", PluralName: "products", DisplayName: "Product"},
			Attributes: []*schema.Attribute{Scalar("name", schema.TypeString)},
		},
		{
			UID:  ShopUID,
			Kind: schema.KindCollectionType,
			Info: schema.Info{SingularName: "shop", PluralName: "shops", DisplayName: "Shop"},
			Attributes: []*schema.Attribute{
				Scalar("name", schema.TypeString),
				Relation("products_ow", schema.OneWay, ProductUID, ""),
				Relation("products_oo", schema.OneToOne, ProductUID, "shop_oo"),
				Relation("products_mo", schema.ManyToOne, ProductUID, "shops_mo"),
				Relation("products_om", schema.OneToMany, ProductUID, "shop_om"),
				Relation("products_mm", schema.ManyToMany, ProductUID, "shops"),
				Relation("products_mw", schema.ManyWay, ProductUID, ""),
				Component("myCompo", CompoUID, false),
				Component("compos", CompoUID, true),
			},
		},
		{
			UID:  HomepageUID,
			Kind: schema.KindSingleType,
			Info: schema.Info{SingularName: "homepage", PluralName: "homepages", DisplayName: "Homepage"},
			Attributes: []*schema.Attribute{
				Scalar("title", schema.TypeString),
				Relation("featured", schema.ManyWay, ProductUID, ""),
			},
		},
		{
			UID:       ArticleUID,
			Kind:      schema.KindCollectionType,
			Info:      schema.Info{SingularName: "article", PluralName: "articles", DisplayName: "Article"},
			Localized: true,
			Attributes: []*schema.Attribute{
				Scalar("title", schema.TypeString),
				Relation("shop", schema.ManyToOne, ShopUID, "articles"),
			},
		},
		{
			UID:  CompoUID,
			Kind: schema.KindComponent,
			Info: schema.Info{DisplayName: "Compo"},
			Attributes: []*schema.Attribute{
				Scalar("label", schema.TypeString),
				Relation("compo_products_mw", schema.ManyWay, ProductUID, ""),
			},
		},
	}
}

// Registry registers and freezes ShopModels.
func Registry(t testing.TB) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry()
	for _, m := range ShopModels() {
		require.NoError(t, reg.Register(m))
	}
	require.NoError(t, reg.Freeze())
	return reg
}
