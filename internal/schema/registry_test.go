package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubRepository struct {
	defs []*Definition
}

func (s *stubRepository) List(ctx context.Context) ([]*Definition, error) {
	return s.defs, nil
}

type stubCompiler struct {
	models map[string][]*Model
}

func (s *stubCompiler) Compile(ctx context.Context, def *Definition) ([]*Model, error) {
	return s.models[def.Name], nil
}

func scalar(name string, t ScalarType) *Attribute {
	return &Attribute{Name: name, Kind: AttributeScalar, Scalar: &ScalarSpec{Type: t}}
}

func relation(name string, c Cardinality, target, inverse string) *Attribute {
	return &Attribute{Name: name, Kind: AttributeRelation, Relation: &RelationSpec{Cardinality: c, Target: target, Inverse: inverse}}
}

func component(name, uid string, repeatable bool) *Attribute {
	return &Attribute{Name: name, Kind: AttributeComponent, Component: &ComponentSpec{UID: uid, Repeatable: repeatable}}
}

func shopModels() []*Model {
	return []*Model{
		{
			UID:  "api::product.product",
			Kind: KindCollectionType,
			Attributes: []*Attribute{
				scalar("name", TypeString),
			},
		},
		{
			UID:  "api::shop.shop",
			Kind: KindCollectionType,
			Attributes: []*Attribute{
				scalar("name", TypeString),
				relation("products_om", OneToMany, "api::product.product", "shop_om"),
				relation("products_mm", ManyToMany, "api::product.product", "shops"),
				relation("products_ow", OneWay, "api::product.product", ""),
				component("myCompo", "default.compo", false),
			},
		},
		{
			UID:  "default.compo",
			Kind: KindComponent,
			Attributes: []*Attribute{
				relation("compo_products_mw", ManyWay, "api::product.product", ""),
			},
		},
	}
}

func frozenRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	for _, m := range shopModels() {
		require.NoError(t, reg.Register(m))
	}
	require.NoError(t, reg.Freeze())
	return reg
}

func TestRegistry_RegisterIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(shopModels()[0]))
	require.NoError(t, reg.Register(shopModels()[0]))

	conflicting := shopModels()[0]
	conflicting.Attributes = append(conflicting.Attributes, scalar("sku", TypeString))
	err := reg.Register(conflicting)
	require.ErrorIs(t, err, ErrConflict)
}

func TestRegistry_RegisterAfterFreeze(t *testing.T) {
	reg := frozenRegistry(t)
	err := reg.Register(&Model{UID: "api::late.late", Kind: KindCollectionType})
	require.ErrorIs(t, err, ErrFrozen)
}

func TestRegistry_FreezeSynthesizesInverses(t *testing.T) {
	reg := frozenRegistry(t)

	shopOM, err := reg.Field("api::product.product", "shop_om")
	require.NoError(t, err)
	require.Equal(t, ManyToOne, shopOM.Relation.Cardinality)
	require.Equal(t, "api::shop.shop", shopOM.Relation.Target)
	require.Equal(t, "products_om", shopOM.Relation.Inverse)
	require.True(t, shopOM.Relation.MappedBy)

	shops, err := reg.Field("api::product.product", "shops")
	require.NoError(t, err)
	require.Equal(t, ManyToMany, shops.Relation.Cardinality)
	require.True(t, shops.Relation.MappedBy)

	owner, err := reg.Field("api::shop.shop", "products_mm")
	require.NoError(t, err)
	require.False(t, owner.Relation.MappedBy)

	target, inverse, ok := reg.GetInverse("api::shop.shop", "products_mm")
	require.True(t, ok)
	require.Equal(t, "api::product.product", target)
	require.Equal(t, "shops", inverse)

	_, _, ok = reg.GetInverse("api::shop.shop", "products_ow")
	require.False(t, ok)
}

func TestRegistry_FreezeAcceptsDeclaredInverse(t *testing.T) {
	models := shopModels()
	models[0].Attributes = append(models[0].Attributes, relation("shops", ManyToMany, "api::shop.shop", "products_mm"))

	reg := NewRegistry()
	for _, m := range models {
		require.NoError(t, reg.Register(m))
	}
	require.NoError(t, reg.Freeze())

	// api::product.product sorts first, so its declaration owns the links.
	shops, err := reg.Field("api::product.product", "shops")
	require.NoError(t, err)
	require.False(t, shops.Relation.MappedBy)
	mm, err := reg.Field("api::shop.shop", "products_mm")
	require.NoError(t, err)
	require.True(t, mm.Relation.MappedBy)
}

func TestRegistry_FreezeConflicts(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(models []*Model)
		errMsg string
	}{
		{
			name: "mismatched inverse cardinality",
			mutate: func(models []*Model) {
				models[0].Attributes = append(models[0].Attributes, relation("shops", OneToMany, "api::shop.shop", "products_mm"))
			},
			errMsg: "expected manyToOne",
		},
		{
			name: "inverse is a scalar",
			mutate: func(models []*Model) {
				models[0].Attributes = append(models[0].Attributes, scalar("shops", TypeString))
			},
			errMsg: "is not a relation",
		},
		{
			name: "unknown relation target",
			mutate: func(models []*Model) {
				models[1].Attributes = append(models[1].Attributes, relation("ghost", ManyWay, "api::ghost.ghost", ""))
			},
			errMsg: "is not registered",
		},
		{
			name: "relation targets a component",
			mutate: func(models []*Model) {
				models[1].Attributes = append(models[1].Attributes, relation("bad", OneWay, "default.compo", ""))
			},
			errMsg: "is a component",
		},
		{
			name: "component cycle",
			mutate: func(models []*Model) {
				models[2].Attributes = append(models[2].Attributes, component("self", "default.compo", true))
			},
			errMsg: "component cycle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			models := shopModels()
			tt.mutate(models)

			reg := NewRegistry()
			for _, m := range models {
				require.NoError(t, reg.Register(m))
			}
			err := reg.Freeze()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestRegistry_FieldPaths(t *testing.T) {
	reg := frozenRegistry(t)

	require.True(t, reg.IsRelationField("api::shop.shop", "products_om"))
	require.False(t, reg.IsRelationField("api::shop.shop", "name"))
	require.False(t, reg.IsRelationField("api::shop.shop", "missing"))
	require.False(t, reg.IsRelationField("api::missing.missing", "products_om"))
	require.True(t, reg.IsRelationField("api::shop.shop", "myCompo.compo_products_mw"))

	chain, err := reg.Path("api::shop.shop", "myCompo.compo_products_mw")
	require.NoError(t, err)
	require.Len(t, chain, 2)
	require.Equal(t, "myCompo", chain[0].Name)
	require.Equal(t, ManyWay, chain[1].Relation.Cardinality)

	_, err = reg.Path("api::shop.shop", "name.compo_products_mw")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_ContentTypes(t *testing.T) {
	reg := frozenRegistry(t)
	var uids []string
	for _, m := range reg.ContentTypes() {
		uids = append(uids, m.UID)
	}
	require.Equal(t, []string{"api::product.product", "api::shop.shop"}, uids)
}

func TestLoad(t *testing.T) {
	models := shopModels()
	repo := &stubRepository{defs: []*Definition{
		{Name: "content-types.yaml", Format: FormatYaml},
		{Name: "components.yaml", Format: FormatYaml},
	}}
	formats := NewFormatRegistry()
	formats.RegisterFormat(FormatYaml, &stubCompiler{models: map[string][]*Model{
		"content-types.yaml": models[:2],
		"components.yaml":    models[2:],
	}})

	reg, err := Load(context.Background(), repo, formats)
	require.NoError(t, err)
	require.Len(t, reg.List(), 3)
	require.True(t, reg.IsRelationField("api::product.product", "shops"))

	repo.defs = append(repo.defs, &Definition{Name: "schema.json", Format: FormatJSON})
	_, err = Load(context.Background(), repo, formats)
	require.ErrorContains(t, err, "unsupported schema format")
}
