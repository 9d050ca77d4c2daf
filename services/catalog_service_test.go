package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/models"
	"storefront/repository/memory"
)

func TestCatalogCreateValidation(t *testing.T) {
	svc := NewCatalogService(memory.New().Products())
	name, desc := "Tee", "Cotton tee"
	price := dec("19.99")
	badPrice := dec("-1")
	cat := models.CategoryMensWear
	badCat := models.Category("hats")

	tests := []struct {
		name string
		in   models.ProductInput
	}{
		{"missing name", models.ProductInput{Description: &desc, Price: &price, Category: &cat}},
		{"missing price", models.ProductInput{Name: &name, Description: &desc, Category: &cat}},
		{"negative price", models.ProductInput{Name: &name, Description: &desc, Price: &badPrice, Category: &cat}},
		{"unknown category", models.ProductInput{Name: &name, Description: &desc, Price: &price, Category: &badCat}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestCatalogListFilters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	featured := true
	name, desc := "Biker Jacket", "Lambskin leather"
	price := dec("249.99")
	cat := models.CategoryLeatherJackets
	_, err := f.catalog.Create(ctx, models.ProductInput{Name: &name, Description: &desc, Price: &price, Category: &cat, Featured: &featured})
	require.NoError(t, err)

	all, err := f.catalog.List(ctx, models.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	jackets, err := f.catalog.List(ctx, models.ProductFilter{Category: models.CategoryLeatherJackets})
	require.NoError(t, err)
	require.Len(t, jackets, 1)
	assert.Equal(t, "Biker Jacket", jackets[0].Name)

	found, err := f.catalog.List(ctx, models.ProductFilter{Search: "  LAMBSKIN "})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	onlyFeatured, err := f.catalog.List(ctx, models.ProductFilter{Featured: true})
	require.NoError(t, err)
	assert.Len(t, onlyFeatured, 1)

	_, err = f.catalog.List(ctx, models.ProductFilter{Category: "hats"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCatalogUpdatePartial(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	stock := 42

	updated, err := f.catalog.Update(ctx, f.productB.ID, models.ProductInput{Stock: &stock, Sizes: []string{"M", "M", " L "}})
	require.NoError(t, err)
	assert.Equal(t, 42, updated.Stock)
	assert.Equal(t, []string{"M", "L"}, updated.Sizes)
	assert.Equal(t, "Product B", updated.Name)
	assert.Equal(t, "30.00", updated.Price.StringFixed(2))

	_, err = f.catalog.Update(ctx, "missing", models.ProductInput{Stock: &stock})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalogDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.catalog.Delete(ctx, f.productA.ID))
	assert.ErrorIs(t, f.catalog.Delete(ctx, f.productA.ID), ErrNotFound)

	all, err := f.catalog.List(ctx, models.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCatalogSeedOnlyWhenEmpty(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewCatalogService(store.Products())

	require.NoError(t, svc.Seed(ctx))
	require.NoError(t, svc.Seed(ctx))

	n, err := store.Products().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(seedCatalog()), n)
}
