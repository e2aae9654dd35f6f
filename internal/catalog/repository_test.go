package catalog_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopcore/shop-service/internal/catalog"
)

// Repository tests run against a real database with the migrations applied.
// Set TEST_DATABASE_DSN to enable them.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set; skipping repository tests")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func seedVariant(t *testing.T, repo *catalog.PostgresRepository, stock int) *catalog.Variant {
	t.Helper()
	ctx := context.Background()

	p := &catalog.Product{
		Title:    "Test Product " + mustUUID(t).String(),
		Slug:     "test-product-" + mustUUID(t).String(),
		IsActive: true,
	}
	require.NoError(t, repo.CreateProduct(ctx, p))

	v := &catalog.Variant{
		ProductID: p.ID,
		SKU:       "SKU-" + mustUUID(t).String(),
		Price:     decimal.RequireFromString("19.99"),
		Currency:  "USD",
		Stock:     stock,
	}
	require.NoError(t, repo.CreateVariant(ctx, v))
	return v
}

func TestPostgresRepository_StockLifecycle(t *testing.T) {
	pool := newTestPool(t)
	repo := catalog.NewRepository(pool)
	ctx := context.Background()

	v := seedVariant(t, repo, 2)

	require.NoError(t, repo.ReserveStock(ctx, pool, v.ID, 1, catalog.ReasonCheckout))

	got, err := repo.GetVariant(ctx, pool, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stock)
	assert.True(t, got.ProductActive)

	err = repo.ReserveStock(ctx, pool, v.ID, 5, catalog.ReasonCheckout)
	assert.ErrorIs(t, err, catalog.ErrInsufficientStock)

	got, err = repo.GetVariant(ctx, pool, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stock, "a failed reservation must not move stock")

	require.NoError(t, repo.ReleaseStock(ctx, pool, v.ID, 1, catalog.ReasonRestock))

	got, err = repo.GetVariant(ctx, pool, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stock)
}

func TestPostgresRepository_ListCategories(t *testing.T) {
	pool := newTestPool(t)
	repo := catalog.NewRepository(pool)
	ctx := context.Background()

	id := mustUUID(t)
	slug := "category-" + id.String()
	_, err := pool.Exec(ctx,
		`INSERT INTO categories (id, name, slug) VALUES ($1, $2, $3)`,
		id, "Test Category", slug)
	require.NoError(t, err)

	categories, err := repo.ListCategories(ctx)
	require.NoError(t, err)

	found := false
	for _, c := range categories {
		if c.ID == id {
			found = true
			assert.Equal(t, slug, c.Slug)
			assert.Nil(t, c.ParentID)
		}
	}
	assert.True(t, found)
}

func TestPostgresRepository_GetVariant_NotFound(t *testing.T) {
	pool := newTestPool(t)
	repo := catalog.NewRepository(pool)

	_, err := repo.GetVariant(context.Background(), pool, mustUUID(t))
	assert.ErrorIs(t, err, catalog.ErrVariantNotFound)
}

func TestPostgresRepository_GetProductBySlug(t *testing.T) {
	pool := newTestPool(t)
	repo := catalog.NewRepository(pool)
	ctx := context.Background()

	v := seedVariant(t, repo, 3)

	created, err := repo.GetVariant(ctx, pool, v.ID)
	require.NoError(t, err)

	p, err := repo.GetProductByID(ctx, created.ProductID)
	require.NoError(t, err)

	bySlug, err := repo.GetProductBySlug(ctx, p.Slug)
	require.NoError(t, err)
	assert.Equal(t, p.ID, bySlug.ID)
	require.Len(t, bySlug.Variants, 1)
	assert.Equal(t, v.ID, bySlug.Variants[0].ID)

	_, err = repo.GetProductBySlug(ctx, "no-such-slug-"+mustUUID(t).String())
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}
