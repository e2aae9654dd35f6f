package cart_test

import (
	"context"
	"os"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopcore/shop-service/internal/cart"
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

func seedVariant(t *testing.T, pool *pgxpool.Pool) *catalog.Variant {
	t.Helper()
	ctx := context.Background()
	repo := catalog.NewRepository(pool)

	p := &catalog.Product{
		Title:    "Cart Test Product " + mustUUID(t).String(),
		Slug:     "cart-test-product-" + mustUUID(t).String(),
		IsActive: true,
	}
	require.NoError(t, repo.CreateProduct(ctx, p))

	v := &catalog.Variant{
		ProductID: p.ID,
		SKU:       "SKU-" + mustUUID(t).String(),
		Price:     decimal.RequireFromString("10.00"),
		Currency:  "USD",
		Stock:     100,
	}
	require.NoError(t, repo.CreateVariant(ctx, v))
	return v
}

func TestPostgresRepository_GetOrCreateByUser(t *testing.T) {
	pool := newTestPool(t)
	repo := cart.NewRepository(pool)
	ctx := context.Background()
	userID := mustUUID(t)

	first, err := repo.GetOrCreateByUser(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, first.Items)

	second, err := repo.GetOrCreateByUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "one cart per user")
}

func TestPostgresRepository_InsertItem_DuplicateVariant(t *testing.T) {
	pool := newTestPool(t)
	repo := cart.NewRepository(pool)
	ctx := context.Background()

	v := seedVariant(t, pool)
	c, err := repo.GetOrCreateByUser(ctx, mustUUID(t))
	require.NoError(t, err)

	item := &cart.CartItem{
		CartID:     c.ID,
		VariantID:  v.ID,
		Quantity:   1,
		PriceAtAdd: v.Price,
	}
	require.NoError(t, repo.InsertItem(ctx, item))

	dup := &cart.CartItem{
		CartID:     c.ID,
		VariantID:  v.ID,
		Quantity:   2,
		PriceAtAdd: v.Price,
	}
	err = repo.InsertItem(ctx, dup)
	assert.ErrorIs(t, err, cart.ErrItemExists)
}

func TestPostgresRepository_GetItemForUser_ForeignItem(t *testing.T) {
	pool := newTestPool(t)
	repo := cart.NewRepository(pool)
	ctx := context.Background()

	owner := mustUUID(t)
	stranger := mustUUID(t)

	v := seedVariant(t, pool)
	c, err := repo.GetOrCreateByUser(ctx, owner)
	require.NoError(t, err)

	item := &cart.CartItem{CartID: c.ID, VariantID: v.ID, Quantity: 1, PriceAtAdd: v.Price}
	require.NoError(t, repo.InsertItem(ctx, item))

	got, err := repo.GetItemForUser(ctx, item.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)

	_, err = repo.GetItemForUser(ctx, item.ID, stranger)
	assert.ErrorIs(t, err, cart.ErrItemNotFound)
}

func TestPostgresRepository_DeleteItems(t *testing.T) {
	pool := newTestPool(t)
	repo := cart.NewRepository(pool)
	ctx := context.Background()
	userID := mustUUID(t)

	drained := seedVariant(t, pool)
	kept := seedVariant(t, pool)
	c, err := repo.GetOrCreateByUser(ctx, userID)
	require.NoError(t, err)

	drainedItem := &cart.CartItem{CartID: c.ID, VariantID: drained.ID, Quantity: 2, PriceAtAdd: drained.Price}
	require.NoError(t, repo.InsertItem(ctx, drainedItem))
	keptItem := &cart.CartItem{CartID: c.ID, VariantID: kept.ID, Quantity: 1, PriceAtAdd: kept.Price}
	require.NoError(t, repo.InsertItem(ctx, keptItem))

	// Only the listed lines go; an unlisted line in the same cart stays.
	require.NoError(t, repo.DeleteItems(ctx, pool, []uuid.UUID{drainedItem.ID}))

	after, err := repo.GetOrCreateByUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, after.ID, "the cart row survives the drain")
	require.Len(t, after.Items, 1)
	assert.Equal(t, keptItem.ID, after.Items[0].ID)
}
