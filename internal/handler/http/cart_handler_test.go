package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopcore/shop-service/internal/cart"
	"github.com/shopcore/shop-service/internal/catalog"
)

type mockCartService struct {
	getCartFunc            func(ctx context.Context, userID uuid.UUID) (*cart.Cart, error)
	addItemFunc            func(ctx context.Context, userID, variantID uuid.UUID, quantity int) (*cart.Cart, error)
	updateItemQuantityFunc func(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*cart.Cart, error)
	removeItemFunc         func(ctx context.Context, userID, itemID uuid.UUID) error
}

func (m *mockCartService) GetCart(ctx context.Context, userID uuid.UUID) (*cart.Cart, error) {
	return m.getCartFunc(ctx, userID)
}

func (m *mockCartService) AddItem(ctx context.Context, userID, variantID uuid.UUID, quantity int) (*cart.Cart, error) {
	return m.addItemFunc(ctx, userID, variantID, quantity)
}

func (m *mockCartService) UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*cart.Cart, error) {
	return m.updateItemQuantityFunc(ctx, userID, itemID, quantity)
}

func (m *mockCartService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	return m.removeItemFunc(ctx, userID, itemID)
}

func newCartRouter(svc cart.Service) chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(RequireUserID)
		NewCartHandler(svc).RegisterRoutes(r)
	})
	return r
}

func mustUUID(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := uuid.NewV4()
	require.NoError(t, err)
	return id
}

func doRequest(t *testing.T, router chi.Router, method, path string, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestCartHandler_RequiresIdentity(t *testing.T) {
	router := newCartRouter(&mockCartService{})

	rr := doRequest(t, router, http.MethodGet, "/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doRequest(t, router, http.MethodGet, "/cart", "not-a-uuid", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCartHandler_GetCart(t *testing.T) {
	userID := mustUUID(t)
	cartID := mustUUID(t)
	svc := &mockCartService{
		getCartFunc: func(ctx context.Context, gotUser uuid.UUID) (*cart.Cart, error) {
			assert.Equal(t, userID, gotUser)
			return &cart.Cart{ID: cartID, UserID: gotUser, Items: []cart.CartItem{}}, nil
		},
	}

	rr := doRequest(t, newCartRouter(svc), http.MethodGet, "/cart", userID.String(), nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var got cart.Cart
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, cartID, got.ID)
}

func TestCartHandler_AddItem(t *testing.T) {
	userID := mustUUID(t)
	variantID := mustUUID(t)

	var gotVariant uuid.UUID
	var gotQuantity int
	svc := &mockCartService{
		addItemFunc: func(ctx context.Context, _ uuid.UUID, variantID uuid.UUID, quantity int) (*cart.Cart, error) {
			gotVariant = variantID
			gotQuantity = quantity
			return &cart.Cart{
				ID:     mustUUID(t),
				UserID: userID,
				Items: []cart.CartItem{
					{VariantID: variantID, Quantity: quantity, PriceAtAdd: decimal.RequireFromString("10.00")},
				},
			}, nil
		},
	}

	rr := doRequest(t, newCartRouter(svc), http.MethodPost, "/cart/items", userID.String(),
		map[string]any{"variant_id": variantID.String(), "quantity": 2})

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, variantID, gotVariant)
	assert.Equal(t, 2, gotQuantity)
}

func TestCartHandler_AddItem_ValidationFailure(t *testing.T) {
	router := newCartRouter(&mockCartService{})
	userID := mustUUID(t).String()

	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "zero_quantity", body: map[string]any{"variant_id": mustUUID(t).String(), "quantity": 0}},
		{name: "negative_quantity", body: map[string]any{"variant_id": mustUUID(t).String(), "quantity": -1}},
		{name: "missing_variant", body: map[string]any{"quantity": 1}},
		{name: "malformed_variant", body: map[string]any{"variant_id": "nope", "quantity": 1}},
		{name: "unknown_field", body: map[string]any{"variant_id": mustUUID(t).String(), "quantity": 1, "color": "red"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, router, http.MethodPost, "/cart/items", userID, tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
		})
	}
}

func TestCartHandler_AddItem_VariantNotFound(t *testing.T) {
	svc := &mockCartService{
		addItemFunc: func(ctx context.Context, _, _ uuid.UUID, _ int) (*cart.Cart, error) {
			return nil, catalog.ErrVariantNotFound
		},
	}

	rr := doRequest(t, newCartRouter(svc), http.MethodPost, "/cart/items", mustUUID(t).String(),
		map[string]any{"variant_id": mustUUID(t).String(), "quantity": 1})

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCartHandler_UpdateItem_ZeroQuantityDeletesLine(t *testing.T) {
	userID := mustUUID(t)
	itemID := mustUUID(t)

	var gotQuantity = -1
	svc := &mockCartService{
		updateItemQuantityFunc: func(ctx context.Context, _, gotItem uuid.UUID, quantity int) (*cart.Cart, error) {
			assert.Equal(t, itemID, gotItem)
			gotQuantity = quantity
			return &cart.Cart{ID: mustUUID(t), UserID: userID, Items: []cart.CartItem{}}, nil
		},
	}

	rr := doRequest(t, newCartRouter(svc), http.MethodPut, "/cart/items/"+itemID.String(), userID.String(),
		map[string]any{"quantity": 0})

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 0, gotQuantity)
}

func TestCartHandler_UpdateItem_MissingQuantity(t *testing.T) {
	rr := doRequest(t, newCartRouter(&mockCartService{}), http.MethodPut,
		"/cart/items/"+mustUUID(t).String(), mustUUID(t).String(), map[string]any{})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCartHandler_UpdateItem_NotFound(t *testing.T) {
	svc := &mockCartService{
		updateItemQuantityFunc: func(ctx context.Context, _, _ uuid.UUID, _ int) (*cart.Cart, error) {
			return nil, cart.ErrItemNotFound
		},
	}

	rr := doRequest(t, newCartRouter(svc), http.MethodPut,
		"/cart/items/"+mustUUID(t).String(), mustUUID(t).String(), map[string]any{"quantity": 3})

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCartHandler_RemoveItem(t *testing.T) {
	called := false
	svc := &mockCartService{
		removeItemFunc: func(ctx context.Context, _, _ uuid.UUID) error {
			called = true
			return nil
		},
	}

	rr := doRequest(t, newCartRouter(svc), http.MethodDelete,
		"/cart/items/"+mustUUID(t).String(), mustUUID(t).String(), nil)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.True(t, called)
}
