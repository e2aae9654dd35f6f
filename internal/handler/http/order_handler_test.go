package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopcore/shop-service/internal/checkout"
	"github.com/shopcore/shop-service/internal/order"
)

type mockOrderService struct {
	getOrderFunc      func(ctx context.Context, orderID, userID uuid.UUID) (*order.Order, error)
	listOrdersFunc    func(ctx context.Context, userID uuid.UUID) ([]order.Order, error)
	listAllOrdersFunc func(ctx context.Context, limit, offset int) ([]order.Order, error)
	updateStatusFunc  func(ctx context.Context, orderID uuid.UUID, newStatus order.Status) (*order.Order, error)
}

func (m *mockOrderService) GetOrder(ctx context.Context, orderID, userID uuid.UUID) (*order.Order, error) {
	return m.getOrderFunc(ctx, orderID, userID)
}

func (m *mockOrderService) ListOrders(ctx context.Context, userID uuid.UUID) ([]order.Order, error) {
	return m.listOrdersFunc(ctx, userID)
}

func (m *mockOrderService) ListAllOrders(ctx context.Context, limit, offset int) ([]order.Order, error) {
	return m.listAllOrdersFunc(ctx, limit, offset)
}

func (m *mockOrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus order.Status) (*order.Order, error) {
	return m.updateStatusFunc(ctx, orderID, newStatus)
}

type mockCheckout struct {
	checkoutFunc func(ctx context.Context, userID uuid.UUID) (*order.Order, error)
}

func (m *mockCheckout) Checkout(ctx context.Context, userID uuid.UUID) (*order.Order, error) {
	return m.checkoutFunc(ctx, userID)
}

func newOrderRouter(svc order.Service, checkoutSvc CheckoutService) chi.Router {
	handler := NewOrderHandler(svc, checkoutSvc)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(RequireUserID)
		handler.RegisterRoutes(r)
	})
	r.Route("/admin", func(r chi.Router) {
		handler.RegisterAdminRoutes(r)
	})
	return r
}

func TestOrderHandler_Checkout_Created(t *testing.T) {
	userID := mustUUID(t)
	orderID := mustUUID(t)
	svc := &mockCheckout{
		checkoutFunc: func(ctx context.Context, gotUser uuid.UUID) (*order.Order, error) {
			assert.Equal(t, userID, gotUser)
			return &order.Order{
				ID:          orderID,
				UserID:      gotUser,
				Status:      order.StatusPending,
				TotalAmount: decimal.RequireFromString("25.00"),
				Currency:    "USD",
			}, nil
		},
	}

	rr := doRequest(t, newOrderRouter(&mockOrderService{}, svc),
		http.MethodPost, "/orders/checkout", userID.String(), nil)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var got order.Order
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, orderID, got.ID)
	assert.Equal(t, order.StatusPending, got.Status)
}

func TestOrderHandler_Checkout_RequiresIdentity(t *testing.T) {
	router := newOrderRouter(&mockOrderService{}, &mockCheckout{})

	rr := doRequest(t, router, http.MethodPost, "/orders/checkout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestOrderHandler_Checkout_EmptyCart(t *testing.T) {
	svc := &mockCheckout{
		checkoutFunc: func(ctx context.Context, userID uuid.UUID) (*order.Order, error) {
			return nil, checkout.ErrEmptyCart
		},
	}

	rr := doRequest(t, newOrderRouter(&mockOrderService{}, svc),
		http.MethodPost, "/orders/checkout", mustUUID(t).String(), nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOrderHandler_Checkout_InsufficientStock(t *testing.T) {
	variantID := mustUUID(t)
	svc := &mockCheckout{
		checkoutFunc: func(ctx context.Context, userID uuid.UUID) (*order.Order, error) {
			return nil, &checkout.InsufficientStockError{VariantID: variantID}
		},
	}

	rr := doRequest(t, newOrderRouter(&mockOrderService{}, svc),
		http.MethodPost, "/orders/checkout", mustUUID(t).String(), nil)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), variantID.String())
}

func TestOrderHandler_Checkout_VariantUnavailable(t *testing.T) {
	svc := &mockCheckout{
		checkoutFunc: func(ctx context.Context, userID uuid.UUID) (*order.Order, error) {
			return nil, fmt.Errorf("%w: %s", checkout.ErrVariantUnavailable, uuid.Nil)
		},
	}

	rr := doRequest(t, newOrderRouter(&mockOrderService{}, svc),
		http.MethodPost, "/orders/checkout", mustUUID(t).String(), nil)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestOrderHandler_ListOrders(t *testing.T) {
	userID := mustUUID(t)
	svc := &mockOrderService{
		listOrdersFunc: func(ctx context.Context, gotUser uuid.UUID) ([]order.Order, error) {
			assert.Equal(t, userID, gotUser)
			return []order.Order{
				{ID: mustUUID(t), UserID: gotUser, Status: order.StatusPaid},
				{ID: mustUUID(t), UserID: gotUser, Status: order.StatusPending},
			}, nil
		},
	}

	rr := doRequest(t, newOrderRouter(svc, &mockCheckout{}),
		http.MethodGet, "/orders", userID.String(), nil)

	require.Equal(t, http.StatusOK, rr.Code)

	var got []order.Order
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Len(t, got, 2)
}

func TestOrderHandler_GetOrder_NotFound(t *testing.T) {
	svc := &mockOrderService{
		getOrderFunc: func(ctx context.Context, orderID, userID uuid.UUID) (*order.Order, error) {
			return nil, order.ErrOrderNotFound
		},
	}

	rr := doRequest(t, newOrderRouter(svc, &mockCheckout{}),
		http.MethodGet, "/orders/"+mustUUID(t).String(), mustUUID(t).String(), nil)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestOrderHandler_GetOrder_InvalidID(t *testing.T) {
	rr := doRequest(t, newOrderRouter(&mockOrderService{}, &mockCheckout{}),
		http.MethodGet, "/orders/not-a-uuid", mustUUID(t).String(), nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOrderHandler_ListAllOrders(t *testing.T) {
	svc := &mockOrderService{
		listAllOrdersFunc: func(ctx context.Context, limit, offset int) ([]order.Order, error) {
			assert.Equal(t, 10, limit)
			assert.Equal(t, 20, offset)
			return []order.Order{
				{ID: mustUUID(t), UserID: mustUUID(t), Status: order.StatusPaid},
			}, nil
		},
	}

	rr := doRequest(t, newOrderRouter(svc, &mockCheckout{}),
		http.MethodGet, "/admin/orders?limit=10&offset=20", "", nil)

	require.Equal(t, http.StatusOK, rr.Code)

	var got []order.Order
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Len(t, got, 1)
}

func TestOrderHandler_UpdateStatus(t *testing.T) {
	orderID := mustUUID(t)
	svc := &mockOrderService{
		updateStatusFunc: func(ctx context.Context, gotOrder uuid.UUID, newStatus order.Status) (*order.Order, error) {
			assert.Equal(t, orderID, gotOrder)
			assert.Equal(t, order.StatusPaid, newStatus)
			return &order.Order{ID: gotOrder, Status: newStatus}, nil
		},
	}

	rr := doRequest(t, newOrderRouter(svc, &mockCheckout{}),
		http.MethodPatch, "/admin/orders/"+orderID.String()+"/status", "",
		map[string]any{"status": "paid"})

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var got order.Order
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, order.StatusPaid, got.Status)
}

func TestOrderHandler_UpdateStatus_InvalidTransition(t *testing.T) {
	svc := &mockOrderService{
		updateStatusFunc: func(ctx context.Context, orderID uuid.UUID, newStatus order.Status) (*order.Order, error) {
			return nil, fmt.Errorf("%w: %s -> %s", order.ErrInvalidStatusTransition, order.StatusShipped, newStatus)
		},
	}

	rr := doRequest(t, newOrderRouter(svc, &mockCheckout{}),
		http.MethodPatch, "/admin/orders/"+mustUUID(t).String()+"/status", "",
		map[string]any{"status": "cancelled"})

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestOrderHandler_UpdateStatus_NotFound(t *testing.T) {
	svc := &mockOrderService{
		updateStatusFunc: func(ctx context.Context, orderID uuid.UUID, newStatus order.Status) (*order.Order, error) {
			return nil, order.ErrOrderNotFound
		},
	}

	rr := doRequest(t, newOrderRouter(svc, &mockCheckout{}),
		http.MethodPatch, "/admin/orders/"+mustUUID(t).String()+"/status", "",
		map[string]any{"status": "paid"})

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestOrderHandler_UpdateStatus_MissingStatus(t *testing.T) {
	rr := doRequest(t, newOrderRouter(&mockOrderService{}, &mockCheckout{}),
		http.MethodPatch, "/admin/orders/"+mustUUID(t).String()+"/status", "",
		map[string]any{})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
