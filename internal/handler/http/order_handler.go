package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/shopcore/shop-service/internal/checkout"
	"github.com/shopcore/shop-service/internal/order"
)

// CheckoutService is satisfied by *checkout.Coordinator.
type CheckoutService interface {
	Checkout(ctx context.Context, userID uuid.UUID) (*order.Order, error)
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type OrderHandler struct {
	service  order.Service
	checkout CheckoutService
	validate *validator.Validate
}

func NewOrderHandler(service order.Service, checkoutSvc CheckoutService) *OrderHandler {
	return &OrderHandler{
		service:  service,
		checkout: checkoutSvc,
		validate: validator.New(),
	}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Post("/orders/checkout", h.handleCheckout)
	router.Get("/orders", h.handleListOrders)
	router.Get("/orders/{id}", h.handleGetOrder)
}

func (h *OrderHandler) RegisterAdminRoutes(router chi.Router) {
	router.Get("/orders", h.handleListAllOrders)
	router.Patch("/orders/{id}/status", h.handleUpdateStatus)
}

func (h *OrderHandler) handleListAllOrders(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	orders, err := h.service.ListAllOrders(r.Context(), limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list all orders via service")
		respondWithError(w, http.StatusInternalServerError, "Failed to list orders")
		return
	}

	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Missing user identity")
		return
	}

	o, err := h.checkout.Checkout(r.Context(), userID)
	if err != nil {
		var stockErr *checkout.InsufficientStockError
		switch {
		case errors.Is(err, checkout.ErrEmptyCart):
			respondWithError(w, http.StatusBadRequest, "Cart is empty")
		case errors.As(err, &stockErr):
			respondWithError(w, http.StatusConflict, stockErr.Error())
		case errors.Is(err, checkout.ErrVariantUnavailable):
			respondWithError(w, http.StatusConflict, "A product in the cart is no longer available")
		default:
			log.Error().Err(err).Stringer("user_id", userID).Msg("Checkout failed")
			respondWithError(w, http.StatusInternalServerError, "Checkout failed")
		}
		return
	}

	respondWithJSON(w, http.StatusCreated, o)
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Missing user identity")
		return
	}

	orders, err := h.service.ListOrders(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list orders via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to list orders")
		return
	}

	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Missing user identity")
		return
	}

	orderID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	o, err := h.service.GetOrder(r.Context(), orderID, userID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			respondWithError(w, http.StatusNotFound, "Order not found")
			return
		}
		log.Error().Err(err).Msg("Failed to get order via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to get order")
		return
	}

	respondWithJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	var requestPayload UpdateOrderStatusRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&requestPayload); err != nil {
		log.Error().Err(err).Msg("Failed to decode request body")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
				Error:   "Validation failed",
				Details: formatValidationErrors(validationErrors),
			})
		} else {
			log.Error().Err(err).Msg("Unexpected error type during validation")
			respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		}
		return
	}

	o, err := h.service.UpdateStatus(r.Context(), orderID, order.Status(requestPayload.Status))
	if err != nil {
		switch {
		case errors.Is(err, order.ErrOrderNotFound):
			respondWithError(w, http.StatusNotFound, "Order not found")
		case errors.Is(err, order.ErrInvalidStatusTransition):
			respondWithError(w, http.StatusConflict, err.Error())
		default:
			log.Error().Err(err).Msg("Failed to update order status via service")
			respondWithError(w, http.StatusInternalServerError, "Failed to update order status")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, o)
}
