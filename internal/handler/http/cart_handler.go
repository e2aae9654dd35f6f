package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/shopcore/shop-service/internal/cart"
	"github.com/shopcore/shop-service/internal/catalog"
)

type AddCartItemRequest struct {
	VariantID string `json:"variant_id" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type UpdateCartItemRequest struct {
	// Quantity zero deletes the line, so required cannot be used on a bare int.
	Quantity *int `json:"quantity" validate:"required,gte=0"`
}

type CartHandler struct {
	service  cart.Service
	validate *validator.Validate
}

func NewCartHandler(service cart.Service) *CartHandler {
	return &CartHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *CartHandler) RegisterRoutes(router chi.Router) {
	router.Get("/cart", h.handleGetCart)
	router.Post("/cart/items", h.handleAddItem)
	router.Put("/cart/items/{id}", h.handleUpdateItem)
	router.Delete("/cart/items/{id}", h.handleRemoveItem)
}

func (h *CartHandler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Missing user identity")
		return
	}

	c, err := h.service.GetCart(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get cart via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to get cart")
		return
	}

	respondWithJSON(w, http.StatusOK, c)
}

func (h *CartHandler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Missing user identity")
		return
	}

	var requestPayload AddCartItemRequest

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

	variantID, err := uuid.FromString(requestPayload.VariantID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid variant_id")
		return
	}

	c, err := h.service.AddItem(r.Context(), userID, variantID, requestPayload.Quantity)
	if err != nil {
		if errors.Is(err, catalog.ErrVariantNotFound) {
			respondWithError(w, http.StatusNotFound, "Product variant not found")
			return
		}
		log.Error().Err(err).Msg("Failed to add cart item via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to add item to cart")
		return
	}

	respondWithJSON(w, http.StatusOK, c)
}

func (h *CartHandler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Missing user identity")
		return
	}

	itemID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	var requestPayload UpdateCartItemRequest

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

	c, err := h.service.UpdateItemQuantity(r.Context(), userID, itemID, *requestPayload.Quantity)
	if err != nil {
		if errors.Is(err, cart.ErrItemNotFound) {
			respondWithError(w, http.StatusNotFound, "Cart item not found")
			return
		}
		log.Error().Err(err).Msg("Failed to update cart item via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to update cart item")
		return
	}

	respondWithJSON(w, http.StatusOK, c)
}

func (h *CartHandler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Missing user identity")
		return
	}

	itemID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	if err := h.service.RemoveItem(r.Context(), userID, itemID); err != nil {
		log.Error().Err(err).Msg("Failed to remove cart item via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to remove cart item")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
