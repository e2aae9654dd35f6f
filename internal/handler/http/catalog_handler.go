package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/shopcore/shop-service/internal/catalog"
)

type CreateProductRequest struct {
	SKU         string  `json:"sku" validate:"omitempty,max=100"`
	Title       string  `json:"title" validate:"required,min=2,max=255"`
	Description string  `json:"description"`
	CategoryID  *string `json:"category_id,omitempty" validate:"omitempty,uuid4"`
}

type UpdateProductRequest struct {
	SKU         *string `json:"sku,omitempty" validate:"omitempty,max=100"`
	Title       *string `json:"title,omitempty" validate:"omitempty,min=2,max=255"`
	Description *string `json:"description,omitempty"`
	CategoryID  *string `json:"category_id,omitempty" validate:"omitempty,uuid4"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

type CreateVariantRequest struct {
	SKU      string          `json:"sku" validate:"required,max=100"`
	Price    decimal.Decimal `json:"price" validate:"required"`
	Currency string          `json:"currency" validate:"omitempty,len=3"`
	Stock    int             `json:"stock" validate:"gte=0"`
}

type CatalogHandler struct {
	service  catalog.Service
	validate *validator.Validate
}

func NewCatalogHandler(service catalog.Service) *CatalogHandler {
	return &CatalogHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *CatalogHandler) RegisterRoutes(router chi.Router) {
	router.Get("/categories", h.handleListCategories)
	router.Get("/products", h.handleListProducts)
	router.Get("/products/{slug}", h.handleGetProduct)
}

func (h *CatalogHandler) RegisterAdminRoutes(router chi.Router) {
	router.Post("/products", h.handleCreateProduct)
	router.Put("/products/{id}", h.handleUpdateProduct)
	router.Post("/products/{id}/variants", h.handleCreateVariant)
}

func (h *CatalogHandler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list categories via service")
		respondWithError(w, http.StatusInternalServerError, "Failed to list categories")
		return
	}

	respondWithJSON(w, http.StatusOK, categories)
}

func (h *CatalogHandler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	products, err := h.service.ListProducts(r.Context(), limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list products via service")
		respondWithError(w, http.StatusInternalServerError, "Failed to list products")
		return
	}

	respondWithJSON(w, http.StatusOK, products)
}

func (h *CatalogHandler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		respondWithError(w, http.StatusBadRequest, "Slug is required")
		return
	}

	p, err := h.service.GetProductBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			respondWithError(w, http.StatusNotFound, "Product not found")
			return
		}
		log.Error().Err(err).Str("slug", slug).Msg("Failed to get product via service")
		respondWithError(w, http.StatusInternalServerError, "Failed to get product")
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var requestPayload CreateProductRequest

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

	categoryID, ok := parseOptionalUUID(w, requestPayload.CategoryID)
	if !ok {
		return
	}

	p, err := h.service.CreateProduct(r.Context(), catalog.CreateProductInput{
		SKU:         requestPayload.SKU,
		Title:       requestPayload.Title,
		Description: requestPayload.Description,
		CategoryID:  categoryID,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to create product via service")
		respondWithError(w, http.StatusInternalServerError, "Failed to create product")
		return
	}

	respondWithJSON(w, http.StatusCreated, p)
}

func (h *CatalogHandler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	var requestPayload UpdateProductRequest

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

	categoryID, ok := parseOptionalUUID(w, requestPayload.CategoryID)
	if !ok {
		return
	}

	p, err := h.service.UpdateProduct(r.Context(), productID, catalog.UpdateProductInput{
		SKU:         requestPayload.SKU,
		Title:       requestPayload.Title,
		Description: requestPayload.Description,
		CategoryID:  categoryID,
		IsActive:    requestPayload.IsActive,
	})
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			respondWithError(w, http.StatusNotFound, "Product not found")
			return
		}
		log.Error().Err(err).Msg("Failed to update product via service")
		respondWithError(w, http.StatusInternalServerError, "Failed to update product")
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}

func parseOptionalUUID(w http.ResponseWriter, raw *string) (*uuid.UUID, bool) {
	if raw == nil {
		return nil, true
	}
	id, err := uuid.FromString(*raw)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid category_id")
		return nil, false
	}
	return &id, true
}

func (h *CatalogHandler) handleCreateVariant(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	var requestPayload CreateVariantRequest

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

	v, err := h.service.CreateVariant(r.Context(), productID, catalog.CreateVariantInput{
		SKU:      requestPayload.SKU,
		Price:    requestPayload.Price,
		Currency: requestPayload.Currency,
		Stock:    requestPayload.Stock,
	})
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			respondWithError(w, http.StatusNotFound, "Product not found")
			return
		}
		log.Error().Err(err).Msg("Failed to create variant via service")
		respondWithError(w, http.StatusInternalServerError, "Failed to create variant")
		return
	}

	respondWithJSON(w, http.StatusCreated, v)
}
