package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

type CreateProductInput struct {
	SKU         string
	Title       string
	Description string
	CategoryID  *uuid.UUID
}

// UpdateProductInput carries partial updates; nil fields are left untouched.
type UpdateProductInput struct {
	SKU         *string
	Title       *string
	Description *string
	CategoryID  *uuid.UUID
	IsActive    *bool
}

type CreateVariantInput struct {
	SKU      string
	Price    decimal.Decimal
	Currency string
	Stock    int
}

type Service interface {
	ListCategories(ctx context.Context) ([]Category, error)
	ListProducts(ctx context.Context, limit, offset int) ([]Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*Product, error)
	CreateProduct(ctx context.Context, input CreateProductInput) (*Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*Product, error)
	CreateVariant(ctx context.Context, productID uuid.UUID, input CreateVariantInput) (*Variant, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) ListCategories(ctx context.Context) ([]Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list categories")
		return nil, fmt.Errorf("service: failed to list categories: %w", err)
	}

	return categories, nil
}

func (s *service) ListProducts(ctx context.Context, limit, offset int) ([]Product, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	products, err := s.repo.ListProducts(ctx, limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list products")
		return nil, fmt.Errorf("service: failed to list products: %w", err)
	}

	return products, nil
}

func (s *service) GetProductBySlug(ctx context.Context, slug string) (*Product, error) {
	p, err := s.repo.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		log.Error().Err(err).Str("slug", slug).Msg("service: failed to fetch product by slug")
		return nil, fmt.Errorf("service: failed to fetch product by slug: %w", err)
	}

	return p, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*Product, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, errors.New("service: product title is required")
	}

	p := &Product{
		SKU:         input.SKU,
		Title:       input.Title,
		Slug:        slugify(input.Title),
		Description: input.Description,
		CategoryID:  input.CategoryID,
		IsActive:    true,
		Variants:    make([]Variant, 0),
	}

	if err := s.repo.CreateProduct(ctx, p); err != nil {
		log.Error().Err(err).Str("title", input.Title).Msg("service: failed to create product")
		return nil, fmt.Errorf("service: failed to create product: %w", err)
	}

	log.Info().Stringer("product_id", p.ID).Str("slug", p.Slug).Msg("service: product created")

	return p, nil
}

func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*Product, error) {
	p, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch product for update: %w", err)
	}

	if input.SKU != nil {
		p.SKU = *input.SKU
	}
	if input.Title != nil {
		p.Title = *input.Title
		p.Slug = slugify(*input.Title)
	}
	if input.Description != nil {
		p.Description = *input.Description
	}
	if input.CategoryID != nil {
		p.CategoryID = input.CategoryID
	}
	if input.IsActive != nil {
		p.IsActive = *input.IsActive
	}

	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("service: failed to update product: %w", err)
	}

	return p, nil
}

func (s *service) CreateVariant(ctx context.Context, productID uuid.UUID, input CreateVariantInput) (*Variant, error) {
	if input.Price.IsNegative() {
		return nil, errors.New("service: variant price cannot be negative")
	}
	if input.Stock < 0 {
		return nil, errors.New("service: variant stock cannot be negative")
	}

	if _, err := s.repo.GetProductByID(ctx, productID); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch product for variant: %w", err)
	}

	currency := input.Currency
	if currency == "" {
		currency = "USD"
	}

	v := &Variant{
		ProductID: productID,
		SKU:       input.SKU,
		Price:     input.Price,
		Currency:  currency,
		Stock:     input.Stock,
	}

	if err := s.repo.CreateVariant(ctx, v); err != nil {
		log.Error().Err(err).Stringer("product_id", productID).Msg("service: failed to create variant")
		return nil, fmt.Errorf("service: failed to create variant: %w", err)
	}

	return v, nil
}

func slugify(title string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(title)), " ", "-")
}
