package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shopcore/shop-service/internal/db"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrVariantNotFound   = errors.New("product variant not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Repository is the catalog's own persistence: browse reads and admin writes.
type Repository interface {
	ListCategories(ctx context.Context) ([]Category, error)
	ListProducts(ctx context.Context, limit, offset int) ([]Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*Product, error)
	GetProductByID(ctx context.Context, id uuid.UUID) (*Product, error)
	CreateProduct(ctx context.Context, p *Product) error
	UpdateProduct(ctx context.Context, p *Product) error
	CreateVariant(ctx context.Context, v *Variant) error
}

// Ledger is the inventory contract consumed by checkout and order
// cancellation. Every method takes an explicit Querier so the stock mutation
// commits or rolls back together with the caller's own writes.
type Ledger interface {
	GetVariant(ctx context.Context, q db.Querier, id uuid.UUID) (*Variant, error)
	ReserveStock(ctx context.Context, q db.Querier, variantID uuid.UUID, quantity int, reason string) error
	ReleaseStock(ctx context.Context, q db.Querier, variantID uuid.UUID, quantity int, reason string) error
}

type PostgresRepository struct {
	db db.Querier
}

func NewRepository(q db.Querier) *PostgresRepository {
	return &PostgresRepository{db: q}
}

var _ Repository = (*PostgresRepository)(nil)
var _ Ledger = (*PostgresRepository)(nil)

func (r *PostgresRepository) ListCategories(ctx context.Context) ([]Category, error) {
	query := `
		SELECT id, name, slug, parent_id, created_at
		FROM categories
		ORDER BY name
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]Category, 0)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.ParentID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating categories: %w", err)
	}

	return categories, nil
}

func (r *PostgresRepository) ListProducts(ctx context.Context, limit, offset int) ([]Product, error) {
	query := `
		SELECT id, sku, title, slug, description, category_id, is_active, created_at, updated_at
		FROM products
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query products: %w", err)
	}
	defer rows.Close()

	productsMap := make(map[uuid.UUID]*Product)
	var productIDs []uuid.UUID

	for rows.Next() {
		var p Product
		err := rows.Scan(&p.ID, &p.SKU, &p.Title, &p.Slug, &p.Description, &p.CategoryID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan product: %w", err)
		}
		p.Variants = make([]Variant, 0)
		productsMap[p.ID] = &p
		productIDs = append(productIDs, p.ID)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating products: %w", err)
	}

	if len(productIDs) == 0 {
		return []Product{}, nil
	}

	variantsQuery := `
		SELECT id, product_id, sku, price, currency, stock, created_at, updated_at
		FROM product_variants
		WHERE product_id = ANY($1)
	`
	variantRows, err := r.db.Query(ctx, variantsQuery, productIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query product variants: %w", err)
	}
	defer variantRows.Close()

	for variantRows.Next() {
		var v Variant
		err := variantRows.Scan(&v.ID, &v.ProductID, &v.SKU, &v.Price, &v.Currency, &v.Stock, &v.CreatedAt, &v.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan product variant: %w", err)
		}
		if p, ok := productsMap[v.ProductID]; ok {
			p.Variants = append(p.Variants, v)
		}
	}
	if err = variantRows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating product variants: %w", err)
	}

	products := make([]Product, 0, len(productIDs))
	for _, id := range productIDs {
		products = append(products, *productsMap[id])
	}

	return products, nil
}

func (r *PostgresRepository) GetProductBySlug(ctx context.Context, slug string) (*Product, error) {
	query := `
		SELECT id, sku, title, slug, description, category_id, is_active, created_at, updated_at
		FROM products
		WHERE slug = $1
	`
	return r.getProduct(ctx, query, slug)
}

func (r *PostgresRepository) GetProductByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	query := `
		SELECT id, sku, title, slug, description, category_id, is_active, created_at, updated_at
		FROM products
		WHERE id = $1
	`
	return r.getProduct(ctx, query, id)
}

func (r *PostgresRepository) getProduct(ctx context.Context, query string, arg any) (*Product, error) {
	var p Product
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&p.ID, &p.SKU, &p.Title, &p.Slug, &p.Description, &p.CategoryID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("repository: failed to select product: %w", err)
	}

	variantsQuery := `
		SELECT id, product_id, sku, price, currency, stock, created_at, updated_at
		FROM product_variants
		WHERE product_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, variantsQuery, p.ID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query variants for product %s: %w", p.ID, err)
	}
	defer rows.Close()

	p.Variants = make([]Variant, 0)
	for rows.Next() {
		var v Variant
		err := rows.Scan(&v.ID, &v.ProductID, &v.SKU, &v.Price, &v.Currency, &v.Stock, &v.CreatedAt, &v.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan variant for product %s: %w", p.ID, err)
		}
		p.Variants = append(p.Variants, v)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating variants for product %s: %w", p.ID, err)
	}

	return &p, nil
}

func (r *PostgresRepository) CreateProduct(ctx context.Context, p *Product) error {
	if p.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate product ID: %w", err)
		}
		p.ID = id
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	query := `
		INSERT INTO products (id, sku, title, slug, description, category_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query, p.ID, p.SKU, p.Title, p.Slug, p.Description, p.CategoryID, p.IsActive, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to insert product: %w", err)
	}

	return nil
}

func (r *PostgresRepository) UpdateProduct(ctx context.Context, p *Product) error {
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE products
		SET sku = $1, title = $2, slug = $3, description = $4, category_id = $5, is_active = $6, updated_at = $7
		WHERE id = $8
	`
	cmdTag, err := r.db.Exec(ctx, query, p.SKU, p.Title, p.Slug, p.Description, p.CategoryID, p.IsActive, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("repository: failed to update product %s: %w", p.ID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}

	return nil
}

func (r *PostgresRepository) CreateVariant(ctx context.Context, v *Variant) error {
	if v.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate variant ID: %w", err)
		}
		v.ID = id
	}

	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now

	query := `
		INSERT INTO product_variants (id, product_id, sku, price, currency, stock, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query, v.ID, v.ProductID, v.SKU, v.Price, v.Currency, v.Stock, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to insert variant for product %s: %w", v.ProductID, err)
	}

	return nil
}

func (r *PostgresRepository) GetVariant(ctx context.Context, q db.Querier, id uuid.UUID) (*Variant, error) {
	query := `
		SELECT v.id, v.product_id, v.sku, v.price, v.currency, v.stock, v.created_at, v.updated_at, p.is_active
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = $1
	`

	var v Variant
	err := q.QueryRow(ctx, query, id).Scan(
		&v.ID, &v.ProductID, &v.SKU, &v.Price, &v.Currency, &v.Stock, &v.CreatedAt, &v.UpdatedAt, &v.ProductActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVariantNotFound
		}
		return nil, fmt.Errorf("repository: failed to select variant %s: %w", id, err)
	}

	return &v, nil
}

// ReserveStock atomically checks and decrements a variant's stock. The guarded
// UPDATE takes a row lock, so two competing checkouts for the same variant
// serialize here and the loser sees ErrInsufficientStock instead of driving
// stock negative.
func (r *PostgresRepository) ReserveStock(ctx context.Context, q db.Querier, variantID uuid.UUID, quantity int, reason string) error {
	query := `
		UPDATE product_variants
		SET stock = stock - $2, updated_at = $3
		WHERE id = $1 AND stock >= $2
	`
	cmdTag, err := q.Exec(ctx, query, variantID, quantity, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("repository: failed to reserve stock for variant %s: %w", variantID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrInsufficientStock
	}

	return r.insertInventoryEvent(ctx, q, variantID, -quantity, reason)
}

func (r *PostgresRepository) ReleaseStock(ctx context.Context, q db.Querier, variantID uuid.UUID, quantity int, reason string) error {
	query := `
		UPDATE product_variants
		SET stock = stock + $2, updated_at = $3
		WHERE id = $1
	`
	cmdTag, err := q.Exec(ctx, query, variantID, quantity, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("repository: failed to release stock for variant %s: %w", variantID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrVariantNotFound
	}

	return r.insertInventoryEvent(ctx, q, variantID, quantity, reason)
}

func (r *PostgresRepository) insertInventoryEvent(ctx context.Context, q db.Querier, variantID uuid.UUID, delta int, reason string) error {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("repository: failed to generate inventory event ID: %w", err)
	}

	query := `
		INSERT INTO inventory_events (id, variant_id, delta, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = q.Exec(ctx, query, id, variantID, delta, reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("repository: failed to insert inventory event for variant %s: %w", variantID, err)
	}

	return nil
}
