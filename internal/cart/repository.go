package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shopcore/shop-service/internal/db"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrItemNotFound = errors.New("cart item not found")
	ErrItemExists   = errors.New("cart item already exists for this variant")
)

type Repository interface {
	GetOrCreateByUser(ctx context.Context, userID uuid.UUID) (*Cart, error)
	GetByUserForUpdate(ctx context.Context, q db.Querier, userID uuid.UUID) (*Cart, error)
	FindItemByVariant(ctx context.Context, cartID, variantID uuid.UUID) (*CartItem, error)
	GetItemForUser(ctx context.Context, itemID, userID uuid.UUID) (*CartItem, error)
	InsertItem(ctx context.Context, item *CartItem) error
	IncrementItemQuantity(ctx context.Context, itemID uuid.UUID, delta int) error
	SetItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	DeleteItems(ctx context.Context, q db.Querier, itemIDs []uuid.UUID) error
}

type PostgresRepository struct {
	db db.Querier
}

func NewRepository(q db.Querier) *PostgresRepository {
	return &PostgresRepository{db: q}
}

var _ Repository = (*PostgresRepository)(nil)

func (r *PostgresRepository) GetOrCreateByUser(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	c, err := r.getByUser(ctx, r.db, userID, false)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrCartNotFound) {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("repository: failed to generate cart ID: %w", err)
	}

	now := time.Now().UTC()
	insertQuery := `
		INSERT INTO carts (id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err = r.db.Exec(ctx, insertQuery, id, userID, now, now)
	if err != nil {
		// Another request created the cart between our read and write.
		// The unique index on user_id guarantees there is exactly one,
		// so re-read it.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return r.getByUser(ctx, r.db, userID, false)
		}
		return nil, fmt.Errorf("repository: failed to insert cart for user %s: %w", userID, err)
	}

	return &Cart{
		ID:        id,
		UserID:    userID,
		Items:     make([]CartItem, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetByUserForUpdate locks the cart row, serializing concurrent checkouts of
// the same cart for the lifetime of the caller's transaction.
func (r *PostgresRepository) GetByUserForUpdate(ctx context.Context, q db.Querier, userID uuid.UUID) (*Cart, error) {
	return r.getByUser(ctx, q, userID, true)
}

func (r *PostgresRepository) getByUser(ctx context.Context, q db.Querier, userID uuid.UUID, forUpdate bool) (*Cart, error) {
	query := `
		SELECT id, user_id, created_at, updated_at
		FROM carts
		WHERE user_id = $1
	`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var c Cart
	err := q.QueryRow(ctx, query, userID).Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("repository: failed to select cart for user %s: %w", userID, err)
	}

	itemsQuery := `
		SELECT id, cart_id, variant_id, quantity, price_at_add, added_at
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY added_at
	`
	rows, err := q.Query(ctx, itemsQuery, c.ID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query items for cart %s: %w", c.ID, err)
	}
	defer rows.Close()

	c.Items = make([]CartItem, 0)
	for rows.Next() {
		var item CartItem
		err := rows.Scan(&item.ID, &item.CartID, &item.VariantID, &item.Quantity, &item.PriceAtAdd, &item.AddedAt)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan item for cart %s: %w", c.ID, err)
		}
		c.Items = append(c.Items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating items for cart %s: %w", c.ID, err)
	}

	return &c, nil
}

func (r *PostgresRepository) FindItemByVariant(ctx context.Context, cartID, variantID uuid.UUID) (*CartItem, error) {
	query := `
		SELECT id, cart_id, variant_id, quantity, price_at_add, added_at
		FROM cart_items
		WHERE cart_id = $1 AND variant_id = $2
	`

	var item CartItem
	err := r.db.QueryRow(ctx, query, cartID, variantID).Scan(
		&item.ID, &item.CartID, &item.VariantID, &item.Quantity, &item.PriceAtAdd, &item.AddedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("repository: failed to select item by variant %s in cart %s: %w", variantID, cartID, err)
	}

	return &item, nil
}

// GetItemForUser resolves ownership by joining through the cart, so a caller
// holding someone else's item id gets the same ErrItemNotFound as for a
// missing row.
func (r *PostgresRepository) GetItemForUser(ctx context.Context, itemID, userID uuid.UUID) (*CartItem, error) {
	query := `
		SELECT ci.id, ci.cart_id, ci.variant_id, ci.quantity, ci.price_at_add, ci.added_at
		FROM cart_items ci
		JOIN carts c ON c.id = ci.cart_id
		WHERE ci.id = $1 AND c.user_id = $2
	`

	var item CartItem
	err := r.db.QueryRow(ctx, query, itemID, userID).Scan(
		&item.ID, &item.CartID, &item.VariantID, &item.Quantity, &item.PriceAtAdd, &item.AddedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("repository: failed to select item %s for user %s: %w", itemID, userID, err)
	}

	return &item, nil
}

func (r *PostgresRepository) InsertItem(ctx context.Context, item *CartItem) error {
	if item.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate cart item ID: %w", err)
		}
		item.ID = id
	}
	item.AddedAt = time.Now().UTC()

	query := `
		INSERT INTO cart_items (id, cart_id, variant_id, quantity, price_at_add, added_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query, item.ID, item.CartID, item.VariantID, item.Quantity, item.PriceAtAdd, item.AddedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrItemExists
		}
		return fmt.Errorf("repository: failed to insert item into cart %s: %w", item.CartID, err)
	}

	return nil
}

func (r *PostgresRepository) IncrementItemQuantity(ctx context.Context, itemID uuid.UUID, delta int) error {
	query := `
		UPDATE cart_items
		SET quantity = quantity + $2
		WHERE id = $1
	`
	cmdTag, err := r.db.Exec(ctx, query, itemID, delta)
	if err != nil {
		return fmt.Errorf("repository: failed to increment quantity for item %s: %w", itemID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrItemNotFound
	}

	return nil
}

func (r *PostgresRepository) SetItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	query := `
		UPDATE cart_items
		SET quantity = $2
		WHERE id = $1
	`
	cmdTag, err := r.db.Exec(ctx, query, itemID, quantity)
	if err != nil {
		return fmt.Errorf("repository: failed to set quantity for item %s: %w", itemID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrItemNotFound
	}

	return nil
}

func (r *PostgresRepository) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	query := `DELETE FROM cart_items WHERE id = $1`

	cmdTag, err := r.db.Exec(ctx, query, itemID)
	if err != nil {
		return fmt.Errorf("repository: failed to delete item %s: %w", itemID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrItemNotFound
	}

	return nil
}

// DeleteItems drains exactly the given lines. Checkout passes the ids it
// snapshotted under the cart lock, so a line added concurrently after the
// snapshot survives for the next checkout. The cart row itself stays.
func (r *PostgresRepository) DeleteItems(ctx context.Context, q db.Querier, itemIDs []uuid.UUID) error {
	if len(itemIDs) == 0 {
		return nil
	}

	query := `DELETE FROM cart_items WHERE id = ANY($1)`

	_, err := q.Exec(ctx, query, itemIDs)
	if err != nil {
		return fmt.Errorf("repository: failed to delete cart items: %w", err)
	}

	return nil
}
