package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shopcore/shop-service/internal/db"
)

var ErrOrderNotFound = errors.New("order not found")

type Repository interface {
	Create(ctx context.Context, q db.Querier, o *Order) error
	GetByID(ctx context.Context, orderID, userID uuid.UUID) (*Order, error)
	GetByIDForUpdate(ctx context.Context, q db.Querier, orderID uuid.UUID) (*Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error)
	ListAll(ctx context.Context, limit, offset int) ([]Order, error)
	UpdateStatus(ctx context.Context, q db.Querier, orderID uuid.UUID, newStatus Status) error
}

type PostgresRepository struct {
	db db.Querier
}

func NewRepository(q db.Querier) *PostgresRepository {
	return &PostgresRepository{db: q}
}

var _ Repository = (*PostgresRepository)(nil)

// Create inserts the order and its items on the caller's Querier, so checkout
// can place it inside the same transaction as the stock reservation.
func (r *PostgresRepository) Create(ctx context.Context, q db.Querier, o *Order) error {
	if o.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate order ID: %w", err)
		}
		o.ID = id
	}

	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	orderQuery := `
		INSERT INTO orders (id, user_id, status, total_amount, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := q.Exec(ctx, orderQuery,
		o.ID, o.UserID, string(o.Status), o.TotalAmount, o.Currency, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, variant_id, quantity, unit_price, total_price)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for i := range o.Items {
		item := &o.Items[i]

		itemID, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate order item ID: %w", err)
		}
		item.ID = itemID
		item.OrderID = o.ID

		_, err = q.Exec(ctx, itemQuery,
			item.ID, item.OrderID, item.VariantID, item.Quantity, item.UnitPrice, item.TotalPrice,
		)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order item for order %s: %w", o.ID, err)
		}
	}

	return nil
}

// GetByID is scoped by the owning user: a foreign order reads as not found.
func (r *PostgresRepository) GetByID(ctx context.Context, orderID, userID uuid.UUID) (*Order, error) {
	query := `
		SELECT id, user_id, status, total_amount, currency, created_at, updated_at
		FROM orders
		WHERE id = $1 AND user_id = $2
	`

	var o Order
	err := r.db.QueryRow(ctx, query, orderID, userID).Scan(
		&o.ID, &o.UserID, &o.Status, &o.TotalAmount, &o.Currency, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order %s: %w", orderID, err)
	}

	items, err := r.loadItems(ctx, r.db, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items

	return &o, nil
}

func (r *PostgresRepository) GetByIDForUpdate(ctx context.Context, q db.Querier, orderID uuid.UUID) (*Order, error) {
	query := `
		SELECT id, user_id, status, total_amount, currency, created_at, updated_at
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`

	var o Order
	err := q.QueryRow(ctx, query, orderID).Scan(
		&o.ID, &o.UserID, &o.Status, &o.TotalAmount, &o.Currency, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order %s for update: %w", orderID, err)
	}

	items, err := r.loadItems(ctx, q, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items

	return &o, nil
}

func (r *PostgresRepository) loadItems(ctx context.Context, q db.Querier, orderID uuid.UUID) ([]OrderItem, error) {
	query := `
		SELECT id, order_id, variant_id, quantity, unit_price, total_price
		FROM order_items
		WHERE order_id = $1
	`

	rows, err := q.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query items for order %s: %w", orderID, err)
	}
	defer rows.Close()

	items := make([]OrderItem, 0)
	for rows.Next() {
		var item OrderItem
		err := rows.Scan(&item.ID, &item.OrderID, &item.VariantID, &item.Quantity, &item.UnitPrice, &item.TotalPrice)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan item for order %s: %w", orderID, err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating items for order %s: %w", orderID, err)
	}

	return items, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	ordersQuery := `
		SELECT id, user_id, status, total_amount, currency, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	return r.listOrders(ctx, ordersQuery, userID)
}

// ListAll is the staff-facing listing across every user, newest first.
func (r *PostgresRepository) ListAll(ctx context.Context, limit, offset int) ([]Order, error) {
	ordersQuery := `
		SELECT id, user_id, status, total_amount, currency, created_at, updated_at
		FROM orders
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	return r.listOrders(ctx, ordersQuery, limit, offset)
}

func (r *PostgresRepository) listOrders(ctx context.Context, ordersQuery string, args ...any) ([]Order, error) {
	rows, err := r.db.Query(ctx, ordersQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	ordersMap := make(map[uuid.UUID]*Order)
	var orderIDs []uuid.UUID

	for rows.Next() {
		var o Order
		err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalAmount, &o.Currency, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		o.Items = make([]OrderItem, 0)
		ordersMap[o.ID] = &o
		orderIDs = append(orderIDs, o.ID)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	if len(orderIDs) == 0 {
		return []Order{}, nil
	}

	itemsQuery := `
		SELECT id, order_id, variant_id, quantity, unit_price, total_price
		FROM order_items
		WHERE order_id = ANY($1)
	`
	itemRows, err := r.db.Query(ctx, itemsQuery, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item OrderItem
		err := itemRows.Scan(&item.ID, &item.OrderID, &item.VariantID, &item.Quantity, &item.UnitPrice, &item.TotalPrice)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		if o, ok := ordersMap[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	if err = itemRows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items: %w", err)
	}

	orders := make([]Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *ordersMap[id])
	}

	return orders, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, q db.Querier, orderID uuid.UUID, newStatus Status) error {
	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	cmdTag, err := q.Exec(ctx, query, string(newStatus), time.Now().UTC(), orderID)
	if err != nil {
		return fmt.Errorf("repository: failed to update status for order %s: %w", orderID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return nil
}
