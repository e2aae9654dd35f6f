package checkout

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/shopcore/shop-service/internal/cart"
	"github.com/shopcore/shop-service/internal/catalog"
	"github.com/shopcore/shop-service/internal/db"
	"github.com/shopcore/shop-service/internal/order"
)

const defaultCurrency = "USD"

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrVariantUnavailable = errors.New("product variant is unavailable")
)

// InsufficientStockError identifies the variant that lost the stock race.
type InsufficientStockError struct {
	VariantID uuid.UUID
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for variant %s", e.VariantID)
}

// Unwrap lets callers match with errors.Is(err, catalog.ErrInsufficientStock).
func (e *InsufficientStockError) Unwrap() error {
	return catalog.ErrInsufficientStock
}

// CartStore is the slice of the cart aggregate checkout needs: a locked read
// and the drain.
type CartStore interface {
	GetByUserForUpdate(ctx context.Context, q db.Querier, userID uuid.UUID) (*cart.Cart, error)
	DeleteItems(ctx context.Context, q db.Querier, itemIDs []uuid.UUID) error
}

// InventoryLedger re-resolves variants and reserves stock inside the
// checkout transaction.
type InventoryLedger interface {
	GetVariant(ctx context.Context, q db.Querier, id uuid.UUID) (*catalog.Variant, error)
	ReserveStock(ctx context.Context, q db.Querier, variantID uuid.UUID, quantity int, reason string) error
}

type OrderStore interface {
	Create(ctx context.Context, q db.Querier, o *order.Order) error
}

type TxBeginner interface {
	Begin(ctx context.Context) (db.Tx, error)
}

// Coordinator turns a mutable cart into an immutable order in one
// transaction: validate the cart, reserve stock, write the order, drain the
// cart. Any failure rolls the whole thing back.
type Coordinator struct {
	db     TxBeginner
	carts  CartStore
	ledger InventoryLedger
	orders OrderStore
}

func NewCoordinator(txDB TxBeginner, carts CartStore, ledger InventoryLedger, orders OrderStore) *Coordinator {
	return &Coordinator{
		db:     txDB,
		carts:  carts,
		ledger: ledger,
		orders: orders,
	}
}

// Checkout is not idempotent: it drains the cart it reads, so a retry after a
// successful commit fails with ErrEmptyCart. Callers that need retry safety
// must recover through the order listing instead.
func (c *Coordinator) Checkout(ctx context.Context, userID uuid.UUID) (o *order.Order, err error) {
	tx, err := c.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("checkout: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			// A failed Commit already closed the transaction; that rollback
			// result is not worth an error line.
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Stringer("user_id", userID).Msg("checkout: failed to rollback transaction")
			}
		}
	}()

	// Validating. The FOR UPDATE on the cart row serializes concurrent
	// checkouts of the same cart: the loser blocks here and then sees the
	// drained cart.
	crt, err := c.carts.GetByUserForUpdate(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, cart.ErrCartNotFound) {
			return nil, ErrEmptyCart
		}
		return nil, fmt.Errorf("checkout: failed to load cart: %w", err)
	}
	if len(crt.Items) == 0 {
		return nil, ErrEmptyCart
	}

	for _, item := range crt.Items {
		variant, vErr := c.ledger.GetVariant(ctx, tx, item.VariantID)
		if vErr != nil {
			if errors.Is(vErr, catalog.ErrVariantNotFound) {
				err = fmt.Errorf("%w: %s", ErrVariantUnavailable, item.VariantID)
				return nil, err
			}
			err = fmt.Errorf("checkout: failed to resolve variant %s: %w", item.VariantID, vErr)
			return nil, err
		}
		if !variant.ProductActive {
			err = fmt.Errorf("%w: %s", ErrVariantUnavailable, item.VariantID)
			return nil, err
		}
	}

	// Reserving. Variants are locked in a stable order so two checkouts
	// competing for overlapping variants cannot deadlock.
	reserved := make([]cart.CartItem, len(crt.Items))
	copy(reserved, crt.Items)
	sort.Slice(reserved, func(i, j int) bool {
		return bytes.Compare(reserved[i].VariantID.Bytes(), reserved[j].VariantID.Bytes()) < 0
	})
	for _, item := range reserved {
		rErr := c.ledger.ReserveStock(ctx, tx, item.VariantID, item.Quantity, catalog.ReasonCheckout)
		if rErr != nil {
			if errors.Is(rErr, catalog.ErrInsufficientStock) {
				log.Warn().
					Stringer("user_id", userID).
					Stringer("variant_id", item.VariantID).
					Int("quantity", item.Quantity).
					Msg("checkout: insufficient stock")
				err = &InsufficientStockError{VariantID: item.VariantID}
				return nil, err
			}
			err = fmt.Errorf("checkout: failed to reserve stock for variant %s: %w", item.VariantID, rErr)
			return nil, err
		}
	}

	// Committing. Totals come from the price snapshots, never a re-fetched
	// live price.
	total := decimal.Zero
	orderItems := make([]order.OrderItem, 0, len(crt.Items))
	for _, item := range crt.Items {
		lineTotal := item.PriceAtAdd.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(lineTotal)
		orderItems = append(orderItems, order.OrderItem{
			VariantID:  item.VariantID,
			Quantity:   item.Quantity,
			UnitPrice:  item.PriceAtAdd,
			TotalPrice: lineTotal,
		})
	}

	newOrder := &order.Order{
		UserID:      userID,
		Status:      order.StatusPending,
		Items:       orderItems,
		TotalAmount: total,
		Currency:    defaultCurrency,
	}
	if err = c.orders.Create(ctx, tx, newOrder); err != nil {
		return nil, fmt.Errorf("checkout: failed to create order: %w", err)
	}

	// Drain only the snapshotted lines. A line added after the snapshot was
	// taken is not part of this order and must survive for the next checkout.
	itemIDs := make([]uuid.UUID, 0, len(crt.Items))
	for _, item := range crt.Items {
		itemIDs = append(itemIDs, item.ID)
	}
	if err = c.carts.DeleteItems(ctx, tx, itemIDs); err != nil {
		return nil, fmt.Errorf("checkout: failed to drain cart: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("checkout: failed to commit transaction: %w", err)
	}

	log.Info().
		Stringer("user_id", userID).
		Stringer("order_id", newOrder.ID).
		Str("total_amount", newOrder.TotalAmount.String()).
		Int("items", len(newOrder.Items)).
		Msg("checkout: order created")

	return newOrder, nil
}
