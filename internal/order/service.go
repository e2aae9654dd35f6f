package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/shopcore/shop-service/internal/catalog"
	"github.com/shopcore/shop-service/internal/db"
)

// Allowed status edges. Cancellation is only reachable before shipping.
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusPaid:      true,
		StatusCancelled: true,
	},
	StatusPaid: {
		StatusShipped:   true,
		StatusCancelled: true,
	},
	StatusShipped: {
		StatusDelivered: true,
	},
	StatusDelivered: {},
	StatusCancelled: {},
}

var ErrInvalidStatusTransition = errors.New("invalid order status transition")

// StockReleaser returns reserved stock to the catalog when an order is
// cancelled, inside the same transaction as the status change.
type StockReleaser interface {
	ReleaseStock(ctx context.Context, q db.Querier, variantID uuid.UUID, quantity int, reason string) error
}

type TxBeginner interface {
	Begin(ctx context.Context) (db.Tx, error)
}

type Service interface {
	GetOrder(ctx context.Context, orderID, userID uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, userID uuid.UUID) ([]Order, error)
	ListAllOrders(ctx context.Context, limit, offset int) ([]Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) (*Order, error)
}

type service struct {
	db    TxBeginner
	repo  Repository
	stock StockReleaser
}

func NewService(txDB TxBeginner, repo Repository, stock StockReleaser) Service {
	return &service{db: txDB, repo: repo, stock: stock}
}

func (s *service) GetOrder(ctx context.Context, orderID, userID uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to fetch order")
		return nil, fmt.Errorf("service: failed to fetch order: %w", err)
	}

	return o, nil
}

func (s *service) ListOrders(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	orders, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to fetch user orders")
		return nil, fmt.Errorf("service: failed to fetch user orders: %w", err)
	}

	return orders, nil
}

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

func (s *service) ListAllOrders(ctx context.Context, limit, offset int) ([]Order, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	orders, err := s.repo.ListAll(ctx, limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to fetch all orders")
		return nil, fmt.Errorf("service: failed to fetch all orders: %w", err)
	}

	return orders, nil
}

// UpdateStatus validates the requested edge against the state machine and
// applies it. A transition to cancelled releases the stock that checkout
// reserved, in the same transaction, so the order flip and the restock are
// atomic. Requesting the current status is a no-op success.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) (o *Order, err error) {
	if !newStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidStatusTransition, newStatus)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			// A failed Commit already closed the transaction; that rollback
			// result is not worth an error line.
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Stringer("order_id", orderID).Msg("service: failed to rollback status update")
			}
		}
	}()

	current, err := s.repo.GetByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("service: failed to get order for status update: %w", err)
	}

	if current.Status == newStatus {
		if err = tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("service: failed to commit transaction: %w", err)
		}
		return current, nil
	}

	if !allowedTransitions[current.Status][newStatus] {
		log.Warn().
			Stringer("order_id", orderID).
			Stringer("current_status", current.Status).
			Stringer("new_status", newStatus).
			Msg("service: invalid status transition attempt")
		err = fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, current.Status, newStatus)
		return nil, err
	}

	if err = s.repo.UpdateStatus(ctx, tx, orderID, newStatus); err != nil {
		return nil, fmt.Errorf("service: failed to update order status: %w", err)
	}

	if newStatus == StatusCancelled {
		for _, item := range current.Items {
			if err = s.stock.ReleaseStock(ctx, tx, item.VariantID, item.Quantity, catalog.ReasonOrderCancelled); err != nil {
				return nil, fmt.Errorf("service: failed to release stock for cancelled order: %w", err)
			}
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("service: failed to commit transaction: %w", err)
	}

	log.Info().
		Stringer("order_id", orderID).
		Stringer("old_status", current.Status).
		Stringer("new_status", newStatus).
		Msg("service: order status updated")

	current.Status = newStatus
	return current, nil
}
