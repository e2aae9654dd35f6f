package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/shopcore/shop-service/internal/catalog"
	"github.com/shopcore/shop-service/internal/db"
)

var ErrInvalidQuantity = errors.New("quantity must be greater than zero")

// VariantResolver is the narrow slice of the catalog the cart needs: the live
// price and existence of a variant at add time.
type VariantResolver interface {
	GetVariant(ctx context.Context, q db.Querier, id uuid.UUID) (*catalog.Variant, error)
}

type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*Cart, error)
	AddItem(ctx context.Context, userID, variantID uuid.UUID, quantity int) (*Cart, error)
	UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*Cart, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error
}

type service struct {
	db       db.Querier
	repo     Repository
	variants VariantResolver
}

func NewService(q db.Querier, repo Repository, variants VariantResolver) Service {
	return &service{db: q, repo: repo, variants: variants}
}

// GetCart returns the user's cart, creating an empty one on first access.
func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	c, err := s.repo.GetOrCreateByUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to get or create cart")
		return nil, fmt.Errorf("service: failed to get or create cart: %w", err)
	}

	return c, nil
}

func (s *service) AddItem(ctx context.Context, userID, variantID uuid.UUID, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	c, err := s.repo.GetOrCreateByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get or create cart: %w", err)
	}

	existing, err := s.repo.FindItemByVariant(ctx, c.ID, variantID)
	if err != nil && !errors.Is(err, ErrItemNotFound) {
		return nil, fmt.Errorf("service: failed to look up cart item: %w", err)
	}

	if existing != nil {
		// Merging into an existing line keeps its original price snapshot.
		if err := s.repo.IncrementItemQuantity(ctx, existing.ID, quantity); err != nil {
			return nil, fmt.Errorf("service: failed to increment cart item quantity: %w", err)
		}
		return s.GetCart(ctx, userID)
	}

	variant, err := s.variants.GetVariant(ctx, s.db, variantID)
	if err != nil {
		if errors.Is(err, catalog.ErrVariantNotFound) {
			log.Warn().Stringer("variant_id", variantID).Msg("service: variant not found on add to cart")
			return nil, catalog.ErrVariantNotFound
		}
		return nil, fmt.Errorf("service: failed to resolve variant: %w", err)
	}

	item := &CartItem{
		CartID:     c.ID,
		VariantID:  variantID,
		Quantity:   quantity,
		PriceAtAdd: variant.Price,
	}
	err = s.repo.InsertItem(ctx, item)
	if errors.Is(err, ErrItemExists) {
		// A concurrent add of the same variant won the insert; fold our
		// quantity into that line instead.
		existing, findErr := s.repo.FindItemByVariant(ctx, c.ID, variantID)
		if findErr != nil {
			return nil, fmt.Errorf("service: failed to look up concurrently added item: %w", findErr)
		}
		if err := s.repo.IncrementItemQuantity(ctx, existing.ID, quantity); err != nil {
			return nil, fmt.Errorf("service: failed to increment cart item quantity: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("service: failed to insert cart item: %w", err)
	}

	log.Info().
		Stringer("user_id", userID).
		Stringer("variant_id", variantID).
		Int("quantity", quantity).
		Msg("service: item added to cart")

	return s.GetCart(ctx, userID)
}

// UpdateItemQuantity sets a line's quantity; zero or less deletes the line.
func (s *service) UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*Cart, error) {
	item, err := s.repo.GetItemForUser(ctx, itemID, userID)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("service: failed to resolve cart item ownership: %w", err)
	}

	if quantity <= 0 {
		if err := s.repo.DeleteItem(ctx, item.ID); err != nil && !errors.Is(err, ErrItemNotFound) {
			return nil, fmt.Errorf("service: failed to delete cart item: %w", err)
		}
	} else {
		if err := s.repo.SetItemQuantity(ctx, item.ID, quantity); err != nil {
			return nil, fmt.Errorf("service: failed to set cart item quantity: %w", err)
		}
	}

	return s.GetCart(ctx, userID)
}

// RemoveItem deletes a line the user owns. A missing or foreign line is a
// no-op success.
func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	item, err := s.repo.GetItemForUser(ctx, itemID, userID)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return nil
		}
		return fmt.Errorf("service: failed to resolve cart item ownership: %w", err)
	}

	if err := s.repo.DeleteItem(ctx, item.ID); err != nil && !errors.Is(err, ErrItemNotFound) {
		return fmt.Errorf("service: failed to delete cart item: %w", err)
	}

	return nil
}
