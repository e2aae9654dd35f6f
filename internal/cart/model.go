package cart

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

// Cart is the single mutable cart a user owns. It is created lazily on first
// access and survives checkout as an empty container.
type Cart struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartItem holds one (variant, quantity) line. PriceAtAdd is the price the
// customer was shown when the line was created; it is never re-synced with
// the live catalog price.
type CartItem struct {
	ID         uuid.UUID       `json:"id"`
	CartID     uuid.UUID       `json:"cart_id"`
	VariantID  uuid.UUID       `json:"variant_id"`
	Quantity   int             `json:"quantity"`
	PriceAtAdd decimal.Decimal `json:"price_at_add"`
	AddedAt    time.Time       `json:"added_at"`
}
