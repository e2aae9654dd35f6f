package catalog

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

// Category is a flat browse taxonomy with an optional parent link.
type Category struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Slug      string     `json:"slug"`
	ParentID  *uuid.UUID `json:"parent_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type Product struct {
	ID          uuid.UUID  `json:"id"`
	SKU         string     `json:"sku,omitempty"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Description string     `json:"description,omitempty"`
	CategoryID  *uuid.UUID `json:"category_id,omitempty"`
	IsActive    bool       `json:"is_active"`
	Variants    []Variant  `json:"variants"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Variant struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	SKU       string          `json:"sku"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	Stock     int             `json:"stock"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`

	// ProductActive mirrors the parent product's is_active flag. It is only
	// populated by lookups that join products, such as Ledger.GetVariant.
	ProductActive bool `json:"-"`
}

// Reasons recorded in inventory_events for every stock delta.
const (
	ReasonCheckout       = "checkout"
	ReasonOrderCancelled = "order_cancelled"
	ReasonRestock        = "restock"
)
