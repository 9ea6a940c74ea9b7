package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxLineQuantity bounds a single cart line.
const MaxLineQuantity = 10000

type CartLine struct {
	ID        uuid.UUID `json:"id"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Size      *string   `json:"size,omitempty"`
	Color     *string   `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type AddItemRequest struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Quantity  int     `json:"quantity"`
	Size      *string `json:"size,omitempty" validate:"omitempty,max=32"`
	Color     *string `json:"color,omitempty" validate:"omitempty,max=32"`
}

type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type CartSummary struct {
	Lines                 []CartLine `json:"lines"`
	ItemCount             int        `json:"item_count"`
	Subtotal              Money      `json:"subtotal"`
	Shipping              Money      `json:"shipping"`
	Tax                   Money      `json:"tax"`
	Total                 Money      `json:"total"`
	UnavailableProductIDs []int64    `json:"unavailable_product_ids,omitempty"`
}

// Variant normalises an optional attribute to its stored form.
func Variant(v *string) string {
	if v == nil {
		return ""
	}

	return *v
}

// OptionalVariant is the inverse of Variant.
func OptionalVariant(v string) *string {
	if v == "" {
		return nil
	}

	return &v
}
