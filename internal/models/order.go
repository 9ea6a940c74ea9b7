package models

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipping  OrderStatus = "shipping"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentMethod is recorded on the order only. Nothing is charged.
type PaymentMethod string

const (
	PaymentMethodCredit PaymentMethod = "credit"
	PaymentMethodPaypal PaymentMethod = "paypal"
	PaymentMethodCash   PaymentMethod = "cash"
)

type BillingInfo struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Phone     string `json:"phone" validate:"required,max=30"`
	Address   string `json:"address" validate:"required,max=255"`
	City      string `json:"city" validate:"required,max=100"`
	State     string `json:"state" validate:"required,max=100"`
	ZipCode   string `json:"zip_code" validate:"required,max=20"`
}

// OrderItem is the immutable price snapshot of one cart line.
type OrderItem struct {
	ID           uuid.UUID `json:"id"`
	OrderID      uuid.UUID `json:"order_id"`
	ProductID    int64     `json:"product_id"`
	ProductName  string    `json:"product_name"`
	ProductPrice Money     `json:"product_price"`
	Quantity     int       `json:"quantity"`
	Size         *string   `json:"size,omitempty"`
	Color        *string   `json:"color,omitempty"`
}

type Order struct {
	ID            uuid.UUID     `json:"id"`
	OwnerKind     OwnerKind     `json:"owner_kind"`
	OwnerID       uuid.UUID     `json:"owner_id"`
	BillingInfo   BillingInfo   `json:"billing_info"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Subtotal      Money         `json:"subtotal"`
	Shipping      Money         `json:"shipping"`
	Tax           Money         `json:"tax"`
	Total         Money         `json:"total"`
	Status        OrderStatus   `json:"status"`
	Items         []OrderItem   `json:"items"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (o *Order) Owner() OwnerKey {
	return OwnerKey{kind: o.OwnerKind, id: o.OwnerID}
}

type CreateOrderRequest struct {
	BillingInfo   BillingInfo   `json:"billing_info"`
	PaymentMethod PaymentMethod `json:"payment_method" validate:"required,oneof=credit paypal cash"`
}

type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" validate:"required,oneof=pending confirmed shipping delivered cancelled"`
}
