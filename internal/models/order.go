package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderCancelled OrderStatus = "cancelled"
	OrderRefunded  OrderStatus = "refunded"
)

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID         string      `bun:"id,pk" json:"id"`
	UserID     string      `bun:"user_id,nullzero" json:"user_id,omitempty"`
	BuyerEmail string      `bun:"buyer_email,notnull" json:"buyer_email"`
	// TotalAmount is frozen at creation and never recomputed.
	TotalAmount float64     `bun:"total_amount,notnull" json:"total_amount"`
	Status      OrderStatus `bun:"status,notnull" json:"status"`
	CreatedAt   time.Time   `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time   `bun:"updated_at,nullzero" json:"updated_at,omitempty"`

	Items       []*OrderItem `bun:"rel:has-many,join:id=order_id" json:"items,omitempty"`
	Transaction *Transaction `bun:"rel:has-one,join:id=order_id" json:"transaction,omitempty"`
}

// OrderItem snapshots the artwork's price at purchase time. The unit price
// is never re-read from the artwork once the row exists.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items"`

	ID        string  `bun:"id,pk" json:"id"`
	OrderID   string  `bun:"order_id,notnull" json:"order_id"`
	ArtworkID string  `bun:"artwork_id,notnull" json:"artwork_id"`
	Quantity  int     `bun:"quantity,notnull" json:"quantity"`
	Price     float64 `bun:"price,notnull" json:"price"`
}

type OrderItemRequest struct {
	ArtworkID string `json:"artworkId"`
	Quantity  int    `json:"quantity"`
}

type CreateOrderRequest struct {
	Items           []OrderItemRequest `json:"items"`
	ShippingAddress string             `json:"shippingAddress"`
	PaymentMethod   string             `json:"paymentMethod"`
	BuyerEmail      string             `json:"buyerEmail"`
	BuyerName       string             `json:"buyerName"`
}

type CreateOrderResponse struct {
	OrderID     string       `json:"orderId"`
	TxRef       string       `json:"txRef"`
	TotalAmount float64      `json:"totalAmount"`
	Subtotal    float64      `json:"subtotal"`
	PlatformFee float64      `json:"platformFee"`
	Items       []*OrderItem `json:"items"`
}

type CompleteOrderRequest struct {
	TxRef           string `json:"txRef"`
	PaymentProvider string `json:"paymentProvider"`
}
