package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Order lifecycle statuses driven by commerce-platform events.
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

// Fulfillment statuses reported by the commerce platform.
const (
	FulfillmentUnfulfilled = "unfulfilled"
	FulfillmentFulfilled   = "fulfilled"
)

// Order mirrors one external commerce-platform order. Exactly one row exists
// per external order id; later lifecycle events mutate the status columns.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID                int64     `bun:",pk,autoincrement"`
	ExternalOrderID   int64     `bun:"external_order_id"`
	ExternalOrderNum  string    `bun:"external_order_number"`
	CustomerEmail     string    `bun:"customer_email,nullzero"`
	TotalAmount       float64   `bun:"total_amount"`
	Currency          string    `bun:"currency"`
	OrderStatus       string    `bun:"order_status"`
	FulfillmentStatus string    `bun:"fulfillment_status"`
	CreatedAt         time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time `bun:"updated_at,nullzero"`

	Items []*OrderItem `bun:"rel:has-many,join:id=order_id"`
}

// OrderItem is one ordered line item that carried a resolvable design
// reference. Immutable after creation.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID                 int64   `bun:",pk,autoincrement"`
	OrderID            int64   `bun:"order_id"`
	DesignID           int64   `bun:"design_id"`
	ProductID          int64   `bun:"product_id"`
	ExternalLineItemID int64   `bun:"external_line_item_id"`
	Quantity           int     `bun:"quantity"`
	UnitPrice          float64 `bun:"unit_price"`
	TotalPrice         float64 `bun:"total_price"`

	Order   *Order   `bun:"rel:belongs-to,join:order_id=id"`
	Design  *Design  `bun:"rel:belongs-to,join:design_id=id"`
	Product *Product `bun:"rel:belongs-to,join:product_id=id"`
}
