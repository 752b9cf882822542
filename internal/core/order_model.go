package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the order lifecycle state.
//
//	draft → confirmed → completed
//	draft | confirmed → canceled
//
// Rental stock is held by draft and confirmed orders only; canceling or
// completing an order releases its date-scoped holds.
type OrderStatus string

const (
	StatusDraft     OrderStatus = "draft"
	StatusConfirmed OrderStatus = "confirmed"
	StatusCanceled  OrderStatus = "canceled"
	StatusCompleted OrderStatus = "completed"
)

// holdingStatuses are the states whose rental lines commit stock.
var holdingStatuses = []OrderStatus{StatusDraft, StatusConfirmed}

// PaymentStatus is derived from the order's payment set, never set directly.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

// Order is the central aggregate: a customer booking with line items,
// an event date, and (when it carries rental lines) a half-open
// [StartDate, EndDate) reservation span.
type Order struct {
	ID               int64           `json:"id"`
	CustomerID       int64           `json:"customer_id"`
	CustomerName     string          `json:"customer_name"` // joined from customers
	EventDate        time.Time       `json:"event_date"`
	StartDate        *time.Time      `json:"start_date,omitempty"`
	EndDate          *time.Time      `json:"end_date,omitempty"` // exclusive
	Address          string          `json:"address"`
	ContactPhone     string          `json:"contact_phone"`
	DeliveryRequired bool            `json:"delivery_required"`
	Status           OrderStatus     `json:"status"`
	TotalValue       decimal.Decimal `json:"total_value"`
	PaidValue        decimal.Decimal `json:"paid_value"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
	StockDebitedAt   *time.Time      `json:"stock_debited_at,omitempty"`
	Items            []OrderItem     `json:"items"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// OrderItem is one line on an order. Kind and UnitPrice are snapshots taken
// when the line was added: later catalog edits never change the availability
// semantics or pricing of an already-saved order. UnitPrice/LineTotal may be
// nil on rows imported from the pre-pricing schema.
type OrderItem struct {
	ID          int64            `json:"id"`
	OrderID     int64            `json:"order_id"`
	ProductID   int64            `json:"product_id"`
	ProductName string           `json:"product_name"` // joined from products
	Kind        ProductKind      `json:"kind"`
	Qty         int              `json:"qty"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
	LineTotal   *decimal.Decimal `json:"line_total,omitempty"`
}

// OrderLineInput is one requested line when creating or editing an order.
// A nil UnitPrice means "snapshot the product's current catalog price".
// Kind is normally empty and resolved from the catalog; confirm-time
// re-validation sets it to the line's stored snapshot so a catalog kind
// change after the draft cannot alter the order's availability semantics.
type OrderLineInput struct {
	ProductID int64
	Qty       int
	UnitPrice *decimal.Decimal
	Kind      ProductKind
}

// OrderDraft is the candidate order submitted for validation and persistence.
type OrderDraft struct {
	CustomerID       int64
	EventDate        time.Time
	StartDate        *time.Time
	EndDate          *time.Time
	Address          string
	ContactPhone     string
	DeliveryRequired bool
	Lines            []OrderLineInput
}

// OrderFilter narrows List results. Zero values mean "no filter".
type OrderFilter struct {
	EventFrom     *time.Time
	EventTo       *time.Time
	Status        OrderStatus
	PaymentStatus PaymentStatus
	Search        string // matches address or customer name, case-insensitive
}
