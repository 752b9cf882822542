package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductKind decides how a line on an order affects stock.
//
//	rental  — stock is committed per day over the order's [start, end) span
//	sale    — stock is permanently debited when the order completes
//	service — no stock tracking at all
type ProductKind string

const (
	KindRental  ProductKind = "rental"
	KindSale    ProductKind = "sale"
	KindService ProductKind = "service"
)

// ParseProductKind maps a stored kind value to a ProductKind, defaulting
// unknown values to rental (the pre-kind schema behavior).
func ParseProductKind(s string) ProductKind {
	switch ProductKind(s) {
	case KindSale:
		return KindSale
	case KindService:
		return KindService
	default:
		return KindRental
	}
}

// Product is a catalog entry. UnitPrice is nil for entries created before
// pricing was tracked; TotalQty is meaningless for service kind.
type Product struct {
	ID        int64            `json:"id"`
	Name      string           `json:"name"`
	Kind      ProductKind      `json:"kind"`
	Category  string           `json:"category"`
	TotalQty  int              `json:"total_qty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Active    bool             `json:"active"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Payment is one ledger entry against an order. PaidAt is nil for payments
// recorded without a date; those are excluded from period "received" totals.
type Payment struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	PaidAt    *time.Time      `json:"paid_at,omitempty"`
	Note      string          `json:"note"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Expense is an independent cost record, used only by finance reports.
type Expense struct {
	ID            int64           `json:"id"`
	Date          time.Time       `json:"date"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	Supplier      string          `json:"supplier"`
	Notes         string          `json:"notes"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ExpenseInput is the payload for creating or updating an expense.
type ExpenseInput struct {
	Date          time.Time
	Category      string
	Description   string
	Amount        decimal.Decimal
	PaymentMethod string
	Supplier      string
	Notes         string
}

// ProductInput is the payload for creating or updating a catalog entry.
type ProductInput struct {
	Name      string
	Kind      ProductKind
	Category  string
	TotalQty  int
	UnitPrice *decimal.Decimal
}

// CustomerInput is the payload for creating or updating a customer.
type CustomerInput struct {
	Name  string
	Phone string
	Notes string
}
