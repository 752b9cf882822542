package app

import "github.com/shopspring/decimal"

// Requests carry dates as YYYY-MM-DD strings; the app layer parses and
// validates them before calling into core.

// OrderLineRequest is one requested product line.
type OrderLineRequest struct {
	ProductID int64            `json:"product_id"`
	Qty       int              `json:"qty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

// OrderRequest is the payload for creating or replacing an order.
type OrderRequest struct {
	CustomerID       int64              `json:"customer_id"`
	EventDate        string             `json:"event_date"`
	StartDate        string             `json:"start_date,omitempty"`
	EndDate          string             `json:"end_date,omitempty"`
	Address          string             `json:"address,omitempty"`
	ContactPhone     string             `json:"contact_phone,omitempty"`
	DeliveryRequired bool               `json:"delivery_required,omitempty"`
	Confirm          bool               `json:"confirm,omitempty"`
	Lines            []OrderLineRequest `json:"lines"`
}

// OrderListRequest filters the order listing. All fields are optional.
type OrderListRequest struct {
	EventFrom     string `json:"event_from,omitempty"`
	EventTo       string `json:"event_to,omitempty"`
	Status        string `json:"status,omitempty"`
	PaymentStatus string `json:"payment_status,omitempty"`
	Search        string `json:"search,omitempty"`
}

// AvailabilityRequest asks how many units of a product are free on a day,
// optionally ignoring one order's own holds.
type AvailabilityRequest struct {
	ProductID      int64  `json:"product_id"`
	Date           string `json:"date"`
	ExcludeOrderID *int64 `json:"exclude_order_id,omitempty"`
}

// PaymentRequest records or amends a payment against an order.
type PaymentRequest struct {
	OrderID int64           `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
	Method  string          `json:"method,omitempty"`
	PaidAt  string          `json:"paid_at,omitempty"`
	Note    string          `json:"note,omitempty"`
}

// ProductRequest creates or replaces a catalog product.
type ProductRequest struct {
	Name      string           `json:"name"`
	Kind      string           `json:"kind"`
	Category  string           `json:"category,omitempty"`
	TotalQty  int              `json:"total_qty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

// CustomerRequest creates or replaces a customer record.
type CustomerRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Notes string `json:"notes,omitempty"`
}

// ExpenseRequest creates or replaces an expense entry.
type ExpenseRequest struct {
	ExpenseDate   string          `json:"expense_date"`
	Category      string          `json:"category,omitempty"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Supplier      string          `json:"supplier,omitempty"`
	Notes         string          `json:"notes,omitempty"`
}

// PeriodRequest bounds a financial report; both dates are inclusive.
type PeriodRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}
