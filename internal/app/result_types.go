package app

import (
	"rental-manager/internal/core"

	"github.com/shopspring/decimal"
)

type OrderResult struct {
	Order *core.Order `json:"order"`
}

type OrderListResult struct {
	Orders []core.Order `json:"orders"`
	Count  int          `json:"count"`
}

type AvailabilityResult struct {
	ProductID int64  `json:"product_id"`
	Date      string `json:"date"`
	Available int    `json:"available"`
}

type PaymentResult struct {
	Payment *core.Payment `json:"payment"`
}

type PaymentListResult struct {
	Payments []core.Payment  `json:"payments"`
	Total    decimal.Decimal `json:"total"`
}

type ProductResult struct {
	Product *core.Product `json:"product"`
}

type ProductListResult struct {
	Products []core.Product `json:"products"`
}

type CustomerResult struct {
	Customer *core.Customer `json:"customer"`
}

type CustomerListResult struct {
	Customers []core.Customer `json:"customers"`
}

type ExpenseResult struct {
	Expense *core.Expense `json:"expense"`
}

type ExpenseListResult struct {
	Expenses []core.Expense  `json:"expenses"`
	Total    decimal.Decimal `json:"total"`
}

type CategoryListResult struct {
	Categories []string `json:"categories"`
}

type MonthlySeriesResult struct {
	Revenue    []core.MonthlyAmount `json:"revenue"`
	Orders     []core.MonthlyCount  `json:"orders"`
	Received   []core.MonthlyAmount `json:"received"`
	Receivable []core.MonthlyAmount `json:"receivable"`
}

type TopProductsResult struct {
	ByQty     []core.ProductRank        `json:"by_qty"`
	ByRevenue []core.ProductRank        `json:"by_revenue"`
	Warnings  []core.ConsistencyWarning `json:"warnings,omitempty"`
}

type OrderRowsResult struct {
	Rows []core.OrderRow `json:"rows"`
}

// OrderDossier bundles everything needed to render an order document:
// the order with its lines plus its payment history.
type OrderDossier struct {
	Order    *core.Order    `json:"order"`
	Payments []core.Payment `json:"payments"`
}
