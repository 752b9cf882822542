package app

import (
	"context"

	"rental-manager/internal/core"
)

// ApplicationService is the single interface all adapters (Web, CLI) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println and no display logic of any kind.
type ApplicationService interface {
	// CreateOrder validates availability and persists a new order. The
	// request's Confirm flag creates it directly in confirmed status.
	CreateOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)

	// UpdateOrder replaces a draft or confirmed order's data and lines,
	// re-validating availability with the order's own holds excluded.
	UpdateOrder(ctx context.Context, orderID int64, req OrderRequest) (*OrderResult, error)

	// ConfirmOrder transitions draft → confirmed after re-validation.
	ConfirmOrder(ctx context.Context, orderID int64) (*OrderResult, error)

	// CancelOrder transitions draft or confirmed → canceled.
	CancelOrder(ctx context.Context, orderID int64) (*OrderResult, error)

	// CompleteOrder transitions confirmed → completed, debiting sale stock.
	CompleteOrder(ctx context.Context, orderID int64) (*OrderResult, error)

	GetOrder(ctx context.Context, orderID int64) (*OrderResult, error)
	ListOrders(ctx context.Context, req OrderListRequest) (*OrderListResult, error)

	// CheckAvailability reports how many units of a product are free on one
	// day, counting draft and confirmed rental holds.
	CheckAvailability(ctx context.Context, req AvailabilityRequest) (*AvailabilityResult, error)

	// GetOrderDossier returns an order together with its payments, for
	// rendering receipts and rental agreements.
	GetOrderDossier(ctx context.Context, orderID int64) (*OrderDossier, error)

	AddPayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error)
	UpdatePayment(ctx context.Context, paymentID int64, req PaymentRequest) (*PaymentResult, error)
	DeletePayment(ctx context.Context, paymentID int64) error
	ListPayments(ctx context.Context, orderID int64) (*PaymentListResult, error)

	CreateProduct(ctx context.Context, req ProductRequest) (*ProductResult, error)
	UpdateProduct(ctx context.Context, productID int64, req ProductRequest) (*ProductResult, error)
	DeactivateProduct(ctx context.Context, productID int64) error
	GetProduct(ctx context.Context, productID int64) (*ProductResult, error)
	ListProducts(ctx context.Context, includeInactive bool) (*ProductListResult, error)

	CreateCustomer(ctx context.Context, req CustomerRequest) (*CustomerResult, error)
	UpdateCustomer(ctx context.Context, customerID int64, req CustomerRequest) (*CustomerResult, error)
	DeleteCustomer(ctx context.Context, customerID int64) error
	GetCustomer(ctx context.Context, customerID int64) (*CustomerResult, error)
	ListCustomers(ctx context.Context, search string) (*CustomerListResult, error)

	CreateExpense(ctx context.Context, req ExpenseRequest) (*ExpenseResult, error)
	UpdateExpense(ctx context.Context, expenseID int64, req ExpenseRequest) (*ExpenseResult, error)
	DeleteExpense(ctx context.Context, expenseID int64) error
	ListExpenses(ctx context.Context, period PeriodRequest) (*ExpenseListResult, error)
	ExpenseCategories(ctx context.Context) (*CategoryListResult, error)

	// GetFinanceSummary aggregates the period: expected revenue and order
	// count over non-canceled orders, cash received by paid date, open
	// receivable on confirmed orders, expenses, and the resulting balance.
	GetFinanceSummary(ctx context.Context, period PeriodRequest) (*core.FinanceSummary, error)

	// GetMonthlySeries returns the four monthly report series for charting.
	GetMonthlySeries(ctx context.Context, period PeriodRequest) (*MonthlySeriesResult, error)

	// GetTopProducts ranks products by quantity and by revenue over the
	// period, with warnings for lines that could not be priced.
	GetTopProducts(ctx context.Context, period PeriodRequest, limit int) (*TopProductsResult, error)

	// GetOrderRows returns flattened order rows for period exports.
	GetOrderRows(ctx context.Context, period PeriodRequest) (*OrderRowsResult, error)
}
