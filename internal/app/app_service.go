package app

import (
	"context"
	"time"

	"rental-manager/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
)

type appService struct {
	pool         *pgxpool.Pool
	availability core.AvailabilityService
	orders       core.OrderService
	payments     core.PaymentService
	catalog      core.CatalogService
	expenses     core.ExpenseService
	finance      core.FinanceService
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	pool *pgxpool.Pool,
	availability core.AvailabilityService,
	orders core.OrderService,
	payments core.PaymentService,
	catalog core.CatalogService,
	expenses core.ExpenseService,
	finance core.FinanceService,
) ApplicationService {
	return &appService{
		pool:         pool,
		availability: availability,
		orders:       orders,
		payments:     payments,
		catalog:      catalog,
		expenses:     expenses,
		finance:      finance,
	}
}

// parseDate parses a required YYYY-MM-DD field.
func parseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, &core.ConstraintViolation{Field: field, Rule: "required"}
	}
	d, err := core.ParseDate(value)
	if err != nil {
		return time.Time{}, &core.ConstraintViolation{Field: field, Rule: "must be a YYYY-MM-DD date"}
	}
	return d, nil
}

// parseOptionalDate parses an optional date field; empty means nil.
func parseOptionalDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	d, err := core.ParseDate(value)
	if err != nil {
		return nil, &core.ConstraintViolation{Field: field, Rule: "must be a YYYY-MM-DD date"}
	}
	return &d, nil
}

func draftFromRequest(req OrderRequest) (core.OrderDraft, error) {
	eventDate, err := parseDate("event_date", req.EventDate)
	if err != nil {
		return core.OrderDraft{}, err
	}
	startDate, err := parseOptionalDate("start_date", req.StartDate)
	if err != nil {
		return core.OrderDraft{}, err
	}
	endDate, err := parseOptionalDate("end_date", req.EndDate)
	if err != nil {
		return core.OrderDraft{}, err
	}

	draft := core.OrderDraft{
		CustomerID:       req.CustomerID,
		EventDate:        eventDate,
		StartDate:        startDate,
		EndDate:          endDate,
		Address:          req.Address,
		ContactPhone:     req.ContactPhone,
		DeliveryRequired: req.DeliveryRequired,
	}
	for _, l := range req.Lines {
		draft.Lines = append(draft.Lines, core.OrderLineInput{
			ProductID: l.ProductID,
			Qty:       l.Qty,
			UnitPrice: l.UnitPrice,
		})
	}
	return draft, nil
}

func (s *appService) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	draft, err := draftFromRequest(req)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.Create(ctx, draft, req.Confirm)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) UpdateOrder(ctx context.Context, orderID int64, req OrderRequest) (*OrderResult, error) {
	draft, err := draftFromRequest(req)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.Update(ctx, orderID, draft)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) ConfirmOrder(ctx context.Context, orderID int64) (*OrderResult, error) {
	order, err := s.orders.Confirm(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) CancelOrder(ctx context.Context, orderID int64) (*OrderResult, error) {
	order, err := s.orders.Cancel(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) CompleteOrder(ctx context.Context, orderID int64) (*OrderResult, error) {
	order, err := s.orders.Complete(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) GetOrder(ctx context.Context, orderID int64) (*OrderResult, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) ListOrders(ctx context.Context, req OrderListRequest) (*OrderListResult, error) {
	eventFrom, err := parseOptionalDate("event_from", req.EventFrom)
	if err != nil {
		return nil, err
	}
	eventTo, err := parseOptionalDate("event_to", req.EventTo)
	if err != nil {
		return nil, err
	}

	orders, err := s.orders.List(ctx, core.OrderFilter{
		EventFrom:     eventFrom,
		EventTo:       eventTo,
		Status:        core.OrderStatus(req.Status),
		PaymentStatus: core.PaymentStatus(req.PaymentStatus),
		Search:        req.Search,
	})
	if err != nil {
		return nil, err
	}
	return &OrderListResult{Orders: orders, Count: len(orders)}, nil
}

func (s *appService) CheckAvailability(ctx context.Context, req AvailabilityRequest) (*AvailabilityResult, error) {
	day, err := parseDate("date", req.Date)
	if err != nil {
		return nil, err
	}
	available, err := s.availability.Available(ctx, req.ProductID, day, req.ExcludeOrderID)
	if err != nil {
		return nil, err
	}
	return &AvailabilityResult{
		ProductID: req.ProductID,
		Date:      day.Format("2006-01-02"),
		Available: available,
	}, nil
}

func (s *appService) GetOrderDossier(ctx context.Context, orderID int64) (*OrderDossier, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderDossier{Order: order, Payments: payments}, nil
}

func (s *appService) AddPayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	paidAt, err := parseOptionalDate("paid_at", req.PaidAt)
	if err != nil {
		return nil, err
	}
	payment, err := s.payments.Add(ctx, req.OrderID, req.Amount, req.Method, paidAt, req.Note)
	if err != nil {
		return nil, err
	}
	return &PaymentResult{Payment: payment}, nil
}

func (s *appService) UpdatePayment(ctx context.Context, paymentID int64, req PaymentRequest) (*PaymentResult, error) {
	paidAt, err := parseOptionalDate("paid_at", req.PaidAt)
	if err != nil {
		return nil, err
	}
	payment, err := s.payments.Update(ctx, paymentID, req.Amount, req.Method, paidAt, req.Note)
	if err != nil {
		return nil, err
	}
	return &PaymentResult{Payment: payment}, nil
}

func (s *appService) DeletePayment(ctx context.Context, paymentID int64) error {
	return s.payments.Delete(ctx, paymentID)
}

func (s *appService) ListPayments(ctx context.Context, orderID int64) (*PaymentListResult, error) {
	payments, err := s.payments.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &PaymentListResult{Payments: payments, Total: core.SumPayments(payments)}, nil
}

func productInputFromRequest(req ProductRequest) core.ProductInput {
	return core.ProductInput{
		Name:      req.Name,
		Kind:      core.ProductKind(req.Kind),
		Category:  req.Category,
		TotalQty:  req.TotalQty,
		UnitPrice: req.UnitPrice,
	}
}

func (s *appService) CreateProduct(ctx context.Context, req ProductRequest) (*ProductResult, error) {
	product, err := s.catalog.CreateProduct(ctx, productInputFromRequest(req))
	if err != nil {
		return nil, err
	}
	return &ProductResult{Product: product}, nil
}

func (s *appService) UpdateProduct(ctx context.Context, productID int64, req ProductRequest) (*ProductResult, error) {
	product, err := s.catalog.UpdateProduct(ctx, productID, productInputFromRequest(req))
	if err != nil {
		return nil, err
	}
	return &ProductResult{Product: product}, nil
}

func (s *appService) DeactivateProduct(ctx context.Context, productID int64) error {
	return s.catalog.DeactivateProduct(ctx, productID)
}

func (s *appService) GetProduct(ctx context.Context, productID int64) (*ProductResult, error) {
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &ProductResult{Product: product}, nil
}

func (s *appService) ListProducts(ctx context.Context, includeInactive bool) (*ProductListResult, error) {
	products, err := s.catalog.ListProducts(ctx, includeInactive)
	if err != nil {
		return nil, err
	}
	return &ProductListResult{Products: products}, nil
}

func (s *appService) CreateCustomer(ctx context.Context, req CustomerRequest) (*CustomerResult, error) {
	customer, err := s.catalog.CreateCustomer(ctx, core.CustomerInput{Name: req.Name, Phone: req.Phone, Notes: req.Notes})
	if err != nil {
		return nil, err
	}
	return &CustomerResult{Customer: customer}, nil
}

func (s *appService) UpdateCustomer(ctx context.Context, customerID int64, req CustomerRequest) (*CustomerResult, error) {
	customer, err := s.catalog.UpdateCustomer(ctx, customerID, core.CustomerInput{Name: req.Name, Phone: req.Phone, Notes: req.Notes})
	if err != nil {
		return nil, err
	}
	return &CustomerResult{Customer: customer}, nil
}

func (s *appService) DeleteCustomer(ctx context.Context, customerID int64) error {
	return s.catalog.DeleteCustomer(ctx, customerID)
}

func (s *appService) GetCustomer(ctx context.Context, customerID int64) (*CustomerResult, error) {
	customer, err := s.catalog.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return &CustomerResult{Customer: customer}, nil
}

func (s *appService) ListCustomers(ctx context.Context, search string) (*CustomerListResult, error) {
	customers, err := s.catalog.ListCustomers(ctx, search)
	if err != nil {
		return nil, err
	}
	return &CustomerListResult{Customers: customers}, nil
}

func expenseInputFromRequest(req ExpenseRequest) (core.ExpenseInput, error) {
	expenseDate, err := parseDate("expense_date", req.ExpenseDate)
	if err != nil {
		return core.ExpenseInput{}, err
	}
	return core.ExpenseInput{
		Date:          expenseDate,
		Category:      req.Category,
		Description:   req.Description,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Supplier:      req.Supplier,
		Notes:         req.Notes,
	}, nil
}

func (s *appService) CreateExpense(ctx context.Context, req ExpenseRequest) (*ExpenseResult, error) {
	input, err := expenseInputFromRequest(req)
	if err != nil {
		return nil, err
	}
	expense, err := s.expenses.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	return &ExpenseResult{Expense: expense}, nil
}

func (s *appService) UpdateExpense(ctx context.Context, expenseID int64, req ExpenseRequest) (*ExpenseResult, error) {
	input, err := expenseInputFromRequest(req)
	if err != nil {
		return nil, err
	}
	expense, err := s.expenses.Update(ctx, expenseID, input)
	if err != nil {
		return nil, err
	}
	return &ExpenseResult{Expense: expense}, nil
}

func (s *appService) DeleteExpense(ctx context.Context, expenseID int64) error {
	return s.expenses.Delete(ctx, expenseID)
}

func (s *appService) ListExpenses(ctx context.Context, period PeriodRequest) (*ExpenseListResult, error) {
	from, to, err := parsePeriod(period)
	if err != nil {
		return nil, err
	}
	expenses, err := s.expenses.ListByPeriod(ctx, from, to)
	if err != nil {
		return nil, err
	}
	total, err := s.expenses.TotalByPeriod(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return &ExpenseListResult{Expenses: expenses, Total: total}, nil
}

func (s *appService) ExpenseCategories(ctx context.Context) (*CategoryListResult, error) {
	categories, err := s.expenses.Categories(ctx)
	if err != nil {
		return nil, err
	}
	return &CategoryListResult{Categories: categories}, nil
}

func parsePeriod(period PeriodRequest) (time.Time, time.Time, error) {
	from, err := parseDate("from", period.From)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseDate("to", period.To)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, &core.ConstraintViolation{Field: "to", Rule: "must not be before from"}
	}
	return from, to, nil
}

func (s *appService) GetFinanceSummary(ctx context.Context, period PeriodRequest) (*core.FinanceSummary, error) {
	from, to, err := parsePeriod(period)
	if err != nil {
		return nil, err
	}
	return s.finance.Summary(ctx, from, to)
}

func (s *appService) GetMonthlySeries(ctx context.Context, period PeriodRequest) (*MonthlySeriesResult, error) {
	from, to, err := parsePeriod(period)
	if err != nil {
		return nil, err
	}

	revenue, err := s.finance.MonthlyRevenue(ctx, from, to)
	if err != nil {
		return nil, err
	}
	counts, err := s.finance.MonthlyOrderCounts(ctx, from, to)
	if err != nil {
		return nil, err
	}
	received, err := s.finance.MonthlyReceived(ctx, from, to)
	if err != nil {
		return nil, err
	}
	receivable, err := s.finance.MonthlyReceivable(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return &MonthlySeriesResult{
		Revenue:    revenue,
		Orders:     counts,
		Received:   received,
		Receivable: receivable,
	}, nil
}

func (s *appService) GetTopProducts(ctx context.Context, period PeriodRequest, limit int) (*TopProductsResult, error) {
	from, to, err := parsePeriod(period)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	byQty, err := s.finance.TopProductsByQty(ctx, from, to, limit)
	if err != nil {
		return nil, err
	}
	byRevenue, warnings, err := s.finance.TopProductsByRevenue(ctx, from, to, limit)
	if err != nil {
		return nil, err
	}
	return &TopProductsResult{ByQty: byQty, ByRevenue: byRevenue, Warnings: warnings}, nil
}

func (s *appService) GetOrderRows(ctx context.Context, period PeriodRequest) (*OrderRowsResult, error) {
	from, to, err := parsePeriod(period)
	if err != nil {
		return nil, err
	}
	rows, err := s.finance.OrderRows(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return &OrderRowsResult{Rows: rows}, nil
}
