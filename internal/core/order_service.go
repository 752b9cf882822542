package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// OrderService governs the order lifecycle. Every mutating operation runs the
// availability validation and the persisting write inside one transaction
// with the order row locked, so two concurrent submissions can never both
// pass validation against the same stale stock snapshot.
type OrderService interface {
	// Create validates the candidate order and persists it with its lines
	// atomically. asConfirmed skips the draft stage. On a conflict it
	// returns a *ValidationError and persists nothing.
	Create(ctx context.Context, draft OrderDraft, asConfirmed bool) (*Order, error)

	// Update re-validates newData excluding the order's own current holds,
	// then atomically replaces the order's dates, lines, and total. The
	// stored order is unchanged on failure.
	Update(ctx context.Context, orderID int64, newData OrderDraft) (*Order, error)

	// Confirm transitions draft → confirmed, re-running validation first
	// (stock may have moved since the draft was saved).
	Confirm(ctx context.Context, orderID int64) (*Order, error)

	// Cancel transitions draft|confirmed → canceled unconditionally; it only
	// releases capacity, so no validation is needed.
	Cancel(ctx context.Context, orderID int64) (*Order, error)

	// Complete transitions confirmed → completed and debits catalog stock
	// for every sale-kind line exactly once. Completing an already-completed
	// order is a no-op.
	Complete(ctx context.Context, orderID int64) (*Order, error)

	Get(ctx context.Context, orderID int64) (*Order, error)
	List(ctx context.Context, filter OrderFilter) ([]Order, error)
}

type orderService struct {
	pool         *pgxpool.Pool
	availability AvailabilityService
}

func NewOrderService(pool *pgxpool.Pool, availability AvailabilityService) OrderService {
	return &orderService{pool: pool, availability: availability}
}

// checkDraftConstraints enforces the basic invariants that must hold before
// availability validation runs. Kind-dependent rules (rental lines need a
// span) live in validateOrder, which knows the product kinds.
func checkDraftConstraints(draft OrderDraft) error {
	if draft.CustomerID == 0 {
		return &ConstraintViolation{Field: "customer_id", Rule: "required"}
	}
	if draft.EventDate.IsZero() {
		return &ConstraintViolation{Field: "event_date", Rule: "required"}
	}
	if len(draft.Lines) == 0 {
		return &ConstraintViolation{Field: "lines", Rule: "order must have at least one line"}
	}
	for i, line := range draft.Lines {
		if line.Qty <= 0 {
			return &ConstraintViolation{Field: fmt.Sprintf("lines[%d].qty", i), Rule: "must be positive"}
		}
		if line.UnitPrice != nil && line.UnitPrice.IsNegative() {
			return &ConstraintViolation{Field: fmt.Sprintf("lines[%d].unit_price", i), Rule: "must not be negative"}
		}
	}
	if (draft.StartDate == nil) != (draft.EndDate == nil) {
		return &ConstraintViolation{Field: "end_date", Rule: "start and end dates must be set together"}
	}
	if draft.StartDate != nil && !DateOf(*draft.EndDate).After(DateOf(*draft.StartDate)) {
		return &ConstraintViolation{Field: "end_date", Rule: "must be after start_date"}
	}
	if draft.DeliveryRequired && draft.Address == "" {
		return &ConstraintViolation{Field: "address", Rule: "required when delivery is set"}
	}
	return nil
}

// resolvedLine is an input line with its catalog snapshot applied.
type resolvedLine struct {
	productID int64
	kind      ProductKind
	qty       int
	unitPrice *decimal.Decimal
	lineTotal *decimal.Decimal
}

// resolveLines snapshots kind and unit price for each input line and computes
// line totals plus the order total. A line whose product has no catalog price
// and no explicit price contributes zero to the total and keeps nil price
// fields.
func resolveLines(ctx context.Context, q querier, lines []OrderLineInput) ([]resolvedLine, decimal.Decimal, error) {
	resolved := make([]resolvedLine, 0, len(lines))
	total := decimal.Zero
	for _, input := range lines {
		var kind string
		var catalogPrice *decimal.Decimal
		err := q.QueryRow(ctx,
			"SELECT kind, unit_price FROM products WHERE id = $1", input.ProductID,
		).Scan(&kind, &catalogPrice)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, decimal.Zero, &NotFoundError{Entity: "product", Ref: input.ProductID}
			}
			return nil, decimal.Zero, fmt.Errorf("failed to resolve product %d: %w", input.ProductID, err)
		}

		price := input.UnitPrice
		if price == nil {
			price = catalogPrice
		}
		rl := resolvedLine{
			productID: input.ProductID,
			kind:      ParseProductKind(kind),
			qty:       input.Qty,
			unitPrice: price,
		}
		if price != nil {
			lt := price.Mul(decimal.NewFromInt(int64(input.Qty)))
			rl.lineTotal = &lt
			total = total.Add(lt)
		}
		resolved = append(resolved, rl)
	}
	return resolved, total, nil
}

func insertLines(ctx context.Context, tx pgx.Tx, orderID int64, lines []resolvedLine) error {
	for _, rl := range lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, kind, qty, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, orderID, rl.productID, string(rl.kind), rl.qty, rl.unitPrice, rl.lineTotal)
		if err != nil {
			return fmt.Errorf("failed to insert order line for product %d: %w", rl.productID, err)
		}
	}
	return nil
}

func (s *orderService) Create(ctx context.Context, draft OrderDraft, asConfirmed bool) (*Order, error) {
	if err := checkDraftConstraints(draft); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var customerID int64
	err = tx.QueryRow(ctx, "SELECT id FROM customers WHERE id = $1", draft.CustomerID).Scan(&customerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "customer", Ref: draft.CustomerID}
		}
		return nil, fmt.Errorf("failed to resolve customer %d: %w", draft.CustomerID, err)
	}

	if err := s.availability.ValidateOrderTx(ctx, tx, draft, nil); err != nil {
		return nil, err
	}

	resolved, total, err := resolveLines(ctx, tx, draft.Lines)
	if err != nil {
		return nil, err
	}

	status := StatusDraft
	if asConfirmed {
		status = StatusConfirmed
	}

	var orderID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (customer_id, event_date, start_date, end_date, address,
		                    contact_phone, delivery_required, status, total_value,
		                    paid_value, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, 'unpaid')
		RETURNING id
	`, draft.CustomerID, DateOf(draft.EventDate), nullableDate(draft.StartDate), nullableDate(draft.EndDate),
		draft.Address, draft.ContactPhone, draft.DeliveryRequired, string(status), total,
	).Scan(&orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	if err := insertLines(ctx, tx, orderID, resolved); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order creation: %w", err)
	}
	return s.Get(ctx, orderID)
}

func (s *orderService) Update(ctx context.Context, orderID int64, newData OrderDraft) (*Order, error) {
	if err := checkDraftConstraints(newData); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status OrderStatus
	var paidValue decimal.Decimal
	err = tx.QueryRow(ctx,
		"SELECT status, paid_value FROM orders WHERE id = $1 FOR UPDATE", orderID,
	).Scan(&status, &paidValue)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "order", Ref: orderID}
		}
		return nil, fmt.Errorf("failed to fetch order %d: %w", orderID, err)
	}
	if status == StatusCanceled || status == StatusCompleted {
		return nil, &InvalidTransitionError{From: status, Attempted: status}
	}

	var customerID int64
	err = tx.QueryRow(ctx, "SELECT id FROM customers WHERE id = $1", newData.CustomerID).Scan(&customerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "customer", Ref: newData.CustomerID}
		}
		return nil, fmt.Errorf("failed to resolve customer %d: %w", newData.CustomerID, err)
	}

	// Self-exclusion: the order's own stored holds never count against it.
	if err := s.availability.ValidateOrderTx(ctx, tx, newData, &orderID); err != nil {
		return nil, err
	}

	resolved, total, err := resolveLines(ctx, tx, newData.Lines)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE orders
		SET customer_id = $1, event_date = $2, start_date = $3, end_date = $4,
		    address = $5, contact_phone = $6, delivery_required = $7,
		    total_value = $8, payment_status = $9, updated_at = NOW()
		WHERE id = $10
	`, newData.CustomerID, DateOf(newData.EventDate), nullableDate(newData.StartDate), nullableDate(newData.EndDate),
		newData.Address, newData.ContactPhone, newData.DeliveryRequired,
		total, string(DerivePaymentStatus(paidValue, total)), orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to update order %d: %w", orderID, err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM order_items WHERE order_id = $1", orderID); err != nil {
		return nil, fmt.Errorf("failed to replace order lines: %w", err)
	}
	if err := insertLines(ctx, tx, orderID, resolved); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order update: %w", err)
	}
	return s.Get(ctx, orderID)
}

func (s *orderService) Confirm(ctx context.Context, orderID int64) (*Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != StatusDraft {
		return nil, &InvalidTransitionError{From: order.Status, Attempted: StatusConfirmed}
	}

	// Inventory may have moved since the draft was saved: re-validate the
	// stored lines, excluding the order's own holds.
	draft := draftFromOrder(order)
	if err := s.availability.ValidateOrderTx(ctx, tx, draft, &orderID); err != nil {
		return nil, err
	}

	if err := setStatus(ctx, tx, orderID, StatusConfirmed); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order confirmation: %w", err)
	}
	return s.Get(ctx, orderID)
}

func (s *orderService) Cancel(ctx context.Context, orderID int64) (*Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != StatusDraft && order.Status != StatusConfirmed {
		return nil, &InvalidTransitionError{From: order.Status, Attempted: StatusCanceled}
	}

	if err := setStatus(ctx, tx, orderID, StatusCanceled); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order cancellation: %w", err)
	}
	return s.Get(ctx, orderID)
}

func (s *orderService) Complete(ctx context.Context, orderID int64) (*Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case StatusCompleted:
		// Re-completing is a no-op: the sale-stock debit must never run twice.
		return s.Get(ctx, orderID)
	case StatusConfirmed:
	default:
		return nil, &InvalidTransitionError{From: order.Status, Attempted: StatusCompleted}
	}

	if order.StockDebitedAt == nil {
		if err := debitSaleLines(ctx, tx, order); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx,
			"UPDATE orders SET stock_debited_at = NOW() WHERE id = $1", orderID,
		); err != nil {
			return nil, fmt.Errorf("failed to mark stock debit for order %d: %w", orderID, err)
		}
	}

	if err := setStatus(ctx, tx, orderID, StatusCompleted); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order completion: %w", err)
	}
	return s.Get(ctx, orderID)
}

// debitSaleLines permanently decrements catalog stock for each sale-kind line,
// locking the product row and re-checking the balance first.
func debitSaleLines(ctx context.Context, tx pgx.Tx, order *Order) error {
	for _, item := range order.Items {
		if item.Kind != KindSale {
			continue
		}
		var totalQty int
		var name string
		err := tx.QueryRow(ctx,
			"SELECT total_qty, name FROM products WHERE id = $1 FOR UPDATE", item.ProductID,
		).Scan(&totalQty, &name)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return &NotFoundError{Entity: "product", Ref: item.ProductID}
			}
			return fmt.Errorf("failed to lock product %d for stock debit: %w", item.ProductID, err)
		}
		if item.Qty > totalQty {
			return &ValidationError{Conflict: Conflict{
				ProductID:   item.ProductID,
				ProductName: name,
				Available:   max(totalQty, 0),
				Requested:   item.Qty,
			}}
		}
		if _, err := tx.Exec(ctx,
			"UPDATE products SET total_qty = total_qty - $1, updated_at = NOW() WHERE id = $2",
			item.Qty, item.ProductID,
		); err != nil {
			return fmt.Errorf("failed to debit stock for product %d: %w", item.ProductID, err)
		}
	}
	return nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

const orderColumns = `
	o.id, o.customer_id, c.name, o.event_date, o.start_date, o.end_date,
	o.address, o.contact_phone, o.delivery_required, o.status,
	o.total_value, o.paid_value, o.payment_status, o.stock_debited_at,
	o.created_at, o.updated_at`

func scanOrder(row pgx.Row, o *Order) error {
	var status, paymentStatus string
	if err := row.Scan(
		&o.ID, &o.CustomerID, &o.CustomerName, &o.EventDate, &o.StartDate, &o.EndDate,
		&o.Address, &o.ContactPhone, &o.DeliveryRequired, &status,
		&o.TotalValue, &o.PaidValue, &paymentStatus, &o.StockDebitedAt,
		&o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return err
	}
	o.Status = OrderStatus(status)
	o.PaymentStatus = PaymentStatus(paymentStatus)
	return nil
}

func (s *orderService) Get(ctx context.Context, orderID int64) (*Order, error) {
	return getOrder(ctx, s.pool, orderID)
}

func getOrder(ctx context.Context, q querier, orderID int64) (*Order, error) {
	var o Order
	err := scanOrder(q.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		JOIN customers c ON c.id = o.customer_id
		WHERE o.id = $1
	`, orderID), &o)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "order", Ref: orderID}
		}
		return nil, fmt.Errorf("failed to fetch order %d: %w", orderID, err)
	}

	items, err := fetchOrderItems(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func fetchOrderItems(ctx context.Context, q querier, orderID int64) ([]OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, p.name, oi.kind, oi.qty,
		       oi.unit_price, oi.line_total
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order lines: %w", err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		var kind string
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName,
			&kind, &it.Qty, &it.UnitPrice, &it.LineTotal); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		it.Kind = ParseProductKind(kind)
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *orderService) List(ctx context.Context, filter OrderFilter) ([]Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		JOIN customers c ON c.id = o.customer_id
		WHERE 1=1`
	var args []any

	if filter.EventFrom != nil {
		args = append(args, DateOf(*filter.EventFrom))
		query += fmt.Sprintf(" AND o.event_date >= $%d", len(args))
	}
	if filter.EventTo != nil {
		args = append(args, DateOf(*filter.EventTo))
		query += fmt.Sprintf(" AND o.event_date <= $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND o.status = $%d", len(args))
	}
	if filter.PaymentStatus != "" {
		args = append(args, string(filter.PaymentStatus))
		query += fmt.Sprintf(" AND o.payment_status = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(" AND (o.address ILIKE $%d OR c.name ILIKE $%d)", len(args), len(args))
	}
	query += " ORDER BY o.event_date, o.start_date, o.id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ── Transition helpers ───────────────────────────────────────────────────────

// lockOrder fetches the order with its lines under a row lock.
func lockOrder(ctx context.Context, tx pgx.Tx, orderID int64) (*Order, error) {
	var o Order
	err := scanOrder(tx.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		JOIN customers c ON c.id = o.customer_id
		WHERE o.id = $1
		FOR UPDATE OF o
	`, orderID), &o)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "order", Ref: orderID}
		}
		return nil, fmt.Errorf("failed to lock order %d: %w", orderID, err)
	}
	items, err := fetchOrderItems(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func setStatus(ctx context.Context, tx pgx.Tx, orderID int64, status OrderStatus) error {
	if _, err := tx.Exec(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		string(status), orderID,
	); err != nil {
		return fmt.Errorf("failed to set order %d status to %s: %w", orderID, status, err)
	}
	return nil
}

// draftFromOrder rebuilds the validation input from an order's stored lines,
// pinning each line to its snapshotted price and kind.
func draftFromOrder(o *Order) OrderDraft {
	draft := OrderDraft{
		CustomerID:       o.CustomerID,
		EventDate:        o.EventDate,
		StartDate:        o.StartDate,
		EndDate:          o.EndDate,
		Address:          o.Address,
		ContactPhone:     o.ContactPhone,
		DeliveryRequired: o.DeliveryRequired,
	}
	for _, item := range o.Items {
		draft.Lines = append(draft.Lines, OrderLineInput{
			ProductID: item.ProductID,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice,
			Kind:      item.Kind,
		})
	}
	return draft
}

func nullableDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := DateOf(*t)
	return &d
}
