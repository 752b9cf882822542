package core_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"rental-manager/internal/core"
	"rental-manager/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// setupTestDB connects to the dedicated test database, applies migrations,
// and reseeds the fixture catalog. Set TEST_DATABASE_URL to run integration
// tests; they are skipped otherwise to protect live databases.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := db.Migrate(ctx, pool, zerolog.Nop()); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE payments, order_items, orders, expenses, products, customers RESTART IDENTITY CASCADE;

		INSERT INTO customers (id, name, phone) VALUES
		(1, 'Alice Moura',  '+55-11-90000-0001'),
		(2, 'Bruno Castro', '+55-11-90000-0002');

		INSERT INTO products (id, name, kind, total_qty, unit_price) VALUES
		(1, 'Folding Chair', 'rental',  10, 25.00),
		(2, 'Paper Cup Set', 'sale',    20, 2.50),
		(3, 'Delivery Crew', 'service',  0, 150.00),
		(4, 'Party Tent',    'rental',   5, NULL);

		SELECT setval(pg_get_serial_sequence('customers', 'id'), 100);
		SELECT setval(pg_get_serial_sequence('products', 'id'), 100);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

func newOrderService(pool *pgxpool.Pool) core.OrderService {
	return core.NewOrderService(pool, core.NewAvailabilityService(pool))
}

func ptr[T any](v T) *T { return &v }

func rentalDraft(qty int, start, end string) core.OrderDraft {
	return core.OrderDraft{
		CustomerID: 1,
		EventDate:  mustParse(start),
		StartDate:  ptr(mustParse(start)),
		EndDate:    ptr(mustParse(end)),
		Lines:      []core.OrderLineInput{{ProductID: 1, Qty: qty}},
	}
}

func mustParse(s string) time.Time {
	d, err := core.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestOrderService_RentalConflict(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newOrderService(pool)
	ctx := context.Background()

	// A holds 6 of 10 chairs over [05-10, 05-12).
	orderA, err := svc.Create(ctx, rentalDraft(6, "2025-05-10", "2025-05-12"), true)
	if err != nil {
		t.Fatalf("Create order A failed: %v", err)
	}
	if orderA.Status != core.StatusConfirmed {
		t.Errorf("expected confirmed, got %s", orderA.Status)
	}
	if !orderA.TotalValue.Equal(decimal.RequireFromString("150")) {
		t.Errorf("expected total 150.00 (6 × 25.00), got %s", orderA.TotalValue)
	}

	// B wants 5 over [05-11, 05-13): on 05-11 only 4 remain.
	_, err = svc.Create(ctx, rentalDraft(5, "2025-05-11", "2025-05-13"), false)
	var validation *core.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	c := validation.Conflict
	if c.ProductName != "Folding Chair" || !c.Date.Equal(mustParse("2025-05-11")) ||
		c.Available != 4 || c.Requested != 5 {
		t.Errorf("unexpected conflict tuple: %+v", c)
	}

	// Nothing was persisted for the rejected order.
	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM orders").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("rejected order must not be persisted, found %d orders", count)
	}

	// Back-to-back is fine: A releases the chairs on 05-12 (end exclusive).
	if _, err := svc.Create(ctx, rentalDraft(5, "2025-05-12", "2025-05-14"), false); err != nil {
		t.Errorf("back-to-back booking should succeed: %v", err)
	}
}

func TestOrderService_ConcurrentCreatesDoNotOvercommit(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newOrderService(pool)
	ctx := context.Background()

	// Individually fine, jointly 11 of 10 chairs on 2025-05-11. The
	// product-row lock taken during validation must force exactly one of
	// the racing submissions to lose.
	drafts := []core.OrderDraft{
		rentalDraft(6, "2025-05-10", "2025-05-12"),
		rentalDraft(5, "2025-05-11", "2025-05-13"),
	}

	errs := make([]error, len(drafts))
	var wg sync.WaitGroup
	for i, draft := range drafts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Create(ctx, draft, true)
		}()
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err == nil {
			continue
		}
		var validation *core.ValidationError
		if !errors.As(err, &validation) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		failures++
	}
	if failures != 1 {
		t.Fatalf("expected exactly one losing submission, got %d (errors: %v)", failures, errs)
	}

	availability := core.NewAvailabilityService(pool)
	committed, err := availability.CommittedQuantity(ctx, 1, mustParse("2025-05-11"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if committed > 10 {
		t.Errorf("overcommitted: %d of 10 chairs on 2025-05-11", committed)
	}
}

func TestOrderService_ConfirmUsesSnapshotKind(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newOrderService(pool)
	ctx := context.Background()

	// rental → service after the draft: the stored rental line must still be
	// checked against per-day stock on confirm.
	draft, err := svc.Create(ctx, rentalDraft(6, "2025-05-10", "2025-05-12"), false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := pool.Exec(ctx, "UPDATE products SET kind = 'service', total_qty = 5 WHERE id = 1"); err != nil {
		t.Fatal(err)
	}
	var validation *core.ValidationError
	if _, err := svc.Confirm(ctx, draft.ID); !errors.As(err, &validation) {
		t.Fatalf("catalog kind change must not bypass the rental check, got %v", err)
	}

	// service → rental after the draft: the stored service line still passes
	// without a reservation span.
	crew, err := svc.Create(ctx, core.OrderDraft{
		CustomerID: 1,
		EventDate:  mustParse("2025-05-10"),
		Lines:      []core.OrderLineInput{{ProductID: 3, Qty: 1}},
	}, false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := pool.Exec(ctx, "UPDATE products SET kind = 'rental' WHERE id = 3"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Confirm(ctx, crew.ID); err != nil {
		t.Errorf("catalog kind change must not invalidate a stored service line: %v", err)
	}
}

func TestOrderService_DraftHoldsStock(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newOrderService(pool)
	ctx := context.Background()

	if _, err := svc.Create(ctx, rentalDraft(8, "2025-05-10", "2025-05-11"), false); err != nil {
		t.Fatalf("Create draft failed: %v", err)
	}

	_, err := svc.Create(ctx, rentalDraft(3, "2025-05-10", "2025-05-11"), false)
	var validation *core.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("draft orders must hold stock; got %v", err)
	}
}

func TestOrderService_CancelReleasesStock(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newOrderService(pool)
	ctx := context.Background()

	orderA, err := svc.Create(ctx, rentalDraft(6, "2025-05-10", "2025-05-12"), true)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Cancel(ctx, orderA.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	if _, err := svc.Create(ctx, rentalDraft(10, "2025-05-10", "2025-05-12"), false); err != nil {
		t.Errorf("canceled order must not hold stock: %v", err)
	}
}

func TestOrderService_UpdateExcludesOwnHolds(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newOrderService(pool)
	ctx := context.Background()

	orderA, err := svc.Create(ctx, rentalDraft(6, "2025-05-10", "2025-05-12"), true)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Growing to 10 works because A's own 6 are excluded from the check.
	updated, err := svc.Update(ctx, orderA.ID, rentalDraft(10, "2025-05-10", "2025-05-12"))
	if err != nil {
		t.Fatalf("Update to full stock failed: %v", err)
	}
	if updated.Items[0].Qty != 10 {
		t.Errorf("expected qty 10, got %d", updated.Items[0].Qty)
	}

	// Beyond total stock still fails.
	_, err = svc.Update(ctx, orderA.ID, rentalDraft(11, "2025-05-10", "2025-05-12"))
	var validation *core.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestOrderService_StateMachine(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newOrderService(pool)
	ctx := context.Background()

	order, err := svc.Create(ctx, rentalDraft(2, "2025-05-10", "2025-05-11"), false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Completing a draft is illegal.
	var transition *core.InvalidTransitionError
	if _, err := svc.Complete(ctx, order.ID); !errors.As(err, &transition) {
		t.Fatalf("completing a draft must fail with InvalidTransitionError, got %v", err)
	}

	if _, err := svc.Confirm(ctx, order.ID); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	// Confirming again is illegal.
	if _, err := svc.Confirm(ctx, order.ID); !errors.As(err, &transition) {
		t.Fatalf("double confirm must fail, got %v", err)
	}

	completed, err := svc.Complete(ctx, order.ID)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if completed.Status != core.StatusCompleted {
		t.Errorf("expected completed, got %s", completed.Status)
	}

	// Re-completing is a no-op, not an error.
	again, err := svc.Complete(ctx, order.ID)
	if err != nil {
		t.Errorf("re-complete must be a no-op: %v", err)
	}
	if again.Status != core.StatusCompleted {
		t.Errorf("expected completed after no-op, got %s", again.Status)
	}

	// Canceling or editing a completed order is illegal.
	if _, err := svc.Cancel(ctx, order.ID); !errors.As(err, &transition) {
		t.Fatalf("canceling a completed order must fail, got %v", err)
	}
	if _, err := svc.Update(ctx, order.ID, rentalDraft(1, "2025-05-10", "2025-05-11")); !errors.As(err, &transition) {
		t.Fatalf("editing a completed order must fail, got %v", err)
	}
}

func TestOrderService_SaleStockDebitedOnce(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newOrderService(pool)
	ctx := context.Background()

	draft := core.OrderDraft{
		CustomerID: 1,
		EventDate:  mustParse("2025-05-10"),
		Lines:      []core.OrderLineInput{{ProductID: 2, Qty: 5}},
	}
	order, err := svc.Create(ctx, draft, true)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Creating and confirming do not touch sale stock.
	stock := func() int {
		var q int
		if err := pool.QueryRow(ctx, "SELECT total_qty FROM products WHERE id = 2").Scan(&q); err != nil {
			t.Fatal(err)
		}
		return q
	}
	if stock() != 20 {
		t.Fatalf("confirm must not debit sale stock, got %d", stock())
	}

	completed, err := svc.Complete(ctx, order.ID)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if completed.StockDebitedAt == nil {
		t.Error("completed order with sale lines must record stock_debited_at")
	}
	if stock() != 15 {
		t.Errorf("expected stock 15 after completion, got %d", stock())
	}

	// The no-op re-complete must not debit again.
	if _, err := svc.Complete(ctx, order.ID); err != nil {
		t.Fatalf("re-complete failed: %v", err)
	}
	if stock() != 15 {
		t.Errorf("stock debited twice: got %d", stock())
	}
}

func TestOrderService_SaleInsufficientStock(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newOrderService(pool)
	ctx := context.Background()

	draft := core.OrderDraft{
		CustomerID: 1,
		EventDate:  mustParse("2025-05-10"),
		Lines:      []core.OrderLineInput{{ProductID: 2, Qty: 30}},
	}
	_, err := svc.Create(ctx, draft, false)
	var validation *core.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	c := validation.Conflict
	if !c.Date.IsZero() {
		t.Errorf("sale conflicts are undated, got %s", c.Date)
	}
	if c.Available != 20 || c.Requested != 30 {
		t.Errorf("unexpected conflict tuple: %+v", c)
	}
}

func TestOrderService_RentalLineRequiresSpan(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newOrderService(pool)
	ctx := context.Background()

	draft := core.OrderDraft{
		CustomerID: 1,
		EventDate:  mustParse("2025-05-10"),
		Lines:      []core.OrderLineInput{{ProductID: 1, Qty: 2}},
	}
	_, err := svc.Create(ctx, draft, false)
	var constraint *core.ConstraintViolation
	if !errors.As(err, &constraint) {
		t.Fatalf("expected ConstraintViolation, got %v", err)
	}
}

func TestOrderService_ServiceLinesNeverConflict(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newOrderService(pool)
	ctx := context.Background()

	draft := core.OrderDraft{
		CustomerID: 1,
		EventDate:  mustParse("2025-05-10"),
		Lines:      []core.OrderLineInput{{ProductID: 3, Qty: 3}},
	}
	order, err := svc.Create(ctx, draft, false)
	if err != nil {
		t.Fatalf("service-only order must always pass: %v", err)
	}
	if !order.TotalValue.Equal(decimal.RequireFromString("450")) {
		t.Errorf("expected total 450.00 (3 × 150.00), got %s", order.TotalValue)
	}
}

func TestOrderService_PriceSnapshot(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newOrderService(pool)
	ctx := context.Background()

	// Explicit line price overrides the catalog price.
	draft := rentalDraft(2, "2025-05-10", "2025-05-11")
	draft.Lines[0].UnitPrice = ptr(decimal.RequireFromString("30"))
	order, err := svc.Create(ctx, draft, false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !order.TotalValue.Equal(decimal.RequireFromString("60")) {
		t.Errorf("expected total 60.00, got %s", order.TotalValue)
	}

	// Catalog edits after the fact must not change the stored snapshot.
	if _, err := pool.Exec(ctx, "UPDATE products SET unit_price = 99 WHERE id = 1"); err != nil {
		t.Fatal(err)
	}
	reread, err := svc.Get(ctx, order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !reread.Items[0].UnitPrice.Equal(decimal.RequireFromString("30")) {
		t.Errorf("line price snapshot changed: %s", reread.Items[0].UnitPrice)
	}

	// A line on an unpriced product stays unpriced and contributes zero.
	tentDraft := core.OrderDraft{
		CustomerID: 1,
		EventDate:  mustParse("2025-06-01"),
		StartDate:  ptr(mustParse("2025-06-01")),
		EndDate:    ptr(mustParse("2025-06-02")),
		Lines:      []core.OrderLineInput{{ProductID: 4, Qty: 2}},
	}
	tentOrder, err := svc.Create(ctx, tentDraft, false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if tentOrder.Items[0].UnitPrice != nil || !tentOrder.TotalValue.IsZero() {
		t.Errorf("unpriced line must contribute zero: price=%v total=%s",
			tentOrder.Items[0].UnitPrice, tentOrder.TotalValue)
	}
}

func TestOrderService_ListFilters(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := newOrderService(pool)
	ctx := context.Background()

	if _, err := svc.Create(ctx, rentalDraft(2, "2025-05-10", "2025-05-11"), true); err != nil {
		t.Fatal(err)
	}
	juneDraft := rentalDraft(2, "2025-06-10", "2025-06-11")
	juneDraft.CustomerID = 2
	if _, err := svc.Create(ctx, juneDraft, false); err != nil {
		t.Fatal(err)
	}

	confirmed, err := svc.List(ctx, core.OrderFilter{Status: core.StatusConfirmed})
	if err != nil {
		t.Fatal(err)
	}
	if len(confirmed) != 1 {
		t.Errorf("expected 1 confirmed order, got %d", len(confirmed))
	}

	may, err := svc.List(ctx, core.OrderFilter{
		EventFrom: ptr(mustParse("2025-05-01")),
		EventTo:   ptr(mustParse("2025-05-31")),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(may) != 1 {
		t.Errorf("expected 1 order in May, got %d", len(may))
	}

	byName, err := svc.List(ctx, core.OrderFilter{Search: "bruno"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byName) != 1 || byName[0].CustomerName != "Bruno Castro" {
		t.Errorf("expected Bruno's order, got %d results", len(byName))
	}
}
