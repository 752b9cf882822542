package core_test

import (
	"context"
	"errors"
	"testing"

	"rental-manager/internal/core"

	"github.com/shopspring/decimal"
)

func TestCatalogService_Products(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	catalog := core.NewCatalogService(pool)

	created, err := catalog.CreateProduct(ctx, core.ProductInput{
		Name:      "Round Table",
		Kind:      core.KindRental,
		Category:  "furniture",
		TotalQty:  8,
		UnitPrice: ptr(decimal.RequireFromString("40")),
	})
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	if !created.Active {
		t.Error("new products must be active")
	}

	// Duplicate name is a constraint violation, not a raw SQL error.
	var constraint *core.ConstraintViolation
	_, err = catalog.CreateProduct(ctx, core.ProductInput{Name: "Round Table", Kind: core.KindRental})
	if !errors.As(err, &constraint) {
		t.Fatalf("expected ConstraintViolation for duplicate name, got %v", err)
	}

	_, err = catalog.CreateProduct(ctx, core.ProductInput{Name: "Bad Kind", Kind: "subscription"})
	if !errors.As(err, &constraint) {
		t.Fatalf("expected ConstraintViolation for unknown kind, got %v", err)
	}

	// Deactivation hides the product from the active listing only.
	if err := catalog.DeactivateProduct(ctx, created.ID); err != nil {
		t.Fatalf("DeactivateProduct failed: %v", err)
	}
	active, err := catalog.ListProducts(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range active {
		if p.ID == created.ID {
			t.Error("deactivated product must not appear in active listing")
		}
	}
	all, err := catalog.ListProducts(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, p := range all {
		if p.ID == created.ID {
			found = true
		}
	}
	if !found {
		t.Error("deactivated product must remain in the full listing")
	}
}

func TestCatalogService_DeactivatedProductKeepsOrderHistory(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	catalog := core.NewCatalogService(pool)
	orders := newOrderService(pool)

	order, err := orders.Create(ctx, rentalDraft(2, "2025-05-10", "2025-05-11"), true)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := catalog.DeactivateProduct(ctx, 1); err != nil {
		t.Fatalf("DeactivateProduct failed: %v", err)
	}

	reread, err := orders.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("Get after deactivation failed: %v", err)
	}
	if len(reread.Items) != 1 || reread.Items[0].ProductName != "Folding Chair" {
		t.Errorf("historical order lost its product line: %+v", reread.Items)
	}
}

func TestCatalogService_CustomerDeleteBlockedByOrders(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	catalog := core.NewCatalogService(pool)
	orders := newOrderService(pool)

	if _, err := orders.Create(ctx, rentalDraft(1, "2025-05-10", "2025-05-11"), false); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	var constraint *core.ConstraintViolation
	if err := catalog.DeleteCustomer(ctx, 1); !errors.As(err, &constraint) {
		t.Fatalf("deleting a customer with orders must fail, got %v", err)
	}

	// A customer with no orders deletes cleanly.
	fresh, err := catalog.CreateCustomer(ctx, core.CustomerInput{Name: "Temp Customer"})
	if err != nil {
		t.Fatalf("CreateCustomer failed: %v", err)
	}
	if err := catalog.DeleteCustomer(ctx, fresh.ID); err != nil {
		t.Errorf("DeleteCustomer failed: %v", err)
	}
}

func TestCatalogService_CustomerSearch(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	catalog := core.NewCatalogService(pool)

	byName, err := catalog.ListCustomers(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(byName) != 1 || byName[0].Name != "Alice Moura" {
		t.Errorf("expected Alice, got %+v", byName)
	}

	byPhone, err := catalog.ListCustomers(ctx, "90000-0002")
	if err != nil {
		t.Fatal(err)
	}
	if len(byPhone) != 1 || byPhone[0].Name != "Bruno Castro" {
		t.Errorf("expected Bruno by phone, got %+v", byPhone)
	}
}

func TestExpenseService_Lifecycle(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	expenses := core.NewExpenseService(pool)

	created, err := expenses.Create(ctx, core.ExpenseInput{
		Date:        mustParse("2025-06-05"),
		Category:    "transport",
		Description: "truck rental",
		Amount:      decimal.RequireFromString("80"),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := expenses.Create(ctx, core.ExpenseInput{
		Date:        mustParse("2025-06-20"),
		Category:    "staff",
		Description: "setup crew",
		Amount:      decimal.RequireFromString("120"),
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	var constraint *core.ConstraintViolation
	if _, err := expenses.Create(ctx, core.ExpenseInput{
		Date: mustParse("2025-06-01"), Description: "free", Amount: decimal.Zero,
	}); !errors.As(err, &constraint) {
		t.Errorf("zero amount must be rejected, got %v", err)
	}

	total, err := expenses.TotalByPeriod(ctx, mustParse("2025-06-01"), mustParse("2025-06-30"))
	if err != nil {
		t.Fatal(err)
	}
	if !total.Equal(decimal.RequireFromString("200")) {
		t.Errorf("expected total 200, got %s", total)
	}

	categories, err := expenses.Categories(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(categories) != 2 || categories[0] != "staff" || categories[1] != "transport" {
		t.Errorf("expected sorted categories [staff transport], got %v", categories)
	}

	if err := expenses.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	remaining, err := expenses.ListByPeriod(ctx, mustParse("2025-06-01"), mustParse("2025-06-30"))
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 {
		t.Errorf("expected 1 expense left, got %d", len(remaining))
	}
}
