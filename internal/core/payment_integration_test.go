package core_test

import (
	"context"
	"errors"
	"testing"

	"rental-manager/internal/core"

	"github.com/shopspring/decimal"
)

// Records 30 + 40 + 30 against a 100.00 order, then deletes the middle
// payment: status must track unpaid → partial → partial → paid → partial,
// always re-derived from the full payment set.
func TestPaymentService_InstallmentsAndDelete(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	orders := newOrderService(pool)
	payments := core.NewPaymentService(pool)

	draft := rentalDraft(4, "2025-05-10", "2025-05-11") // 4 × 25.00 = 100.00
	order, err := orders.Create(ctx, draft, true)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if order.PaymentStatus != core.PaymentUnpaid {
		t.Fatalf("new order must be unpaid, got %s", order.PaymentStatus)
	}

	check := func(wantPaid string, wantStatus core.PaymentStatus) {
		t.Helper()
		o, err := orders.Get(ctx, order.ID)
		if err != nil {
			t.Fatal(err)
		}
		if !o.PaidValue.Equal(decimal.RequireFromString(wantPaid)) {
			t.Errorf("expected paid_value %s, got %s", wantPaid, o.PaidValue)
		}
		if o.PaymentStatus != wantStatus {
			t.Errorf("expected %s, got %s", wantStatus, o.PaymentStatus)
		}
	}

	if _, err := payments.Add(ctx, order.ID, decimal.RequireFromString("30"), "pix", ptr(mustParse("2025-05-01")), ""); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	check("30", core.PaymentPartial)

	second, err := payments.Add(ctx, order.ID, decimal.RequireFromString("40"), "cash", ptr(mustParse("2025-05-05")), "")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	check("70", core.PaymentPartial)

	if _, err := payments.Add(ctx, order.ID, decimal.RequireFromString("30"), "pix", nil, "final installment"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	check("100", core.PaymentPaid)

	if err := payments.Delete(ctx, second.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	check("60", core.PaymentPartial)
}

func TestPaymentService_UpdateRecomputes(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	orders := newOrderService(pool)
	payments := core.NewPaymentService(pool)

	order, err := orders.Create(ctx, rentalDraft(4, "2025-05-10", "2025-05-11"), true)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	p, err := payments.Add(ctx, order.ID, decimal.RequireFromString("50"), "pix", nil, "")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if _, err := payments.Update(ctx, p.ID, decimal.RequireFromString("100"), "pix", ptr(mustParse("2025-05-02")), ""); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	o, err := orders.Get(ctx, order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if o.PaymentStatus != core.PaymentPaid {
		t.Errorf("expected paid after update, got %s", o.PaymentStatus)
	}
}

func TestPaymentService_Validation(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()

	orders := newOrderService(pool)
	payments := core.NewPaymentService(pool)

	order, err := orders.Create(ctx, rentalDraft(1, "2025-05-10", "2025-05-11"), false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	var constraint *core.ConstraintViolation
	if _, err := payments.Add(ctx, order.ID, decimal.Zero, "pix", nil, ""); !errors.As(err, &constraint) {
		t.Errorf("zero amount must be rejected, got %v", err)
	}

	var notFound *core.NotFoundError
	if _, err := payments.Add(ctx, 99999, decimal.RequireFromString("10"), "pix", nil, ""); !errors.As(err, &notFound) {
		t.Errorf("payment on missing order must be NotFoundError, got %v", err)
	}
	if err := payments.Delete(ctx, 99999); !errors.As(err, &notFound) {
		t.Errorf("deleting missing payment must be NotFoundError, got %v", err)
	}
}
