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

// PaymentService records payments against orders. Every mutation re-derives
// the order's paid_value and payment_status from the full payment set inside
// the same transaction, so the denormalized fields can never drift.
type PaymentService interface {
	Add(ctx context.Context, orderID int64, amount decimal.Decimal, method string, paidAt *time.Time, note string) (*Payment, error)
	Update(ctx context.Context, paymentID int64, amount decimal.Decimal, method string, paidAt *time.Time, note string) (*Payment, error)
	Delete(ctx context.Context, paymentID int64) error
	ListByOrder(ctx context.Context, orderID int64) ([]Payment, error)
	PaidTotal(ctx context.Context, orderID int64) (decimal.Decimal, error)
}

type paymentService struct {
	pool *pgxpool.Pool
}

func NewPaymentService(pool *pgxpool.Pool) PaymentService {
	return &paymentService{pool: pool}
}

func (s *paymentService) Add(ctx context.Context, orderID int64, amount decimal.Decimal, method string, paidAt *time.Time, note string) (*Payment, error) {
	if !amount.IsPositive() {
		return nil, &ConstraintViolation{Field: "amount", Rule: "must be positive"}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	total, err := lockOrderTotal(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	var p Payment
	err = tx.QueryRow(ctx, `
		INSERT INTO payments (order_id, amount, method, paid_at, note)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, order_id, amount, method, paid_at, note, created_at, updated_at
	`, orderID, amount, method, nullableDate(paidAt), note,
	).Scan(&p.ID, &p.OrderID, &p.Amount, &p.Method, &p.PaidAt, &p.Note, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert payment: %w", err)
	}

	if err := syncPaymentStatus(ctx, tx, orderID, total); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment: %w", err)
	}
	return &p, nil
}

func (s *paymentService) Update(ctx context.Context, paymentID int64, amount decimal.Decimal, method string, paidAt *time.Time, note string) (*Payment, error) {
	if !amount.IsPositive() {
		return nil, &ConstraintViolation{Field: "amount", Rule: "must be positive"}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var orderID int64
	err = tx.QueryRow(ctx, "SELECT order_id FROM payments WHERE id = $1", paymentID).Scan(&orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "payment", Ref: paymentID}
		}
		return nil, fmt.Errorf("failed to fetch payment %d: %w", paymentID, err)
	}

	total, err := lockOrderTotal(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	var p Payment
	err = tx.QueryRow(ctx, `
		UPDATE payments
		SET amount = $1, method = $2, paid_at = $3, note = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING id, order_id, amount, method, paid_at, note, created_at, updated_at
	`, amount, method, nullableDate(paidAt), note, paymentID,
	).Scan(&p.ID, &p.OrderID, &p.Amount, &p.Method, &p.PaidAt, &p.Note, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update payment %d: %w", paymentID, err)
	}

	if err := syncPaymentStatus(ctx, tx, orderID, total); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment update: %w", err)
	}
	return &p, nil
}

func (s *paymentService) Delete(ctx context.Context, paymentID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var orderID int64
	err = tx.QueryRow(ctx, "SELECT order_id FROM payments WHERE id = $1", paymentID).Scan(&orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &NotFoundError{Entity: "payment", Ref: paymentID}
		}
		return fmt.Errorf("failed to fetch payment %d: %w", paymentID, err)
	}

	total, err := lockOrderTotal(ctx, tx, orderID)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, "DELETE FROM payments WHERE id = $1", paymentID); err != nil {
		return fmt.Errorf("failed to delete payment %d: %w", paymentID, err)
	}

	if err := syncPaymentStatus(ctx, tx, orderID, total); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit payment deletion: %w", err)
	}
	return nil
}

func (s *paymentService) ListByOrder(ctx context.Context, orderID int64) ([]Payment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, amount, method, paid_at, note, created_at, updated_at
		FROM payments
		WHERE order_id = $1
		ORDER BY created_at, id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments for order %d: %w", orderID, err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Method, &p.PaidAt, &p.Note, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (s *paymentService) PaidTotal(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	var paid decimal.Decimal
	err := s.pool.QueryRow(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM payments WHERE order_id = $1", orderID,
	).Scan(&paid)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum payments for order %d: %w", orderID, err)
	}
	return paid, nil
}

// lockOrderTotal locks the order row and returns its total_value, so the
// subsequent payment write and status sync happen against a stable order.
func lockOrderTotal(ctx context.Context, tx pgx.Tx, orderID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := tx.QueryRow(ctx,
		"SELECT total_value FROM orders WHERE id = $1 FOR UPDATE", orderID,
	).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, &NotFoundError{Entity: "order", Ref: orderID}
		}
		return decimal.Zero, fmt.Errorf("failed to lock order %d: %w", orderID, err)
	}
	return total, nil
}

// syncPaymentStatus recomputes paid_value from the payments table and derives
// the payment status against the given order total.
func syncPaymentStatus(ctx context.Context, tx pgx.Tx, orderID int64, total decimal.Decimal) error {
	var paid decimal.Decimal
	err := tx.QueryRow(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM payments WHERE order_id = $1", orderID,
	).Scan(&paid)
	if err != nil {
		return fmt.Errorf("failed to sum payments for order %d: %w", orderID, err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE orders SET paid_value = $1, payment_status = $2, updated_at = NOW() WHERE id = $3
	`, paid, string(DerivePaymentStatus(paid, total)), orderID)
	if err != nil {
		return fmt.Errorf("failed to sync payment status for order %d: %w", orderID, err)
	}
	return nil
}
