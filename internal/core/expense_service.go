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

// ExpenseService tracks operating expenses outside of any order.
type ExpenseService interface {
	Create(ctx context.Context, input ExpenseInput) (*Expense, error)
	Update(ctx context.Context, expenseID int64, input ExpenseInput) (*Expense, error)
	Delete(ctx context.Context, expenseID int64) error
	ListByPeriod(ctx context.Context, from, to time.Time) ([]Expense, error)
	Categories(ctx context.Context) ([]string, error)
	TotalByPeriod(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
}

type expenseService struct {
	pool *pgxpool.Pool
}

func NewExpenseService(pool *pgxpool.Pool) ExpenseService {
	return &expenseService{pool: pool}
}

const expenseColumns = "id, expense_date, category, description, amount, payment_method, supplier, notes, created_at, updated_at"

func scanExpense(row pgx.Row, e *Expense) error {
	return row.Scan(&e.ID, &e.Date, &e.Category, &e.Description, &e.Amount,
		&e.PaymentMethod, &e.Supplier, &e.Notes, &e.CreatedAt, &e.UpdatedAt)
}

func checkExpenseInput(input ExpenseInput) error {
	if input.Date.IsZero() {
		return &ConstraintViolation{Field: "expense_date", Rule: "required"}
	}
	if input.Description == "" {
		return &ConstraintViolation{Field: "description", Rule: "required"}
	}
	if !input.Amount.IsPositive() {
		return &ConstraintViolation{Field: "amount", Rule: "must be positive"}
	}
	return nil
}

func (s *expenseService) Create(ctx context.Context, input ExpenseInput) (*Expense, error) {
	if err := checkExpenseInput(input); err != nil {
		return nil, err
	}

	var e Expense
	err := scanExpense(s.pool.QueryRow(ctx, `
		INSERT INTO expenses (expense_date, category, description, amount, payment_method, supplier, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+expenseColumns,
		DateOf(input.Date), input.Category, input.Description, input.Amount,
		input.PaymentMethod, input.Supplier, input.Notes,
	), &e)
	if err != nil {
		return nil, fmt.Errorf("failed to create expense: %w", err)
	}
	return &e, nil
}

func (s *expenseService) Update(ctx context.Context, expenseID int64, input ExpenseInput) (*Expense, error) {
	if err := checkExpenseInput(input); err != nil {
		return nil, err
	}

	var e Expense
	err := scanExpense(s.pool.QueryRow(ctx, `
		UPDATE expenses
		SET expense_date = $1, category = $2, description = $3, amount = $4,
		    payment_method = $5, supplier = $6, notes = $7, updated_at = NOW()
		WHERE id = $8
		RETURNING `+expenseColumns,
		DateOf(input.Date), input.Category, input.Description, input.Amount,
		input.PaymentMethod, input.Supplier, input.Notes, expenseID,
	), &e)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "expense", Ref: expenseID}
		}
		return nil, fmt.Errorf("failed to update expense %d: %w", expenseID, err)
	}
	return &e, nil
}

func (s *expenseService) Delete(ctx context.Context, expenseID int64) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM expenses WHERE id = $1", expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete expense %d: %w", expenseID, err)
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Entity: "expense", Ref: expenseID}
	}
	return nil
}

func (s *expenseService) ListByPeriod(ctx context.Context, from, to time.Time) ([]Expense, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses
		WHERE expense_date >= $1 AND expense_date <= $2
		ORDER BY expense_date DESC, id DESC
	`, DateOf(from), DateOf(to))
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []Expense
	for rows.Next() {
		var e Expense
		if err := scanExpense(rows, &e); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (s *expenseService) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT DISTINCT category FROM expenses WHERE category <> '' ORDER BY category")
	if err != nil {
		return nil, fmt.Errorf("failed to list expense categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan expense category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *expenseService) TotalByPeriod(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM expenses
		WHERE expense_date >= $1 AND expense_date <= $2
	`, DateOf(from), DateOf(to)).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to total expenses: %w", err)
	}
	return total, nil
}
