package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CatalogService manages the product catalog and the customer register.
type CatalogService interface {
	CreateProduct(ctx context.Context, input ProductInput) (*Product, error)
	UpdateProduct(ctx context.Context, productID int64, input ProductInput) (*Product, error)
	// DeactivateProduct hides the product from the active catalog without
	// touching historical orders that reference it.
	DeactivateProduct(ctx context.Context, productID int64) error
	GetProduct(ctx context.Context, productID int64) (*Product, error)
	ListProducts(ctx context.Context, includeInactive bool) ([]Product, error)

	CreateCustomer(ctx context.Context, input CustomerInput) (*Customer, error)
	UpdateCustomer(ctx context.Context, customerID int64, input CustomerInput) (*Customer, error)
	// DeleteCustomer refuses to delete a customer that any order references.
	DeleteCustomer(ctx context.Context, customerID int64) error
	GetCustomer(ctx context.Context, customerID int64) (*Customer, error)
	ListCustomers(ctx context.Context, search string) ([]Customer, error)
}

type catalogService struct {
	pool *pgxpool.Pool
}

func NewCatalogService(pool *pgxpool.Pool) CatalogService {
	return &catalogService{pool: pool}
}

const productColumns = "id, name, kind, category, total_qty, unit_price, active, created_at, updated_at"

func scanProduct(row pgx.Row, p *Product) error {
	var kind string
	if err := row.Scan(&p.ID, &p.Name, &kind, &p.Category, &p.TotalQty,
		&p.UnitPrice, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return err
	}
	p.Kind = ParseProductKind(kind)
	return nil
}

func checkProductInput(input ProductInput) error {
	if input.Name == "" {
		return &ConstraintViolation{Field: "name", Rule: "required"}
	}
	if input.TotalQty < 0 {
		return &ConstraintViolation{Field: "total_qty", Rule: "must not be negative"}
	}
	if input.UnitPrice != nil && input.UnitPrice.IsNegative() {
		return &ConstraintViolation{Field: "unit_price", Rule: "must not be negative"}
	}
	switch input.Kind {
	case KindRental, KindSale, KindService:
		return nil
	default:
		return &ConstraintViolation{Field: "kind", Rule: "must be rental, sale, or service"}
	}
}

func (s *catalogService) CreateProduct(ctx context.Context, input ProductInput) (*Product, error) {
	if err := checkProductInput(input); err != nil {
		return nil, err
	}

	var p Product
	err := scanProduct(s.pool.QueryRow(ctx, `
		INSERT INTO products (name, kind, category, total_qty, unit_price, active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING `+productColumns,
		input.Name, string(input.Kind), input.Category, input.TotalQty, input.UnitPrice,
	), &p)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &ConstraintViolation{Field: "name", Rule: "already exists"}
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return &p, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, productID int64, input ProductInput) (*Product, error) {
	if err := checkProductInput(input); err != nil {
		return nil, err
	}

	var p Product
	err := scanProduct(s.pool.QueryRow(ctx, `
		UPDATE products
		SET name = $1, kind = $2, category = $3, total_qty = $4,
		    unit_price = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING `+productColumns,
		input.Name, string(input.Kind), input.Category, input.TotalQty, input.UnitPrice, productID,
	), &p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "product", Ref: productID}
		}
		if isUniqueViolation(err) {
			return nil, &ConstraintViolation{Field: "name", Rule: "already exists"}
		}
		return nil, fmt.Errorf("failed to update product %d: %w", productID, err)
	}
	return &p, nil
}

func (s *catalogService) DeactivateProduct(ctx context.Context, productID int64) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE products SET active = FALSE, updated_at = NOW() WHERE id = $1", productID)
	if err != nil {
		return fmt.Errorf("failed to deactivate product %d: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Entity: "product", Ref: productID}
	}
	return nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID int64) (*Product, error) {
	var p Product
	err := scanProduct(s.pool.QueryRow(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = $1", productID), &p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "product", Ref: productID}
		}
		return nil, fmt.Errorf("failed to fetch product %d: %w", productID, err)
	}
	return &p, nil
}

func (s *catalogService) ListProducts(ctx context.Context, includeInactive bool) ([]Product, error) {
	query := "SELECT " + productColumns + " FROM products"
	if !includeInactive {
		query += " WHERE active"
	}
	query += " ORDER BY name"

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

const customerColumns = "id, name, phone, notes, created_at, updated_at"

func scanCustomer(row pgx.Row, c *Customer) error {
	return row.Scan(&c.ID, &c.Name, &c.Phone, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
}

func (s *catalogService) CreateCustomer(ctx context.Context, input CustomerInput) (*Customer, error) {
	if input.Name == "" {
		return nil, &ConstraintViolation{Field: "name", Rule: "required"}
	}

	var c Customer
	err := scanCustomer(s.pool.QueryRow(ctx, `
		INSERT INTO customers (name, phone, notes)
		VALUES ($1, $2, $3)
		RETURNING `+customerColumns,
		input.Name, input.Phone, input.Notes,
	), &c)
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return &c, nil
}

func (s *catalogService) UpdateCustomer(ctx context.Context, customerID int64, input CustomerInput) (*Customer, error) {
	if input.Name == "" {
		return nil, &ConstraintViolation{Field: "name", Rule: "required"}
	}

	var c Customer
	err := scanCustomer(s.pool.QueryRow(ctx, `
		UPDATE customers
		SET name = $1, phone = $2, notes = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING `+customerColumns,
		input.Name, input.Phone, input.Notes, customerID,
	), &c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "customer", Ref: customerID}
		}
		return nil, fmt.Errorf("failed to update customer %d: %w", customerID, err)
	}
	return &c, nil
}

func (s *catalogService) DeleteCustomer(ctx context.Context, customerID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// FOR UPDATE conflicts with the FOR KEY SHARE lock a concurrent order
	// insert takes on its referenced customer, so the order count below
	// cannot go stale before the delete.
	var id int64
	err = tx.QueryRow(ctx,
		"SELECT id FROM customers WHERE id = $1 FOR UPDATE", customerID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &NotFoundError{Entity: "customer", Ref: customerID}
		}
		return fmt.Errorf("failed to lock customer %d: %w", customerID, err)
	}

	var orderCount int
	err = tx.QueryRow(ctx,
		"SELECT COUNT(*) FROM orders WHERE customer_id = $1", customerID).Scan(&orderCount)
	if err != nil {
		return fmt.Errorf("failed to count orders for customer %d: %w", customerID, err)
	}
	if orderCount > 0 {
		return &ConstraintViolation{Field: "customer_id", Rule: "customer has orders and cannot be deleted"}
	}

	if _, err := tx.Exec(ctx, "DELETE FROM customers WHERE id = $1", customerID); err != nil {
		if isForeignKeyViolation(err) {
			return &ConstraintViolation{Field: "customer_id", Rule: "customer has orders and cannot be deleted"}
		}
		return fmt.Errorf("failed to delete customer %d: %w", customerID, err)
	}
	return tx.Commit(ctx)
}

func (s *catalogService) GetCustomer(ctx context.Context, customerID int64) (*Customer, error) {
	var c Customer
	err := scanCustomer(s.pool.QueryRow(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE id = $1", customerID), &c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "customer", Ref: customerID}
		}
		return nil, fmt.Errorf("failed to fetch customer %d: %w", customerID, err)
	}
	return &c, nil
}

func (s *catalogService) ListCustomers(ctx context.Context, search string) ([]Customer, error) {
	query := "SELECT " + customerColumns + " FROM customers"
	var args []any
	if search != "" {
		args = append(args, "%"+search+"%")
		query += " WHERE name ILIKE $1 OR phone ILIKE $1"
	}
	query += " ORDER BY name"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		var c Customer
		if err := scanCustomer(rows, &c); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
