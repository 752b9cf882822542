package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so validation can
// run standalone or inside the caller's transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Hold is an existing date-scoped stock commitment: Qty units held over the
// half-open span [Start, End).
type Hold struct {
	Qty   int
	Start time.Time
	End   time.Time
}

// committedOn sums the holds whose span contains d.
func committedOn(holds []Hold, d time.Time) int {
	total := 0
	for _, h := range holds {
		if SpanContains(h.Start, h.End, d) {
			total += h.Qty
		}
	}
	return total
}

// AvailabilityService answers "can this order's lines be committed?" without
// mutating state, and computes current commitment levels for reporting.
//
// Availability is recomputed per day from the live order set rather than kept
// in a running reservation counter, so edits and cancellations can never leave
// a stale balance behind.
type AvailabilityService interface {
	// CommittedQuantity returns the rental-kind quantity committed for the
	// product on the given date by orders in a stock-holding status
	// (draft, confirmed), optionally excluding one order.
	CommittedQuantity(ctx context.Context, productID int64, day time.Time, excludeOrderID *int64) (int, error)

	// Available returns total_qty minus the committed quantity on the given
	// date, floored at zero.
	Available(ctx context.Context, productID int64, day time.Time, excludeOrderID *int64) (int, error)

	// ValidateOrder checks every line of the candidate order against stock.
	// It fails with a *ValidationError carrying the first conflicting
	// (product, date, available, requested) tuple in line-then-date order;
	// any single conflict rejects the whole order.
	ValidateOrder(ctx context.Context, draft OrderDraft, excludeOrderID *int64) error

	// ValidateOrderTx is ValidateOrder running inside the caller's
	// transaction. Each line's product row is locked FOR UPDATE, so two
	// concurrent submissions for the same product serialize and can never
	// both pass against the same stale stock snapshot.
	ValidateOrderTx(ctx context.Context, tx pgx.Tx, draft OrderDraft, excludeOrderID *int64) error
}

type availabilityService struct {
	pool *pgxpool.Pool
}

func NewAvailabilityService(pool *pgxpool.Pool) AvailabilityService {
	return &availabilityService{pool: pool}
}

// holdingStatusList renders the stock-holding statuses for SQL ANY filters.
func holdingStatusList() []string {
	out := make([]string, len(holdingStatuses))
	for i, s := range holdingStatuses {
		out[i] = string(s)
	}
	return out
}

// fetchHolds loads the rental-kind commitments for a product that overlap the
// half-open window [from, to), excluding excludeOrderID when non-nil.
func fetchHolds(ctx context.Context, q querier, productID int64, from, to time.Time, excludeOrderID *int64) ([]Hold, error) {
	rows, err := q.Query(ctx, `
		SELECT oi.qty, o.start_date, o.end_date
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE oi.product_id = $1
		  AND oi.kind = 'rental'
		  AND o.status = ANY($4)
		  AND o.start_date IS NOT NULL AND o.end_date IS NOT NULL
		  AND o.start_date < $3 AND o.end_date > $2
		  AND ($5::bigint IS NULL OR o.id <> $5)
		ORDER BY o.id, oi.id
	`, productID, from, to, holdingStatusList(), excludeOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holds for product %d: %w", productID, err)
	}
	defer rows.Close()

	var holds []Hold
	for rows.Next() {
		var h Hold
		if err := rows.Scan(&h.Qty, &h.Start, &h.End); err != nil {
			return nil, fmt.Errorf("failed to scan hold: %w", err)
		}
		h.Start = DateOf(h.Start)
		h.End = DateOf(h.End)
		holds = append(holds, h)
	}
	return holds, rows.Err()
}

func (s *availabilityService) CommittedQuantity(ctx context.Context, productID int64, d time.Time, excludeOrderID *int64) (int, error) {
	d = DateOf(d)
	holds, err := fetchHolds(ctx, s.pool, productID, d, d.Add(day), excludeOrderID)
	if err != nil {
		return 0, err
	}
	return committedOn(holds, d), nil
}

func (s *availabilityService) Available(ctx context.Context, productID int64, d time.Time, excludeOrderID *int64) (int, error) {
	totalQty, _, err := fetchProductStock(ctx, s.pool, productID)
	if err != nil {
		return 0, err
	}
	committed, err := s.CommittedQuantity(ctx, productID, d, excludeOrderID)
	if err != nil {
		return 0, err
	}
	return max(totalQty-committed, 0), nil
}

func (s *availabilityService) ValidateOrder(ctx context.Context, draft OrderDraft, excludeOrderID *int64) error {
	return validateOrder(ctx, s.pool, draft, excludeOrderID, false)
}

func (s *availabilityService) ValidateOrderTx(ctx context.Context, tx pgx.Tx, draft OrderDraft, excludeOrderID *int64) error {
	return validateOrder(ctx, tx, draft, excludeOrderID, true)
}

// fetchProductStock returns the product's total quantity and name.
func fetchProductStock(ctx context.Context, q querier, productID int64) (int, string, error) {
	var totalQty int
	var name string
	err := q.QueryRow(ctx,
		"SELECT total_qty, name FROM products WHERE id = $1", productID,
	).Scan(&totalQty, &name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, "", &NotFoundError{Entity: "product", Ref: productID}
		}
		return 0, "", fmt.Errorf("failed to fetch product %d: %w", productID, err)
	}
	return totalQty, name, nil
}

// validateOrder walks the candidate's lines in input order. Service lines
// always pass; sale lines are checked once against the undated catalog stock;
// rental lines are checked for every day of the order span in chronological
// order. The first conflict found rejects the entire order.
//
// When lock is set (transactional callers) each line's product row is read
// FOR UPDATE. A concurrent validation of the same product blocks on that lock
// and, once it acquires it, re-reads stock and holds committed in the
// meantime, so two racing submissions cannot jointly overcommit.
func validateOrder(ctx context.Context, q querier, draft OrderDraft, excludeOrderID *int64, lock bool) error {
	productQuery := "SELECT kind, total_qty, name FROM products WHERE id = $1"
	if lock {
		productQuery += " FOR UPDATE"
	}
	for _, line := range draft.Lines {
		var catalogKind string
		var totalQty int
		var name string
		err := q.QueryRow(ctx, productQuery, line.ProductID).Scan(&catalogKind, &totalQty, &name)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return &NotFoundError{Entity: "product", Ref: line.ProductID}
			}
			return fmt.Errorf("failed to resolve product %d: %w", line.ProductID, err)
		}

		// A line carrying a snapshot kind keeps its original availability
		// semantics even if the catalog entry's kind changed since.
		kind := ParseProductKind(catalogKind)
		if line.Kind != "" {
			kind = line.Kind
		}

		switch kind {
		case KindService:
			continue

		case KindSale:
			// Sale stock is not date-scoped: the catalog quantity is the
			// running balance, consumed only when an order completes.
			if line.Qty > totalQty {
				return &ValidationError{Conflict: Conflict{
					ProductID:   line.ProductID,
					ProductName: name,
					Available:   max(totalQty, 0),
					Requested:   line.Qty,
				}}
			}

		case KindRental:
			if draft.StartDate == nil || draft.EndDate == nil {
				return &ConstraintViolation{Field: "start_date", Rule: "required for rental lines"}
			}
			start, end := DateOf(*draft.StartDate), DateOf(*draft.EndDate)
			holds, err := fetchHolds(ctx, q, line.ProductID, start, end, excludeOrderID)
			if err != nil {
				return err
			}
			for d := range DaysInSpan(start, end) {
				available := totalQty - committedOn(holds, d)
				if available < line.Qty {
					return &ValidationError{Conflict: Conflict{
						ProductID:   line.ProductID,
						ProductName: name,
						Date:        d,
						Available:   max(available, 0),
						Requested:   line.Qty,
					}}
				}
			}
		}
	}
	return nil
}
