package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// MonthlyAmount is one month's bucket in a financial time series. Month is
// formatted YYYY-MM.
type MonthlyAmount struct {
	Month  string          `json:"month"`
	Amount decimal.Decimal `json:"amount"`
}

// MonthlyCount is one month's order-count bucket.
type MonthlyCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// FinanceSummary aggregates a reporting period. Balance is received minus
// expenses, cash basis only; receivable is informational.
type FinanceSummary struct {
	From            time.Time       `json:"from"`
	To              time.Time       `json:"to"`
	ExpectedRevenue decimal.Decimal `json:"expected_revenue"`
	OrderCount      int             `json:"order_count"`
	Received        decimal.Decimal `json:"received"`
	Receivable      decimal.Decimal `json:"receivable"`
	Expenses        decimal.Decimal `json:"expenses"`
	Balance         decimal.Decimal `json:"balance"`
}

// ProductRank is one row of a product ranking.
type ProductRank struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Qty       int             `json:"qty"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// OrderRow is a flattened order line for period exports.
type OrderRow struct {
	OrderID       int64           `json:"order_id"`
	CustomerName  string          `json:"customer_name"`
	EventDate     time.Time       `json:"event_date"`
	EffectiveDate time.Time       `json:"effective_date"`
	Status        OrderStatus     `json:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	TotalValue    decimal.Decimal `json:"total_value"`
	PaidValue     decimal.Decimal `json:"paid_value"`
}

// FinanceService derives financial reports from orders, payments, and
// expenses. Nothing here writes; every figure is recomputed from the
// source tables on each call.
//
// All period parameters are inclusive date ranges. The period key of an
// order is its start date when set, otherwise its event date, so multi-day
// rentals report under the month they begin.
type FinanceService interface {
	MonthlyRevenue(ctx context.Context, from, to time.Time) ([]MonthlyAmount, error)
	MonthlyOrderCounts(ctx context.Context, from, to time.Time) ([]MonthlyCount, error)
	// MonthlyReceived buckets payments by their paid_at month. Payments
	// without a paid date are excluded entirely.
	MonthlyReceived(ctx context.Context, from, to time.Time) ([]MonthlyAmount, error)
	// MonthlyReceivable reports, per month, the unpaid remainder of
	// confirmed orders only. Drafts are too tentative and completed or
	// canceled orders are settled history.
	MonthlyReceivable(ctx context.Context, from, to time.Time) ([]MonthlyAmount, error)
	Summary(ctx context.Context, from, to time.Time) (*FinanceSummary, error)
	TopProductsByQty(ctx context.Context, from, to time.Time, limit int) ([]ProductRank, error)
	// TopProductsByRevenue ranks products by attributable revenue. A line
	// with no stored total falls back to its stored price times quantity,
	// then to the current catalog price. Lines with no resolvable price are
	// omitted and reported as warnings rather than counted as zero.
	TopProductsByRevenue(ctx context.Context, from, to time.Time, limit int) ([]ProductRank, []ConsistencyWarning, error)
	OrderRows(ctx context.Context, from, to time.Time) ([]OrderRow, error)
}

type financeService struct {
	pool *pgxpool.Pool
}

func NewFinanceService(pool *pgxpool.Pool) FinanceService {
	return &financeService{pool: pool}
}

// periodFilter is the shared WHERE clause: effective date in range, canceled
// orders never counted.
const periodFilter = `
	o.status <> 'canceled'
	AND COALESCE(o.start_date, o.event_date) >= $1
	AND COALESCE(o.start_date, o.event_date) <= $2`

func (s *financeService) MonthlyRevenue(ctx context.Context, from, to time.Time) ([]MonthlyAmount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT to_char(COALESCE(o.start_date, o.event_date), 'YYYY-MM') AS month,
		       COALESCE(SUM(o.total_value), 0)
		FROM orders o
		WHERE `+periodFilter+`
		GROUP BY month
		ORDER BY month
	`, DateOf(from), DateOf(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly revenue: %w", err)
	}
	return scanMonthlyAmounts(rows)
}

func (s *financeService) MonthlyOrderCounts(ctx context.Context, from, to time.Time) ([]MonthlyCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT to_char(COALESCE(o.start_date, o.event_date), 'YYYY-MM') AS month,
		       COUNT(*)
		FROM orders o
		WHERE `+periodFilter+`
		GROUP BY month
		ORDER BY month
	`, DateOf(from), DateOf(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly order counts: %w", err)
	}
	defer rows.Close()

	var counts []MonthlyCount
	for rows.Next() {
		var mc MonthlyCount
		if err := rows.Scan(&mc.Month, &mc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan monthly count: %w", err)
		}
		counts = append(counts, mc)
	}
	return counts, rows.Err()
}

func (s *financeService) MonthlyReceived(ctx context.Context, from, to time.Time) ([]MonthlyAmount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT to_char(p.paid_at, 'YYYY-MM') AS month,
		       COALESCE(SUM(p.amount), 0)
		FROM payments p
		WHERE p.paid_at IS NOT NULL
		  AND p.paid_at >= $1 AND p.paid_at <= $2
		GROUP BY month
		ORDER BY month
	`, DateOf(from), DateOf(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly received: %w", err)
	}
	return scanMonthlyAmounts(rows)
}

func (s *financeService) MonthlyReceivable(ctx context.Context, from, to time.Time) ([]MonthlyAmount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT to_char(COALESCE(o.start_date, o.event_date), 'YYYY-MM') AS month,
		       COALESCE(SUM(GREATEST(o.total_value - o.paid_value, 0)), 0)
		FROM orders o
		WHERE o.status = 'confirmed'
		  AND COALESCE(o.start_date, o.event_date) >= $1
		  AND COALESCE(o.start_date, o.event_date) <= $2
		GROUP BY month
		ORDER BY month
	`, DateOf(from), DateOf(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly receivable: %w", err)
	}
	return scanMonthlyAmounts(rows)
}

func (s *financeService) Summary(ctx context.Context, from, to time.Time) (*FinanceSummary, error) {
	fromD, toD := DateOf(from), DateOf(to)
	summary := &FinanceSummary{From: fromD, To: toD}

	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(o.total_value), 0), COUNT(*)
		FROM orders o
		WHERE `+periodFilter,
		fromD, toD,
	).Scan(&summary.ExpectedRevenue, &summary.OrderCount)
	if err != nil {
		return nil, fmt.Errorf("failed to query revenue summary: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(p.amount), 0)
		FROM payments p
		WHERE p.paid_at IS NOT NULL AND p.paid_at >= $1 AND p.paid_at <= $2
	`, fromD, toD).Scan(&summary.Received)
	if err != nil {
		return nil, fmt.Errorf("failed to query received summary: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(GREATEST(o.total_value - o.paid_value, 0)), 0)
		FROM orders o
		WHERE o.status = 'confirmed'
		  AND COALESCE(o.start_date, o.event_date) >= $1
		  AND COALESCE(o.start_date, o.event_date) <= $2
	`, fromD, toD).Scan(&summary.Receivable)
	if err != nil {
		return nil, fmt.Errorf("failed to query receivable summary: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM expenses
		WHERE expense_date >= $1 AND expense_date <= $2
	`, fromD, toD).Scan(&summary.Expenses)
	if err != nil {
		return nil, fmt.Errorf("failed to query expense summary: %w", err)
	}

	summary.Balance = summary.Received.Sub(summary.Expenses)
	return summary, nil
}

// rankLine is the raw material for product rankings.
type rankLine struct {
	productID    int64
	name         string
	qty          int
	lineTotal    *decimal.Decimal
	linePrice    *decimal.Decimal
	catalogPrice *decimal.Decimal
}

func (s *financeService) fetchRankLines(ctx context.Context, from, to time.Time) ([]rankLine, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT oi.product_id, p.name, oi.qty, oi.line_total, oi.unit_price, p.unit_price
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN products p ON p.id = oi.product_id
		WHERE `+periodFilter+`
		ORDER BY oi.id
	`, DateOf(from), DateOf(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query ranking lines: %w", err)
	}
	defer rows.Close()

	var lines []rankLine
	for rows.Next() {
		var rl rankLine
		if err := rows.Scan(&rl.productID, &rl.name, &rl.qty,
			&rl.lineTotal, &rl.linePrice, &rl.catalogPrice); err != nil {
			return nil, fmt.Errorf("failed to scan ranking line: %w", err)
		}
		lines = append(lines, rl)
	}
	return lines, rows.Err()
}

func (s *financeService) TopProductsByQty(ctx context.Context, from, to time.Time, limit int) ([]ProductRank, error) {
	lines, err := s.fetchRankLines(ctx, from, to)
	if err != nil {
		return nil, err
	}

	byProduct := map[int64]*ProductRank{}
	for _, rl := range lines {
		r, ok := byProduct[rl.productID]
		if !ok {
			r = &ProductRank{ProductID: rl.productID, Name: rl.name}
			byProduct[rl.productID] = r
		}
		r.Qty += rl.qty
		if rev, ok := lineRevenue(rl); ok {
			r.Revenue = r.Revenue.Add(rev)
		}
	}
	return topN(byProduct, limit, func(a, b *ProductRank) bool {
		if a.Qty != b.Qty {
			return a.Qty > b.Qty
		}
		return a.Name < b.Name
	}), nil
}

func (s *financeService) TopProductsByRevenue(ctx context.Context, from, to time.Time, limit int) ([]ProductRank, []ConsistencyWarning, error) {
	lines, err := s.fetchRankLines(ctx, from, to)
	if err != nil {
		return nil, nil, err
	}

	byProduct := map[int64]*ProductRank{}
	warned := map[int64]bool{}
	var warnings []ConsistencyWarning
	for _, rl := range lines {
		rev, ok := lineRevenue(rl)
		if !ok {
			if !warned[rl.productID] {
				warned[rl.productID] = true
				warnings = append(warnings, ConsistencyWarning{
					ProductID:   rl.productID,
					ProductName: rl.name,
					Reason:      "no price available on line or catalog; excluded from revenue ranking",
				})
			}
			continue
		}
		r, okr := byProduct[rl.productID]
		if !okr {
			r = &ProductRank{ProductID: rl.productID, Name: rl.name}
			byProduct[rl.productID] = r
		}
		r.Qty += rl.qty
		r.Revenue = r.Revenue.Add(rev)
	}
	ranks := topN(byProduct, limit, func(a, b *ProductRank) bool {
		if !a.Revenue.Equal(b.Revenue) {
			return a.Revenue.GreaterThan(b.Revenue)
		}
		return a.Name < b.Name
	})
	return ranks, warnings, nil
}

// lineRevenue resolves a line's revenue with the standard fallback chain:
// stored line total, then stored price x qty, then catalog price x qty.
func lineRevenue(rl rankLine) (decimal.Decimal, bool) {
	if rl.lineTotal != nil {
		return *rl.lineTotal, true
	}
	qty := decimal.NewFromInt(int64(rl.qty))
	if rl.linePrice != nil {
		return rl.linePrice.Mul(qty), true
	}
	if rl.catalogPrice != nil {
		return rl.catalogPrice.Mul(qty), true
	}
	return decimal.Zero, false
}

func topN(byProduct map[int64]*ProductRank, limit int, less func(a, b *ProductRank) bool) []ProductRank {
	ranks := make([]*ProductRank, 0, len(byProduct))
	for _, r := range byProduct {
		ranks = append(ranks, r)
	}
	sort.Slice(ranks, func(i, j int) bool { return less(ranks[i], ranks[j]) })
	if limit > 0 && len(ranks) > limit {
		ranks = ranks[:limit]
	}
	out := make([]ProductRank, len(ranks))
	for i, r := range ranks {
		out[i] = *r
	}
	return out
}

func (s *financeService) OrderRows(ctx context.Context, from, to time.Time) ([]OrderRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT o.id, c.name, o.event_date, COALESCE(o.start_date, o.event_date),
		       o.status, o.payment_status, o.total_value, o.paid_value
		FROM orders o
		JOIN customers c ON c.id = o.customer_id
		WHERE `+periodFilter+`
		ORDER BY COALESCE(o.start_date, o.event_date), o.id
	`, DateOf(from), DateOf(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query order rows: %w", err)
	}
	defer rows.Close()

	var out []OrderRow
	for rows.Next() {
		var r OrderRow
		var status, paymentStatus string
		if err := rows.Scan(&r.OrderID, &r.CustomerName, &r.EventDate, &r.EffectiveDate,
			&status, &paymentStatus, &r.TotalValue, &r.PaidValue); err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		r.Status = OrderStatus(status)
		r.PaymentStatus = PaymentStatus(paymentStatus)
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanMonthlyAmounts(rows pgx.Rows) ([]MonthlyAmount, error) {
	defer rows.Close()
	var out []MonthlyAmount
	for rows.Next() {
		var ma MonthlyAmount
		if err := rows.Scan(&ma.Month, &ma.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan monthly amount: %w", err)
		}
		out = append(out, ma)
	}
	return out, rows.Err()
}
