package core

import (
	"fmt"
	"time"
)

// Conflict identifies the first line/date where a candidate order exceeds
// available stock. Date is zero for sale-kind conflicts, which are not
// scoped to a day.
type Conflict struct {
	ProductID   int64     `json:"product_id"`
	ProductName string    `json:"product_name"`
	Date        time.Time `json:"date,omitzero"`
	Available   int       `json:"available"`
	Requested   int       `json:"requested"`
}

// ValidationError is returned when availability validation rejects a
// candidate order. Nothing has been written when it is returned.
type ValidationError struct {
	Conflict Conflict
}

func (e *ValidationError) Error() string {
	if e.Conflict.Date.IsZero() {
		return fmt.Sprintf("insufficient stock for %q: available %d, requested %d",
			e.Conflict.ProductName, e.Conflict.Available, e.Conflict.Requested)
	}
	return fmt.Sprintf("insufficient stock for %q on %s: available %d, requested %d",
		e.Conflict.ProductName, e.Conflict.Date.Format(dateLayout),
		e.Conflict.Available, e.Conflict.Requested)
}

// InvalidTransitionError is returned for illegal order status transitions.
type InvalidTransitionError struct {
	From      OrderStatus
	Attempted OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	if e.From == e.Attempted {
		return fmt.Sprintf("order is already %s", e.From)
	}
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.Attempted)
}

// ConstraintViolation is returned when a basic invariant fails before
// availability validation even runs.
type ConstraintViolation struct {
	Field string
	Rule  string
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("constraint violation on %s: %s", e.Field, e.Rule)
}

// NotFoundError is returned when a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	Ref    int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.Ref)
}

// ConsistencyWarning flags a non-fatal omission in an aggregation result,
// e.g. a product skipped from the revenue ranking because no price could be
// resolved. It is reported alongside the result, never raised as an error.
type ConsistencyWarning struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Reason      string `json:"reason"`
}
