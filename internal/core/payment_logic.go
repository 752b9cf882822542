package core

import "github.com/shopspring/decimal"

// DerivePaymentStatus maps a paid total against the order total.
// It is the single source of payment-status logic: the stored
// paid_value/payment_status pair on an order is a materialized view of the
// payment set and must always be re-derived through this function after any
// payment mutation, never patched incrementally.
func DerivePaymentStatus(paid, total decimal.Decimal) PaymentStatus {
	switch {
	case paid.LessThanOrEqual(decimal.Zero):
		return PaymentUnpaid
	case paid.LessThan(total):
		return PaymentPartial
	default:
		return PaymentPaid
	}
}

// SumPayments returns the total of a payment set.
func SumPayments(payments []Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}
