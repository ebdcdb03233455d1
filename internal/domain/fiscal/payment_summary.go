package fiscal

import (
	"github.com/shopspring/decimal"
)

// SalePaymentStatus is the derived payment status of a sale. It is
// computed from the payments and never stored.
type SalePaymentStatus string

const (
	SalePaymentStatusPending SalePaymentStatus = "pending"
	SalePaymentStatusPartial SalePaymentStatus = "partial"
	SalePaymentStatusPaid    SalePaymentStatus = "paid"
)

// String returns the string representation of SalePaymentStatus
func (s SalePaymentStatus) String() string {
	return string(s)
}

// PaymentSummary aggregates the payments of a sale against its total
type PaymentSummary struct {
	TotalPaid      decimal.Decimal   `json:"total_paid"`
	TotalScheduled decimal.Decimal   `json:"total_scheduled"`
	Remaining      decimal.Decimal   `json:"remaining"`
	Percentage     decimal.Decimal   `json:"percentage"`
	PaymentStatus  SalePaymentStatus `json:"payment_status"`
}

var oneHundred = decimal.NewFromInt(100)

// CalculatePaymentSummary computes the aggregate payment figures for a sale.
// Overpayment is representable: remaining floors at zero, percentage caps
// at 100 and the status becomes paid, never an error. A zero sale total
// yields a zero percentage.
func CalculatePaymentSummary(payments []Payment, saleTotal decimal.Decimal) PaymentSummary {
	totalPaid := decimal.Zero
	totalScheduled := decimal.Zero
	for _, p := range payments {
		switch p.Status {
		case PaymentStatusPaid:
			totalPaid = totalPaid.Add(p.Amount)
		case PaymentStatusPending:
			totalScheduled = totalScheduled.Add(p.Amount)
		}
	}

	remaining := saleTotal.Sub(totalPaid)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	percentage := decimal.Zero
	if saleTotal.IsPositive() {
		percentage = totalPaid.Div(saleTotal).Mul(oneHundred)
		if percentage.GreaterThan(oneHundred) {
			percentage = oneHundred
		}
	}

	status := SalePaymentStatusPartial
	switch {
	case totalPaid.IsZero():
		status = SalePaymentStatusPending
	case totalPaid.GreaterThanOrEqual(saleTotal):
		status = SalePaymentStatusPaid
	}

	return PaymentSummary{
		TotalPaid:      totalPaid,
		TotalScheduled: totalScheduled,
		Remaining:      remaining,
		Percentage:     percentage,
		PaymentStatus:  status,
	}
}
