package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the display state derived from partial payments.
type PaymentStatus string

// Payment display states.
const (
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
)

// PackagePayment is an installment registered against a package.
type PackagePayment struct {
	ID            string          `db:"id" json:"id"`
	PackageID     string          `db:"package_id" json:"package_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	PaymentDate   time.Time       `db:"payment_date" json:"payment_date"`
	PaymentMethod *string         `db:"payment_method" json:"payment_method,omitempty"`
	Notes         *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// PaymentSummary aggregates installments for display next to a package.
type PaymentSummary struct {
	TotalPaid   decimal.Decimal `json:"total_paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Status      PaymentStatus   `json:"payment_status"`
}

// PackagePayments lists the installments of a package with their summary.
type PackagePayments struct {
	Payments []PackagePayment `json:"payments"`
	Summary  PaymentSummary   `json:"summary"`
}
