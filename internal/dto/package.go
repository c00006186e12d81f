package dto

import "github.com/shopspring/decimal"

// CreatePackageRequest is the payload for creating a lesson package.
type CreatePackageRequest struct {
	StudentIDs  []string        `json:"student_ids" validate:"required,min=1,max=3,dive,required"`
	PackageType string          `json:"package_type" validate:"omitempty,oneof=fixed open"`
	StartDate   string          `json:"start_date" validate:"required,datetime=2006-01-02"`
	TotalHours  decimal.Decimal `json:"total_hours"`
	PackageCost decimal.Decimal `json:"package_cost"`
	IsPaid      bool            `json:"is_paid"`
	PaymentDate *string         `json:"payment_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Notes       *string         `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// UpdatePackageRequest carries the fields of a partial package update.
type UpdatePackageRequest struct {
	StudentIDs  []string         `json:"student_ids,omitempty" validate:"omitempty,min=1,max=3,dive,required"`
	StartDate   *string          `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	TotalHours  *decimal.Decimal `json:"total_hours,omitempty"`
	PackageCost *decimal.Decimal `json:"package_cost,omitempty"`
	IsPaid      *bool            `json:"is_paid,omitempty"`
	PaymentDate *string          `json:"payment_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Notes       *string          `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// CreatePaymentRequest registers an installment against a package.
type CreatePaymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentDate   string          `json:"payment_date" validate:"required,datetime=2006-01-02"`
	PaymentMethod *string         `json:"payment_method,omitempty" validate:"omitempty,max=50"`
	Notes         *string         `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// StatementFormat selects the statement rendering.
type StatementFormat string

// Supported statement formats.
const (
	StatementCSV StatementFormat = "csv"
	StatementPDF StatementFormat = "pdf"
)
