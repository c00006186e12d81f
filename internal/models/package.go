package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PackageStatus is the lifecycle state of a lesson package.
type PackageStatus string

// Possible package statuses.
const (
	PackageStatusInProgress PackageStatus = "in_progress"
	PackageStatusExpired    PackageStatus = "expired"
	PackageStatusCompleted  PackageStatus = "completed"
)

// PackageType selects how the hour pool is accounted.
type PackageType string

// Package kinds. Fixed packages sell an allotment up front; open packages
// accumulate hours as lessons are taken.
const (
	PackageTypeFixed PackageType = "fixed"
	PackageTypeOpen  PackageType = "open"
)

// Package is a purchasable pool of lesson hours shared by one to three students.
type Package struct {
	ID             string          `db:"id" json:"id"`
	Type           PackageType     `db:"package_type" json:"package_type"`
	StartDate      time.Time       `db:"start_date" json:"start_date"`
	ExpiryDate     time.Time       `db:"expiry_date" json:"expiry_date"`
	TotalHours     decimal.Decimal `db:"total_hours" json:"total_hours"`
	RemainingHours decimal.Decimal `db:"remaining_hours" json:"remaining_hours"`
	PackageCost    decimal.Decimal `db:"package_cost" json:"package_cost"`
	IsPaid         bool            `db:"is_paid" json:"is_paid"`
	PaymentDate    *time.Time      `db:"payment_date" json:"payment_date,omitempty"`
	Status         PackageStatus   `db:"status" json:"status"`
	ExtensionCount int             `db:"extension_count" json:"extension_count"`
	Notes          *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// PackageDetail enriches a package with its students and payment summary.
type PackageDetail struct {
	Package
	StudentIDs []string        `db:"-" json:"student_ids"`
	HoursUsed  decimal.Decimal `db:"hours_used" json:"hours_used"`
	Payments   *PaymentSummary `db:"-" json:"payments,omitempty"`
}

// PackageStudent links a student to a package.
type PackageStudent struct {
	PackageID string `db:"package_id" json:"package_id"`
	StudentID string `db:"student_id" json:"student_id"`
}

// StudentPackage is a package as seen from one of its students, used by the
// assignment guard and the extension check.
type StudentPackage struct {
	StudentID      string          `db:"student_id" json:"student_id"`
	PackageID      string          `db:"package_id" json:"package_id"`
	Type           PackageType     `db:"package_type" json:"package_type"`
	StartDate      time.Time       `db:"start_date" json:"start_date"`
	ExpiryDate     time.Time       `db:"expiry_date" json:"expiry_date"`
	TotalHours     decimal.Decimal `db:"total_hours" json:"total_hours"`
	RemainingHours decimal.Decimal `db:"remaining_hours" json:"remaining_hours"`
	Status         PackageStatus   `db:"status" json:"status"`
}

// HourFields are the ledger-owned columns written back by a recompute.
type HourFields struct {
	TotalHours     decimal.Decimal
	RemainingHours decimal.Decimal
	Status         PackageStatus
}

// DeletedPackage summarises a cascade delete.
type DeletedPackage struct {
	PackageID      string          `json:"package_id"`
	DeletedLessons []LessonSummary `json:"deleted_lessons"`
}

// LessonSummary is the short form of a lesson used in delete reports.
type LessonSummary struct {
	ID          string          `db:"id" json:"id"`
	LessonDate  time.Time       `db:"lesson_date" json:"lesson_date"`
	StudentID   string          `db:"student_id" json:"student_id"`
	ProfessorID string          `db:"professor_id" json:"professor_id"`
	Duration    decimal.Decimal `db:"duration" json:"duration"`
}
