package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lesson is a scheduled teaching session, optionally consuming package hours.
type Lesson struct {
	ID           string          `db:"id" json:"id"`
	ProfessorID  string          `db:"professor_id" json:"professor_id"`
	StudentID    string          `db:"student_id" json:"student_id"`
	LessonDate   time.Time       `db:"lesson_date" json:"lesson_date"`
	StartTime    *string         `db:"start_time" json:"start_time,omitempty"`
	Duration     decimal.Decimal `db:"duration" json:"duration"`
	HourlyRate   decimal.Decimal `db:"hourly_rate" json:"hourly_rate"`
	TotalPayment decimal.Decimal `db:"total_payment" json:"total_payment"`
	IsPackage    bool            `db:"is_package" json:"is_package"`
	PackageID    *string         `db:"package_id" json:"package_id,omitempty"`
	IsPaid       bool            `db:"is_paid" json:"is_paid"`
	PaymentDate  *time.Time      `db:"payment_date" json:"payment_date,omitempty"`
	Notes        *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// LinkedPackageID returns the package the lesson consumes, or "" when it is a
// single lesson.
func (l *Lesson) LinkedPackageID() string {
	if l == nil || !l.IsPackage || l.PackageID == nil {
		return ""
	}
	return *l.PackageID
}

// OverflowResult is returned by an overflow resolution: every lesson written
// and every package created or touched, with fresh ledger values.
type OverflowResult struct {
	Resolution string          `json:"resolution"`
	Lessons    []Lesson        `json:"lessons"`
	Packages   []PackageDetail `json:"packages"`
}
