package dto

import "github.com/shopspring/decimal"

// LessonRequest describes a lesson to create, or the new state of one being
// updated.
type LessonRequest struct {
	ProfessorID  string          `json:"professor_id" validate:"required"`
	StudentID    string          `json:"student_id" validate:"required"`
	LessonDate   string          `json:"lesson_date" validate:"required,datetime=2006-01-02"`
	StartTime    *string         `json:"start_time,omitempty" validate:"omitempty,datetime=15:04"`
	Duration     decimal.Decimal `json:"duration"`
	HourlyRate   decimal.Decimal `json:"hourly_rate"`
	IsPackage    bool            `json:"is_package"`
	PackageID    *string         `json:"package_id,omitempty" validate:"required_if=IsPackage true"`
	IsPaid       bool            `json:"is_paid"`
	PaymentDate  *string         `json:"payment_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Notes        *string         `json:"notes,omitempty" validate:"omitempty,max=2000"`
	AllowOverlap bool            `json:"allow_overlap"`
}

// ResolveOverflowRequest picks how an overflowing lesson is materialised.
// LessonID is set when the overflow came from enlarging an existing lesson.
type ResolveOverflowRequest struct {
	Resolution string        `json:"resolution" validate:"required,oneof=use_single use_new_package"`
	LessonID   *string       `json:"lesson_id,omitempty"`
	Lesson     LessonRequest `json:"lesson"`
}
