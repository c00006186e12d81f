package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/lesson-package-api/internal/models"
)

// Window is an inclusive range of calendar days.
type Window struct {
	Start time.Time
	End   time.Time
}

// PackageWindow is the calendar window of a package starting on start with the
// given expiry.
func PackageWindow(start, expiry time.Time) Window {
	return Window{Start: DateOnly(start), End: DateOnly(expiry)}
}

// Overlaps reports whether two inclusive windows share at least one day.
func (w Window) Overlaps(o Window) bool {
	return !w.Start.After(o.End) && !w.End.Before(o.Start)
}

// OverlapConflict names an existing package that blocks an assignment.
type OverlapConflict struct {
	StudentID  string               `json:"student_id"`
	PackageID  string               `json:"package_id"`
	StartDate  time.Time            `json:"start_date"`
	ExpiryDate time.Time            `json:"expiry_date"`
	Status     models.PackageStatus `json:"status"`
}

// NearlyExhausted reports whether a package has at most a quarter of its hours
// left, which allows the next cycle to be booked while it is still running.
func NearlyExhausted(kind models.PackageType, remaining, total decimal.Decimal) bool {
	return UnusedHours(kind, remaining).LessThanOrEqual(total.Div(decimal.NewFromInt(4)))
}

// FindOverlap returns the first existing package whose window overlaps window
// and which is not nearly exhausted. excludeID skips the package being edited.
func FindOverlap(window Window, existing []models.StudentPackage, excludeID string) *OverlapConflict {
	for _, ex := range existing {
		if ex.PackageID == excludeID {
			continue
		}
		if !window.Overlaps(PackageWindow(ex.StartDate, ex.ExpiryDate)) {
			continue
		}
		if NearlyExhausted(ex.Type, ex.RemainingHours, ex.TotalHours) {
			continue
		}
		return &OverlapConflict{
			StudentID:  ex.StudentID,
			PackageID:  ex.PackageID,
			StartDate:  DateOnly(ex.StartDate),
			ExpiryDate: DateOnly(ex.ExpiryDate),
			Status:     ex.Status,
		}
	}
	return nil
}
