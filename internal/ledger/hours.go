package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/lesson-package-api/internal/models"
)

// Hours is the derived accounting of a package.
type Hours struct {
	HoursUsed      decimal.Decimal
	TotalHours     decimal.Decimal
	RemainingHours decimal.Decimal
}

// ComputeHours derives total and remaining hours from the hours consumed by
// the package's lessons.
//
// Fixed packages keep their allotment and clamp remaining hours at zero.
// Open packages report consumption as remaining hours and, while unpaid, keep
// the total equal to consumption; once paid the stored total is frozen.
func ComputeHours(p models.Package, hoursUsed decimal.Decimal) Hours {
	h := Hours{HoursUsed: hoursUsed, TotalHours: p.TotalHours}
	switch p.Type {
	case models.PackageTypeOpen:
		h.RemainingHours = hoursUsed
		if !p.IsPaid {
			h.TotalHours = hoursUsed
		}
	default:
		h.RemainingHours = decimal.Max(decimal.Zero, p.TotalHours.Sub(hoursUsed))
	}
	return h
}

// Available is the number of hours a new lesson may still take from the
// package before overflowing. Open packages have no ceiling and report bounded=false.
func Available(p models.Package, hoursUsed decimal.Decimal) (available decimal.Decimal, bounded bool) {
	if p.Type == models.PackageTypeOpen {
		return decimal.Zero, false
	}
	return decimal.Max(decimal.Zero, p.TotalHours.Sub(hoursUsed)), true
}

// UnusedHours is what a package still owes its students: remaining hours for
// fixed packages, nothing for open ones whose pool always equals consumption.
// Open packages therefore never block a new assignment in the overlap guard.
func UnusedHours(kind models.PackageType, remaining decimal.Decimal) decimal.Decimal {
	if kind == models.PackageTypeOpen {
		return decimal.Zero
	}
	return remaining
}
