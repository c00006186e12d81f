package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/lesson-package-api/internal/models"
)

// Snapshot is the part of a package the lifecycle depends on.
type Snapshot struct {
	Type           models.PackageType
	ExpiryDate     time.Time
	IsPaid         bool
	RemainingHours decimal.Decimal
}

// SnapshotOf extracts the lifecycle inputs from a package.
func SnapshotOf(p models.Package) Snapshot {
	return Snapshot{
		Type:           p.Type,
		ExpiryDate:     p.ExpiryDate,
		IsPaid:         p.IsPaid,
		RemainingHours: p.RemainingHours,
	}
}

// DeriveStatus is the single source of a package's status.
//
// Inside the calendar window a package is always in progress. Past it, unused
// hours mean the purchase lapsed, and a fully consumed package only counts as
// completed once it has been paid for.
func DeriveStatus(s Snapshot, today time.Time) models.PackageStatus {
	if !DateOnly(today).After(DateOnly(s.ExpiryDate)) {
		return models.PackageStatusInProgress
	}
	if UnusedHours(s.Type, s.RemainingHours).IsPositive() {
		return models.PackageStatusExpired
	}
	if s.IsPaid {
		return models.PackageStatusCompleted
	}
	return models.PackageStatusExpired
}
