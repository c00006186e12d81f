package ledger

import (
	"github.com/shopspring/decimal"
)

// Overflow resolutions an operator can pick.
const (
	ResolutionUseSingle     = "use_single"
	ResolutionUseNewPackage = "use_new_package"
)

// Split describes how a requested lesson fits in a package.
type Split struct {
	PackageID         string          `json:"package_id"`
	RemainingHours    decimal.Decimal `json:"remaining_hours"`
	RequestedDuration decimal.Decimal `json:"requested_duration"`
	InPackageHours    decimal.Decimal `json:"in_package_hours"`
	OverflowHours     decimal.Decimal `json:"overflow_hours"`
}

// ComputeSplit splits requested hours between what the package can still hold
// and the excess. A request equal to the remaining hours does not overflow.
func ComputeSplit(packageID string, remaining, requested decimal.Decimal) Split {
	remaining = decimal.Max(decimal.Zero, remaining)
	overflow := decimal.Max(decimal.Zero, requested.Sub(remaining))
	return Split{
		PackageID:         packageID,
		RemainingHours:    remaining,
		RequestedDuration: requested,
		InPackageHours:    requested.Sub(overflow),
		OverflowHours:     overflow,
	}
}

// HasOverflow reports whether the request exceeds the package.
func (s Split) HasOverflow() bool {
	return s.OverflowHours.IsPositive()
}

// ProratedCost prices overflow hours at the original package's hourly cost,
// rounded to cents. A package without hours yields a zero cost.
func ProratedCost(packageCost, totalHours, hours decimal.Decimal) decimal.Decimal {
	if !totalHours.IsPositive() {
		return decimal.Zero
	}
	return packageCost.Div(totalHours).Mul(hours).Round(2)
}

// ValidResolution reports whether name is a known overflow resolution.
func ValidResolution(name string) bool {
	return name == ResolutionUseSingle || name == ResolutionUseNewPackage
}
