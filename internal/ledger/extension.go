package ledger

import (
	"time"

	"github.com/noah-isme/lesson-package-api/internal/models"
)

// ExtensionBlock names the successor package that prevents an extension.
type ExtensionBlock struct {
	PackageID          string    `json:"package_id"`
	StudentID          string    `json:"student_id"`
	SuccessorPackageID string    `json:"successor_package_id"`
	SuccessorStartDate time.Time `json:"successor_start_date"`
}

// NoExtension describes a cancel request on a package at its base expiry.
type NoExtension struct {
	PackageID      string    `json:"package_id"`
	ExpiryDate     time.Time `json:"expiry_date"`
	BaseExpiryDate time.Time `json:"base_expiry_date"`
}

// FindSuccessor returns the first package of one of the students that starts
// after expiry. Such a package is already planned to follow this one.
func FindSuccessor(p models.Package, studentPackages []models.StudentPackage) *ExtensionBlock {
	expiry := DateOnly(p.ExpiryDate)
	for _, sp := range studentPackages {
		if sp.PackageID == p.ID {
			continue
		}
		if DateOnly(sp.StartDate).After(expiry) {
			return &ExtensionBlock{
				PackageID:          p.ID,
				StudentID:          sp.StudentID,
				SuccessorPackageID: sp.PackageID,
				SuccessorStartDate: DateOnly(sp.StartDate),
			}
		}
	}
	return nil
}

// ApplyExtension moves the expiry one week forward and reopens the package.
// The caller re-derives status after the ledger recompute.
func ApplyExtension(p *models.Package) {
	p.ExpiryDate = NextExtensionExpiry(p.ExpiryDate)
	p.ExtensionCount++
	p.Status = models.PackageStatusInProgress
}

// CancelExtension removes one week of extension, never going below the base
// expiry. It returns a NoExtension when the package is not extended.
func CancelExtension(p *models.Package, today time.Time) *NoExtension {
	base := ComputeExpiry(p.StartDate)
	current := DateOnly(p.ExpiryDate)
	if !current.After(base) {
		return &NoExtension{PackageID: p.ID, ExpiryDate: current, BaseExpiryDate: base}
	}
	next := current.AddDate(0, 0, -extensionDays)
	if next.Before(base) {
		next = base
	}
	p.ExpiryDate = next
	if p.ExtensionCount > 0 {
		p.ExtensionCount--
	}
	p.Status = DeriveStatus(SnapshotOf(*p), today)
	return nil
}

// LessonAfterExpiry names a linked lesson that a new expiry would leave
// outside the package window.
type LessonAfterExpiry struct {
	PackageID  string    `json:"package_id"`
	LessonID   string    `json:"lesson_id"`
	LessonDate time.Time `json:"lesson_date"`
	ExpiryDate time.Time `json:"expiry_date"`
}

// CheckLessonsFit reports the latest linked lesson when it is dated after the
// package's expiry. latest is nil when the package has no lessons.
func CheckLessonsFit(p models.Package, latest *models.LessonSummary) *LessonAfterExpiry {
	if latest == nil {
		return nil
	}
	expiry := DateOnly(p.ExpiryDate)
	lessonDay := DateOnly(latest.LessonDate)
	if !lessonDay.After(expiry) {
		return nil
	}
	return &LessonAfterExpiry{PackageID: p.ID, LessonID: latest.ID, LessonDate: lessonDay, ExpiryDate: expiry}
}
