package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lesson-package-api/internal/dto"
	"github.com/noah-isme/lesson-package-api/internal/ledger"
	"github.com/noah-isme/lesson-package-api/internal/models"
	appErrors "github.com/noah-isme/lesson-package-api/pkg/errors"
)

func createRequest(start string, students ...string) dto.CreatePackageRequest {
	return dto.CreatePackageRequest{
		StudentIDs:  students,
		StartDate:   start,
		TotalHours:  dec("10"),
		PackageCost: dec("200"),
	}
}

func TestPackageCreateComputesExpiry(t *testing.T) {
	h := newLedgerHarness(t, ledgerToday)

	detail, err := h.packages.Create(context.Background(), createRequest("2024-01-10", "stu-2", "stu-1"), false)
	require.NoError(t, err)
	assert.Equal(t, models.PackageTypeFixed, detail.Type)
	assert.Equal(t, mustDay(t, "2024-01-08"), ledger.WeekStartMonday(detail.StartDate))
	assert.Equal(t, mustDay(t, "2024-02-04"), detail.ExpiryDate)
	assert.True(t, detail.RemainingHours.Equal(dec("10")))
	assert.Equal(t, models.PackageStatusInProgress, detail.Status)
	assert.Equal(t, []string{"stu-1", "stu-2"}, detail.StudentIDs)
	assert.Len(t, h.store.activity, 1)
}

func TestPackageCreateValidation(t *testing.T) {
	h := newLedgerHarness(t, ledgerToday)
	ctx := context.Background()

	_, err := h.packages.Create(ctx, createRequest("2024-01-10"), false)
	requireAppError(t, err, appErrors.ErrValidation)

	_, err = h.packages.Create(ctx, createRequest("2024-01-10", "stu-1", "stu-2", "stu-3", "stu-4"), false)
	requireAppError(t, err, appErrors.ErrValidation)

	_, err = h.packages.Create(ctx, createRequest("10/01/2024", "stu-1"), false)
	requireAppError(t, err, appErrors.ErrValidation)

	_, err = h.packages.Create(ctx, createRequest("2024-01-10", "ghost"), false)
	requireAppError(t, err, appErrors.ErrNotFound)

	req := createRequest("2024-01-10", "stu-1")
	req.TotalHours = dec("0")
	_, err = h.packages.Create(ctx, req, false)
	requireAppError(t, err, appErrors.ErrValidation)

	req = createRequest("2024-01-10", "stu-1")
	req.PaymentDate = strPtr("2024-01-09")
	_, err = h.packages.Create(ctx, req, false)
	requireAppError(t, err, appErrors.ErrValidation)
}

func TestPackageCreatePaidDefaultsPaymentDate(t *testing.T) {
	h := newLedgerHarness(t, ledgerToday)
	req := createRequest("2024-01-10", "stu-1")
	req.IsPaid = true

	detail, err := h.packages.Create(context.Background(), req, false)
	require.NoError(t, err)
	require.NotNil(t, detail.PaymentDate)
	assert.Equal(t, mustDay(t, ledgerToday), *detail.PaymentDate)
}

func TestPackageGuardBlocksOverlap(t *testing.T) {
	h := newLedgerHarness(t, ledgerToday)
	ctx := context.Background()
	existing, err := h.packages.Create(ctx, createRequest("2024-01-08", "stu-1"), false)
	require.NoError(t, err)

	_, err = h.packages.Create(ctx, createRequest("2024-01-29", "stu-2", "stu-1"), false)
	appErr := requireAppError(t, err, appErrors.ErrOverlappingPackage)
	conflict, ok := appErr.Details.(*ledger.OverlapConflict)
	require.True(t, ok)
	assert.Equal(t, existing.ID, conflict.PackageID)
	assert.Equal(t, "stu-1", conflict.StudentID)
	assert.Equal(t, existing.ExpiryDate, conflict.ExpiryDate)

	_, err = h.packages.Create(ctx, createRequest("2024-01-29", "stu-1"), true)
	require.NoError(t, err)

	_, err = h.packages.Create(ctx, createRequest("2024-02-05", "stu-2"), false)
	require.NoError(t, err)
}

func TestPackageGuardAllowsNearlyExhausted(t *testing.T) {
	h := newLedgerHarness(t, ledgerToday)
	ctx := context.Background()
	existing, err := h.packages.Create(ctx, createRequest("2024-01-08", "stu-1"), false)
	require.NoError(t, err)

	lesson := packageLesson(existing.ID, "2024-01-09", "7.4")
	_, err = h.lessons.Create(ctx, lesson)
	require.NoError(t, err)
	window := ledger.PackageWindow(mustDay(t, "2024-01-15"), mustDay(t, "2024-02-11"))
	err = h.packages.GuardAssignment(ctx, []string{"stu-1"}, window, false)
	requireAppError(t, err, appErrors.ErrOverlappingPackage)

	_, err = h.lessons.Create(ctx, packageLesson(existing.ID, "2024-01-10", "0.1"))
	require.NoError(t, err)
	require.NoError(t, h.packages.GuardAssignment(ctx, []string{"stu-1"}, window, false))
}

func TestPackageGetDerivesStatusLazily(t *testing.T) {
	h := newLedgerHarness(t, "2024-03-01")
	pkg := h.seedPackage(t, fixedPackage(t, "2024-01-01", "10", "200"), "stu-1")

	detail, err := h.packages.Get(context.Background(), pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PackageStatusExpired, detail.Status)
	require.NotNil(t, detail.Payments)
	assert.Equal(t, models.PaymentStatusUnpaid, detail.Payments.Status)
	assert.Equal(t, models.PackageStatusInProgress, h.pkg(t, pkg.ID).Status)

	_, err = h.packages.Get(context.Background(), "missing")
	requireAppError(t, err, appErrors.ErrNotFound)
}

func TestPackageListByStudent(t *testing.T) {
	h := newLedgerHarness(t, ledgerToday)
	ctx := context.Background()
	first, err := h.packages.Create(ctx, createRequest("2024-01-08", "stu-1", "stu-2"), false)
	require.NoError(t, err)
	_, err = h.packages.Create(ctx, createRequest("2024-02-05", "stu-1"), false)
	require.NoError(t, err)

	items, cached, err := h.packages.ListByStudent(ctx, "stu-1")
	require.NoError(t, err)
	assert.False(t, cached)
	require.Len(t, items, 2)
	assert.Equal(t, mustDay(t, "2024-02-05"), items[0].StartDate)
	assert.Equal(t, first.ID, items[1].ID)
	assert.Equal(t, []string{"stu-1", "stu-2"}, items[1].StudentIDs)

	items, _, err = h.packages.ListByStudent(ctx, "stu-4")
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestPackageUpdate(t *testing.T) {
	h := newLedgerHarness(t, ledgerToday)
	ctx := context.Background()
	detail, err := h.packages.Create(ctx, createRequest("2024-01-08", "stu-1"), false)
	require.NoError(t, err)
	_, err = h.lessons.Create(ctx, packageLesson(detail.ID, "2024-01-09", "4"))
	require.NoError(t, err)

	tooLow := dec("3")
	_, err = h.packages.Update(ctx, detail.ID, dto.UpdatePackageRequest{TotalHours: &tooLow}, false)
	requireAppError(t, err, appErrors.ErrValidation)

	total := dec("6")
	paid := true
	updated, err := h.packages.Update(ctx, detail.ID, dto.UpdatePackageRequest{
		TotalHours:  &total,
		IsPaid:      &paid,
		PaymentDate: strPtr("2024-01-09"),
		StartDate:   strPtr("2024-01-03"),
		StudentIDs:  []string{"stu-1", "stu-3"},
	}, false)
	require.NoError(t, err)
	assert.True(t, updated.RemainingHours.Equal(dec("2")))
	assert.True(t, updated.IsPaid)
	assert.Equal(t, mustDay(t, "2024-01-28"), updated.ExpiryDate)
	assert.Equal(t, []string{"stu-1", "stu-3"}, updated.StudentIDs)

	_, err = h.packages.Update(ctx, "missing", dto.UpdatePackageRequest{TotalHours: &total}, false)
	requireAppError(t, err, appErrors.ErrNotFound)
}

func TestPackageUpdateKeepsExtensions(t *testing.T) {
	h := newLedgerHarness(t, ledgerToday)
	ctx := context.Background()
	detail, err := h.packages.Create(ctx, createRequest("2024-01-08", "stu-1"), false)
	require.NoError(t, err)
	_, err = h.packages.Extend(ctx, detail.ID)
	require.NoError(t, err)

	updated, err := h.packages.Update(ctx, detail.ID, dto.UpdatePackageRequest{StartDate: strPtr("2024-01-15")}, false)
	require.NoError(t, err)
	assert.Equal(t, mustDay(t, "2024-02-18"), updated.ExpiryDate)
	assert.Equal(t, 1, updated.ExtensionCount)
}

func TestPackageDeleteCascades(t *testing.T) {
	h := newLedgerHarness(t, ledgerToday)
	ctx := context.Background()
	detail, err := h.packages.Create(ctx, createRequest("2024-01-08", "stu-1"), false)
	require.NoError(t, err)
	_, err = h.lessons.Create(ctx, packageLesson(detail.ID, "2024-01-09", "2"))
	require.NoError(t, err)
	_, err = h.payments.Add(ctx, detail.ID, dto.CreatePaymentRequest{Amount: dec("50"), PaymentDate: "2024-01-09"})
	require.NoError(t, err)

	deleted, err := h.packages.Delete(ctx, detail.ID)
	require.NoError(t, err)
	assert.Equal(t, detail.ID, deleted.PackageID)
	require.Len(t, deleted.DeletedLessons, 1)
	assert.Zero(t, h.lessonCount())
	assert.Empty(t, h.store.payments)
	assert.Empty(t, h.store.links[detail.ID])

	_, err = h.packages.Delete(ctx, detail.ID)
	requireAppError(t, err, appErrors.ErrNotFound)
}

func TestPackageExtendAndCancel(t *testing.T) {
	h := newLedgerHarness(t, ledgerToday)
	ctx := context.Background()
	pkg := h.seedPackage(t, fixedPackage(t, "2024-01-01", "10", "200"), "stu-1")
	require.Equal(t, mustDay(t, "2024-01-28"), pkg.ExpiryDate)

	extended, err := h.packages.Extend(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, mustDay(t, "2024-02-04"), extended.ExpiryDate)
	assert.Equal(t, 1, extended.ExtensionCount)
	assert.Equal(t, models.PackageStatusInProgress, extended.Status)

	cancelled, err := h.packages.CancelExtension(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, mustDay(t, "2024-01-28"), cancelled.ExpiryDate)
	assert.Equal(t, 0, cancelled.ExtensionCount)

	_, err = h.packages.CancelExtension(ctx, pkg.ID)
	appErr := requireAppError(t, err, appErrors.ErrNoExtension)
	assert.NotNil(t, appErr.Details)
	assert.Equal(t, mustDay(t, "2024-01-28"), h.pkg(t, pkg.ID).ExpiryDate)
}

func TestPackageCancelExtensionKeepsLaterLessons(t *testing.T) {
	h := newLedgerHarness(t, ledgerToday)
	ctx := context.Background()
	pkg := h.seedPackage(t, fixedPackage(t, "2024-01-01", "10", "200"), "stu-1")

	_, err := h.packages.Extend(ctx, pkg.ID)
	require.NoError(t, err)
	lesson, err := h.lessons.Create(ctx, packageLesson(pkg.ID, "2024-02-02", "2"))
	require.NoError(t, err)

	_, err = h.packages.CancelExtension(ctx, pkg.ID)
	appErr := requireAppError(t, err, appErrors.ErrLessonAfterExpiry)
	stranded, ok := appErr.Details.(*ledger.LessonAfterExpiry)
	require.True(t, ok)
	assert.Equal(t, lesson.ID, stranded.LessonID)
	assert.Equal(t, mustDay(t, "2024-01-28"), stranded.ExpiryDate)

	stored := h.pkg(t, pkg.ID)
	assert.Equal(t, mustDay(t, "2024-02-04"), stored.ExpiryDate)
	assert.Equal(t, 1, stored.ExtensionCount)
}

func TestPackageUpdateStartKeepsLessonsInWindow(t *testing.T) {
	h := newLedgerHarness(t, ledgerToday)
	ctx := context.Background()
	detail, err := h.packages.Create(ctx, createRequest("2024-01-08", "stu-1"), false)
	require.NoError(t, err)
	require.Equal(t, mustDay(t, "2024-02-04"), detail.ExpiryDate)
	lesson, err := h.lessons.Create(ctx, packageLesson(detail.ID, "2024-02-01", "2"))
	require.NoError(t, err)

	_, err = h.packages.Update(ctx, detail.ID, dto.UpdatePackageRequest{StartDate: strPtr("2023-12-25")}, false)
	appErr := requireAppError(t, err, appErrors.ErrLessonAfterExpiry)
	stranded, ok := appErr.Details.(*ledger.LessonAfterExpiry)
	require.True(t, ok)
	assert.Equal(t, lesson.ID, stranded.LessonID)
	assert.Equal(t, mustDay(t, "2024-01-21"), stranded.ExpiryDate)
	assert.Equal(t, mustDay(t, "2024-02-04"), h.pkg(t, detail.ID).ExpiryDate)

	moved, err := h.packages.Update(ctx, detail.ID, dto.UpdatePackageRequest{StartDate: strPtr("2024-01-15")}, false)
	require.NoError(t, err)
	assert.Equal(t, mustDay(t, "2024-02-11"), moved.ExpiryDate)
}

func TestPackageExtendBlockedBySuccessor(t *testing.T) {
	h := newLedgerHarness(t, ledgerToday)
	ctx := context.Background()
	pkg := h.seedPackage(t, fixedPackage(t, "2024-01-01", "10", "200"), "stu-1", "stu-2")
	successor := h.seedPackage(t, fixedPackage(t, "2024-01-29", "10", "200"), "stu-2")

	_, err := h.packages.Extend(ctx, pkg.ID)
	appErr := requireAppError(t, err, appErrors.ErrExtensionBlocked)
	block, ok := appErr.Details.(*ledger.ExtensionBlock)
	require.True(t, ok)
	assert.Equal(t, successor.ID, block.SuccessorPackageID)
	assert.Equal(t, "stu-2", block.StudentID)
	assert.Equal(t, mustDay(t, "2024-01-28"), h.pkg(t, pkg.ID).ExpiryDate)

	_, err = h.packages.Extend(ctx, "missing")
	requireAppError(t, err, appErrors.ErrNotFound)
}

func TestPackageRecompute(t *testing.T) {
	h := newLedgerHarness(t, ledgerToday)
	ctx := context.Background()
	pkg := h.seedPackage(t, fixedPackage(t, "2024-01-08", "5", "100"), "stu-1")
	h.store.lessons["manual"] = models.Lesson{
		ID:         "manual",
		StudentID:  "stu-1",
		LessonDate: mustDay(t, "2024-01-09"),
		Duration:   dec("2"),
		IsPackage:  true,
		PackageID:  &pkg.ID,
	}

	detail, err := h.packages.Recompute(ctx, pkg.ID)
	require.NoError(t, err)
	assert.True(t, detail.RemainingHours.Equal(dec("3")))
	assert.True(t, detail.HoursUsed.Equal(dec("2")))

	again, err := h.packages.Recompute(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, detail.Package, again.Package)

	_, err = h.packages.Recompute(ctx, "missing")
	requireAppError(t, err, appErrors.ErrNotFound)

	missing, err := h.ledger.Recompute(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRecomputeMarksExhaustedExpiredPackages(t *testing.T) {
	h := newLedgerHarness(t, "2024-03-01")
	ctx := context.Background()
	unpaid := h.seedPackage(t, fixedPackage(t, "2024-01-01", "2", "40"), "stu-1")
	paidPkg := fixedPackage(t, "2024-01-01", "2", "40")
	paidPkg.IsPaid = true
	paid := h.seedPackage(t, paidPkg, "stu-2")
	for _, id := range []string{unpaid.ID, paid.ID} {
		pkgID := id
		h.store.lessons["l-"+id] = models.Lesson{ID: "l-" + id, LessonDate: mustDay(t, "2024-01-02"), Duration: dec("2"), IsPackage: true, PackageID: &pkgID}
	}

	detail, err := h.packages.Recompute(ctx, unpaid.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PackageStatusExpired, detail.Status)

	detail, err = h.packages.Recompute(ctx, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PackageStatusCompleted, detail.Status)
}
