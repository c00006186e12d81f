package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/lesson-package-api/internal/dto"
	"github.com/noah-isme/lesson-package-api/internal/ledger"
	"github.com/noah-isme/lesson-package-api/internal/models"
	"github.com/noah-isme/lesson-package-api/internal/repository"
	appErrors "github.com/noah-isme/lesson-package-api/pkg/errors"
)

type lessonRepository interface {
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Lesson, error)
	Create(ctx context.Context, exec sqlx.ExtContext, lesson *models.Lesson) error
	Update(ctx context.Context, exec sqlx.ExtContext, lesson *models.Lesson) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
	ListByPackage(ctx context.Context, packageID string) ([]models.Lesson, error)
	ListForStudentOnDate(ctx context.Context, exec sqlx.ExtContext, studentID string, date time.Time) ([]models.Lesson, error)
}

type lessonPackageRepository interface {
	LockMany(ctx context.Context, exec sqlx.ExtContext, ids []string) (map[string]*models.Package, error)
	SumHoursUsed(ctx context.Context, exec sqlx.ExtContext, id string) (decimal.Decimal, error)
	StudentIDs(ctx context.Context, exec sqlx.ExtContext, id string) ([]string, error)
	Create(ctx context.Context, exec sqlx.ExtContext, pkg *models.Package) error
	ReplaceStudents(ctx context.Context, exec sqlx.ExtContext, id string, studentIDs []string) error
}

type participantDirectory interface {
	StudentExists(ctx context.Context, id string) (bool, error)
	ProfessorExists(ctx context.Context, id string) (bool, error)
}

// OverflowConflict is the payload of a PACKAGE_OVERFLOW error. LessonID is
// set when the overflow comes from enlarging an existing lesson.
type OverflowConflict struct {
	ledger.Split
	LessonID string `json:"lesson_id,omitempty"`
}

// LessonOverlap names the lesson a new one would collide with.
type LessonOverlap struct {
	LessonID   string          `json:"lesson_id"`
	StudentID  string          `json:"student_id"`
	LessonDate time.Time       `json:"lesson_date"`
	StartTime  string          `json:"start_time"`
	Duration   decimal.Decimal `json:"duration"`
}

// LessonService schedules lessons and keeps the ledgers of the packages they
// consume up to date.
type LessonService struct {
	tx        txRunner
	lessons   lessonRepository
	packages  lessonPackageRepository
	directory participantDirectory
	ledger    *LedgerService
	cache     *CacheService
	activity  *ActivityService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// LessonServiceDeps groups the collaborators of LessonService.
type LessonServiceDeps struct {
	Tx        txRunner
	Lessons   lessonRepository
	Packages  lessonPackageRepository
	Directory participantDirectory
	Ledger    *LedgerService
	Cache     *CacheService
	Activity  *ActivityService
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
}

// NewLessonService constructs the lesson service.
func NewLessonService(deps LessonServiceDeps) *LessonService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &LessonService{
		tx:        deps.Tx,
		lessons:   deps.Lessons,
		packages:  deps.Packages,
		directory: deps.Directory,
		ledger:    deps.Ledger,
		cache:     deps.Cache,
		activity:  deps.Activity,
		metrics:   deps.Metrics,
		validator: deps.Validator,
		logger:    deps.Logger,
	}
}

// Create schedules a lesson. A package lesson is checked against the hours
// left in its package under the package row lock; a request that does not
// fit fails with an overflow conflict and writes nothing.
func (s *LessonService) Create(ctx context.Context, req dto.LessonRequest) (*models.Lesson, error) {
	lesson, err := s.buildLesson(req)
	if err != nil {
		return nil, err
	}
	if err := s.checkParticipants(ctx, lesson); err != nil {
		return nil, err
	}

	var touched []models.PackageDetail
	err = s.tx.WithTx(ctx, func(tx sqlx.ExtContext) error {
		if pkgID := lesson.LinkedPackageID(); pkgID != "" {
			locked, err := s.packages.LockMany(ctx, tx, []string{pkgID})
			if err != nil {
				return err
			}
			if err := s.fitInPackage(ctx, tx, lesson, locked[pkgID], decimal.Zero, ""); err != nil {
				return err
			}
		}
		if !req.AllowOverlap {
			if err := s.checkOverlap(ctx, tx, lesson); err != nil {
				return err
			}
		}
		if err := s.lessons.Create(ctx, tx, lesson); err != nil {
			return err
		}
		var err error
		touched, err = s.recompute(ctx, tx, lesson.LinkedPackageID())
		return err
	})
	if err != nil {
		return nil, trackConflict(s.metrics, internalError(err, "failed to create lesson"))
	}

	s.afterWrite(ctx, touched)
	s.activity.Record(ctx, models.ActivityCreate, models.EntityLesson, lesson.ID,
		"scheduled %s h lesson on %s", lesson.Duration.String(), lesson.LessonDate.Format(dateLayout))
	return lesson, nil
}

// Update replaces a lesson. When the lesson moves between packages both are
// recomputed; when it grows inside the same package its previous duration
// counts as available.
func (s *LessonService) Update(ctx context.Context, id string, req dto.LessonRequest) (*models.Lesson, error) {
	lesson, err := s.buildLesson(req)
	if err != nil {
		return nil, err
	}
	if err := s.checkParticipants(ctx, lesson); err != nil {
		return nil, err
	}

	var touched []models.PackageDetail
	err = s.tx.WithTx(ctx, func(tx sqlx.ExtContext) error {
		existing, err := s.lessons.LockByID(ctx, tx, id)
		if err != nil {
			if isNoRows(err) {
				return notFound("lesson not found")
			}
			return err
		}
		oldPkg, newPkg := existing.LinkedPackageID(), lesson.LinkedPackageID()
		locked, err := s.packages.LockMany(ctx, tx, []string{oldPkg, newPkg})
		if err != nil {
			return err
		}
		if newPkg != "" {
			credit := decimal.Zero
			if oldPkg == newPkg {
				credit = existing.Duration
			}
			if err := s.fitInPackage(ctx, tx, lesson, locked[newPkg], credit, existing.ID); err != nil {
				return err
			}
		}
		if !req.AllowOverlap {
			if err := s.checkOverlap(ctx, tx, lesson, existing.ID); err != nil {
				return err
			}
		}
		if err := s.save(ctx, tx, lesson, existing); err != nil {
			return err
		}
		touched, err = s.recompute(ctx, tx, oldPkg, newPkg)
		return err
	})
	if err != nil {
		return nil, trackConflict(s.metrics, internalError(err, "failed to update lesson"))
	}

	s.afterWrite(ctx, touched)
	s.activity.Record(ctx, models.ActivityUpdate, models.EntityLesson, lesson.ID, "updated lesson on %s", lesson.LessonDate.Format(dateLayout))
	return lesson, nil
}

// Delete removes a lesson and gives its hours back to its package.
func (s *LessonService) Delete(ctx context.Context, id string) error {
	var touched []models.PackageDetail
	err := s.tx.WithTx(ctx, func(tx sqlx.ExtContext) error {
		existing, err := s.lessons.LockByID(ctx, tx, id)
		if err != nil {
			if isNoRows(err) {
				return notFound("lesson not found")
			}
			return err
		}
		pkgID := existing.LinkedPackageID()
		if _, err := s.packages.LockMany(ctx, tx, []string{pkgID}); err != nil {
			return err
		}
		if err := s.lessons.Delete(ctx, tx, id); err != nil {
			return err
		}
		touched, err = s.recompute(ctx, tx, pkgID)
		return err
	})
	if err != nil {
		return internalError(err, "failed to delete lesson")
	}

	s.afterWrite(ctx, touched)
	s.activity.Record(ctx, models.ActivityDelete, models.EntityLesson, id, "deleted lesson")
	return nil
}

// Get returns a lesson.
func (s *LessonService) Get(ctx context.Context, id string) (*models.Lesson, error) {
	lesson, err := s.lessons.FindByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("lesson not found")
		}
		return nil, internalError(err, "failed to load lesson")
	}
	return lesson, nil
}

// ListByPackage returns the lessons consuming a package.
func (s *LessonService) ListByPackage(ctx context.Context, packageID string) ([]models.Lesson, error) {
	lessons, err := s.lessons.ListByPackage(ctx, packageID)
	if err != nil {
		return nil, internalError(err, "failed to list lessons")
	}
	if lessons == nil {
		lessons = []models.Lesson{}
	}
	return lessons, nil
}

// ResolveOverflow materialises a lesson that does not fit in its package
// according to the operator's choice, atomically:
//
//   - use_single keeps the part that fits in the package and books the excess
//     as an unpaid single lesson;
//   - use_new_package opens a successor package for the excess, starting the
//     Monday after the original expires and priced pro rata, and books the
//     excess against it.
//
// When req.LessonID is set the existing lesson is shrunk to the part that fits.
func (s *LessonService) ResolveOverflow(ctx context.Context, req dto.ResolveOverflowRequest) (*models.OverflowResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err)
	}
	lesson, err := s.buildLesson(req.Lesson)
	if err != nil {
		return nil, err
	}
	if !lesson.IsPackage {
		return nil, invalid("overflow resolution needs a package lesson")
	}
	if err := s.checkParticipants(ctx, lesson); err != nil {
		return nil, err
	}

	result := &models.OverflowResult{Resolution: req.Resolution}
	err = s.tx.WithTx(ctx, func(tx sqlx.ExtContext) error {
		var existing *models.Lesson
		if req.LessonID != nil && *req.LessonID != "" {
			var err error
			if existing, err = s.lessons.LockByID(ctx, tx, *req.LessonID); err != nil {
				if isNoRows(err) {
					return notFound("lesson not found")
				}
				return err
			}
		}

		oldPkg, pkgID := existing.LinkedPackageID(), lesson.LinkedPackageID()
		locked, err := s.packages.LockMany(ctx, tx, []string{pkgID, oldPkg})
		if err != nil {
			return err
		}
		pkg := locked[pkgID]
		if pkg == nil {
			return notFound("package not found")
		}
		students, err := s.packages.StudentIDs(ctx, tx, pkgID)
		if err != nil {
			return err
		}
		if err := attachToPackage(lesson, pkg, students); err != nil {
			return err
		}

		credit := decimal.Zero
		if existing != nil && oldPkg == pkgID {
			credit = existing.Duration
		}
		split, err := s.split(ctx, tx, pkg, lesson.Duration, credit)
		if err != nil {
			return err
		}
		if !req.Lesson.AllowOverlap {
			exclude := []string{}
			if existing != nil {
				exclude = append(exclude, existing.ID)
			}
			if err := s.checkOverlap(ctx, tx, lesson, exclude...); err != nil {
				return err
			}
		}

		touchedIDs := []string{oldPkg, pkgID}
		switch {
		case split == nil || !split.HasOverflow():
			if err := s.save(ctx, tx, lesson, existing); err != nil {
				return err
			}
			result.Lessons = append(result.Lessons, *lesson)

		case req.Resolution == ledger.ResolutionUseSingle:
			written, err := s.splitIntoSingle(ctx, tx, lesson, existing, *split)
			if err != nil {
				return err
			}
			result.Lessons = append(result.Lessons, written...)

		default:
			successor, written, err := s.splitIntoSuccessor(ctx, tx, lesson, existing, pkg, students, *split)
			if err != nil {
				return err
			}
			touchedIDs = append(touchedIDs, successor.ID)
			result.Lessons = append(result.Lessons, written...)
		}

		result.Packages, err = s.recompute(ctx, tx, touchedIDs...)
		return err
	})
	operation := "overflow_" + req.Resolution
	if err != nil {
		s.metrics.RecordOperation(operation, outcomeFor(err))
		return nil, trackConflict(s.metrics, internalError(err, "failed to resolve overflow"))
	}

	s.metrics.RecordOperation(operation, outcomeOK)
	s.logger.Info("lesson overflow resolved",
		zap.String("resolution", req.Resolution),
		zap.String("package_id", lesson.LinkedPackageID()),
		zap.Int("lessons_written", len(result.Lessons)),
		zap.Int("packages_touched", len(result.Packages)))
	s.afterWrite(ctx, result.Packages)
	for _, written := range result.Lessons {
		s.activity.Record(ctx, models.ActivityCreate, models.EntityLesson, written.ID,
			"booked %s h lesson on %s via %s", written.Duration.String(), written.LessonDate.Format(dateLayout), req.Resolution)
	}
	return result, nil
}

func (s *LessonService) splitIntoSingle(ctx context.Context, exec sqlx.ExtContext, lesson, existing *models.Lesson, split ledger.Split) ([]models.Lesson, error) {
	overflow, err := singleLesson(lesson, split)
	if err != nil {
		return nil, err
	}
	if !split.InPackageHours.IsPositive() {
		if err := s.save(ctx, exec, overflow, existing); err != nil {
			return nil, err
		}
		return []models.Lesson{*overflow}, nil
	}

	inPackage := withDuration(lesson, split.InPackageHours)
	if err := s.save(ctx, exec, inPackage, existing); err != nil {
		return nil, err
	}
	if err := s.lessons.Create(ctx, exec, overflow); err != nil {
		return nil, err
	}
	return []models.Lesson{*inPackage, *overflow}, nil
}

func (s *LessonService) splitIntoSuccessor(ctx context.Context, exec sqlx.ExtContext, lesson, existing *models.Lesson, pkg *models.Package, students []string, split ledger.Split) (*models.Package, []models.Lesson, error) {
	start := ledger.NextMondayAfter(pkg.ExpiryDate)
	note := fmt.Sprintf("overflow of package %s", pkg.ID)
	successor := &models.Package{
		Type:           models.PackageTypeFixed,
		StartDate:      start,
		ExpiryDate:     ledger.ComputeExpiry(start),
		TotalHours:     split.OverflowHours,
		RemainingHours: split.OverflowHours,
		PackageCost:    ledger.ProratedCost(pkg.PackageCost, pkg.TotalHours, split.OverflowHours),
		Status:         models.PackageStatusInProgress,
		Notes:          &note,
	}
	if err := s.packages.Create(ctx, exec, successor); err != nil {
		return nil, nil, err
	}
	if err := s.packages.ReplaceStudents(ctx, exec, successor.ID, students); err != nil {
		return nil, nil, err
	}

	overflow, err := singleLesson(lesson, split)
	if err != nil {
		return nil, nil, err
	}
	overflow.IsPackage = true
	overflow.PackageID = &successor.ID
	if err := attachToPackage(overflow, successor, students); err != nil {
		return nil, nil, err
	}

	if !split.InPackageHours.IsPositive() {
		if err := s.save(ctx, exec, overflow, existing); err != nil {
			return nil, nil, err
		}
		return successor, []models.Lesson{*overflow}, nil
	}

	inPackage := withDuration(lesson, split.InPackageHours)
	if err := s.save(ctx, exec, inPackage, existing); err != nil {
		return nil, nil, err
	}
	if err := s.lessons.Create(ctx, exec, overflow); err != nil {
		return nil, nil, err
	}
	return successor, []models.Lesson{*inPackage, *overflow}, nil
}

// fitInPackage validates that lesson may consume pkg and that its duration
// fits in the hours left, counting credit as already available.
func (s *LessonService) fitInPackage(ctx context.Context, exec sqlx.ExtContext, lesson *models.Lesson, pkg *models.Package, credit decimal.Decimal, lessonID string) error {
	if pkg == nil {
		return notFound("package not found")
	}
	students, err := s.packages.StudentIDs(ctx, exec, pkg.ID)
	if err != nil {
		return err
	}
	if err := attachToPackage(lesson, pkg, students); err != nil {
		return err
	}
	split, err := s.split(ctx, exec, pkg, lesson.Duration, credit)
	if err != nil {
		return err
	}
	if split != nil && split.HasOverflow() {
		return appErrors.WithDetails(appErrors.ErrOverflow, OverflowConflict{Split: *split, LessonID: lessonID})
	}
	return nil
}

// split measures requested hours against the package. Open packages have no
// ceiling and yield nil.
func (s *LessonService) split(ctx context.Context, exec sqlx.ExtContext, pkg *models.Package, requested, credit decimal.Decimal) (*ledger.Split, error) {
	used, err := s.packages.SumHoursUsed(ctx, exec, pkg.ID)
	if err != nil {
		return nil, err
	}
	available, bounded := ledger.Available(*pkg, used.Sub(credit))
	if !bounded {
		return nil, nil
	}
	split := ledger.ComputeSplit(pkg.ID, available, requested)
	return &split, nil
}

func (s *LessonService) checkOverlap(ctx context.Context, exec sqlx.ExtContext, lesson *models.Lesson, excludeIDs ...string) error {
	slot, ok, err := ledger.LessonSlot(lesson.LessonDate, lesson.StartTime, lesson.Duration)
	if err != nil {
		return invalid(err.Error())
	}
	if !ok {
		return nil
	}
	others, err := s.lessons.ListForStudentOnDate(ctx, exec, lesson.StudentID, lesson.LessonDate)
	if err != nil {
		return err
	}
	for _, other := range others {
		if contains(excludeIDs, other.ID) {
			continue
		}
		otherSlot, ok, err := ledger.LessonSlot(other.LessonDate, other.StartTime, other.Duration)
		if err != nil || !ok {
			continue
		}
		if slot.Overlaps(otherSlot) {
			return appErrors.WithDetails(appErrors.ErrLessonOverlap, LessonOverlap{
				LessonID:   other.ID,
				StudentID:  other.StudentID,
				LessonDate: ledger.DateOnly(other.LessonDate),
				StartTime:  *other.StartTime,
				Duration:   other.Duration,
			})
		}
	}
	return nil
}

func (s *LessonService) checkParticipants(ctx context.Context, lesson *models.Lesson) error {
	if s.directory == nil {
		return nil
	}
	ok, err := s.directory.ProfessorExists(ctx, lesson.ProfessorID)
	if err != nil {
		return internalError(err, "failed to check professor")
	}
	if !ok {
		return notFound("professor not found")
	}
	ok, err = s.directory.StudentExists(ctx, lesson.StudentID)
	if err != nil {
		return internalError(err, "failed to check student")
	}
	if !ok {
		return notFound("student not found")
	}
	return nil
}

func (s *LessonService) save(ctx context.Context, exec sqlx.ExtContext, lesson, existing *models.Lesson) error {
	if existing == nil {
		return s.lessons.Create(ctx, exec, lesson)
	}
	lesson.ID = existing.ID
	lesson.CreatedAt = existing.CreatedAt
	return s.lessons.Update(ctx, exec, lesson)
}

func (s *LessonService) recompute(ctx context.Context, exec sqlx.ExtContext, packageIDs ...string) ([]models.PackageDetail, error) {
	var details []models.PackageDetail
	for _, id := range repository.SortedUnique(packageIDs) {
		detail, err := s.ledger.RecomputeTx(ctx, exec, id)
		if err != nil {
			return nil, err
		}
		if detail != nil {
			details = append(details, *detail)
		}
	}
	return details, nil
}

func (s *LessonService) afterWrite(ctx context.Context, touched []models.PackageDetail) {
	var students []string
	for _, detail := range touched {
		students = append(students, detail.StudentIDs...)
	}
	s.cache.Invalidate(ctx, studentPackagesKeys(repository.SortedUnique(students))...)
}

func (s *LessonService) buildLesson(req dto.LessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err)
	}
	if err := requirePositive("duration", req.Duration); err != nil {
		return nil, err
	}
	if err := requireNonNegative("hourly_rate", req.HourlyRate); err != nil {
		return nil, err
	}
	date, err := parseDate("lesson_date", req.LessonDate)
	if err != nil {
		return nil, err
	}
	paymentDate, err := parseOptionalDate("payment_date", req.PaymentDate)
	if err != nil {
		return nil, err
	}

	lesson := &models.Lesson{
		ProfessorID:  req.ProfessorID,
		StudentID:    req.StudentID,
		LessonDate:   date,
		Duration:     req.Duration,
		HourlyRate:   req.HourlyRate,
		TotalPayment: req.Duration.Mul(req.HourlyRate).Round(2),
		IsPackage:    req.IsPackage,
		Notes:        req.Notes,
	}
	if req.StartTime != nil && *req.StartTime != "" {
		if _, err := ledger.ParseStartTime(*req.StartTime); err != nil {
			return nil, invalid("start_time must be HH:MM")
		}
		lesson.StartTime = req.StartTime
	}

	if req.IsPackage {
		if req.PackageID == nil || *req.PackageID == "" {
			return nil, invalid("package_id is required for package lessons")
		}
		lesson.PackageID = req.PackageID
		return lesson, nil
	}

	lesson.IsPaid = req.IsPaid
	if req.IsPaid {
		if paymentDate == nil {
			paymentDate = &date
		}
		lesson.PaymentDate = paymentDate
	}
	return lesson, nil
}

// attachToPackage checks that lesson may consume pkg and marks it as covered
// by the package: paid, on the package's payment date when it has one.
func attachToPackage(lesson *models.Lesson, pkg *models.Package, students []string) error {
	if !contains(students, lesson.StudentID) {
		return invalid("student is not assigned to the package")
	}
	if ledger.DateOnly(lesson.LessonDate).After(ledger.DateOnly(pkg.ExpiryDate)) {
		return invalid("package expires before the lesson date")
	}
	lesson.IsPaid = true
	if pkg.IsPaid && pkg.PaymentDate != nil {
		date := ledger.DateOnly(*pkg.PaymentDate)
		lesson.PaymentDate = &date
	} else {
		date := ledger.DateOnly(lesson.LessonDate)
		lesson.PaymentDate = &date
	}
	return nil
}

// withDuration copies lesson with a new duration and matching total.
func withDuration(lesson *models.Lesson, hours decimal.Decimal) *models.Lesson {
	out := *lesson
	out.Duration = hours
	out.TotalPayment = hours.Mul(lesson.HourlyRate).Round(2)
	return &out
}

// singleLesson books the overflow part of lesson as an unpaid lesson without
// package, starting when the in-package part ends.
func singleLesson(lesson *models.Lesson, split ledger.Split) (*models.Lesson, error) {
	out := withDuration(lesson, split.OverflowHours)
	out.ID = ""
	out.IsPackage = false
	out.PackageID = nil
	out.IsPaid = false
	out.PaymentDate = nil
	if split.InPackageHours.IsPositive() {
		start, err := ledger.StartAfter(lesson.StartTime, split.InPackageHours)
		if err != nil {
			return nil, invalid("start_time must be HH:MM")
		}
		out.StartTime = start
	}
	return out, nil
}
