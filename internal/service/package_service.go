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

type packageRepository interface {
	ledgerRepository
	FindByID(ctx context.Context, id string) (*models.Package, error)
	LockMany(ctx context.Context, exec sqlx.ExtContext, ids []string) (map[string]*models.Package, error)
	Create(ctx context.Context, exec sqlx.ExtContext, pkg *models.Package) error
	Update(ctx context.Context, exec sqlx.ExtContext, pkg *models.Package) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
	ReplaceStudents(ctx context.Context, exec sqlx.ExtContext, id string, studentIDs []string) error
	ListByStudents(ctx context.Context, exec sqlx.ExtContext, studentIDs []string) ([]models.StudentPackage, error)
	ListForStudent(ctx context.Context, studentID string) ([]models.PackageDetail, error)
	StudentLinks(ctx context.Context, packageIDs []string) (map[string][]string, error)
}

type studentLocker interface {
	LockStudents(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]string, error)
}

type packageLessonRepository interface {
	DeleteByPackage(ctx context.Context, exec sqlx.ExtContext, packageID string) ([]models.LessonSummary, error)
	LatestByPackage(ctx context.Context, exec sqlx.ExtContext, packageID string) (*models.LessonSummary, error)
}

// PackageConfig tunes package rules.
type PackageConfig struct {
	MaxStudents int
	CacheTTL    time.Duration
}

// PackageService manages lesson packages: creation under the assignment
// guard, edits, cascade deletes and weekly expiry extensions.
type PackageService struct {
	tx        txRunner
	packages  packageRepository
	lessons   packageLessonRepository
	students  studentLocker
	payments  paymentRepository
	ledger    *LedgerService
	cache     *CacheService
	activity  *ActivityService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       PackageConfig
}

// PackageServiceDeps groups the collaborators of PackageService.
type PackageServiceDeps struct {
	Tx        txRunner
	Packages  packageRepository
	Lessons   packageLessonRepository
	Students  studentLocker
	Payments  paymentRepository
	Ledger    *LedgerService
	Cache     *CacheService
	Activity  *ActivityService
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
}

// NewPackageService constructs the package service.
func NewPackageService(deps PackageServiceDeps, cfg PackageConfig) *PackageService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.MaxStudents <= 0 {
		cfg.MaxStudents = 3
	}
	return &PackageService{
		tx:        deps.Tx,
		packages:  deps.Packages,
		lessons:   deps.Lessons,
		students:  deps.Students,
		payments:  deps.Payments,
		ledger:    deps.Ledger,
		cache:     deps.Cache,
		activity:  deps.Activity,
		metrics:   deps.Metrics,
		validator: deps.Validator,
		logger:    deps.Logger,
		cfg:       cfg,
	}
}

// Create registers a package for one to three students. Unless allowMultiple
// is set, the students may not hold another package overlapping the new
// window that still has more than a quarter of its hours left.
func (s *PackageService) Create(ctx context.Context, req dto.CreatePackageRequest, allowMultiple bool) (*models.PackageDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err)
	}
	studentIDs := repository.SortedUnique(req.StudentIDs)
	if len(studentIDs) == 0 || len(studentIDs) > s.cfg.MaxStudents {
		return nil, invalid(fmt.Sprintf("a package needs between 1 and %d students", s.cfg.MaxStudents))
	}

	kind := models.PackageType(req.PackageType)
	if kind == "" {
		kind = models.PackageTypeFixed
	}
	if err := requireNonNegative("package_cost", req.PackageCost); err != nil {
		return nil, err
	}
	total := req.TotalHours
	if kind == models.PackageTypeOpen {
		total = decimal.Zero
	} else if err := requirePositive("total_hours", total); err != nil {
		return nil, err
	}

	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return nil, err
	}
	paymentDate, err := s.resolvePayment(req.IsPaid, req.PaymentDate, nil)
	if err != nil {
		return nil, err
	}

	pkg := &models.Package{
		Type:           kind,
		StartDate:      start,
		ExpiryDate:     ledger.ComputeExpiry(start),
		TotalHours:     total,
		RemainingHours: total,
		PackageCost:    req.PackageCost,
		IsPaid:         req.IsPaid,
		PaymentDate:    paymentDate,
		Status:         models.PackageStatusInProgress,
		Notes:          req.Notes,
	}

	var detail *models.PackageDetail
	err = s.tx.WithTx(ctx, func(tx sqlx.ExtContext) error {
		if err := s.lockStudents(ctx, tx, studentIDs); err != nil {
			return err
		}
		if err := s.guard(ctx, tx, studentIDs, ledger.PackageWindow(pkg.StartDate, pkg.ExpiryDate), allowMultiple, ""); err != nil {
			return err
		}
		if err := s.packages.Create(ctx, tx, pkg); err != nil {
			return err
		}
		if err := s.packages.ReplaceStudents(ctx, tx, pkg.ID, studentIDs); err != nil {
			return err
		}
		var err error
		detail, err = s.ledger.RecomputeTx(ctx, tx, pkg.ID)
		return err
	})
	if err != nil {
		return nil, trackConflict(s.metrics, internalError(err, "failed to create package"))
	}

	s.cache.Invalidate(ctx, studentPackagesKeys(studentIDs)...)
	s.activity.Record(ctx, models.ActivityCreate, models.EntityPackage, detail.ID,
		"created %s package of %s hours from %s", detail.Type, detail.TotalHours.String(), detail.StartDate.Format(dateLayout))
	return detail, nil
}

// GuardAssignment checks whether the students may be given a package over
// window. It locks the student rows for the duration of the check only.
func (s *PackageService) GuardAssignment(ctx context.Context, studentIDs []string, window ledger.Window, allowMultiple bool) error {
	err := s.tx.WithTx(ctx, func(tx sqlx.ExtContext) error {
		ids := repository.SortedUnique(studentIDs)
		if err := s.lockStudents(ctx, tx, ids); err != nil {
			return err
		}
		return s.guard(ctx, tx, ids, window, allowMultiple, "")
	})
	return trackConflict(s.metrics, err)
}

// Get returns a package with its students, hours used and payment summary.
// Status is evaluated for today without being written back.
func (s *PackageService) Get(ctx context.Context, id string) (*models.PackageDetail, error) {
	var detail *models.PackageDetail
	err := s.tx.WithTx(ctx, func(tx sqlx.ExtContext) error {
		pkg, err := s.packages.FindByID(ctx, id)
		if err != nil {
			if isNoRows(err) {
				return notFound("package not found")
			}
			return err
		}
		used, err := s.packages.SumHoursUsed(ctx, tx, id)
		if err != nil {
			return err
		}
		students, err := s.packages.StudentIDs(ctx, tx, id)
		if err != nil {
			return err
		}
		detail = &models.PackageDetail{Package: *pkg, StudentIDs: students, HoursUsed: used}
		return nil
	})
	if err != nil {
		return nil, internalError(err, "failed to load package")
	}

	detail.Status = s.ledger.DeriveStatus(detail.Package)
	if s.payments != nil {
		payments, err := s.payments.ListByPackage(ctx, id)
		if err != nil {
			return nil, internalError(err, "failed to load package payments")
		}
		summary := ledger.SummarizePayments(detail.PackageCost, payments)
		detail.Payments = &summary
	}
	return detail, nil
}

// ListByStudent returns the packages of a student, newest first. The second
// return value reports whether the listing came from cache.
func (s *PackageService) ListByStudent(ctx context.Context, studentID string) ([]models.PackageDetail, bool, error) {
	var items []models.PackageDetail
	key := studentPackagesKey(studentID)
	if hit, _ := s.cache.Get(ctx, key, &items); hit {
		s.deriveStatuses(items)
		return items, true, nil
	}

	items, err := s.packages.ListForStudent(ctx, studentID)
	if err != nil {
		return nil, false, internalError(err, "failed to list packages")
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	links, err := s.packages.StudentLinks(ctx, ids)
	if err != nil {
		return nil, false, internalError(err, "failed to list package students")
	}
	for i := range items {
		items[i].StudentIDs = links[items[i].ID]
	}
	if items == nil {
		items = []models.PackageDetail{}
	}

	_ = s.cache.Set(ctx, key, items, s.cfg.CacheTTL)
	s.deriveStatuses(items)
	return items, false, nil
}

// Update applies a partial edit. A new start date moves the expiry while
// keeping the applied extensions; total hours may not drop below the hours
// already consumed; a changed window or student set is re-guarded.
func (s *PackageService) Update(ctx context.Context, id string, req dto.UpdatePackageRequest, allowMultiple bool) (*models.PackageDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err)
	}

	var (
		detail      *models.PackageDetail
		oldStudents []string
	)
	err := s.tx.WithTx(ctx, func(tx sqlx.ExtContext) error {
		pkg, err := s.packages.LockByID(ctx, tx, id)
		if err != nil {
			if isNoRows(err) {
				return notFound("package not found")
			}
			return err
		}
		oldStudents, err = s.packages.StudentIDs(ctx, tx, id)
		if err != nil {
			return err
		}

		windowChanged := false
		if req.StartDate != nil {
			start, err := parseDate("start_date", *req.StartDate)
			if err != nil {
				return err
			}
			if !start.Equal(ledger.DateOnly(pkg.StartDate)) {
				pkg.StartDate = start
				pkg.ExpiryDate = ledger.ExpiryWithExtensions(start, pkg.ExtensionCount)
				windowChanged = true
				if err := s.checkLessonsFit(ctx, tx, pkg); err != nil {
					return err
				}
			}
		}

		if req.TotalHours != nil {
			if pkg.Type == models.PackageTypeOpen && !pkg.IsPaid {
				return invalid("total_hours of an unpaid open package follows its lessons")
			}
			if err := requireNonNegative("total_hours", *req.TotalHours); err != nil {
				return err
			}
			used, err := s.packages.SumHoursUsed(ctx, tx, id)
			if err != nil {
				return err
			}
			if req.TotalHours.LessThan(used) {
				return appErrors.WithDetails(
					appErrors.Clone(appErrors.ErrValidation, "total_hours cannot be lower than the hours already used"),
					map[string]string{"hours_used": used.String()},
				)
			}
			pkg.TotalHours = *req.TotalHours
		}

		if req.PackageCost != nil {
			if err := requireNonNegative("package_cost", *req.PackageCost); err != nil {
				return err
			}
			pkg.PackageCost = *req.PackageCost
		}

		if req.IsPaid != nil || req.PaymentDate != nil {
			paid := pkg.IsPaid
			if req.IsPaid != nil {
				paid = *req.IsPaid
			}
			paymentDate, err := s.resolvePayment(paid, req.PaymentDate, pkg.PaymentDate)
			if err != nil {
				return err
			}
			pkg.IsPaid = paid
			pkg.PaymentDate = paymentDate
		}

		if req.Notes != nil {
			pkg.Notes = req.Notes
		}

		students := oldStudents
		studentsChanged := false
		if req.StudentIDs != nil {
			students = repository.SortedUnique(req.StudentIDs)
			if len(students) == 0 || len(students) > s.cfg.MaxStudents {
				return invalid(fmt.Sprintf("a package needs between 1 and %d students", s.cfg.MaxStudents))
			}
			studentsChanged = !equalIDs(students, oldStudents)
			if studentsChanged {
				if err := s.lockStudents(ctx, tx, students); err != nil {
					return err
				}
			}
		}

		if windowChanged || studentsChanged {
			window := ledger.PackageWindow(pkg.StartDate, pkg.ExpiryDate)
			if err := s.guard(ctx, tx, students, window, allowMultiple, pkg.ID); err != nil {
				return err
			}
		}

		if err := s.packages.Update(ctx, tx, pkg); err != nil {
			return err
		}
		if studentsChanged {
			if err := s.packages.ReplaceStudents(ctx, tx, id, students); err != nil {
				return err
			}
		}
		detail, err = s.ledger.RecomputeTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, trackConflict(s.metrics, internalError(err, "failed to update package"))
	}

	s.cache.Invalidate(ctx, studentPackagesKeys(append(oldStudents, detail.StudentIDs...))...)
	s.activity.Record(ctx, models.ActivityUpdate, models.EntityPackage, id, "updated package")
	return detail, nil
}

// Delete removes a package together with the lessons consuming it, its
// student links and its payments.
func (s *PackageService) Delete(ctx context.Context, id string) (*models.DeletedPackage, error) {
	var (
		deleted  []models.LessonSummary
		students []string
	)
	err := s.tx.WithTx(ctx, func(tx sqlx.ExtContext) error {
		if _, err := s.packages.LockByID(ctx, tx, id); err != nil {
			if isNoRows(err) {
				return notFound("package not found")
			}
			return err
		}
		var err error
		if students, err = s.packages.StudentIDs(ctx, tx, id); err != nil {
			return err
		}
		if deleted, err = s.lessons.DeleteByPackage(ctx, tx, id); err != nil {
			return err
		}
		return s.packages.Delete(ctx, tx, id)
	})
	if err != nil {
		return nil, internalError(err, "failed to delete package")
	}
	if deleted == nil {
		deleted = []models.LessonSummary{}
	}

	s.cache.Invalidate(ctx, studentPackagesKeys(students)...)
	s.activity.Record(ctx, models.ActivityDelete, models.EntityPackage, id, "deleted package and %d lesson(s)", len(deleted))
	return &models.DeletedPackage{PackageID: id, DeletedLessons: deleted}, nil
}

// Extend pushes the expiry one week forward. It is refused when any student
// of the package already has a package starting after the current expiry.
func (s *PackageService) Extend(ctx context.Context, id string) (*models.PackageDetail, error) {
	var detail *models.PackageDetail
	err := s.tx.WithTx(ctx, func(tx sqlx.ExtContext) error {
		pkg, err := s.packages.LockByID(ctx, tx, id)
		if err != nil {
			if isNoRows(err) {
				return notFound("package not found")
			}
			return err
		}
		students, err := s.packages.StudentIDs(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := s.students.LockStudents(ctx, tx, students); err != nil {
			return err
		}
		others, err := s.packages.ListByStudents(ctx, tx, students)
		if err != nil {
			return err
		}
		if block := ledger.FindSuccessor(*pkg, others); block != nil {
			return appErrors.WithDetails(appErrors.ErrExtensionBlocked, block)
		}

		ledger.ApplyExtension(pkg)
		if err := s.packages.Update(ctx, tx, pkg); err != nil {
			return err
		}
		detail, err = s.ledger.RecomputeTx(ctx, tx, id)
		return err
	})
	if err != nil {
		s.metrics.RecordOperation("extend", outcomeFor(err))
		return nil, trackConflict(s.metrics, internalError(err, "failed to extend package"))
	}

	s.metrics.RecordOperation("extend", outcomeOK)
	s.logger.Info("package extended",
		zap.String("package_id", id),
		zap.Time("expiry_date", detail.ExpiryDate),
		zap.Int("extension_count", detail.ExtensionCount))
	s.cache.Invalidate(ctx, studentPackagesKeys(detail.StudentIDs)...)
	s.activity.Record(ctx, models.ActivityExtend, models.EntityPackage, id, "extended expiry to %s", detail.ExpiryDate.Format(dateLayout))
	return detail, nil
}

// CancelExtension takes one week back, never going below the base expiry.
func (s *PackageService) CancelExtension(ctx context.Context, id string) (*models.PackageDetail, error) {
	var detail *models.PackageDetail
	err := s.tx.WithTx(ctx, func(tx sqlx.ExtContext) error {
		pkg, err := s.packages.LockByID(ctx, tx, id)
		if err != nil {
			if isNoRows(err) {
				return notFound("package not found")
			}
			return err
		}
		if noExt := ledger.CancelExtension(pkg, s.ledger.Today()); noExt != nil {
			return appErrors.WithDetails(appErrors.ErrNoExtension, noExt)
		}
		if err := s.checkLessonsFit(ctx, tx, pkg); err != nil {
			return err
		}
		if err := s.packages.Update(ctx, tx, pkg); err != nil {
			return err
		}
		detail, err = s.ledger.RecomputeTx(ctx, tx, id)
		return err
	})
	if err != nil {
		s.metrics.RecordOperation("cancel_extension", outcomeFor(err))
		return nil, trackConflict(s.metrics, internalError(err, "failed to cancel extension"))
	}

	s.metrics.RecordOperation("cancel_extension", outcomeOK)
	s.logger.Info("package extension cancelled",
		zap.String("package_id", id),
		zap.Time("expiry_date", detail.ExpiryDate),
		zap.Int("extension_count", detail.ExtensionCount))
	s.cache.Invalidate(ctx, studentPackagesKeys(detail.StudentIDs)...)
	s.activity.Record(ctx, models.ActivityExtend, models.EntityPackage, id, "cancelled extension, expiry back to %s", detail.ExpiryDate.Format(dateLayout))
	return detail, nil
}

// Recompute reconciles a package's hours and status with its lessons.
func (s *PackageService) Recompute(ctx context.Context, id string) (*models.PackageDetail, error) {
	detail, err := s.ledger.Recompute(ctx, id)
	if err != nil {
		return nil, internalError(err, "failed to recompute package")
	}
	if detail == nil {
		return nil, notFound("package not found")
	}
	s.cache.Invalidate(ctx, studentPackagesKeys(detail.StudentIDs)...)
	return detail, nil
}

// checkLessonsFit refuses an expiry that would leave a linked lesson outside
// the package window. The package row lock keeps new lessons from linking
// concurrently.
func (s *PackageService) checkLessonsFit(ctx context.Context, exec sqlx.ExtContext, pkg *models.Package) error {
	latest, err := s.lessons.LatestByPackage(ctx, exec, pkg.ID)
	if err != nil {
		return err
	}
	if stranded := ledger.CheckLessonsFit(*pkg, latest); stranded != nil {
		return appErrors.WithDetails(appErrors.ErrLessonAfterExpiry, stranded)
	}
	return nil
}

func (s *PackageService) lockStudents(ctx context.Context, exec sqlx.ExtContext, studentIDs []string) error {
	found, err := s.students.LockStudents(ctx, exec, studentIDs)
	if err != nil {
		return err
	}
	for _, id := range studentIDs {
		if !contains(found, id) {
			return notFound(fmt.Sprintf("student %s not found", id))
		}
	}
	return nil
}

func (s *PackageService) guard(ctx context.Context, exec sqlx.ExtContext, studentIDs []string, window ledger.Window, allowMultiple bool, excludeID string) error {
	if allowMultiple {
		return nil
	}
	existing, err := s.packages.ListByStudents(ctx, exec, studentIDs)
	if err != nil {
		return err
	}
	if conflict := ledger.FindOverlap(window, existing, excludeID); conflict != nil {
		return appErrors.WithDetails(appErrors.ErrOverlappingPackage, conflict)
	}
	return nil
}

// resolvePayment keeps payment_date present exactly when the package is paid.
func (s *PackageService) resolvePayment(paid bool, raw *string, current *time.Time) (*time.Time, error) {
	date, err := parseOptionalDate("payment_date", raw)
	if err != nil {
		return nil, err
	}
	if !paid {
		if date != nil {
			return nil, invalid("payment_date requires is_paid")
		}
		return nil, nil
	}
	if date != nil {
		return date, nil
	}
	if current != nil {
		return current, nil
	}
	today := s.ledger.Today()
	return &today, nil
}

func (s *PackageService) deriveStatuses(items []models.PackageDetail) {
	for i := range items {
		items[i].Status = s.ledger.DeriveStatus(items[i].Package)
	}
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func outcomeFor(err error) string {
	if appErr := appErrors.FromError(err); appErr != nil && appErr.Code != appErrors.ErrInternal.Code {
		return outcomeConflict
	}
	return outcomeError
}
