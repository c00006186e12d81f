package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/lesson-package-api/internal/ledger"
	"github.com/noah-isme/lesson-package-api/internal/models"
)

type ledgerRepository interface {
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Package, error)
	SumHoursUsed(ctx context.Context, exec sqlx.ExtContext, id string) (decimal.Decimal, error)
	UpdateLedger(ctx context.Context, exec sqlx.ExtContext, id string, fields models.HourFields) error
	StudentIDs(ctx context.Context, exec sqlx.ExtContext, id string) ([]string, error)
}

// LedgerService keeps a package's hour columns and status consistent with
// the lessons consuming it.
type LedgerService struct {
	tx       txRunner
	packages ledgerRepository
	clock    ledger.Clock
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewLedgerService constructs the ledger service.
func NewLedgerService(tx txRunner, packages ledgerRepository, clock ledger.Clock, metrics *MetricsService, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{tx: tx, packages: packages, clock: clock, metrics: metrics, logger: logger}
}

// Today is the ledger's notion of the current day.
func (s *LedgerService) Today() time.Time {
	return s.clock.Today()
}

// DeriveStatus evaluates the lifecycle of pkg as of today without writing it.
func (s *LedgerService) DeriveStatus(pkg models.Package) models.PackageStatus {
	return ledger.DeriveStatus(ledger.SnapshotOf(pkg), s.clock.Today())
}

// Recompute recalculates a package in its own transaction. A package that no
// longer exists is skipped and yields nil.
func (s *LedgerService) Recompute(ctx context.Context, packageID string) (*models.PackageDetail, error) {
	var detail *models.PackageDetail
	err := s.tx.WithTx(ctx, func(tx sqlx.ExtContext) error {
		var err error
		detail, err = s.RecomputeTx(ctx, tx, packageID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// RecomputeTx recalculates a package inside the caller's transaction, holding
// the package row lock until that transaction ends.
func (s *LedgerService) RecomputeTx(ctx context.Context, exec sqlx.ExtContext, packageID string) (*models.PackageDetail, error) {
	pkg, err := s.packages.LockByID(ctx, exec, packageID)
	if err != nil {
		if isNoRows(err) {
			s.metrics.RecordRecompute(outcomeMissing)
			s.logger.Debug("ledger recompute skipped, package not found", zap.String("package_id", packageID))
			return nil, nil
		}
		s.metrics.RecordRecompute(outcomeError)
		return nil, err
	}

	used, err := s.packages.SumHoursUsed(ctx, exec, packageID)
	if err != nil {
		s.metrics.RecordRecompute(outcomeError)
		return nil, err
	}

	hours := ledger.ComputeHours(*pkg, used)
	pkg.TotalHours = hours.TotalHours
	pkg.RemainingHours = hours.RemainingHours
	pkg.Status = ledger.DeriveStatus(ledger.SnapshotOf(*pkg), s.clock.Today())

	fields := models.HourFields{TotalHours: pkg.TotalHours, RemainingHours: pkg.RemainingHours, Status: pkg.Status}
	if err := s.packages.UpdateLedger(ctx, exec, packageID, fields); err != nil {
		s.metrics.RecordRecompute(outcomeError)
		return nil, err
	}

	students, err := s.packages.StudentIDs(ctx, exec, packageID)
	if err != nil {
		s.metrics.RecordRecompute(outcomeError)
		return nil, err
	}

	s.metrics.RecordRecompute(outcomeOK)
	s.logger.Info("ledger recomputed",
		zap.String("package_id", packageID),
		zap.String("hours_used", used.String()),
		zap.String("remaining_hours", pkg.RemainingHours.String()),
		zap.String("status", string(pkg.Status)))

	return &models.PackageDetail{Package: *pkg, StudentIDs: students, HoursUsed: used}, nil
}
