package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lesson-package-api/internal/dto"
	"github.com/noah-isme/lesson-package-api/internal/ledger"
	"github.com/noah-isme/lesson-package-api/internal/models"
)

type paymentRepository interface {
	Create(ctx context.Context, payment *models.PackagePayment) error
	ListByPackage(ctx context.Context, packageID string) ([]models.PackagePayment, error)
	Delete(ctx context.Context, packageID, paymentID string) (bool, error)
}

type packageFinder interface {
	FindByID(ctx context.Context, id string) (*models.Package, error)
}

// PaymentService records installments against packages. Installments are
// informational: the package's paid flag is only changed explicitly.
type PaymentService struct {
	payments  paymentRepository
	packages  packageFinder
	activity  *ActivityService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPaymentService constructs the payment service.
func NewPaymentService(payments paymentRepository, packages packageFinder, activity *ActivityService, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{payments: payments, packages: packages, activity: activity, validator: validate, logger: logger}
}

// Add registers an installment.
func (s *PaymentService) Add(ctx context.Context, packageID string, req dto.CreatePaymentRequest) (*models.PackagePayment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err)
	}
	if err := requirePositive("amount", req.Amount); err != nil {
		return nil, err
	}
	date, err := parseDate("payment_date", req.PaymentDate)
	if err != nil {
		return nil, err
	}
	if _, err := s.findPackage(ctx, packageID); err != nil {
		return nil, err
	}

	payment := &models.PackagePayment{
		PackageID:     packageID,
		Amount:        req.Amount,
		PaymentDate:   date,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, internalError(err, "failed to record payment")
	}
	s.activity.Record(ctx, models.ActivityCreate, models.EntityPayment, payment.ID, "recorded payment of %s for package %s", payment.Amount.String(), packageID)
	return payment, nil
}

// List returns the installments of a package with a display summary.
func (s *PaymentService) List(ctx context.Context, packageID string) (*models.PackagePayments, error) {
	pkg, err := s.findPackage(ctx, packageID)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.ListByPackage(ctx, packageID)
	if err != nil {
		return nil, internalError(err, "failed to list payments")
	}
	if payments == nil {
		payments = []models.PackagePayment{}
	}
	return &models.PackagePayments{Payments: payments, Summary: ledger.SummarizePayments(pkg.PackageCost, payments)}, nil
}

// Delete removes an installment of the package.
func (s *PaymentService) Delete(ctx context.Context, packageID, paymentID string) error {
	found, err := s.payments.Delete(ctx, packageID, paymentID)
	if err != nil {
		return internalError(err, "failed to delete payment")
	}
	if !found {
		return notFound("payment not found")
	}
	s.activity.Record(ctx, models.ActivityDelete, models.EntityPayment, paymentID, "deleted payment of package %s", packageID)
	return nil
}

func (s *PaymentService) findPackage(ctx context.Context, id string) (*models.Package, error) {
	pkg, err := s.packages.FindByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("package not found")
		}
		return nil, internalError(err, "failed to load package")
	}
	return pkg, nil
}
