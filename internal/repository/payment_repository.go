package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lesson-package-api/internal/models"
)

// PaymentRepository persists package installments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create records an installment.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.PackagePayment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO package_payments (id, package_id, amount, payment_date, payment_method, notes, created_at)
VALUES (:id, :package_id, :amount, :payment_date, :payment_method, :notes, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create package payment: %w", err)
	}
	return nil
}

// ListByPackage returns the installments of a package in payment order.
func (r *PaymentRepository) ListByPackage(ctx context.Context, packageID string) ([]models.PackagePayment, error) {
	const query = `SELECT id, package_id, amount, payment_date, payment_method, notes, created_at
FROM package_payments WHERE package_id = $1 ORDER BY payment_date ASC, created_at ASC`
	var payments []models.PackagePayment
	if err := r.db.SelectContext(ctx, &payments, query, packageID); err != nil {
		return nil, fmt.Errorf("list package payments: %w", err)
	}
	return payments, nil
}

// Delete removes an installment of the package and reports whether it existed.
func (r *PaymentRepository) Delete(ctx context.Context, packageID, paymentID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM package_payments WHERE id = $1 AND package_id = $2`, paymentID, packageID)
	if err != nil {
		return false, fmt.Errorf("delete package payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete package payment: %w", err)
	}
	return affected > 0, nil
}
