package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/lesson-package-api/internal/models"
)

// SummarizePayments totals the installments of a package for display. It does
// not touch the package's paid flag. A package is only reported paid once
// something has been paid, so a free package with no installments is unpaid.
func SummarizePayments(packageCost decimal.Decimal, payments []models.PackagePayment) models.PaymentSummary {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	summary := models.PaymentSummary{
		TotalPaid:   total,
		Outstanding: decimal.Max(decimal.Zero, packageCost.Sub(total)),
	}
	switch {
	case total.IsPositive() && total.GreaterThanOrEqual(packageCost):
		summary.Status = models.PaymentStatusPaid
	case total.IsPositive():
		summary.Status = models.PaymentStatusPartial
	default:
		summary.Status = models.PaymentStatusUnpaid
	}
	return summary
}
