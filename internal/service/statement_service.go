package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/lesson-package-api/internal/dto"
	"github.com/noah-isme/lesson-package-api/internal/models"
	"github.com/noah-isme/lesson-package-api/pkg/export"
)

type packageReader interface {
	Get(ctx context.Context, id string) (*models.PackageDetail, error)
}

type lessonLister interface {
	ListByPackage(ctx context.Context, packageID string) ([]models.Lesson, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// Statement is a rendered package statement ready to be served.
type Statement struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// StatementService renders a package with its lessons as CSV or PDF.
type StatementService struct {
	packages packageReader
	lessons  lessonLister
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
}

// NewStatementService constructs a StatementService.
func NewStatementService(packages packageReader, lessons lessonLister, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *StatementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &StatementService{packages: packages, lessons: lessons, csv: csv, pdf: pdf, logger: logger}
}

// Render builds the statement of a package in the requested format.
func (s *StatementService) Render(ctx context.Context, packageID string, format dto.StatementFormat) (*Statement, error) {
	if format == "" {
		format = dto.StatementCSV
	}
	if format != dto.StatementCSV && format != dto.StatementPDF {
		return nil, invalid(fmt.Sprintf("unsupported statement format %s", format))
	}

	detail, err := s.packages.Get(ctx, packageID)
	if err != nil {
		return nil, err
	}
	lessons, err := s.lessons.ListByPackage(ctx, packageID)
	if err != nil {
		return nil, err
	}
	dataset := buildStatementDataset(detail, lessons)

	var payload []byte
	statement := &Statement{Filename: fmt.Sprintf("package-%s.%s", packageID, format)}
	switch format {
	case dto.StatementPDF:
		payload, err = s.pdf.Render(dataset, "Package statement")
		statement.ContentType = "application/pdf"
	default:
		payload, err = s.csv.Render(dataset)
		statement.ContentType = "text/csv"
	}
	if err != nil {
		s.logger.Error("statement render failed", zap.String("package_id", packageID), zap.String("format", string(format)), zap.Error(err))
		return nil, internalError(err, "failed to render statement")
	}
	statement.Payload = payload
	return statement, nil
}

var statementHeaders = []string{"Date", "Start", "Student", "Professor", "Duration", "Hourly rate", "Total"}

func buildStatementDataset(detail *models.PackageDetail, lessons []models.Lesson) export.Dataset {
	summary := []export.Field{
		{Label: "Package", Value: detail.ID},
		{Label: "Type", Value: string(detail.Type)},
		{Label: "Students", Value: strings.Join(detail.StudentIDs, ", ")},
		{Label: "Period", Value: detail.StartDate.Format(dateLayout) + " - " + detail.ExpiryDate.Format(dateLayout)},
		{Label: "Status", Value: string(detail.Status)},
		{Label: "Total hours", Value: detail.TotalHours.String()},
		{Label: "Hours used", Value: detail.HoursUsed.String()},
		{Label: "Remaining hours", Value: detail.RemainingHours.String()},
		{Label: "Cost", Value: detail.PackageCost.StringFixed(2)},
		{Label: "Paid", Value: fmt.Sprintf("%t", detail.IsPaid)},
	}
	if detail.Payments != nil {
		summary = append(summary,
			export.Field{Label: "Installments", Value: detail.Payments.TotalPaid.StringFixed(2)},
			export.Field{Label: "Outstanding", Value: detail.Payments.Outstanding.StringFixed(2)},
		)
	}

	rows := make([]map[string]string, 0, len(lessons))
	for _, lesson := range lessons {
		start := ""
		if lesson.StartTime != nil {
			start = *lesson.StartTime
		}
		rows = append(rows, map[string]string{
			"Date":        lesson.LessonDate.Format(dateLayout),
			"Start":       start,
			"Student":     lesson.StudentID,
			"Professor":   lesson.ProfessorID,
			"Duration":    lesson.Duration.String(),
			"Hourly rate": lesson.HourlyRate.StringFixed(2),
			"Total":       lesson.TotalPayment.StringFixed(2),
		})
	}
	return export.Dataset{Summary: summary, Headers: statementHeaders, Rows: rows}
}
