package handler

import (
	"context"

	"github.com/noah-isme/lesson-package-api/internal/dto"
	"github.com/noah-isme/lesson-package-api/internal/models"
	"github.com/noah-isme/lesson-package-api/internal/service"
)

type packageServiceMock struct {
	detail        *models.PackageDetail
	items         []models.PackageDetail
	cached        bool
	deleted       *models.DeletedPackage
	err           error
	lastID        string
	lastCreate    dto.CreatePackageRequest
	lastUpdate    dto.UpdatePackageRequest
	allowMultiple bool
	calls         []string
}

func (m *packageServiceMock) Create(ctx context.Context, req dto.CreatePackageRequest, allowMultiple bool) (*models.PackageDetail, error) {
	m.calls = append(m.calls, "create")
	m.lastCreate = req
	m.allowMultiple = allowMultiple
	return m.detail, m.err
}

func (m *packageServiceMock) Get(ctx context.Context, id string) (*models.PackageDetail, error) {
	m.calls = append(m.calls, "get")
	m.lastID = id
	return m.detail, m.err
}

func (m *packageServiceMock) ListByStudent(ctx context.Context, studentID string) ([]models.PackageDetail, bool, error) {
	m.calls = append(m.calls, "list")
	m.lastID = studentID
	return m.items, m.cached, m.err
}

func (m *packageServiceMock) Update(ctx context.Context, id string, req dto.UpdatePackageRequest, allowMultiple bool) (*models.PackageDetail, error) {
	m.calls = append(m.calls, "update")
	m.lastID = id
	m.lastUpdate = req
	m.allowMultiple = allowMultiple
	return m.detail, m.err
}

func (m *packageServiceMock) Delete(ctx context.Context, id string) (*models.DeletedPackage, error) {
	m.calls = append(m.calls, "delete")
	m.lastID = id
	return m.deleted, m.err
}

func (m *packageServiceMock) Extend(ctx context.Context, id string) (*models.PackageDetail, error) {
	m.calls = append(m.calls, "extend")
	m.lastID = id
	return m.detail, m.err
}

func (m *packageServiceMock) CancelExtension(ctx context.Context, id string) (*models.PackageDetail, error) {
	m.calls = append(m.calls, "cancel-extension")
	m.lastID = id
	return m.detail, m.err
}

func (m *packageServiceMock) Recompute(ctx context.Context, id string) (*models.PackageDetail, error) {
	m.calls = append(m.calls, "recompute")
	m.lastID = id
	return m.detail, m.err
}

type statementMock struct {
	statement  *service.Statement
	err        error
	lastFormat dto.StatementFormat
}

func (m *statementMock) Render(ctx context.Context, packageID string, format dto.StatementFormat) (*service.Statement, error) {
	m.lastFormat = format
	return m.statement, m.err
}

type lessonServiceMock struct {
	lesson      *models.Lesson
	lessons     []models.Lesson
	result      *models.OverflowResult
	err         error
	lastID      string
	lastRequest dto.LessonRequest
	lastResolve dto.ResolveOverflowRequest
	calls       []string
}

func (m *lessonServiceMock) Create(ctx context.Context, req dto.LessonRequest) (*models.Lesson, error) {
	m.calls = append(m.calls, "create")
	m.lastRequest = req
	return m.lesson, m.err
}

func (m *lessonServiceMock) Update(ctx context.Context, id string, req dto.LessonRequest) (*models.Lesson, error) {
	m.calls = append(m.calls, "update")
	m.lastID = id
	m.lastRequest = req
	return m.lesson, m.err
}

func (m *lessonServiceMock) Delete(ctx context.Context, id string) error {
	m.calls = append(m.calls, "delete")
	m.lastID = id
	return m.err
}

func (m *lessonServiceMock) Get(ctx context.Context, id string) (*models.Lesson, error) {
	m.calls = append(m.calls, "get")
	m.lastID = id
	return m.lesson, m.err
}

func (m *lessonServiceMock) ListByPackage(ctx context.Context, packageID string) ([]models.Lesson, error) {
	m.calls = append(m.calls, "list")
	m.lastID = packageID
	return m.lessons, m.err
}

func (m *lessonServiceMock) ResolveOverflow(ctx context.Context, req dto.ResolveOverflowRequest) (*models.OverflowResult, error) {
	m.calls = append(m.calls, "resolve")
	m.lastResolve = req
	return m.result, m.err
}

type paymentServiceMock struct {
	payment  *models.PackagePayment
	payments *models.PackagePayments
	err      error
	lastIDs  []string
}

func (m *paymentServiceMock) Add(ctx context.Context, packageID string, req dto.CreatePaymentRequest) (*models.PackagePayment, error) {
	m.lastIDs = []string{packageID}
	return m.payment, m.err
}

func (m *paymentServiceMock) List(ctx context.Context, packageID string) (*models.PackagePayments, error) {
	m.lastIDs = []string{packageID}
	return m.payments, m.err
}

func (m *paymentServiceMock) Delete(ctx context.Context, packageID, paymentID string) error {
	m.lastIDs = []string{packageID, paymentID}
	return m.err
}
