package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/lesson-package-api/internal/ledger"
	"github.com/noah-isme/lesson-package-api/internal/models"
)

// memStore is an in-memory stand-in for the database. Transactions are
// serialised and rolled back by restoring a snapshot, which is enough to
// observe row-lock semantics and atomicity from the services.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	seq        int
	packages   map[string]models.Package
	links      map[string][]string
	lessons    map[string]models.Lesson
	payments   map[string]models.PackagePayment
	activity   []models.ActivityLog
	students   map[string]bool
	professors map[string]bool

	failCreateLesson error
}

type memSnapshot struct {
	seq      int
	packages map[string]models.Package
	links    map[string][]string
	lessons  map[string]models.Lesson
	payments map[string]models.PackagePayment
}

func newMemStore() *memStore {
	return &memStore{
		packages:   map[string]models.Package{},
		links:      map[string][]string{},
		lessons:    map[string]models.Lesson{},
		payments:   map[string]models.PackagePayment{},
		students:   map[string]bool{"stu-1": true, "stu-2": true, "stu-3": true, "stu-4": true},
		professors: map[string]bool{"prof-1": true},
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := memSnapshot{
		seq:      m.seq,
		packages: make(map[string]models.Package, len(m.packages)),
		links:    make(map[string][]string, len(m.links)),
		lessons:  make(map[string]models.Lesson, len(m.lessons)),
		payments: make(map[string]models.PackagePayment, len(m.payments)),
	}
	for k, v := range m.packages {
		snap.packages[k] = v
	}
	for k, v := range m.links {
		snap.links[k] = append([]string(nil), v...)
	}
	for k, v := range m.lessons {
		snap.lessons[k] = v
	}
	for k, v := range m.payments {
		snap.payments[k] = v
	}
	return snap
}

func (m *memStore) restore(snap memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq = snap.seq
	m.packages = snap.packages
	m.links = snap.links
	m.lessons = snap.lessons
	m.payments = snap.payments
}

// WithTx implements txRunner.
func (m *memStore) WithTx(ctx context.Context, fn func(tx sqlx.ExtContext) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	snap := m.snapshot()
	if err := fn(nil); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memStore) lessonsOf(packageID string) []models.Lesson {
	var out []models.Lesson
	for _, l := range m.lessons {
		if l.LinkedPackageID() == packageID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LessonDate.Equal(out[j].LessonDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].LessonDate.Before(out[j].LessonDate)
	})
	return out
}

// memPackages implements the package repository contracts.
type memPackages struct{ *memStore }

func (p memPackages) FindByID(ctx context.Context, id string) (*models.Package, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pkg, ok := p.packages[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &pkg, nil
}

func (p memPackages) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Package, error) {
	return p.FindByID(ctx, id)
}

func (p memPackages) LockMany(ctx context.Context, exec sqlx.ExtContext, ids []string) (map[string]*models.Package, error) {
	out := map[string]*models.Package{}
	for _, id := range ids {
		if id == "" {
			continue
		}
		if pkg, err := p.FindByID(ctx, id); err == nil {
			out[id] = pkg
		}
	}
	return out, nil
}

func (p memPackages) SumHoursUsed(ctx context.Context, exec sqlx.ExtContext, id string) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sum := decimal.Zero
	for _, l := range p.lessonsOf(id) {
		sum = sum.Add(l.Duration)
	}
	return sum, nil
}

func (p memPackages) UpdateLedger(ctx context.Context, exec sqlx.ExtContext, id string, fields models.HourFields) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	pkg, ok := p.packages[id]
	if !ok {
		return nil
	}
	pkg.TotalHours = fields.TotalHours
	pkg.RemainingHours = fields.RemainingHours
	pkg.Status = fields.Status
	p.packages[id] = pkg
	return nil
}

func (p memPackages) StudentIDs(ctx context.Context, exec sqlx.ExtContext, id string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.links[id]...), nil
}

func (p memPackages) Create(ctx context.Context, exec sqlx.ExtContext, pkg *models.Package) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pkg.ID == "" {
		pkg.ID = p.nextID("pkg")
	}
	if pkg.Type == "" {
		pkg.Type = models.PackageTypeFixed
	}
	p.packages[pkg.ID] = *pkg
	return nil
}

func (p memPackages) Update(ctx context.Context, exec sqlx.ExtContext, pkg *models.Package) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.packages[pkg.ID] = *pkg
	return nil
}

func (p memPackages) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.packages, id)
	delete(p.links, id)
	for pid, pay := range p.payments {
		if pay.PackageID == id {
			delete(p.payments, pid)
		}
	}
	return nil
}

func (p memPackages) ReplaceStudents(ctx context.Context, exec sqlx.ExtContext, id string, studentIDs []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := append([]string(nil), studentIDs...)
	sort.Strings(ids)
	p.links[id] = ids
	return nil
}

func (p memPackages) ListByStudents(ctx context.Context, exec sqlx.ExtContext, studentIDs []string) ([]models.StudentPackage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.StudentPackage
	for pkgID, students := range p.links {
		pkg := p.packages[pkgID]
		for _, sid := range students {
			if !contains(studentIDs, sid) {
				continue
			}
			out = append(out, models.StudentPackage{
				StudentID:      sid,
				PackageID:      pkgID,
				Type:           pkg.Type,
				StartDate:      pkg.StartDate,
				ExpiryDate:     pkg.ExpiryDate,
				TotalHours:     pkg.TotalHours,
				RemainingHours: pkg.RemainingHours,
				Status:         pkg.Status,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PackageID < out[j].PackageID })
	return out, nil
}

func (p memPackages) ListForStudent(ctx context.Context, studentID string) ([]models.PackageDetail, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.PackageDetail
	for pkgID, students := range p.links {
		if !contains(students, studentID) {
			continue
		}
		used := decimal.Zero
		for _, l := range p.lessonsOf(pkgID) {
			used = used.Add(l.Duration)
		}
		out = append(out, models.PackageDetail{Package: p.packages[pkgID], HoursUsed: used})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, nil
}

func (p memPackages) StudentLinks(ctx context.Context, packageIDs []string) (map[string][]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := map[string][]string{}
	for _, id := range packageIDs {
		out[id] = append([]string(nil), p.links[id]...)
	}
	return out, nil
}

// memLessons implements the lesson repository contracts.
type memLessons struct{ *memStore }

func (l memLessons) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lesson, ok := l.lessons[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &lesson, nil
}

func (l memLessons) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Lesson, error) {
	return l.FindByID(ctx, id)
}

func (l memLessons) Create(ctx context.Context, exec sqlx.ExtContext, lesson *models.Lesson) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failCreateLesson != nil {
		return l.failCreateLesson
	}
	if lesson.ID == "" {
		lesson.ID = l.nextID("lesson")
	}
	l.lessons[lesson.ID] = *lesson
	return nil
}

func (l memLessons) Update(ctx context.Context, exec sqlx.ExtContext, lesson *models.Lesson) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.lessons[lesson.ID]; !ok {
		return sql.ErrNoRows
	}
	l.lessons[lesson.ID] = *lesson
	return nil
}

func (l memLessons) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.lessons, id)
	return nil
}

func (l memLessons) ListByPackage(ctx context.Context, packageID string) ([]models.Lesson, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lessonsOf(packageID), nil
}

func (l memLessons) ListForStudentOnDate(ctx context.Context, exec sqlx.ExtContext, studentID string, date time.Time) ([]models.Lesson, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.Lesson
	for _, lesson := range l.lessons {
		if lesson.StudentID == studentID && ledger.DateOnly(lesson.LessonDate).Equal(ledger.DateOnly(date)) {
			out = append(out, lesson)
		}
	}
	return out, nil
}

func (l memLessons) DeleteByPackage(ctx context.Context, exec sqlx.ExtContext, packageID string) ([]models.LessonSummary, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.LessonSummary
	for _, lesson := range l.lessonsOf(packageID) {
		out = append(out, models.LessonSummary{
			ID:          lesson.ID,
			LessonDate:  lesson.LessonDate,
			StudentID:   lesson.StudentID,
			ProfessorID: lesson.ProfessorID,
			Duration:    lesson.Duration,
		})
		delete(l.lessons, lesson.ID)
	}
	return out, nil
}

func (l memLessons) LatestByPackage(ctx context.Context, exec sqlx.ExtContext, packageID string) (*models.LessonSummary, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var latest *models.LessonSummary
	for _, lesson := range l.lessonsOf(packageID) {
		if latest != nil && !lesson.LessonDate.After(latest.LessonDate) {
			continue
		}
		latest = &models.LessonSummary{
			ID:          lesson.ID,
			LessonDate:  lesson.LessonDate,
			StudentID:   lesson.StudentID,
			ProfessorID: lesson.ProfessorID,
			Duration:    lesson.Duration,
		}
	}
	return latest, nil
}

// memDirectory implements the student/professor lookups.
type memDirectory struct{ *memStore }

func (d memDirectory) LockStudents(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var found []string
	for _, id := range ids {
		if d.students[id] {
			found = append(found, id)
		}
	}
	return found, nil
}

func (d memDirectory) StudentExists(ctx context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.students[id], nil
}

func (d memDirectory) ProfessorExists(ctx context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.professors[id], nil
}

// memPayments implements the payment repository.
type memPayments struct{ *memStore }

func (p memPayments) Create(ctx context.Context, payment *models.PackagePayment) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if payment.ID == "" {
		payment.ID = p.nextID("pay")
	}
	p.payments[payment.ID] = *payment
	return nil
}

func (p memPayments) ListByPackage(ctx context.Context, packageID string) ([]models.PackagePayment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.PackagePayment
	for _, pay := range p.payments {
		if pay.PackageID == packageID {
			out = append(out, pay)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p memPayments) Delete(ctx context.Context, packageID, paymentID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pay, ok := p.payments[paymentID]
	if !ok || pay.PackageID != packageID {
		return false, nil
	}
	delete(p.payments, paymentID)
	return true, nil
}

// memActivity records activity entries; failing makes every write error out.
type memActivity struct {
	*memStore
	failing bool
}

func (a *memActivity) Create(ctx context.Context, entry *models.ActivityLog) error {
	if a.failing {
		return errors.New("activity sink down")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.activity = append(a.activity, *entry)
	return nil
}

type ledgerHarness struct {
	store    *memStore
	metrics  *MetricsService
	ledger   *LedgerService
	packages *PackageService
	lessons  *LessonService
	payments *PaymentService
}

func newLedgerHarness(t *testing.T, today string) *ledgerHarness {
	t.Helper()
	clockDay, err := time.Parse(dateLayout, today)
	if err != nil {
		t.Fatalf("parse today: %v", err)
	}
	store := newMemStore()
	logger := zap.NewNop()
	validate := validator.New()
	metrics := NewMetricsService()
	pkgRepo := memPackages{store}
	lessonRepo := memLessons{store}
	activity := NewActivityService(&memActivity{memStore: store}, logger)
	ledgerSvc := NewLedgerService(store, pkgRepo, ledger.FixedClock(clockDay), metrics, logger)

	return &ledgerHarness{
		store:   store,
		metrics: metrics,
		ledger:  ledgerSvc,
		packages: NewPackageService(PackageServiceDeps{
			Tx:        store,
			Packages:  pkgRepo,
			Lessons:   lessonRepo,
			Students:  memDirectory{store},
			Payments:  memPayments{store},
			Ledger:    ledgerSvc,
			Activity:  activity,
			Metrics:   metrics,
			Validator: validate,
			Logger:    logger,
		}, PackageConfig{MaxStudents: 3}),
		lessons: NewLessonService(LessonServiceDeps{
			Tx:        store,
			Lessons:   lessonRepo,
			Packages:  pkgRepo,
			Directory: memDirectory{store},
			Ledger:    ledgerSvc,
			Activity:  activity,
			Metrics:   metrics,
			Validator: validate,
			Logger:    logger,
		}),
		payments: NewPaymentService(memPayments{store}, pkgRepo, activity, validate, logger),
	}
}

// seedPackage stores a package directly, bypassing the guard.
func (h *ledgerHarness) seedPackage(t *testing.T, pkg models.Package, students ...string) models.Package {
	t.Helper()
	repo := memPackages{h.store}
	if pkg.Status == "" {
		pkg.Status = models.PackageStatusInProgress
	}
	if err := repo.Create(context.Background(), nil, &pkg); err != nil {
		t.Fatalf("seed package: %v", err)
	}
	if err := repo.ReplaceStudents(context.Background(), nil, pkg.ID, students); err != nil {
		t.Fatalf("seed students: %v", err)
	}
	return pkg
}

func (h *ledgerHarness) pkg(t *testing.T, id string) models.Package {
	t.Helper()
	pkg, err := memPackages{h.store}.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load package %s: %v", id, err)
	}
	return *pkg
}

func (h *ledgerHarness) lessonCount() int {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return len(h.store.lessons)
}

func mustDay(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		t.Fatalf("parse %s: %v", s, err)
	}
	return d
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func strPtr(s string) *string { return &s }
