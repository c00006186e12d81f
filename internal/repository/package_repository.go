package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/lesson-package-api/internal/models"
)

const packageColumns = `id, package_type, start_date, expiry_date, total_hours, remaining_hours, package_cost,
	is_paid, payment_date, status, extension_count, notes, created_at, updated_at`

// PackageRepository persists lesson packages and their student links.
type PackageRepository struct {
	db *sqlx.DB
}

// NewPackageRepository constructs the repository.
func NewPackageRepository(db *sqlx.DB) *PackageRepository {
	return &PackageRepository{db: db}
}

// FindByID loads a package without locking it.
func (r *PackageRepository) FindByID(ctx context.Context, id string) (*models.Package, error) {
	var pkg models.Package
	query := `SELECT ` + packageColumns + ` FROM packages WHERE id = $1`
	if err := r.db.GetContext(ctx, &pkg, query, id); err != nil {
		return nil, fmt.Errorf("find package %s: %w", id, err)
	}
	return &pkg, nil
}

// LockByID loads a package holding an exclusive row lock until the enclosing
// transaction ends. It returns sql.ErrNoRows when the package does not exist.
func (r *PackageRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Package, error) {
	var pkg models.Package
	query := `SELECT ` + packageColumns + ` FROM packages WHERE id = $1 FOR UPDATE`
	if err := sqlx.GetContext(ctx, exec, &pkg, query, id); err != nil {
		return nil, fmt.Errorf("lock package %s: %w", id, err)
	}
	return &pkg, nil
}

// LockMany locks the given packages one at a time in ascending id order so
// that concurrent multi-package operations cannot deadlock. Missing ids are
// skipped.
func (r *PackageRepository) LockMany(ctx context.Context, exec sqlx.ExtContext, ids []string) (map[string]*models.Package, error) {
	ordered := SortedUnique(ids)
	locked := make(map[string]*models.Package, len(ordered))
	for _, id := range ordered {
		pkg, err := r.LockByID(ctx, exec, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, err
		}
		locked[id] = pkg
	}
	return locked, nil
}

// Create inserts a package row.
func (r *PackageRepository) Create(ctx context.Context, exec sqlx.ExtContext, pkg *models.Package) error {
	if pkg.ID == "" {
		pkg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if pkg.CreatedAt.IsZero() {
		pkg.CreatedAt = now
	}
	pkg.UpdatedAt = now
	if pkg.Type == "" {
		pkg.Type = models.PackageTypeFixed
	}
	const query = `INSERT INTO packages (id, package_type, start_date, expiry_date, total_hours, remaining_hours, package_cost,
	is_paid, payment_date, status, extension_count, notes, created_at, updated_at)
VALUES (:id, :package_type, :start_date, :expiry_date, :total_hours, :remaining_hours, :package_cost,
	:is_paid, :payment_date, :status, :extension_count, :notes, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, pkg); err != nil {
		return fmt.Errorf("create package: %w", err)
	}
	return nil
}

// Update writes every mutable column of a package.
func (r *PackageRepository) Update(ctx context.Context, exec sqlx.ExtContext, pkg *models.Package) error {
	pkg.UpdatedAt = time.Now().UTC()
	const query = `UPDATE packages SET package_type = :package_type, start_date = :start_date, expiry_date = :expiry_date,
	total_hours = :total_hours, remaining_hours = :remaining_hours, package_cost = :package_cost, is_paid = :is_paid,
	payment_date = :payment_date, status = :status, extension_count = :extension_count, notes = :notes, updated_at = :updated_at
WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, pkg); err != nil {
		return fmt.Errorf("update package: %w", err)
	}
	return nil
}

// UpdateLedger writes the ledger-owned columns.
func (r *PackageRepository) UpdateLedger(ctx context.Context, exec sqlx.ExtContext, id string, fields models.HourFields) error {
	const query = `UPDATE packages SET total_hours = $1, remaining_hours = $2, status = $3, updated_at = $4 WHERE id = $5`
	if _, err := exec.ExecContext(ctx, query, fields.TotalHours, fields.RemainingHours, fields.Status, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update package ledger: %w", err)
	}
	return nil
}

// Delete removes a package. Student links and payments cascade.
func (r *PackageRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if _, err := exec.ExecContext(ctx, `DELETE FROM packages WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete package: %w", err)
	}
	return nil
}

// SumHoursUsed totals the duration of lessons consuming the package.
func (r *PackageRepository) SumHoursUsed(ctx context.Context, exec sqlx.ExtContext, id string) (decimal.Decimal, error) {
	var used decimal.Decimal
	const query = `SELECT COALESCE(SUM(duration), 0) FROM lessons WHERE package_id = $1 AND is_package = TRUE`
	if err := sqlx.GetContext(ctx, exec, &used, query, id); err != nil {
		return decimal.Zero, fmt.Errorf("sum package hours: %w", err)
	}
	return used, nil
}

// StudentIDs lists the students attached to a package.
func (r *PackageRepository) StudentIDs(ctx context.Context, exec sqlx.ExtContext, id string) ([]string, error) {
	var ids []string
	const query = `SELECT student_id FROM package_students WHERE package_id = $1 ORDER BY student_id`
	if err := sqlx.SelectContext(ctx, exec, &ids, query, id); err != nil {
		return nil, fmt.Errorf("list package students: %w", err)
	}
	return ids, nil
}

// ReplaceStudents rewrites the student links of a package.
func (r *PackageRepository) ReplaceStudents(ctx context.Context, exec sqlx.ExtContext, id string, studentIDs []string) error {
	if _, err := exec.ExecContext(ctx, `DELETE FROM package_students WHERE package_id = $1`, id); err != nil {
		return fmt.Errorf("clear package students: %w", err)
	}
	for _, studentID := range SortedUnique(studentIDs) {
		if _, err := exec.ExecContext(ctx, `INSERT INTO package_students (package_id, student_id) VALUES ($1, $2)`, id, studentID); err != nil {
			return fmt.Errorf("link package student: %w", err)
		}
	}
	return nil
}

// ListByStudents returns every package of the given students, one row per
// (student, package) pair.
func (r *PackageRepository) ListByStudents(ctx context.Context, exec sqlx.ExtContext, studentIDs []string) ([]models.StudentPackage, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT ps.student_id, p.id AS package_id, p.package_type, p.start_date, p.expiry_date,
	p.total_hours, p.remaining_hours, p.status
FROM package_students ps
JOIN packages p ON p.id = ps.package_id
WHERE ps.student_id = ANY($1)
ORDER BY p.start_date ASC, p.id ASC`
	var items []models.StudentPackage
	if err := sqlx.SelectContext(ctx, exec, &items, query, pq.Array(studentIDs)); err != nil {
		return nil, fmt.Errorf("list student packages: %w", err)
	}
	return items, nil
}

// ListForStudent returns the packages of one student, newest first, with the
// hours consumed by each.
func (r *PackageRepository) ListForStudent(ctx context.Context, studentID string) ([]models.PackageDetail, error) {
	query := `SELECT ` + packageColumnsQualified + `,
	(SELECT COALESCE(SUM(l.duration), 0) FROM lessons l WHERE l.package_id = p.id AND l.is_package = TRUE) AS hours_used
FROM packages p
JOIN package_students ps ON ps.package_id = p.id
WHERE ps.student_id = $1
ORDER BY p.start_date DESC, p.id ASC`
	var items []models.PackageDetail
	if err := r.db.SelectContext(ctx, &items, query, studentID); err != nil {
		return nil, fmt.Errorf("list packages for student: %w", err)
	}
	return items, nil
}

// StudentLinks returns the student ids of each given package.
func (r *PackageRepository) StudentLinks(ctx context.Context, packageIDs []string) (map[string][]string, error) {
	result := make(map[string][]string, len(packageIDs))
	if len(packageIDs) == 0 {
		return result, nil
	}
	var rows []models.PackageStudent
	const query = `SELECT package_id, student_id FROM package_students WHERE package_id = ANY($1) ORDER BY package_id, student_id`
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(packageIDs)); err != nil {
		return nil, fmt.Errorf("list package student links: %w", err)
	}
	for _, row := range rows {
		result[row.PackageID] = append(result[row.PackageID], row.StudentID)
	}
	return result, nil
}

const packageColumnsQualified = `p.id, p.package_type, p.start_date, p.expiry_date, p.total_hours, p.remaining_hours, p.package_cost,
	p.is_paid, p.payment_date, p.status, p.extension_count, p.notes, p.created_at, p.updated_at`

// SortedUnique returns ids deduplicated in ascending order, the order in which
// rows are locked.
func SortedUnique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
