package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lesson-package-api/internal/models"
)

const lessonColumns = `id, professor_id, student_id, lesson_date, start_time, duration, hourly_rate, total_payment,
	is_package, package_id, is_paid, payment_date, notes, created_at, updated_at`

// LessonRepository persists lessons.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository constructs the repository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

// FindByID loads a lesson.
func (r *LessonRepository) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	var lesson models.Lesson
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE id = $1`
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		return nil, fmt.Errorf("find lesson %s: %w", id, err)
	}
	return &lesson, nil
}

// LockByID loads a lesson and locks its row for the rest of the transaction.
func (r *LessonRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Lesson, error) {
	var lesson models.Lesson
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE id = $1 FOR UPDATE`
	if err := sqlx.GetContext(ctx, exec, &lesson, query, id); err != nil {
		return nil, fmt.Errorf("lock lesson %s: %w", id, err)
	}
	return &lesson, nil
}

// Create inserts a lesson.
func (r *LessonRepository) Create(ctx context.Context, exec sqlx.ExtContext, lesson *models.Lesson) error {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = now
	}
	lesson.UpdatedAt = now
	const query = `INSERT INTO lessons (id, professor_id, student_id, lesson_date, start_time, duration, hourly_rate, total_payment,
	is_package, package_id, is_paid, payment_date, notes, created_at, updated_at)
VALUES (:id, :professor_id, :student_id, :lesson_date, :start_time, :duration, :hourly_rate, :total_payment,
	:is_package, :package_id, :is_paid, :payment_date, :notes, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, lesson); err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}
	return nil
}

// Update writes every mutable column of a lesson.
func (r *LessonRepository) Update(ctx context.Context, exec sqlx.ExtContext, lesson *models.Lesson) error {
	lesson.UpdatedAt = time.Now().UTC()
	const query = `UPDATE lessons SET professor_id = :professor_id, student_id = :student_id, lesson_date = :lesson_date,
	start_time = :start_time, duration = :duration, hourly_rate = :hourly_rate, total_payment = :total_payment,
	is_package = :is_package, package_id = :package_id, is_paid = :is_paid, payment_date = :payment_date,
	notes = :notes, updated_at = :updated_at
WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, lesson); err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	return nil
}

// Delete removes a lesson.
func (r *LessonRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if _, err := exec.ExecContext(ctx, `DELETE FROM lessons WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete lesson: %w", err)
	}
	return nil
}

// ListByPackage returns the lessons consuming a package in calendar order.
func (r *LessonRepository) ListByPackage(ctx context.Context, packageID string) ([]models.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE package_id = $1 AND is_package = TRUE
ORDER BY lesson_date ASC, start_time ASC NULLS LAST, id ASC`
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, packageID); err != nil {
		return nil, fmt.Errorf("list package lessons: %w", err)
	}
	return lessons, nil
}

// ListForStudentOnDate returns a student's lessons on one calendar day.
func (r *LessonRepository) ListForStudentOnDate(ctx context.Context, exec sqlx.ExtContext, studentID string, date time.Time) ([]models.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE student_id = $1 AND lesson_date = $2 ORDER BY start_time ASC NULLS LAST`
	var lessons []models.Lesson
	if err := sqlx.SelectContext(ctx, exec, &lessons, query, studentID, date); err != nil {
		return nil, fmt.Errorf("list student lessons: %w", err)
	}
	return lessons, nil
}

// DeleteByPackage removes the lessons consuming a package and reports them.
func (r *LessonRepository) DeleteByPackage(ctx context.Context, exec sqlx.ExtContext, packageID string) ([]models.LessonSummary, error) {
	const query = `DELETE FROM lessons WHERE package_id = $1 AND is_package = TRUE
RETURNING id, lesson_date, student_id, professor_id, duration`
	var deleted []models.LessonSummary
	if err := sqlx.SelectContext(ctx, exec, &deleted, query, packageID); err != nil {
		return nil, fmt.Errorf("delete package lessons: %w", err)
	}
	return deleted, nil
}

// LatestByPackage returns the last-dated lesson consuming a package, or nil
// when the package has none.
func (r *LessonRepository) LatestByPackage(ctx context.Context, exec sqlx.ExtContext, packageID string) (*models.LessonSummary, error) {
	const query = `SELECT id, lesson_date, student_id, professor_id, duration FROM lessons
WHERE package_id = $1 AND is_package = TRUE
ORDER BY lesson_date DESC, id ASC LIMIT 1`
	var latest models.LessonSummary
	if err := sqlx.GetContext(ctx, exec, &latest, query, packageID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest package lesson: %w", err)
	}
	return &latest, nil
}
