package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// DirectoryRepository answers existence questions about students and
// professors, whose records are managed elsewhere.
type DirectoryRepository struct {
	db *sqlx.DB
}

// NewDirectoryRepository constructs the repository.
func NewDirectoryRepository(db *sqlx.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// LockStudents locks the rows of the given students in ascending id order and
// returns the ids that exist. Concurrent package assignments for the same
// student serialize on these locks.
func (r *DirectoryRepository) LockStudents(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]string, error) {
	ordered := SortedUnique(ids)
	if len(ordered) == 0 {
		return nil, nil
	}
	var found []string
	const query = `SELECT id FROM students WHERE id = ANY($1) ORDER BY id FOR UPDATE`
	if err := sqlx.SelectContext(ctx, exec, &found, query, pq.Array(ordered)); err != nil {
		return nil, fmt.Errorf("lock students: %w", err)
	}
	return found, nil
}

// StudentExists reports whether a student exists.
func (r *DirectoryRepository) StudentExists(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM students WHERE id = $1`, id)
}

// ProfessorExists reports whether a professor exists.
func (r *DirectoryRepository) ProfessorExists(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM professors WHERE id = $1`, id)
}

func (r *DirectoryRepository) exists(ctx context.Context, query, id string) (bool, error) {
	var one int
	if err := r.db.GetContext(ctx, &one, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check existence: %w", err)
	}
	return true, nil
}
