package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/lesson-package-api/internal/ledger"
	appErrors "github.com/noah-isme/lesson-package-api/pkg/errors"
)

const dateLayout = "2006-01-02"

// txRunner executes a unit of work atomically.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx sqlx.ExtContext) error) error
}

type actorKey struct{}

// WithActor attaches the acting professor to ctx for the activity trail.
func WithActor(ctx context.Context, actorID string) context.Context {
	if actorID == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actorID)
}

func actorFrom(ctx context.Context) *string {
	if id, ok := ctx.Value(actorKey{}).(string); ok && id != "" {
		return &id
	}
	return nil
}

func parseDate(field, raw string) (time.Time, error) {
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("%s must be a YYYY-MM-DD date", field))
	}
	return ledger.DateOnly(t), nil
}

func parseOptionalDate(field string, raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := parseDate(field, *raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func invalid(message string) error {
	return appErrors.Clone(appErrors.ErrValidation, message)
}

func invalidPayload(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
}

func notFound(message string) error {
	return appErrors.Clone(appErrors.ErrNotFound, message)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func requirePositive(field string, v decimal.Decimal) error {
	if !v.IsPositive() {
		return invalid(field + " must be greater than zero")
	}
	return nil
}

func requireNonNegative(field string, v decimal.Decimal) error {
	if v.IsNegative() {
		return invalid(field + " must not be negative")
	}
	return nil
}

func internalError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}

// trackConflict counts business conflicts before handing err back.
func trackConflict(m *MetricsService, err error) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) && appErr.Status == http.StatusConflict {
		m.RecordConflict(appErr.Code)
	}
	return err
}
