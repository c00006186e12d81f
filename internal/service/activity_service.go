package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/lesson-package-api/internal/models"
)

type activityRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
}

// ActivityService writes the operator activity trail. Writes never fail the
// caller: errors are logged and dropped.
type ActivityService struct {
	repo   activityRepository
	logger *zap.Logger
}

// NewActivityService constructs the activity sink.
func NewActivityService(repo activityRepository, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{repo: repo, logger: logger}
}

// Record appends an entry for the actor carried by ctx.
func (s *ActivityService) Record(ctx context.Context, action, entity, entityID, format string, args ...interface{}) {
	if s == nil || s.repo == nil {
		return
	}
	entry := &models.ActivityLog{
		ActorID:     actorFrom(ctx),
		ActionType:  action,
		EntityType:  entity,
		EntityID:    entityID,
		Description: fmt.Sprintf(format, args...),
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Warn("activity log write failed",
			zap.String("entity_type", entity),
			zap.String("entity_id", entityID),
			zap.Error(err))
	}
}
