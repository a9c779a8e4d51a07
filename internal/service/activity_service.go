package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-tracker-api/internal/models"
	"github.com/noah-isme/gema-tracker-api/internal/repository"
)

// ActivityActor represents the authenticated user performing an action.
type ActivityActor struct {
	ID   uint
	Role string
}

// ActivityEntry captures the details required to persist an audit entry.
type ActivityEntry struct {
	Actor      ActivityActor
	Action     string
	EntityType string
	EntityID   *uint
	Metadata   map[string]interface{}
}

// ActivityRecorder persists audit entries for grading and submission events.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry) error
}

type activityRecorder struct {
	repo   repository.ActivityLogRepository
	logger zerolog.Logger
}

// NewActivityRecorder constructs the audit recorder.
func NewActivityRecorder(repo repository.ActivityLogRepository, logger zerolog.Logger) ActivityRecorder {
	return &activityRecorder{
		repo:   repo,
		logger: logger.With().Str("component", "activity_recorder").Logger(),
	}
}

func (r *activityRecorder) Record(ctx context.Context, entry ActivityEntry) error {
	action := strings.ToLower(strings.TrimSpace(entry.Action))
	entityType := strings.ToLower(strings.TrimSpace(entry.EntityType))
	if action == "" || entityType == "" {
		return errors.New("action and entity type are required")
	}

	model := models.ActivityLog{
		ActorID:    entry.Actor.ID,
		ActorRole:  normalizeRole(entry.Actor.Role),
		Action:     action,
		EntityType: entityType,
		EntityID:   entry.EntityID,
		Metadata:   sanitizeMetadata(entry.Metadata),
	}

	if err := r.repo.Create(ctx, &model); err != nil {
		r.logger.Error().Err(err).Str("action", action).Msg("failed to persist activity log")
		return err
	}

	return nil
}

func sanitizeMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	sanitized := datatypes.JSONMap{}
	for key, value := range metadata {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "email") || strings.Contains(lower, "token") {
			sanitized[key] = "***"
			continue
		}
		sanitized[key] = value
	}
	return sanitized
}

func normalizeRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	if r == "" {
		return "system"
	}
	return r
}
