package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-tracker-api/internal/dto"
	"github.com/noah-isme/gema-tracker-api/internal/models"
	"github.com/noah-isme/gema-tracker-api/internal/repository"
)

// ErrScoreExceedsMax indicates a grading score surpasses the assignment max.
var ErrScoreExceedsMax = errors.New("score exceeds assignment max")

// GradingService encapsulates grading workflows for administrators and teachers.
type GradingService interface {
	Grade(ctx context.Context, submissionID uint, payload dto.SubmissionGradeRequest, actor ActivityActor) (dto.SubmissionResponse, error)
}

type gradingService struct {
	submissions repository.SubmissionRepository
	validator   *validator.Validate
	activity    ActivityRecorder
	notifier    NotificationPublisher
	tracking    TrackingInvalidator
	logger      zerolog.Logger
	now         func() time.Time
}

// NewGradingService constructs the grading service. activity, notifier and
// tracking may be nil.
func NewGradingService(
	submissions repository.SubmissionRepository,
	validator *validator.Validate,
	activity ActivityRecorder,
	notifier NotificationPublisher,
	tracking TrackingInvalidator,
	logger zerolog.Logger,
) GradingService {
	return &gradingService{
		submissions: submissions,
		validator:   validator,
		activity:    activity,
		notifier:    notifier,
		tracking:    tracking,
		logger:      logger.With().Str("component", "grading_service").Logger(),
		now:         time.Now,
	}
}

func (s *gradingService) Grade(ctx context.Context, submissionID uint, payload dto.SubmissionGradeRequest, actor ActivityActor) (dto.SubmissionResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-tracker-api/internal/service/grading")
	ctx, span := tracer.Start(ctx, "grading.update")
	span.SetAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "submission_not_found")
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		span.SetStatus(codes.Error, "submission_lookup_failed")
		return dto.SubmissionResponse{}, err
	}

	score := *payload.Score
	if score > submission.Assignment.ScoreCeiling()+1e-9 {
		span.RecordError(ErrScoreExceedsMax)
		span.SetStatus(codes.Error, "score_exceeds_max")
		return dto.SubmissionResponse{}, ErrScoreExceedsMax
	}

	feedback := strings.TrimSpace(payload.Feedback)
	unchanged := submission.IsGraded() &&
		submission.Grade != nil &&
		math.Abs(*submission.Grade-score) < 1e-6 &&
		strings.TrimSpace(submission.Feedback) == feedback &&
		submission.GradedBy != nil && *submission.GradedBy == actor.ID
	if unchanged {
		span.SetAttributes(attribute.Bool("grading.idempotent", true))
		return dto.NewSubmissionResponse(submission), nil
	}

	gradedAt := s.now().UTC()
	gradedBy := actor.ID
	submission.Grade = &score
	submission.Feedback = feedback
	submission.Status = models.SubmissionStatusGraded
	submission.GradedAt = &gradedAt
	submission.GradedBy = &gradedBy

	if err := s.submissions.Update(ctx, &submission); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_update_failed")
		return dto.SubmissionResponse{}, err
	}

	if s.tracking != nil {
		s.tracking.Invalidate(ctx, submission.AssignmentID)
	}

	if s.activity != nil {
		err := s.activity.Record(ctx, ActivityEntry{
			Actor:      actor,
			Action:     "submission.graded",
			EntityType: "submission",
			EntityID:   &submission.ID,
			Metadata: map[string]interface{}{
				"submission_id": submission.ID,
				"student_id":    submission.StudentID,
				"assignment_id": submission.AssignmentID,
				"score":         score,
			},
		})
		if err != nil {
			span.RecordError(err)
		}
	}

	s.notifyGraded(ctx, submission, score)

	span.SetAttributes(attribute.Float64("grading.score", score))
	s.logger.Info().Uint("submission_id", submission.ID).Float64("score", score).Msg("submission graded")

	return dto.NewSubmissionResponse(submission), nil
}

func (s *gradingService) notifyGraded(ctx context.Context, submission models.Submission, score float64) {
	if s.notifier == nil {
		return
	}

	_, err := s.notifier.Publish(ctx, dto.NotificationCreateRequest{
		UserID:  fmt.Sprintf("%d", submission.StudentID),
		Title:   "Submission graded",
		Type:    models.NotificationTypeGrade,
		Message: fmt.Sprintf("%q was graded: %.1f / %.1f.", submission.Assignment.Title, score, submission.Assignment.ScoreCeiling()),
	})
	if err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to publish grade notification")
	}
}
