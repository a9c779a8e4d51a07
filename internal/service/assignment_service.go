package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-tracker-api/internal/dto"
	"github.com/noah-isme/gema-tracker-api/internal/models"
	"github.com/noah-isme/gema-tracker-api/internal/repository"
)

// ErrAssignmentDueDateInPast indicates a new or moved deadline lies in the past.
var ErrAssignmentDueDateInPast = errors.New("assignment due date must be in the future")

// AssignmentService manages assignment definitions for staff.
type AssignmentService interface {
	Create(ctx context.Context, payload dto.AssignmentCreateRequest, actor ActivityActor) (dto.AssignmentResponse, error)
	Update(ctx context.Context, id uint, payload dto.AssignmentUpdateRequest, actor ActivityActor) (dto.AssignmentResponse, error)
	List(ctx context.Context) ([]dto.AssignmentResponse, error)
	Get(ctx context.Context, id uint) (dto.AssignmentResponse, error)
}

type assignmentService struct {
	repo      repository.AssignmentRepository
	validator *validator.Validate
	activity  ActivityRecorder
	tracking  TrackingInvalidator
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAssignmentService constructs the assignment service. activity and
// tracking may be nil.
func NewAssignmentService(
	repo repository.AssignmentRepository,
	validator *validator.Validate,
	activity ActivityRecorder,
	tracking TrackingInvalidator,
	logger zerolog.Logger,
) AssignmentService {
	return &assignmentService{
		repo:      repo,
		validator: validator,
		activity:  activity,
		tracking:  tracking,
		logger:    logger.With().Str("component", "assignment_service").Logger(),
		now:       time.Now,
	}
}

func (s *assignmentService) Create(ctx context.Context, payload dto.AssignmentCreateRequest, actor ActivityActor) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment := models.Assignment{
		Title:       strings.TrimSpace(payload.Title),
		Description: strings.TrimSpace(payload.Description),
		ClassName:   strings.TrimSpace(payload.ClassName),
		MaxScore:    payload.MaxScore,
		FileURL:     strings.TrimSpace(payload.FileURL),
	}
	if assignment.MaxScore <= 0 {
		assignment.MaxScore = models.DefaultMaxScore
	}

	dueDate, err := s.parseDueDate(payload.DueDate)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	assignment.DueDate = dueDate

	if err := s.repo.Create(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.record(ctx, actor, "assignment.created", assignment.ID, map[string]interface{}{
		"assignment_id": assignment.ID,
		"max_score":     assignment.MaxScore,
		"due_date":      assignment.DueDate,
	})

	return dto.NewAssignmentResponse(assignment, s.now()), nil
}

func (s *assignmentService) Update(ctx context.Context, id uint, payload dto.AssignmentUpdateRequest, actor ActivityActor) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrAssignmentNotFound
		}
		return dto.AssignmentResponse{}, err
	}

	changedFields := make([]string, 0)
	if payload.Title != nil {
		assignment.Title = strings.TrimSpace(*payload.Title)
		changedFields = append(changedFields, "title")
	}
	if payload.Description != nil {
		assignment.Description = strings.TrimSpace(*payload.Description)
		changedFields = append(changedFields, "description")
	}
	if payload.ClassName != nil {
		assignment.ClassName = strings.TrimSpace(*payload.ClassName)
		changedFields = append(changedFields, "class_name")
	}
	if payload.DueDate != nil {
		dueDate, err := s.parseDueDate(*payload.DueDate)
		if err != nil {
			return dto.AssignmentResponse{}, err
		}
		assignment.DueDate = dueDate
		changedFields = append(changedFields, "due_date")
	}
	if payload.MaxScore != nil {
		assignment.MaxScore = *payload.MaxScore
		changedFields = append(changedFields, "max_score")
	}
	if payload.FileURL != nil {
		assignment.FileURL = strings.TrimSpace(*payload.FileURL)
		changedFields = append(changedFields, "file_url")
	}

	if len(changedFields) == 0 {
		return dto.NewAssignmentResponse(assignment, s.now()), nil
	}

	if err := s.repo.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	// Deadline and class changes move statuses on cached boards.
	if s.tracking != nil {
		s.tracking.Invalidate(ctx, assignment.ID)
	}

	metadata := map[string]interface{}{
		"assignment_id": assignment.ID,
		"fields":        changedFields,
	}
	if payload.MaxScore != nil {
		metadata["max_score"] = assignment.MaxScore
	}
	if payload.DueDate != nil {
		metadata["due_date"] = assignment.DueDate
	}
	s.record(ctx, actor, "assignment.updated", assignment.ID, metadata)

	return dto.NewAssignmentResponse(assignment, s.now()), nil
}

func (s *assignmentService) List(ctx context.Context) ([]dto.AssignmentResponse, error) {
	assignments, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewAssignmentResponseSlice(assignments, s.now()), nil
}

func (s *assignmentService) Get(ctx context.Context, id uint) (dto.AssignmentResponse, error) {
	assignment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrAssignmentNotFound
		}
		return dto.AssignmentResponse{}, err
	}
	return dto.NewAssignmentResponse(assignment, s.now()), nil
}

// parseDueDate accepts RFC3339 deadlines that have not passed yet.
func (s *assignmentService) parseDueDate(value string) (time.Time, error) {
	dueDate, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, err
	}
	if (models.Assignment{DueDate: dueDate}).IsPastDue(s.now()) {
		return time.Time{}, ErrAssignmentDueDateInPast
	}
	return dueDate.UTC(), nil
}

func (s *assignmentService) record(ctx context.Context, actor ActivityActor, action string, id uint, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}
	err := s.activity.Record(ctx, ActivityEntry{
		Actor:      actor,
		Action:     action,
		EntityType: "assignment",
		EntityID:   &id,
		Metadata:   metadata,
	})
	if err != nil {
		s.logger.Warn().Err(err).Uint("assignment_id", id).Str("action", action).Msg("failed to record assignment activity")
	}
}
