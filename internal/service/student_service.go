package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-tracker-api/internal/dto"
	"github.com/noah-isme/gema-tracker-api/internal/models"
	"github.com/noah-isme/gema-tracker-api/internal/repository"
)

// ErrStudentConflict indicates the student code or email is already registered.
var ErrStudentConflict = errors.New("student code or email already registered")

// StudentService manages the student roster.
type StudentService interface {
	Create(ctx context.Context, payload dto.StudentCreateRequest, actor ActivityActor) (dto.StudentResponse, error)
	List(ctx context.Context, req dto.StudentListRequest) (dto.StudentListResponse, error)
}

type studentService struct {
	repo      repository.StudentRepository
	validator *validator.Validate
	activity  ActivityRecorder
	logger    zerolog.Logger
}

// NewStudentService constructs the roster service.
func NewStudentService(repo repository.StudentRepository, validator *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) StudentService {
	return &studentService{
		repo:      repo,
		validator: validator,
		activity:  activity,
		logger:    logger.With().Str("component", "student_service").Logger(),
	}
}

func (s *studentService) Create(ctx context.Context, payload dto.StudentCreateRequest, actor ActivityActor) (dto.StudentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.StudentResponse{}, err
	}

	student := models.Student{
		Name:      strings.TrimSpace(payload.Name),
		Code:      strings.TrimSpace(payload.Code),
		Email:     strings.ToLower(strings.TrimSpace(payload.Email)),
		ClassName: strings.TrimSpace(payload.ClassName),
	}

	exists, err := s.repo.ExistsByCodeOrEmail(ctx, student.Code, student.Email)
	if err != nil {
		return dto.StudentResponse{}, err
	}
	if exists {
		return dto.StudentResponse{}, ErrStudentConflict
	}

	if err := s.repo.Create(ctx, &student); err != nil {
		return dto.StudentResponse{}, err
	}

	if s.activity != nil {
		err := s.activity.Record(ctx, ActivityEntry{
			Actor:      actor,
			Action:     "student.created",
			EntityType: "student",
			EntityID:   &student.ID,
			Metadata: map[string]interface{}{
				"student_id": student.ID,
				"class_name": student.ClassName,
			},
		})
		if err != nil {
			s.logger.Warn().Err(err).Uint("student_id", student.ID).Msg("failed to record student activity")
		}
	}

	return dto.NewStudentResponse(student), nil
}

func (s *studentService) List(ctx context.Context, req dto.StudentListRequest) (dto.StudentListResponse, error) {
	page := req.Page
	if page <= 0 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 20
	} else if pageSize > 100 {
		pageSize = 100
	}

	students, total, err := s.repo.List(ctx, repository.StudentFilter{
		ClassName: req.ClassName,
		Search:    req.Search,
		Page:      page,
		PageSize:  pageSize,
	})
	if err != nil {
		return dto.StudentListResponse{}, err
	}

	items := make([]dto.StudentResponse, 0, len(students))
	for _, student := range students {
		items = append(items, dto.NewStudentResponse(student))
	}

	return dto.StudentListResponse{
		Items: items,
		Pagination: dto.PaginationMeta{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
		},
	}, nil
}
