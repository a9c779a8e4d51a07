package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-tracker-api/internal/dto"
	"github.com/noah-isme/gema-tracker-api/internal/models"
	"github.com/noah-isme/gema-tracker-api/internal/observability"
	"github.com/noah-isme/gema-tracker-api/internal/repository"
)

var (
	// ErrSubmissionNotFound indicates a submission could not be found.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrAssignmentNotFound indicates the referenced assignment does not exist.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrStudentNotFound indicates the referenced student does not exist.
	ErrStudentNotFound = errors.New("student not found")
	// ErrSubmissionFileRequired indicates the multipart payload carried no file.
	ErrSubmissionFileRequired = errors.New("submission file is required")
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the MIME type is not permitted.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
)

var allowedSubmissionTypes = []string{"application/pdf", "application/zip", "application/x-zip-compressed", "text/plain"}

// FileUploader abstracts uploading binary data and returning a URL.
type FileUploader interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// NotificationPublisher delivers notifications to users.
type NotificationPublisher interface {
	Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error)
}

// TrackingInvalidator drops cached tracking boards of an assignment.
type TrackingInvalidator interface {
	Invalidate(ctx context.Context, assignmentID uint)
}

// SubmissionService orchestrates submission workflows.
type SubmissionService interface {
	List(ctx context.Context, filter dto.SubmissionFilter) (dto.SubmissionListResponse, error)
	Get(ctx context.Context, id uint) (dto.SubmissionResponse, error)
	Create(ctx context.Context, payload dto.SubmissionCreateRequest, file *multipart.FileHeader) (dto.SubmissionResponse, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	students    repository.StudentRepository
	validator   *validator.Validate
	uploader    FileUploader
	notifier    NotificationPublisher
	tracking    TrackingInvalidator
	maxSize     int64
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService instance. notifier and
// tracking may be nil.
func NewSubmissionService(
	subRepo repository.SubmissionRepository,
	assignmentRepo repository.AssignmentRepository,
	studentRepo repository.StudentRepository,
	validate *validator.Validate,
	uploader FileUploader,
	notifier NotificationPublisher,
	tracking TrackingInvalidator,
	maxSizeMB int,
	logger zerolog.Logger,
) SubmissionService {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &submissionService{
		submissions: subRepo,
		assignments: assignmentRepo,
		students:    studentRepo,
		validator:   validate,
		uploader:    uploader,
		notifier:    notifier,
		tracking:    tracking,
		maxSize:     int64(maxSizeMB) * 1024 * 1024,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-tracker-api/internal/service/submission"),
		now:         time.Now,
	}
}

func (s *submissionService) List(ctx context.Context, filter dto.SubmissionFilter) (dto.SubmissionListResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return dto.SubmissionListResponse{}, err
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{
		AssignmentID: filter.AssignmentID,
		StudentID:    filter.StudentID,
		Status:       filter.Status,
	})
	if err != nil {
		return dto.SubmissionListResponse{}, err
	}

	return dto.SubmissionListResponse{Submissions: dto.NewSubmissionRecordSlice(submissions)}, nil
}

func (s *submissionService) Get(ctx context.Context, id uint) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) Create(ctx context.Context, payload dto.SubmissionCreateRequest, file *multipart.FileHeader) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submissions.create", trace.WithAttributes(
		attribute.Int64("submission.assignment_id", int64(payload.AssignmentID)),
		attribute.Int64("submission.student_id", int64(payload.StudentID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionResponse{}, err
	}

	if file == nil {
		return dto.SubmissionResponse{}, ErrSubmissionFileRequired
	}
	if file.Size > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		return dto.SubmissionResponse{}, ErrUploadTooLarge
	}

	assignment, err := s.assignments.GetByID(ctx, payload.AssignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrAssignmentNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if _, err := s.students.GetByID(ctx, payload.StudentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrStudentNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	content, err := s.readFile(file)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "file_rejected")
		return dto.SubmissionResponse{}, err
	}

	uploadURL, err := s.uploader.Upload(ctx, file.Filename, bytes.NewReader(content))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload_failed")
		return dto.SubmissionResponse{}, fmt.Errorf("failed to upload file: %w", err)
	}

	submittedAt := s.now().UTC()
	submission := models.Submission{
		AssignmentID: payload.AssignmentID,
		StudentID:    payload.StudentID,
		FileURL:      uploadURL,
		Keywords:     strings.TrimSpace(payload.Keywords),
		IsPublic:     payload.IsPublic,
		Status:       models.SubmissionStatusSubmitted,
		SubmittedAt:  submittedAt,
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}

	created, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	late := submittedAt.After(assignment.DueDate)
	timing := "on_time"
	if late {
		timing = "late"
	}
	observability.SubmissionsCreated().WithLabelValues(timing).Inc()
	span.SetAttributes(attribute.Bool("submission.late", late))

	if s.tracking != nil {
		s.tracking.Invalidate(ctx, created.AssignmentID)
	}
	s.notifyReceived(ctx, created, late)

	s.logger.Info().Uint("submission_id", created.ID).Bool("late", late).Msg("submission created")

	return dto.NewSubmissionResponse(created), nil
}

func (s *submissionService) readFile(file *multipart.FileHeader) ([]byte, error) {
	reader, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(reader, s.maxSize+1)); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(buf.Len()) > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		return nil, ErrUploadTooLarge
	}

	detected := mimetype.Detect(buf.Bytes())
	for _, allowed := range allowedSubmissionTypes {
		if detected.Is(allowed) {
			return buf.Bytes(), nil
		}
	}

	observability.UploadRejected().WithLabelValues("type").Inc()
	return nil, fmt.Errorf("%w: %s", ErrUploadTypeNotAllowed, detected.String())
}

func (s *submissionService) notifyReceived(ctx context.Context, submission models.Submission, late bool) {
	if s.notifier == nil {
		return
	}

	message := fmt.Sprintf("Your submission for %q was received.", submission.Assignment.Title)
	if late {
		message = fmt.Sprintf("Your submission for %q was received after the deadline.", submission.Assignment.Title)
	}

	_, err := s.notifier.Publish(ctx, dto.NotificationCreateRequest{
		UserID:  fmt.Sprintf("%d", submission.StudentID),
		Title:   "Submission received",
		Type:    models.NotificationTypeSubmission,
		Message: message,
	})
	if err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to publish submission notification")
	}
}
