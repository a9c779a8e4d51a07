package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-tracker-api/internal/dto"
	"github.com/noah-isme/gema-tracker-api/internal/export"
	"github.com/noah-isme/gema-tracker-api/internal/models"
	"github.com/noah-isme/gema-tracker-api/internal/observability"
	"github.com/noah-isme/gema-tracker-api/internal/repository"
	"github.com/noah-isme/gema-tracker-api/internal/tracking"
)

var (
	// ErrInvalidView indicates the requested board view is not supported.
	ErrInvalidView = errors.New("invalid tracking view")
	// ErrInvalidStatusFilter indicates the status filter could not be parsed.
	ErrInvalidStatusFilter = errors.New("invalid status filter")
)

// ExportFile is a generated download.
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// TrackingService builds submission and grading boards for assignments.
type TrackingService interface {
	TrackingInvalidator
	Board(ctx context.Context, assignmentID uint, query dto.TrackingQuery) (tracking.Board, error)
	Export(ctx context.Context, assignmentID uint, query dto.TrackingQuery) (ExportFile, error)
	Start(ctx context.Context)
}

// TrackingOptions tune board rendering and caching. Fanout carries
// invalidations to the snapshot stores of other nodes.
type TrackingOptions struct {
	CacheTTL   time.Duration
	Location   *time.Location
	TimeLayout string
	Fanout     Fanout
}

type trackingInvalidation struct {
	AssignmentID uint `json:"assignmentId"`
}

type trackingService struct {
	assignments repository.AssignmentRepository
	students    repository.StudentRepository
	submissions repository.SubmissionRepository
	store       *tracking.Store
	mapperOpts  []tracking.MapperOption
	peers       *broadcaster
	startOnce   sync.Once
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewTrackingService constructs the tracking board service.
func NewTrackingService(
	assignments repository.AssignmentRepository,
	students repository.StudentRepository,
	submissions repository.SubmissionRepository,
	opts TrackingOptions,
	logger zerolog.Logger,
) TrackingService {
	log := logger.With().Str("component", "tracking_service").Logger()
	return &trackingService{
		assignments: assignments,
		students:    students,
		submissions: submissions,
		store:       tracking.NewStore(opts.CacheTTL),
		mapperOpts: []tracking.MapperOption{
			tracking.WithLocation(opts.Location),
			tracking.WithTimeLayout(opts.TimeLayout),
		},
		peers:  newBroadcaster(opts.Fanout, log),
		logger: log,
		tracer: otel.Tracer("github.com/noah-isme/gema-tracker-api/internal/service/tracking"),
		now:    time.Now,
	}
}

func (s *trackingService) Board(ctx context.Context, assignmentID uint, query dto.TrackingQuery) (tracking.Board, error) {
	variant, filter, err := parseTrackingQuery(query)
	if err != nil {
		return tracking.Board{}, err
	}

	snapshot, err := s.snapshot(ctx, assignmentID, variant)
	if err != nil {
		return tracking.Board{}, err
	}

	return snapshot.Board(filter), nil
}

func (s *trackingService) Export(ctx context.Context, assignmentID uint, query dto.TrackingQuery) (ExportFile, error) {
	board, err := s.Board(ctx, assignmentID, query)
	if err != nil {
		return ExportFile{}, err
	}

	data, err := export.Workbook(board)
	if err != nil {
		return ExportFile{}, fmt.Errorf("failed to build export: %w", err)
	}

	return ExportFile{
		Name:        export.FileName(assignmentID, board.Variant),
		ContentType: export.ContentType,
		Data:        data,
	}, nil
}

// Start applies invalidations announced by other nodes until ctx is done.
func (s *trackingService) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.peers.listen(ctx, s.receive)
	})
}

// Invalidate drops the cached boards of every view of the assignment here and
// on every peer node.
func (s *trackingService) Invalidate(ctx context.Context, assignmentID uint) {
	s.invalidateLocal(assignmentID)
	if err := s.peers.send(ctx, trackingInvalidation{AssignmentID: assignmentID}); err != nil {
		s.logger.Warn().Err(err).Uint("assignment_id", assignmentID).Msg("failed to announce tracking invalidation")
	}
}

func (s *trackingService) invalidateLocal(assignmentID uint) {
	s.store.Invalidate(tracking.Key(assignmentID, tracking.VariantSubmission))
	s.store.Invalidate(tracking.Key(assignmentID, tracking.VariantGrading))
}

func (s *trackingService) receive(body json.RawMessage) {
	var event trackingInvalidation
	if err := json.Unmarshal(body, &event); err != nil || event.AssignmentID == 0 {
		s.logger.Warn().Err(err).Msg("invalid tracking invalidation")
		return
	}
	s.invalidateLocal(event.AssignmentID)
}

func (s *trackingService) snapshot(ctx context.Context, assignmentID uint, variant tracking.Variant) (tracking.Snapshot, error) {
	key := tracking.Key(assignmentID, variant)
	if snapshot, ok := s.store.Load(key); ok {
		observability.TrackingBoards().WithLabelValues(string(variant), "cache").Inc()
		return snapshot, nil
	}

	ctx, span := s.tracer.Start(ctx, "tracking.fetch", trace.WithAttributes(
		attribute.Int64("tracking.assignment_id", int64(assignmentID)),
		attribute.String("tracking.view", string(variant)),
	))
	defer span.End()

	ticket := s.store.Begin(key)

	records, assignment, err := s.records(ctx, assignmentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch_failed")
		return tracking.Snapshot{}, err
	}

	snapshot := tracking.NewSnapshot(records, variant, s.mapperOpts...)
	snapshot.TakenAt = s.now().UTC()
	if snapshot.Assignment == nil {
		// Empty roster: the header still names the assignment.
		header := dto.NewMissingSubmissionRecord(models.Student{}, assignment)
		snapshot.Assignment = tracking.NewMapper(nil, s.mapperOpts...).AssignmentInfo([]tracking.Record{header})
	}

	if !s.store.Commit(ticket, snapshot) {
		observability.TrackingStaleSnapshots().Inc()
		span.SetAttributes(attribute.Bool("tracking.stale", true))
		s.logger.Debug().Uint("assignment_id", assignmentID).Str("view", string(variant)).Msg("newer snapshot already committed")
		if current, ok := s.store.Load(key); ok {
			observability.TrackingBoards().WithLabelValues(string(variant), "cache").Inc()
			return current, nil
		}
	}

	observability.TrackingBoards().WithLabelValues(string(variant), "fetch").Inc()
	return snapshot, nil
}

// records yields one record per rostered student plus any submitter outside
// the roster, ordered by student id.
func (s *trackingService) records(ctx context.Context, assignmentID uint) ([]tracking.Record, models.Assignment, error) {
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.Assignment{}, ErrAssignmentNotFound
		}
		return nil, models.Assignment{}, err
	}

	students, err := s.students.ListByClass(ctx, assignment.ClassName)
	if err != nil {
		return nil, models.Assignment{}, err
	}

	latest, err := s.submissions.LatestByStudent(ctx, assignmentID)
	if err != nil {
		return nil, models.Assignment{}, err
	}

	records := make([]tracking.Record, 0, len(students)+len(latest))
	seen := make(map[uint]struct{}, len(students))
	for _, student := range students {
		seen[student.ID] = struct{}{}
		if submission, ok := latest[student.ID]; ok {
			records = append(records, dto.NewSubmissionRecord(submission))
			continue
		}
		records = append(records, dto.NewMissingSubmissionRecord(student, assignment))
	}

	outside := make([]uint, 0)
	for studentID := range latest {
		if _, ok := seen[studentID]; !ok {
			outside = append(outside, studentID)
		}
	}
	sort.Slice(outside, func(i, j int) bool { return outside[i] < outside[j] })
	for _, studentID := range outside {
		records = append(records, dto.NewSubmissionRecord(latest[studentID]))
	}

	return records, assignment, nil
}

func parseTrackingQuery(query dto.TrackingQuery) (tracking.Variant, tracking.Status, error) {
	variant, err := tracking.ParseVariant(query.View)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidView, err)
	}

	filter, err := tracking.ParseStatus(query.Status)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidStatusFilter, err)
	}

	return variant, filter, nil
}
