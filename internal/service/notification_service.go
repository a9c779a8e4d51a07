package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-tracker-api/internal/dto"
	"github.com/noah-isme/gema-tracker-api/internal/models"
	"github.com/noah-isme/gema-tracker-api/internal/observability"
	"github.com/noah-isme/gema-tracker-api/internal/repository"
)

var (
	// ErrNotificationNotFound indicates the notification does not exist for the user.
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrNotificationUserRequired indicates an operation was attempted without a user.
	ErrNotificationUserRequired = errors.New("user id is required")
	// ErrNotificationEmpty indicates the message had no content left after sanitizing.
	ErrNotificationEmpty = errors.New("notification message empty after sanitization")
)

// Stream transports reported in metrics.
const (
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"
)

// NotificationService stores notifications and streams them to connected users.
type NotificationService interface {
	NotificationPublisher
	List(ctx context.Context, userID string, limit, offset int) (dto.NotificationListResponse, error)
	MarkRead(ctx context.Context, id uint, userID string) (dto.NotificationResponse, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Subscribe(userID, transport string) (<-chan dto.NotificationResponse, func())
	Start(ctx context.Context)
}

type notificationService struct {
	repo      repository.NotificationRepository
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	sanitizer *bluemonday.Policy
	hub       *subscriberHub
	peers     *broadcaster
	startOnce sync.Once
}

// NewNotificationService constructs a notification service.
func NewNotificationService(repo repository.NotificationRepository, fanout Fanout, validate *validator.Validate, logger zerolog.Logger) NotificationService {
	log := logger.With().Str("component", "notification_service").Logger()
	return &notificationService{
		repo:      repo,
		validator: validate,
		logger:    log,
		tracer:    otel.Tracer("github.com/noah-isme/gema-tracker-api/internal/service/notification"),
		sanitizer: bluemonday.StrictPolicy(),
		hub:       newSubscriberHub(),
		peers:     newBroadcaster(fanout, log),
	}
}

// Start consumes notifications published by other nodes until ctx is done.
func (s *notificationService) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.peers.listen(ctx, s.receive)
	})
}

func (s *notificationService) Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.NotificationResponse{}, err
	}

	message := strings.TrimSpace(s.sanitizer.Sanitize(payload.Message))
	if message == "" {
		return dto.NotificationResponse{}, ErrNotificationEmpty
	}

	ctx, span := s.tracer.Start(ctx, "notifications.publish", trace.WithAttributes(
		attribute.String("notification.user_id", payload.UserID),
		attribute.String("notification.type", payload.Type),
	))
	defer span.End()

	model := models.Notification{
		UserID:  payload.UserID,
		Title:   strings.TrimSpace(s.sanitizer.Sanitize(payload.Title)),
		Type:    payload.Type,
		Message: message,
	}
	if err := s.repo.Create(ctx, &model); err != nil {
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	response := dto.NewNotificationResponse(model)
	observability.NotificationsPublished().WithLabelValues(response.Type).Inc()
	s.hub.deliver(response)
	if err := s.peers.send(ctx, response); err != nil {
		s.logger.Warn().Err(err).Uint("notification_id", response.ID).Msg("failed to forward notification")
	}

	return response, nil
}

func (s *notificationService) List(ctx context.Context, userID string, limit, offset int) (dto.NotificationListResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return dto.NotificationListResponse{}, ErrNotificationUserRequired
	}

	notifications, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return dto.NotificationListResponse{}, err
	}

	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return dto.NotificationListResponse{}, err
	}

	return dto.NotificationListResponse{
		Notifications: dto.NewNotificationResponseSlice(notifications),
		Unread:        unread,
	}, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id uint, userID string) (dto.NotificationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "notifications.mark_read", trace.WithAttributes(
		attribute.String("notification.user_id", userID),
		attribute.Int64("notification.id", int64(id)),
	))
	defer span.End()

	notification, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.NotificationResponse{}, ErrNotificationNotFound
		}
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	return dto.NewNotificationResponse(notification), nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, ErrNotificationUserRequired
	}
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *notificationService) Subscribe(userID, transport string) (<-chan dto.NotificationResponse, func()) {
	ch := s.hub.add(userID)
	gauge := observability.StreamClients().WithLabelValues(transport)
	gauge.Inc()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.hub.remove(userID, ch)
			gauge.Dec()
		})
	}
	return ch, cancel
}

func (s *notificationService) receive(body json.RawMessage) {
	var notification dto.NotificationResponse
	if err := json.Unmarshal(body, &notification); err != nil {
		s.logger.Warn().Err(err).Msg("invalid forwarded notification")
		return
	}
	s.hub.deliver(notification)
}
