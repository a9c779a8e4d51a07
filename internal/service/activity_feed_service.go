package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-tracker-api/internal/dto"
	"github.com/noah-isme/gema-tracker-api/internal/observability"
	"github.com/noah-isme/gema-tracker-api/internal/repository"
)

const defaultActivityWindow = 7 * 24 * time.Hour

// ActivityFeedService lists recent grading activity for staff.
type ActivityFeedService interface {
	List(ctx context.Context, req dto.ActivityFeedRequest) (dto.ActivityFeedResponse, error)
}

type activityFeedService struct {
	repo   repository.ActivityLogRepository
	cache  *redis.Client
	ttl    time.Duration
	prefix string
	logger zerolog.Logger
	now    func() time.Time
}

// NewActivityFeedService builds the activity feed service. cache may be nil.
func NewActivityFeedService(repo repository.ActivityLogRepository, cache *redis.Client, prefix string, ttl time.Duration, logger zerolog.Logger) ActivityFeedService {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = "tracker"
	}
	return &activityFeedService{
		repo:   repo,
		cache:  cache,
		ttl:    ttl,
		prefix: prefix,
		logger: logger.With().Str("component", "activity_feed_service").Logger(),
		now:    time.Now,
	}
}

func (s *activityFeedService) List(ctx context.Context, req dto.ActivityFeedRequest) (dto.ActivityFeedResponse, error) {
	window := req.Window
	if window <= 0 {
		window = defaultActivityWindow
	}

	// Minute granularity keeps the cache key stable between nearby requests.
	now := s.now().UTC().Truncate(time.Minute)
	filter := repository.ActivityLogFilter{
		Since:      now.Add(-window),
		ActorID:    req.ActorID,
		Action:     strings.ToLower(strings.TrimSpace(req.Action)),
		EntityType: "submission",
		EntityID:   req.SubmissionID,
		Page:       maxInt(req.Page, 1),
		PageSize:   clampPageSize(req.PageSize),
	}

	key := s.cacheKey(filter)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var response dto.ActivityFeedResponse
			if err := json.Unmarshal(cached, &response); err == nil {
				response.CacheHit = true
				observability.ActivityFeedRequests().WithLabelValues("hit").Inc()
				return response, nil
			}
		}
	}

	entries, total, err := s.repo.ListRecent(ctx, filter)
	if err != nil {
		observability.ActivityFeedRequests().WithLabelValues("error").Inc()
		return dto.ActivityFeedResponse{}, err
	}

	items := make([]dto.ActivityFeedItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.ActivityFeedItem{
			ID:         entry.ID,
			ActorID:    entry.ActorID,
			ActorRole:  entry.ActorRole,
			Action:     entry.Action,
			EntityType: entry.EntityType,
			EntityID:   entry.EntityID,
			Metadata:   map[string]interface{}(entry.Metadata),
			CreatedAt:  entry.CreatedAt,
		})
	}

	response := dto.ActivityFeedResponse{
		Items: items,
		Pagination: dto.PaginationMeta{
			Page:       filter.Page,
			PageSize:   filter.PageSize,
			TotalItems: total,
			TotalPages: int(math.Ceil(float64(total) / float64(filter.PageSize))),
		},
	}

	if s.cache != nil {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, key, payload, s.ttl).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to write activity feed cache")
			}
		}
	}

	observability.ActivityFeedRequests().WithLabelValues("miss").Inc()

	return response, nil
}

func (s *activityFeedService) cacheKey(filter repository.ActivityLogFilter) string {
	actor, entity := "0", "0"
	if filter.ActorID != nil {
		actor = fmt.Sprintf("%d", *filter.ActorID)
	}
	if filter.EntityID != nil {
		entity = fmt.Sprintf("%d", *filter.EntityID)
	}
	return fmt.Sprintf("%s:activity:v1:%s:%s:%s:%d:%d:%d", s.prefix, actor, entity, filter.Action, filter.Page, filter.PageSize, filter.Since.Unix())
}

func clampPageSize(size int) int {
	if size <= 0 {
		return 20
	}
	if size > 100 {
		return 100
	}
	return size
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
