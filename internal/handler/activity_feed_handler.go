package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-tracker-api/internal/dto"
	"github.com/noah-isme/gema-tracker-api/internal/service"
	"github.com/noah-isme/gema-tracker-api/internal/utils"
)

// ActivityFeedHandler serves the grading audit trail to staff.
type ActivityFeedHandler struct {
	service service.ActivityFeedService
	logger  zerolog.Logger
}

// NewActivityFeedHandler constructs the handler instance.
func NewActivityFeedHandler(service service.ActivityFeedService, logger zerolog.Logger) *ActivityFeedHandler {
	return &ActivityFeedHandler{
		service: service,
		logger:  logger.With().Str("component", "activity_feed_handler").Logger(),
	}
}

// Register wires the activity feed routes.
func (h *ActivityFeedHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
}

func (h *ActivityFeedHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}
	actorID, err := parseQueryUint(c, "actor_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	submissionID, err := parseQueryUint(c, "submission_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	days, err := parseQueryInt(c, "days")
	if err != nil || days < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid days")
	}

	result, err := h.service.List(requestContext(c), dto.ActivityFeedRequest{
		Page:         page,
		PageSize:     pageSize,
		ActorID:      actorID,
		SubmissionID: submissionID,
		Action:       c.Query("action"),
		Window:       time.Duration(days) * 24 * time.Hour,
	})
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to fetch activity feed")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch activity")
	}

	if result.CacheHit {
		c.Set("X-Cache-Hit", "true")
	} else {
		c.Set("X-Cache-Hit", "false")
	}

	return utils.SendSuccess(c, "activity retrieved", result)
}
