package handler

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-tracker-api/internal/dto"
	"github.com/noah-isme/gema-tracker-api/internal/service"
	"github.com/noah-isme/gema-tracker-api/internal/utils"
)

// TrackingHandler serves submission and grading boards of an assignment.
type TrackingHandler struct {
	service service.TrackingService
	logger  zerolog.Logger
}

// NewTrackingHandler constructs the handler.
func NewTrackingHandler(service service.TrackingService, logger zerolog.Logger) *TrackingHandler {
	return &TrackingHandler{
		service: service,
		logger:  logger.With().Str("component", "tracking_handler").Logger(),
	}
}

// Register binds the routes under an assignments group.
func (h *TrackingHandler) Register(router fiber.Router) {
	router.Get("/:id/tracking", h.board)
	router.Get("/:id/tracking/export", h.export)
}

func (h *TrackingHandler) board(c *fiber.Ctx) error {
	assignmentID, query, err := h.parse(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	board, err := h.service.Board(requestContext(c), assignmentID, query)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "tracking board retrieved", board)
}

func (h *TrackingHandler) export(c *fiber.Ctx) error {
	assignmentID, query, err := h.parse(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	file, err := h.service.Export(requestContext(c), assignmentID, query)
	if err != nil {
		return h.handleError(c, err)
	}

	c.Set(fiber.HeaderContentType, file.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, file.Name))
	return c.Status(fiber.StatusOK).Send(file.Data)
}

func (h *TrackingHandler) parse(c *fiber.Ctx) (uint, dto.TrackingQuery, error) {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return 0, dto.TrackingQuery{}, err
	}

	var query dto.TrackingQuery
	if err := c.QueryParser(&query); err != nil {
		return 0, dto.TrackingQuery{}, errors.New("invalid query")
	}
	return assignmentID, query, nil
}

func (h *TrackingHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidView), errors.Is(err, service.ErrInvalidStatusFilter):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAssignmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("tracking board failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
