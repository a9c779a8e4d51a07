package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-tracker-api/internal/dto"
	"github.com/noah-isme/gema-tracker-api/internal/session"
	"github.com/noah-isme/gema-tracker-api/internal/utils"
)

// SessionHandler lets header components register and read the current user.
type SessionHandler struct {
	store     session.Store
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(store session.Store, validate *validator.Validate, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		store:     store,
		validator: validate,
		logger:    logger.With().Str("component", "session_handler").Logger(),
	}
}

// Register binds the session routes.
func (h *SessionHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Get("", h.current)
	router.Delete("", h.destroy)
}

func (h *SessionHandler) create(c *fiber.Ctx) error {
	userID := userIDStringFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.SessionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return utils.SendValidationError(c, validationErrs)
		}
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	saved, err := h.store.Save(requestContext(c), session.Session{
		UserID: userID,
		Role:   userRoleFromContext(c),
		Name:   payload.Name,
	})
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to save session")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "session created", toSessionResponse(saved))
}

// current reads the session injected by the session middleware.
func (h *SessionHandler) current(c *fiber.Ctx) error {
	current, ok := session.FromContext(c.UserContext())
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "no active session")
	}
	return utils.SendSuccess(c, "session retrieved", toSessionResponse(current))
}

func (h *SessionHandler) destroy(c *fiber.Ctx) error {
	userID := userIDStringFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	if err := h.store.Delete(requestContext(c), userID); err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to delete session")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
	return utils.SendSuccess(c, "session cleared", nil)
}

func toSessionResponse(s session.Session) dto.SessionResponse {
	return dto.SessionResponse{
		UserID:    s.UserID,
		Role:      s.Role,
		Name:      s.Name,
		ExpiresAt: s.ExpiresAt,
	}
}
