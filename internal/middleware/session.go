package middleware

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-tracker-api/internal/session"
)

// SessionContext binds the caller's session to the request context so handlers
// read it with session.FromContext. Callers without a stored session get one
// derived from their token claims. The role always comes from the token, so a
// role change shows up before the stored session expires. Must run after
// JWTProtected.
func SessionContext(store session.Store, logger zerolog.Logger) fiber.Handler {
	log := logger.With().Str("component", "session_middleware").Logger()

	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals("user_id").(uint)
		if !ok {
			return c.Next()
		}

		current := session.Session{
			UserID: strconv.FormatUint(uint64(userID), 10),
			Role:   normalizeRoleValue(c.Locals("user_role")),
		}
		if name, ok := c.Locals("user_name").(string); ok {
			current.Name = name
		}

		if store != nil {
			stored, err := store.Get(c.UserContext(), current.UserID)
			switch {
			case err == nil:
				role := current.Role
				current = stored
				if role != "" {
					current.Role = role
				}
			case errors.Is(err, session.ErrNotFound):
			default:
				log.Warn().Err(err).Str("correlation_id", GetCorrelationID(c)).Msg("session lookup failed")
			}
		}

		c.SetUserContext(session.WithContext(c.UserContext(), current))
		return c.Next()
	}
}
