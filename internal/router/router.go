package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-tracker-api/internal/config"
	"github.com/noah-isme/gema-tracker-api/internal/handler"
	"github.com/noah-isme/gema-tracker-api/internal/middleware"
	"github.com/noah-isme/gema-tracker-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SubmissionHandler   *handler.SubmissionHandler
	TrackingHandler     *handler.TrackingHandler
	AssignmentHandler   *handler.AssignmentHandler
	StudentHandler      *handler.StudentHandler
	NotificationHandler *handler.NotificationHandler
	SessionHandler      *handler.SessionHandler
	ActivityFeedHandler *handler.ActivityFeedHandler
	JWTMiddleware       fiber.Handler
	SessionMiddleware   fiber.Handler
	HealthProbes        map[string]handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))
	app.Get("/metrics", observability.MetricsHandler())

	auth := []fiber.Handler{passThrough(deps.JWTMiddleware), passThrough(deps.SessionMiddleware)}
	staff := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleTeacher)

	v2 := app.Group("/api/v2", auth...)

	tutorial := v2.Group("/tutorial")
	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(tutorial.Group("/submissions"))
	}
	assignments := tutorial.Group("/assignments", staff)
	if deps.AssignmentHandler != nil {
		deps.AssignmentHandler.Register(assignments)
	}
	if deps.TrackingHandler != nil {
		deps.TrackingHandler.Register(assignments)
	}

	if deps.StudentHandler != nil {
		deps.StudentHandler.Register(v2.Group("/students", staff))
	}

	if deps.ActivityFeedHandler != nil {
		deps.ActivityFeedHandler.Register(v2.Group("/activity", staff))
	}

	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(v2.Group("/notifications"))
	}

	if deps.SessionHandler != nil {
		deps.SessionHandler.Register(v2.Group("/session"))
	}
}

func passThrough(h fiber.Handler) fiber.Handler {
	if h == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return h
}
