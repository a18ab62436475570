package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/attendance-api/internal/config"
	"github.com/noah-isme/attendance-api/internal/handler"
	"github.com/noah-isme/attendance-api/internal/middleware"
	"github.com/noah-isme/attendance-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	StudentHandler    *handler.StudentHandler
	AttendanceHandler *handler.AttendanceHandler
	ActivityHandler   *handler.ActivityHandler
	HealthChecks      map[string]handler.Pinger
	// WriteLimiter guards mutating routes; nil falls back to the configured limits.
	WriteLimiter fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks))

	writeLimiter := deps.WriteLimiter
	if writeLimiter == nil {
		writeLimiter = middleware.RateLimit("writes", cfg.RateLimitMax, cfg.RateLimitWindow)
	}
	guarded := middleware.WritesOnly(writeLimiter)

	if deps.StudentHandler != nil {
		deps.StudentHandler.Register(api.Group("/students", guarded))
	}

	if deps.AttendanceHandler != nil {
		deps.AttendanceHandler.Register(api.Group("/attendance", guarded))
	}

	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(api.Group("/activity"))
	}
}
