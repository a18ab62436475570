package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/attendance-api/internal/config"
	"github.com/noah-isme/attendance-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Service     string            `json:"service"`
	Environment string            `json:"environment"`
	Checks      map[string]string `json:"checks,omitempty"`
}

// Pinger is satisfied by dependencies that can report their reachability.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthCheck reports service metadata and the state of each named dependency.
// Any failing check turns the response into a 503.
func HealthCheck(cfg config.Config, checks map[string]Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}

		if len(checks) > 0 {
			ctx, cancel := context.WithTimeout(requestContext(c), 2*time.Second)
			defer cancel()

			payload.Checks = make(map[string]string, len(checks))
			for name, pinger := range checks {
				if err := pinger.PingContext(ctx); err != nil {
					payload.Status = "degraded"
					payload.Checks[name] = err.Error()
					continue
				}
				payload.Checks[name] = "ok"
			}
		}

		if payload.Status != "ok" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(utils.APIResponse{
				Success: false,
				Data:    payload,
				Message: "service degraded",
			})
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
