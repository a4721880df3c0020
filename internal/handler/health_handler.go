package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fiacomm/chat-api/internal/config"
	"github.com/fiacomm/chat-api/internal/utils"
)

// HealthDependencies reports which optional backends the chat service came
// up with. Cache and events are best-effort, so their absence is reported
// rather than failing the check.
type HealthDependencies struct {
	StorageBackend string `json:"storage_backend"`
	CacheEnabled   bool   `json:"cache_enabled"`
	EventsEnabled  bool   `json:"events_enabled"`
}

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status       string             `json:"status"`
	Timestamp    time.Time          `json:"timestamp"`
	Service      string             `json:"service"`
	Environment  string             `json:"environment"`
	Dependencies HealthDependencies `json:"dependencies"`
}

// HealthCheck returns a handler that reports application health information.
func HealthCheck(cfg config.Config, deps HealthDependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:       "ok",
			Timestamp:    time.Now().UTC(),
			Service:      cfg.AppName,
			Environment:  cfg.AppEnv,
			Dependencies: deps,
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
