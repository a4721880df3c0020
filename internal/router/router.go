package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fiacomm/chat-api/internal/config"
	"github.com/fiacomm/chat-api/internal/handler"
	"github.com/fiacomm/chat-api/internal/middleware"
	"github.com/fiacomm/chat-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ChatHandler   *handler.ChatHandler
	UploadHandler *handler.UploadHandler
	JWTMiddleware fiber.Handler
	Health        handler.HealthDependencies
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.Health))

	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.ChatHandler != nil {
		chat := api.Group("/chat", jwtMiddleware)
		deps.ChatHandler.Register(chat)
	}
	if deps.UploadHandler != nil {
		upload := api.Group("/chat", jwtMiddleware, middleware.RateLimit("chat_upload", cfg.UploadRateLimit, cfg.UploadRateWindow))
		deps.UploadHandler.Register(upload)
	}
}
