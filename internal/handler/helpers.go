package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/fiacomm/chat-api/internal/middleware"
	"github.com/fiacomm/chat-api/internal/service"
)

// principalFromContext assembles the authenticated principal from the
// Locals populated by the JWT middleware.
func principalFromContext(c *fiber.Ctx) service.Principal {
	return service.Principal{
		ID:          localString(c, middleware.LocalUserID),
		Username:    localString(c, middleware.LocalUsername),
		FullName:    localString(c, middleware.LocalFullName),
		Avatar:      localString(c, middleware.LocalAvatar),
		RoleLabel:   localString(c, middleware.LocalRoleLabel),
		RoleColor:   localString(c, middleware.LocalRoleColor),
		Permissions: localStrings(c, middleware.LocalPermissions),
	}
}

func localString(c *fiber.Ctx, key string) string {
	if value, ok := c.Locals(key).(string); ok {
		return value
	}
	return ""
}

func localStrings(c *fiber.Ctx, key string) []string {
	if value, ok := c.Locals(key).([]string); ok {
		return value
	}
	return nil
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}

func parseFormUint(c *fiber.Ctx, key string) (uint, error) {
	value := strings.TrimSpace(c.FormValue(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(parsed), nil
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}
