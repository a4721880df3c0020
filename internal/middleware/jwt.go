package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/fiacomm/chat-api/internal/utils"
)

// Locals keys populated by JWTProtected for downstream handlers.
const (
	LocalUserID      = "user_id"
	LocalUsername    = "username"
	LocalFullName    = "fullname"
	LocalAvatar      = "avatar"
	LocalRoleLabel   = "role_label"
	LocalRoleColor   = "role_color"
	LocalPermissions = "permissions"
)

// JWTProtected validates bearer tokens and exposes the authenticated
// principal's identity, display snapshot and permission list via Locals.
// Identity issuance itself lives outside this service.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get("Authorization")
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}

		const bearer = "Bearer "
		if len(authorization) < len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		userID := subjectFromClaims(claims)
		if userID == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "token subject missing")
		}

		c.Locals(LocalUserID, userID)
		c.Locals(LocalUsername, stringClaim(claims, "username"))
		c.Locals(LocalFullName, stringClaim(claims, "fullname"))
		c.Locals(LocalAvatar, stringClaim(claims, "avatar"))
		c.Locals(LocalRoleLabel, stringClaim(claims, "role"))
		c.Locals(LocalRoleColor, stringClaim(claims, "role_color"))
		c.Locals(LocalPermissions, permissionsFromClaims(claims))

		return c.Next()
	}
}

func subjectFromClaims(claims jwt.MapClaims) string {
	for _, key := range []string{"sub", "user_id", "id"} {
		value, ok := claims[key]
		if !ok {
			continue
		}
		switch v := value.(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		case float64:
			if v >= 0 {
				return fmt.Sprintf("%d", uint64(v))
			}
		}
	}
	return ""
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if value, ok := claims[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func permissionsFromClaims(claims jwt.MapClaims) []string {
	raw, ok := claims["permissions"]
	if !ok {
		return nil
	}

	switch values := raw.(type) {
	case []interface{}:
		permissions := make([]string, 0, len(values))
		for _, value := range values {
			if name, ok := value.(string); ok && name != "" {
				permissions = append(permissions, name)
			}
		}
		return permissions
	case []string:
		return values
	case string:
		return splitPermissionList(values)
	}
	return nil
}

func splitPermissionList(raw string) []string {
	parts := strings.Split(raw, ",")
	permissions := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			permissions = append(permissions, trimmed)
		}
	}
	return permissions
}
