package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func protectedApp() (*fiber.App, *map[string]interface{}) {
	captured := map[string]interface{}{}
	app := fiber.New()
	app.Get("/", JWTProtected(testSecret), func(c *fiber.Ctx) error {
		for _, key := range []string{LocalUserID, LocalUsername, LocalFullName, LocalRoleLabel, LocalPermissions} {
			captured[key] = c.Locals(key)
		}
		return c.SendStatus(fiber.StatusOK)
	})
	return app, &captured
}

func TestJWTProtectedPopulatesLocals(t *testing.T) {
	app, captured := protectedApp()

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":         "41",
		"username":    "casey",
		"fullname":    "Casey Jordan",
		"role":        "Moderator",
		"permissions": []string{"content.create"},
		"exp":         time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Equal(t, "41", (*captured)[LocalUserID])
	require.Equal(t, "casey", (*captured)[LocalUsername])
	require.Equal(t, "Casey Jordan", (*captured)[LocalFullName])
	require.Equal(t, "Moderator", (*captured)[LocalRoleLabel])
	require.Equal(t, []string{"content.create"}, (*captured)[LocalPermissions])
}

func TestJWTProtectedAcceptsNumericSubjectAndCommaPermissions(t *testing.T) {
	app, captured := protectedApp()

	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id":     float64(7),
		"permissions": "content.create, chat.moderate",
		"exp":         time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Equal(t, "7", (*captured)[LocalUserID])
	require.Equal(t, []string{"content.create", "chat.moderate"}, (*captured)[LocalPermissions])
}

func TestJWTProtectedRejectsBadTokens(t *testing.T) {
	app, _ := protectedApp()

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"empty token", "Bearer  "},
		{"garbage", "Bearer not.a.token"},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", jwt.MapClaims{"sub": "1", "exp": time.Now().Add(time.Hour).Unix()})},
		{"expired", "Bearer " + signToken(t, testSecret, jwt.MapClaims{"sub": "1", "exp": time.Now().Add(-time.Hour).Unix()})},
		{"no subject", "Bearer " + signToken(t, testSecret, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}
