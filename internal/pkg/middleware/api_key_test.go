package middleware

import (
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ManuelReschke/PayDemo/internal/pkg/usercontext"
)

func hash(t *testing.T, key string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func testKeys(t *testing.T) []OperatorKey {
	t.Helper()
	raw := fmt.Sprintf("ops:admin:%s, support:viewer:%s", hash(t, "admin-key"), hash(t, "viewer-key"))
	keys, err := ParseOperatorKeys(raw)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	return keys
}

func newApp(keys []OperatorKey) *fiber.App {
	app := fiber.New()
	app.Use(OperatorKeyAuthMiddleware(keys))
	app.Get("/read", RequireOperator, func(c *fiber.Ctx) error {
		return c.JSON(usercontext.GetCapability(c))
	})
	app.Post("/write", RequirePrivileged, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestParseOperatorKeys(t *testing.T) {
	keys := testKeys(t)
	assert.Equal(t, "ops", keys[0].Name)
	assert.Equal(t, RoleAdmin, keys[0].Role)
	assert.Equal(t, RoleViewer, keys[1].Role)

	empty, err := ParseOperatorKeys(" ")
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, bad := range []string{"ops", "ops:admin", "ops:root:" + hash(t, "x"), "ops:admin:plaintext"} {
		_, err := ParseOperatorKeys(bad)
		assert.Error(t, err, bad)
	}
}

func TestOperatorKeyAuth(t *testing.T) {
	app := newApp(testKeys(t))

	tests := []struct {
		name   string
		method string
		path   string
		header string
		value  string
		want   int
	}{
		{"missing key", "GET", "/read", "", "", fiber.StatusUnauthorized},
		{"wrong key", "GET", "/read", "X-API-Key", "nope", fiber.StatusUnauthorized},
		{"viewer reads", "GET", "/read", "X-API-Key", "viewer-key", fiber.StatusOK},
		{"bearer token", "GET", "/read", "Authorization", "Bearer admin-key", fiber.StatusOK},
		{"viewer cannot write", "POST", "/write", "X-API-Key", "viewer-key", fiber.StatusForbidden},
		{"admin writes", "POST", "/write", "X-API-Key", "admin-key", fiber.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestNoKeysConfiguredClosesSurface(t *testing.T) {
	app := newApp(nil)
	req := httptest.NewRequest("GET", "/read", nil)
	req.Header.Set("X-API-Key", "anything")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
