package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarekWeber/RevRescue/internal/pkg/usercontext"
)

func newAuthTestApp(guard fiber.Handler, loggedIn, isAdmin bool) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(usercontext.KeyFromProtected, loggedIn)
		c.Locals(usercontext.KeyIsAdmin, isAdmin)
		return c.Next()
	})
	app.Get("/guarded", guard, func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestRequireAuth(t *testing.T) {
	for _, tc := range []struct {
		name     string
		loggedIn bool
		status   int
		location string
	}{
		{"operator session passes", true, fiber.StatusOK, ""},
		{"anonymous redirects to login", false, fiber.StatusSeeOther, "/login"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			app := newAuthTestApp(RequireAuth, tc.loggedIn, false)
			resp, err := app.Test(httptest.NewRequest("GET", "/guarded", nil))
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.location, resp.Header.Get(fiber.HeaderLocation))
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	for _, tc := range []struct {
		name     string
		loggedIn bool
		isAdmin  bool
		status   int
		location string
	}{
		{"admin passes", true, true, fiber.StatusOK, ""},
		{"operator without role lands on start page", true, false, fiber.StatusSeeOther, "/"},
		{"anonymous redirects to login", false, false, fiber.StatusSeeOther, "/login"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			app := newAuthTestApp(RequireAdmin, tc.loggedIn, tc.isAdmin)
			resp, err := app.Test(httptest.NewRequest("GET", "/guarded", nil))
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.location, resp.Header.Get(fiber.HeaderLocation))
		})
	}
}
