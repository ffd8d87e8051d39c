package router

import (
	"strings"
	"time"

	"github.com/MarekWeber/RevRescue/app/controllers"
	"github.com/MarekWeber/RevRescue/internal/pkg/env"
	"github.com/MarekWeber/RevRescue/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"
)

func (h HttpRouter) registerCSRFProtectedRoutes(app *fiber.App) {
	csrfConf := csrf.Config{
		KeyLookup:      "form:_csrf",
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		Expiration:     1 * time.Hour,
		CookieSecure:   !env.IsDev(),
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/") || strings.HasPrefix(c.Path(), "/webhooks/")
		},
	}

	group := app.Group("", cors.New(), csrf.New(csrfConf))
	group.Get("/login", loggedInMiddleware, controllers.HandleAuthLogin)
	group.Post("/login", loggedInMiddleware, controllers.HandleAuthLogin)

	// Account settings
	group.Post("/account/settings/api-key", middleware.RequireAuth, controllers.HandleAccountAPIKeyGenerate)
	group.Post("/account/settings/api-key/revoke", middleware.RequireAuth, controllers.HandleAccountAPIKeyRevoke)

	// Operator dashboard. The GET pages sit inside the CSRF group so the
	// queue's action forms render with a valid token.
	group.Get("/admin/queue", middleware.RequireAdmin, controllers.HandleAdminQueue)
	group.Get("/admin/ledger", middleware.RequireAdmin, controllers.HandleAdminLedger)
	group.Post("/admin/cases/:id/simulate-recovery", middleware.RequireAdmin, controllers.HandleSimulateRecovery)
}
