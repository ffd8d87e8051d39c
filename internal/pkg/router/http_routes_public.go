package router

import (
	"github.com/MarekWeber/RevRescue/app/controllers"
	"github.com/MarekWeber/RevRescue/internal/pkg/middleware"
	"github.com/MarekWeber/RevRescue/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Root lands operators on the queue, everyone else on the login form.
	app.Get("/", loggedInMiddleware, func(c *fiber.Ctx) error {
		if usercontext.IsLoggedIn(c) {
			return c.Redirect("/admin/queue", fiber.StatusSeeOther)
		}
		return c.Redirect("/login", fiber.StatusSeeOther)
	})

	// Auth
	app.Post("/logout", middleware.RequireAuth, controllers.HandleAuthLogout)

	// Billing provider webhooks (no CSRF, signature-verified in controller)
	app.Post("/webhooks/billing", controllers.HandleBillingWebhook)
}
