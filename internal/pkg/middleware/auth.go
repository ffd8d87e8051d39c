package middleware

import (
	"github.com/MarekWeber/RevRescue/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
)

// operatorLoggedIn reports whether UserContextMiddleware resolved a live
// operator session for this request.
func operatorLoggedIn(c *fiber.Ctx) bool {
	loggedIn, ok := c.Locals(usercontext.KeyFromProtected).(bool)
	return ok && loggedIn
}

// RequireAuth gates operator dashboard routes; anonymous requests are sent
// to the login page.
func RequireAuth(c *fiber.Ctx) error {
	if !operatorLoggedIn(c) {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}
	return c.Next()
}

// RequireAdmin gates the recovery queue, ledger and simulate-recovery
// actions: operator session plus the admin role. Non-admins land back on
// the start page instead of getting an error screen.
func RequireAdmin(c *fiber.Ctx) error {
	if !operatorLoggedIn(c) {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}
	if isAdmin, ok := c.Locals(usercontext.KeyIsAdmin).(bool); !ok || !isAdmin {
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	return c.Next()
}
