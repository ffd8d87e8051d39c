package controllers

import (
	"github.com/MarekWeber/RevRescue/internal/pkg/faults"
	"github.com/MarekWeber/RevRescue/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"
)

func isLoggedIn(c *fiber.Ctx) bool {
	var fromProtected bool
	if protectedValue := c.Locals(usercontext.KeyFromProtected); protectedValue != nil {
		fromProtected = protectedValue.(bool)
	}

	return fromProtected
}

func csrfToken(c *fiber.Ctx) string {
	if token, ok := c.Locals("csrf").(string); ok {
		return token
	}
	return ""
}

// flashValues pulls the current flash message and type for page rendering.
func flashValues(c *fiber.Ctx) (string, string) {
	fm := flash.Get(c)
	msg, _ := fm["message"].(string)
	typ, _ := fm["type"].(string)
	return msg, typ
}

// jsonError maps a service error onto the shared error envelope. Benign
// transition errors come back as 200 with the error code attached so widget
// and provider retries see success.
func jsonError(c *fiber.Ctx, err error) error {
	return c.Status(faults.HTTPStatus(err)).JSON(fiber.Map{
		"error":   faults.Code(err),
		"message": err.Error(),
	})
}
