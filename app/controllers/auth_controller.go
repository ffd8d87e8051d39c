package controllers

import (
	"fmt"
	"time"

	"github.com/a-h/templ"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/sujit-baniya/flash"

	"github.com/MarekWeber/RevRescue/app/repository"
	"github.com/MarekWeber/RevRescue/internal/pkg/session"
	"github.com/MarekWeber/RevRescue/internal/pkg/usercontext"
	"github.com/MarekWeber/RevRescue/views"
)

func HandleAuthLogin(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost {
		fm := fiber.Map{
			"type": "error",
		}

		// notice: in production you should not inform the user
		// with detailed messages about login failures
		repo := repository.GetGlobalFactory().GetAccountRepository()
		account, err := repo.GetByEmail(c.FormValue("email"))
		if err != nil {
			fm["message"] = "There is a problem with the login process"

			return flash.WithError(c, fm).Redirect("/login")
		}

		if !account.CheckPassword(c.FormValue("password")) || !account.IsActive() {
			fm["message"] = "There is a problem with the login process"

			return flash.WithError(c, fm).Redirect("/login")
		}

		sess, err := session.GetSessionStore().Get(c)
		if err != nil {
			fm["message"] = fmt.Sprintf("something went wrong: %s", err)

			return flash.WithError(c, fm).Redirect("/login")
		}

		sess.Set(usercontext.KeyAccountID, account.ID)
		sess.Set(usercontext.KeyEmail, account.Email)
		sess.Set(usercontext.KeyIsAdmin, account.Role == "admin")

		if err := sess.Save(); err != nil {
			fm["message"] = fmt.Sprintf("something went wrong: %s", err)

			return flash.WithError(c, fm).Redirect("/login")
		}

		_ = repo.UpdateLastLogin(account.ID, time.Now())

		return flash.WithSuccess(c, fiber.Map{
			"type":    "success",
			"message": "Welcome back!",
		}).Redirect("/admin/queue")
	}

	if isLoggedIn(c) {
		return c.Redirect("/admin/queue", fiber.StatusSeeOther)
	}

	msg, typ := flashValues(c)
	login := views.Login(msg, typ, csrfToken(c))
	handler := adaptor.HTTPHandler(templ.Handler(login))
	return handler(c)
}

func HandleAuthLogout(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err == nil {
		_ = sess.Destroy()
	}
	return c.Redirect("/login", fiber.StatusSeeOther)
}
