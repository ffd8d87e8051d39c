package apiv1

import (
	"github.com/gofiber/fiber/v2"
)

// ServerInterface represents all server handlers for the public v1 API.
type ServerInterface interface {
	// GET /ping
	GetPing(c *fiber.Ctx) error

	// POST /cancel-sessions
	PostCancelSession(c *fiber.Ctx) error
	// GET /cancel-sessions/:token
	GetCancelSession(c *fiber.Ctx, token string) error
	// POST /cancel-sessions/:token/survey
	PostCancelSessionSurvey(c *fiber.Ctx, token string) error
	// POST /cancel-sessions/:token/offer-response
	PostCancelSessionOffer(c *fiber.Ctx, token string) error
	// POST /cancel-sessions/:token/complete
	PostCancelSessionComplete(c *fiber.Ctx, token string) error

	// GET /account/risk
	GetAccountRisk(c *fiber.Ctx) error
	// GET /account/cases
	GetAccountCases(c *fiber.Ctx) error
	// GET /account/ledger/total
	GetAccountRecoveredTotal(c *fiber.Ctx) error
	// GET /account/funnel
	GetAccountFunnel(c *fiber.Ctx) error

	// GET /admin/recovery-queue
	GetRecoveryQueue(c *fiber.Ctx) error
	// POST /admin/cases/:id/simulate-recovery
	PostSimulateRecovery(c *fiber.Ctx, publicID string) error
	// POST /admin/recompute
	PostRecompute(c *fiber.Ctx) error
	// POST /admin/expiry-sweep
	PostExpirySweep(c *fiber.Ctx) error
}

// RegisterHandlers wires the v1 routes onto the given router group. Widget
// session routes are addressed by their opaque token and stay public; session
// creation and the account endpoints run behind apiKeyAuth, and the admin
// endpoints additionally behind requireAdmin.
func RegisterHandlers(router fiber.Router, si ServerInterface, apiKeyAuth fiber.Handler, requireAdmin fiber.Handler) {
	router.Get("/ping", si.GetPing)

	sessions := router.Group("/cancel-sessions")
	sessions.Post("/", apiKeyAuth, si.PostCancelSession)
	sessions.Get("/:token", func(c *fiber.Ctx) error {
		return si.GetCancelSession(c, c.Params("token"))
	})
	sessions.Post("/:token/survey", func(c *fiber.Ctx) error {
		return si.PostCancelSessionSurvey(c, c.Params("token"))
	})
	sessions.Post("/:token/offer-response", func(c *fiber.Ctx) error {
		return si.PostCancelSessionOffer(c, c.Params("token"))
	})
	sessions.Post("/:token/complete", func(c *fiber.Ctx) error {
		return si.PostCancelSessionComplete(c, c.Params("token"))
	})

	account := router.Group("/account", apiKeyAuth)
	account.Get("/risk", si.GetAccountRisk)
	account.Get("/cases", si.GetAccountCases)
	account.Get("/ledger/total", si.GetAccountRecoveredTotal)
	account.Get("/funnel", si.GetAccountFunnel)

	admin := router.Group("/admin", apiKeyAuth, requireAdmin)
	admin.Get("/recovery-queue", si.GetRecoveryQueue)
	admin.Post("/cases/:id/simulate-recovery", func(c *fiber.Ctx) error {
		return si.PostSimulateRecovery(c, c.Params("id"))
	})
	admin.Post("/recompute", si.PostRecompute)
	admin.Post("/expiry-sweep", si.PostExpirySweep)
}
