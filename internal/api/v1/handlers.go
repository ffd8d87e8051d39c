package apiv1

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/MarekWeber/RevRescue/app/models"
	"github.com/MarekWeber/RevRescue/internal/pkg/cancelflow"
	"github.com/MarekWeber/RevRescue/internal/pkg/database"
	"github.com/MarekWeber/RevRescue/internal/pkg/faults"
	"github.com/MarekWeber/RevRescue/internal/pkg/ledger"
	"github.com/MarekWeber/RevRescue/internal/pkg/metrics/counter"
	"github.com/MarekWeber/RevRescue/internal/pkg/ratelimit"
	"github.com/MarekWeber/RevRescue/internal/pkg/recovery"
	"github.com/MarekWeber/RevRescue/internal/pkg/risk"
	"github.com/MarekWeber/RevRescue/internal/pkg/usercontext"
)

// APIServer implements the ServerInterface
type APIServer struct {
	recomputeLimiter *ratelimit.Limiter
}

// NewAPIServer creates a new API server instance. The recompute limiter is
// shared with the scheduled sweep so both draw from one budget.
func NewAPIServer(recomputeLimiter *ratelimit.Limiter) *APIServer {
	return &APIServer{recomputeLimiter: recomputeLimiter}
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

func respondError(c *fiber.Ctx, err error) error {
	return c.Status(faults.HTTPStatus(err)).JSON(fiber.Map{
		"error":   faults.Code(err),
		"message": err.Error(),
	})
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// PostCancelSession starts a widget session for one of the authenticated
// account's customers (API key protected).
func (s *APIServer) PostCancelSession(c *fiber.Ctx) error {
	var req StartSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": "invalid JSON body"})
	}

	ctx, cancel := requestContext()
	defer cancel()

	engine := cancelflow.NewEngineFromDB(database.GetDB())
	view, err := engine.StartSession(ctx, usercontext.GetAccountID(c), req.CustomerReference)
	if err != nil {
		return respondError(c, err)
	}

	if err := counter.AddSessionStarted(view.Session.AccountID); err != nil {
		log.Warnf("[API] funnel counter increment failed: %v", err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

// GetCancelSession returns the session state behind a widget token. The token
// itself is the credential; no other auth applies on the widget routes.
func (s *APIServer) GetCancelSession(c *fiber.Ctx, token string) error {
	ctx, cancel := requestContext()
	defer cancel()

	engine := cancelflow.NewEngineFromDB(database.GetDB())
	view, err := engine.FetchSession(ctx, token)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

// PostCancelSessionSurvey submits the exit survey for a session. A repeated
// or out-of-order submit answers 200 with the stored state so widget retries
// never surface an error to the customer.
func (s *APIServer) PostCancelSessionSurvey(c *fiber.Ctx, token string) error {
	var req SurveyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": "invalid JSON body"})
	}

	ctx, cancel := requestContext()
	defer cancel()

	engine := cancelflow.NewEngineFromDB(database.GetDB())
	view, err := engine.SubmitSurvey(ctx, token, req.ExitReason, req.CustomFeedback)
	if err != nil && !errors.Is(err, faults.ErrInvalidTransition) {
		return respondError(c, err)
	}

	// A reason mapped to no offer finalizes the session right here.
	if err == nil && view.Session.Status == models.SessionCancelled {
		if cerr := counter.AddSessionCancelled(view.Session.AccountID); cerr != nil {
			log.Warnf("[API] funnel counter increment failed: %v", cerr)
		}
	}
	return c.JSON(view)
}

// PostCancelSessionOffer records the customer's answer to the presented offer.
func (s *APIServer) PostCancelSessionOffer(c *fiber.Ctx, token string) error {
	var req OfferResponseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_error", "message": "invalid JSON body"})
	}

	ctx, cancel := requestContext()
	defer cancel()

	engine := cancelflow.NewEngineFromDB(database.GetDB())
	view, err := engine.RespondToOffer(ctx, token, req.Accepted)
	if err != nil && !errors.Is(err, faults.ErrInvalidTransition) {
		return respondError(c, err)
	}

	if err == nil {
		var cerr error
		switch view.Session.Status {
		case models.SessionSaved:
			cerr = counter.AddSessionSaved(view.Session.AccountID)
		case models.SessionCancelled:
			cerr = counter.AddSessionCancelled(view.Session.AccountID)
		}
		if cerr != nil {
			log.Warnf("[API] funnel counter increment failed: %v", cerr)
		}
	}
	return c.JSON(view)
}

// PostCancelSessionComplete finalizes the cancellation. If the session was
// already saved, the stored saved state comes back unchanged.
func (s *APIServer) PostCancelSessionComplete(c *fiber.Ctx, token string) error {
	ctx, cancel := requestContext()
	defer cancel()

	engine := cancelflow.NewEngineFromDB(database.GetDB())
	view, err := engine.Complete(ctx, token)
	if err != nil && !errors.Is(err, faults.ErrInvalidTransition) {
		return respondError(c, err)
	}

	if err == nil && view.Session.Status == models.SessionCancelled {
		if cerr := counter.AddSessionCancelled(view.Session.AccountID); cerr != nil {
			log.Warnf("[API] funnel counter increment failed: %v", cerr)
		}
	}
	return c.JSON(view)
}

// GetAccountRisk returns the stored risk snapshot for the authenticated
// account (API key protected).
func (s *APIServer) GetAccountRisk(c *fiber.Ctx) error {
	accountID := usercontext.GetAccountID(c)

	snapshot, err := risk.NewRepository(database.GetDB()).GetSnapshot(accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No snapshot yet reads as zero risk, not as an error.
			return c.JSON(RiskResponse{AccountID: accountID, Score: 0, Reasons: []string{}})
		}
		return respondError(c, faults.Storage(err))
	}

	return c.JSON(RiskResponse{
		AccountID: accountID,
		Score:     snapshot.Score,
		Reasons:   snapshot.Reasons(),
		UpdatedAt: snapshot.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

// GetAccountCases lists the authenticated account's recovery cases.
func (s *APIServer) GetAccountCases(c *fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	svc := recovery.NewServiceFromDB(database.GetDB())
	cases, err := svc.CasesForOwner(ctx, usercontext.GetAccountID(c), limit)
	if err != nil {
		return respondError(c, err)
	}

	now := time.Now()
	out := make([]CaseResponse, 0, len(cases))
	for i := range cases {
		out = append(out, caseResponse(&cases[i], now, 0))
	}
	return c.JSON(fiber.Map{"cases": out})
}

// GetAccountFunnel returns the cancel-flow outcome counters for the
// authenticated account.
func (s *APIServer) GetAccountFunnel(c *fiber.Ctx) error {
	accountID := usercontext.GetAccountID(c)
	totals, err := counter.GetFunnelTotals(accountID)
	if err != nil {
		return respondError(c, faults.Storage(err))
	}
	return c.JSON(fiber.Map{
		"account_id": accountID,
		"started":    totals.Started,
		"saved":      totals.Saved,
		"cancelled":  totals.Cancelled,
		"save_rate":  totals.SaveRate(),
	})
}

// GetAccountRecoveredTotal returns the ledger sum for the authenticated account.
func (s *APIServer) GetAccountRecoveredTotal(c *fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	accountID := usercontext.GetAccountID(c)
	total, err := ledger.NewServiceFromDB(database.GetDB()).TotalRecovered(ctx, accountID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(TotalRecoveredResponse{AccountID: accountID, TotalRecoveredCents: total})
}

// GetRecoveryQueue returns the globally ranked open-case queue (admin only).
func (s *APIServer) GetRecoveryQueue(c *fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	limit, _ := strconv.Atoi(c.Query("limit", "100"))
	svc := recovery.NewServiceFromDB(database.GetDB())
	ranked, err := svc.RankedQueue(ctx, limit)
	if err != nil {
		return respondError(c, err)
	}

	now := time.Now()
	out := make([]CaseResponse, 0, len(ranked))
	for _, entry := range ranked {
		out = append(out, caseResponse(&entry.Case, now, entry.Priority))
	}
	return c.JSON(fiber.Map{"queue": out})
}

// PostSimulateRecovery resolves one case by operator action (admin only).
// A case that was already resolved answers 200 with already_resolved set.
func (s *APIServer) PostSimulateRecovery(c *fiber.Ctx, publicID string) error {
	ctx, cancel := requestContext()
	defer cancel()

	svc := recovery.NewServiceFromDB(database.GetDB())
	out, err := svc.SimulateRecovery(ctx, publicID)
	if err != nil && !errors.Is(err, faults.ErrInvalidTransition) {
		return respondError(c, err)
	}

	resp := fiber.Map{
		"case":             caseResponse(out.Case, time.Now(), 0),
		"already_resolved": out.AlreadyResolved || err != nil,
	}
	if err != nil {
		resp["code"] = faults.Code(err)
	}
	return c.JSON(resp)
}

// PostRecompute triggers a batch risk recompute (admin only). The shared
// fixed-window limiter answers 429 with Retry-After once the budget is spent.
func (s *APIServer) PostRecompute(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if s.recomputeLimiter != nil {
		ok, retryAfter, err := s.recomputeLimiter.Allow(ctx)
		if err == nil && !ok {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(retryAfter.Seconds())+1))
			return respondError(c, faults.ErrRateLimited)
		}
	}

	result, err := risk.NewServiceFromDB(database.GetDB()).ScoreAtRiskAccounts(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(RecomputeResponse{Processed: result.Processed, Success: result.Success, Errors: result.Errors})
}

// PostExpirySweep runs one expiry sweep on demand (admin only).
func (s *APIServer) PostExpirySweep(c *fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	expired, err := recovery.NewServiceFromDB(database.GetDB()).ExpireSweep(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"expired": expired})
}

func caseResponse(rc *models.RecoveryCase, now time.Time, priority float64) CaseResponse {
	return CaseResponse{
		PublicID:         rc.PublicID,
		InvoiceReference: rc.InvoiceReference,
		AmountAtRisk:     rc.AmountAtRisk,
		Currency:         rc.Currency,
		ChurnReason:      string(rc.ChurnReason),
		ChurnReasonLabel: rc.ChurnReason.Label(),
		Status:           string(rc.EffectiveStatus(now)),
		OpenedAt:         rc.OpenedAt.UTC().Format(time.RFC3339),
		DeadlineAt:       rc.DeadlineAt.UTC().Format(time.RFC3339),
		HoursRemaining:   rc.HoursRemaining(now),
		Priority:         priority,
	}
}
