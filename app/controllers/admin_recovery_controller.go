package controllers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/a-h/templ"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/sujit-baniya/flash"

	"github.com/MarekWeber/RevRescue/app/repository"
	"github.com/MarekWeber/RevRescue/internal/pkg/database"
	"github.com/MarekWeber/RevRescue/internal/pkg/faults"
	"github.com/MarekWeber/RevRescue/internal/pkg/ledger"
	"github.com/MarekWeber/RevRescue/internal/pkg/recovery"
	"github.com/MarekWeber/RevRescue/internal/pkg/usercontext"
	"github.com/MarekWeber/RevRescue/views"
)

// HandleAdminQueue renders the ranked recovery queue for operators.
func HandleAdminQueue(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	svc := recovery.NewServiceFromDB(database.GetDB())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ranked, err := svc.RankedQueue(ctx, 200)
	if err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Could not load the recovery queue"}).Redirect("/")
	}

	accountRepo := repository.GetGlobalFactory().GetAccountRepository()
	rows := make([]views.QueueRow, 0, len(ranked))
	for _, entry := range ranked {
		ownerEmail := fmt.Sprintf("account %d", entry.Case.OwnerAccountID)
		if account, err := accountRepo.GetByID(entry.Case.OwnerAccountID); err == nil {
			ownerEmail = account.Email
		}
		rows = append(rows, views.QueueRow{
			PublicID:       entry.Case.PublicID,
			OwnerEmail:     ownerEmail,
			Invoice:        entry.Case.InvoiceReference,
			Amount:         formatCents(entry.Case.AmountAtRisk, entry.Case.Currency),
			ChurnReason:    entry.Case.ChurnReason.Label(),
			Status:         string(entry.Case.Status),
			HoursRemaining: fmt.Sprintf("%.1f", entry.HoursRemaining),
			Priority:       fmt.Sprintf("%.0f", entry.Priority),
		})
	}

	msg, typ := flashValues(c)
	page := views.Queue(rows, userCtx.IsAdmin, msg, typ, csrfToken(c))
	handler := adaptor.HTTPHandler(templ.Handler(page))
	return handler(c)
}

// HandleAdminLedger renders the recovered-revenue ledger for the logged-in
// operator's account.
func HandleAdminLedger(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	repo := ledger.NewRepository(database.GetDB())

	entries, err := repo.ListEntriesByAccount(userCtx.AccountID, 200)
	if err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Could not load the ledger"}).Redirect("/admin/queue")
	}
	total, err := repo.SumRecoveredByAccount(userCtx.AccountID)
	if err != nil {
		total = 0
	}

	rows := make([]views.LedgerRow, 0, len(entries))
	currency := "USD"
	for _, entry := range entries {
		currency = entry.Currency
		rows = append(rows, views.LedgerRow{
			Invoice:     entry.InvoiceReference,
			Amount:      formatCents(entry.AmountRecovered, entry.Currency),
			SourceEvent: entry.SourceEventID,
			RecoveredAt: entry.RecoveredAt.UTC().Format("2006-01-02 15:04"),
		})
	}

	msg, typ := flashValues(c)
	page := views.Ledger(rows, formatCents(total, currency), userCtx.IsAdmin, msg, typ)
	handler := adaptor.HTTPHandler(templ.Handler(page))
	return handler(c)
}

// HandleSimulateRecovery resolves a case by operator action from the queue UI.
func HandleSimulateRecovery(c *fiber.Ctx) error {
	publicID := c.Params("id")
	svc := recovery.NewServiceFromDB(database.GetDB())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out, err := svc.SimulateRecovery(ctx, publicID)
	if err != nil {
		if errors.Is(err, faults.ErrInvalidTransition) {
			return flash.WithInfo(c, fiber.Map{"type": "info", "message": "Case was already resolved"}).Redirect("/admin/queue")
		}
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Could not mark the case recovered"}).Redirect("/admin/queue")
	}
	if out.AlreadyResolved {
		return flash.WithInfo(c, fiber.Map{"type": "info", "message": "Case was already resolved"}).Redirect("/admin/queue")
	}

	msg := fmt.Sprintf("Recovered %s for invoice %s", formatCents(out.Case.AmountAtRisk, out.Case.Currency), out.Case.InvoiceReference)
	return flash.WithSuccess(c, fiber.Map{"type": "success", "message": msg}).Redirect("/admin/queue")
}

func formatCents(cents int64, currency string) string {
	return fmt.Sprintf("%.2f %s", float64(cents)/100, currency)
}
