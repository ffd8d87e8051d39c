package notify

import (
	"fmt"

	"github.com/MarekWeber/RevRescue/app/models"
	"github.com/MarekWeber/RevRescue/internal/pkg/mail"
	"github.com/gofiber/fiber/v2/log"
)

// EmailNotifier sends operator emails about case lifecycle events. All sends
// are best-effort; a dead SMTP relay must never influence case state.
type EmailNotifier struct{}

// NewEmailNotifier creates the SMTP-backed notifier.
func NewEmailNotifier() *EmailNotifier {
	return &EmailNotifier{}
}

func (n *EmailNotifier) recipient(account *models.Account) string {
	if account.NotifyEmail != "" {
		return account.NotifyEmail
	}
	return account.Email
}

// CaseOpened notifies the owner that a payment failed and a recovery window
// is running.
func (n *EmailNotifier) CaseOpened(account *models.Account, rc *models.RecoveryCase) {
	to := n.recipient(account)
	if to == "" {
		return
	}

	subject := fmt.Sprintf("Payment failed: %s at risk", formatAmount(rc.AmountAtRisk, rc.Currency))
	body := fmt.Sprintf(
		"<p>A payment for invoice <strong>%s</strong> failed (%s).</p>"+
			"<p>%s is at risk. The recovery window closes at %s UTC.</p>",
		rc.InvoiceReference, rc.ChurnReason.Label(),
		formatAmount(rc.AmountAtRisk, rc.Currency),
		rc.DeadlineAt.UTC().Format("2006-01-02 15:04"),
	)
	if err := mail.SendMail(to, subject, body); err != nil {
		log.Warnf("[Notify] case-opened mail to %s failed: %v", to, err)
	}
}

// CaseRecovered notifies the owner that a failed payment came back.
func (n *EmailNotifier) CaseRecovered(account *models.Account, rc *models.RecoveryCase) {
	to := n.recipient(account)
	if to == "" {
		return
	}

	subject := fmt.Sprintf("Recovered: invoice %s was paid", rc.InvoiceReference)
	body := fmt.Sprintf(
		"<p>Invoice <strong>%s</strong> was paid after a failed attempt.</p>"+
			"<p>%s recovered.</p>",
		rc.InvoiceReference, formatAmount(rc.AmountAtRisk, rc.Currency),
	)
	if err := mail.SendMail(to, subject, body); err != nil {
		log.Warnf("[Notify] case-recovered mail to %s failed: %v", to, err)
	}
}

func formatAmount(cents int64, currency string) string {
	return fmt.Sprintf("%.2f %s", float64(cents)/100, currency)
}
