package views

import (
	"context"
	"fmt"
	"html"
	"io"

	"github.com/a-h/templ"
)

// QueueRow is one ranked case in the operator work queue.
type QueueRow struct {
	PublicID       string
	OwnerEmail     string
	Invoice        string
	Amount         string
	ChurnReason    string
	Status         string
	HoursRemaining string
	Priority       string
}

// QueueIndex renders the ranked recovery queue table.
func QueueIndex(rows []QueueRow, csrfToken string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<section class="queue">
<h1>Recovery queue</h1>
<table>
<thead><tr><th>Priority</th><th>Owner</th><th>Invoice</th><th>Amount</th><th>Reason</th><th>Hours left</th><th></th></tr></thead>
<tbody>`); err != nil {
			return err
		}
		if len(rows) == 0 {
			if _, err := io.WriteString(w, `<tr><td colspan="7" class="empty">No open cases. Good.</td></tr>`); err != nil {
				return err
			}
		}
		for _, row := range rows {
			if _, err := fmt.Fprintf(w, `<tr>
<td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td>
<td><form method="post" action="/admin/cases/%s/simulate-recovery"><input type="hidden" name="_csrf" value="%s"><button type="submit">Mark recovered</button></form></td>
</tr>`,
				html.EscapeString(row.Priority),
				html.EscapeString(row.OwnerEmail),
				html.EscapeString(row.Invoice),
				html.EscapeString(row.Amount),
				html.EscapeString(row.ChurnReason),
				html.EscapeString(row.HoursRemaining),
				html.EscapeString(row.PublicID),
				html.EscapeString(csrfToken),
			); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</tbody></table></section>`)
		return err
	})
}

// Queue composes the full recovery queue page.
func Queue(rows []QueueRow, isAdmin bool, flashMessage, flashType, csrfToken string) templ.Component {
	return Layout(" | Recovery Queue", true, isAdmin, flashMessage, flashType, QueueIndex(rows, csrfToken))
}

// LedgerRow is one recovered amount in the ledger view.
type LedgerRow struct {
	Invoice     string
	Amount      string
	SourceEvent string
	RecoveredAt string
}

// LedgerIndex renders the attribution ledger with its running total.
func LedgerIndex(rows []LedgerRow, total string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<section class="ledger">
<h1>Recovered revenue</h1>
<p class="total">Total recovered: <strong>%s</strong></p>
<table>
<thead><tr><th>Invoice</th><th>Amount</th><th>Source event</th><th>Recovered at</th></tr></thead>
<tbody>`, html.EscapeString(total)); err != nil {
			return err
		}
		for _, row := range rows {
			if _, err := fmt.Fprintf(w, `<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
				html.EscapeString(row.Invoice),
				html.EscapeString(row.Amount),
				html.EscapeString(row.SourceEvent),
				html.EscapeString(row.RecoveredAt),
			); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</tbody></table></section>`)
		return err
	})
}

// Ledger composes the full ledger page.
func Ledger(rows []LedgerRow, total string, isAdmin bool, flashMessage, flashType string) templ.Component {
	return Layout(" | Ledger", true, isAdmin, flashMessage, flashType, LedgerIndex(rows, total))
}
