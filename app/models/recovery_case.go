package models

import (
	"fmt"
	"time"
)

// CaseDeadline is the fixed recovery window. deadline_at is set once at
// creation to opened_at + CaseDeadline and never extended.
const CaseDeadline = 48 * time.Hour

// CaseStatus is the recovery case state machine: open is initial,
// recovered and expired are terminal.
type CaseStatus string

const (
	CaseOpen      CaseStatus = "open"
	CaseRecovered CaseStatus = "recovered"
	CaseExpired   CaseStatus = "expired"
)

// Terminal reports whether the status is a terminal state.
func (s CaseStatus) Terminal() bool {
	switch s {
	case CaseRecovered, CaseExpired:
		return true
	case CaseOpen:
		return false
	}
	return false
}

// ChurnReason is the closed set of failure classifications for a case.
type ChurnReason string

const (
	ReasonCardExpired       ChurnReason = "card_expired"
	ReasonInsufficientFunds ChurnReason = "insufficient_funds"
	ReasonBankDecline       ChurnReason = "bank_decline"
	ReasonNoRetryAttempted  ChurnReason = "no_retry_attempted"
	ReasonUnknownFailure    ChurnReason = "unknown_failure"
)

// Label returns the operator-facing label for a churn reason. The switch is
// exhaustive on purpose: adding a reason without a label is a compile-visible
// change here, not a silent fallthrough.
func (r ChurnReason) Label() string {
	switch r {
	case ReasonCardExpired:
		return "Card expired"
	case ReasonInsufficientFunds:
		return "Insufficient funds"
	case ReasonBankDecline:
		return "Bank declined"
	case ReasonNoRetryAttempted:
		return "No retry scheduled"
	case ReasonUnknownFailure:
		return "Unknown failure"
	}
	return string(r)
}

// ClassifyFailure maps a provider decline code plus retry info onto the
// closed ChurnReason set.
func ClassifyFailure(failureCode string, retryScheduled bool) ChurnReason {
	switch failureCode {
	case "expired_card", "card_expired":
		return ReasonCardExpired
	case "insufficient_funds", "nsf":
		return ReasonInsufficientFunds
	case "do_not_honor", "generic_decline", "card_declined", "processor_decline":
		return ReasonBankDecline
	}
	if !retryScheduled {
		return ReasonNoRetryAttempted
	}
	return ReasonUnknownFailure
}

// RecoveryCase tracks one failed-payment incident from detection to
// resolution. Rows are terminal once resolved_at is set and are never
// deleted; they remain as the historical record for analytics.
//
// OpenInvoiceKey encodes the "at most one open case per
// (owner_account_id, invoice_reference)" invariant in a MySQL-friendly way:
// it holds "<owner>:<invoice>" while the case is open and is cleared to NULL
// on resolution, so the unique index only ever bites for open cases.
type RecoveryCase struct {
	ID                uint        `gorm:"primaryKey" json:"id"`
	PublicID          string      `gorm:"type:char(36);uniqueIndex" json:"public_id"`
	OwnerAccountID    uint        `gorm:"not null;index:idx_recovery_cases_owner_status,priority:1" json:"owner_account_id"`
	CustomerReference string      `gorm:"type:varchar(191);not null;default:''" json:"customer_reference"`
	InvoiceReference  string      `gorm:"type:varchar(191);not null;default:'';index" json:"invoice_reference"`
	AmountAtRisk      int64       `gorm:"not null;default:0" json:"amount_at_risk"`
	Currency          string      `gorm:"type:char(3);not null;default:'USD'" json:"currency"`
	ChurnReason       ChurnReason `gorm:"type:varchar(32);not null;default:'unknown_failure'" json:"churn_reason"`
	Status            CaseStatus  `gorm:"type:varchar(16);not null;default:'open';index:idx_recovery_cases_owner_status,priority:2" json:"status"`
	OpenInvoiceKey    *string     `gorm:"type:varchar(222);uniqueIndex" json:"-"`
	OpenedAt          time.Time   `gorm:"not null" json:"opened_at"`
	DeadlineAt        time.Time   `gorm:"not null;index" json:"deadline_at"`
	FirstActionAt     *time.Time  `gorm:"type:timestamp;default:null" json:"first_action_at,omitempty"`
	ResolvedAt        *time.Time  `gorm:"type:timestamp;default:null" json:"resolved_at,omitempty"`
	CreatedAt         time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// BuildOpenInvoiceKey returns the uniqueness key guarding open-case creation.
func BuildOpenInvoiceKey(ownerAccountID uint, invoiceReference string) string {
	return fmt.Sprintf("%d:%s", ownerAccountID, invoiceReference)
}

// EffectiveStatus resolves the status as of now. A stored open case whose
// deadline has passed reads as expired even before the sweep materializes it,
// so ranking, dashboard and ledger views never disagree.
func (rc *RecoveryCase) EffectiveStatus(now time.Time) CaseStatus {
	if rc.Status == CaseOpen && now.After(rc.DeadlineAt) {
		return CaseExpired
	}
	return rc.Status
}

// HoursRemaining returns the hours until the deadline; zero or negative
// means the window has closed.
func (rc *RecoveryCase) HoursRemaining(now time.Time) float64 {
	return rc.DeadlineAt.Sub(now).Hours()
}
