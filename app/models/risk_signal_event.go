package models

import "time"

// SignalType is the closed set of billing events that feed the risk score.
// New members must be added here and handled in every switch that consumes
// the type; there is deliberately no catch-all constructor.
type SignalType string

const (
	SignalPaymentFailed    SignalType = "payment_failed"
	SignalPastDue          SignalType = "past_due"
	SignalUnpaid           SignalType = "unpaid"
	SignalCancelScheduled  SignalType = "cancel_scheduled"
	SignalTrialEndingSoon  SignalType = "trial_ending_soon"
	SignalRenewalDueSoon   SignalType = "renewal_due_soon"
)

// Valid reports whether t is a known signal type.
func (t SignalType) Valid() bool {
	switch t {
	case SignalPaymentFailed, SignalPastDue, SignalUnpaid,
		SignalCancelScheduled, SignalTrialEndingSoon, SignalRenewalDueSoon:
		return true
	}
	return false
}

// DefaultSeverity returns the baseline severity for a signal type.
func (t SignalType) DefaultSeverity() int {
	switch t {
	case SignalPaymentFailed:
		return 90
	case SignalUnpaid:
		return 85
	case SignalPastDue:
		return 80
	case SignalCancelScheduled:
		return 70
	case SignalTrialEndingSoon:
		return 50
	case SignalRenewalDueSoon:
		return 30
	}
	return 0
}

// RiskSignalEvent is one entry in the append-only billing signal log.
// Rows are immutable once written; they are never updated or deleted.
type RiskSignalEvent struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	AccountID  uint       `gorm:"not null;index:idx_risk_signal_events_account_occurred,priority:1" json:"account_id"`
	EventType  SignalType `gorm:"type:varchar(32);not null;index" json:"event_type"`
	Severity   int        `gorm:"not null;default:0" json:"severity"`
	SourceRef  string     `gorm:"type:varchar(191);default:''" json:"source_ref"`
	OccurredAt time.Time  `gorm:"not null;index:idx_risk_signal_events_account_occurred,priority:2" json:"occurred_at"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
