package models

import "time"

// LedgerEntry credits recovered revenue to one case and one source event,
// exactly once. The (recovery_case_id, source_event_id) unique index is the
// idempotency boundary against duplicate webhook delivery. Entries are never
// updated or deleted; a correction would be a separate reversal entry.
type LedgerEntry struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	RecoveryCaseID   uint      `gorm:"not null;index:ux_ledger_entries_case_source,unique,priority:1" json:"recovery_case_id"`
	OwnerAccountID   uint      `gorm:"not null;index" json:"owner_account_id"`
	InvoiceReference string    `gorm:"type:varchar(191);not null;default:''" json:"invoice_reference"`
	AmountRecovered  int64     `gorm:"not null;default:0" json:"amount_recovered"`
	Currency         string    `gorm:"type:char(3);not null;default:'USD'" json:"currency"`
	SourceEventID    string    `gorm:"type:varchar(191);not null;index:ux_ledger_entries_case_source,unique,priority:2;index" json:"source_event_id"`
	RecoveredAt      time.Time `gorm:"not null" json:"recovered_at"`
	Notes            string    `gorm:"type:varchar(500);default:''" json:"notes"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}
