package models

import "time"

const (
	SubscriptionStatusActive     = "active"
	SubscriptionStatusTrialing   = "trialing"
	SubscriptionStatusPastDue    = "past_due"
	SubscriptionStatusUnpaid     = "unpaid"
	SubscriptionStatusCanceled   = "canceled"
	SubscriptionStatusIncomplete = "incomplete"
	SubscriptionStatusPaused     = "paused"
)

// Subscription mirrors the provider's subscription state per customer. It is
// a trusted read synced from webhooks and never authored locally; the risk
// scorer consumes it as its second input next to the signal log.
type Subscription struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	AccountID              uint       `gorm:"not null;index" json:"account_id"`
	CustomerReference      string     `gorm:"type:varchar(191);not null;index" json:"customer_reference"`
	ProviderSubscriptionID string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"provider_subscription_id"`
	Status                 string     `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	CurrentPeriodStart     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	TrialEnd               *time.Time `gorm:"type:timestamp;default:null" json:"trial_end,omitempty"`
	CancelAtPeriodEnd      bool       `gorm:"default:false" json:"cancel_at_period_end"`
	AmountCents            int64      `gorm:"not null;default:0" json:"amount_cents"`
	Currency               string     `gorm:"type:char(3);not null;default:'USD'" json:"currency"`
	RawPayloadJSON         string     `gorm:"type:longtext" json:"raw_payload_json"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsDelinquent reports whether the subscription is past due or unpaid.
func (s *Subscription) IsDelinquent() bool {
	return s.Status == SubscriptionStatusPastDue || s.Status == SubscriptionStatusUnpaid
}

// IsBillable reports whether the subscription still renews (active/trialing).
func (s *Subscription) IsBillable() bool {
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusTrialing
}
