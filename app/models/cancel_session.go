package models

import "time"

// SessionStatus is the cancel-flow state machine. survey_pending is initial;
// saved and cancelled are terminal. A session never regresses once it reaches
// offer_presented or later.
type SessionStatus string

const (
	SessionSurveyPending   SessionStatus = "survey_pending"
	SessionSurveyCompleted SessionStatus = "survey_completed"
	SessionOfferPresented  SessionStatus = "offer_presented"
	SessionSaved           SessionStatus = "saved"
	SessionCancelled       SessionStatus = "cancelled"
)

// Terminal reports whether the status ends the flow.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionSaved, SessionCancelled:
		return true
	case SessionSurveyPending, SessionSurveyCompleted, SessionOfferPresented:
		return false
	}
	return false
}

// OfferType is the closed set of retention offers the widget can present.
type OfferType string

const (
	OfferNone     OfferType = "none"
	OfferDiscount OfferType = "discount"
	OfferPause    OfferType = "pause"
)

// Valid reports whether t is a known offer type.
func (t OfferType) Valid() bool {
	switch t {
	case OfferNone, OfferDiscount, OfferPause:
		return true
	}
	return false
}

// CancelSession is a token-addressed widget session. The token is the
// identity (capability-style addressing): 32 bytes of crypto/rand,
// base64url, never a guessable sequential id.
type CancelSession struct {
	ID                 uint          `gorm:"primaryKey" json:"id"`
	Token              string        `gorm:"type:varchar(64);not null;uniqueIndex" json:"token"`
	AccountID          uint          `gorm:"not null;index" json:"account_id"`
	CustomerReference  string        `gorm:"type:varchar(191);not null;default:''" json:"customer_reference"`
	Status             SessionStatus `gorm:"type:varchar(32);not null;default:'survey_pending';index" json:"status"`
	ExitReason         string        `gorm:"type:varchar(100);default:''" json:"exit_reason"`
	CustomFeedback     string        `gorm:"type:text" json:"custom_feedback"`
	OfferTypePresented *OfferType    `gorm:"type:varchar(16);default:null" json:"offer_type_presented,omitempty"`
	OfferAccepted      *bool         `gorm:"default:null" json:"offer_accepted,omitempty"`
	ConfigVersion      int           `gorm:"not null;default:0" json:"config_version"`
	CreatedAt          time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
	ResolvedAt         *time.Time    `gorm:"type:timestamp;default:null" json:"resolved_at,omitempty"`
}
