package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// OfferConfig stores one immutable version of an account's retention
// configuration: survey reasons, per-reason offer mapping, defaults,
// branding. The visual editors that author these blobs live outside this
// service; the engine only ever reads the active version as a snapshot.
type OfferConfig struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AccountID   uint      `gorm:"not null;index:ux_offer_configs_account_version,unique,priority:1" json:"account_id"`
	Version     int       `gorm:"not null;index:ux_offer_configs_account_version,unique,priority:2" json:"version"`
	IsActive    bool      `gorm:"default:false;index" json:"is_active"`
	PayloadJSON string    `gorm:"type:longtext;not null" json:"payload_json"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// OfferRule describes one resolved retention offer.
type OfferRule struct {
	Type           OfferType `json:"type" validate:"required,oneof=none discount pause"`
	Percentage     int       `json:"percentage" validate:"min=0,max=100"`
	DurationMonths int       `json:"duration_months" validate:"min=0,max=24"`
}

// SurveyReason is one selectable exit reason in the widget survey.
type SurveyReason struct {
	Code  string `json:"code" validate:"required,max=100"`
	Label string `json:"label" validate:"required,max=200"`
}

// OfferConfigSnapshot is the parsed, immutable view of a config version the
// engine works with for the duration of one request.
type OfferConfigSnapshot struct {
	Version       int                  `json:"version"`
	SurveyReasons []SurveyReason       `json:"survey_reasons" validate:"required,min=1,dive"`
	DefaultOffer  OfferRule            `json:"default_offer" validate:"required"`
	ReasonOffers  map[string]OfferRule `json:"reason_offers" validate:"dive"`
	BrandColor    string               `json:"brand_color"`
	DisplayMode   string               `json:"display_mode"`
}

// Snapshot parses and validates the stored payload.
func (oc *OfferConfig) Snapshot() (*OfferConfigSnapshot, error) {
	var snap OfferConfigSnapshot
	if err := json.Unmarshal([]byte(oc.PayloadJSON), &snap); err != nil {
		return nil, fmt.Errorf("offer config %d: invalid payload: %w", oc.ID, err)
	}
	snap.Version = oc.Version

	v := validator.New()
	if err := v.Struct(&snap); err != nil {
		return nil, fmt.Errorf("offer config %d: %w", oc.ID, err)
	}
	return &snap, nil
}

// HasReason reports whether code is in the configured survey reason list.
func (s *OfferConfigSnapshot) HasReason(code string) bool {
	for _, r := range s.SurveyReasons {
		if r.Code == code {
			return true
		}
	}
	return false
}

// ResolveOffer returns the offer rule for an exit reason, preferring the
// per-reason mapping and falling back to the account default.
func (s *OfferConfigSnapshot) ResolveOffer(exitReason string) OfferRule {
	if rule, ok := s.ReasonOffers[exitReason]; ok {
		return rule
	}
	return s.DefaultOffer
}
