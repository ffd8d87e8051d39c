package models

import (
	"strings"
	"time"
)

// RiskSnapshot holds the derived churn risk per account, one row per account,
// fully overwritten on each recompute. Never hand-edited.
type RiskSnapshot struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	AccountID  uint      `gorm:"not null;uniqueIndex" json:"account_id"`
	Score      int       `gorm:"not null;default:0;index" json:"score"`
	TopReasons string    `gorm:"type:varchar(500);default:''" json:"top_reasons"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Reasons splits the stored comma-separated reason codes.
func (s *RiskSnapshot) Reasons() []string {
	if s.TopReasons == "" {
		return nil
	}
	return strings.Split(s.TopReasons, ",")
}

// SetReasons stores reason codes as a comma-separated list.
func (s *RiskSnapshot) SetReasons(reasons []string) {
	s.TopReasons = strings.Join(reasons, ",")
}
