package risk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarekWeber/RevRescue/app/models"
	"github.com/MarekWeber/RevRescue/internal/pkg/faults"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// ErrScoreWriteFailed marks a scoring run whose snapshot upsert failed.
// The computed score is still returned so callers can serve it; only the
// persisted snapshot is stale.
var ErrScoreWriteFailed = errors.New("risk snapshot write failed")

// Service recomputes churn risk snapshots from the signal log.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a risk service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// NewServiceFromDB creates a risk service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// WithClock overrides the clock for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RecordSignal appends one immutable event to the account's signal log.
func (s *Service) RecordSignal(ctx context.Context, event *models.RiskSignalEvent) error {
	_ = ctx
	if event.AccountID == 0 || !event.EventType.Valid() {
		return fmt.Errorf("%w: account_id and a known event_type are required", faults.ErrValidation)
	}
	if event.Severity == 0 {
		event.Severity = event.EventType.DefaultSeverity()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if err := s.repo.AppendSignal(event); err != nil {
		return faults.Storage(err)
	}
	return nil
}

// Score recomputes the risk snapshot for one account and upserts it.
// Always in [0,100] with at most five reasons.
func (s *Service) Score(ctx context.Context, accountID uint) (Score, error) {
	_ = ctx
	if accountID == 0 {
		return Score{}, fmt.Errorf("%w: account_id is required", faults.ErrValidation)
	}

	now := s.now()
	signals, err := s.repo.ListSignalsSince(accountID, now.Add(-failureLookback))
	if err != nil {
		return Score{}, faults.Storage(err)
	}

	sub, err := s.repo.GetSubscriptionByAccount(accountID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return Score{}, faults.Storage(err)
	}

	score := Compute(now, signals, sub)

	snapshot := &models.RiskSnapshot{AccountID: accountID, Score: score.Value}
	snapshot.SetReasons(score.Reasons)
	if err := s.repo.UpsertSnapshot(snapshot); err != nil {
		return score, fmt.Errorf("%w: %v", ErrScoreWriteFailed, err)
	}
	return score, nil
}

// BatchResult summarizes one recompute sweep over all at-risk accounts.
type BatchResult struct {
	Processed int `json:"processed"`
	Success   int `json:"success"`
	Errors    int `json:"errors"`
}

// ScoreAtRiskAccounts re-scores every account that produced a signal in the
// trailing lookback window. Individual failures are logged and counted, not
// propagated, so one bad account never aborts the sweep.
func (s *Service) ScoreAtRiskAccounts(ctx context.Context) (BatchResult, error) {
	ids, err := s.repo.ListAccountIDsWithSignalsSince(s.now().Add(-failureLookback))
	if err != nil {
		return BatchResult{}, faults.Storage(err)
	}

	result := BatchResult{Processed: len(ids)}
	for _, id := range ids {
		if _, err := s.Score(ctx, id); err != nil {
			log.Warnf("[Risk] re-score failed for account %d: %v", id, err)
			result.Errors++
			continue
		}
		result.Success++
	}
	return result, nil
}
