package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MarekWeber/RevRescue/app/models"
	"github.com/MarekWeber/RevRescue/internal/pkg/faults"
	"gorm.io/gorm"
)

// Service is the append-only attribution ledger. One entry per
// (case, source event), ever.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a ledger service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// NewServiceFromDB creates a ledger service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// WithClock overrides the clock for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RecordInput describes one attribution write.
type RecordInput struct {
	CaseID           uint
	OwnerAccountID   uint
	SourceEventID    string
	AmountRecovered  int64
	Currency         string
	InvoiceReference string
	Notes            string
}

// RecordResult reports whether the call created the entry. Created=false
// means the pair was already attributed; callers must treat that as success.
type RecordResult struct {
	Created bool
	Entry   *models.LedgerEntry
}

// Record writes the attribution entry for (caseID, sourceEventID) at most
// once. The referenced case must already be recovered; crediting an open or
// expired case would break the ledger invariant.
func (s *Service) Record(ctx context.Context, in RecordInput) (RecordResult, error) {
	_ = ctx
	if in.CaseID == 0 || strings.TrimSpace(in.SourceEventID) == "" {
		return RecordResult{}, fmt.Errorf("%w: case_id and source_event_id are required", faults.ErrValidation)
	}
	if in.AmountRecovered < 0 {
		return RecordResult{}, fmt.Errorf("%w: amount_recovered must be non-negative", faults.ErrValidation)
	}

	rc, err := s.repo.GetCase(in.CaseID)
	if err != nil {
		return RecordResult{}, faults.Storage(err)
	}
	if rc.Status != models.CaseRecovered {
		return RecordResult{}, fmt.Errorf("%w: case %d is %s, only recovered cases can be credited", faults.ErrInvalidTransition, in.CaseID, rc.Status)
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = rc.Currency
	}

	entry := &models.LedgerEntry{
		RecoveryCaseID:   in.CaseID,
		OwnerAccountID:   in.OwnerAccountID,
		InvoiceReference: in.InvoiceReference,
		AmountRecovered:  in.AmountRecovered,
		Currency:         currency,
		SourceEventID:    strings.TrimSpace(in.SourceEventID),
		RecoveredAt:      s.now(),
		Notes:            in.Notes,
	}
	if entry.OwnerAccountID == 0 {
		entry.OwnerAccountID = rc.OwnerAccountID
	}
	if entry.InvoiceReference == "" {
		entry.InvoiceReference = rc.InvoiceReference
	}

	created, stored, err := s.repo.CreateEntryIfNotExists(entry)
	if err != nil {
		return RecordResult{}, faults.Storage(err)
	}
	return RecordResult{Created: created, Entry: stored}, nil
}

// TotalRecovered returns the recovered revenue for an account in cents.
func (s *Service) TotalRecovered(ctx context.Context, accountID uint) (int64, error) {
	_ = ctx
	total, err := s.repo.SumRecoveredByAccount(accountID)
	if err != nil {
		return 0, faults.Storage(err)
	}
	return total, nil
}
