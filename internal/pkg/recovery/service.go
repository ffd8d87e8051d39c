package recovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarekWeber/RevRescue/app/models"
	"github.com/MarekWeber/RevRescue/internal/pkg/faults"
	"github.com/MarekWeber/RevRescue/internal/pkg/ledger"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service is the recovery case manager. It owns the open → recovered/expired
// state machine; all writes go through conditional statements so concurrent
// webhook deliveries and the expiry sweep can never double-resolve a case.
type Service struct {
	repo   Repository
	ledger *ledger.Service
	now    func() time.Time
}

// NewService creates a recovery service from its dependencies.
func NewService(repo Repository, ledgerSvc *ledger.Service) *Service {
	return &Service{repo: repo, ledger: ledgerSvc, now: time.Now}
}

// NewServiceFromDB creates a recovery service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), ledger.NewServiceFromDB(db))
}

// WithClock overrides the clock for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	if s.ledger != nil {
		s.ledger.WithClock(now)
	}
	return s
}

// OpenCaseInput describes one failed payment worth opening a case for.
type OpenCaseInput struct {
	OwnerAccountID    uint
	CustomerReference string
	InvoiceReference  string
	AmountAtRisk      int64
	Currency          string
	FailureCode       string
	RetryScheduled    bool
}

// OpenCaseResult reports the case and whether this call created it.
// Created=false means a prior delivery already opened it.
type OpenCaseResult struct {
	Case    *models.RecoveryCase
	Created bool
}

// OpenCase opens a recovery case for a failed invoice, at most one open case
// per (owner, invoice). Re-delivered payment_failed events land on the
// open_invoice_key unique index and return the existing case.
func (s *Service) OpenCase(ctx context.Context, in OpenCaseInput) (OpenCaseResult, error) {
	_ = ctx
	if in.OwnerAccountID == 0 || strings.TrimSpace(in.InvoiceReference) == "" {
		return OpenCaseResult{}, fmt.Errorf("%w: owner_account_id and invoice_reference are required", faults.ErrValidation)
	}
	if in.AmountAtRisk < 0 {
		return OpenCaseResult{}, fmt.Errorf("%w: amount_at_risk must be non-negative", faults.ErrValidation)
	}

	now := s.now()
	key := models.BuildOpenInvoiceKey(in.OwnerAccountID, strings.TrimSpace(in.InvoiceReference))
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "USD"
	}

	rc := &models.RecoveryCase{
		PublicID:          uuid.New().String(),
		OwnerAccountID:    in.OwnerAccountID,
		CustomerReference: in.CustomerReference,
		InvoiceReference:  strings.TrimSpace(in.InvoiceReference),
		AmountAtRisk:      in.AmountAtRisk,
		Currency:          currency,
		ChurnReason:       models.ClassifyFailure(in.FailureCode, in.RetryScheduled),
		Status:            models.CaseOpen,
		OpenInvoiceKey:    &key,
		OpenedAt:          now,
		DeadlineAt:        now.Add(models.CaseDeadline),
	}

	created, stored, err := s.repo.CreateCaseIfNotExists(rc)
	if err != nil {
		return OpenCaseResult{}, faults.Storage(err)
	}
	if created {
		log.Infof("[Recovery] opened case %s for account %d invoice %s (%d %s, %s)",
			stored.PublicID, stored.OwnerAccountID, stored.InvoiceReference,
			stored.AmountAtRisk, stored.Currency, stored.ChurnReason)
	}
	return OpenCaseResult{Case: stored, Created: created}, nil
}

// RecoverOutcome reports how a recovery attempt resolved.
type RecoverOutcome struct {
	Case            *models.RecoveryCase
	AlreadyResolved bool
	LedgerCreated   bool
}

// RecoverFromPayment resolves the case behind a paid invoice and credits the
// ledger. Safe under replay: a re-delivered invoice_paid event finds the case
// already recovered, reports AlreadyResolved, and the ledger write dedupes on
// the provider event id.
func (s *Service) RecoverFromPayment(ctx context.Context, ownerAccountID uint, invoiceReference, sourceEventID string, amountPaid int64, currency string) (RecoverOutcome, error) {
	if ownerAccountID == 0 || strings.TrimSpace(invoiceReference) == "" || strings.TrimSpace(sourceEventID) == "" {
		return RecoverOutcome{}, fmt.Errorf("%w: owner_account_id, invoice_reference and source_event_id are required", faults.ErrValidation)
	}

	rc, err := s.repo.GetLatestByInvoice(ownerAccountID, strings.TrimSpace(invoiceReference))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RecoverOutcome{}, fmt.Errorf("%w: no recovery case for invoice %s", faults.ErrNotFound, invoiceReference)
		}
		return RecoverOutcome{}, faults.Storage(err)
	}

	outcome, err := s.resolve(ctx, rc)
	if err != nil {
		return outcome, err
	}

	// Credit the ledger whether this call did the resolving or a duplicate
	// delivery is replaying it; the provider event id makes the write
	// idempotent either way.
	amount := amountPaid
	if amount <= 0 {
		amount = outcome.Case.AmountAtRisk
	}
	res, err := s.ledger.Record(ctx, ledger.RecordInput{
		CaseID:           outcome.Case.ID,
		OwnerAccountID:   outcome.Case.OwnerAccountID,
		SourceEventID:    sourceEventID,
		AmountRecovered:  amount,
		Currency:         currency,
		InvoiceReference: outcome.Case.InvoiceReference,
	})
	if err != nil {
		return outcome, err
	}
	outcome.LedgerCreated = res.Created
	return outcome, nil
}

// SimulateRecovery resolves a case by operator action. Each call mints its
// own synthetic source event id, so the ledger is only credited on the call
// that actually performed the transition; a repeat lands on AlreadyResolved
// and writes nothing.
func (s *Service) SimulateRecovery(ctx context.Context, publicID string) (RecoverOutcome, error) {
	rc, err := s.repo.GetByPublicID(publicID)
	if err != nil {
		return RecoverOutcome{}, faults.Storage(err)
	}

	outcome, err := s.resolve(ctx, rc)
	if err != nil || outcome.AlreadyResolved {
		return outcome, err
	}

	res, err := s.ledger.Record(ctx, ledger.RecordInput{
		CaseID:          outcome.Case.ID,
		OwnerAccountID:  outcome.Case.OwnerAccountID,
		SourceEventID:   "sim:" + uuid.New().String(),
		AmountRecovered: outcome.Case.AmountAtRisk,
		Notes:           "manual recovery",
	})
	if err != nil {
		return outcome, err
	}
	outcome.LedgerCreated = res.Created
	return outcome, nil
}

// resolve performs the open → recovered transition on one loaded case. On a
// lost conditional update it reloads once to distinguish a concurrent
// recovery (benign) from an expired window (also benign, but never credited).
func (s *Service) resolve(ctx context.Context, rc *models.RecoveryCase) (RecoverOutcome, error) {
	_ = ctx
	now := s.now()

	switch rc.EffectiveStatus(now) {
	case models.CaseRecovered:
		return RecoverOutcome{Case: rc, AlreadyResolved: true}, nil
	case models.CaseExpired:
		return RecoverOutcome{Case: rc}, fmt.Errorf("%w: case %s already expired", faults.ErrInvalidTransition, rc.PublicID)
	}

	updated, err := s.repo.MarkRecovered(rc.ID, now)
	if err != nil {
		return RecoverOutcome{}, faults.Storage(err)
	}
	if !updated {
		// Lost the race. One reload settles which writer won.
		reloaded, err := s.repo.GetByID(rc.ID)
		if err != nil {
			return RecoverOutcome{}, faults.Storage(err)
		}
		if reloaded.Status == models.CaseRecovered {
			return RecoverOutcome{Case: reloaded, AlreadyResolved: true}, nil
		}
		return RecoverOutcome{Case: reloaded}, fmt.Errorf("%w: case %s already %s", faults.ErrInvalidTransition, rc.PublicID, reloaded.EffectiveStatus(now))
	}

	reloaded, err := s.repo.GetByID(rc.ID)
	if err != nil {
		return RecoverOutcome{}, faults.Storage(err)
	}
	log.Infof("[Recovery] case %s recovered for account %d invoice %s",
		reloaded.PublicID, reloaded.OwnerAccountID, reloaded.InvoiceReference)
	return RecoverOutcome{Case: reloaded}, nil
}

// RecordFirstAction stamps the first outreach on a case, once.
func (s *Service) RecordFirstAction(ctx context.Context, caseID uint) error {
	_ = ctx
	if err := s.repo.MarkFirstAction(caseID, s.now()); err != nil {
		return faults.Storage(err)
	}
	return nil
}

// ExpireSweep materializes expiry for every open case past its deadline and
// returns how many rows it flipped.
func (s *Service) ExpireSweep(ctx context.Context) (int64, error) {
	_ = ctx
	expired, err := s.repo.ExpireDue(s.now())
	if err != nil {
		return 0, faults.Storage(err)
	}
	if expired > 0 {
		log.Infof("[Recovery] expiry sweep closed %d case(s)", expired)
	}
	return expired, nil
}

// GetCase returns one case by its public id.
func (s *Service) GetCase(ctx context.Context, publicID string) (*models.RecoveryCase, error) {
	_ = ctx
	rc, err := s.repo.GetByPublicID(publicID)
	if err != nil {
		return nil, faults.Storage(err)
	}
	return rc, nil
}

// RankedQueue returns the open cases ordered by urgency for the work queue.
func (s *Service) RankedQueue(ctx context.Context, limit int) ([]RankedCase, error) {
	_ = ctx
	cases, err := s.repo.ListOpen(limit)
	if err != nil {
		return nil, faults.Storage(err)
	}
	return Rank(cases, s.now()), nil
}

// CasesForOwner lists an owner's cases, newest first.
func (s *Service) CasesForOwner(ctx context.Context, ownerAccountID uint, limit int) ([]models.RecoveryCase, error) {
	_ = ctx
	cases, err := s.repo.ListByOwner(ownerAccountID, limit)
	if err != nil {
		return nil, faults.Storage(err)
	}
	return cases, nil
}
