package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/MarekWeber/RevRescue/app/models"
	"github.com/MarekWeber/RevRescue/internal/pkg/faults"
	"github.com/MarekWeber/RevRescue/internal/pkg/recovery"
	"github.com/MarekWeber/RevRescue/internal/pkg/risk"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// Notifier receives fire-and-forget notifications about webhook outcomes.
type Notifier interface {
	CaseOpened(account *models.Account, rc *models.RecoveryCase)
	CaseRecovered(account *models.Account, rc *models.RecoveryCase)
}

// Service ingests provider webhooks: record exactly once, then dispatch to
// the case manager and the risk scorer. Ingestion is the failure boundary —
// a scoring or notification failure never bounces the webhook back to the
// provider, only a storage failure does.
type Service struct {
	repo     Repository
	risk     *risk.Service
	recovery *recovery.Service
	notifier Notifier
}

// NewService creates a webhook service from its dependencies. notifier may
// be nil.
func NewService(repo Repository, riskSvc *risk.Service, recoverySvc *recovery.Service, notifier Notifier) *Service {
	return &Service{repo: repo, risk: riskSvc, recovery: recoverySvc, notifier: notifier}
}

// NewServiceFromDB creates a webhook service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, notifier Notifier) *Service {
	return NewService(NewRepository(db), risk.NewServiceFromDB(db), recovery.NewServiceFromDB(db), notifier)
}

// IngestResult reports how one delivery was handled.
type IngestResult struct {
	Event     *models.WebhookEvent
	Duplicate bool
}

// Ingest records one raw delivery and processes it. A re-delivered event id
// short-circuits after the dedup lookup; the provider gets the same answer
// both times.
func (s *Service) Ingest(ctx context.Context, provider string, raw []byte, signatureValid bool) (*IngestResult, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return nil, fmt.Errorf("%w: provider is required", faults.ErrValidation)
	}

	env, err := ParseEnvelope(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", faults.ErrValidation, err)
	}

	eventID := strings.TrimSpace(env.ID)
	if eventID == "" {
		sum := sha256.Sum256(raw)
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	created, stored, err := s.repo.CreateEventIfNotExists(&models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       env.Type,
		PayloadJSON:     string(raw),
		SignatureValid:  signatureValid,
	})
	if err != nil {
		return nil, faults.Storage(err)
	}
	if !created {
		log.Infof("[Webhook] duplicate delivery of %s/%s ignored", provider, eventID)
		return &IngestResult{Event: stored, Duplicate: true}, nil
	}

	s.process(ctx, stored, env)
	return &IngestResult{Event: stored}, nil
}

// process dispatches one stored event and marks it processed. Dispatch
// errors are recorded on the row, not returned: the delivery is already
// accepted at this point.
func (s *Service) process(ctx context.Context, event *models.WebhookEvent, env *Envelope) {
	var processErr error
	switch env.Type {
	case EventPaymentFailed:
		processErr = s.handlePaymentFailed(ctx, event, env)
	case EventInvoicePaid:
		processErr = s.handleInvoicePaid(ctx, event, env)
	case EventSubscriptionUpdated:
		processErr = s.handleSubscriptionUpdated(ctx, event, env)
	default:
		log.Infof("[Webhook] ignoring unhandled event type %s", env.Type)
	}

	errMsg := ""
	if processErr != nil {
		errMsg = processErr.Error()
		log.Errorf("[Webhook] processing %s/%s failed: %v", event.Provider, event.ProviderEventID, processErr)
	}
	if err := s.repo.MarkProcessed(event.ID, errMsg); err != nil {
		log.Errorf("[Webhook] could not mark event %d processed: %v", event.ID, err)
	}
}

func (s *Service) handlePaymentFailed(ctx context.Context, event *models.WebhookEvent, env *Envelope) error {
	payload, err := env.ParsePayment()
	if err != nil {
		return err
	}
	account, err := s.repo.GetAccountByExternalRef(payload.CustomerReference)
	if err != nil {
		return fmt.Errorf("unknown customer %s: %w", payload.CustomerReference, err)
	}

	res, err := s.recovery.OpenCase(ctx, recovery.OpenCaseInput{
		OwnerAccountID:    account.ID,
		CustomerReference: payload.CustomerReference,
		InvoiceReference:  payload.InvoiceReference,
		AmountAtRisk:      payload.AmountCents,
		Currency:          payload.Currency,
		FailureCode:       payload.FailureCode,
		RetryScheduled:    payload.RetryScheduled,
	})
	if err != nil {
		return err
	}

	s.recordSignalAndRescore(ctx, account.ID, models.SignalPaymentFailed, event.ProviderEventID)

	if res.Created && s.notifier != nil {
		go s.notifier.CaseOpened(account, res.Case)
	}
	return nil
}

func (s *Service) handleInvoicePaid(ctx context.Context, event *models.WebhookEvent, env *Envelope) error {
	payload, err := env.ParsePayment()
	if err != nil {
		return err
	}
	account, err := s.repo.GetAccountByExternalRef(payload.CustomerReference)
	if err != nil {
		return fmt.Errorf("unknown customer %s: %w", payload.CustomerReference, err)
	}

	out, err := s.recovery.RecoverFromPayment(ctx, account.ID, payload.InvoiceReference,
		event.ProviderEventID, payload.AmountCents, payload.Currency)
	if err != nil {
		// A paid invoice with no case, or one whose window closed, is a
		// normal payment, not a processing failure.
		if errors.Is(err, faults.ErrNotFound) || errors.Is(err, faults.ErrInvalidTransition) {
			log.Infof("[Webhook] invoice %s paid without live case: %v", payload.InvoiceReference, err)
			return nil
		}
		return err
	}

	s.rescore(ctx, account.ID)

	if !out.AlreadyResolved && s.notifier != nil {
		go s.notifier.CaseRecovered(account, out.Case)
	}
	return nil
}

func (s *Service) handleSubscriptionUpdated(ctx context.Context, event *models.WebhookEvent, env *Envelope) error {
	payload, err := env.ParseSubscription()
	if err != nil {
		return err
	}
	account, err := s.repo.GetAccountByExternalRef(payload.CustomerReference)
	if err != nil {
		return fmt.Errorf("unknown customer %s: %w", payload.CustomerReference, err)
	}

	sub := &models.Subscription{
		AccountID:              account.ID,
		CustomerReference:      payload.CustomerReference,
		ProviderSubscriptionID: payload.ProviderSubscriptionID,
		Status:                 strings.ToLower(strings.TrimSpace(payload.Status)),
		CurrentPeriodStart:     UnixOrNil(payload.CurrentPeriodStart),
		CurrentPeriodEnd:       UnixOrNil(payload.CurrentPeriodEnd),
		TrialEnd:               UnixOrNil(payload.TrialEnd),
		CancelAtPeriodEnd:      payload.CancelAtPeriodEnd,
		AmountCents:            payload.AmountCents,
		Currency:               strings.ToUpper(strings.TrimSpace(payload.Currency)),
		RawPayloadJSON:         string(env.Data),
	}
	if sub.Currency == "" {
		sub.Currency = "USD"
	}
	if err := s.repo.UpsertSubscription(sub); err != nil {
		return faults.Storage(err)
	}

	switch sub.Status {
	case models.SubscriptionStatusPastDue:
		s.recordSignalAndRescore(ctx, account.ID, models.SignalPastDue, event.ProviderEventID)
	case models.SubscriptionStatusUnpaid:
		s.recordSignalAndRescore(ctx, account.ID, models.SignalUnpaid, event.ProviderEventID)
	default:
		if sub.CancelAtPeriodEnd {
			s.recordSignalAndRescore(ctx, account.ID, models.SignalCancelScheduled, event.ProviderEventID)
		} else {
			s.rescore(ctx, account.ID)
		}
	}
	return nil
}

// recordSignalAndRescore feeds the scorer. Both steps live outside the
// webhook's failure domain: the case and subscription writes above are the
// authoritative outcome, a stale snapshot heals on the next recompute.
func (s *Service) recordSignalAndRescore(ctx context.Context, accountID uint, signalType models.SignalType, sourceRef string) {
	err := s.risk.RecordSignal(ctx, &models.RiskSignalEvent{
		AccountID: accountID,
		EventType: signalType,
		SourceRef: sourceRef,
	})
	if err != nil {
		log.Warnf("[Webhook] could not record %s signal for account %d: %v", signalType, accountID, err)
	}
	s.rescore(ctx, accountID)
}

func (s *Service) rescore(ctx context.Context, accountID uint) {
	if _, err := s.risk.Score(ctx, accountID); err != nil {
		log.Warnf("[Webhook] re-score failed for account %d: %v", accountID, err)
	}
}
