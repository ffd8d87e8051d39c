package cancelflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarekWeber/RevRescue/app/models"
	"github.com/MarekWeber/RevRescue/internal/pkg/faults"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

const feedbackMaxLen = 2000

// Engine drives the token-addressed cancel-flow state machine:
// survey_pending, then offer_presented when the survey answer maps to a
// real offer, ending in saved or cancelled.
// Every transition is a conditional UPDATE keyed on the current status, so a
// double-submitted widget can never move a session twice; the loser of the
// race gets the stored state back as a benign no-op.
type Engine struct {
	repo    Repository
	applier OfferApplier
	now     func() time.Time
}

// NewEngine creates a cancel-flow engine from an injected repository.
func NewEngine(repo Repository) *Engine {
	return &Engine{repo: repo, applier: LogOfferApplier{}, now: time.Now}
}

// NewEngineFromDB creates a cancel-flow engine from a GORM DB handle.
func NewEngineFromDB(db *gorm.DB) *Engine {
	return NewEngine(NewRepository(db))
}

// WithOfferApplier swaps the offer applier invoked when a customer accepts.
func (e *Engine) WithOfferApplier(a OfferApplier) *Engine {
	e.applier = a
	return e
}

// WithClock overrides the clock for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// SessionView is what the widget renders: the session plus the survey and
// branding from the config version the session was started under.
type SessionView struct {
	Session *models.CancelSession       `json:"session"`
	Config  *models.OfferConfigSnapshot `json:"config"`
	Offer   *models.OfferRule           `json:"offer,omitempty"`
}

// StartSession opens a new widget session for a customer about to cancel.
// The session pins the account's active config version so a mid-flow config
// publish cannot change the survey under the customer.
func (e *Engine) StartSession(ctx context.Context, accountID uint, customerReference string) (*SessionView, error) {
	_ = ctx
	if accountID == 0 {
		return nil, fmt.Errorf("%w: account_id is required", faults.ErrValidation)
	}

	config, err := e.repo.GetActiveConfig(accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: account %d has no active offer config", faults.ErrNotFound, accountID)
		}
		return nil, faults.Storage(err)
	}
	snapshot, err := config.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", faults.ErrUpstreamUnavailable, err)
	}

	token, err := NewSessionToken()
	if err != nil {
		return nil, err
	}

	_, stored, err := e.repo.CreateSessionIfNotExists(&models.CancelSession{
		Token:             token,
		AccountID:         accountID,
		CustomerReference: customerReference,
		Status:            models.SessionSurveyPending,
		ConfigVersion:     config.Version,
	})
	if err != nil {
		return nil, faults.Storage(err)
	}

	log.Infof("[CancelFlow] session started for account %d (config v%d)", accountID, config.Version)
	return &SessionView{Session: stored, Config: snapshot}, nil
}

// FetchSession returns the session for a token together with its pinned
// config snapshot.
func (e *Engine) FetchSession(ctx context.Context, token string) (*SessionView, error) {
	_ = ctx
	session, snapshot, err := e.load(token)
	if err != nil {
		return nil, err
	}

	view := &SessionView{Session: session, Config: snapshot}
	if session.OfferTypePresented != nil {
		rule := snapshot.ResolveOffer(session.ExitReason)
		view.Offer = &rule
	}
	return view, nil
}

// SubmitSurvey records the exit reason and advances the session. When the
// pinned config maps the reason to a real offer the session moves to
// offer_presented; a "none" offer skips the offer step entirely and
// finalizes the session as cancelled. Submitting twice, or against a
// finished session, is a benign no-op.
func (e *Engine) SubmitSurvey(ctx context.Context, token, exitReason, customFeedback string) (*SessionView, error) {
	_ = ctx
	session, snapshot, err := e.load(token)
	if err != nil {
		return nil, err
	}

	exitReason = strings.TrimSpace(exitReason)
	if !snapshot.HasReason(exitReason) {
		return nil, fmt.Errorf("%w: unknown exit reason %q", faults.ErrValidation, exitReason)
	}
	if len(customFeedback) > feedbackMaxLen {
		customFeedback = customFeedback[:feedbackMaxLen]
	}

	if session.Status != models.SessionSurveyPending {
		return e.benignNoOp(token, snapshot, "survey already submitted")
	}

	rule := snapshot.ResolveOffer(exitReason)
	updates := map[string]interface{}{
		"exit_reason":     exitReason,
		"custom_feedback": customFeedback,
	}
	if rule.Type != models.OfferNone {
		updates["status"] = models.SessionOfferPresented
		updates["offer_type_presented"] = rule.Type
	} else {
		updates["status"] = models.SessionCancelled
		updates["resolved_at"] = e.now()
	}

	moved, err := e.repo.TransitionFrom(token, models.SessionSurveyPending, updates)
	if err != nil {
		return nil, faults.Storage(err)
	}
	if !moved {
		return e.benignNoOp(token, snapshot, "survey already submitted")
	}

	view, err := e.FetchSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if rule.Type != models.OfferNone {
		view.Offer = &rule
	}
	return view, nil
}

// RespondToOffer records the customer's answer to the presented offer.
// Accepting saves the session and hands the offer to the applier; declining
// cancels it. Both outcomes are terminal. Responding twice is a benign no-op.
func (e *Engine) RespondToOffer(ctx context.Context, token string, accepted bool) (*SessionView, error) {
	session, snapshot, err := e.load(token)
	if err != nil {
		return nil, err
	}

	if session.Status != models.SessionOfferPresented {
		return e.benignNoOp(token, snapshot, "no offer awaiting a response")
	}

	updates := map[string]interface{}{
		"offer_accepted": accepted,
		"resolved_at":    e.now(),
	}
	if accepted {
		updates["status"] = models.SessionSaved
	} else {
		updates["status"] = models.SessionCancelled
	}

	moved, err := e.repo.TransitionFrom(token, models.SessionOfferPresented, updates)
	if err != nil {
		return nil, faults.Storage(err)
	}
	if !moved {
		return e.benignNoOp(token, snapshot, "offer already answered")
	}

	if accepted {
		log.Infof("[CancelFlow] customer saved via %s offer (account %d)", deref(session.OfferTypePresented), session.AccountID)
		e.applyOffer(ctx, session, snapshot.ResolveOffer(session.ExitReason))
	}
	return e.FetchSession(ctx, token)
}

// Complete finalizes the cancellation. It works from any live state, but a
// session the customer already saved stays saved: completing it again is a
// benign no-op, never a cancellation.
func (e *Engine) Complete(ctx context.Context, token string) (*SessionView, error) {
	_ = ctx
	session, snapshot, err := e.load(token)
	if err != nil {
		return nil, err
	}

	if session.Status.Terminal() {
		return e.benignNoOp(token, snapshot, "session already resolved")
	}

	moved, err := e.repo.ResolveActive(token, map[string]interface{}{
		"status":      models.SessionCancelled,
		"resolved_at": e.now(),
	})
	if err != nil {
		return nil, faults.Storage(err)
	}
	if !moved {
		return e.benignNoOp(token, snapshot, "session already resolved")
	}

	log.Infof("[CancelFlow] session cancelled for account %d (reason %q)", session.AccountID, session.ExitReason)
	return e.FetchSession(ctx, token)
}

// load fetches the session and its pinned config snapshot, falling back to
// the active config when the pinned version was pruned.
func (e *Engine) load(token string) (*models.CancelSession, *models.OfferConfigSnapshot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil, fmt.Errorf("%w: session token is required", faults.ErrValidation)
	}

	session, err := e.repo.GetByToken(token)
	if err != nil {
		return nil, nil, faults.Storage(err)
	}

	config, err := e.repo.GetConfigVersion(session.AccountID, session.ConfigVersion)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, faults.Storage(err)
		}
		if config, err = e.repo.GetActiveConfig(session.AccountID); err != nil {
			return nil, nil, faults.Storage(err)
		}
	}
	snapshot, err := config.Snapshot()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", faults.ErrUpstreamUnavailable, err)
	}
	return session, snapshot, nil
}

// benignNoOp reloads the stored state and wraps it in the benign transition
// error so handlers can answer 200 with the authoritative session.
func (e *Engine) benignNoOp(token string, snapshot *models.OfferConfigSnapshot, reason string) (*SessionView, error) {
	session, err := e.repo.GetByToken(token)
	if err != nil {
		return nil, faults.Storage(err)
	}
	view := &SessionView{Session: session, Config: snapshot}
	if session.OfferTypePresented != nil {
		rule := snapshot.ResolveOffer(session.ExitReason)
		view.Offer = &rule
	}
	return view, fmt.Errorf("%w: %s", faults.ErrInvalidTransition, reason)
}

func deref(t *models.OfferType) models.OfferType {
	if t == nil {
		return models.OfferNone
	}
	return *t
}
