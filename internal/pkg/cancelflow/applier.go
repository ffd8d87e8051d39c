package cancelflow

import (
	"context"
	"time"

	"github.com/MarekWeber/RevRescue/app/models"
	"github.com/gofiber/fiber/v2/log"
)

// OfferApplier provisions an accepted retention offer at the billing
// provider (discount coupon, subscription pause). It runs only for sessions
// that ended saved; failures must not undo the save, so implementations
// report them out-of-band.
type OfferApplier interface {
	ApplyOffer(ctx context.Context, session *models.CancelSession, offer models.OfferRule) error
}

// LogOfferApplier is the default applier: it records the accepted offer so
// operators can apply it manually. A billing-provider integration replaces
// it via Engine.WithOfferApplier.
type LogOfferApplier struct{}

func (LogOfferApplier) ApplyOffer(_ context.Context, session *models.CancelSession, offer models.OfferRule) error {
	log.Infof("[CancelFlow] apply %s offer for account %d customer %s (%d%% / %d months)",
		offer.Type, session.AccountID, session.CustomerReference, offer.Percentage, offer.DurationMonths)
	return nil
}

// applyOffer hands the accepted offer to the configured applier. The session
// is already saved at this point; an applier failure is logged and retried by
// operations, never surfaced to the widget.
func (e *Engine) applyOffer(ctx context.Context, session *models.CancelSession, offer models.OfferRule) {
	if e.applier == nil {
		return
	}
	applyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := e.applier.ApplyOffer(applyCtx, session, offer); err != nil {
		log.Errorf("[CancelFlow] offer apply failed for account %d: %v", session.AccountID, err)
	}
}
