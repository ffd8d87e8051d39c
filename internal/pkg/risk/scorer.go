package risk

import (
	"time"

	"github.com/MarekWeber/RevRescue/app/models"
)

// Scoring is deterministic and additive: each rule contributes a fixed
// weight and a reason code, the sum is clamped to [0,100] and the reasons
// are truncated to the first maxReasons that fired, in evaluation order.
// This is an explainable heuristic, not a statistical model.
const (
	weightRecentFailure   = 50
	weightRepeatedFailure = 20
	weightDelinquent      = 40
	weightCancelScheduled = 35
	weightTrialEnding     = 25
	weightRenewalDue      = 15

	maxScore   = 100
	maxReasons = 5

	failureLookback = 7 * 24 * time.Hour
	trialWindow     = 48 * time.Hour
	renewalWindow   = 3 * 24 * time.Hour
)

// Reason codes surfaced in snapshots and the dashboard.
const (
	ReasonRecentPaymentFailure    = "recent_payment_failure"
	ReasonRepeatedPaymentFailures = "repeated_payment_failures"
	ReasonDelinquentSubscription  = "delinquent_subscription"
	ReasonCancellationScheduled   = "cancellation_scheduled"
	ReasonTrialEndingSoon         = "trial_ending_soon"
	ReasonRenewalDueSoon          = "renewal_due_soon"
)

// Score is the result of one risk evaluation.
type Score struct {
	Value   int
	Reasons []string
}

// Compute evaluates the churn risk for one account from its recent signal
// log and current subscription snapshot. Pure: no I/O, no clock reads.
func Compute(now time.Time, signals []models.RiskSignalEvent, sub *models.Subscription) Score {
	total := 0
	reasons := make([]string, 0, maxReasons)

	add := func(weight int, reason string) {
		total += weight
		if len(reasons) < maxReasons {
			reasons = append(reasons, reason)
		}
	}

	failures := 0
	cutoff := now.Add(-failureLookback)
	for _, sig := range signals {
		if sig.EventType == models.SignalPaymentFailed && sig.OccurredAt.After(cutoff) {
			failures++
		}
	}
	if failures >= 1 {
		add(weightRecentFailure, ReasonRecentPaymentFailure)
	}
	if failures >= 2 {
		add(weightRepeatedFailure, ReasonRepeatedPaymentFailures)
	}

	if sub != nil {
		if sub.IsDelinquent() {
			add(weightDelinquent, ReasonDelinquentSubscription)
		}
		if sub.CancelAtPeriodEnd {
			add(weightCancelScheduled, ReasonCancellationScheduled)
		}
		if sub.TrialEnd != nil && sub.TrialEnd.After(now) && sub.TrialEnd.Before(now.Add(trialWindow)) {
			add(weightTrialEnding, ReasonTrialEndingSoon)
		}
		if sub.IsBillable() && sub.CurrentPeriodEnd != nil &&
			sub.CurrentPeriodEnd.After(now) && sub.CurrentPeriodEnd.Before(now.Add(renewalWindow)) {
			add(weightRenewalDue, ReasonRenewalDueSoon)
		}
	}

	if total > maxScore {
		total = maxScore
	}
	if total < 0 {
		total = 0
	}
	return Score{Value: total, Reasons: reasons}
}
