package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Event types this service reacts to. Anything else is recorded and marked
// processed without side effects.
const (
	EventPaymentFailed       = "payment_failed"
	EventInvoicePaid         = "invoice_paid"
	EventSubscriptionUpdated = "subscription_updated"
)

// Envelope is the provider's outer webhook shape.
type Envelope struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// PaymentEvent is the normalized payload for payment_failed and invoice_paid.
type PaymentEvent struct {
	CustomerReference string `json:"customer"`
	InvoiceReference  string `json:"invoice"`
	AmountCents       int64  `json:"amount"`
	Currency          string `json:"currency"`
	FailureCode       string `json:"failure_code"`
	RetryScheduled    bool   `json:"retry_scheduled"`
}

// SubscriptionEvent is the normalized payload for subscription_updated.
type SubscriptionEvent struct {
	CustomerReference      string `json:"customer"`
	ProviderSubscriptionID string `json:"subscription"`
	Status                 string `json:"status"`
	CancelAtPeriodEnd      bool   `json:"cancel_at_period_end"`
	CurrentPeriodStart     int64  `json:"current_period_start"`
	CurrentPeriodEnd       int64  `json:"current_period_end"`
	TrialEnd               int64  `json:"trial_end"`
	AmountCents            int64  `json:"amount"`
	Currency               string `json:"currency"`
}

// ParseEnvelope decodes the outer webhook envelope.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid webhook body: %w", err)
	}
	env.Type = strings.TrimSpace(env.Type)
	if env.Type == "" {
		return nil, fmt.Errorf("webhook body has no event type")
	}
	return &env, nil
}

// ParsePayment decodes the data block of a payment event.
func (e *Envelope) ParsePayment() (*PaymentEvent, error) {
	var p PaymentEvent
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", e.Type, err)
	}
	if p.CustomerReference == "" || p.InvoiceReference == "" {
		return nil, fmt.Errorf("%s payload is missing customer or invoice", e.Type)
	}
	return &p, nil
}

// ParseSubscription decodes the data block of a subscription_updated event.
func (e *Envelope) ParseSubscription() (*SubscriptionEvent, error) {
	var s SubscriptionEvent
	if err := json.Unmarshal(e.Data, &s); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", e.Type, err)
	}
	if s.CustomerReference == "" || s.ProviderSubscriptionID == "" {
		return nil, fmt.Errorf("%s payload is missing customer or subscription", e.Type)
	}
	return &s, nil
}

// UnixOrNil converts a provider unix timestamp; zero means absent.
func UnixOrNil(ts int64) *time.Time {
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
