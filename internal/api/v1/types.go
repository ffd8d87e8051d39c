package apiv1

// Pong is the ping response body.
type Pong struct {
	Ping string `json:"ping"`
}

// StartSessionRequest starts a cancel-flow session for a customer.
type StartSessionRequest struct {
	CustomerReference string `json:"customer_reference"`
}

// SurveyRequest carries the widget survey submission.
type SurveyRequest struct {
	ExitReason     string `json:"exit_reason"`
	CustomFeedback string `json:"custom_feedback"`
}

// OfferResponseRequest carries the customer's answer to a retention offer.
type OfferResponseRequest struct {
	Accepted bool `json:"accepted"`
}

// RiskResponse is the stored risk snapshot for an account.
type RiskResponse struct {
	AccountID uint     `json:"account_id"`
	Score     int      `json:"score"`
	Reasons   []string `json:"reasons"`
	UpdatedAt string   `json:"updated_at,omitempty"`
}

// CaseResponse is one recovery case in API responses.
type CaseResponse struct {
	PublicID         string  `json:"public_id"`
	InvoiceReference string  `json:"invoice_reference"`
	AmountAtRisk     int64   `json:"amount_at_risk"`
	Currency         string  `json:"currency"`
	ChurnReason      string  `json:"churn_reason"`
	ChurnReasonLabel string  `json:"churn_reason_label"`
	Status           string  `json:"status"`
	OpenedAt         string  `json:"opened_at"`
	DeadlineAt       string  `json:"deadline_at"`
	HoursRemaining   float64 `json:"hours_remaining"`
	Priority         float64 `json:"priority,omitempty"`
}

// RecomputeResponse mirrors the batch recompute summary.
type RecomputeResponse struct {
	Processed int `json:"processed"`
	Success   int `json:"success"`
	Errors    int `json:"errors"`
}

// TotalRecoveredResponse is the ledger sum for an account.
type TotalRecoveredResponse struct {
	AccountID           uint  `json:"account_id"`
	TotalRecoveredCents int64 `json:"total_recovered_cents"`
}
