package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallsSummaryRequest requests aggregated call metrics.
// Tenant isolation: ClientID is required.

type CallsSummaryRequest struct {
	ClientID string    `json:"client_id"`
	Range    TimeRange `json:"range"`
}

type CallsSummary struct {
	ClientID string `json:"client_id"`

	TotalCalls      int `json:"total_calls"`
	SuccessfulCalls int `json:"successful_calls"`
	VoicemailCalls  int `json:"voicemail_calls"`
	RecordedCalls   int `json:"recorded_calls"`

	TotalDurationSeconds   int64 `json:"total_duration_seconds"`
	AverageDurationSeconds int64 `json:"average_duration_seconds"`

	TotalBillableMinutes int   `json:"total_billable_minutes"`
	TotalCostMinor       int64 `json:"total_cost_minor"`

	// SentimentCounts keys are the raw analysis labels (positive, neutral, ...).
	SentimentCounts map[string]int `json:"sentiment_counts,omitempty"`
}

// SpendSummaryRequest requests aggregated spend metrics.
// Spend is derived from immutable ledger transactions scoped to the client.

type SpendSummaryRequest struct {
	ClientID string    `json:"client_id"`
	Range    TimeRange `json:"range"`
}

type SpendSummary struct {
	ClientID string `json:"client_id"`
	Currency string `json:"currency"`

	CallChargesMinor  int64 `json:"call_charges_minor"`
	RechargesMinor    int64 `json:"recharges_minor"`
	SubscriptionMinor int64 `json:"subscription_minor"`
	AdjustmentsMinor  int64 `json:"adjustments_minor"`

	NetDeltaMinor int64 `json:"net_delta_minor"`

	TransactionCount int `json:"transaction_count"`
}
