package calls

import "time"

// Call is an immutable record of one completed voice-AI interaction.
//
// ExternalID is the telephony platform's call id and the billing idempotency
// key: at most one row exists per external id system-wide (UNIQUE constraint,
// enforced at insert time by the billing store).
//
// Rows are created exactly once, when a fully analyzed call event is
// accepted, and never updated or deleted.
type Call struct {
	ID         string `json:"id" db:"id"`
	ExternalID string `json:"external_id" db:"external_id"`
	ClientID   string `json:"client_id" db:"client_id"`

	StartedAt time.Time `json:"started_at" db:"started_at"`
	EndedAt   time.Time `json:"ended_at" db:"ended_at"`

	DurationMs int64 `json:"duration_ms" db:"duration_ms"`

	// BillableMinutes and CostMinor are frozen at billing time so ledger
	// history survives rate changes.
	BillableMinutes int    `json:"billable_minutes" db:"billable_minutes"`
	CostMinor       int64  `json:"cost_minor" db:"cost_minor"`
	Currency        string `json:"currency" db:"currency"`

	Transcript   string `json:"transcript,omitempty" db:"transcript"`
	RecordingURL string `json:"recording_url,omitempty" db:"recording_url"`
	Summary      string `json:"summary,omitempty" db:"summary"`

	Successful bool   `json:"successful" db:"successful"`
	Sentiment  string `json:"sentiment,omitempty" db:"sentiment"`
	Voicemail  bool   `json:"voicemail" db:"voicemail"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
