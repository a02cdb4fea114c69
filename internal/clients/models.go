package clients

import "time"

// Client is a billing account.
//
// Money invariant: BalanceMinor changes only through the billing store's
// transaction-producing operations (call charges, funding credits, audited
// manual adjustments). No code writes the balance column directly.
type Client struct {
	ID    string `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Email string `json:"email" db:"email"`

	// WebhookToken is the pre-shared per-client secret carried by the
	// telephony platform's callbacks. Unique across clients; it is the only
	// way an inbound call event resolves to an account.
	WebhookToken string `json:"-" db:"webhook_token"`

	Status ClientStatus `json:"status" db:"status"`

	Currency string `json:"currency" db:"currency"`

	// RatePerMinuteMinor is the per-client call rate in minor units per
	// started minute. Zero means the platform default applies.
	RatePerMinuteMinor int64 `json:"rate_per_minute_minor" db:"rate_per_minute_minor"`

	// BalanceMinor is the available funds in minor units. Signed: the
	// balance may go negative (policy-controlled, see config).
	BalanceMinor int64 `json:"balance_minor" db:"balance_minor"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type ClientStatus string

const (
	ClientStatusActive    ClientStatus = "active"
	ClientStatusSuspended ClientStatus = "suspended"
)

// EffectiveRateMinor resolves the billing rate for this client.
func (c Client) EffectiveRateMinor(defaultRateMinor int64) int64 {
	if c.RatePerMinuteMinor > 0 {
		return c.RatePerMinuteMinor
	}
	return defaultRateMinor
}
