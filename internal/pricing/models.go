package pricing

import "time"

// Rate plans are tenant-scoped. Amounts are minor units (cents) as int64.

type PlanStatus string

const (
	PlanStatusActive   PlanStatus = "active"
	PlanStatusArchived PlanStatus = "archived"
)

// RatePlan is an effective-dated per-minute rate for one client. When a plan
// covers the call's timestamp it takes precedence over the client's standing
// rate and the platform default.
type RatePlan struct {
	ID       string `json:"id" db:"id"`
	ClientID string `json:"client_id" db:"client_id"`

	Currency string `json:"currency" db:"currency"`

	// RatePerMinuteMinor is the price per started minute.
	RatePerMinuteMinor int64 `json:"rate_per_minute_minor" db:"rate_per_minute_minor"`

	// Effective window. A nil EffectiveTo means open-ended.
	EffectiveFrom time.Time  `json:"effective_from" db:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty" db:"effective_to"`

	Status PlanStatus `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Covers reports whether the plan is active at the given instant.
func (p RatePlan) Covers(at time.Time) bool {
	if p.Status != PlanStatusActive {
		return false
	}
	if at.Before(p.EffectiveFrom) {
		return false
	}
	if p.EffectiveTo != nil && !at.Before(*p.EffectiveTo) {
		return false
	}
	return true
}
