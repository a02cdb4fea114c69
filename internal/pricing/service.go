package pricing

import (
	"context"
	"errors"
	"time"

	"voiceai-billing/internal/clients"
	"voiceai-billing/pkg/logger"
)

// Resolver answers "what does a minute cost this client right now".
// Precedence: active rate plan, then the client's standing rate, then the
// platform default.
type Resolver struct {
	repo             Repository
	defaultRateMinor int64
}

func NewResolver(repo Repository, defaultRateMinor int64) *Resolver {
	return &Resolver{repo: repo, defaultRateMinor: defaultRateMinor}
}

// RateFor never fails: a plan lookup error falls back to the client's
// standing rate so a pricing outage cannot block billing.
func (r *Resolver) RateFor(ctx context.Context, client clients.Client, at time.Time) int64 {
	if r.repo != nil {
		plan, err := r.repo.ActivePlan(ctx, client.ID, at)
		switch {
		case err == nil:
			return plan.RatePerMinuteMinor
		case errors.Is(err, ErrNoPlan):
		default:
			logger.From(ctx).Error("rate plan lookup failed", "client_id", client.ID, "err", err)
		}
	}
	return client.EffectiveRateMinor(r.defaultRateMinor)
}
