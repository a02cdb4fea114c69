package pricing

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu    sync.Mutex
	plans []RatePlan
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Add(p RatePlan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans = append(r.plans, p)
}

func (r *MemoryRepo) ActivePlan(ctx context.Context, clientID string, at time.Time) (RatePlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *RatePlan
	for i := range r.plans {
		p := r.plans[i]
		if p.ClientID != clientID || !p.Covers(at) {
			continue
		}
		if best == nil || p.EffectiveFrom.After(best.EffectiveFrom) {
			best = &r.plans[i]
		}
	}
	if best == nil {
		return RatePlan{}, ErrNoPlan
	}
	return *best, nil
}
