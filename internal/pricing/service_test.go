package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"voiceai-billing/internal/clients"
)

var (
	planStart = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	planEnd   = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
)

func TestResolver_PlanWinsInsideWindow(t *testing.T) {
	repo := NewMemoryRepo()
	repo.Add(RatePlan{
		ID:                 "plan-1",
		ClientID:           "c1",
		Currency:           "USD",
		RatePerMinuteMinor: 12,
		EffectiveFrom:      planStart,
		EffectiveTo:        &planEnd,
		Status:             PlanStatusActive,
	})
	r := NewResolver(repo, 16)
	client := clients.Client{ID: "c1", RatePerMinuteMinor: 20}

	if got := r.RateFor(context.Background(), client, planStart.Add(time.Hour)); got != 12 {
		t.Fatalf("expected plan rate 12, got %d", got)
	}
	// Outside the window the standing client rate applies.
	if got := r.RateFor(context.Background(), client, planEnd.Add(time.Hour)); got != 20 {
		t.Fatalf("expected client rate 20, got %d", got)
	}
}

func TestResolver_LatestEffectiveFromWins(t *testing.T) {
	repo := NewMemoryRepo()
	repo.Add(RatePlan{ID: "old", ClientID: "c1", RatePerMinuteMinor: 12, EffectiveFrom: planStart, Status: PlanStatusActive})
	repo.Add(RatePlan{ID: "new", ClientID: "c1", RatePerMinuteMinor: 10, EffectiveFrom: planStart.Add(24 * time.Hour), Status: PlanStatusActive})
	r := NewResolver(repo, 16)

	got := r.RateFor(context.Background(), clients.Client{ID: "c1"}, planStart.Add(48*time.Hour))
	if got != 10 {
		t.Fatalf("expected newer plan rate 10, got %d", got)
	}
}

func TestResolver_ArchivedPlanIgnored(t *testing.T) {
	repo := NewMemoryRepo()
	repo.Add(RatePlan{ID: "p", ClientID: "c1", RatePerMinuteMinor: 12, EffectiveFrom: planStart, Status: PlanStatusArchived})
	r := NewResolver(repo, 16)

	got := r.RateFor(context.Background(), clients.Client{ID: "c1"}, planStart.Add(time.Hour))
	if got != 16 {
		t.Fatalf("expected platform default 16, got %d", got)
	}
}

type failingRepo struct{}

func (failingRepo) ActivePlan(ctx context.Context, clientID string, at time.Time) (RatePlan, error) {
	return RatePlan{}, errors.New("db down")
}

func TestResolver_LookupFailureFallsBack(t *testing.T) {
	r := NewResolver(failingRepo{}, 16)
	got := r.RateFor(context.Background(), clients.Client{ID: "c1", RatePerMinuteMinor: 20}, planStart)
	if got != 20 {
		t.Fatalf("expected fallback to client rate, got %d", got)
	}
}

func TestRatePlan_Covers(t *testing.T) {
	p := RatePlan{EffectiveFrom: planStart, EffectiveTo: &planEnd, Status: PlanStatusActive}
	if p.Covers(planStart.Add(-time.Second)) {
		t.Fatalf("must not cover before effective_from")
	}
	if !p.Covers(planStart) {
		t.Fatalf("must cover at effective_from")
	}
	if p.Covers(planEnd) {
		t.Fatalf("must not cover at effective_to")
	}
}
