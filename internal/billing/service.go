package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"voiceai-billing/internal/audit"
	"voiceai-billing/internal/calls"
	"voiceai-billing/internal/clients"
	"voiceai-billing/internal/config"
	"voiceai-billing/internal/ledger"
	"voiceai-billing/pkg/logger"

	"github.com/google/uuid"
)

// Service is the billing ledger processor.
//
// Money invariants:
// - At most one debit per external call id, under concurrent duplicate delivery.
// - At most one credit per payment provider event id.
// - Every balance change has exactly one ledger transaction.
// - Notification and audit failures never fail a committed billing operation.
type Service struct {
	store    Store
	notifier Notifier
	audit    *audit.Service
	policy   Policy
	rates    RateSource

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

// RateSource resolves the per-minute rate for a client at an instant,
// overriding the client's standing rate. Optional.
type RateSource interface {
	RateFor(ctx context.Context, client clients.Client, at time.Time) int64
}

// Notifier is the notification subsystem consumed by billing. Implementations
// must be safe for concurrent use; delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, clientID, kind, title, message string) error
}

// Policy carries platform billing defaults resolved from config.
type Policy struct {
	DefaultRatePerMinuteMinor int64
	Currency                  string
	LowBalanceThresholdMinor  int64
	SuspendOnNegative         bool
}

func PolicyFromConfig(cfg config.BillingConfig) Policy {
	return Policy{
		DefaultRatePerMinuteMinor: cfg.DefaultRatePerMinuteMinor,
		Currency:                  cfg.Currency,
		LowBalanceThresholdMinor:  cfg.LowBalanceThresholdMinor,
		SuspendOnNegative:         cfg.NegativeBalance == config.NegativeBalanceSuspend,
	}
}

func NewService(store Store, notifier Notifier, auditSvc *audit.Service, policy Policy) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		audit:    auditSvc,
		policy:   policy,
		clock:    time.Now,
	}
}

// WithRateSource plugs in rate-plan resolution. Without one the client's
// standing rate (or the platform default) applies.
func (s *Service) WithRateSource(r RateSource) *Service {
	s.rates = r
	return s
}

// CallEvent is a fully analyzed call-completion event from the telephony
// platform. The owning client is NOT in the event body; it is resolved from
// the pre-shared token carried by the delivery.
type CallEvent struct {
	ExternalID string    `json:"external_id"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	DurationMs int64     `json:"duration_ms"`

	Transcript   string `json:"transcript,omitempty"`
	RecordingURL string `json:"recording_url,omitempty"`
	Summary      string `json:"summary,omitempty"`

	Successful bool   `json:"successful"`
	Sentiment  string `json:"sentiment,omitempty"`
	Voicemail  bool   `json:"voicemail"`
}

// CallReceipt reports the outcome of processing a call event.
type CallReceipt struct {
	// Duplicate means the call id was already billed; nothing changed.
	Duplicate bool `json:"duplicate"`

	CallID          string `json:"call_id,omitempty"`
	TransactionID   string `json:"transaction_id,omitempty"`
	BillableMinutes int    `json:"billable_minutes"`
	CostMinor       int64  `json:"cost_minor"`

	BalanceAfterMinor int64 `json:"balance_after_minor"`
}

// ProcessCallEvent bills one completed call: resolve the client from the
// token, compute the charge, apply the debit exactly once, then run the
// low-balance check. Safe to invoke any number of times for the same
// external call id.
func (s *Service) ProcessCallEvent(ctx context.Context, token string, ev CallEvent) (CallReceipt, error) {
	if token == "" {
		return CallReceipt{}, ErrUnauthorized
	}

	client, err := s.store.ClientByToken(ctx, token)
	if err != nil {
		if errors.Is(err, clients.ErrNotFound) {
			return CallReceipt{}, ErrUnauthorized
		}
		return CallReceipt{}, fmt.Errorf("resolve client: %w", err)
	}

	if ev.ExternalID == "" {
		return CallReceipt{}, fmt.Errorf("%w: external call id required", ErrInvalidEvent)
	}
	if ev.DurationMs < 0 {
		return CallReceipt{}, fmt.Errorf("%w: negative duration", ErrInvalidEvent)
	}

	now := s.clock().UTC()
	rate := client.EffectiveRateMinor(s.policy.DefaultRatePerMinuteMinor)
	if s.rates != nil {
		rate = s.rates.RateFor(ctx, client, ev.StartedAt)
	}
	minutes := billableMinutes(ev.DurationMs)
	cost := callCostMinor(ev.DurationMs, rate)

	callRec := calls.Call{
		ID:              uuid.NewString(),
		ExternalID:      ev.ExternalID,
		ClientID:        client.ID,
		StartedAt:       ev.StartedAt,
		EndedAt:         ev.EndedAt,
		DurationMs:      ev.DurationMs,
		BillableMinutes: minutes,
		CostMinor:       cost,
		Currency:        client.Currency,
		Transcript:      ev.Transcript,
		RecordingURL:    ev.RecordingURL,
		Summary:         ev.Summary,
		Successful:      ev.Successful,
		Sentiment:       ev.Sentiment,
		Voicemail:       ev.Voicemail,
		CreatedAt:       now,
	}

	meta, _ := json.Marshal(map[string]any{
		"call_external_id": ev.ExternalID,
		"duration_ms":      ev.DurationMs,
		"billable_minutes": minutes,
		"rate_per_minute":  rate,
	})

	res, err := s.store.ApplyCallCharge(ctx, ChargeArgs{
		ClientID:          client.ID,
		Call:              callRec,
		TransactionID:     uuid.NewString(),
		CostMinor:         cost,
		Currency:          client.Currency,
		Description:       fmt.Sprintf("Call charge: %d min", minutes),
		Metadata:          string(meta),
		SuspendOnNegative: s.policy.SuspendOnNegative,
		Now:               now,
	})
	if err != nil {
		// Surfaced distinctly so the event source retries; the retry is safe
		// because the charge is gated on the call id.
		return CallReceipt{}, err
	}

	if !res.Applied {
		return CallReceipt{Duplicate: true, BalanceAfterMinor: res.BalanceAfterMinor}, nil
	}

	s.afterCharge(ctx, client, res)

	return CallReceipt{
		CallID:            callRec.ID,
		TransactionID:     res.TransactionID,
		BillableMinutes:   minutes,
		CostMinor:         cost,
		BalanceAfterMinor: res.BalanceAfterMinor,
	}, nil
}

// afterCharge runs the decoupled post-commit steps: low-balance alerting and
// suspension audit. Failures here are logged, never propagated.
func (s *Service) afterCharge(ctx context.Context, client clients.Client, res ChargeResult) {
	log := logger.From(ctx)

	if crossedLowBalance(res.BalanceBeforeMinor, res.BalanceAfterMinor, s.policy.LowBalanceThresholdMinor) {
		if s.notifier != nil {
			msg := fmt.Sprintf("Your balance dropped below %s. Recharge to keep your agents calling.",
				formatMinor(s.policy.LowBalanceThresholdMinor, client.Currency))
			if err := s.notifier.Notify(ctx, client.ID, "low_balance", "Low balance", msg); err != nil {
				log.Error("low balance notification failed", "client_id", client.ID, "err", err)
			}
		}
	}

	if res.Suspended {
		log.Warn("client suspended on negative balance", "client_id", client.ID, "balance_minor", res.BalanceAfterMinor)
		if s.audit != nil {
			if err := s.audit.LogClientSuspended(ctx, client.ID, res.TransactionID, ""); err != nil {
				log.Error("suspension audit failed", "client_id", client.ID, "err", err)
			}
		}
	}
}

// PaymentEvent is a verified payment confirmation from the payment provider.
type PaymentEvent struct {
	// EventID is the provider's event/session id, the funding dedup key.
	EventID  string
	ClientID string

	AmountMinor int64

	// Kind discriminates one-time recharges from recurring subscriptions.
	Kind ledger.TransactionKind

	Metadata string
}

// FundingReceipt reports the outcome of processing a payment event.
type FundingReceipt struct {
	Duplicate bool `json:"duplicate"`

	TransactionID     string `json:"transaction_id,omitempty"`
	BalanceAfterMinor int64  `json:"balance_after_minor"`
}

// ProcessPayment credits a confirmed payment exactly once per provider event id.
func (s *Service) ProcessPayment(ctx context.Context, ev PaymentEvent) (FundingReceipt, error) {
	if ev.EventID == "" || ev.ClientID == "" {
		return FundingReceipt{}, fmt.Errorf("%w: event id and client id required", ErrInvalidEvent)
	}
	if ev.AmountMinor <= 0 {
		return FundingReceipt{}, fmt.Errorf("%w: amount must be positive", ErrInvalidEvent)
	}
	if ev.Kind != ledger.TransactionKindRecharge && ev.Kind != ledger.TransactionKindSubscription {
		return FundingReceipt{}, fmt.Errorf("%w: unknown funding kind %q", ErrInvalidEvent, ev.Kind)
	}

	client, err := s.store.ClientByID(ctx, ev.ClientID)
	if err != nil {
		if errors.Is(err, clients.ErrNotFound) {
			return FundingReceipt{}, ErrClientNotFound
		}
		return FundingReceipt{}, fmt.Errorf("resolve client: %w", err)
	}

	now := s.clock().UTC()
	desc := "Recharge"
	if ev.Kind == ledger.TransactionKindSubscription {
		desc = "Subscription renewal"
	}

	res, err := s.store.ApplyFunding(ctx, FundingArgs{
		EventID:       ev.EventID,
		ClientID:      client.ID,
		TransactionID: uuid.NewString(),
		AmountMinor:   ev.AmountMinor,
		Currency:      client.Currency,
		Kind:          ev.Kind,
		Description:   desc,
		Metadata:      ev.Metadata,
		Now:           now,
	})
	if err != nil {
		return FundingReceipt{}, err
	}

	if !res.Applied {
		return FundingReceipt{Duplicate: true, BalanceAfterMinor: res.BalanceAfterMinor}, nil
	}

	if s.notifier != nil {
		msg := fmt.Sprintf("%s of %s applied. New balance: %s.",
			desc, formatMinor(ev.AmountMinor, client.Currency), formatMinor(res.BalanceAfterMinor, client.Currency))
		if err := s.notifier.Notify(ctx, client.ID, "recharge", "Payment received", msg); err != nil {
			logger.From(ctx).Error("recharge notification failed", "client_id", client.ID, "err", err)
		}
	}

	return FundingReceipt{
		TransactionID:     res.TransactionID,
		BalanceAfterMinor: res.BalanceAfterMinor,
	}, nil
}

// AdjustBalance applies an audited manual correction by staff. The delta is
// signed; reason is required.
func (s *Service) AdjustBalance(ctx context.Context, actorUserID, actorRole, ip, clientID string, deltaMinor int64, reason string) (AdjustmentResult, error) {
	if clientID == "" || deltaMinor == 0 || reason == "" {
		return AdjustmentResult{}, fmt.Errorf("%w: client id, non-zero delta and reason required", ErrInvalidEvent)
	}

	client, err := s.store.ClientByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, clients.ErrNotFound) {
			return AdjustmentResult{}, ErrClientNotFound
		}
		return AdjustmentResult{}, fmt.Errorf("resolve client: %w", err)
	}

	res, err := s.store.ApplyAdjustment(ctx, AdjustmentArgs{
		ClientID:      client.ID,
		TransactionID: uuid.NewString(),
		DeltaMinor:    deltaMinor,
		Currency:      client.Currency,
		Description:   reason,
		Now:           s.clock().UTC(),
	})
	if err != nil {
		return AdjustmentResult{}, err
	}

	if s.audit != nil {
		if err := s.audit.LogBalanceAdjustment(ctx, actorUserID, actorRole, ip, client.ID, res.TransactionID, reason, ""); err != nil {
			logger.From(ctx).Error("adjustment audit failed", "client_id", client.ID, "err", err)
		}
	}

	return res, nil
}

// crossedLowBalance reports a downward crossing of the alert threshold.
// Staying below the threshold does not re-trigger.
func crossedLowBalance(beforeMinor, afterMinor, thresholdMinor int64) bool {
	return beforeMinor >= thresholdMinor && afterMinor < thresholdMinor
}

func formatMinor(amountMinor int64, currency string) string {
	neg := ""
	if amountMinor < 0 {
		neg = "-"
		amountMinor = -amountMinor
	}
	return fmt.Sprintf("%s%d.%02d %s", neg, amountMinor/100, amountMinor%100, currency)
}
