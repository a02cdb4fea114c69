package reporting

import (
	"context"
	"errors"
	"time"

	"voiceai-billing/internal/calls"
	"voiceai-billing/internal/ledger"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
//
// Implementations must enforce client scoping and should read from the
// immutable sources (call records, ledger transactions).

type Repository interface {
	ListCalls(ctx context.Context, clientID string, from, to time.Time) ([]calls.Call, error)
	ListTransactions(ctx context.Context, clientID string, from, to time.Time) ([]ledger.Transaction, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if err := validateRange(req.ClientID, req.Range); err != nil {
		return CallsSummary{}, err
	}
	if s.repo == nil {
		return CallsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCalls(ctx, req.ClientID, req.Range.From, req.Range.To)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{ClientID: req.ClientID}
	for _, c := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += c.DurationMs / 1000
		out.TotalBillableMinutes += c.BillableMinutes
		out.TotalCostMinor += c.CostMinor
		if c.Successful {
			out.SuccessfulCalls++
		}
		if c.Voicemail {
			out.VoicemailCalls++
		}
		if c.RecordingURL != "" {
			out.RecordedCalls++
		}
		if c.Sentiment != "" {
			if out.SentimentCounts == nil {
				out.SentimentCounts = map[string]int{}
			}
			out.SentimentCounts[c.Sentiment]++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / int64(out.TotalCalls)
	}
	return out, nil
}

func (s *Service) SpendSummary(ctx context.Context, req SpendSummaryRequest) (SpendSummary, error) {
	if err := validateRange(req.ClientID, req.Range); err != nil {
		return SpendSummary{}, err
	}
	if s.repo == nil {
		return SpendSummary{}, errors.New("reporting: repository not configured")
	}

	txs, err := s.repo.ListTransactions(ctx, req.ClientID, req.Range.From, req.Range.To)
	if err != nil {
		return SpendSummary{}, err
	}

	out := SpendSummary{ClientID: req.ClientID}
	for _, tx := range txs {
		if out.Currency == "" {
			out.Currency = tx.Currency
		}
		out.TransactionCount++
		out.NetDeltaMinor += tx.AmountMinor

		switch tx.Kind {
		case ledger.TransactionKindCallCharge:
			out.CallChargesMinor += -tx.AmountMinor
		case ledger.TransactionKindRecharge:
			out.RechargesMinor += tx.AmountMinor
		case ledger.TransactionKindSubscription:
			out.SubscriptionMinor += tx.AmountMinor
		case ledger.TransactionKindAdjustment:
			out.AdjustmentsMinor += tx.AmountMinor
		}
	}
	return out, nil
}

func validateRange(clientID string, r TimeRange) error {
	if clientID == "" {
		return ErrInvalidRequest
	}
	if r.From.IsZero() || r.To.IsZero() || !r.To.After(r.From) {
		return ErrInvalidRequest
	}
	return nil
}
