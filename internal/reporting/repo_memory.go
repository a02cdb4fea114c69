package reporting

import (
	"context"
	"errors"
	"sync"
	"time"

	"voiceai-billing/internal/calls"
	"voiceai-billing/internal/ledger"
)

// MemoryRepo is an in-memory reporting repository for tests and early
// development. It enforces client scoping on reads.

type MemoryRepo struct {
	mu sync.Mutex

	Calls        []calls.Call
	Transactions []ledger.Transaction
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ListCalls(ctx context.Context, clientID string, from, to time.Time) ([]calls.Call, error) {
	if clientID == "" {
		return nil, errors.New("client_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.Call, 0)
	for _, c := range r.Calls {
		if c.ClientID != clientID {
			continue
		}
		if c.StartedAt.Before(from) || !c.StartedAt.Before(to) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *MemoryRepo) ListTransactions(ctx context.Context, clientID string, from, to time.Time) ([]ledger.Transaction, error) {
	if clientID == "" {
		return nil, errors.New("client_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ledger.Transaction, 0)
	for _, tx := range r.Transactions {
		if tx.ClientID != clientID {
			continue
		}
		if tx.CreatedAt.Before(from) || !tx.CreatedAt.Before(to) {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}
