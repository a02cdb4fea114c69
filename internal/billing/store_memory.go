package billing

import (
	"context"
	"sync"

	"voiceai-billing/internal/calls"
	"voiceai-billing/internal/clients"
	"voiceai-billing/internal/ledger"
)

// MemoryStore is an in-memory Store for tests and early development.
// A single mutex around each Apply* method models the serializable
// transaction the Postgres store gets from row locks.
type MemoryStore struct {
	mu sync.Mutex

	clients       map[string]*clients.Client // by id
	tokens        map[string]string          // webhook token -> client id
	callsByExtID  map[string]calls.Call
	paymentEvents map[string]struct{}
	transactions  []ledger.Transaction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients:       map[string]*clients.Client{},
		tokens:        map[string]string{},
		callsByExtID:  map[string]calls.Call{},
		paymentEvents: map[string]struct{}{},
	}
}

// AddClient seeds a client. Test helper; not part of the Store contract.
func (s *MemoryStore) AddClient(c clients.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := c
	s.clients[c.ID] = &cp
	if c.WebhookToken != "" {
		s.tokens[c.WebhookToken] = c.ID
	}
}

func (s *MemoryStore) ClientByToken(ctx context.Context, token string) (clients.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.tokens[token]
	if !ok || token == "" {
		return clients.Client{}, clients.ErrNotFound
	}
	return *s.clients[id], nil
}

func (s *MemoryStore) ClientByID(ctx context.Context, id string) (clients.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return clients.Client{}, clients.ErrNotFound
	}
	return *c, nil
}

func (s *MemoryStore) ApplyCallCharge(ctx context.Context, args ChargeArgs) (ChargeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[args.ClientID]
	if !ok {
		return ChargeResult{}, clients.ErrNotFound
	}

	if _, dup := s.callsByExtID[args.Call.ExternalID]; dup {
		return ChargeResult{Applied: false, BalanceBeforeMinor: c.BalanceMinor, BalanceAfterMinor: c.BalanceMinor}, nil
	}
	s.callsByExtID[args.Call.ExternalID] = args.Call

	out := ChargeResult{Applied: true, BalanceBeforeMinor: c.BalanceMinor, BalanceAfterMinor: c.BalanceMinor}
	if args.CostMinor != 0 {
		before := c.BalanceMinor
		c.BalanceMinor -= args.CostMinor
		if args.SuspendOnNegative && c.BalanceMinor < 0 {
			c.Status = clients.ClientStatusSuspended
			out.Suspended = true
		}
		s.transactions = append(s.transactions, ledger.Transaction{
			ID:                 args.TransactionID,
			ClientID:           args.ClientID,
			Kind:               ledger.TransactionKindCallCharge,
			AmountMinor:        -args.CostMinor,
			BalanceBeforeMinor: before,
			BalanceAfterMinor:  c.BalanceMinor,
			Currency:           args.Currency,
			Description:        args.Description,
			ExternalRef:        args.Call.ExternalID,
			Metadata:           args.Metadata,
			CreatedAt:          args.Now,
		})
		out.BalanceAfterMinor = c.BalanceMinor
		out.TransactionID = args.TransactionID
	}
	return out, nil
}

func (s *MemoryStore) ApplyFunding(ctx context.Context, args FundingArgs) (FundingResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[args.ClientID]
	if !ok {
		return FundingResult{}, clients.ErrNotFound
	}

	if _, dup := s.paymentEvents[args.EventID]; dup {
		return FundingResult{Applied: false, BalanceBeforeMinor: c.BalanceMinor, BalanceAfterMinor: c.BalanceMinor}, nil
	}
	s.paymentEvents[args.EventID] = struct{}{}

	before := c.BalanceMinor
	c.BalanceMinor += args.AmountMinor
	s.transactions = append(s.transactions, ledger.Transaction{
		ID:                 args.TransactionID,
		ClientID:           args.ClientID,
		Kind:               args.Kind,
		AmountMinor:        args.AmountMinor,
		BalanceBeforeMinor: before,
		BalanceAfterMinor:  c.BalanceMinor,
		Currency:           args.Currency,
		Description:        args.Description,
		ExternalRef:        args.EventID,
		Metadata:           args.Metadata,
		CreatedAt:          args.Now,
	})
	return FundingResult{
		Applied:            true,
		BalanceBeforeMinor: before,
		BalanceAfterMinor:  c.BalanceMinor,
		TransactionID:      args.TransactionID,
	}, nil
}

func (s *MemoryStore) ApplyAdjustment(ctx context.Context, args AdjustmentArgs) (AdjustmentResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[args.ClientID]
	if !ok {
		return AdjustmentResult{}, clients.ErrNotFound
	}

	before := c.BalanceMinor
	c.BalanceMinor += args.DeltaMinor
	s.transactions = append(s.transactions, ledger.Transaction{
		ID:                 args.TransactionID,
		ClientID:           args.ClientID,
		Kind:               ledger.TransactionKindAdjustment,
		AmountMinor:        args.DeltaMinor,
		BalanceBeforeMinor: before,
		BalanceAfterMinor:  c.BalanceMinor,
		Currency:           args.Currency,
		Description:        args.Description,
		Metadata:           args.Metadata,
		CreatedAt:          args.Now,
	})
	return AdjustmentResult{
		BalanceBeforeMinor: before,
		BalanceAfterMinor:  c.BalanceMinor,
		TransactionID:      args.TransactionID,
	}, nil
}

// Calls returns a copy of recorded calls. Test helper.
func (s *MemoryStore) Calls() []calls.Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]calls.Call, 0, len(s.callsByExtID))
	for _, c := range s.callsByExtID {
		out = append(out, c)
	}
	return out
}

// Transactions returns a copy of the ledger. Test helper.
func (s *MemoryStore) Transactions() []ledger.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ledger.Transaction, len(s.transactions))
	copy(out, s.transactions)
	return out
}
