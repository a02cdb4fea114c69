package billing

import (
	"context"
	"time"

	"voiceai-billing/internal/calls"
	"voiceai-billing/internal/clients"
	"voiceai-billing/internal/ledger"
)

// Store is the durable-store contract for ledger mutations.
//
// Each Apply* method is one atomic unit: the dedup gate, the balance write
// and the transaction insert commit or roll back together. Concurrent calls
// for the same client serialize inside the store (row lock or equivalent),
// so a read-then-write lost update cannot happen at this boundary.
type Store interface {
	// ClientByToken resolves the pre-shared webhook token to exactly one
	// client. Returns clients.ErrNotFound otherwise.
	ClientByToken(ctx context.Context, token string) (clients.Client, error)

	ClientByID(ctx context.Context, id string) (clients.Client, error)

	// ApplyCallCharge inserts the call record gated by the external call
	// id's uniqueness, debits the balance and appends the transaction. A
	// duplicate external id makes the whole operation a no-op reported via
	// ChargeResult.Applied == false.
	ApplyCallCharge(ctx context.Context, args ChargeArgs) (ChargeResult, error)

	// ApplyFunding credits the balance gated by the payment provider's
	// event id. Duplicate event ids are no-ops (Applied == false).
	ApplyFunding(ctx context.Context, args FundingArgs) (FundingResult, error)

	// ApplyAdjustment applies a signed manual delta and appends the
	// transaction. No dedup gate; callers are staff, not webhooks.
	ApplyAdjustment(ctx context.Context, args AdjustmentArgs) (AdjustmentResult, error)
}

type ChargeArgs struct {
	ClientID string

	// Call is the fully populated record to insert (including the
	// service-generated internal id). Call.ExternalID is the dedup key.
	Call calls.Call

	// TransactionID is the service-generated id for the ledger entry.
	TransactionID string

	// CostMinor is the deduction (positive number). Zero cost records the
	// call but skips the balance write and the transaction insert.
	CostMinor   int64
	Currency    string
	Description string
	Metadata    string

	// SuspendOnNegative marks the client suspended in the same transaction
	// when the resulting balance is below zero.
	SuspendOnNegative bool

	Now time.Time
}

type ChargeResult struct {
	// Applied is false when the external call id was already billed.
	Applied bool

	BalanceBeforeMinor int64
	BalanceAfterMinor  int64

	TransactionID string

	// Suspended is true when this charge tripped the negative-balance
	// suspension.
	Suspended bool
}

type FundingArgs struct {
	// EventID is the payment provider's event/session id (dedup key).
	EventID  string
	ClientID string

	TransactionID string

	AmountMinor int64
	Currency    string
	Kind        ledger.TransactionKind
	Description string
	Metadata    string

	Now time.Time
}

type FundingResult struct {
	// Applied is false when the payment event id was already credited.
	Applied bool

	BalanceBeforeMinor int64
	BalanceAfterMinor  int64

	TransactionID string
}

type AdjustmentArgs struct {
	ClientID string

	TransactionID string

	// DeltaMinor is signed: positive credits, negative debits.
	DeltaMinor  int64
	Currency    string
	Description string
	Metadata    string

	Now time.Time
}

type AdjustmentResult struct {
	BalanceBeforeMinor int64
	BalanceAfterMinor  int64

	TransactionID string
}
