package ledger

import "time"

// Transaction is an immutable, append-only audit entry attached to exactly
// one balance mutation.
//
// Invariant: BalanceAfterMinor = BalanceBeforeMinor + AmountMinor.
// AmountMinor is negative for deductions and positive for credits.
type Transaction struct {
	ID       string `json:"id" db:"id"`
	ClientID string `json:"client_id" db:"client_id"`

	Kind TransactionKind `json:"kind" db:"kind"`

	AmountMinor        int64 `json:"amount_minor" db:"amount_minor"`
	BalanceBeforeMinor int64 `json:"balance_before_minor" db:"balance_before_minor"`
	BalanceAfterMinor  int64 `json:"balance_after_minor" db:"balance_after_minor"`

	Currency string `json:"currency" db:"currency"`

	Description string `json:"description" db:"description"`

	// ExternalRef carries the originating id: the call's external id for
	// charges, the payment provider's event id for funding.
	ExternalRef string `json:"external_ref,omitempty" db:"external_ref"`

	// Metadata is optional JSON for audit/debug (store as JSONB).
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type TransactionKind string

const (
	// TransactionKindCallCharge is the per-call deduction.
	TransactionKindCallCharge TransactionKind = "call_charge"
	// TransactionKindRecharge is a one-time funding credit.
	TransactionKindRecharge TransactionKind = "recharge"
	// TransactionKindSubscription is a recurring funding credit.
	TransactionKindSubscription TransactionKind = "subscription"
	// TransactionKindAdjustment is an audited manual correction by staff.
	TransactionKindAdjustment TransactionKind = "adjustment"
)

// Consistent reports whether the entry satisfies the ledger invariant.
func (t Transaction) Consistent() bool {
	return t.BalanceAfterMinor == t.BalanceBeforeMinor+t.AmountMinor
}
