package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"voiceai-billing/internal/calls"
	"voiceai-billing/internal/clients"
	"voiceai-billing/internal/ledger"
	"voiceai-billing/pkg/utils"
)

// PostgresStore is the production Store.
//
// In addition to the tables documented in internal/clients, internal/calls
// and internal/ledger it assumes:
//
//   payment_events (
//     id TEXT PRIMARY KEY,     -- payment provider's event/session id
//     client_id TEXT NOT NULL REFERENCES clients(id),
//     created_at TIMESTAMPTZ NOT NULL
//   )
//
// The UNIQUE constraints on calls.external_id and payment_events.id are the
// dedup gates: duplicate deliveries lose the INSERT ... ON CONFLICT DO
// NOTHING race deterministically and skip the money writes.
type PostgresStore struct {
	db      *sql.DB
	clients *clients.Repo
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, clients: clients.NewRepo(db)}
}

func (s *PostgresStore) ClientByToken(ctx context.Context, token string) (clients.Client, error) {
	return s.clients.ByWebhookToken(ctx, token)
}

func (s *PostgresStore) ClientByID(ctx context.Context, id string) (clients.Client, error) {
	return s.clients.ByID(ctx, id)
}

func (s *PostgresStore) ApplyCallCharge(ctx context.Context, args ChargeArgs) (ChargeResult, error) {
	var out ChargeResult

	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		// Serialize all money writes for this client.
		balance, _, err := lockClient(ctx, tx, args.ClientID)
		if err != nil {
			return err
		}

		inserted, err := insertCallIfAbsent(ctx, tx, args.Call)
		if err != nil {
			return err
		}
		if !inserted {
			// Already billed: report current balance, mutate nothing.
			out = ChargeResult{Applied: false, BalanceBeforeMinor: balance, BalanceAfterMinor: balance}
			return nil
		}

		newBalance := balance - args.CostMinor
		suspend := false

		if args.CostMinor != 0 {
			suspend = args.SuspendOnNegative && newBalance < 0
			if err := updateBalance(ctx, tx, args.ClientID, newBalance, suspend, args.Now); err != nil {
				return err
			}
			entry := ledger.Transaction{
				ID:                 args.TransactionID,
				ClientID:           args.ClientID,
				Kind:               ledger.TransactionKindCallCharge,
				AmountMinor:        -args.CostMinor,
				BalanceBeforeMinor: balance,
				BalanceAfterMinor:  newBalance,
				Currency:           args.Currency,
				Description:        args.Description,
				ExternalRef:        args.Call.ExternalID,
				Metadata:           args.Metadata,
				CreatedAt:          args.Now,
			}
			if err := insertTransaction(ctx, tx, entry); err != nil {
				return err
			}
			out.TransactionID = entry.ID
		} else {
			newBalance = balance
		}

		out.Applied = true
		out.BalanceBeforeMinor = balance
		out.BalanceAfterMinor = newBalance
		out.Suspended = suspend
		return nil
	})
	if err != nil {
		return ChargeResult{}, fmt.Errorf("apply call charge: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ApplyFunding(ctx context.Context, args FundingArgs) (FundingResult, error) {
	var out FundingResult

	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		balance, _, err := lockClient(ctx, tx, args.ClientID)
		if err != nil {
			return err
		}

		inserted, err := insertPaymentEventIfAbsent(ctx, tx, args.EventID, args.ClientID, args.Now)
		if err != nil {
			return err
		}
		if !inserted {
			out = FundingResult{Applied: false, BalanceBeforeMinor: balance, BalanceAfterMinor: balance}
			return nil
		}

		newBalance := balance + args.AmountMinor
		if err := updateBalance(ctx, tx, args.ClientID, newBalance, false, args.Now); err != nil {
			return err
		}

		entry := ledger.Transaction{
			ID:                 args.TransactionID,
			ClientID:           args.ClientID,
			Kind:               args.Kind,
			AmountMinor:        args.AmountMinor,
			BalanceBeforeMinor: balance,
			BalanceAfterMinor:  newBalance,
			Currency:           args.Currency,
			Description:        args.Description,
			ExternalRef:        args.EventID,
			Metadata:           args.Metadata,
			CreatedAt:          args.Now,
		}
		if err := insertTransaction(ctx, tx, entry); err != nil {
			return err
		}

		out = FundingResult{
			Applied:            true,
			BalanceBeforeMinor: balance,
			BalanceAfterMinor:  newBalance,
			TransactionID:      entry.ID,
		}
		return nil
	})
	if err != nil {
		return FundingResult{}, fmt.Errorf("apply funding: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ApplyAdjustment(ctx context.Context, args AdjustmentArgs) (AdjustmentResult, error) {
	var out AdjustmentResult

	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		balance, _, err := lockClient(ctx, tx, args.ClientID)
		if err != nil {
			return err
		}

		newBalance := balance + args.DeltaMinor
		if err := updateBalance(ctx, tx, args.ClientID, newBalance, false, args.Now); err != nil {
			return err
		}

		entry := ledger.Transaction{
			ID:                 args.TransactionID,
			ClientID:           args.ClientID,
			Kind:               ledger.TransactionKindAdjustment,
			AmountMinor:        args.DeltaMinor,
			BalanceBeforeMinor: balance,
			BalanceAfterMinor:  newBalance,
			Currency:           args.Currency,
			Description:        args.Description,
			Metadata:           args.Metadata,
			CreatedAt:          args.Now,
		}
		if err := insertTransaction(ctx, tx, entry); err != nil {
			return err
		}

		out = AdjustmentResult{
			BalanceBeforeMinor: balance,
			BalanceAfterMinor:  newBalance,
			TransactionID:      entry.ID,
		}
		return nil
	})
	if err != nil {
		return AdjustmentResult{}, fmt.Errorf("apply adjustment: %w", err)
	}
	return out, nil
}

func lockClient(ctx context.Context, tx *sql.Tx, clientID string) (balanceMinor int64, status string, err error) {
	const q = `
SELECT balance_minor, status
FROM clients
WHERE id = $1
FOR UPDATE
`
	if err := tx.QueryRowContext(ctx, q, clientID).Scan(&balanceMinor, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, "", clients.ErrNotFound
		}
		return 0, "", err
	}
	return balanceMinor, status, nil
}

func insertCallIfAbsent(ctx context.Context, tx *sql.Tx, c calls.Call) (bool, error) {
	const q = `
INSERT INTO calls (
  id, external_id, client_id, started_at, ended_at, duration_ms,
  billable_minutes, cost_minor, currency, transcript, recording_url,
  summary, successful, sentiment, voicemail, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
)
ON CONFLICT (external_id) DO NOTHING
`
	res, err := tx.ExecContext(ctx, q,
		c.ID,
		c.ExternalID,
		c.ClientID,
		c.StartedAt,
		c.EndedAt,
		c.DurationMs,
		c.BillableMinutes,
		c.CostMinor,
		c.Currency,
		c.Transcript,
		c.RecordingURL,
		c.Summary,
		c.Successful,
		c.Sentiment,
		c.Voicemail,
		c.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func insertPaymentEventIfAbsent(ctx context.Context, tx *sql.Tx, eventID, clientID string, now time.Time) (bool, error) {
	const q = `
INSERT INTO payment_events (id, client_id, created_at)
VALUES ($1,$2,$3)
ON CONFLICT (id) DO NOTHING
`
	res, err := tx.ExecContext(ctx, q, eventID, clientID, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func updateBalance(ctx context.Context, tx *sql.Tx, clientID string, newBalanceMinor int64, suspend bool, now time.Time) error {
	if suspend {
		const q = `
UPDATE clients
SET balance_minor = $2, status = 'suspended', updated_at = $3
WHERE id = $1
`
		_, err := tx.ExecContext(ctx, q, clientID, newBalanceMinor, now)
		return err
	}
	const q = `
UPDATE clients
SET balance_minor = $2, updated_at = $3
WHERE id = $1
`
	_, err := tx.ExecContext(ctx, q, clientID, newBalanceMinor, now)
	return err
}

// jsonMetadata coalesces empty metadata to an empty JSON object. The
// transactions.metadata column is JSONB NOT NULL; ''::jsonb does not parse.
func jsonMetadata(s string) string {
	if s == "" {
		return "{}"
	}
	return s
}

func insertTransaction(ctx context.Context, tx *sql.Tx, e ledger.Transaction) error {
	const q = `
INSERT INTO transactions (
  id, client_id, kind, amount_minor, balance_before_minor, balance_after_minor,
  currency, description, external_ref, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
`
	_, err := tx.ExecContext(ctx, q,
		e.ID,
		e.ClientID,
		e.Kind,
		e.AmountMinor,
		e.BalanceBeforeMinor,
		e.BalanceAfterMinor,
		e.Currency,
		e.Description,
		e.ExternalRef,
		jsonMetadata(e.Metadata),
		e.CreatedAt,
	)
	return err
}
