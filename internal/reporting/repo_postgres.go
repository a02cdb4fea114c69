package reporting

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"voiceai-billing/internal/calls"
	"voiceai-billing/internal/ledger"
)

// PostgresRepo reads reporting rows straight from the billing tables. Reads
// only; the ledger stays append-only.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ListCalls(ctx context.Context, clientID string, from, to time.Time) ([]calls.Call, error) {
	const q = `
SELECT id, external_id, client_id, started_at, ended_at, duration_ms,
       billable_minutes, cost_minor, currency, transcript, recording_url,
       summary, successful, sentiment, voicemail, created_at
FROM calls
WHERE client_id = $1 AND started_at >= $2 AND started_at < $3
ORDER BY started_at
`
	rows, err := r.db.QueryContext(ctx, q, clientID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list calls for report: %w", err)
	}
	defer rows.Close()

	var out []calls.Call
	for rows.Next() {
		var c calls.Call
		if err := rows.Scan(
			&c.ID, &c.ExternalID, &c.ClientID, &c.StartedAt, &c.EndedAt, &c.DurationMs,
			&c.BillableMinutes, &c.CostMinor, &c.Currency, &c.Transcript, &c.RecordingURL,
			&c.Summary, &c.Successful, &c.Sentiment, &c.Voicemail, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListTransactions(ctx context.Context, clientID string, from, to time.Time) ([]ledger.Transaction, error) {
	const q = `
SELECT id, client_id, kind, amount_minor, balance_before_minor, balance_after_minor,
       currency, description, external_ref, metadata, created_at
FROM transactions
WHERE client_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at
`
	rows, err := r.db.QueryContext(ctx, q, clientID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list transactions for report: %w", err)
	}
	defer rows.Close()

	var out []ledger.Transaction
	for rows.Next() {
		var tx ledger.Transaction
		if err := rows.Scan(
			&tx.ID, &tx.ClientID, &tx.Kind, &tx.AmountMinor, &tx.BalanceBeforeMinor, &tx.BalanceAfterMinor,
			&tx.Currency, &tx.Description, &tx.ExternalRef, &tx.Metadata, &tx.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}
