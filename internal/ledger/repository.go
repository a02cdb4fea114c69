package ledger

import (
	"context"
	"database/sql"
	"time"
)

// NOTE: This repository assumes the following table exists:
//
//   transactions (
//     id TEXT PRIMARY KEY,
//     client_id TEXT NOT NULL REFERENCES clients(id),
//     kind TEXT NOT NULL,
//     amount_minor BIGINT NOT NULL,
//     balance_before_minor BIGINT NOT NULL,
//     balance_after_minor BIGINT NOT NULL,
//     currency TEXT NOT NULL,
//     description TEXT NOT NULL,
//     external_ref TEXT NOT NULL DEFAULT '',
//     metadata JSONB NOT NULL DEFAULT '{}',
//     created_at TIMESTAMPTZ NOT NULL
//   )
//
// The table is append-only; inserts happen inside the billing store's
// transactions. This repository is the dashboard read surface.

type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

const txColumns = `id, client_id, kind, amount_minor, balance_before_minor, balance_after_minor, currency, description, external_ref, metadata, created_at`

func (r *Repo) ListByClient(ctx context.Context, clientID string, from, to time.Time, limit, offset int) ([]Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const q = `
SELECT ` + txColumns + `
FROM transactions
WHERE client_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at DESC
LIMIT $4 OFFSET $5
`
	rows, err := r.db.QueryContext(ctx, q, clientID, from, to, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Transaction, 0)
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(
			&t.ID,
			&t.ClientID,
			&t.Kind,
			&t.AmountMinor,
			&t.BalanceBeforeMinor,
			&t.BalanceAfterMinor,
			&t.Currency,
			&t.Description,
			&t.ExternalRef,
			&t.Metadata,
			&t.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
