package calls

import (
	"context"
	"database/sql"
	"time"
)

// NOTE: This repository assumes the following table exists:
//
//   calls (
//     id TEXT PRIMARY KEY,
//     external_id TEXT NOT NULL UNIQUE,
//     client_id TEXT NOT NULL REFERENCES clients(id),
//     started_at TIMESTAMPTZ NOT NULL,
//     ended_at TIMESTAMPTZ NOT NULL,
//     duration_ms BIGINT NOT NULL,
//     billable_minutes INT NOT NULL,
//     cost_minor BIGINT NOT NULL,
//     currency TEXT NOT NULL,
//     transcript TEXT NOT NULL DEFAULT '',
//     recording_url TEXT NOT NULL DEFAULT '',
//     summary TEXT NOT NULL DEFAULT '',
//     successful BOOLEAN NOT NULL,
//     sentiment TEXT NOT NULL DEFAULT '',
//     voicemail BOOLEAN NOT NULL,
//     created_at TIMESTAMPTZ NOT NULL
//   )
//
// Inserts happen inside the billing store's charge transaction; this
// repository is the dashboard read surface.

type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

const callColumns = `id, external_id, client_id, started_at, ended_at, duration_ms, billable_minutes, cost_minor, currency, transcript, recording_url, summary, successful, sentiment, voicemail, created_at`

func (r *Repo) ListByClient(ctx context.Context, clientID string, from, to time.Time, limit, offset int) ([]Call, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE client_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at DESC
LIMIT $4 OFFSET $5
`
	rows, err := r.db.QueryContext(ctx, q, clientID, from, to, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Call, 0)
	for rows.Next() {
		var c Call
		if err := rows.Scan(
			&c.ID,
			&c.ExternalID,
			&c.ClientID,
			&c.StartedAt,
			&c.EndedAt,
			&c.DurationMs,
			&c.BillableMinutes,
			&c.CostMinor,
			&c.Currency,
			&c.Transcript,
			&c.RecordingURL,
			&c.Summary,
			&c.Successful,
			&c.Sentiment,
			&c.Voicemail,
			&c.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
