package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo persists audit events.
//
// Assumed table:
//
//   audit_events (
//     id TEXT PRIMARY KEY,
//     type TEXT NOT NULL,
//     actor_user_id TEXT NOT NULL DEFAULT '',
//     actor_role TEXT NOT NULL DEFAULT '',
//     ip_address TEXT NOT NULL DEFAULT '',
//     client_id TEXT NOT NULL,
//     transaction_id TEXT NOT NULL DEFAULT '',
//     message TEXT NOT NULL DEFAULT '',
//     metadata JSONB NOT NULL DEFAULT '{}',
//     created_at TIMESTAMPTZ NOT NULL
//   )
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

// jsonMetadata coalesces empty metadata to an empty JSON object. The
// audit_events.metadata column is JSONB NOT NULL; ''::jsonb does not parse.
func jsonMetadata(s string) string {
	if s == "" {
		return "{}"
	}
	return s
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, type, actor_user_id, actor_role, ip_address, client_id, transaction_id, message, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.Type,
		e.ActorUserID,
		e.ActorRole,
		e.IPAddress,
		e.ClientID,
		e.TransactionID,
		e.Message,
		jsonMetadata(e.Metadata),
		e.CreatedAt,
	)
	return err
}
