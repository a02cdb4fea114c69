package notify

import (
	"context"
	"database/sql"
	"fmt"
)

// Repository stores notifications. Insert must be durable; the fan-out
// channels never gate on it succeeding twice.
type Repository interface {
	Insert(ctx context.Context, n Notification) error
	ListByClient(ctx context.Context, clientID string, unreadOnly bool, limit, offset int) ([]Notification, error)
	MarkRead(ctx context.Context, clientID, notificationID string) error
}

// PostgresRepo persists notifications.
//
// Assumed table:
//
//   notifications (
//     id TEXT PRIMARY KEY,
//     client_id TEXT NOT NULL,
//     kind TEXT NOT NULL,
//     title TEXT NOT NULL,
//     message TEXT NOT NULL DEFAULT '',
//     read BOOLEAN NOT NULL DEFAULT FALSE,
//     created_at TIMESTAMPTZ NOT NULL
//   )
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Insert(ctx context.Context, n Notification) error {
	const q = `
INSERT INTO notifications (id, client_id, kind, title, message, read, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	_, err := r.db.ExecContext(ctx, q, n.ID, n.ClientID, n.Kind, n.Title, n.Message, n.Read, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *PostgresRepo) ListByClient(ctx context.Context, clientID string, unreadOnly bool, limit, offset int) ([]Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := `
SELECT id, client_id, kind, title, message, read, created_at
FROM notifications
WHERE client_id = $1
`
	if unreadOnly {
		q += " AND read = FALSE"
	}
	q += " ORDER BY created_at DESC LIMIT $2 OFFSET $3"

	rows, err := r.db.QueryContext(ctx, q, clientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.ClientID, &n.Kind, &n.Title, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead is scoped to the owning client so one tenant cannot ack another's
// notifications.
func (r *PostgresRepo) MarkRead(ctx context.Context, clientID, notificationID string) error {
	const q = `UPDATE notifications SET read = TRUE WHERE id = $1 AND client_id = $2`
	_, err := r.db.ExecContext(ctx, q, notificationID, clientID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}
