package clients

import (
	"context"
	"database/sql"
	"errors"
)

// NOTE: This repository assumes the following table exists:
//
//   clients (
//     id TEXT PRIMARY KEY,
//     name TEXT NOT NULL,
//     email TEXT NOT NULL,
//     webhook_token TEXT NOT NULL UNIQUE,
//     status TEXT NOT NULL,
//     currency TEXT NOT NULL,
//     rate_per_minute_minor BIGINT NOT NULL DEFAULT 0,
//     balance_minor BIGINT NOT NULL DEFAULT 0,
//     created_at TIMESTAMPTZ NOT NULL,
//     updated_at TIMESTAMPTZ NOT NULL
//   )
//
// Balance writes live in the billing store, not here. This repository is the
// read surface for the dashboard and the webhook token resolver.

var ErrNotFound = errors.New("client not found")

type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

const clientColumns = `id, name, email, webhook_token, status, currency, rate_per_minute_minor, balance_minor, created_at, updated_at`

func scanClient(row *sql.Row) (Client, error) {
	var c Client
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Email,
		&c.WebhookToken,
		&c.Status,
		&c.Currency,
		&c.RatePerMinuteMinor,
		&c.BalanceMinor,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Client{}, ErrNotFound
		}
		return Client{}, err
	}
	return c, nil
}

func (r *Repo) ByID(ctx context.Context, id string) (Client, error) {
	const q = `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`
	return scanClient(r.db.QueryRowContext(ctx, q, id))
}

// ByWebhookToken resolves a client from the telephony callback token.
// The token must match exactly one client; otherwise ErrNotFound.
func (r *Repo) ByWebhookToken(ctx context.Context, token string) (Client, error) {
	if token == "" {
		return Client{}, ErrNotFound
	}
	const q = `SELECT ` + clientColumns + ` FROM clients WHERE webhook_token = $1`
	return scanClient(r.db.QueryRowContext(ctx, q, token))
}

func (r *Repo) List(ctx context.Context, limit, offset int) ([]Client, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const q = `SELECT ` + clientColumns + ` FROM clients ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Client, 0)
	for rows.Next() {
		var c Client
		if err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.Email,
			&c.WebhookToken,
			&c.Status,
			&c.Currency,
			&c.RatePerMinuteMinor,
			&c.BalanceMinor,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
