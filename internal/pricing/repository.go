package pricing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNoPlan means no active plan covers the requested instant.
var ErrNoPlan = errors.New("pricing: no active rate plan")

// Repository resolves rate plans. When several plans cover the same instant
// the one with the latest effective_from wins.
type Repository interface {
	ActivePlan(ctx context.Context, clientID string, at time.Time) (RatePlan, error)
}

// PostgresRepo reads rate plans.
//
// Assumed table:
//
//   rate_plans (
//     id TEXT PRIMARY KEY,
//     client_id TEXT NOT NULL,
//     currency TEXT NOT NULL,
//     rate_per_minute_minor BIGINT NOT NULL,
//     effective_from TIMESTAMPTZ NOT NULL,
//     effective_to TIMESTAMPTZ,
//     status TEXT NOT NULL,
//     created_at TIMESTAMPTZ NOT NULL,
//     updated_at TIMESTAMPTZ NOT NULL
//   )
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ActivePlan(ctx context.Context, clientID string, at time.Time) (RatePlan, error) {
	const q = `
SELECT id, client_id, currency, rate_per_minute_minor, effective_from, effective_to, status, created_at, updated_at
FROM rate_plans
WHERE client_id = $1
  AND status = 'active'
  AND effective_from <= $2
  AND (effective_to IS NULL OR effective_to > $2)
ORDER BY effective_from DESC
LIMIT 1
`
	var p RatePlan
	err := r.db.QueryRowContext(ctx, q, clientID, at).Scan(
		&p.ID, &p.ClientID, &p.Currency, &p.RatePerMinuteMinor,
		&p.EffectiveFrom, &p.EffectiveTo, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return RatePlan{}, ErrNoPlan
	}
	if err != nil {
		return RatePlan{}, fmt.Errorf("active rate plan: %w", err)
	}
	return p, nil
}
