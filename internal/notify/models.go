package notify

import "time"

// Notification is an in-app notification row. Rows are the system of record;
// email and realtime fan-out are best-effort copies of the same payload.
type Notification struct {
	ID       string `json:"id" db:"id"`
	ClientID string `json:"client_id" db:"client_id"`

	Kind    string `json:"kind" db:"kind"`
	Title   string `json:"title" db:"title"`
	Message string `json:"message" db:"message"`

	Read      bool      `json:"read" db:"read"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

const (
	KindLowBalance = "low_balance"
	KindRecharge   = "recharge"
)
