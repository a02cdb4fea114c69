package notify

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu   sync.Mutex
	rows []Notification
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Insert(ctx context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, n)
	return nil
}

func (r *MemoryRepo) ListByClient(ctx context.Context, clientID string, unreadOnly bool, limit, offset int) ([]Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	var out []Notification
	for i := len(r.rows) - 1; i >= 0; i-- {
		n := r.rows[i]
		if n.ClientID != clientID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		if offset > 0 {
			offset--
			continue
		}
		out = append(out, n)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *MemoryRepo) MarkRead(ctx context.Context, clientID, notificationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].ID == notificationID && r.rows[i].ClientID == clientID {
			r.rows[i].Read = true
		}
	}
	return nil
}

// All returns every stored notification, oldest first.
func (r *MemoryRepo) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.rows))
	copy(out, r.rows)
	return out
}
