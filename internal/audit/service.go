package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to portal users.
// - Callers should treat audit logging as best-effort: never roll back a
//   committed ledger mutation because its audit write failed.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ClientID == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogBalanceAdjustment records a staff-initiated balance correction together
// with the ledger transaction it produced.
func (s *Service) LogBalanceAdjustment(ctx context.Context, actorUserID, actorRole, ip, clientID, transactionID, reason, metadata string) error {
	return s.Append(ctx, Event{
		Type:          EventTypeBalanceAdjustment,
		ActorUserID:   actorUserID,
		ActorRole:     actorRole,
		IPAddress:     ip,
		ClientID:      clientID,
		TransactionID: transactionID,
		Message:       reason,
		Metadata:      metadata,
	})
}

// LogClientSuspended records an automatic suspension caused by a charge
// driving the balance negative under the suspend policy.
func (s *Service) LogClientSuspended(ctx context.Context, clientID, transactionID, metadata string) error {
	return s.Append(ctx, Event{
		Type:          EventTypeClientSuspended,
		ClientID:      clientID,
		TransactionID: transactionID,
		Message:       "suspended on negative balance",
		Metadata:      metadata,
	})
}
