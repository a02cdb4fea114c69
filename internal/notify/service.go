package notify

import (
	"context"
	"fmt"
	"time"

	"voiceai-billing/internal/clients"
	"voiceai-billing/pkg/logger"

	"github.com/google/uuid"
)

// Directory resolves a client id to its profile, for the email address.
type Directory interface {
	ByID(ctx context.Context, id string) (clients.Client, error)
}

// Service fans a notification out: durable in-app row first, then email and
// realtime publish as best-effort copies. Only the row insert can fail Notify.
type Service struct {
	repo      Repository
	directory Directory
	email     EmailSender // nil disables email
	publisher Publisher   // nil disables realtime

	clock func() time.Time
}

func NewService(repo Repository, directory Directory, email EmailSender, publisher Publisher) *Service {
	return &Service{
		repo:      repo,
		directory: directory,
		email:     email,
		publisher: publisher,
		clock:     time.Now,
	}
}

func (s *Service) Notify(ctx context.Context, clientID, kind, title, message string) error {
	if clientID == "" || kind == "" {
		return fmt.Errorf("notify: client id and kind required")
	}

	n := Notification{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		Kind:      kind,
		Title:     title,
		Message:   message,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.repo.Insert(ctx, n); err != nil {
		return err
	}

	log := logger.From(ctx)

	if s.email != nil {
		if client, err := s.directory.ByID(ctx, clientID); err != nil {
			log.Error("notification email lookup failed", "client_id", clientID, "err", err)
		} else if client.Email != "" {
			if err := s.email.Send(ctx, client.Email, title, message); err != nil {
				log.Error("notification email failed", "client_id", clientID, "kind", kind, "err", err)
			}
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, n); err != nil {
			log.Error("notification publish failed", "client_id", clientID, "kind", kind, "err", err)
		}
	}

	return nil
}

func (s *Service) List(ctx context.Context, clientID string, unreadOnly bool, limit, offset int) ([]Notification, error) {
	return s.repo.ListByClient(ctx, clientID, unreadOnly, limit, offset)
}

func (s *Service) MarkRead(ctx context.Context, clientID, notificationID string) error {
	return s.repo.MarkRead(ctx, clientID, notificationID)
}
