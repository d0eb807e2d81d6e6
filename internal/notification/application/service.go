package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/museo-app/marketplace/internal/notification/domain"
)

type Service struct {
	log  *slog.Logger
	repo Repository
	now  func() time.Time
}

func NewService(log *slog.Logger, repo Repository) *Service {
	return &Service{
		log:  log,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Deliver writes n to the recipient's inbox. Redelivered notifications with
// a known dedupe key are dropped.
func (s *Service) Deliver(ctx context.Context, n domain.Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	n.ID = uuid.NewString()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	if n.Data == nil {
		n.Data = map[string]any{}
	}

	inserted, err := s.repo.Insert(ctx, n)
	if err != nil {
		return err
	}
	if !inserted {
		s.log.Info("duplicate notification dropped", "dedupe_key", n.DedupeKey)
		return nil
	}
	s.log.Info("notification delivered", "type", n.Type, "recipient", n.Recipient, "notification_id", n.ID)
	return nil
}
