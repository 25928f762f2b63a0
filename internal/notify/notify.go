// Package notify records claimant notifications and delivers them by email.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Message is one outgoing email.
type Message struct {
	To          string
	FromName    string
	FromAddress string
	Subject     string
	Body        string
}

// Mailer delivers a message and returns the provider's message id.
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Store is the part of the repository the service needs.
type Store interface {
	SaveNotification(ctx context.Context, n *domain.Notification) error
	UpdateNotification(ctx context.Context, n *domain.Notification) error
	GetNotification(ctx context.Context, notificationID string) (*domain.Notification, error)
}

// Service persists a Pending record for every notification and delivers it,
// through the event bus when one is configured or inline otherwise.
type Service struct {
	store  Store
	bus    domain.EventBus
	mailer Mailer
	cfg    domain.NotifyConfig
	logger *slog.Logger
	now    func() time.Time
}

var _ domain.Notifier = (*Service)(nil)

// NewService creates a notification service. bus may be nil.
func NewService(store Store, bus domain.EventBus, mailer Mailer, cfg domain.NotifyConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		bus:    bus,
		mailer: mailer,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Notify records a notification and hands it to delivery. A delivery
// failure is recorded on the notification, not returned.
func (s *Service) Notify(ctx context.Context, claimID, recipient string, kind domain.NotificationKind) error {
	n := &domain.Notification{
		ID:        uuid.New().String(),
		ClaimID:   claimID,
		Recipient: recipient,
		Kind:      kind,
		Status:    domain.NotificationPending,
		Subject:   kind.Subject(),
		Body:      kind.Body(),
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.SaveNotification(ctx, n); err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}

	if s.bus != nil {
		payload, err := json.Marshal(domain.NotificationEvent{NotificationID: n.ID, ClaimID: claimID})
		if err != nil {
			return fmt.Errorf("failed to encode notification event: %w", err)
		}
		err = s.bus.Publish(ctx, domain.TopicNotification, payload)
		if err == nil {
			return nil
		}
		s.logger.Warn("notification publish failed, delivering inline",
			"notification_id", n.ID,
			"error", err,
		)
	}

	return s.deliver(ctx, n)
}

// Deliver sends a stored notification. Already sent notifications are left
// alone.
func (s *Service) Deliver(ctx context.Context, notificationID string) error {
	n, err := s.store.GetNotification(ctx, notificationID)
	if err != nil {
		return fmt.Errorf("failed to load notification: %w", err)
	}
	if n.Status == domain.NotificationSent {
		return nil
	}
	return s.deliver(ctx, n)
}

func (s *Service) deliver(ctx context.Context, n *domain.Notification) error {
	id, err := s.mailer.Send(ctx, Message{
		To:          n.Recipient,
		FromName:    s.cfg.FromName,
		FromAddress: s.cfg.FromAddress,
		Subject:     n.Subject,
		Body:        n.Body,
	})

	if err != nil {
		n.Status = domain.NotificationFailed
		n.Error = err.Error()
		s.logger.Warn("notification delivery failed",
			"notification_id", n.ID,
			"claim_id", n.ClaimID,
			"kind", n.Kind,
			"error", err,
		)
	} else {
		sentAt := s.now().UTC()
		n.Status = domain.NotificationSent
		n.SentAt = &sentAt
		n.Error = ""
		s.logger.Debug("notification sent",
			"notification_id", n.ID,
			"claim_id", n.ClaimID,
			"kind", n.Kind,
			"message_id", id,
		)
	}

	if err := s.store.UpdateNotification(ctx, n); err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	return nil
}
