package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Dispatcher delivers notifications published on the event bus.
type Dispatcher struct {
	svc    *Service
	bus    domain.EventBus
	logger *slog.Logger

	mu  sync.Mutex
	sub domain.Subscription
}

// NewDispatcher creates a dispatcher for svc.
func NewDispatcher(svc *Service, bus domain.EventBus, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{svc: svc, bus: bus, logger: logger}
}

// Start subscribes to notification events.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sub != nil {
		return fmt.Errorf("dispatcher already started")
	}

	sub, err := d.bus.Subscribe(ctx, domain.TopicNotification, d.handle)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", domain.TopicNotification, err)
	}
	d.sub = sub
	d.logger.Info("notification dispatcher started", "topic", domain.TopicNotification)
	return nil
}

// Stop unsubscribes.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sub == nil {
		return nil
	}
	err := d.sub.Unsubscribe()
	d.sub = nil
	return err
}

func (d *Dispatcher) handle(ctx context.Context, msg *domain.Message) error {
	var event domain.NotificationEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		d.logger.Error("invalid notification event", "message_id", msg.ID, "error", err)
		return err
	}

	if err := d.svc.Deliver(ctx, event.NotificationID); err != nil {
		d.logger.Error("notification dispatch failed",
			"notification_id", event.NotificationID,
			"claim_id", event.ClaimID,
			"error", err,
		)
		return err
	}
	return nil
}
