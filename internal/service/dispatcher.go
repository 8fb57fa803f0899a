package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/ajjmal/marketplace-system/internal/model"
	"github.com/ajjmal/marketplace-system/internal/push"
	"github.com/ajjmal/marketplace-system/internal/repository"
)

const outboxBatchSize = 100

// DispatcherRepository describes the data access contract used by the outbox
// dispatcher.
type DispatcherRepository interface {
	GetPendingOutboxEvents(ctx context.Context, limit int) ([]repository.OutboxEvent, error)
	MarkOutboxDispatched(ctx context.Context, eventID int64) error
	InsertNotification(ctx context.Context, n *model.Notification, idempotencyKey string) (bool, error)
}

// PushSender delivers a message to the external push gateway.
type PushSender interface {
	Send(ctx context.Context, msg push.Message) error
}

// Dispatcher drains the transactional outbox and turns lifecycle events into
// user notifications. Delivery is at least once; the event's idempotency key
// keeps redeliveries from duplicating notification rows.
type Dispatcher struct {
	repo     DispatcherRepository
	pusher   PushSender
	logger   *zap.Logger
	interval time.Duration
}

// NewDispatcher creates an outbox dispatcher. pusher may be nil when no push
// gateway is configured.
func NewDispatcher(repo DispatcherRepository, pusher PushSender, logger *zap.Logger, interval time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Dispatcher{
		repo:     repo,
		pusher:   pusher,
		logger:   logger,
		interval: interval,
	}
}

// Start runs the dispatch loop until the context is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch delivers one batch of pending outbox events. An event is marked
// dispatched only after its side effects succeeded, so failures are retried on
// the next tick.
func (d *Dispatcher) ProcessBatch(ctx context.Context) {
	events, err := d.repo.GetPendingOutboxEvents(ctx, outboxBatchSize)
	if err != nil {
		d.logger.Error("fetch outbox events", zap.Error(err))
		return
	}

	for _, e := range events {
		if err := d.dispatchEvent(ctx, e); err != nil {
			d.logger.Error("dispatch outbox event",
				zap.Error(err), zap.Int64("eventID", e.ID), zap.String("kind", e.Kind))
			continue
		}

		if err := d.repo.MarkOutboxDispatched(ctx, e.ID); err != nil {
			d.logger.Error("mark outbox dispatched", zap.Error(err), zap.Int64("eventID", e.ID))
		}
	}
}

func (d *Dispatcher) dispatchEvent(ctx context.Context, e repository.OutboxEvent) error {
	n, err := renderEvent(e)
	if err != nil {
		return err
	}
	if n == nil {
		// No template for this transition; nothing to deliver.
		return nil
	}

	if _, err := d.repo.InsertNotification(ctx, n, e.IdempotencyKey); err != nil {
		return err
	}

	if d.pusher != nil {
		err := d.pusher.Send(ctx, push.Message{
			UserID:  n.UserID,
			TitleAr: n.TitleAr,
			TitleEn: n.TitleEn,
			BodyAr:  n.BodyAr,
			BodyEn:  n.BodyEn,
			Link:    n.Link,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func renderEvent(e repository.OutboxEvent) (*model.Notification, error) {
	switch e.Kind {
	case repository.OutboxKindOrderStatus:
		var p repository.OrderStatusEvent
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return nil, err
		}
		return OrderStatusNotification(p.UserID, p.OrderID, p.Status), nil

	case repository.OutboxKindVendorApplication:
		var p repository.VendorApplicationEvent
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return nil, err
		}
		return VendorApplicationNotification(p.UserID, p.Status), nil
	}

	// Unknown kinds are dropped rather than retried forever.
	return nil, nil
}
