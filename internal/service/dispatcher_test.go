package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/ajjmal/marketplace-system/internal/model"
	"github.com/ajjmal/marketplace-system/internal/push"
	"github.com/ajjmal/marketplace-system/internal/repository"
)

type stubDispatcherRepo struct {
	events    []repository.OutboxEvent
	eventsErr error

	inserted     []*model.Notification
	insertedKeys []string
	insertErr    error

	dispatched []int64
}

func (s *stubDispatcherRepo) GetPendingOutboxEvents(ctx context.Context, limit int) ([]repository.OutboxEvent, error) {
	return s.events, s.eventsErr
}

func (s *stubDispatcherRepo) MarkOutboxDispatched(ctx context.Context, eventID int64) error {
	s.dispatched = append(s.dispatched, eventID)
	return nil
}

func (s *stubDispatcherRepo) InsertNotification(ctx context.Context, n *model.Notification, idempotencyKey string) (bool, error) {
	if s.insertErr != nil {
		return false, s.insertErr
	}
	s.inserted = append(s.inserted, n)
	s.insertedKeys = append(s.insertedKeys, idempotencyKey)
	return true, nil
}

type stubPusher struct {
	sent    []push.Message
	sendErr error
}

func (s *stubPusher) Send(ctx context.Context, msg push.Message) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, msg)
	return nil
}

func orderEvent(t *testing.T, id int64, key string, status model.OrderStatus) repository.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(repository.OrderStatusEvent{UserID: 7, OrderID: 42, Status: status})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return repository.OutboxEvent{ID: id, Kind: repository.OutboxKindOrderStatus, Payload: payload, IdempotencyKey: key}
}

func TestProcessBatch_DeliversOrderNotification(t *testing.T) {
	repo := &stubDispatcherRepo{
		events: []repository.OutboxEvent{orderEvent(t, 1, "key-1", model.OrderStatusShipped)},
	}
	d := NewDispatcher(repo, nil, zap.NewNop(), 0)

	d.ProcessBatch(context.Background())

	if len(repo.inserted) != 1 {
		t.Fatalf("inserted = %d notifications, want 1", len(repo.inserted))
	}
	if repo.inserted[0].UserID != 7 {
		t.Fatalf("notification user = %d, want 7", repo.inserted[0].UserID)
	}
	if repo.inserted[0].Link != "/orders/42" {
		t.Fatalf("notification link = %q", repo.inserted[0].Link)
	}
	if repo.insertedKeys[0] != "key-1" {
		t.Fatalf("idempotency key = %q, want key-1", repo.insertedKeys[0])
	}
	if len(repo.dispatched) != 1 || repo.dispatched[0] != 1 {
		t.Fatalf("dispatched = %v, want [1]", repo.dispatched)
	}
}

func TestProcessBatch_SilentStatusStillDispatched(t *testing.T) {
	repo := &stubDispatcherRepo{
		events: []repository.OutboxEvent{orderEvent(t, 2, "key-2", model.OrderStatusProcessing)},
	}
	d := NewDispatcher(repo, nil, zap.NewNop(), 0)

	d.ProcessBatch(context.Background())

	if len(repo.inserted) != 0 {
		t.Fatalf("PROCESSING must not produce a notification")
	}
	if len(repo.dispatched) != 1 {
		t.Fatalf("silent event must still be marked dispatched")
	}
}

func TestProcessBatch_PushFailureLeavesEventPending(t *testing.T) {
	repo := &stubDispatcherRepo{
		events: []repository.OutboxEvent{orderEvent(t, 3, "key-3", model.OrderStatusDelivered)},
	}
	pusher := &stubPusher{sendErr: errors.New("gateway down")}
	d := NewDispatcher(repo, pusher, zap.NewNop(), 0)

	d.ProcessBatch(context.Background())

	if len(repo.dispatched) != 0 {
		t.Fatalf("failed push must leave the event pending for retry")
	}
}

func TestProcessBatch_SendsPush(t *testing.T) {
	repo := &stubDispatcherRepo{
		events: []repository.OutboxEvent{orderEvent(t, 4, "key-4", model.OrderStatusCancelled)},
	}
	pusher := &stubPusher{}
	d := NewDispatcher(repo, pusher, zap.NewNop(), 0)

	d.ProcessBatch(context.Background())

	if len(pusher.sent) != 1 {
		t.Fatalf("sent = %d push messages, want 1", len(pusher.sent))
	}
	if pusher.sent[0].UserID != 7 {
		t.Fatalf("push user = %d, want 7", pusher.sent[0].UserID)
	}
}

func TestProcessBatch_VendorApplicationEvent(t *testing.T) {
	payload, err := json.Marshal(repository.VendorApplicationEvent{UserID: 3, Status: model.RoleRequestApproved})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	repo := &stubDispatcherRepo{
		events: []repository.OutboxEvent{{
			ID:             5,
			Kind:           repository.OutboxKindVendorApplication,
			Payload:        payload,
			IdempotencyKey: "key-5",
		}},
	}
	d := NewDispatcher(repo, nil, zap.NewNop(), 0)

	d.ProcessBatch(context.Background())

	if len(repo.inserted) != 1 {
		t.Fatalf("inserted = %d notifications, want 1", len(repo.inserted))
	}
	if repo.inserted[0].Category != "vendor" {
		t.Fatalf("category = %q, want vendor", repo.inserted[0].Category)
	}
}

func TestProcessBatch_InsertFailureLeavesEventPending(t *testing.T) {
	repo := &stubDispatcherRepo{
		events:    []repository.OutboxEvent{orderEvent(t, 6, "key-6", model.OrderStatusShipped)},
		insertErr: errors.New("db down"),
	}
	d := NewDispatcher(repo, nil, zap.NewNop(), 0)

	d.ProcessBatch(context.Background())

	if len(repo.dispatched) != 0 {
		t.Fatalf("failed insert must leave the event pending for retry")
	}
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	repo := &stubDispatcherRepo{}
	d := NewDispatcher(repo, nil, zap.NewNop(), 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		d.Start(ctx)
		close(done)
	}()

	cancel()
	<-done
}
