package service

import (
	"context"
	"errors"
	"testing"

	"github.com/ajjmal/marketplace-system/internal/model"
)

type stubNotificationRepo struct {
	notifications []model.Notification
	markedID      int64
	markedUser    int64
	markErr       error
}

func (s *stubNotificationRepo) GetNotificationsByUser(ctx context.Context, userID int64) ([]model.Notification, error) {
	return s.notifications, nil
}

func (s *stubNotificationRepo) MarkNotificationRead(ctx context.Context, notificationID, userID int64) error {
	s.markedID = notificationID
	s.markedUser = userID
	return s.markErr
}

func TestOrderStatusNotification(t *testing.T) {
	tests := []struct {
		status model.OrderStatus
		want   bool
	}{
		{status: model.OrderStatusPending, want: true},
		{status: model.OrderStatusShipped, want: true},
		{status: model.OrderStatusDelivered, want: true},
		{status: model.OrderStatusCancelled, want: true},
		{status: model.OrderStatusProcessing, want: false},
		{status: model.OrderStatusRefunded, want: false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			n := OrderStatusNotification(7, 42, tt.status)
			if (n != nil) != tt.want {
				t.Fatalf("OrderStatusNotification(%s) presence = %v, want %v", tt.status, n != nil, tt.want)
			}
			if n == nil {
				return
			}
			if n.UserID != 7 {
				t.Fatalf("user = %d, want 7", n.UserID)
			}
			if n.Category != "orders" {
				t.Fatalf("category = %q, want orders", n.Category)
			}
			if n.Link != "/orders/42" {
				t.Fatalf("link = %q, want /orders/42", n.Link)
			}
			if n.TitleAr == "" || n.TitleEn == "" || n.BodyAr == "" || n.BodyEn == "" {
				t.Fatalf("both languages must be filled in: %+v", n)
			}
		})
	}
}

func TestVendorApplicationNotification(t *testing.T) {
	approved := VendorApplicationNotification(3, model.RoleRequestApproved)
	if approved == nil {
		t.Fatalf("APPROVED must produce a notification")
	}
	if approved.Link != "/vendor/profile" {
		t.Fatalf("link = %q, want /vendor/profile", approved.Link)
	}

	rejected := VendorApplicationNotification(3, model.RoleRequestRejected)
	if rejected == nil {
		t.Fatalf("REJECTED must produce a notification")
	}

	if n := VendorApplicationNotification(3, model.RoleRequestPending); n != nil {
		t.Fatalf("PENDING must be silent, got %+v", n)
	}
}

func TestMarkNotificationRead_RequiresActor(t *testing.T) {
	repo := &stubNotificationRepo{}
	svc := NewNotificationService(repo)

	err := svc.MarkNotificationRead(context.Background(), 15, 0)
	if !errors.Is(err, ErrActorRequired) {
		t.Fatalf("expected ErrActorRequired, got %v", err)
	}
	if repo.markedID != 0 {
		t.Fatalf("repository must not be called without an actor")
	}
}

func TestMarkNotificationRead_PassesUserThrough(t *testing.T) {
	repo := &stubNotificationRepo{}
	svc := NewNotificationService(repo)

	if err := svc.MarkNotificationRead(context.Background(), 15, 7); err != nil {
		t.Fatalf("MarkNotificationRead error: %v", err)
	}
	if repo.markedID != 15 || repo.markedUser != 7 {
		t.Fatalf("marked (%d, %d), want (15, 7)", repo.markedID, repo.markedUser)
	}
}
