package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ajjmal/marketplace-system/internal/model"
	"github.com/ajjmal/marketplace-system/internal/repository"
)

type stubOrderRepo struct {
	createdNumber string
	createErr     error

	updateStatusCalls int
	updateStatusErr   error
	updatedStatus     model.OrderStatus
	updatedActor      int64

	order    *model.Order
	orderErr error

	stats *model.OrderStats
}

func (s *stubOrderRepo) CreateOrder(ctx context.Context, userID, vendorID int64, number string, items []repository.NewOrderItem, shipping, tax, discount int64) (*model.Order, error) {
	s.createdNumber = number
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &model.Order{Number: number, UserID: userID, VendorID: vendorID, Status: model.OrderStatusPending}, nil
}

func (s *stubOrderRepo) UpdateOrderStatus(ctx context.Context, orderID int64, newStatus model.OrderStatus, actorID int64, note string) (*model.Order, error) {
	s.updateStatusCalls++
	s.updatedStatus = newStatus
	s.updatedActor = actorID
	if s.updateStatusErr != nil {
		return nil, s.updateStatusErr
	}
	return &model.Order{ID: orderID, Status: newStatus}, nil
}

func (s *stubOrderRepo) UpdatePaymentStatus(ctx context.Context, orderID int64, status model.PaymentStatus) (*model.Order, error) {
	return &model.Order{ID: orderID, PaymentStatus: status}, nil
}

func (s *stubOrderRepo) GetOrderByID(ctx context.Context, orderID int64) (*model.Order, error) {
	return s.order, s.orderErr
}

func (s *stubOrderRepo) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return nil, nil
}

func (s *stubOrderRepo) GetOrderHistory(ctx context.Context, orderID int64) ([]model.OrderStatusHistory, error) {
	return nil, nil
}

func (s *stubOrderRepo) GetOrderStats(ctx context.Context) (*model.OrderStats, error) {
	return s.stats, nil
}

func TestCreateOrder_RequiresItems(t *testing.T) {
	svc := NewOrderService(&stubOrderRepo{})

	_, err := svc.CreateOrder(context.Background(), 1, 2, nil, 0, 0, 0)
	if err == nil {
		t.Fatalf("expected error for empty items")
	}
}

func TestCreateOrder_RejectsNonPositiveQuantity(t *testing.T) {
	svc := NewOrderService(&stubOrderRepo{})

	items := []repository.NewOrderItem{{ProductID: 5, Quantity: 0}}
	_, err := svc.CreateOrder(context.Background(), 1, 2, items, 0, 0, 0)
	if err == nil {
		t.Fatalf("expected error for zero quantity")
	}
}

func TestCreateOrder_RejectsNegativeAdjustments(t *testing.T) {
	svc := NewOrderService(&stubOrderRepo{})

	items := []repository.NewOrderItem{{ProductID: 5, Quantity: 1}}
	_, err := svc.CreateOrder(context.Background(), 1, 2, items, -100, 0, 0)
	if err == nil {
		t.Fatalf("expected error for negative shipping")
	}
}

func TestCreateOrder_GeneratesOrderNumber(t *testing.T) {
	repo := &stubOrderRepo{}
	svc := NewOrderService(repo)

	items := []repository.NewOrderItem{{ProductID: 5, Quantity: 2}}
	order, err := svc.CreateOrder(context.Background(), 1, 2, items, 500, 0, 0)
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}
	if !strings.HasPrefix(order.Number, "AJM-") {
		t.Fatalf("order number %q does not have AJM prefix", order.Number)
	}
	if repo.createdNumber != order.Number {
		t.Fatalf("repository received number %q, response has %q", repo.createdNumber, order.Number)
	}
}

func TestUpdateOrderStatus_RequiresActor(t *testing.T) {
	repo := &stubOrderRepo{}
	svc := NewOrderService(repo)

	_, err := svc.UpdateOrderStatus(context.Background(), 42, model.OrderStatusCancelled, 0, "")
	if !errors.Is(err, ErrActorRequired) {
		t.Fatalf("expected ErrActorRequired, got %v", err)
	}
	if repo.updateStatusCalls != 0 {
		t.Fatalf("repository must not be called without an actor")
	}
}

func TestUpdateOrderStatus_RejectsUnknownStatus(t *testing.T) {
	repo := &stubOrderRepo{}
	svc := NewOrderService(repo)

	_, err := svc.UpdateOrderStatus(context.Background(), 42, "LOST", 7, "")
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestUpdateOrderStatus_PropagatesInvalidTransition(t *testing.T) {
	repo := &stubOrderRepo{updateStatusErr: repository.ErrInvalidTransition}
	svc := NewOrderService(repo)

	_, err := svc.UpdateOrderStatus(context.Background(), 42, model.OrderStatusPending, 7, "")
	if !errors.Is(err, repository.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestUpdateOrderStatus_PassesActorThrough(t *testing.T) {
	repo := &stubOrderRepo{}
	svc := NewOrderService(repo)

	_, err := svc.UpdateOrderStatus(context.Background(), 42, model.OrderStatusCancelled, 7, "customer request")
	if err != nil {
		t.Fatalf("UpdateOrderStatus error: %v", err)
	}
	if repo.updatedActor != 7 {
		t.Fatalf("actor = %d, want 7", repo.updatedActor)
	}
	if repo.updatedStatus != model.OrderStatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", repo.updatedStatus)
	}
}

func TestUpdatePaymentStatus_RejectsUnknownStatus(t *testing.T) {
	svc := NewOrderService(&stubOrderRepo{})

	_, err := svc.UpdatePaymentStatus(context.Background(), 42, "MAYBE")
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}
