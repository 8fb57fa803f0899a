// Package service implements the business logic of the marketplace lifecycle service.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ajjmal/marketplace-system/internal/model"
	"github.com/ajjmal/marketplace-system/internal/repository"
)

// ErrActorRequired is returned when a mutating call carries no acting user.
var (
	ErrActorRequired = errors.New("acting user is required")
	// ErrInvalidStatus is returned for an unknown order or payment status value.
	ErrInvalidStatus = errors.New("invalid status value")
	// ErrInvalidRole is returned for an unknown role value.
	ErrInvalidRole = errors.New("invalid role value")
)

// OrderRepository describes the data access contract used by the order service.
type OrderRepository interface {
	CreateOrder(ctx context.Context, userID, vendorID int64, number string, items []repository.NewOrderItem, shipping, tax, discount int64) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, newStatus model.OrderStatus, actorID int64, note string) (*model.Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID int64, status model.PaymentStatus) (*model.Order, error)
	GetOrderByID(ctx context.Context, orderID int64) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	GetOrderHistory(ctx context.Context, orderID int64) ([]model.OrderStatusHistory, error)
	GetOrderStats(ctx context.Context) (*model.OrderStats, error)
}

// OrderService manages the order lifecycle.
type OrderService struct {
	repo OrderRepository
}

// NewOrderService creates an order service backed by the given repository.
func NewOrderService(repo OrderRepository) *OrderService {
	return &OrderService{repo: repo}
}

// CreateOrder places an order for the given line items. Monetary inputs are in
// dirhams; subtotal and total are recomputed server-side from the catalog.
func (s *OrderService) CreateOrder(ctx context.Context, userID, vendorID int64, items []repository.NewOrderItem, shipping, tax, discount int64) (*model.Order, error) {
	if userID <= 0 {
		return nil, ErrActorRequired
	}
	if len(items) == 0 {
		return nil, errors.New("order must contain at least one item")
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("quantity for product %d must be positive", it.ProductID)
		}
	}
	if shipping < 0 || tax < 0 || discount < 0 {
		return nil, errors.New("monetary adjustments must not be negative")
	}

	return s.repo.CreateOrder(ctx, userID, vendorID, newOrderNumber(), items, shipping, tax, discount)
}

// newOrderNumber generates a human-readable unique order number.
func newOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("AJM-%s-%s", time.Now().UTC().Format("20060102"), suffix)
}

// UpdateOrderStatus applies a validated status transition on behalf of actorID.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus, actorID int64, note string) (*model.Order, error) {
	if actorID <= 0 {
		return nil, ErrActorRequired
	}
	if !model.ValidOrderStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.repo.UpdateOrderStatus(ctx, orderID, status, actorID, note)
}

// UpdatePaymentStatus sets the payment status of an order.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, orderID int64, status model.PaymentStatus) (*model.Order, error) {
	if !model.ValidPaymentStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.repo.UpdatePaymentStatus(ctx, orderID, status)
}

// GetOrder returns an order with its items.
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	return s.repo.GetOrderByID(ctx, orderID)
}

// GetOrdersByUser returns a user's orders.
func (s *OrderService) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.repo.GetOrdersByUser(ctx, userID)
}

// GetOrderHistory returns the status history of an order.
func (s *OrderService) GetOrderHistory(ctx context.Context, orderID int64) ([]model.OrderStatusHistory, error) {
	return s.repo.GetOrderHistory(ctx, orderID)
}

// GetOrderStats returns aggregate order counts and revenue.
func (s *OrderService) GetOrderStats(ctx context.Context) (*model.OrderStats, error) {
	return s.repo.GetOrderStats(ctx)
}
