// Package handler contains the HTTP handlers of the marketplace API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ajjmal/marketplace-system/internal/middleware"
	"github.com/ajjmal/marketplace-system/internal/model"
	"github.com/ajjmal/marketplace-system/internal/repository"
	"github.com/ajjmal/marketplace-system/internal/service"
)

// OrderService defines the order lifecycle contract used by the HTTP handlers.
type OrderService interface {
	CreateOrder(ctx context.Context, userID, vendorID int64, items []repository.NewOrderItem, shipping, tax, discount int64) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus, actorID int64, note string) (*model.Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID int64, status model.PaymentStatus) (*model.Order, error)
	GetOrder(ctx context.Context, orderID int64) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	GetOrderHistory(ctx context.Context, orderID int64) ([]model.OrderStatusHistory, error)
	GetOrderStats(ctx context.Context) (*model.OrderStats, error)
}

// RoleService defines the role workflow contract used by the HTTP handlers.
type RoleService interface {
	CreateRoleRequest(ctx context.Context, userID int64, role model.UserRole, submissionData []byte) (*model.RoleRequest, error)
	ApproveRoleRequest(ctx context.Context, requestID, processedBy int64, adminNotes string) (*model.RoleRequest, error)
	RejectRoleRequest(ctx context.Context, requestID, processedBy int64, reason, adminNotes string) (*model.RoleRequest, error)
	CancelRoleRequest(ctx context.Context, requestID, userID int64) error
	GetPendingRoleRequests(ctx context.Context) ([]model.RoleRequest, error)
	SetPrimaryRole(ctx context.Context, userID int64, role model.UserRole, actorID int64) error
	RevokeRole(ctx context.Context, userID int64, role model.UserRole, actorID int64, reason string) error
	GetRoleAssignments(ctx context.Context, userID int64) ([]model.RoleAssignment, error)
	GetRoleHistory(ctx context.Context, filter repository.RoleHistoryFilter) ([]model.RoleHistoryItem, error)
	GetRoleActivitySummary(ctx context.Context, userID int64) (*model.RoleActivitySummary, error)
}

// NotificationService defines the notification contract used by the HTTP handlers.
type NotificationService interface {
	GetNotificationsByUser(ctx context.Context, userID int64) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID, userID int64) error
}

// Handler implements the HTTP handlers of the marketplace API.
type Handler struct {
	orders        OrderService
	roles         RoleService
	notifications NotificationService
	logger        *zap.Logger
	actorAuth     *middleware.ActorMiddleware
}

// NewHandler creates a new HTTP handler instance.
func NewHandler(orders OrderService, roles RoleService, notifications NotificationService, logger *zap.Logger, actorAuth *middleware.ActorMiddleware) *Handler {
	return &Handler{
		orders:        orders,
		roles:         roles,
		notifications: notifications,
		logger:        logger,
		actorAuth:     actorAuth,
	}
}

func urlID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type orderItemResponse struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int32  `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	Subtotal    int64  `json:"subtotal"`
}

type orderResponse struct {
	ID            int64               `json:"id"`
	Number        string              `json:"number"`
	UserID        int64               `json:"user_id"`
	VendorID      int64               `json:"vendor_id"`
	Status        string              `json:"status"`
	PaymentStatus string              `json:"payment_status"`
	Subtotal      int64               `json:"subtotal"`
	Shipping      int64               `json:"shipping"`
	Tax           int64               `json:"tax"`
	Discount      int64               `json:"discount"`
	Total         int64               `json:"total"`
	Items         []orderItemResponse `json:"items,omitempty"`
	PlacedAt      string              `json:"placed_at"`
	PaidAt        *string             `json:"paid_at,omitempty"`
	ShippedAt     *string             `json:"shipped_at,omitempty"`
	DeliveredAt   *string             `json:"delivered_at,omitempty"`
	CancelledAt   *string             `json:"cancelled_at,omitempty"`
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func toOrderResponse(o *model.Order) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		Number:        o.Number,
		UserID:        o.UserID,
		VendorID:      o.VendorID,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		Subtotal:      o.Subtotal,
		Shipping:      o.Shipping,
		Tax:           o.Tax,
		Discount:      o.Discount,
		Total:         o.Total,
		PlacedAt:      o.PlacedAt.Format(time.RFC3339),
		PaidAt:        formatTimePtr(o.PaidAt),
		ShippedAt:     formatTimePtr(o.ShippedAt),
		DeliveredAt:   formatTimePtr(o.DeliveredAt),
		CancelledAt:   formatTimePtr(o.CancelledAt),
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Subtotal:    it.Subtotal,
		})
	}
	return resp
}

type createOrderRequest struct {
	VendorID int64 `json:"vendor_id"`
	Items    []struct {
		ProductID int64 `json:"product_id"`
		Quantity  int32 `json:"quantity"`
	} `json:"items"`
	Shipping int64 `json:"shipping"`
	Tax      int64 `json:"tax"`
	Discount int64 `json:"discount"`
}

// CreateOrder places an order for the authenticated user.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetActorIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	items := make([]repository.NewOrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, repository.NewOrderItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	order, err := h.orders.CreateOrder(r.Context(), actorID, req.VendorID, items, req.Shipping, req.Tax, req.Discount)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || errors.Is(err, repository.ErrProductNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if errors.Is(err, repository.ErrInsufficientStock) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		if errors.Is(err, service.ErrActorRequired) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		h.logger.Error("create order error", zap.Error(err), zap.Int64("userID", actorID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

// GetOrder returns one order with its line items.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := urlID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get order error", zap.Error(err), zap.Int64("orderID", orderID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// GetMyOrders returns the authenticated user's orders.
func (h *Handler) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetActorIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orders, err := h.orders.GetOrdersByUser(r.Context(), actorID)
	if err != nil {
		h.logger.Error("get orders error", zap.Error(err), zap.Int64("userID", actorID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

// UpdateOrderStatus applies a status transition on behalf of the authenticated actor.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetActorIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orderID, ok := urlID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req updateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.orders.UpdateOrderStatus(r.Context(), orderID, model.OrderStatus(req.Status), actorID, req.Note)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		if errors.Is(err, repository.ErrInvalidTransition) || errors.Is(err, service.ErrInvalidStatus) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("update order status error",
			zap.Error(err), zap.Int64("orderID", orderID), zap.String("status", req.Status))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

type updatePaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status"`
}

// UpdatePaymentStatus sets the payment status of an order.
func (h *Handler) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := urlID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req updatePaymentStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.orders.UpdatePaymentStatus(r.Context(), orderID, model.PaymentStatus(req.PaymentStatus))
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		if errors.Is(err, service.ErrInvalidStatus) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("update payment status error", zap.Error(err), zap.Int64("orderID", orderID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

type orderHistoryResponse struct {
	Status    string `json:"status"`
	Note      string `json:"note"`
	ChangedBy int64  `json:"changed_by"`
	CreatedAt string `json:"created_at"`
}

// GetOrderHistory returns the status history of an order, newest first.
func (h *Handler) GetOrderHistory(w http.ResponseWriter, r *http.Request) {
	orderID, ok := urlID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	history, err := h.orders.GetOrderHistory(r.Context(), orderID)
	if err != nil {
		h.logger.Error("get order history error", zap.Error(err), zap.Int64("orderID", orderID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]orderHistoryResponse, 0, len(history))
	for _, item := range history {
		resp = append(resp, orderHistoryResponse{
			Status:    string(item.Status),
			Note:      item.Note,
			ChangedBy: item.ChangedBy,
			CreatedAt: item.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type orderStatsResponse struct {
	CountByStatus map[string]int64 `json:"count_by_status"`
	Revenue       int64            `json:"revenue"`
}

// GetOrderStats returns aggregate order counts and revenue.
func (h *Handler) GetOrderStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orders.GetOrderStats(r.Context())
	if err != nil {
		h.logger.Error("get order stats error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := orderStatsResponse{
		CountByStatus: make(map[string]int64, len(stats.CountByStatus)),
		Revenue:       stats.Revenue,
	}
	for status, count := range stats.CountByStatus {
		resp.CountByStatus[string(status)] = count
	}
	writeJSON(w, http.StatusOK, resp)
}
