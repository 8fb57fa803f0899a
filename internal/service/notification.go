package service

import (
	"context"
	"fmt"

	"github.com/ajjmal/marketplace-system/internal/model"
)

// NotificationRepository describes the data access contract used by the
// notification service.
type NotificationRepository interface {
	GetNotificationsByUser(ctx context.Context, userID int64) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID, userID int64) error
}

// NotificationService exposes user-facing notification queries. Creation goes
// through the outbox dispatcher, never through this service directly.
type NotificationService struct {
	repo NotificationRepository
}

// NewNotificationService creates a notification service backed by the given repository.
func NewNotificationService(repo NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

// GetNotificationsByUser returns a user's notifications, newest first.
func (s *NotificationService) GetNotificationsByUser(ctx context.Context, userID int64) ([]model.Notification, error) {
	return s.repo.GetNotificationsByUser(ctx, userID)
}

// MarkNotificationRead flips the read flag of one of the user's notifications.
func (s *NotificationService) MarkNotificationRead(ctx context.Context, notificationID, userID int64) error {
	if userID <= 0 {
		return ErrActorRequired
	}
	return s.repo.MarkNotificationRead(ctx, notificationID, userID)
}

type bilingualTemplate struct {
	titleAr string
	titleEn string
	bodyAr  string
	bodyEn  string
}

// orderStatusTemplates maps order statuses to notification texts. PROCESSING
// and REFUNDED are intentionally silent.
var orderStatusTemplates = map[model.OrderStatus]bilingualTemplate{
	model.OrderStatusPending: {
		titleAr: "تم استلام طلبك",
		titleEn: "Order received",
		bodyAr:  "تم استلام طلبك وسيتم تجهيزه قريباً.",
		bodyEn:  "Your order has been received and will be prepared soon.",
	},
	model.OrderStatusShipped: {
		titleAr: "تم شحن طلبك",
		titleEn: "Order shipped",
		bodyAr:  "طلبك في الطريق إليك.",
		bodyEn:  "Your order is on its way.",
	},
	model.OrderStatusDelivered: {
		titleAr: "تم تسليم طلبك",
		titleEn: "Order delivered",
		bodyAr:  "تم تسليم طلبك بنجاح. شكراً لتسوقك معنا.",
		bodyEn:  "Your order was delivered. Thank you for shopping with us.",
	},
	model.OrderStatusCancelled: {
		titleAr: "تم إلغاء طلبك",
		titleEn: "Order cancelled",
		bodyAr:  "تم إلغاء طلبك وإرجاع الكميات للمخزون.",
		bodyEn:  "Your order has been cancelled.",
	},
}

var vendorApplicationTemplates = map[model.RoleRequestStatus]bilingualTemplate{
	model.RoleRequestApproved: {
		titleAr: "تمت الموافقة على طلب البائع",
		titleEn: "Vendor application approved",
		bodyAr:  "مبروك! تم تفعيل متجرك ويمكنك البدء بالبيع.",
		bodyEn:  "Congratulations! Your store is active and you can start selling.",
	},
	model.RoleRequestRejected: {
		titleAr: "تم رفض طلب البائع",
		titleEn: "Vendor application rejected",
		bodyAr:  "نأسف، لم تتم الموافقة على طلبك.",
		bodyEn:  "We are sorry, your application was not approved.",
	},
}

// OrderStatusNotification renders the notification for an order status change,
// or nil when the status has no template.
func OrderStatusNotification(userID, orderID int64, status model.OrderStatus) *model.Notification {
	tpl, ok := orderStatusTemplates[status]
	if !ok {
		return nil
	}
	return &model.Notification{
		UserID:   userID,
		TitleAr:  tpl.titleAr,
		TitleEn:  tpl.titleEn,
		BodyAr:   tpl.bodyAr,
		BodyEn:   tpl.bodyEn,
		Category: "orders",
		Link:     fmt.Sprintf("/orders/%d", orderID),
	}
}

// VendorApplicationNotification renders the notification for a vendor
// application outcome, or nil for outcomes without a template.
func VendorApplicationNotification(userID int64, status model.RoleRequestStatus) *model.Notification {
	tpl, ok := vendorApplicationTemplates[status]
	if !ok {
		return nil
	}
	return &model.Notification{
		UserID:   userID,
		TitleAr:  tpl.titleAr,
		TitleEn:  tpl.titleEn,
		BodyAr:   tpl.bodyAr,
		BodyEn:   tpl.bodyEn,
		Category: "vendor",
		Link:     "/vendor/profile",
	}
}
