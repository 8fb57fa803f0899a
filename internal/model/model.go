// Package model contains the domain entities of the marketplace lifecycle service.
package model

import "time"

// User represents a registered marketplace user.
type User struct {
	ID        int64
	Name      string
	Phone     string
	CreatedAt time.Time
}

// OrderStatus describes the fulfilment status of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusRefunded   OrderStatus = "REFUNDED"
)

// orderTransitions lists the allowed successor statuses per status.
// CANCELLED and REFUNDED are terminal. Self-transitions are not allowed.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:  {OrderStatusRefunded},
	OrderStatusCancelled:  {},
	OrderStatusRefunded:   {},
}

// ValidOrderStatus reports whether s is one of the known order statuses.
func ValidOrderStatus(s OrderStatus) bool {
	_, ok := orderTransitions[s]
	return ok
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalOrderStatus reports whether no further transitions are possible.
func IsTerminalOrderStatus(s OrderStatus) bool {
	return len(orderTransitions[s]) == 0
}

// PaymentStatus describes the payment state of an order.
type PaymentStatus string

const (
	PaymentStatusUnpaid    PaymentStatus = "UNPAID"
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusPartial   PaymentStatus = "PARTIAL"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// ValidPaymentStatus reports whether s is one of the known payment statuses.
func ValidPaymentStatus(s PaymentStatus) bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPaid, PaymentStatusPartial, PaymentStatusCancelled:
		return true
	}
	return false
}

// Order describes a customer order. Monetary amounts are in dirhams (1/1000 LYD).
type Order struct {
	ID            int64
	Number        string
	UserID        int64
	VendorID      int64
	Status        OrderStatus
	PaymentStatus PaymentStatus
	Subtotal      int64
	Shipping      int64
	Tax           int64
	Discount      int64
	Total         int64
	Items         []OrderItem
	PlacedAt      time.Time
	PaidAt        *time.Time
	ShippedAt     *time.Time
	DeliveredAt   *time.Time
	CancelledAt   *time.Time
}

// OrderItem is a product snapshot captured at checkout.
type OrderItem struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	ProductName string
	Quantity    int32
	UnitPrice   int64
	Subtotal    int64
}

// OrderStatusHistory is an append-only record of a single status transition.
type OrderStatusHistory struct {
	ID        int64
	OrderID   int64
	Status    OrderStatus
	Note      string
	ChangedBy int64
	CreatedAt time.Time
}

// OrderStats aggregates order counts per status and revenue from paid delivered orders.
type OrderStats struct {
	CountByStatus map[OrderStatus]int64
	Revenue       int64
}

// UserRole is a permission tier a user can hold.
type UserRole string

const (
	RoleSystemStaff    UserRole = "SYSTEM_STAFF"
	RoleCustomer       UserRole = "CUSTOMER"
	RoleVendor         UserRole = "VENDOR"
	RoleDeliveryPerson UserRole = "DELIVERY_PERSON"
)

// ValidUserRole reports whether r is one of the known roles.
func ValidUserRole(r UserRole) bool {
	switch r {
	case RoleSystemStaff, RoleCustomer, RoleVendor, RoleDeliveryPerson:
		return true
	}
	return false
}

// RoleRequestStatus describes the adjudication state of a role request.
type RoleRequestStatus string

const (
	RoleRequestPending  RoleRequestStatus = "PENDING"
	RoleRequestApproved RoleRequestStatus = "APPROVED"
	RoleRequestRejected RoleRequestStatus = "REJECTED"
)

// RoleRequest is a user-initiated application for an elevated role.
type RoleRequest struct {
	ID              int64
	UserID          int64
	RequestedRole   UserRole
	Status          RoleRequestStatus
	SubmissionData  []byte
	AdminNotes      string
	RejectionReason string
	ProcessedBy     *int64
	ProcessedAt     *time.Time
	CreatedAt       time.Time
}

// RoleAssignment is an active (user, role) pair.
type RoleAssignment struct {
	ID        int64
	UserID    int64
	Role      UserRole
	IsActive  bool
	IsPrimary bool
	CreatedAt time.Time
}

// RoleHistoryAction classifies a role audit event.
type RoleHistoryAction string

const (
	RoleActionAssigned       RoleHistoryAction = "ASSIGNED"
	RoleActionRevoked        RoleHistoryAction = "REVOKED"
	RoleActionPrimaryChanged RoleHistoryAction = "PRIMARY_CHANGED"
)

// RoleHistoryItem is an append-only audit entry for a role change.
type RoleHistoryItem struct {
	ID        int64
	UserID    int64
	Role      UserRole
	Action    RoleHistoryAction
	ActedBy   int64
	Reason    string
	CreatedAt time.Time
}

// RoleActivitySummary aggregates a user's role history.
type RoleActivitySummary struct {
	Assignments    int
	Revocations    int
	PrimaryChanges int
	Roles          []UserRole
}

// VendorProfile is the storefront identity tied one-to-one to a vendor user.
type VendorProfile struct {
	ID             int64
	UserID         int64
	StoreName      string
	Slug           string
	CommissionRate int32
	IsVerified     bool
	IsActive       bool
	CreatedAt      time.Time
}

// VendorBalance is the monetary companion of a vendor profile, in dirhams.
type VendorBalance struct {
	ID              int64
	VendorProfileID int64
	Available       int64
	Pending         int64
	TotalEarned     int64
}

// Notification is a bilingual user-facing message.
type Notification struct {
	ID        int64
	UserID    int64
	TitleAr   string
	TitleEn   string
	BodyAr    string
	BodyEn    string
	Category  string
	Link      string
	IsRead    bool
	CreatedAt time.Time
}
