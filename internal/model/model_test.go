package model

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{name: "pending to processing", from: OrderStatusPending, to: OrderStatusProcessing, want: true},
		{name: "pending to cancelled", from: OrderStatusPending, to: OrderStatusCancelled, want: true},
		{name: "processing to shipped", from: OrderStatusProcessing, to: OrderStatusShipped, want: true},
		{name: "shipped to delivered", from: OrderStatusShipped, to: OrderStatusDelivered, want: true},
		{name: "delivered to refunded", from: OrderStatusDelivered, to: OrderStatusRefunded, want: true},
		{name: "pending to shipped skips processing", from: OrderStatusPending, to: OrderStatusShipped, want: false},
		{name: "delivered to pending", from: OrderStatusDelivered, to: OrderStatusPending, want: false},
		{name: "cancelled is terminal", from: OrderStatusCancelled, to: OrderStatusPending, want: false},
		{name: "cancelled to cancelled", from: OrderStatusCancelled, to: OrderStatusCancelled, want: false},
		{name: "refunded is terminal", from: OrderStatusRefunded, to: OrderStatusPending, want: false},
		{name: "self transition rejected", from: OrderStatusPending, to: OrderStatusPending, want: false},
		{name: "unknown source", from: OrderStatus("UNKNOWN"), to: OrderStatusPending, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestCancelReachableFromAllPreTerminalStates(t *testing.T) {
	for _, from := range []OrderStatus{OrderStatusPending, OrderStatusProcessing, OrderStatusShipped} {
		if !CanTransition(from, OrderStatusCancelled) {
			t.Fatalf("expected %s -> CANCELLED to be allowed", from)
		}
	}
}

func TestIsTerminalOrderStatus(t *testing.T) {
	terminal := map[OrderStatus]bool{
		OrderStatusPending:    false,
		OrderStatusProcessing: false,
		OrderStatusShipped:    false,
		OrderStatusDelivered:  false,
		OrderStatusCancelled:  true,
		OrderStatusRefunded:   true,
	}
	for status, want := range terminal {
		if got := IsTerminalOrderStatus(status); got != want {
			t.Fatalf("IsTerminalOrderStatus(%s) = %v, want %v", status, got, want)
		}
	}
}

func TestValidOrderStatus(t *testing.T) {
	if !ValidOrderStatus(OrderStatusShipped) {
		t.Fatalf("SHIPPED must be valid")
	}
	if ValidOrderStatus("SHIPPPED") {
		t.Fatalf("misspelled status must be invalid")
	}
}

func TestValidUserRole(t *testing.T) {
	for _, role := range []UserRole{RoleSystemStaff, RoleCustomer, RoleVendor, RoleDeliveryPerson} {
		if !ValidUserRole(role) {
			t.Fatalf("expected %s to be valid", role)
		}
	}
	if ValidUserRole("ADMIN") {
		t.Fatalf("unknown role must be invalid")
	}
}

func TestValidPaymentStatus(t *testing.T) {
	if !ValidPaymentStatus(PaymentStatusPartial) {
		t.Fatalf("PARTIAL must be valid")
	}
	if ValidPaymentStatus("") {
		t.Fatalf("empty payment status must be invalid")
	}
}
