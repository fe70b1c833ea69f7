package enums

import "testing"

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{OrderStatusDraft, OrderStatusConfirmed, true},
		{OrderStatusDraft, OrderStatusCancelled, true},
		{OrderStatusDraft, OrderStatusShipped, false},
		{OrderStatusDraft, OrderStatusDelivered, false},
		{OrderStatusConfirmed, OrderStatusShipped, true},
		{OrderStatusConfirmed, OrderStatusCancelled, true},
		{OrderStatusConfirmed, OrderStatusDraft, false},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusCancelled, true},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusDraft, false},
		{OrderStatusCancelled, OrderStatusConfirmed, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
			t.Fatalf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	for _, s := range []OrderStatus{OrderStatusDelivered, OrderStatusCancelled} {
		if !s.IsTerminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	for _, s := range []OrderStatus{OrderStatusDraft, OrderStatusConfirmed, OrderStatusShipped} {
		if s.IsTerminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
}

func TestShipmentStatusTransitions(t *testing.T) {
	tests := []struct {
		from    ShipmentStatus
		to      ShipmentStatus
		allowed bool
	}{
		{ShipmentStatusPending, ShipmentStatusPickedUp, true},
		{ShipmentStatusPending, ShipmentStatusException, true},
		{ShipmentStatusPending, ShipmentStatusDelivered, false},
		{ShipmentStatusPickedUp, ShipmentStatusInTransit, true},
		{ShipmentStatusInTransit, ShipmentStatusOutForDelivery, true},
		{ShipmentStatusInTransit, ShipmentStatusPending, false},
		{ShipmentStatusOutForDelivery, ShipmentStatusDelivered, true},
		{ShipmentStatusDelivered, ShipmentStatusException, false},
		{ShipmentStatusException, ShipmentStatusInTransit, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
			t.Fatalf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestParseHelpers(t *testing.T) {
	if _, err := ParseOrderStatus("confirmed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseOrderStatus("approved"); err == nil {
		t.Fatal("expected error for unknown order status")
	}
	if _, err := ParseShipmentStatus("in_transit"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseShipmentStatus("lost"); err == nil {
		t.Fatal("expected error for unknown shipment status")
	}
	if _, err := ParseSupplierStatus("active"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseOrderPriority("urgent"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
