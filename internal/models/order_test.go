package models

import "testing"

func TestCanTransitionOrder(t *testing.T) {
	legal := []struct{ from, to string }{
		{OrderPending, OrderProcessing},
		{OrderPending, OrderCancelled},
		{OrderProcessing, OrderShipped},
		{OrderProcessing, OrderCancelled},
		{OrderShipped, OrderDelivered},
	}
	for _, tc := range legal {
		if !CanTransitionOrder(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	statuses := []string{
		OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled,
	}
	allowed := make(map[[2]string]bool, len(legal))
	for _, tc := range legal {
		allowed[[2]string{tc.from, tc.to}] = true
	}
	for _, from := range statuses {
		for _, to := range statuses {
			if allowed[[2]string{from, to}] {
				continue
			}
			if CanTransitionOrder(from, to) {
				t.Errorf("expected %s -> %s to be rejected", from, to)
			}
		}
	}
}

func TestCanTransitionOrderUnknownStatus(t *testing.T) {
	if CanTransitionOrder("Pending", "Teleported") {
		t.Error("unknown target status must be rejected")
	}
	if CanTransitionOrder("Limbo", OrderProcessing) {
		t.Error("unknown source status must be rejected")
	}
}

func TestValidOrderStatus(t *testing.T) {
	for _, status := range []string{
		OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled,
	} {
		if !ValidOrderStatus(status) {
			t.Errorf("expected %s to be valid", status)
		}
	}
	if ValidOrderStatus("Refunded") {
		t.Error("expected Refunded to be invalid")
	}
	if ValidOrderStatus("") {
		t.Error("expected empty status to be invalid")
	}
}
