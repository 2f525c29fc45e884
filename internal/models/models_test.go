package models

import "testing"

func TestCanTransition(t *testing.T) {
	legal := []struct {
		from, to OrderStatus
	}{
		{OrderStatusCreated, OrderStatusPaid},
		{OrderStatusCreated, OrderStatusCancelled},
		{OrderStatusPaid, OrderStatusShipped},
		{OrderStatusShipped, OrderStatusCompleted},
		{OrderStatusCompleted, OrderStatusRefunded},
	}

	for _, tc := range legal {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("Expected %s -> %s to be legal", tc.from, tc.to)
		}
	}

	illegal := []struct {
		from, to OrderStatus
	}{
		{OrderStatusCreated, OrderStatusShipped},
		{OrderStatusCreated, OrderStatusCompleted},
		{OrderStatusPaid, OrderStatusCancelled},
		{OrderStatusPaid, OrderStatusCompleted},
		{OrderStatusShipped, OrderStatusCancelled},
		{OrderStatusShipped, OrderStatusPaid},
		{OrderStatusCancelled, OrderStatusPaid},
		{OrderStatusCancelled, OrderStatusCreated},
		{OrderStatusRefunded, OrderStatusCompleted},
		{OrderStatusCompleted, OrderStatusShipped},
	}

	for _, tc := range illegal {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("Expected %s -> %s to be illegal", tc.from, tc.to)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []OrderStatus{OrderStatusCancelled, OrderStatusRefunded} {
		if !IsTerminal(s) {
			t.Errorf("Expected %s to be terminal", s)
		}
	}
	for _, s := range []OrderStatus{OrderStatusCreated, OrderStatusPaid, OrderStatusShipped, OrderStatusCompleted} {
		if IsTerminal(s) {
			t.Errorf("Expected %s not to be terminal", s)
		}
	}
}
