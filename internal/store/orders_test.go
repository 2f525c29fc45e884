package store

import (
	"testing"

	"github.com/safar/go-order-engine/internal/models"
)

func TestStatusTimestampColumn(t *testing.T) {
	cases := []struct {
		status models.OrderStatus
		column string
		ok     bool
	}{
		{models.OrderStatusPaid, "paid_at", true},
		{models.OrderStatusShipped, "shipped_at", true},
		{models.OrderStatusCompleted, "completed_at", true},
		{models.OrderStatusCancelled, "cancelled_at", true},
		{models.OrderStatusRefunded, "", false},
		{models.OrderStatusCreated, "", false},
	}

	for _, tc := range cases {
		column, ok := statusTimestampColumn(tc.status)
		if column != tc.column || ok != tc.ok {
			t.Errorf("statusTimestampColumn(%s) = (%q, %v), want (%q, %v)",
				tc.status, column, ok, tc.column, tc.ok)
		}
	}
}
