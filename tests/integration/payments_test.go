package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/safar/go-order-engine/internal/models"
	"github.com/safar/go-order-engine/internal/orders"
	"github.com/safar/go-order-engine/internal/orders/errs"
)

// Walks the payment lifecycle end to end: create, confirm, replay the
// confirmation, then attempt a late cancel.
func TestPaymentLifecycle(t *testing.T) {
	f, cleanup := setupFixture(t)
	defer cleanup()

	ctx := context.Background()
	f.seedProduct(t, 7, 5, "19.99", 5)

	order, err := f.svc.Create(ctx, 1, 10, []orders.ItemRequest{{ProductID: 7, Quantity: 2}})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}
	if got := f.stock(t, 7); got != 3 {
		t.Fatalf("Expected stock 3 after creation, got %d", got)
	}

	applied, err := f.svc.ConfirmPayment(ctx, order.OrderNumber, "SIMULATED_PAY")
	if err != nil {
		t.Fatalf("Confirm payment: %v", err)
	}
	if !applied {
		t.Error("Expected first confirmation to apply")
	}

	paid, err := f.svc.GetByOrderNumber(ctx, 1, order.OrderNumber)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if paid.Status != models.OrderStatusPaid || paid.PaidAt == nil {
		t.Errorf("Expected PAID with paid_at set, got %+v", paid)
	}
	if paid.PaymentMethod != "SIMULATED_PAY" {
		t.Errorf("Expected payment method recorded, got %q", paid.PaymentMethod)
	}
	firstPaidAt := *paid.PaidAt

	// Identical replayed notification: success, no error, no change.
	applied, err = f.svc.ConfirmPayment(ctx, order.OrderNumber, "SIMULATED_PAY")
	if err != nil {
		t.Fatalf("Replayed confirmation: %v", err)
	}
	if applied {
		t.Error("Expected replay not to apply")
	}

	replayed, err := f.svc.GetByOrderNumber(ctx, 1, order.OrderNumber)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if !replayed.PaidAt.Equal(firstPaidAt) {
		t.Errorf("paid_at changed on replay: %v -> %v", firstPaidAt, replayed.PaidAt)
	}
	if f.notifier.count() != 1 {
		t.Errorf("Expected exactly one downstream notification, got %d", f.notifier.count())
	}

	// Payment locks out cancellation; stock stays reserved.
	err = f.svc.Cancel(ctx, 1, order.ID)
	if !errors.Is(err, errs.ErrInvalidTransition) {
		t.Errorf("Expected invalid transition cancelling a paid order, got %v", err)
	}
	if got := f.stock(t, 7); got != 3 {
		t.Errorf("Stock must remain reserved after rejected cancel, got %d", got)
	}
}

func TestConcurrentPaymentConfirmations(t *testing.T) {
	f, cleanup := setupFixture(t)
	defer cleanup()

	ctx := context.Background()
	f.seedProduct(t, 7, 5, "19.99", 5)

	order, err := f.svc.Create(ctx, 1, 10, []orders.ItemRequest{{ProductID: 7, Quantity: 1}})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	concurrency := 10
	var wg sync.WaitGroup
	appliedCount := make(chan bool, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			applied, err := f.svc.ConfirmPayment(ctx, order.OrderNumber, "SIMULATED_PAY")
			if err != nil {
				t.Errorf("Concurrent confirmation failed: %v", err)
				return
			}
			appliedCount <- applied
		}()
	}

	wg.Wait()
	close(appliedCount)

	winners := 0
	for applied := range appliedCount {
		if applied {
			winners++
		}
	}

	if winners != 1 {
		t.Errorf("Expected exactly one delivery to win the transition, got %d", winners)
	}
	if f.notifier.count() != 1 {
		t.Errorf("Expected exactly one downstream notification, got %d", f.notifier.count())
	}

	final, err := f.svc.GetByOrderNumber(ctx, 1, order.OrderNumber)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if final.Status != models.OrderStatusPaid {
		t.Errorf("Expected PAID, got %s", final.Status)
	}
}

func TestConcurrentCancelAndConfirm(t *testing.T) {
	f, cleanup := setupFixture(t)
	defer cleanup()

	ctx := context.Background()
	f.seedProduct(t, 7, 5, "19.99", 10)

	order, err := f.svc.Create(ctx, 1, 10, []orders.ItemRequest{{ProductID: 7, Quantity: 2}})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	// Both condition on status = CREATED; exactly one wins.
	var wg sync.WaitGroup
	var cancelErr, confirmErr error
	var confirmApplied bool

	wg.Add(2)
	go func() {
		defer wg.Done()
		cancelErr = f.svc.Cancel(ctx, 1, order.ID)
	}()
	go func() {
		defer wg.Done()
		confirmApplied, confirmErr = f.svc.ConfirmPayment(ctx, order.OrderNumber, "SIMULATED_PAY")
	}()
	wg.Wait()

	cancelWon := cancelErr == nil
	confirmWon := confirmErr == nil && confirmApplied

	if cancelWon == confirmWon {
		t.Fatalf("Exactly one of cancel/confirm must win: cancelErr=%v confirmErr=%v applied=%v",
			cancelErr, confirmErr, confirmApplied)
	}

	final, err := f.svc.GetByOrderNumber(ctx, 1, order.OrderNumber)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}

	if cancelWon {
		if final.Status != models.OrderStatusCancelled {
			t.Errorf("Expected CANCELLED, got %s", final.Status)
		}
		if got := f.stock(t, 7); got != 10 {
			t.Errorf("Expected stock restored to 10, got %d", got)
		}
		if !errors.Is(confirmErr, errs.ErrInvalidTransition) {
			t.Errorf("Losing confirmation must report invalid transition, got %v", confirmErr)
		}
	} else {
		if final.Status != models.OrderStatusPaid {
			t.Errorf("Expected PAID, got %s", final.Status)
		}
		if got := f.stock(t, 7); got != 8 {
			t.Errorf("Expected stock to stay reserved at 8, got %d", got)
		}
		if !errors.Is(cancelErr, errs.ErrInvalidTransition) {
			t.Errorf("Losing cancel must report invalid transition, got %v", cancelErr)
		}
	}
}

func TestConfirmPaymentUnknownOrderNumber(t *testing.T) {
	f, cleanup := setupFixture(t)
	defer cleanup()

	_, err := f.svc.ConfirmPayment(context.Background(), "ORD-1-DOES-NOT-EXIST", "SIMULATED_PAY")
	if !errors.Is(err, errs.ErrOrderNotFound) {
		t.Errorf("Expected order not found, got %v", err)
	}
}
