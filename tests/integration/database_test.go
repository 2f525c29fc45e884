package integration

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/safar/go-order-engine/internal/database"
	"github.com/safar/go-order-engine/internal/inventory"
	"github.com/safar/go-order-engine/internal/orders/errs"
)

func TestWithTransactionCommits(t *testing.T) {
	f, cleanup := setupFixture(t)
	defer cleanup()

	ctx := context.Background()
	err := database.WithTransaction(ctx, f.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		return inventory.Upsert(ctx, tx, 901, 10)
	})
	if err != nil {
		t.Fatalf("WithTransaction: %v", err)
	}

	rec, err := inventory.Get(ctx, f.db, 901)
	if err != nil {
		t.Fatalf("Get inventory: %v", err)
	}
	if rec.Quantity != 10 {
		t.Errorf("Expected quantity 10 after commit, got %d", rec.Quantity)
	}
}

func TestWithTransactionRollsBack(t *testing.T) {
	f, cleanup := setupFixture(t)
	defer cleanup()

	ctx := context.Background()
	abort := errors.New("provisioning aborted")

	err := database.WithTransaction(ctx, f.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if err := inventory.Upsert(ctx, tx, 902, 10); err != nil {
			return err
		}
		return abort
	})
	if !errors.Is(err, abort) {
		t.Fatalf("Expected the callback error to surface, got %v", err)
	}

	if _, err := inventory.Get(ctx, f.db, 902); !errors.Is(err, errs.ErrInventoryNotFound) {
		t.Errorf("Expected rollback to discard the row, got %v", err)
	}
}
