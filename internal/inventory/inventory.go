// Package inventory is the ledger of available stock per product. Both
// mutations are single conditional statements so that concurrent writers
// are serialized by the database, never by application-level locking.
package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/safar/go-order-engine/internal/orders/errs"
)

// Querier is satisfied by *sql.DB and *sql.Tx, so reservations can ride
// inside the order-creation transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Reserve decrements available stock by qty, succeeding only when enough
// stock remains. The predicate and the decrement are one atomic statement;
// a loser of the race observes zero affected rows, never a negative count.
func Reserve(ctx context.Context, q Querier, productID int64, qty int) error {
	result, err := q.ExecContext(ctx,
		`UPDATE inventory
		 SET quantity = quantity - $1,
		     updated_at = NOW()
		 WHERE product_id = $2
		   AND quantity >= $1`,
		qty, productID)
	if err != nil {
		return fmt.Errorf("reserve stock for product %d: %w", productID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return &errs.InsufficientStockError{ProductID: productID}
	}

	return nil
}

// Release returns qty units to the ledger. Unconditional: a release always
// pairs with a prior reservation of the same order line.
func Release(ctx context.Context, q Querier, productID int64, qty int) error {
	result, err := q.ExecContext(ctx,
		`UPDATE inventory
		 SET quantity = quantity + $1,
		     updated_at = NOW()
		 WHERE product_id = $2`,
		qty, productID)
	if err != nil {
		return fmt.Errorf("release stock for product %d: %w", productID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("release stock for product %d: %w", productID, errs.ErrInventoryNotFound)
	}

	return nil
}

// Record is one ledger row.
type Record struct {
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Get reads the current available quantity for a product.
func Get(ctx context.Context, q Querier, productID int64) (*Record, error) {
	rec := &Record{}

	err := q.QueryRowContext(ctx,
		`SELECT product_id, quantity, updated_at
		 FROM inventory
		 WHERE product_id = $1`,
		productID).Scan(&rec.ProductID, &rec.Quantity, &rec.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.ErrInventoryNotFound
		}
		return nil, fmt.Errorf("get inventory: %w", err)
	}

	return rec, nil
}

// Upsert provisions or resets a ledger row. Used by catalog onboarding
// and test fixtures, not by the order lifecycle.
func Upsert(ctx context.Context, q Querier, productID int64, qty int) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO inventory (product_id, quantity, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (product_id)
		 DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = NOW()`,
		productID, qty)
	if err != nil {
		return fmt.Errorf("upsert inventory: %w", err)
	}
	return nil
}
