// Package errs defines the error taxonomy of the order core. Storage,
// service and transport layers all speak these types, so callers can
// match with errors.Is/As regardless of which layer failed.
package errs

import (
	"errors"
	"fmt"

	"github.com/safar/go-order-engine/internal/models"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrAddressInvalid     = errors.New("address not found or not owned by user")
	ErrForbidden          = errors.New("forbidden")
	ErrProductNotFound    = errors.New("product not found")
	ErrProductUnavailable = errors.New("product not for sale")
	ErrPriceInvalid       = errors.New("product price must be positive")
	ErrInventoryNotFound  = errors.New("inventory record not found")

	// ErrInsufficientStock and ErrInvalidTransition are match targets for
	// their typed counterparts below.
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError rejects a malformed request before any side effect.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ProductError names the product that made an order line unusable.
type ProductError struct {
	ProductID int64
	Err       error
}

func (e *ProductError) Error() string {
	return fmt.Sprintf("product %d: %v", e.ProductID, e.Err)
}

func (e *ProductError) Unwrap() error { return e.Err }

// InsufficientStockError names the product whose reservation lost the race.
type InsufficientStockError struct {
	ProductID int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d", e.ProductID)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// InvalidTransitionError names both the current and the attempted status
// so the client can decide whether to poll or abort.
type InvalidTransitionError struct {
	Current   models.OrderStatus
	Attempted models.OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.Current, e.Attempted)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
