// Package collab declares the narrow contracts the order core holds with
// the rest of the backend. Production implementations call the real
// services; tests inject fakes.
package collab

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrAddressNotFound means the address is absent or not owned by the user.
var ErrAddressNotFound = errors.New("address not found")

// Address is the shipping snapshot copied onto an order at creation.
type Address struct {
	ReceiverName string `json:"receiver_name"`
	Phone        string `json:"phone"`
	FullAddress  string `json:"full_address"`
}

type AddressBook interface {
	Resolve(ctx context.Context, userID, addressID int64) (Address, error)
}

// PricedProduct is the catalog's view of a product at a point in time.
type PricedProduct struct {
	ProductID    int64           `json:"product_id"`
	StoreID      int64           `json:"store_id"`
	Name         string          `json:"name"`
	ImageURL     string          `json:"image_url"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	AvailableQty int             `json:"available_qty"`
	ForSale      bool            `json:"for_sale"`
}

type Catalog interface {
	BatchGetPricedProducts(ctx context.Context, ids []int64) (map[int64]PricedProduct, error)
}

// Cart removes purchased lines after a successful order. Fire and forget:
// failures are logged by the caller, never propagated.
type Cart interface {
	RemoveLines(ctx context.Context, userID int64, productIDs []int64) error
}

// PaymentNotifier fans a confirmed payment out to downstream consumers.
type PaymentNotifier interface {
	OnPaymentConfirmed(ctx context.Context, orderNumber string) error
}

// NopNotifier drops notifications; used when no broker is configured.
type NopNotifier struct{}

func (NopNotifier) OnPaymentConfirmed(context.Context, string) error { return nil }
