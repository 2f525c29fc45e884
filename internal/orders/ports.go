package orders

import (
	"context"
	"time"

	"github.com/safar/go-order-engine/internal/models"
)

// Repository is the durable side of the lifecycle engine. The production
// implementation is store.Orders; tests inject a fake.
type Repository interface {
	// CreateOrder persists header, lines and inventory reservations
	// atomically: on error nothing survives.
	CreateOrder(ctx context.Context, order *models.Order) error

	GetByID(ctx context.Context, id int64) (*models.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	ListByUser(ctx context.Context, userID int64, cursor string, limit int) (*models.OrderPage, error)

	// MarkPaid applies CREATED -> PAID as one status-conditioned update
	// and reports whether this call won the race.
	MarkPaid(ctx context.Context, orderNumber, method string, paidAt time.Time) (bool, error)

	// CancelOrder applies CREATED -> CANCELLED and releases line stock in
	// one transaction; false means the order had already left CREATED.
	CancelOrder(ctx context.Context, orderID int64, cancelledAt time.Time) (bool, error)

	// TransitionStatus applies a single guarded edge, stamping the
	// timestamp matching the target status.
	TransitionStatus(ctx context.Context, orderID int64, from, to models.OrderStatus, at time.Time) (bool, error)
}
