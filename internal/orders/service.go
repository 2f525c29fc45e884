// Package orders is the order lifecycle state machine: it turns a cart
// selection into a durable order, guards every status transition against
// the central transition table, and applies payment confirmations at most
// once.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/safar/go-order-engine/internal/collab"
	"github.com/safar/go-order-engine/internal/database"
	"github.com/safar/go-order-engine/internal/metrics"
	"github.com/safar/go-order-engine/internal/models"
	"github.com/safar/go-order-engine/internal/orders/errs"
)

// orderNumberRetries bounds how often creation regenerates an order
// number after a unique-index collision.
const orderNumberRetries = 2

// ItemRequest is one product-quantity pair of a creation request.
type ItemRequest struct {
	ProductID int64
	Quantity  int
}

// Deps bundles the collaborators of the lifecycle service.
type Deps struct {
	Repo      Repository
	Addresses collab.AddressBook
	Catalog   collab.Catalog
	Cart      collab.Cart
	Notifier  collab.PaymentNotifier
	Metrics   *metrics.OrderMetrics
	Logger    *zap.Logger

	// Clock and OrderNumber are overridable for deterministic tests.
	Clock       func() time.Time
	OrderNumber func(userID int64) string
}

type Service struct {
	repo        Repository
	addresses   collab.AddressBook
	catalog     collab.Catalog
	cart        collab.Cart
	notifier    collab.PaymentNotifier
	metrics     *metrics.OrderMetrics
	logger      *zap.Logger
	clock       func() time.Time
	orderNumber func(userID int64) string
}

func NewService(deps Deps) (*Service, error) {
	if deps.Repo == nil {
		return nil, errors.New("orders: repository is required")
	}
	if deps.Addresses == nil || deps.Catalog == nil || deps.Cart == nil {
		return nil, errors.New("orders: address, catalog and cart collaborators are required")
	}
	if deps.Metrics == nil {
		return nil, errors.New("orders: metrics are required")
	}

	notifier := deps.Notifier
	if notifier == nil {
		notifier = collab.NopNotifier{}
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	orderNumber := deps.OrderNumber
	if orderNumber == nil {
		orderNumber = NewOrderNumber
	}

	return &Service{
		repo:        deps.Repo,
		addresses:   deps.Addresses,
		catalog:     deps.Catalog,
		cart:        deps.Cart,
		notifier:    notifier,
		metrics:     deps.Metrics,
		logger:      logger,
		clock:       clock,
		orderNumber: orderNumber,
	}, nil
}

// NewOrderNumber builds a globally unique order number that embeds the
// owner and, through the ULID, creation time plus randomness. Doubles as
// a display and idempotency key.
func NewOrderNumber(userID int64) string {
	return fmt.Sprintf("ORD-%d-%s", userID, ulid.Make())
}

// Create runs the full creation sequence: validate, snapshot the address
// and catalog state, reserve inventory, persist everything atomically,
// then best-effort clear the purchased cart lines.
func (s *Service) Create(ctx context.Context, userID, addressID int64, items []ItemRequest) (*models.Order, error) {
	if len(items) == 0 {
		s.metrics.CreateFailures.WithLabelValues("validation").Inc()
		return nil, &errs.ValidationError{Field: "items", Reason: "must not be empty"}
	}

	seen := make(map[int64]bool, len(items))
	productIDs := make([]int64, 0, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			s.metrics.CreateFailures.WithLabelValues("validation").Inc()
			return nil, &errs.ValidationError{
				Field:  "quantity",
				Reason: fmt.Sprintf("product %d: must be at least 1", item.ProductID),
			}
		}
		if seen[item.ProductID] {
			s.metrics.CreateFailures.WithLabelValues("validation").Inc()
			return nil, &errs.ValidationError{
				Field:  "items",
				Reason: fmt.Sprintf("product %d appears more than once", item.ProductID),
			}
		}
		seen[item.ProductID] = true
		productIDs = append(productIDs, item.ProductID)
	}

	addr, err := s.addresses.Resolve(ctx, userID, addressID)
	if err != nil {
		if errors.Is(err, collab.ErrAddressNotFound) {
			s.metrics.CreateFailures.WithLabelValues("address").Inc()
			return nil, errs.ErrAddressInvalid
		}
		return nil, fmt.Errorf("resolve address: %w", err)
	}

	products, err := s.catalog.BatchGetPricedProducts(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("batch get products: %w", err)
	}

	var (
		lines   = make([]models.OrderLine, 0, len(items))
		total   = decimal.Zero
		storeID int64
	)
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			s.metrics.CreateFailures.WithLabelValues("product").Inc()
			return nil, &errs.ProductError{ProductID: item.ProductID, Err: errs.ErrProductNotFound}
		}
		if !product.ForSale {
			s.metrics.CreateFailures.WithLabelValues("product").Inc()
			return nil, &errs.ProductError{ProductID: item.ProductID, Err: errs.ErrProductUnavailable}
		}
		if product.UnitPrice.Cmp(decimal.Zero) <= 0 {
			s.metrics.CreateFailures.WithLabelValues("product").Inc()
			return nil, &errs.ProductError{ProductID: item.ProductID, Err: errs.ErrPriceInvalid}
		}
		if storeID == 0 {
			storeID = product.StoreID
		} else if product.StoreID != storeID {
			s.metrics.CreateFailures.WithLabelValues("validation").Inc()
			return nil, &errs.ValidationError{Field: "items", Reason: "items span multiple stores"}
		}

		lineTotal := product.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		lines = append(lines, models.OrderLine{
			ProductID:    item.ProductID,
			ProductName:  product.Name,
			ProductImage: product.ImageURL,
			UnitPrice:    product.UnitPrice,
			Quantity:     item.Quantity,
			LineTotal:    lineTotal,
		})
		total = total.Add(lineTotal)
	}

	order := &models.Order{
		OrderNumber:     s.orderNumber(userID),
		UserID:          userID,
		StoreID:         storeID,
		Status:          models.OrderStatusCreated,
		TotalAmount:     total,
		PayableAmount:   total,
		ReceiverName:    addr.ReceiverName,
		ReceiverPhone:   addr.Phone,
		ReceiverAddress: addr.FullAddress,
		Lines:           lines,
	}

	err = s.repo.CreateOrder(ctx, order)
	for attempt := 0; attempt < orderNumberRetries && database.IsUniqueViolation(err); attempt++ {
		s.logger.Warn("order number collision, regenerating",
			zap.String("order_number", order.OrderNumber),
			zap.Int64("user_id", userID))
		order.OrderNumber = s.orderNumber(userID)
		err = s.repo.CreateOrder(ctx, order)
	}
	if err != nil {
		var stockErr *errs.InsufficientStockError
		if errors.As(err, &stockErr) {
			s.metrics.CreateFailures.WithLabelValues("stock").Inc()
		}
		return nil, err
	}

	if err := s.cart.RemoveLines(ctx, userID, productIDs); err != nil {
		s.logger.Warn("cart cleanup failed after order creation",
			zap.String("order_number", order.OrderNumber),
			zap.Int64("user_id", userID),
			zap.Error(err))
	}

	s.metrics.OrdersCreated.Inc()
	s.logger.Info("order created",
		zap.String("order_number", order.OrderNumber),
		zap.Int64("user_id", userID),
		zap.String("total_amount", order.TotalAmount.String()))

	return order, nil
}

// Cancel moves a CREATED order owned by userID to CANCELLED, releasing
// every reserved line. Any other current status is an InvalidTransition;
// there is no silent no-op.
func (s *Service) Cancel(ctx context.Context, userID, orderID int64) error {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return errs.ErrForbidden
	}

	applied, err := s.repo.CancelOrder(ctx, orderID, s.clock())
	if err != nil {
		return err
	}
	if !applied {
		current, err := s.repo.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		return &errs.InvalidTransitionError{Current: current.Status, Attempted: models.OrderStatusCancelled}
	}

	s.metrics.OrdersCancelled.Inc()
	s.logger.Info("order cancelled",
		zap.String("order_number", order.OrderNumber),
		zap.Int64("user_id", userID))

	return nil
}

// ConfirmPayment applies a payment notification at most once. The applied
// return distinguishes "mutated this call" from an idempotent replay:
// a replay is success with no mutation, so gateway retry loops stay simple.
func (s *Service) ConfirmPayment(ctx context.Context, orderNumber, paymentMethod string) (applied bool, err error) {
	if paymentMethod == "" {
		return false, &errs.ValidationError{Field: "payment_method", Reason: "must not be empty"}
	}

	applied, err = s.repo.MarkPaid(ctx, orderNumber, paymentMethod, s.clock())
	if err != nil {
		return false, err
	}

	if !applied {
		// Lost the conditional update: re-read to decide between a safe
		// replay and a genuinely illegal transition.
		current, err := s.repo.GetByNumber(ctx, orderNumber)
		if err != nil {
			return false, err
		}
		switch current.Status {
		case models.OrderStatusPaid, models.OrderStatusShipped, models.OrderStatusCompleted:
			s.metrics.PaymentNotifications.WithLabelValues("replayed").Inc()
			return false, nil
		default:
			s.metrics.PaymentNotifications.WithLabelValues("rejected").Inc()
			return false, &errs.InvalidTransitionError{Current: current.Status, Attempted: models.OrderStatusPaid}
		}
	}

	if err := s.notifier.OnPaymentConfirmed(ctx, orderNumber); err != nil {
		s.logger.Warn("payment confirmed notification failed",
			zap.String("order_number", orderNumber),
			zap.Error(err))
	}

	s.metrics.PaymentNotifications.WithLabelValues("applied").Inc()
	s.logger.Info("payment confirmed",
		zap.String("order_number", orderNumber),
		zap.String("payment_method", paymentMethod))

	return true, nil
}

// Ship is the merchant-side PAID -> SHIPPED transition.
func (s *Service) Ship(ctx context.Context, storeID, orderID int64) error {
	return s.transition(ctx, orderID, models.OrderStatusPaid, models.OrderStatusShipped, func(o *models.Order) error {
		if o.StoreID != storeID {
			return errs.ErrForbidden
		}
		return nil
	})
}

// Complete is the buyer-side SHIPPED -> COMPLETED confirmation of receipt.
func (s *Service) Complete(ctx context.Context, userID, orderID int64) error {
	return s.transition(ctx, orderID, models.OrderStatusShipped, models.OrderStatusCompleted, func(o *models.Order) error {
		if o.UserID != userID {
			return errs.ErrForbidden
		}
		return nil
	})
}

func (s *Service) transition(ctx context.Context, orderID int64, from, to models.OrderStatus, authorize func(*models.Order) error) error {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if err := authorize(order); err != nil {
		return err
	}

	if !models.CanTransition(order.Status, to) {
		return &errs.InvalidTransitionError{Current: order.Status, Attempted: to}
	}

	applied, err := s.repo.TransitionStatus(ctx, orderID, from, to, s.clock())
	if err != nil {
		return err
	}
	if !applied {
		current, err := s.repo.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		return &errs.InvalidTransitionError{Current: current.Status, Attempted: to}
	}

	s.logger.Info("order transitioned",
		zap.String("order_number", order.OrderNumber),
		zap.String("from", string(from)),
		zap.String("to", string(to)))

	return nil
}
