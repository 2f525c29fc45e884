package orders

import (
	"context"

	"github.com/safar/go-order-engine/internal/models"
	"github.com/safar/go-order-engine/internal/orders/errs"
)

// Read-side facade. Every buyer read enforces order ownership, merchant
// reads enforce store ownership; a mismatch is Forbidden, never an empty
// result — the caller decides whether to leak existence.

func (s *Service) GetByID(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, errs.ErrForbidden
	}
	return order, nil
}

func (s *Service) GetByOrderNumber(ctx context.Context, userID int64, orderNumber string) (*models.Order, error) {
	order, err := s.repo.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, errs.ErrForbidden
	}
	return order, nil
}

func (s *Service) ListByUser(ctx context.Context, userID int64, cursor string, limit int) (*models.OrderPage, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByUser(ctx, userID, cursor, limit)
}

// GetForStore is the merchant-side read.
func (s *Service) GetForStore(ctx context.Context, storeID, orderID int64) (*models.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.StoreID != storeID {
		return nil, errs.ErrForbidden
	}
	return order, nil
}
