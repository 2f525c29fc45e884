package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/safar/go-order-engine/internal/database"
	"github.com/safar/go-order-engine/internal/inventory"
	"github.com/safar/go-order-engine/internal/models"
	"github.com/safar/go-order-engine/internal/orders/errs"
)

const orderColumns = `id, order_number, user_id, store_id, status, total_amount, payable_amount,
	receiver_name, receiver_phone, receiver_address, payment_method,
	paid_at, shipped_at, completed_at, cancelled_at, created_at, updated_at, version`

// Orders is the durable repository for order headers and line snapshots.
type Orders struct {
	db *sql.DB
}

func NewOrders(db *sql.DB) *Orders {
	return &Orders{db: db}
}

// CreateOrder reserves inventory for every line and persists the header
// plus all lines in one transaction. Either everything commits or the
// rollback reverts the reservations with it; no partial state survives.
func (s *Orders) CreateOrder(ctx context.Context, order *models.Order) error {
	return database.WithRetry(ctx, s.db, database.TxOptions{
		IsolationLevel: sql.LevelReadCommitted,
		MaxRetries:     3,
	}, func(tx *sql.Tx) error {
		for _, line := range order.Lines {
			if err := inventory.Reserve(ctx, tx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		err := tx.QueryRowContext(ctx,
			`INSERT INTO orders (order_number, user_id, store_id, status, total_amount, payable_amount,
			                     receiver_name, receiver_phone, receiver_address,
			                     created_at, updated_at, version)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW(), 1)
			 RETURNING id, created_at, updated_at`,
			order.OrderNumber, order.UserID, order.StoreID, order.Status,
			order.TotalAmount, order.PayableAmount,
			order.ReceiverName, order.ReceiverPhone, order.ReceiverAddress).
			Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		order.Version = 1

		for i := range order.Lines {
			line := &order.Lines[i]
			line.OrderID = order.ID
			err := tx.QueryRowContext(ctx,
				`INSERT INTO order_lines (order_id, product_id, product_name, product_image,
				                          unit_price, quantity, line_total, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
				 RETURNING id, created_at`,
				line.OrderID, line.ProductID, line.ProductName, line.ProductImage,
				line.UnitPrice, line.Quantity, line.LineTotal).
				Scan(&line.ID, &line.CreatedAt)
			if err != nil {
				return fmt.Errorf("insert order line: %w", err)
			}
		}

		return nil
	})
}

func (s *Orders) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	order, err := s.scanOne(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}

	if err := s.loadLines(ctx, order); err != nil {
		return nil, err
	}

	return order, nil
}

func (s *Orders) GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	order, err := s.scanOne(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, orderNumber)
	if err != nil {
		return nil, err
	}

	if err := s.loadLines(ctx, order); err != nil {
		return nil, err
	}

	return order, nil
}

// MarkPaid performs the CREATED -> PAID transition as a single
// status-conditioned update. Two concurrent deliveries race here and
// exactly one observes an affected row.
func (s *Orders) MarkPaid(ctx context.Context, orderNumber, method string, paidAt time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE orders
		 SET status = $1, paid_at = $2, payment_method = $3,
		     updated_at = NOW(), version = version + 1
		 WHERE order_number = $4
		   AND status = $5`,
		models.OrderStatusPaid, paidAt, method, orderNumber, models.OrderStatusCreated)
	if err != nil {
		return false, fmt.Errorf("mark paid: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// CancelOrder flips a CREATED order to CANCELLED and releases the stock
// of every line, all in one transaction. Returns false without touching
// anything when the order is no longer in CREATED.
func (s *Orders) CancelOrder(ctx context.Context, orderID int64, cancelledAt time.Time) (bool, error) {
	applied := false

	err := database.WithRetry(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		applied = false

		result, err := tx.ExecContext(ctx,
			`UPDATE orders
			 SET status = $1, cancelled_at = $2, updated_at = NOW(), version = version + 1
			 WHERE id = $3
			   AND status = $4`,
			models.OrderStatusCancelled, cancelledAt, orderID, models.OrderStatusCreated)
		if err != nil {
			return fmt.Errorf("cancel order: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return nil
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT product_id, quantity FROM order_lines WHERE order_id = $1`, orderID)
		if err != nil {
			return fmt.Errorf("load lines for release: %w", err)
		}
		defer rows.Close()

		type release struct {
			productID int64
			quantity  int
		}
		var releases []release
		for rows.Next() {
			var r release
			if err := rows.Scan(&r.productID, &r.quantity); err != nil {
				return fmt.Errorf("scan line for release: %w", err)
			}
			releases = append(releases, r)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}

		for _, r := range releases {
			if err := inventory.Release(ctx, tx, r.productID, r.quantity); err != nil {
				return err
			}
		}

		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return applied, nil
}

// TransitionStatus is the generic guarded edge for ship and complete:
// one conditional update stamping the timestamp that matches the target
// status. Returns false when the order was not in the expected status.
func (s *Orders) TransitionStatus(ctx context.Context, orderID int64, from, to models.OrderStatus, at time.Time) (bool, error) {
	column, ok := statusTimestampColumn(to)
	if !ok {
		return false, fmt.Errorf("no timestamp column for status %s", to)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE orders
		 SET status = $1, `+column+` = $2, updated_at = NOW(), version = version + 1
		 WHERE id = $3
		   AND status = $4`,
		to, at, orderID, from)
	if err != nil {
		return false, fmt.Errorf("transition order %d to %s: %w", orderID, to, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

func statusTimestampColumn(to models.OrderStatus) (string, bool) {
	switch to {
	case models.OrderStatusPaid:
		return "paid_at", true
	case models.OrderStatusShipped:
		return "shipped_at", true
	case models.OrderStatusCompleted:
		return "completed_at", true
	case models.OrderStatusCancelled:
		return "cancelled_at", true
	default:
		// REFUNDED has no settlement flow yet and therefore no column.
		return "", false
	}
}

func (s *Orders) scanOne(ctx context.Context, query string, arg any) (*models.Order, error) {
	order := &models.Order{}

	var (
		paymentMethod sql.NullString
		paidAt        sql.NullTime
		shippedAt     sql.NullTime
		completedAt   sql.NullTime
		cancelledAt   sql.NullTime
	)

	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&order.ID,
		&order.OrderNumber,
		&order.UserID,
		&order.StoreID,
		&order.Status,
		&order.TotalAmount,
		&order.PayableAmount,
		&order.ReceiverName,
		&order.ReceiverPhone,
		&order.ReceiverAddress,
		&paymentMethod,
		&paidAt,
		&shippedAt,
		&completedAt,
		&cancelledAt,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	order.PaymentMethod = paymentMethod.String
	order.PaidAt = nullableTime(paidAt)
	order.ShippedAt = nullableTime(shippedAt)
	order.CompletedAt = nullableTime(completedAt)
	order.CancelledAt = nullableTime(cancelledAt)

	return order, nil
}

func (s *Orders) loadLines(ctx context.Context, order *models.Order) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_id, product_id, product_name, product_image,
		        unit_price, quantity, line_total, created_at
		 FROM order_lines
		 WHERE order_id = $1
		 ORDER BY id`,
		order.ID)
	if err != nil {
		return fmt.Errorf("get order lines: %w", err)
	}
	defer rows.Close()

	var lines []models.OrderLine
	for rows.Next() {
		var line models.OrderLine
		err := rows.Scan(
			&line.ID,
			&line.OrderID,
			&line.ProductID,
			&line.ProductName,
			&line.ProductImage,
			&line.UnitPrice,
			&line.Quantity,
			&line.LineTotal,
			&line.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	order.Lines = lines
	return nil
}

// ListByUser pages a user's orders newest first, keyed on (created_at, id).
// An empty cursor means the first page; it carries no upper bound so rows
// stamped with the database clock are never skipped.
func (s *Orders) ListByUser(ctx context.Context, userID int64, cursor string, limit int) (*models.OrderPage, error) {
	query := `SELECT ` + orderColumns + `
		 FROM orders
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`
	args := []any{userID, limit + 1}

	if cursor != "" {
		cursorData, err := DecodeCursor(cursor)
		if err != nil {
			return nil, fmt.Errorf("decode cursor: %w", err)
		}
		query = `SELECT ` + orderColumns + `
		 FROM orders
		 WHERE user_id = $1
		   AND (created_at, id) < ($2, $3)
		 ORDER BY created_at DESC, id DESC
		 LIMIT $4`
		args = []any{userID, cursorData.CreatedAt, cursorData.ID, limit + 1}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var (
			order         models.Order
			paymentMethod sql.NullString
			paidAt        sql.NullTime
			shippedAt     sql.NullTime
			completedAt   sql.NullTime
			cancelledAt   sql.NullTime
		)

		err := rows.Scan(
			&order.ID,
			&order.OrderNumber,
			&order.UserID,
			&order.StoreID,
			&order.Status,
			&order.TotalAmount,
			&order.PayableAmount,
			&order.ReceiverName,
			&order.ReceiverPhone,
			&order.ReceiverAddress,
			&paymentMethod,
			&paidAt,
			&shippedAt,
			&completedAt,
			&cancelledAt,
			&order.CreatedAt,
			&order.UpdatedAt,
			&order.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}

		order.PaymentMethod = paymentMethod.String
		order.PaidAt = nullableTime(paidAt)
		order.ShippedAt = nullableTime(shippedAt)
		order.CompletedAt = nullableTime(completedAt)
		order.CancelledAt = nullableTime(cancelledAt)

		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	return &models.OrderPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
