package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shopper-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// orderRow mirrors the orders table. Nested order fields (address, payment
// method, return info) are flattened into columns and rebuilt on read.
type orderRow struct {
	ID                    string         `db:"id"`
	OrderNumber           string         `db:"order_number"`
	UserID                string         `db:"user_id"`
	TotalPrice            int64          `db:"total_price"`
	ShipAddress           string         `db:"ship_address"`
	ShipCity              string         `db:"ship_city"`
	ShipState             string         `db:"ship_state"`
	ShipZip               string         `db:"ship_zip"`
	PaymentType           string         `db:"payment_type"`
	PaymentDetail         string         `db:"payment_detail"`
	PaymentStatus         string         `db:"payment_status"`
	Status                string         `db:"status"`
	IdempotencyKey        sql.NullString `db:"idempotency_key"`
	RefundMethod          string         `db:"refund_method"`
	CreatedAt             time.Time      `db:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at"`
	CancelledAt           sql.NullTime   `db:"cancelled_at"`
	ReturnReason          string         `db:"return_reason"`
	ReturnRefundTo        string         `db:"return_refund_to"`
	ReturnRequestedAt     sql.NullTime   `db:"return_requested_at"`
	ReturnScheduledCredit bool           `db:"return_scheduled_credit"`
	ReturnCredited        bool           `db:"return_credited"`
}

func (r *orderRow) toOrder() *models.Order {
	order := &models.Order{
		ID:          r.ID,
		OrderNumber: r.OrderNumber,
		UserID:      r.UserID,
		TotalPrice:  r.TotalPrice,
		ShippingAddress: models.Address{
			Address: r.ShipAddress,
			City:    r.ShipCity,
			State:   r.ShipState,
			ZipCode: r.ShipZip,
		},
		PaymentMethod: models.PaymentMethod{
			Type:   r.PaymentType,
			Detail: r.PaymentDetail,
		},
		PaymentStatus:  r.PaymentStatus,
		Status:         r.Status,
		IdempotencyKey: r.IdempotencyKey.String,
		RefundMethod:   r.RefundMethod,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.CancelledAt.Valid {
		t := r.CancelledAt.Time
		order.CancelledAt = &t
	}
	if r.ReturnRequestedAt.Valid {
		order.ReturnInfo = &models.ReturnInfo{
			Reason:          r.ReturnReason,
			RefundTo:        r.ReturnRefundTo,
			RequestedAt:     r.ReturnRequestedAt.Time,
			ScheduledCredit: r.ReturnScheduledCredit,
			Credited:        r.ReturnCredited,
		}
	}
	return order
}

// CreateOrderTx writes the order, its frozen items, the wallet debit (for
// wallet payments) and the cart clear as a single database transaction. The
// returned transaction record is nil for non-wallet payments.
func (s *Store) CreateOrderTx(ctx context.Context, order *models.Order, debitWallet bool, debitDescription string) (*models.Transaction, error) {
	var debit *models.Transaction
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if debitWallet {
			var err error
			debit, err = debitWalletTx(ctx, tx, order.UserID, order.TotalPrice, debitDescription, order.OrderNumber)
			if err != nil {
				return err
			}
		}
		if err := insertOrderTx(ctx, tx, order); err != nil {
			return err
		}
		return clearCartTx(ctx, tx, order.UserID)
	})
	if err != nil {
		return nil, err
	}
	return debit, nil
}

func insertOrderTx(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	idemKey := sql.NullString{String: order.IdempotencyKey, Valid: order.IdempotencyKey != ""}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, order_number, user_id, total_price,
			ship_address, ship_city, ship_state, ship_zip,
			payment_type, payment_detail, payment_status, status,
			idempotency_key, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		order.ID, order.OrderNumber, order.UserID, order.TotalPrice,
		order.ShippingAddress.Address, order.ShippingAddress.City,
		order.ShippingAddress.State, order.ShippingAddress.ZipCode,
		order.PaymentMethod.Type, order.PaymentMethod.Detail,
		order.PaymentStatus, order.Status,
		idemKey, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		err := tx.GetContext(ctx, &item.ID, `
			INSERT INTO order_items (order_id, product_id, name, price, quantity, category, image)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			order.ID, item.ProductID, item.Name, item.Price, item.Quantity, item.Category, item.Image)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
		item.OrderID = order.ID
	}
	return nil
}

// GetOrderByID retrieves an order with its items
func (s *Store) GetOrderByID(ctx context.Context, orderID string) (*models.Order, error) {
	var row orderRow
	err := withRetry(ctx, func() error {
		return s.db.GetContext(ctx, &row, "SELECT * FROM orders WHERE id = $1", orderID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	order := row.toOrder()
	order.Items, err = s.getOrderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrderByNumber retrieves one of a user's orders by its human-readable
// number. Other users' orders are invisible through this lookup.
func (s *Store) GetOrderByNumber(ctx context.Context, userID, orderNumber string) (*models.Order, error) {
	var row orderRow
	err := withRetry(ctx, func() error {
		return s.db.GetContext(ctx, &row,
			"SELECT * FROM orders WHERE user_id = $1 AND order_number = $2", userID, orderNumber)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	order := row.toOrder()
	order.Items, err = s.getOrderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrderByIdempotencyKey retrieves an order by checkout idempotency key.
// A nil order with nil error means no attempt with this key exists yet.
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var row orderRow
	err := withRetry(ctx, func() error {
		return s.db.GetContext(ctx, &row, "SELECT * FROM orders WHERE idempotency_key = $1", key)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	order := row.toOrder()
	order.Items, err = s.getOrderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrdersByUserID retrieves a user's orders, newest first, items included.
func (s *Store) GetOrdersByUserID(ctx context.Context, userID string) ([]*models.Order, error) {
	var rows []orderRow
	err := withRetry(ctx, func() error {
		return s.db.SelectContext(ctx, &rows,
			"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []*models.Order{}, nil
	}

	ids := make([]string, len(rows))
	orders := make([]*models.Order, len(rows))
	byID := make(map[string]*models.Order, len(rows))
	for i := range rows {
		orders[i] = rows[i].toOrder()
		ids[i] = orders[i].ID
		byID[orders[i].ID] = orders[i]
	}

	query, args, err := sqlx.In("SELECT * FROM order_items WHERE order_id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var items []models.OrderItem
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, err
	}
	for _, item := range items {
		if order, ok := byID[item.OrderID]; ok {
			order.Items = append(order.Items, item)
		}
	}
	return orders, nil
}

func (s *Store) getOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := withRetry(ctx, func() error {
		return s.db.SelectContext(ctx, &items,
			"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	})
	return items, err
}

// UpdateOrderStatus writes back a derived status to the stored row
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	return err
}

// CancelOrderTx cancels an order and, when refund is set, credits the wallet
// in the same transaction. The status flip is a check-and-set: a concurrent
// or repeated cancellation finds zero rows and gets ErrInvalidTransition, so
// the refund can never be issued twice.
func (s *Store) CancelOrderTx(ctx context.Context, order *models.Order, refundMethod string, refund bool, refundDescription string) (*models.Transaction, error) {
	var credit *models.Transaction
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE orders
			SET status = $1, refund_method = $2, cancelled_at = NOW(), updated_at = NOW()
			WHERE id = $3 AND cancelled_at IS NULL AND return_requested_at IS NULL`,
			models.StatusCancelled, refundMethod, order.ID)
		if err != nil {
			return fmt.Errorf("failed to cancel order: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return models.ErrInvalidTransition
		}

		if refund {
			credit, err = creditWalletTx(ctx, tx, order.UserID, models.TransactionTypeRefund,
				order.TotalPrice, refundDescription, order.OrderNumber)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return credit, nil
}

// RequestReturnTx records a return request. At most one return per order:
// the write is gated on no prior request existing.
func (s *Store) RequestReturnTx(ctx context.Context, orderID, reason, refundTo string, requestedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, return_reason = $2, return_refund_to = $3,
		    return_requested_at = $4, return_scheduled_credit = $5, updated_at = NOW()
		WHERE id = $6 AND return_requested_at IS NULL AND cancelled_at IS NULL`,
		models.StatusReturnRequested, reason, refundTo,
		requestedAt, refundTo == models.RefundToWallet, orderID)
	if err != nil {
		return fmt.Errorf("failed to request return: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrInvalidTransition
	}
	return nil
}

// SettleReturnCreditTx issues the delayed return refund exactly once. The
// credited flag flip is the atomic check-and-set gate: of two concurrent
// reads past the threshold, only the one that flips the flag credits the
// wallet; the other sees zero rows and does nothing.
func (s *Store) SettleReturnCreditTx(ctx context.Context, order *models.Order, description string) (*models.Transaction, error) {
	var credit *models.Transaction
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE orders
			SET return_credited = TRUE, status = $1, updated_at = NOW()
			WHERE id = $2 AND return_scheduled_credit AND NOT return_credited`,
			models.StatusReturnCompleted, order.ID)
		if err != nil {
			return fmt.Errorf("failed to mark return credited: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			// Another read already settled it.
			return nil
		}

		credit, err = creditWalletTx(ctx, tx, order.UserID, models.TransactionTypeRefund,
			order.TotalPrice, description, order.OrderNumber)
		return err
	})
	if err != nil {
		return nil, err
	}
	return credit, nil
}

// RetryPaymentTx re-attempts payment for a failed order via wallet debit.
// The payment-status flip is check-and-set first so a concurrent retry
// cannot double-debit; the debit shares the transaction and rolls the flip
// back on insufficient balance.
func (s *Store) RetryPaymentTx(ctx context.Context, order *models.Order, description string) (*models.Transaction, error) {
	var debit *models.Transaction
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE orders
			SET payment_status = $1, payment_type = $2, payment_detail = '', updated_at = NOW()
			WHERE id = $3 AND payment_status = $4`,
			models.PaymentStatusCompleted, models.PaymentTypeWallet,
			order.ID, models.PaymentStatusFailed)
		if err != nil {
			return fmt.Errorf("failed to update payment status: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return models.ErrInvalidTransition
		}

		debit, err = debitWalletTx(ctx, tx, order.UserID, order.TotalPrice, description, order.OrderNumber)
		return err
	})
	if err != nil {
		return nil, err
	}
	return debit, nil
}

// LatestShippingAddress returns the address from the user's most recent
// order, or nil when the user has never ordered.
func (s *Store) LatestShippingAddress(ctx context.Context, userID string) (*models.Address, error) {
	var row struct {
		Address string `db:"ship_address"`
		City    string `db:"ship_city"`
		State   string `db:"ship_state"`
		Zip     string `db:"ship_zip"`
	}
	err := withRetry(ctx, func() error {
		return s.db.GetContext(ctx, &row, `
			SELECT ship_address, ship_city, ship_state, ship_zip
			FROM orders WHERE user_id = $1
			ORDER BY created_at DESC LIMIT 1`, userID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &models.Address{Address: row.Address, City: row.City, State: row.State, ZipCode: row.Zip}, nil
}
