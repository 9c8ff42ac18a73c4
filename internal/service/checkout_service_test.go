package service

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"shopper-service/internal/models"
	"shopper-service/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*store.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return store.NewStoreWithDB(sqlx.NewDb(db, "sqlmock")), mock
}

func cartColumns() []string {
	return []string{"user_id", "product_id", "name", "price", "category", "image", "quantity", "added_at", "updated_at"}
}

func expectNoIdempotentOrder(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM orders WHERE idempotency_key = $1")).
		WillReturnError(sql.ErrNoRows)
}

func expectWalletLock(mock sqlmock.Sqlmock, userID string, balance int64) {
	mock.ExpectExec("INSERT INTO wallets").
		WithArgs(userID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT balance FROM wallets").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(balance))
}

func TestPlaceOrderWithWallet(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	expectNoIdempotentOrder(mock)
	mock.ExpectQuery("SELECT \\* FROM cart_items").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(cartColumns()).
			AddRow("user-1", int64(7), "Desk Lamp", int64(500), "home", "lamp.png", 2, now, now))

	mock.ExpectBegin()
	expectWalletLock(mock, "user-1", 2000)
	mock.ExpectExec("INSERT INTO wallet_transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE wallets SET balance").
		WithArgs(int64(1000), "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO orders").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO order_items").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectExec("DELETE FROM cart_items").
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	cs := NewCheckoutService(st, nil, nil, time.Second, nil)
	cs.now = func() time.Time { return now }

	order, err := cs.PlaceOrder(context.Background(), &PlaceOrderRequest{
		UserID:          "user-1",
		ShippingAddress: models.Address{Address: "12 Elm St"},
		PaymentMethod:   models.PaymentMethod{Type: models.PaymentTypeWallet},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), order.TotalPrice)
	assert.Equal(t, models.PaymentStatusCompleted, order.PaymentStatus)
	assert.Equal(t, models.StatusProcessing, order.Status)
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(500), order.Items[0].Price)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.NotEmpty(t, order.IdempotencyKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	st, mock := newMockStore(t)

	expectNoIdempotentOrder(mock)
	mock.ExpectQuery("SELECT \\* FROM cart_items").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(cartColumns()))

	cs := NewCheckoutService(st, nil, nil, time.Second, nil)
	_, err := cs.PlaceOrder(context.Background(), &PlaceOrderRequest{
		UserID:        "user-1",
		PaymentMethod: models.PaymentMethod{Type: models.PaymentTypeWallet},
	})
	assert.ErrorIs(t, err, models.ErrEmptyCart)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceOrderInsufficientBalance(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Now()

	expectNoIdempotentOrder(mock)
	mock.ExpectQuery("SELECT \\* FROM cart_items").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(cartColumns()).
			AddRow("user-1", int64(7), "Desk Lamp", int64(500), "home", "lamp.png", 2, now, now))

	mock.ExpectBegin()
	expectWalletLock(mock, "user-1", 300)
	mock.ExpectRollback()

	cs := NewCheckoutService(st, nil, nil, time.Second, nil)
	_, err := cs.PlaceOrder(context.Background(), &PlaceOrderRequest{
		UserID:        "user-1",
		PaymentMethod: models.PaymentMethod{Type: models.PaymentTypeWallet},
	})
	assert.ErrorIs(t, err, models.ErrInsufficientBalance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceOrderGatewayDeclineCreatesNothing(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Now()

	expectNoIdempotentOrder(mock)
	mock.ExpectQuery("SELECT \\* FROM cart_items").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(cartColumns()).
			AddRow("user-1", int64(7), "Desk Lamp", int64(500), "home", "lamp.png", 2, now, now))

	// Declining gateway: the checkout must stop before any write happens.
	gateway := NewSimulatedGateway(0.0, 0)
	cs := NewCheckoutService(st, nil, gateway, time.Second, nil)

	_, err := cs.PlaceOrder(context.Background(), &PlaceOrderRequest{
		UserID:        "user-1",
		PaymentMethod: models.PaymentMethod{Type: models.PaymentTypeCreditCard, Detail: "4242"},
	})
	assert.ErrorIs(t, err, models.ErrPaymentFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceOrderIdempotentReplay(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM orders WHERE idempotency_key = $1")).
		WithArgs("key-1").
		WillReturnRows(sqlmock.NewRows(orderColumns()).
			AddRow(orderRowValues("order-1", "ORD-1", "user-1", 1000, models.StatusProcessing, now)...))
	mock.ExpectQuery("SELECT \\* FROM order_items").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "name", "price", "quantity", "category", "image"}))

	cs := NewCheckoutService(st, nil, nil, time.Second, nil)
	order, err := cs.PlaceOrder(context.Background(), &PlaceOrderRequest{
		UserID:         "user-1",
		PaymentMethod:  models.PaymentMethod{Type: models.PaymentTypeWallet},
		IdempotencyKey: "key-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "order-1", order.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewOrderNumber(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	number := NewOrderNumber(now)
	assert.Regexp(t, `^ORD-1717236000000-[0-9a-f]{8}$`, number)

	// Two numbers minted at the same instant must still differ.
	assert.NotEqual(t, number, NewOrderNumber(now))
}

func TestCartTotal(t *testing.T) {
	items := []models.CartItem{
		{Price: 500, Quantity: 2},
		{Price: 250, Quantity: 1},
	}
	assert.Equal(t, int64(1250), CartTotal(items))
	assert.Zero(t, CartTotal(nil))
}
