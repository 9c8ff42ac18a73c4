package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"shopper-service/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStoreWithDB(sqlx.NewDb(db, "sqlmock")), mock
}

func expectWalletLock(mock sqlmock.Sqlmock, userID string, balance int64) {
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING")).
		WithArgs(userID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT balance FROM wallets WHERE user_id = $1 FOR UPDATE")).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(balance))
}

func expectLedgerAppend(mock sqlmock.Sqlmock, userID string, newBalance int64) {
	mock.ExpectExec("INSERT INTO wallet_transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE wallets SET balance = $1, updated_at = NOW() WHERE user_id = $2")).
		WithArgs(newBalance, userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestDebitWallet(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	expectWalletLock(mock, "user-1", 2000)
	expectLedgerAppend(mock, "user-1", 1000)
	mock.ExpectCommit()

	record, err := store.DebitWallet(context.Background(), "user-1", 1000, "Order ORD-1", "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeDebit, record.Type)
	assert.Equal(t, int64(1000), record.Amount)
	assert.Equal(t, int64(-1000), record.Signed())
	assert.NotEmpty(t, record.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitWalletInsufficientBalance(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	expectWalletLock(mock, "user-1", 500)
	mock.ExpectRollback()

	record, err := store.DebitWallet(context.Background(), "user-1", 1000, "Order ORD-1", "ORD-1")
	assert.ErrorIs(t, err, models.ErrInsufficientBalance)
	assert.Nil(t, record)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditWalletRefund(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	expectWalletLock(mock, "user-1", 250)
	expectLedgerAppend(mock, "user-1", 1250)
	mock.ExpectCommit()

	record, err := store.CreditWallet(context.Background(), "user-1", models.TransactionTypeRefund,
		1000, "Refund for Order ORD-1", "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeRefund, record.Type)
	assert.Equal(t, int64(1000), record.Signed())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetWalletMissingRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT \\* FROM wallets").
		WithArgs("new-user").
		WillReturnError(sql.ErrNoRows)

	wallet, err := store.GetWallet(context.Background(), "new-user")
	require.NoError(t, err)
	assert.Equal(t, "new-user", wallet.UserID)
	assert.Zero(t, wallet.Balance)
}

func TestAddCartItemAccumulates(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO cart_items").
		WithArgs("user-1", int64(7), "Desk Lamp", int64(500), "home", "lamp.png", 2).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.AddCartItem(context.Background(), &models.CartItem{
		UserID:    "user-1",
		ProductID: 7,
		Name:      "Desk Lamp",
		Price:     500,
		Category:  "home",
		Image:     "lamp.png",
		Quantity:  2,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetCartItemQuantityZeroRemoves(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2")).
		WithArgs("user-1", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.SetCartItemQuantity(context.Background(), "user-1", 7, 0)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelOrderTxWithRefund(t *testing.T) {
	store, mock := newMockStore(t)
	order := &models.Order{
		ID:          "order-1",
		OrderNumber: "ORD-1",
		UserID:      "user-1",
		TotalPrice:  1500,
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE orders").
		WithArgs(models.StatusCancelled, models.RefundToWallet, "order-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectWalletLock(mock, "user-1", 0)
	expectLedgerAppend(mock, "user-1", 1500)
	mock.ExpectCommit()

	credit, err := store.CancelOrderTx(context.Background(), order, models.RefundToWallet, true, "Refund for Order ORD-1")
	require.NoError(t, err)
	require.NotNil(t, credit)
	assert.Equal(t, models.TransactionTypeRefund, credit.Type)
	assert.Equal(t, int64(1500), credit.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelOrderTxAlreadyCancelled(t *testing.T) {
	store, mock := newMockStore(t)
	order := &models.Order{ID: "order-1", OrderNumber: "ORD-1", UserID: "user-1", TotalPrice: 1500}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE orders").
		WithArgs(models.StatusCancelled, models.RefundToWallet, "order-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	credit, err := store.CancelOrderTx(context.Background(), order, models.RefundToWallet, true, "Refund for Order ORD-1")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Nil(t, credit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettleReturnCreditTxExactlyOnce(t *testing.T) {
	store, mock := newMockStore(t)
	order := &models.Order{ID: "order-1", OrderNumber: "ORD-1", UserID: "user-1", TotalPrice: 900}

	// First settlement flips the credited flag and credits the wallet.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE orders").
		WithArgs(models.StatusReturnCompleted, "order-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectWalletLock(mock, "user-1", 100)
	expectLedgerAppend(mock, "user-1", 1000)
	mock.ExpectCommit()

	credit, err := store.SettleReturnCreditTx(context.Background(), order, "Return refund")
	require.NoError(t, err)
	require.NotNil(t, credit)
	assert.Equal(t, int64(900), credit.Amount)

	// A racing second settlement finds zero rows and credits nothing.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE orders").
		WithArgs(models.StatusReturnCompleted, "order-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	credit, err = store.SettleReturnCreditTx(context.Background(), order, "Return refund")
	require.NoError(t, err)
	assert.Nil(t, credit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetryPaymentTxNotFailed(t *testing.T) {
	store, mock := newMockStore(t)
	order := &models.Order{ID: "order-1", OrderNumber: "ORD-1", UserID: "user-1", TotalPrice: 700}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE orders").
		WithArgs(models.PaymentStatusCompleted, models.PaymentTypeWallet, "order-1", models.PaymentStatusFailed).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	debit, err := store.RetryPaymentTx(context.Background(), order, "Retry payment")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Nil(t, debit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestReturnTxSecondRequestRejected(t *testing.T) {
	store, mock := newMockStore(t)
	requestedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE orders").
		WithArgs(models.StatusReturnRequested, "damaged", models.RefundToWallet, requestedAt, true, "order-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.RequestReturnTx(context.Background(), "order-1", "damaged", models.RefundToWallet, requestedAt)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}
