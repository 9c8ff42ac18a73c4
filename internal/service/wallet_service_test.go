package service

import (
	"context"
	"database/sql"
	"testing"

	"shopper-service/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletDebitRejectsNonPositiveAmount(t *testing.T) {
	st, _ := newMockStore(t)
	ws := NewWalletService(st, nil)

	_, err := ws.Debit(context.Background(), "user-1", 0, "nope", "")
	assert.Error(t, err)

	_, err = ws.Debit(context.Background(), "user-1", -100, "nope", "")
	assert.Error(t, err)
}

func TestWalletTopUp(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	expectWalletLock(mock, "user-1", 500)
	mock.ExpectExec("INSERT INTO wallet_transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE wallets SET balance").
		WithArgs(int64(1500), "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ws := NewWalletService(st, nil)
	record, err := ws.TopUp(context.Background(), "user-1", 1000)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeCredit, record.Type)
	assert.Equal(t, int64(1000), record.Signed())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletBalanceNewUser(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT \\* FROM wallets").
		WithArgs("new-user").
		WillReturnError(sql.ErrNoRows)

	ws := NewWalletService(st, nil)
	wallet, err := ws.Balance(context.Background(), "new-user")
	require.NoError(t, err)
	assert.Zero(t, wallet.Balance)
}
