package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shopper-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// GetWallet retrieves a user's wallet, creating an empty one on first use.
func (s *Store) GetWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := withRetry(ctx, func() error {
		return s.db.GetContext(ctx, &wallet, "SELECT * FROM wallets WHERE user_id = $1", userID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return &models.Wallet{UserID: userID, Balance: 0}, nil
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// GetTransactions retrieves a user's ledger history, newest first.
func (s *Store) GetTransactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := withRetry(ctx, func() error {
		return s.db.SelectContext(ctx, &txs,
			"SELECT * FROM wallet_transactions WHERE user_id = $1 ORDER BY created_at DESC, id DESC",
			userID)
	})
	return txs, err
}

// DebitWallet appends a debit transaction and decreases the balance as one
// transaction. Fails with ErrInsufficientBalance without any mutation when
// the balance does not cover the amount.
func (s *Store) DebitWallet(ctx context.Context, userID string, amount int64, description, orderRef string) (*models.Transaction, error) {
	var record *models.Transaction
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		record, err = debitWalletTx(ctx, tx, userID, amount, description, orderRef)
		return err
	})
	return record, err
}

// CreditWallet appends a credit or refund transaction and increases the
// balance as one transaction. Credits are not balance-checked.
func (s *Store) CreditWallet(ctx context.Context, userID, txType string, amount int64, description, orderRef string) (*models.Transaction, error) {
	var record *models.Transaction
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		record, err = creditWalletTx(ctx, tx, userID, txType, amount, description, orderRef)
		return err
	})
	return record, err
}

// inTx runs fn inside a database transaction.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// lockWalletBalance row-locks a user's wallet and returns the current
// balance, creating the row on first use. Per-user wallet mutations are
// serialized on this lock.
func lockWalletBalance(ctx context.Context, tx *sqlx.Tx, userID string) (int64, error) {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING", userID)
	if err != nil {
		return 0, fmt.Errorf("failed to ensure wallet: %w", err)
	}

	var balance int64
	err = tx.GetContext(ctx, &balance,
		"SELECT balance FROM wallets WHERE user_id = $1 FOR UPDATE", userID)
	if err != nil {
		return 0, fmt.Errorf("failed to lock wallet: %w", err)
	}
	return balance, nil
}

func appendTransaction(ctx context.Context, tx *sqlx.Tx, record *models.Transaction, newBalance int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_transactions (id, user_id, type, amount, description, order_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID, record.UserID, record.Type, record.Amount,
		record.Description, record.OrderRef, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE wallets SET balance = $1, updated_at = NOW() WHERE user_id = $2",
		newBalance, record.UserID)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return nil
}

func debitWalletTx(ctx context.Context, tx *sqlx.Tx, userID string, amount int64, description, orderRef string) (*models.Transaction, error) {
	balance, err := lockWalletBalance(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if amount > balance {
		return nil, models.ErrInsufficientBalance
	}

	record := &models.Transaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Type:        models.TransactionTypeDebit,
		Amount:      amount,
		Description: description,
		OrderRef:    orderRef,
		CreatedAt:   time.Now().UTC(),
	}
	if err := appendTransaction(ctx, tx, record, balance-amount); err != nil {
		return nil, err
	}
	return record, nil
}

func creditWalletTx(ctx context.Context, tx *sqlx.Tx, userID, txType string, amount int64, description, orderRef string) (*models.Transaction, error) {
	balance, err := lockWalletBalance(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	record := &models.Transaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Type:        txType,
		Amount:      amount,
		Description: description,
		OrderRef:    orderRef,
		CreatedAt:   time.Now().UTC(),
	}
	if err := appendTransaction(ctx, tx, record, balance+amount); err != nil {
		return nil, err
	}
	return record, nil
}
