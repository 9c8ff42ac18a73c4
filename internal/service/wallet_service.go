package service

import (
	"context"
	"fmt"

	"shopper-service/internal/broker"
	"shopper-service/internal/models"
	"shopper-service/internal/store"
	"shopper-service/internal/util"

	"go.uber.org/zap"
)

// WalletService owns the per-user spendable balance and its append-only
// ledger. Every mutation writes the transaction record and the balance
// projection as one database transaction, so the balance always equals the
// signed sum of the ledger.
type WalletService struct {
	store          *store.Store
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
}

// NewWalletService creates a new wallet service
func NewWalletService(store *store.Store, eventPublisher *broker.EventPublisher) *WalletService {
	return &WalletService{
		store:          store,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// Balance returns the user's current wallet
func (ws *WalletService) Balance(ctx context.Context, userID string) (*models.Wallet, error) {
	return ws.store.GetWallet(ctx, userID)
}

// History returns the user's ledger, newest first
func (ws *WalletService) History(ctx context.Context, userID string) ([]models.Transaction, error) {
	return ws.store.GetTransactions(ctx, userID)
}

// Debit removes funds from the wallet. Fails with ErrInsufficientBalance
// and no mutation when the balance does not cover the amount.
func (ws *WalletService) Debit(ctx context.Context, userID string, amount int64, description, orderRef string) (*models.Transaction, error) {
	ctx, span := util.StartSpan(ctx, "WalletService.Debit")
	defer span.End()

	if amount <= 0 {
		return nil, fmt.Errorf("debit amount must be positive, got %d", amount)
	}

	record, err := ws.store.DebitWallet(ctx, userID, amount, description, orderRef)
	if err != nil {
		return nil, err
	}

	util.WalletDebitsTotal.Inc()
	ws.logger.Info("Wallet debited",
		zap.String("user_id", userID),
		zap.Int64("amount", amount),
		zap.String("transaction_id", record.ID))

	ws.publishWalletEvent(ctx, models.EventTypeWalletDebited, record)
	return record, nil
}

// Credit adds funds to the wallet. Credits are never balance-checked.
func (ws *WalletService) Credit(ctx context.Context, userID string, amount int64, description, orderRef string) (*models.Transaction, error) {
	return ws.credit(ctx, userID, models.TransactionTypeCredit, amount, description, orderRef)
}

// Refund adds funds back to the wallet tagged as a refund
func (ws *WalletService) Refund(ctx context.Context, userID string, amount int64, description, orderRef string) (*models.Transaction, error) {
	return ws.credit(ctx, userID, models.TransactionTypeRefund, amount, description, orderRef)
}

// TopUp is a plain user-initiated credit
func (ws *WalletService) TopUp(ctx context.Context, userID string, amount int64) (*models.Transaction, error) {
	return ws.credit(ctx, userID, models.TransactionTypeCredit, amount, "Wallet top-up", "")
}

func (ws *WalletService) credit(ctx context.Context, userID, txType string, amount int64, description, orderRef string) (*models.Transaction, error) {
	ctx, span := util.StartSpan(ctx, "WalletService.Credit")
	defer span.End()

	if amount <= 0 {
		return nil, fmt.Errorf("credit amount must be positive, got %d", amount)
	}

	record, err := ws.store.CreditWallet(ctx, userID, txType, amount, description, orderRef)
	if err != nil {
		return nil, err
	}

	util.WalletCreditsTotal.WithLabelValues(txType).Inc()
	ws.logger.Info("Wallet credited",
		zap.String("user_id", userID),
		zap.String("type", txType),
		zap.Int64("amount", amount),
		zap.String("transaction_id", record.ID))

	ws.publishWalletEvent(ctx, models.EventTypeWalletCredited, record)
	return record, nil
}

func (ws *WalletService) publishWalletEvent(ctx context.Context, eventType string, record *models.Transaction) {
	if ws.eventPublisher == nil {
		return
	}

	balance := int64(0)
	if wallet, err := ws.store.GetWallet(ctx, record.UserID); err == nil {
		balance = wallet.Balance
	}

	event := &models.WalletEvent{
		BaseEvent:     broker.NewBaseEvent(eventType, record.UserID),
		TransactionID: record.ID,
		Amount:        record.Amount,
		Balance:       balance,
		OrderRef:      record.OrderRef,
	}
	if err := ws.eventPublisher.PublishWalletEvent(ctx, event); err != nil {
		ws.logger.Error("Failed to publish wallet event", zap.Error(err))
	}
}
