package service

import (
	"context"
	"fmt"
	"time"

	"shopper-service/internal/broker"
	"shopper-service/internal/models"
	"shopper-service/internal/store"
	"shopper-service/internal/util"

	"go.uber.org/zap"
)

// OrderService reads orders and drives them backward: cancellation and the
// return/refund flow. Forward progression is not event driven; the current
// status is derived from elapsed time on every read and lazily written
// back, so no background scheduler exists.
type OrderService struct {
	store          *store.Store
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
	now            func() time.Time
}

// NewOrderService creates a new order service
func NewOrderService(store *store.Store, eventPublisher *broker.EventPublisher) *OrderService {
	return &OrderService{
		store:          store,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
		now:            time.Now,
	}
}

// GetOrder returns one of the user's orders with its status refreshed.
// Reading is what advances time-derived state, so a first read after a long
// gap may move the order several steps at once.
func (os *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := os.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, models.ErrUnauthorized
	}
	return os.refresh(ctx, order), nil
}

// GetOrderByNumber resolves a human-readable order number within the user's
// own orders only.
func (os *OrderService) GetOrderByNumber(ctx context.Context, userID, orderNumber string) (*models.Order, error) {
	order, err := os.store.GetOrderByNumber(ctx, userID, orderNumber)
	if err != nil {
		return nil, err
	}
	return os.refresh(ctx, order), nil
}

// ListOrders returns the user's orders, newest first, statuses refreshed.
func (os *OrderService) ListOrders(ctx context.Context, userID string) ([]*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	orders, err := os.store.GetOrdersByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i, order := range orders {
		orders[i] = os.refresh(ctx, order)
	}
	return orders, nil
}

// Cancel drives an order to cancelled. Allowed from processing, confirmed
// and shipped only. Wallet-paid orders always refund to the wallet; other
// orders refund to the wallet immediately when chosen, or are handed to the
// external 5-7 day channel (no ledger mutation) otherwise.
func (os *OrderService) Cancel(ctx context.Context, userID, orderID, refundDestination string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Cancel")
	defer span.End()

	order, err := os.GetOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if !models.Cancellable(order.Status) {
		return nil, models.ErrInvalidTransition
	}

	// Wallet payments never had an external source to return to.
	if order.PaymentMethod.Type == models.PaymentTypeWallet {
		refundDestination = models.RefundToWallet
	}
	if refundDestination != models.RefundToWallet && refundDestination != models.RefundToOriginalSource {
		refundDestination = models.RefundToOriginalSource
	}

	refund := refundDestination == models.RefundToWallet &&
		order.PaymentStatus == models.PaymentStatusCompleted

	description := fmt.Sprintf("Refund for Order %s", order.OrderNumber)
	credit, err := os.store.CancelOrderTx(ctx, order, refundDestination, refund, description)
	if err != nil {
		return nil, err
	}

	now := os.now().UTC()
	order.Status = models.StatusCancelled
	order.RefundMethod = refundDestination
	order.CancelledAt = &now
	order.UpdatedAt = now

	util.OrdersCancelledTotal.Inc()
	if credit != nil {
		util.WalletCreditsTotal.WithLabelValues(models.TransactionTypeRefund).Inc()
	}
	os.logger.Info("Order cancelled",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("refund_method", refundDestination),
		zap.Bool("refunded", credit != nil))

	os.publishCancelled(ctx, order, credit)
	return order, nil
}

// RequestReturn opens the return flow on a delivered order. At most one
// return per order; the stored request freezes the happy-path clock.
func (os *OrderService) RequestReturn(ctx context.Context, userID, orderID, reason, refundTo string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.RequestReturn")
	defer span.End()

	order, err := os.GetOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if !models.Returnable(order.Status) || order.ReturnInfo != nil {
		return nil, models.ErrInvalidTransition
	}
	if reason == "" {
		return nil, fmt.Errorf("return reason is required")
	}
	if refundTo != models.RefundToWallet && refundTo != models.RefundToOriginalSource {
		refundTo = models.RefundToWallet
	}

	requestedAt := os.now().UTC()
	if err := os.store.RequestReturnTx(ctx, order.ID, reason, refundTo, requestedAt); err != nil {
		return nil, err
	}

	order.Status = models.StatusReturnRequested
	order.UpdatedAt = requestedAt
	order.ReturnInfo = &models.ReturnInfo{
		Reason:          reason,
		RefundTo:        refundTo,
		RequestedAt:     requestedAt,
		ScheduledCredit: refundTo == models.RefundToWallet,
	}

	util.ReturnsRequestedTotal.Inc()
	os.logger.Info("Return requested",
		zap.String("order_id", order.ID),
		zap.String("reason", reason),
		zap.String("refund_to", refundTo))

	if os.eventPublisher != nil {
		event := &models.ReturnRequestedEvent{
			BaseEvent:   broker.NewBaseEvent(models.EventTypeReturnRequested, order.UserID),
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Reason:      reason,
			RefundTo:    refundTo,
		}
		if err := os.eventPublisher.PublishReturnRequested(ctx, event); err != nil {
			os.logger.Error("Failed to publish return requested event", zap.Error(err))
		}
	}
	return order, nil
}

// refresh applies everything a read is responsible for: settling a matured
// return credit and writing back the time-derived status. Failures here
// never fail the read; the next read retries.
func (os *OrderService) refresh(ctx context.Context, order *models.Order) *models.Order {
	now := os.now()

	if models.ReturnCreditDue(order.ReturnInfo, now) {
		os.settleReturn(ctx, order)
	}

	if models.StatusFrozen(order.Status) || order.PaymentStatus == models.PaymentStatusFailed {
		return order
	}

	derived := models.DeriveStatus(order.CreatedAt, now)
	if derived != order.Status {
		if err := os.store.UpdateOrderStatus(ctx, order.ID, derived); err != nil {
			os.logger.Error("Failed to write back derived status",
				zap.String("order_id", order.ID),
				zap.Error(err))
			return order
		}
		order.Status = derived
		order.UpdatedAt = now.UTC()
	}
	return order
}

// settleReturn issues the delayed return refund. The store gates the credit
// behind an atomic check-and-set on the credited flag, so concurrent reads
// past the threshold cannot double-credit.
func (os *OrderService) settleReturn(ctx context.Context, order *models.Order) {
	description := fmt.Sprintf("Return refund – %s", order.OrderNumber)
	credit, err := os.store.SettleReturnCreditTx(ctx, order, description)
	if err != nil {
		os.logger.Error("Failed to settle return credit",
			zap.String("order_id", order.ID),
			zap.Error(err))
		return
	}

	order.ReturnInfo.Credited = true
	order.Status = models.StatusReturnCompleted
	if credit == nil {
		// A concurrent read settled it first.
		return
	}

	util.ReturnsSettledTotal.Inc()
	util.WalletCreditsTotal.WithLabelValues(models.TransactionTypeRefund).Inc()
	os.logger.Info("Return credit settled",
		zap.String("order_id", order.ID),
		zap.String("transaction_id", credit.ID),
		zap.Int64("amount", order.TotalPrice))

	if os.eventPublisher != nil {
		event := &models.ReturnSettledEvent{
			BaseEvent:   broker.NewBaseEvent(models.EventTypeReturnSettled, order.UserID),
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Amount:      order.TotalPrice,
		}
		if err := os.eventPublisher.PublishReturnSettled(ctx, event); err != nil {
			os.logger.Error("Failed to publish return settled event", zap.Error(err))
		}
	}
}

func (os *OrderService) publishCancelled(ctx context.Context, order *models.Order, credit *models.Transaction) {
	if os.eventPublisher == nil {
		return
	}
	event := &models.OrderCancelledEvent{
		BaseEvent:    broker.NewBaseEvent(models.EventTypeOrderCancelled, order.UserID),
		OrderID:      order.ID,
		OrderNumber:  order.OrderNumber,
		RefundMethod: order.RefundMethod,
		Refunded:     credit != nil,
		Amount:       order.TotalPrice,
	}
	if err := os.eventPublisher.PublishOrderCancelled(ctx, event); err != nil {
		os.logger.Error("Failed to publish order cancelled event", zap.Error(err))
	}
	if credit != nil {
		walletEvent := &models.WalletEvent{
			BaseEvent:     broker.NewBaseEvent(models.EventTypeWalletCredited, order.UserID),
			TransactionID: credit.ID,
			Amount:        credit.Amount,
			OrderRef:      order.OrderNumber,
		}
		if wallet, err := os.store.GetWallet(ctx, order.UserID); err == nil {
			walletEvent.Balance = wallet.Balance
		}
		if err := os.eventPublisher.PublishWalletEvent(ctx, walletEvent); err != nil {
			os.logger.Error("Failed to publish wallet event", zap.Error(err))
		}
	}
}
