package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopper-service/internal/broker"
	"shopper-service/internal/models"
	"shopper-service/internal/redisclient"
	"shopper-service/internal/store"
	"shopper-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	checkoutLockTTL   = 30 * time.Second
	idempotencyKeyTTL = 24 * time.Hour
)

// CheckoutService converts a cart into an order. Wallet-paid checkouts
// write the debit, the order, and the cart clear as one database
// transaction; gateway-paid checkouts charge first and only then write.
type CheckoutService struct {
	store          *store.Store
	redis          *redisclient.Client
	gateway        PaymentGateway
	gatewayTimeout time.Duration
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
	now            func() time.Time
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	store *store.Store,
	redis *redisclient.Client,
	gateway PaymentGateway,
	gatewayTimeout time.Duration,
	eventPublisher *broker.EventPublisher,
) *CheckoutService {
	return &CheckoutService{
		store:          store,
		redis:          redis,
		gateway:        gateway,
		gatewayTimeout: gatewayTimeout,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
		now:            time.Now,
	}
}

// PlaceOrderRequest carries everything checkout needs. IdempotencyKey may
// be supplied by the client so a retried request cannot double-debit; one
// is generated when absent.
type PlaceOrderRequest struct {
	UserID          string               `json:"user_id"`
	ShippingAddress models.Address       `json:"shipping_address"`
	PaymentMethod   models.PaymentMethod `json:"payment_method"`
	IdempotencyKey  string               `json:"idempotency_key,omitempty"`
}

// PlaceOrder runs the checkout sequence: debit (wallet) or charge
// (gateway), create the frozen order snapshot, clear the cart.
func (cs *CheckoutService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.PlaceOrder")
	defer span.End()

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	}

	existing, err := cs.store.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if existing != nil {
		cs.logger.Info("Duplicate checkout attempt",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.String("order_id", existing.ID))
		return existing, nil
	}

	items, err := cs.store.GetCartItems(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(items) == 0 {
		util.OrdersFailedTotal.WithLabelValues("empty_cart").Inc()
		return nil, models.ErrEmptyCart
	}
	total := CartTotal(items)

	if unlock := cs.lockUser(ctx, req.UserID); unlock != nil {
		defer unlock()
	}

	order := cs.buildOrder(req, items, total)

	payWithWallet := req.PaymentMethod.Type == models.PaymentTypeWallet
	if !payWithWallet {
		chargeCtx, cancel := context.WithTimeout(ctx, cs.gatewayTimeout)
		err := cs.gateway.Charge(chargeCtx, total)
		cancel()
		if err != nil {
			util.OrdersFailedTotal.WithLabelValues("payment_failed").Inc()
			cs.logger.Warn("Gateway charge failed",
				zap.String("user_id", req.UserID),
				zap.Int64("amount", total),
				zap.Error(err))
			return nil, err
		}
	}

	debitDescription := fmt.Sprintf("Order payment – %d items", len(items))
	debit, err := cs.store.CreateOrderTx(ctx, order, payWithWallet, debitDescription)
	if err != nil {
		if errors.Is(err, models.ErrInsufficientBalance) {
			util.OrdersFailedTotal.WithLabelValues("insufficient_balance").Inc()
			return nil, err
		}
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if cs.redis != nil {
		if err := cs.redis.SetIdempotencyKey(ctx, req.IdempotencyKey, order.ID, idempotencyKeyTTL); err != nil {
			cs.logger.Warn("Failed to cache idempotency key", zap.Error(err))
		}
	}

	util.OrdersPlacedTotal.WithLabelValues(order.PaymentMethod.Type).Inc()
	if payWithWallet {
		util.WalletDebitsTotal.Inc()
	}
	cs.logger.Info("Order placed",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", order.UserID),
		zap.Int64("total_price", order.TotalPrice))

	cs.publishOrderPlaced(ctx, order, debit)
	return order, nil
}

// RetryPayment re-attempts payment for an order whose payment previously
// failed. Only the wallet debit is re-run; items, address and total stay as
// frozen at the original checkout.
func (cs *CheckoutService) RetryPayment(ctx context.Context, userID, orderID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.RetryPayment")
	defer span.End()

	order, err := cs.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, models.ErrUnauthorized
	}
	if order.PaymentStatus != models.PaymentStatusFailed {
		return nil, models.ErrInvalidTransition
	}

	description := fmt.Sprintf("Payment for Order %s", order.OrderNumber)
	debit, err := cs.store.RetryPaymentTx(ctx, order, description)
	if err != nil {
		return nil, err
	}

	order.PaymentStatus = models.PaymentStatusCompleted
	order.PaymentMethod = models.PaymentMethod{Type: models.PaymentTypeWallet}
	util.WalletDebitsTotal.Inc()
	cs.logger.Info("Payment retried",
		zap.String("order_id", order.ID),
		zap.String("transaction_id", debit.ID))

	if cs.eventPublisher != nil {
		event := &models.PaymentRetriedEvent{
			BaseEvent:   broker.NewBaseEvent(models.EventTypePaymentRetried, order.UserID),
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Amount:      order.TotalPrice,
			Success:     true,
		}
		if err := cs.eventPublisher.PublishPaymentRetried(ctx, event); err != nil {
			cs.logger.Error("Failed to publish payment retried event", zap.Error(err))
		}
	}
	return order, nil
}

func (cs *CheckoutService) buildOrder(req *PlaceOrderRequest, items []models.CartItem, total int64) *models.Order {
	now := cs.now().UTC()
	orderID := uuid.New().String()

	frozen := make([]models.OrderItem, len(items))
	for i, item := range items {
		frozen[i] = models.OrderItem{
			OrderID:   orderID,
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Category:  item.Category,
			Image:     item.Image,
		}
	}

	return &models.Order{
		ID:              orderID,
		OrderNumber:     NewOrderNumber(now),
		UserID:          req.UserID,
		Items:           frozen,
		TotalPrice:      total,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   models.PaymentStatusCompleted,
		Status:          models.StatusProcessing,
		IdempotencyKey:  req.IdempotencyKey,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// NewOrderNumber builds a human-readable, time-derived, globally unique
// order number.
func NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), uuid.New().String()[:8])
}

// lockUser takes the per-user checkout lock. Redis being unavailable
// degrades to the database row locks alone rather than failing checkout.
func (cs *CheckoutService) lockUser(ctx context.Context, userID string) func() {
	if cs.redis == nil {
		return nil
	}
	acquired, err := cs.redis.AcquireUserLock(ctx, userID, checkoutLockTTL)
	if err != nil {
		cs.logger.Warn("Checkout lock unavailable, relying on DB locks",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil
	}
	if !acquired {
		// Another checkout for this user holds the lock; the DB transaction
		// still serializes the money movement.
		return nil
	}
	return func() {
		if err := cs.redis.ReleaseUserLock(context.Background(), userID); err != nil {
			cs.logger.Warn("Failed to release checkout lock", zap.Error(err))
		}
	}
}

func (cs *CheckoutService) publishOrderPlaced(ctx context.Context, order *models.Order, debit *models.Transaction) {
	if cs.eventPublisher == nil {
		return
	}

	event := &models.OrderPlacedEvent{
		BaseEvent:   broker.NewBaseEvent(models.EventTypeOrderPlaced, order.UserID),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		TotalPrice:  order.TotalPrice,
		PaymentType: order.PaymentMethod.Type,
	}
	if err := cs.eventPublisher.PublishOrderPlaced(ctx, event); err != nil {
		cs.logger.Error("Failed to publish order placed event", zap.Error(err))
	}

	if debit != nil {
		walletEvent := &models.WalletEvent{
			BaseEvent:     broker.NewBaseEvent(models.EventTypeWalletDebited, order.UserID),
			TransactionID: debit.ID,
			Amount:        debit.Amount,
			OrderRef:      order.OrderNumber,
		}
		if wallet, err := cs.store.GetWallet(ctx, order.UserID); err == nil {
			walletEvent.Balance = wallet.Balance
		}
		if err := cs.eventPublisher.PublishWalletEvent(ctx, walletEvent); err != nil {
			cs.logger.Error("Failed to publish wallet event", zap.Error(err))
		}
	}
}
