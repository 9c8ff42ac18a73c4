package models

import "time"

// Event types
const (
	EventTypeOrderPlaced     = "ORDER_PLACED"
	EventTypeOrderCancelled  = "ORDER_CANCELLED"
	EventTypeReturnRequested = "RETURN_REQUESTED"
	EventTypeReturnSettled   = "RETURN_SETTLED"
	EventTypeWalletDebited   = "WALLET_DEBITED"
	EventTypeWalletCredited  = "WALLET_CREDITED"
	EventTypePaymentRetried  = "PAYMENT_RETRIED"
)

// BaseEvent contains common fields for all events. Events are
// observational: consumers fan them out to clients but never advance order
// state, which is derived from elapsed time on read.
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published when checkout creates an order
type OrderPlacedEvent struct {
	BaseEvent
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	TotalPrice  int64  `json:"total_price"`
	PaymentType string `json:"payment_type"`
}

// OrderCancelledEvent published when an order is cancelled
type OrderCancelledEvent struct {
	BaseEvent
	OrderID      string `json:"order_id"`
	OrderNumber  string `json:"order_number"`
	RefundMethod string `json:"refund_method"`
	Refunded     bool   `json:"refunded"`
	Amount       int64  `json:"amount"`
}

// ReturnRequestedEvent published when a delivered order enters the return flow
type ReturnRequestedEvent struct {
	BaseEvent
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Reason      string `json:"reason"`
	RefundTo    string `json:"refund_to"`
}

// ReturnSettledEvent published when the delayed return credit lands
type ReturnSettledEvent struct {
	BaseEvent
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Amount      int64  `json:"amount"`
}

// WalletEvent published for every ledger mutation
type WalletEvent struct {
	BaseEvent
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
	Balance       int64  `json:"balance"`
	OrderRef      string `json:"order_ref,omitempty"`
}

// PaymentRetriedEvent published when a failed payment is re-attempted
type PaymentRetriedEvent struct {
	BaseEvent
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Amount      int64  `json:"amount"`
	Success     bool   `json:"success"`
}
