package models

import "time"

// Product represents a catalog entry. The catalog is read-only for this
// service; prices on orders are frozen at purchase time and never re-read
// from here.
type Product struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Price       int64     `db:"price" json:"price"`
	Category    string    `db:"category" json:"category"`
	Description string    `db:"description" json:"description"`
	Image       string    `db:"image" json:"image"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CartItem is one line of a user's cart, keyed by (user, product).
type CartItem struct {
	UserID    string    `db:"user_id" json:"user_id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	Name      string    `db:"name" json:"name"`
	Price     int64     `db:"price" json:"price"`
	Category  string    `db:"category" json:"category"`
	Image     string    `db:"image" json:"image"`
	Quantity  int       `db:"quantity" json:"quantity"`
	AddedAt   time.Time `db:"added_at" json:"added_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Wallet is the cached projection of a user's ledger. The transaction
// history is the source of truth; Balance must always equal the signed sum
// of transactions since wallet creation.
type Wallet struct {
	UserID    string    `db:"user_id" json:"user_id"`
	Balance   int64     `db:"balance" json:"balance"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction types
const (
	TransactionTypeCredit = "credit"
	TransactionTypeDebit  = "debit"
	TransactionTypeRefund = "refund"
)

// Transaction is one append-only ledger entry. Amount is always positive;
// the type carries the sign (credit/refund add, debit subtracts).
type Transaction struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	Type        string    `db:"type" json:"type"`
	Amount      int64     `db:"amount" json:"amount"`
	Description string    `db:"description" json:"description"`
	OrderRef    string    `db:"order_ref" json:"order_ref,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Signed returns the amount with the sign implied by the transaction type.
func (t Transaction) Signed() int64 {
	if t.Type == TransactionTypeDebit {
		return -t.Amount
	}
	return t.Amount
}

// Payment method types
const (
	PaymentTypeWallet     = "wallet"
	PaymentTypeCreditCard = "credit_card"
	PaymentTypeUPI        = "upi"
)

// Payment statuses
const (
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusPending   = "pending"
)

// Refund destinations
const (
	RefundToWallet         = "wallet"
	RefundToOriginalSource = "original_source"
)

// Address is a shipping address frozen onto an order at checkout.
type Address struct {
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
}

// PaymentMethod describes how an order was paid. Detail holds the card
// last-4 or UPI id depending on the type; empty for wallet.
type PaymentMethod struct {
	Type   string `json:"type"`
	Detail string `json:"detail,omitempty"`
}

// OrderItem is a frozen copy of a cart line at purchase time.
type OrderItem struct {
	ID        int64  `db:"id" json:"id"`
	OrderID   string `db:"order_id" json:"order_id"`
	ProductID int64  `db:"product_id" json:"product_id"`
	Name      string `db:"name" json:"name"`
	Price     int64  `db:"price" json:"price"`
	Quantity  int    `db:"quantity" json:"quantity"`
	Category  string `db:"category" json:"category"`
	Image     string `db:"image" json:"image"`
}

// ReturnInfo records a post-delivery return request. Credited flips exactly
// once, when the scheduled wallet credit settles.
type ReturnInfo struct {
	Reason          string    `json:"reason"`
	RefundTo        string    `json:"refund_to"`
	RequestedAt     time.Time `json:"requested_at"`
	ScheduledCredit bool      `json:"scheduled_credit"`
	Credited        bool      `json:"credited"`
}

// Order is an immutable snapshot of a checkout plus a mutable status
// timeline. Items and TotalPrice never change after creation.
type Order struct {
	ID              string        `json:"id"`
	OrderNumber     string        `json:"order_number"`
	UserID          string        `json:"user_id"`
	Items           []OrderItem   `json:"items"`
	TotalPrice      int64         `json:"total_price"`
	ShippingAddress Address       `json:"shipping_address"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
	PaymentStatus   string        `json:"payment_status"`
	Status          string        `json:"status"`
	IdempotencyKey  string        `json:"idempotency_key,omitempty"`
	RefundMethod    string        `json:"refund_method,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	CancelledAt     *time.Time    `json:"cancelled_at,omitempty"`
	ReturnInfo      *ReturnInfo   `json:"return_info,omitempty"`
}
