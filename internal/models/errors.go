package models

import "errors"

// Business-rule failures. These are surfaced verbatim to the caller and
// never retried automatically; transient store errors are handled at the
// data-access boundary instead.
var (
	ErrEmptyCart           = errors.New("cart is empty")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrPaymentFailed       = errors.New("payment failed")
	ErrProductNotFound     = errors.New("product not found")
	ErrInvalidTransition   = errors.New("invalid order state transition")
	ErrOrderNotFound       = errors.New("order not found")
	ErrUnauthorized        = errors.New("order belongs to another user")
)
