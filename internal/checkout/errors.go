package checkout

import "errors"

var (
	ErrIncompleteShipping = errors.New("shipping address is incomplete")
	ErrUnsupportedMethod  = errors.New("unsupported payment method")
	ErrNoPaymentMethod    = errors.New("no payment method selected")
	ErrEmptyCart          = errors.New("cart is empty, nothing to place")
)
