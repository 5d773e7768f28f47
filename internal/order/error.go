package order

import "errors"

var (
	ErrInvalidOrder       = errors.New("invalid order")
	ErrOrderNotFound      = errors.New("order not found")
	ErrWrongPaymentMethod = errors.New("order does not belong to this gateway")
	ErrNoSession          = errors.New("order has no payment session")
	ErrAlreadyPaid        = errors.New("order is already paid")
)
