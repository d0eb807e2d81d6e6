package domain

import "errors"

var (
	ErrUnauthenticated  = errors.New("authentication required")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNotFound         = errors.New("order not found")
	ErrForbidden        = errors.New("permission denied")
	ErrAlreadyCancelled = errors.New("order is already cancelled")
	ErrInvalidState     = errors.New("cannot cancel order that has been shipped or delivered")
	ErrPaymentFailed    = errors.New("refund failed, order was not cancelled")
	ErrInternal         = errors.New("internal server error")
)
