package domain

import "errors"

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrRefundNotCancelled = errors.New("a refunded order must be cancelled")
)
