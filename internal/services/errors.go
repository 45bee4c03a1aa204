package services

import "errors"

// Business-rule errors. None of these are retried; endpoints map them to
// HTTP statuses, callers branch with errors.Is.
var (
	ErrLimitExceeded        = errors.New("monthly payment limit reached for organization")
	ErrActivePaymentExists  = errors.New("payer already has an active payment")
	ErrRetryExhausted       = errors.New("payment is not retryable")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrInvalidSignature     = errors.New("callback signature mismatch")
	ErrIncompleteCallback   = errors.New("success callback missing required metadata")
	ErrOrganizationNotFound = errors.New("organization not found")
)
