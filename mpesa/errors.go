package mpesa

import "errors"

var (
	// ErrInvalidPhoneFormat is returned before any network call is made.
	ErrInvalidPhoneFormat = errors.New("invalid phone format")

	// ErrTokenAcquisitionFailed wraps failures of the OAuth credential
	// exchange. A failed exchange never caches a partial token.
	ErrTokenAcquisitionFailed = errors.New("token acquisition failed")

	// ErrPushPaymentRejected wraps a non-2xx or provider-level error from
	// the STK push endpoint. No local state is mutated when it occurs.
	ErrPushPaymentRejected = errors.New("push payment rejected")

	// ErrInvalidCorrelation marks a callback whose correlation value could
	// not be resolved to a payment id. The webhook still ACKs the provider.
	ErrInvalidCorrelation = errors.New("invalid callback correlation")

	// ErrUnreconciledCallback marks a successful callback for a payment
	// this system does not know. Logged and ACKed, never retried.
	ErrUnreconciledCallback = errors.New("callback matches no known payment")
)
