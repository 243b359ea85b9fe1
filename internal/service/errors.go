package service

import (
	"errors"
	"fmt"

	"github.com/Fi44er/community_payments/internal/paystack"
)

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrProviderRejected    = errors.New("payment provider rejected the request")
	ErrSignatureInvalid    = errors.New("invalid webhook signature")
	ErrRetriesExhausted    = errors.New("maximum retry attempts reached, please contact support")
	ErrOneTimeNotRetryable = errors.New("one-time payments cannot be retried, please start a new payment")
	ErrAlreadyResolved     = errors.New("payment failure is already resolved")
	ErrNoAuthorization     = errors.New("no saved card authorization for recurring charges")
	ErrNoSubscription      = errors.New("no recurring payment subscription found")
)

// ProviderError carries the provider's gateway message verbatim.
type ProviderError struct {
	Message string
}

func (e *ProviderError) Error() string {
	return e.Message
}

func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderRejected
}

// providerError turns a provider API rejection into a ProviderError and wraps
// anything else (network, decoding) as an unexpected failure.
func providerError(action string, err error) error {
	var apiErr *paystack.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = fmt.Sprintf("%s failed", action)
		}
		return &ProviderError{Message: msg}
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

func gatewayMessage(data *paystack.TransactionData, fallback string) string {
	if data != nil && data.GatewayResponse != "" {
		return data.GatewayResponse
	}
	return fallback
}
