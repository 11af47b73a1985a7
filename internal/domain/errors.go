package domain

import (
	"errors"
	"fmt"
)

// Kind is the closed set of context validation failures. The string value is
// the error code surfaced to callers.
type Kind string

const (
	KindInvalidCustomerAction             Kind = "INVALID_CUSTOMER_ACTION"
	KindInvalidCustomerID                 Kind = "INVALID_CUSTOMER_ID"
	KindInvalidCountryFormat              Kind = "INVALID_COUNTRY_FORMAT"
	KindUnsupportedCountry                Kind = "UNSUPPORTED_COUNTRY"
	KindInvalidRecentFailedAIAttemptsType Kind = "INVALID_RECENT_FAILED_AI_ATTEMPTS_TYPE"
	KindInvalidRecentFailedAIAttempts     Kind = "INVALID_RECENT_FAILED_AI_ATTEMPTS"
	KindInvalidAIConfidence               Kind = "INVALID_AI_CONFIDENCE"
	KindInvalidChannel                    Kind = "INVALID_CHANNEL"
	KindMissingOrders                     Kind = "MISSING_ORDERS"
	KindInvalidOrderID                    Kind = "INVALID_ORDER_ID"
	KindInvalidOrderAmount                Kind = "INVALID_ORDER_AMOUNT"
	KindInvalidOrderItemCount             Kind = "INVALID_ORDER_ITEM_COUNT"
	KindInvalidOrderStatus                Kind = "INVALID_ORDER_STATUS"
)

// ValidationError reports the first context rule violated. It is never
// retryable: the caller must fix the request.
type ValidationError struct {
	Kind    Kind
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Invalid builds a ValidationError with a formatted message.
func Invalid(kind Kind, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the validation kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Kind, true
	}
	return "", false
}

// ErrUpstreamUnavailable is the transient, input-independent outage of the
// upstream order platform. Callers may retry after backoff.
var ErrUpstreamUnavailable = errors.New("upstream order platform unavailable")

// StrategyError is any other failure raised inside the decision pipeline.
type StrategyError struct {
	Op  string
	Err error
}

func (e *StrategyError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *StrategyError) Unwrap() error { return e.Err }
