package engine

import (
	"math"
	"strings"

	"github.com/triage-ai/palisade/services/order_strategy/internal/domain"
	"github.com/triage-ai/palisade/services/order_strategy/internal/policy"
)

const (
	maxOrderAmount    = 1_000_000.0
	maxOrderItemCount = 999
)

// DefaultValidator checks a context against the policy bounds. Checks run
// in a fixed order and the first failure is returned.
type DefaultValidator struct {
	cfg policy.Config
}

func NewDefaultValidator(cfg policy.Config) *DefaultValidator {
	return &DefaultValidator{cfg: cfg}
}

func (v *DefaultValidator) Validate(c domain.CustomerContext) error {
	cfg := v.cfg

	if !c.Action.Valid() {
		return domain.Invalid(domain.KindInvalidCustomerAction,
			"unsupported action %q", c.Action)
	}

	if !validID(c.CustomerID, cfg.MinCustomerIDLen, cfg.MaxCustomerIDLen) {
		return domain.Invalid(domain.KindInvalidCustomerID,
			"customer_id %q must be %d..%d chars of [A-Za-z0-9_-]",
			c.CustomerID, cfg.MinCustomerIDLen, cfg.MaxCustomerIDLen)
	}

	// Format before support: "us" is a format error, "ES" an unsupported one.
	if !validCountryFormat(c.Country, cfg.CountryCodeLen) {
		return domain.Invalid(domain.KindInvalidCountryFormat,
			"country %q must be %d uppercase letters", c.Country, cfg.CountryCodeLen)
	}
	if !cfg.SupportedCountries.Contains(c.Country) {
		return domain.Invalid(domain.KindUnsupportedCountry,
			"country %q is not supported, supported: %s",
			c.Country, strings.Join(cfg.SupportedCountries.Sorted(), ","))
	}

	attempts, ok := c.RecentFailedAIAttempts.Int()
	if !ok {
		return domain.Invalid(domain.KindInvalidRecentFailedAIAttemptsType,
			"recent_failed_ai_attempts must be an integer, got %s", c.RecentFailedAIAttempts)
	}
	if attempts < cfg.MinFailedAIAttempts || attempts > cfg.MaxFailedAIAttempts {
		return domain.Invalid(domain.KindInvalidRecentFailedAIAttempts,
			"recent_failed_ai_attempts %d outside %d..%d",
			attempts, cfg.MinFailedAIAttempts, cfg.MaxFailedAIAttempts)
	}

	if !finiteIn(c.AIConfidence, 0, 1) {
		return domain.Invalid(domain.KindInvalidAIConfidence,
			"ai_confidence %v must be a finite number in 0..1", c.AIConfidence)
	}

	if !c.Channel.Valid() {
		return domain.Invalid(domain.KindInvalidChannel,
			"unsupported channel %q", c.Channel)
	}

	if c.Orders == nil {
		return domain.Invalid(domain.KindMissingOrders, "orders must be a list")
	}

	for i, o := range c.Orders {
		if err := v.validateOrder(i, o); err != nil {
			return err
		}
	}
	return nil
}

func (v *DefaultValidator) validateOrder(idx int, o domain.Order) error {
	cfg := v.cfg
	if !validID(o.OrderID, cfg.MinOrderIDLen, cfg.MaxOrderIDLen) {
		return domain.Invalid(domain.KindInvalidOrderID,
			"order %d: order_id %q must be %d..%d chars of [A-Za-z0-9_-]",
			idx, o.OrderID, cfg.MinOrderIDLen, cfg.MaxOrderIDLen)
	}
	if !finiteIn(o.TotalAmount, 0, maxOrderAmount) {
		return domain.Invalid(domain.KindInvalidOrderAmount,
			"order %d: total_amount %v must be a finite number in 0..1000000", idx, o.TotalAmount)
	}
	if o.ItemCount < 0 || o.ItemCount > maxOrderItemCount {
		return domain.Invalid(domain.KindInvalidOrderItemCount,
			"order %d: item_count %d outside 0..%d", idx, o.ItemCount, maxOrderItemCount)
	}
	if !o.Status.Valid() {
		return domain.Invalid(domain.KindInvalidOrderStatus,
			"order %d: unsupported status %q", idx, o.Status)
	}
	return nil
}

func validID(s string, minLen, maxLen int) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	if len(s) < minLen || len(s) > maxLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIDChar(s[i]) {
			return false
		}
	}
	return true
}

func isIDChar(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '-' || b == '_':
		return true
	}
	return false
}

func validCountryFormat(code string, n int) bool {
	if len(code) != n {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return false
		}
	}
	return true
}

func finiteIn(x, lo, hi float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0) && x >= lo && x <= hi
}
