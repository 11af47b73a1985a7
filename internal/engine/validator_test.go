package engine

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/triage-ai/palisade/services/order_strategy/internal/domain"
	"github.com/triage-ai/palisade/services/order_strategy/internal/policy"
)

func TestValidator_AcceptsValidContext(t *testing.T) {
	v := NewDefaultValidator(policy.Default())
	if err := v.Validate(baseContext()); err != nil {
		t.Fatalf("expected valid context, got %v", err)
	}
}

func TestValidator_AcceptsEmptyOrders(t *testing.T) {
	v := NewDefaultValidator(policy.Default())
	c := baseContext()
	c.Orders = []domain.Order{}
	if err := v.Validate(c); err != nil {
		t.Fatalf("empty order list must be valid, got %v", err)
	}
}

func TestValidator_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *domain.CustomerContext)
		want   domain.Kind
	}{
		{"unknown action", func(c *domain.CustomerContext) { c.Action = "RETURN_ITEM" }, domain.KindInvalidCustomerAction},
		{"empty action", func(c *domain.CustomerContext) { c.Action = "" }, domain.KindInvalidCustomerAction},
		{"blank customer id", func(c *domain.CustomerContext) { c.CustomerID = "       " }, domain.KindInvalidCustomerID},
		{"short customer id", func(c *domain.CustomerContext) { c.CustomerID = "ab" }, domain.KindInvalidCustomerID},
		{"long customer id", func(c *domain.CustomerContext) { c.CustomerID = strings.Repeat("a", 37) }, domain.KindInvalidCustomerID},
		{"customer id bad char", func(c *domain.CustomerContext) { c.CustomerID = "cust 0001" }, domain.KindInvalidCustomerID},
		{"customer id non ascii", func(c *domain.CustomerContext) { c.CustomerID = "cüst-0001" }, domain.KindInvalidCustomerID},
		{"lowercase country", func(c *domain.CustomerContext) { c.Country = "de" }, domain.KindInvalidCountryFormat},
		{"three letter country", func(c *domain.CustomerContext) { c.Country = "DEU" }, domain.KindInvalidCountryFormat},
		{"empty country", func(c *domain.CustomerContext) { c.Country = "" }, domain.KindInvalidCountryFormat},
		{"digit country", func(c *domain.CustomerContext) { c.Country = "D1" }, domain.KindInvalidCountryFormat},
		{"unsupported country", func(c *domain.CustomerContext) { c.Country = "ES" }, domain.KindUnsupportedCountry},
		{"attempts not integer", func(c *domain.CustomerContext) { c.RecentFailedAIAttempts = domain.NotAnInteger(`"two"`) }, domain.KindInvalidRecentFailedAIAttemptsType},
		{"attempts missing", func(c *domain.CustomerContext) { c.RecentFailedAIAttempts = domain.AttemptCount{} }, domain.KindInvalidRecentFailedAIAttemptsType},
		{"attempts negative", func(c *domain.CustomerContext) { c.RecentFailedAIAttempts = domain.Attempts(-1) }, domain.KindInvalidRecentFailedAIAttempts},
		{"attempts above max", func(c *domain.CustomerContext) { c.RecentFailedAIAttempts = domain.Attempts(6) }, domain.KindInvalidRecentFailedAIAttempts},
		{"confidence negative", func(c *domain.CustomerContext) { c.AIConfidence = -0.01 }, domain.KindInvalidAIConfidence},
		{"confidence above one", func(c *domain.CustomerContext) { c.AIConfidence = 1.01 }, domain.KindInvalidAIConfidence},
		{"confidence NaN", func(c *domain.CustomerContext) { c.AIConfidence = math.NaN() }, domain.KindInvalidAIConfidence},
		{"confidence Inf", func(c *domain.CustomerContext) { c.AIConfidence = math.Inf(1) }, domain.KindInvalidAIConfidence},
		{"unknown channel", func(c *domain.CustomerContext) { c.Channel = "EMAIL" }, domain.KindInvalidChannel},
		{"orders absent", func(c *domain.CustomerContext) { c.Orders = nil }, domain.KindMissingOrders},
		{"order id short", func(c *domain.CustomerContext) { c.Orders[0].OrderID = "ORD-1" }, domain.KindInvalidOrderID},
		{"order id long", func(c *domain.CustomerContext) { c.Orders[0].OrderID = strings.Repeat("9", 33) }, domain.KindInvalidOrderID},
		{"order id bad char", func(c *domain.CustomerContext) { c.Orders[0].OrderID = "ORD/00000001" }, domain.KindInvalidOrderID},
		{"order amount negative", func(c *domain.CustomerContext) { c.Orders[0].TotalAmount = -1 }, domain.KindInvalidOrderAmount},
		{"order amount too large", func(c *domain.CustomerContext) { c.Orders[0].TotalAmount = 1_000_000.01 }, domain.KindInvalidOrderAmount},
		{"order amount NaN", func(c *domain.CustomerContext) { c.Orders[0].TotalAmount = math.NaN() }, domain.KindInvalidOrderAmount},
		{"item count negative", func(c *domain.CustomerContext) { c.Orders[0].ItemCount = -1 }, domain.KindInvalidOrderItemCount},
		{"item count too large", func(c *domain.CustomerContext) { c.Orders[0].ItemCount = 1000 }, domain.KindInvalidOrderItemCount},
		{"order status unknown value", func(c *domain.CustomerContext) { c.Orders[0].Status = "LOST" }, domain.KindInvalidOrderStatus},
	}

	v := NewDefaultValidator(policy.Default())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := baseContext()
			tt.mutate(&c)
			err := v.Validate(c)
			kind, ok := domain.KindOf(err)
			if !ok {
				t.Fatalf("expected validation error, got %v", err)
			}
			if kind != tt.want {
				t.Fatalf("expected %s, got %s (%v)", tt.want, kind, err)
			}
		})
	}
}

func TestValidator_Boundaries(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *domain.CustomerContext)
	}{
		{"customer id min len", func(c *domain.CustomerContext) { c.CustomerID = "abc_12" }},
		{"customer id max len", func(c *domain.CustomerContext) { c.CustomerID = strings.Repeat("a", 36) }},
		{"order id min len", func(c *domain.CustomerContext) { c.Orders[0].OrderID = "ORD-0001" }},
		{"order id max len", func(c *domain.CustomerContext) { c.Orders[0].OrderID = strings.Repeat("9", 32) }},
		{"attempts at max", func(c *domain.CustomerContext) { c.RecentFailedAIAttempts = domain.Attempts(5) }},
		{"confidence zero", func(c *domain.CustomerContext) { c.AIConfidence = 0 }},
		{"confidence one", func(c *domain.CustomerContext) { c.AIConfidence = 1 }},
		{"amount zero", func(c *domain.CustomerContext) { c.Orders[0].TotalAmount = 0 }},
		{"amount max", func(c *domain.CustomerContext) { c.Orders[0].TotalAmount = 1_000_000 }},
		{"item count zero", func(c *domain.CustomerContext) { c.Orders[0].ItemCount = 0 }},
		{"item count max", func(c *domain.CustomerContext) { c.Orders[0].ItemCount = 999 }},
	}

	v := NewDefaultValidator(policy.Default())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := baseContext()
			tt.mutate(&c)
			if err := v.Validate(c); err != nil {
				t.Fatalf("expected boundary value to pass, got %v", err)
			}
		})
	}
}

func TestValidator_FirstViolationWins(t *testing.T) {
	v := NewDefaultValidator(policy.Default())

	c := baseContext()
	c.CustomerID = "ab"
	c.Country = "zz"
	c.Orders = nil
	if kind, _ := domain.KindOf(v.Validate(c)); kind != domain.KindInvalidCustomerID {
		t.Fatalf("expected customer id to be checked first, got %s", kind)
	}

	c = baseContext()
	c.Country = "es"
	if kind, _ := domain.KindOf(v.Validate(c)); kind != domain.KindInvalidCountryFormat {
		t.Fatalf("expected format check before support check, got %s", kind)
	}

	c = baseContext()
	c.RecentFailedAIAttempts = domain.NotAnInteger("2.5")
	c.AIConfidence = 7
	if kind, _ := domain.KindOf(v.Validate(c)); kind != domain.KindInvalidRecentFailedAIAttemptsType {
		t.Fatalf("expected attempts type before confidence, got %s", kind)
	}
}

func TestValidator_ReportsFirstInvalidOrderIndex(t *testing.T) {
	v := NewDefaultValidator(policy.Default())
	c := baseContext()
	c.Orders = []domain.Order{
		order("ORD-00000001", domain.StatusShipped),
		order("ORD-00000002", domain.StatusShipped),
		order("bad", domain.StatusShipped),
		{OrderID: "ORD-00000004", TotalAmount: -5, Status: domain.StatusShipped},
	}

	err := v.Validate(c)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if ve.Kind != domain.KindInvalidOrderID {
		t.Fatalf("expected %s, got %s", domain.KindInvalidOrderID, ve.Kind)
	}
	if !strings.Contains(ve.Message, "order 2") {
		t.Fatalf("expected index 2 in message, got %q", ve.Message)
	}
}

func TestValidator_UsesConfiguredBounds(t *testing.T) {
	doc := policy.ToDocument(policy.Default())
	doc.SupportedCountries = []string{"ES"}
	doc.MaxFailedAIAttempts = 10
	cfg, err := doc.Build()
	if err != nil {
		t.Fatal(err)
	}
	v := NewDefaultValidator(cfg)

	c := baseContext()
	c.Country = "ES"
	c.RecentFailedAIAttempts = domain.Attempts(9)
	if err := v.Validate(c); err != nil {
		t.Fatalf("expected custom policy to accept, got %v", err)
	}

	c.Country = "DE"
	if kind, _ := domain.KindOf(v.Validate(c)); kind != domain.KindUnsupportedCountry {
		t.Fatalf("expected %s, got %s", domain.KindUnsupportedCountry, kind)
	}
}
