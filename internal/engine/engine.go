package engine

import (
	"github.com/triage-ai/palisade/services/order_strategy/internal/domain"
	"github.com/triage-ai/palisade/services/order_strategy/internal/policy"
)

// Validator rejects malformed or out-of-policy contexts before any business
// logic runs. It returns a *domain.ValidationError for the first violation.
type Validator interface {
	Validate(c domain.CustomerContext) error
}

// RiskScorer assigns a relative risk score to a single order.
type RiskScorer interface {
	Score(o domain.Order, cfg policy.Config) int
}

// OrderSelector picks the order the rules are evaluated against.
type OrderSelector interface {
	Select(orders []domain.Order, scorer RiskScorer, cfg policy.Config) (domain.Order, error)
}

// RulesEngine maps a validated context and its selected order to an outcome.
// Implementations must be total: every input yields an Outcome.
type RulesEngine interface {
	Evaluate(c domain.CustomerContext, selected domain.Order, cfg policy.Config) Outcome
}

// HealthChecker is the pre-flight check against the upstream order platform.
// It returns an error wrapping domain.ErrUpstreamUnavailable when the
// decision must be aborted.
type HealthChecker interface {
	EnsureAvailable() error
}

// Outcome is a rule engine result.
type Outcome struct {
	Strategy    domain.Strategy
	SideEffects []domain.SideEffect
	// Rule names the table entry that matched.
	Rule string
}
