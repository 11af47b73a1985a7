package caller

import (
	"encoding/json"

	"github.com/triage-ai/palisade/services/order_strategy/internal/domain"
)

// Outcome is what the calling layer acts on: one of the six strategies or
// one of three failure buckets.
type Outcome string

const (
	OutcomeAISimple            Outcome = "AI_SIMPLE"
	OutcomeAIDetailed          Outcome = "AI_DETAILED"
	OutcomeAIWithHumanFallback Outcome = "AI_WITH_HUMAN_FALLBACK"
	OutcomeMandatoryHuman      Outcome = "MANDATORY_HUMAN"
	OutcomeNoOrdersFound       Outcome = "NO_ORDERS_FOUND"
	OutcomeAuthRequired        Outcome = "AUTH_REQUIRED"

	OutcomeBadRequest          Outcome = "BAD_REQUEST"
	OutcomeUpstreamUnavailable Outcome = "UPSTREAM_UNAVAILABLE"
	OutcomeInternalError       Outcome = "INTERNAL_ERROR"
)

var strategyOutcomes = map[domain.Strategy]Outcome{
	domain.StrategyAISimple:            OutcomeAISimple,
	domain.StrategyAIDetailed:          OutcomeAIDetailed,
	domain.StrategyAIWithHumanFallback: OutcomeAIWithHumanFallback,
	domain.StrategyMandatoryHuman:      OutcomeMandatoryHuman,
	domain.StrategyNoOrdersFound:       OutcomeNoOrdersFound,
	domain.StrategyAuthRequired:        OutcomeAuthRequired,
}

// IsStrategy reports whether o is one of the six strategy outcomes.
func (o Outcome) IsStrategy() bool {
	for _, s := range strategyOutcomes {
		if s == o {
			return true
		}
	}
	return false
}

// Error codes that are not validation kinds. Validation failures use the
// domain.Kind string as their code.
const (
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeDecisionTimeout     = "DECISION_TIMEOUT"
	CodeStrategyError       = "TRACKING_STRATEGY_ERROR"
	CodeUnknownStrategy     = "UNKNOWN_STRATEGY"
	CodeUnexpected          = "UNEXPECTED_ERROR"
	CodeMalformedPayload    = "MALFORMED_PAYLOAD"
)

// SideEffect is the serialised form of a domain.SideEffect. OrderID is nil
// for effects not tied to an order.
type SideEffect struct {
	EffectType string  `json:"effect_type"`
	OrderID    *string `json:"order_id"`
}

// DecisionResponse is the caller-safe result of a decision. Exactly one of
// Strategy and ErrorCode is set.
type DecisionResponse struct {
	Outcome         Outcome      `json:"outcome"`
	Strategy        *string      `json:"strategy"`
	SelectedOrderID *string      `json:"selected_order_id"`
	Reasons         []string     `json:"reasons"`
	SideEffects     []SideEffect `json:"side_effects"`
	ErrorCode       *string      `json:"error_code"`
	ErrorMessage    *string      `json:"error_message"`
}

// Succeeded reports whether a strategy was decided.
func (r DecisionResponse) Succeeded() bool {
	return r.ErrorCode == nil
}

// MarshalJSON always writes side_effects (possibly empty) on success and
// omits the success-only fields on failure.
func (r DecisionResponse) MarshalJSON() ([]byte, error) {
	if !r.Succeeded() {
		return json.Marshal(struct {
			Outcome      Outcome `json:"outcome"`
			Strategy     *string `json:"strategy"`
			ErrorCode    *string `json:"error_code"`
			ErrorMessage *string `json:"error_message"`
		}{r.Outcome, nil, r.ErrorCode, r.ErrorMessage})
	}

	reasons, effects := r.Reasons, r.SideEffects
	if reasons == nil {
		reasons = []string{}
	}
	if effects == nil {
		effects = []SideEffect{}
	}
	return json.Marshal(struct {
		Outcome         Outcome      `json:"outcome"`
		Strategy        *string      `json:"strategy"`
		SelectedOrderID *string      `json:"selected_order_id"`
		Reasons         []string     `json:"reasons"`
		SideEffects     []SideEffect `json:"side_effects"`
		ErrorCode       *string      `json:"error_code"`
		ErrorMessage    *string      `json:"error_message"`
	}{r.Outcome, r.Strategy, r.SelectedOrderID, reasons, effects, nil, nil})
}

func success(d domain.Decision, outcome Outcome) DecisionResponse {
	effects := make([]SideEffect, 0, len(d.SideEffects))
	for _, se := range d.SideEffects {
		effects = append(effects, SideEffect{EffectType: string(se.Type), OrderID: optional(se.OrderID)})
	}
	reasons := []string{}
	if d.Rule != "" {
		reasons = append(reasons, d.Rule)
	}
	strategy := string(d.Strategy)
	return DecisionResponse{
		Outcome:         outcome,
		Strategy:        &strategy,
		SelectedOrderID: optional(d.SelectedOrderID),
		Reasons:         reasons,
		SideEffects:     effects,
	}
}

func failure(outcome Outcome, code, message string) DecisionResponse {
	return DecisionResponse{
		Outcome:      outcome,
		ErrorCode:    &code,
		ErrorMessage: &message,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
