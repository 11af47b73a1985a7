package engine

import (
	"github.com/triage-ai/palisade/services/order_strategy/internal/domain"
	"github.com/triage-ai/palisade/services/order_strategy/internal/policy"
)

// Rule names reported in Outcome.Rule.
const (
	RuleAuthGate               = "auth_gate"
	RuleMandatoryHuman         = "mandatory_human"
	RuleOpenDispute            = "open_dispute"
	RuleRequestRefund          = "request_refund"
	RuleCancelOrder            = "cancel_order"
	RuleTrackDeliveredVIPVoice = "track_delivered_vip_voice"
	RuleTrackDeliveredVIPChat  = "track_delivered_vip_webchat"
	RuleTrackDelivered         = "track_delivered"
	RuleTrackInTransitChat     = "track_in_transit_webchat"
	RuleTrackInTransitVoice    = "track_in_transit_voice"
	RuleTrackCancelledUSVoice  = "track_cancelled_us_voice"
	RuleFallback               = "fallback"

	// RuleNoOrders is reported by the facade, not the table.
	RuleNoOrders = "no_orders"
)

// rule is one row of the decision table. effect is empty when the rule
// implies no side effect; otherwise it is tied to the selected order.
type rule struct {
	name     string
	when     func(c *domain.CustomerContext, o *domain.Order, cfg *policy.Config) bool
	strategy domain.Strategy
	effect   domain.SideEffectType
}

// DefaultRulesEngine evaluates the decision table top to bottom; the first
// matching row wins. The last row always matches.
type DefaultRulesEngine struct {
	rules []rule
}

func NewDefaultRulesEngine() *DefaultRulesEngine {
	return &DefaultRulesEngine{rules: defaultRules()}
}

// RuleNames returns the table's rule names in evaluation order.
func (e *DefaultRulesEngine) RuleNames() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.name
	}
	return names
}

func (e *DefaultRulesEngine) Evaluate(c domain.CustomerContext, selected domain.Order, cfg policy.Config) Outcome {
	for _, r := range e.rules {
		if r.when(&c, &selected, &cfg) {
			return r.outcome(selected)
		}
	}
	return Outcome{Strategy: domain.StrategyAISimple, SideEffects: []domain.SideEffect{}, Rule: RuleFallback}
}

func (r rule) outcome(o domain.Order) Outcome {
	effects := []domain.SideEffect{}
	if r.effect != "" {
		effects = append(effects, domain.SideEffect{Type: r.effect, OrderID: o.OrderID})
	}
	return Outcome{Strategy: r.strategy, SideEffects: effects, Rule: r.name}
}

// defaultRules is the production decision table. Precedence:
//  1. Authentication gate
//  2. Mandatory human (regulated high-risk order, repeated AI failures, low confidence)
//  3. Action-specific handling
//  4. TRACK_ORDER routing by status, VIP flag and channel
//  5. Fallback: AI_SIMPLE
//
// Reordering rows changes observable decisions.
func defaultRules() []rule {
	return []rule{
		{
			name: RuleAuthGate,
			when: func(c *domain.CustomerContext, _ *domain.Order, cfg *policy.Config) bool {
				return !c.Authenticated &&
					(c.Channel == domain.ChannelVoice || cfg.StrictAuthCountries.Contains(c.Country))
			},
			strategy: domain.StrategyAuthRequired,
			effect:   domain.EffectRequireAuthStepUp,
		},
		{
			name: RuleMandatoryHuman,
			when: func(c *domain.CustomerContext, o *domain.Order, cfg *policy.Config) bool {
				attempts, _ := c.RecentFailedAIAttempts.Int()
				return (cfg.RegulatedCountries.Contains(c.Country) && isHighRisk(*o, *cfg)) ||
					attempts >= cfg.ManyRecentAIFailuresThreshold ||
					c.AIConfidence < cfg.MinAIConfidence
			},
			strategy: domain.StrategyMandatoryHuman,
			effect:   domain.EffectEscalateToAgentQueue,
		},
		{
			name:     RuleOpenDispute,
			when:     actionIs(domain.ActionOpenDispute),
			strategy: domain.StrategyAIWithHumanFallback,
			effect:   domain.EffectCreateDisputeCase,
		},
		{
			name:     RuleRequestRefund,
			when:     actionIs(domain.ActionRequestRefund),
			strategy: domain.StrategyAIWithHumanFallback,
			effect:   domain.EffectCreateRefundCase,
		},
		{
			name:     RuleCancelOrder,
			when:     actionIs(domain.ActionCancelOrder),
			strategy: domain.StrategyAIWithHumanFallback,
		},
		{
			name: RuleTrackDeliveredVIPVoice,
			when: tracking(func(c *domain.CustomerContext, o *domain.Order) bool {
				return o.Status == domain.StatusDelivered && c.IsVIP && c.Channel == domain.ChannelVoice
			}),
			strategy: domain.StrategyAIWithHumanFallback,
		},
		{
			name: RuleTrackDeliveredVIPChat,
			when: tracking(func(c *domain.CustomerContext, o *domain.Order) bool {
				return o.Status == domain.StatusDelivered && c.IsVIP && c.Channel == domain.ChannelWebchat
			}),
			strategy: domain.StrategyAIDetailed,
		},
		{
			name: RuleTrackDelivered,
			when: tracking(func(c *domain.CustomerContext, o *domain.Order) bool {
				return o.Status == domain.StatusDelivered && !c.IsVIP
			}),
			strategy: domain.StrategyAISimple,
		},
		{
			name: RuleTrackInTransitChat,
			when: tracking(func(c *domain.CustomerContext, o *domain.Order) bool {
				return inTransit(o.Status) && c.Channel == domain.ChannelWebchat
			}),
			strategy: domain.StrategyAIDetailed,
		},
		{
			name: RuleTrackInTransitVoice,
			when: tracking(func(c *domain.CustomerContext, o *domain.Order) bool {
				return inTransit(o.Status) && c.Channel == domain.ChannelVoice
			}),
			strategy: domain.StrategyAISimple,
		},
		{
			name: RuleTrackCancelledUSVoice,
			when: tracking(func(c *domain.CustomerContext, o *domain.Order) bool {
				return o.Status == domain.StatusCancelled && c.Country == "US" && c.Channel == domain.ChannelVoice
			}),
			strategy: domain.StrategyAIWithHumanFallback,
		},
		{
			name:     RuleFallback,
			when:     func(*domain.CustomerContext, *domain.Order, *policy.Config) bool { return true },
			strategy: domain.StrategyAISimple,
		},
	}
}

func actionIs(a domain.Action) func(*domain.CustomerContext, *domain.Order, *policy.Config) bool {
	return func(c *domain.CustomerContext, _ *domain.Order, _ *policy.Config) bool {
		return c.Action == a
	}
}

func tracking(pred func(c *domain.CustomerContext, o *domain.Order) bool) func(*domain.CustomerContext, *domain.Order, *policy.Config) bool {
	return func(c *domain.CustomerContext, o *domain.Order, _ *policy.Config) bool {
		return c.Action == domain.ActionTrackOrder && pred(c, o)
	}
}

// inTransit covers statuses where the parcel may still be moving.
func inTransit(s domain.OrderStatus) bool {
	return s == domain.StatusShipped || s == domain.StatusUnknown
}
