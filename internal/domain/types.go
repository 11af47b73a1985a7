package domain

// Channel is the contact channel a request arrived on.
type Channel string

const (
	ChannelVoice   Channel = "VOICE"
	ChannelWebchat Channel = "WEBCHAT"
)

// Valid reports whether c is a recognised channel.
func (c Channel) Valid() bool {
	return c == ChannelVoice || c == ChannelWebchat
}

// Action is the customer-initiated intent.
type Action string

const (
	ActionTrackOrder    Action = "TRACK_ORDER"
	ActionRequestRefund Action = "REQUEST_REFUND"
	ActionCancelOrder   Action = "CANCEL_ORDER"
	ActionOpenDispute   Action = "OPEN_DISPUTE"
)

// Valid reports whether a is one of the four recognised actions.
func (a Action) Valid() bool {
	switch a {
	case ActionTrackOrder, ActionRequestRefund, ActionCancelOrder, ActionOpenDispute:
		return true
	}
	return false
}

// OrderStatus is the delivery status of an order.
type OrderStatus string

const (
	StatusShipped   OrderStatus = "SHIPPED"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusCancelled OrderStatus = "CANCELLED"
	StatusUnknown   OrderStatus = "UNKNOWN"
)

// Valid reports whether s is a recognised delivery status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusShipped, StatusDelivered, StatusCancelled, StatusUnknown:
		return true
	}
	return false
}

// Strategy is the automation tier chosen to handle a request.
type Strategy string

const (
	StrategyAISimple            Strategy = "AI_SIMPLE"
	StrategyAIDetailed          Strategy = "AI_DETAILED"
	StrategyAIWithHumanFallback Strategy = "AI_WITH_HUMAN_FALLBACK"
	StrategyMandatoryHuman      Strategy = "MANDATORY_HUMAN"
	StrategyNoOrdersFound       Strategy = "NO_ORDERS_FOUND"
	StrategyAuthRequired        Strategy = "AUTH_REQUIRED"
)

// SideEffectType names an implied downstream action.
type SideEffectType string

const (
	EffectCreateRefundCase     SideEffectType = "CREATE_REFUND_CASE"
	EffectCreateDisputeCase    SideEffectType = "CREATE_DISPUTE_CASE"
	EffectEscalateToAgentQueue SideEffectType = "ESCALATE_TO_AGENT_QUEUE"
	EffectRequireAuthStepUp    SideEffectType = "REQUIRE_AUTH_STEP_UP"
)

// SideEffect is an implied downstream action, optionally tied to an order.
// An empty OrderID means the effect is not order-specific.
type SideEffect struct {
	Type    SideEffectType `json:"effect_type"`
	OrderID string         `json:"order_id,omitempty"`
}

// Order is owned by the caller and read-only to the engine.
type Order struct {
	OrderID            string      `json:"order_id"`
	TotalAmount        float64     `json:"total_amount"`
	ItemCount          int         `json:"item_count"`
	Status             OrderStatus `json:"status"`
	IsFlaggedFraudRisk bool        `json:"is_flagged_fraud_risk"`
	HasOpenDispute     bool        `json:"has_open_dispute"`
}

// CustomerContext is the per-request input to a decision.
// A nil Orders slice means the list was absent; an empty one means the
// customer has no orders.
type CustomerContext struct {
	Action                 Action       `json:"action"`
	CustomerID             string       `json:"customer_id"`
	Country                string       `json:"country"`
	IsVIP                  bool         `json:"is_vip"`
	Authenticated          bool         `json:"authenticated"`
	Channel                Channel      `json:"channel"`
	Orders                 []Order      `json:"orders"`
	RecentFailedAIAttempts AttemptCount `json:"recent_failed_ai_attempts"`
	AIConfidence           float64      `json:"ai_confidence"`
}

// Decision is the facade's successful result.
type Decision struct {
	Strategy    Strategy
	SideEffects []SideEffect
	// SelectedOrderID is empty when no order was selected.
	SelectedOrderID string
	// Rule is the name of the rule that produced the strategy.
	Rule string
}
