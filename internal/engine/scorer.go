package engine

import (
	"github.com/triage-ai/palisade/services/order_strategy/internal/domain"
	"github.com/triage-ai/palisade/services/order_strategy/internal/policy"
)

const (
	highValueWeight   = 2
	fraudFlagWeight   = 5
	openDisputeWeight = 3
)

// DefaultRiskScorer adds a fixed weight per risk signal. Scores are only
// meaningful relative to each other.
type DefaultRiskScorer struct{}

func NewDefaultRiskScorer() *DefaultRiskScorer {
	return &DefaultRiskScorer{}
}

func (s *DefaultRiskScorer) Score(o domain.Order, cfg policy.Config) int {
	score := 0
	if o.TotalAmount >= cfg.HighValueAmountThreshold {
		score += highValueWeight
	}
	if o.IsFlaggedFraudRisk {
		score += fraudFlagWeight
	}
	if o.HasOpenDispute {
		score += openDisputeWeight
	}
	return score
}

// isHighRisk reports whether o meets any single high-risk signal.
func isHighRisk(o domain.Order, cfg policy.Config) bool {
	return o.TotalAmount >= cfg.HighValueAmountThreshold || o.IsFlaggedFraudRisk || o.HasOpenDispute
}
