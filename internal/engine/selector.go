package engine

import (
	"errors"

	"github.com/triage-ai/palisade/services/order_strategy/internal/domain"
	"github.com/triage-ai/palisade/services/order_strategy/internal/policy"
)

// errNoOrders is returned by Select on an empty list. The facade answers
// NO_ORDERS_FOUND before selection, so reaching it is a pipeline bug.
var errNoOrders = errors.New("no orders to select from")

// DefaultOrderSelector returns the highest-scoring order. Ties keep the
// earliest order in the list.
type DefaultOrderSelector struct{}

func NewDefaultOrderSelector() *DefaultOrderSelector {
	return &DefaultOrderSelector{}
}

func (s *DefaultOrderSelector) Select(orders []domain.Order, scorer RiskScorer, cfg policy.Config) (domain.Order, error) {
	if len(orders) == 0 {
		return domain.Order{}, &domain.StrategyError{Op: "select order", Err: errNoOrders}
	}

	best := 0
	bestScore := scorer.Score(orders[0], cfg)
	for i := 1; i < len(orders); i++ {
		if score := scorer.Score(orders[i], cfg); score > bestScore {
			best, bestScore = i, score
		}
	}
	return orders[best], nil
}
