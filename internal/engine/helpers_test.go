package engine

import (
	"fmt"

	"github.com/triage-ai/palisade/services/order_strategy/internal/domain"
)

// stubHealth is a test helper that returns a fixed error.
type stubHealth struct {
	err error
}

func (s *stubHealth) EnsureAvailable() error { return s.err }

func upstreamDown() *stubHealth {
	return &stubHealth{err: fmt.Errorf("%w: forced", domain.ErrUpstreamUnavailable)}
}

func order(id string, status domain.OrderStatus) domain.Order {
	return domain.Order{
		OrderID:     id,
		TotalAmount: 50,
		ItemCount:   1,
		Status:      status,
	}
}

// baseContext is scenario B: authenticated DE webchat customer tracking a
// single low-value delivered order.
func baseContext() domain.CustomerContext {
	return domain.CustomerContext{
		Action:                 domain.ActionTrackOrder,
		CustomerID:             "cust-0001",
		Country:                "DE",
		IsVIP:                  false,
		Authenticated:          true,
		Channel:                domain.ChannelWebchat,
		Orders:                 []domain.Order{order("ORD-00000001", domain.StatusDelivered)},
		RecentFailedAIAttempts: domain.Attempts(0),
		AIConfidence:           0.9,
	}
}
