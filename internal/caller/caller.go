// Package caller is the consumer-side adapter around the decision engine.
// It is the single place where pipeline failures become outcomes; Decide
// never returns an error and never panics.
package caller

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/order_strategy/internal/domain"
	"github.com/triage-ai/palisade/services/order_strategy/internal/metrics"
)

// Decider is the decision facade. *engine.Service implements it.
type Decider interface {
	DecideStrategy(ctx context.Context, c domain.CustomerContext) (domain.Decision, error)
}

// Caller translates decisions and failures into DecisionResponses.
type Caller struct {
	decider Decider
	logger  *zap.Logger
	metrics *metrics.Metrics
	timeout time.Duration
}

// NewCaller creates a Caller. A zero timeout leaves deadlines to the
// context passed to DecideContext. logger and m may be nil.
func NewCaller(decider Decider, logger *zap.Logger, m *metrics.Metrics, timeout time.Duration) *Caller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Caller{
		decider: decider,
		logger:  logger,
		metrics: m,
		timeout: timeout,
	}
}

// panicError carries a recovered panic from a pipeline stage.
type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic in decision pipeline: %v", e.value)
}

// Decide is DecideContext without a caller deadline.
func (c *Caller) Decide(cc domain.CustomerContext) DecisionResponse {
	return c.DecideContext(context.Background(), cc)
}

// DecideContext decides a strategy for cc. If ctx expires, or the configured
// timeout elapses first, the response is UPSTREAM_UNAVAILABLE with code
// DECISION_TIMEOUT and the in-flight decision is abandoned.
func (c *Caller) DecideContext(ctx context.Context, cc domain.CustomerContext) DecisionResponse {
	start := time.Now()
	resp := c.decide(ctx, cc)

	c.metrics.ObserveDecideLatency(time.Since(start))
	c.metrics.IncrementOutcome(string(resp.Outcome))
	if resp.ErrorCode != nil {
		c.metrics.IncrementError(*resp.ErrorCode)
	}
	return resp
}

// Malformed is the response for a request that could not be decoded into a
// CustomerContext.
func (c *Caller) Malformed(err error) DecisionResponse {
	resp := failure(OutcomeBadRequest, CodeMalformedPayload, err.Error())
	c.metrics.IncrementOutcome(string(resp.Outcome))
	c.metrics.IncrementError(CodeMalformedPayload)
	return resp
}

type result struct {
	decision domain.Decision
	err      error
}

func (c *Caller) decide(ctx context.Context, cc domain.CustomerContext) DecisionResponse {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if ctx.Done() == nil {
		d, err := c.call(ctx, cc)
		return c.respond(cc, d, err)
	}

	// Buffered so an abandoned decision can still complete and exit.
	ch := make(chan result, 1)
	go func() {
		d, err := c.call(ctx, cc)
		ch <- result{decision: d, err: err}
	}()

	select {
	case r := <-ch:
		return c.respond(cc, r.decision, r.err)
	case <-ctx.Done():
		return c.respond(cc, domain.Decision{}, ctx.Err())
	}
}

func (c *Caller) call(ctx context.Context, cc domain.CustomerContext) (d domain.Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()
	return c.decider.DecideStrategy(ctx, cc)
}

// respond maps a facade result to a response. Failures are matched from
// most to least specific:
//  1. Caller deadline → UPSTREAM_UNAVAILABLE / DECISION_TIMEOUT
//  2. Upstream unavailable → UPSTREAM_UNAVAILABLE
//  3. Validation error → BAD_REQUEST / kind
//  4. Strategy error → INTERNAL_ERROR / TRACKING_STRATEGY_ERROR
//  5. Anything else → INTERNAL_ERROR / UNEXPECTED_ERROR, logged
func (c *Caller) respond(cc domain.CustomerContext, d domain.Decision, err error) DecisionResponse {
	if err == nil {
		outcome, ok := strategyOutcomes[d.Strategy]
		if !ok {
			c.logger.Error("decision returned unrecognised strategy",
				zap.String("strategy", string(d.Strategy)),
				zap.String("rule", d.Rule),
			)
			return failure(OutcomeInternalError, CodeUnknownStrategy,
				fmt.Sprintf("unrecognised strategy %q", d.Strategy))
		}
		return success(d, outcome)
	}

	var (
		ve *domain.ValidationError
		se *domain.StrategyError
		pe *panicError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		c.logger.Warn("decision abandoned", zap.Error(err))
		return failure(OutcomeUpstreamUnavailable, CodeDecisionTimeout, err.Error())
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return failure(OutcomeUpstreamUnavailable, CodeUpstreamUnavailable, err.Error())
	case errors.As(err, &ve):
		return failure(OutcomeBadRequest, string(ve.Kind), ve.Message)
	case errors.As(err, &se):
		c.logger.Warn("decision pipeline failed", zap.Error(err))
		return failure(OutcomeInternalError, CodeStrategyError, err.Error())
	}

	fields := append(contextFields(cc), zap.Error(err))
	if errors.As(err, &pe) {
		fields = append(fields, zap.ByteString("stack", pe.stack))
	}
	c.logger.Error("unexpected decision error", fields...)
	return failure(OutcomeInternalError, CodeUnexpected, err.Error())
}

func contextFields(cc domain.CustomerContext) []zap.Field {
	return []zap.Field{
		zap.String("action", string(cc.Action)),
		zap.String("customer_id", cc.CustomerID),
		zap.String("country", cc.Country),
		zap.String("channel", string(cc.Channel)),
		zap.Bool("authenticated", cc.Authenticated),
		zap.Bool("is_vip", cc.IsVIP),
		zap.Stringer("recent_failed_ai_attempts", cc.RecentFailedAIAttempts),
		zap.Float64("ai_confidence", cc.AIConfidence),
		zap.Int("order_count", len(cc.Orders)),
	}
}
