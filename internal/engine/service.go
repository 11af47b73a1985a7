package engine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/order_strategy/internal/domain"
	"github.com/triage-ai/palisade/services/order_strategy/internal/policy"
)

// Options overrides the default pipeline stages. Nil fields use the
// default implementation.
type Options struct {
	Validator Validator
	Scorer    RiskScorer
	Selector  OrderSelector
	Rules     RulesEngine
}

// Service composes health gate, validator, selector and rule engine into a
// single decision call. It holds no per-request state and is safe for
// concurrent use.
type Service struct {
	cfg       policy.Config
	health    HealthChecker
	validator Validator
	scorer    RiskScorer
	selector  OrderSelector
	rules     RulesEngine
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewService creates a Service. health is required: it decides whether the
// upstream order platform is reachable.
func NewService(cfg policy.Config, health HealthChecker, logger *zap.Logger, opts Options) *Service {
	s := &Service{
		cfg:       cfg,
		health:    health,
		validator: opts.Validator,
		scorer:    opts.Scorer,
		selector:  opts.Selector,
		rules:     opts.Rules,
		logger:    logger,
		tracer:    otel.Tracer("github.com/triage-ai/palisade/services/order_strategy/internal/engine"),
	}
	if s.health == nil {
		panic("engine: NewService requires a HealthChecker")
	}
	if s.validator == nil {
		s.validator = NewDefaultValidator(cfg)
	}
	if s.scorer == nil {
		s.scorer = NewDefaultRiskScorer()
	}
	if s.selector == nil {
		s.selector = NewDefaultOrderSelector()
	}
	if s.rules == nil {
		s.rules = NewDefaultRulesEngine()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// DecideStrategy runs the pipeline:
//  1. Health gate (error wraps domain.ErrUpstreamUnavailable)
//  2. Validation (error is a *domain.ValidationError)
//  3. Empty order list → NO_ORDERS_FOUND
//  4. Highest-risk order selection
//  5. Rule table evaluation
//
// Errors from each stage are returned unchanged. ctx only carries the trace.
func (s *Service) DecideStrategy(ctx context.Context, c domain.CustomerContext) (domain.Decision, error) {
	_, span := s.tracer.Start(ctx, "Service.DecideStrategy", trace.WithAttributes(
		attribute.String("decision.action", string(c.Action)),
		attribute.String("decision.channel", string(c.Channel)),
		attribute.String("decision.country", c.Country),
		attribute.Int("decision.order_count", len(c.Orders)),
	))
	defer span.End()

	d, err := s.decide(c)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decision failed")
		return domain.Decision{}, err
	}

	span.SetAttributes(
		attribute.String("decision.strategy", string(d.Strategy)),
		attribute.String("decision.rule", d.Rule),
	)
	s.logger.Debug("strategy decided",
		zap.String("strategy", string(d.Strategy)),
		zap.String("rule", d.Rule),
		zap.String("selected_order_id", d.SelectedOrderID),
		zap.Int("side_effects", len(d.SideEffects)),
	)
	return d, nil
}

func (s *Service) decide(c domain.CustomerContext) (domain.Decision, error) {
	if err := s.health.EnsureAvailable(); err != nil {
		return domain.Decision{}, err
	}
	if err := s.validator.Validate(c); err != nil {
		return domain.Decision{}, err
	}

	if len(c.Orders) == 0 {
		return domain.Decision{
			Strategy:    domain.StrategyNoOrdersFound,
			SideEffects: []domain.SideEffect{},
			Rule:        RuleNoOrders,
		}, nil
	}

	selected, err := s.selector.Select(c.Orders, s.scorer, s.cfg)
	if err != nil {
		return domain.Decision{}, err
	}

	out := s.rules.Evaluate(c, selected, s.cfg)
	return domain.Decision{
		Strategy:        out.Strategy,
		SideEffects:     out.SideEffects,
		SelectedOrderID: selected.OrderID,
		Rule:            out.Rule,
	}, nil
}
