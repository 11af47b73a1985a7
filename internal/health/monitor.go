package health

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// MonitorConfig tunes polling and the probe circuit breaker.
type MonitorConfig struct {
	Interval time.Duration
	// FailureThreshold consecutive probe errors open the circuit.
	FailureThreshold uint32
	// OpenTimeout is how long the circuit stays open before a trial probe.
	OpenTimeout time.Duration
	// OnChange is called after every status transition.
	OnChange func(Status)
}

// DefaultMonitorConfig returns the defaults used by main.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:         2 * time.Second,
		FailureThreshold: 3,
		OpenTimeout:      10 * time.Second,
	}
}

// Monitor polls a Prober in the background and serves the last observed
// status to EnsureAvailable, so decisions never wait on the network.
//
// Probe errors count against a circuit breaker. While the circuit is open
// the upstream is reported DOWN without probing.
type Monitor struct {
	prober   Prober
	cb       *gobreaker.CircuitBreaker
	interval time.Duration
	onChange func(Status)
	logger   *zap.Logger

	status atomic.Int32
}

// NewMonitor creates a Monitor. The status is DEGRADED until the first
// probe completes.
func NewMonitor(prober Prober, cfg MonitorConfig, logger *zap.Logger) *Monitor {
	def := DefaultMonitorConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}

	m := &Monitor{
		prober:   prober,
		interval: cfg.Interval,
		onChange: cfg.OnChange,
		logger:   logger,
	}
	m.status.Store(int32(StatusDegraded))

	threshold := cfg.FailureThreshold
	m.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "upstream-health-probe",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("health probe circuit state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return m
}

func (m *Monitor) Status() Status {
	return Status(m.status.Load())
}

func (m *Monitor) EnsureAvailable() error {
	return check(m.Status(), "upstream health monitor")
}

// Check probes once and records the result.
func (m *Monitor) Check(ctx context.Context) Status {
	res, err := m.cb.Execute(func() (interface{}, error) {
		return m.prober.Probe(ctx)
	})

	next := StatusDown
	switch {
	case err == nil:
		next = res.(Status)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		m.logger.Debug("health probe skipped, circuit open")
	default:
		m.logger.Warn("health probe failed", zap.Error(err))
	}

	m.set(next)
	return next
}

func (m *Monitor) set(next Status) {
	prev := Status(m.status.Swap(int32(next)))
	if prev == next {
		return
	}
	m.logger.Info("upstream health changed",
		zap.Stringer("from", prev),
		zap.Stringer("to", next),
	)
	if m.onChange != nil {
		m.onChange(next)
	}
}

// Run probes immediately, then every interval, until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
