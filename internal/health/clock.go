package health

import (
	"fmt"
	"time"

	"github.com/triage-ai/palisade/services/order_strategy/internal/domain"
)

const (
	DefaultOutageWindow = 3 * time.Second
	DefaultOutageCycle  = 60 * time.Second
)

// ClockGate simulates an intermittent outage: the first window of every
// cycle of wall-clock time is DOWN. It exists for demos and chaos drills.
type ClockGate struct {
	window time.Duration
	cycle  time.Duration
	now    func() time.Time
}

// NewClockGate returns a gate that is down for window at the start of each
// cycle. Non-positive values fall back to 3s out of every 60s.
func NewClockGate(window, cycle time.Duration) *ClockGate {
	if cycle <= 0 {
		cycle = DefaultOutageCycle
	}
	if window <= 0 {
		window = DefaultOutageWindow
	}
	return &ClockGate{window: window, cycle: cycle, now: time.Now}
}

// newClockGateWithNow creates a ClockGate with an injected clock (for tests).
func newClockGateWithNow(window, cycle time.Duration, now func() time.Time) *ClockGate {
	g := NewClockGate(window, cycle)
	g.now = now
	return g
}

func (g *ClockGate) Status() Status {
	// whole seconds since the epoch, as a wall-clock phase
	phase := time.Duration(g.now().Unix()) * time.Second % g.cycle
	if phase < g.window {
		return StatusDown
	}
	return StatusUp
}

func (g *ClockGate) EnsureAvailable() error {
	if g.Status() == StatusDown {
		return fmt.Errorf("%w: simulated outage window", domain.ErrUpstreamUnavailable)
	}
	return nil
}
