// Package health provides the upstream availability gates consulted before
// every decision. A gate only aborts a decision when the upstream order
// platform is DOWN; DEGRADED is reported but tolerated.
package health

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/triage-ai/palisade/services/order_strategy/internal/domain"
)

// Status is the observed state of the upstream order platform.
type Status int32

const (
	StatusUp Status = iota
	StatusDegraded
	StatusDown
)

func (s Status) String() string {
	switch s {
	case StatusUp:
		return "UP"
	case StatusDegraded:
		return "DEGRADED"
	case StatusDown:
		return "DOWN"
	}
	return fmt.Sprintf("Status(%d)", int32(s))
}

// ParseStatus parses "up", "degraded" or "down", case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "UP":
		return StatusUp, nil
	case "DEGRADED":
		return StatusDegraded, nil
	case "DOWN":
		return StatusDown, nil
	}
	return StatusUp, fmt.Errorf("health: unknown status %q", s)
}

// check converts a status into the gate's verdict.
func check(s Status, source string) error {
	if s == StatusDown {
		return fmt.Errorf("%w: %s reports %s", domain.ErrUpstreamUnavailable, source, s)
	}
	return nil
}

// StaticGate reports a fixed, externally set status. The zero value is UP.
type StaticGate struct {
	status atomic.Int32
}

func NewStaticGate(s Status) *StaticGate {
	g := &StaticGate{}
	g.Set(s)
	return g
}

// Set changes the reported status. Safe for concurrent use with EnsureAvailable.
func (g *StaticGate) Set(s Status) {
	g.status.Store(int32(s))
}

func (g *StaticGate) Status() Status {
	return Status(g.status.Load())
}

func (g *StaticGate) EnsureAvailable() error {
	return check(g.Status(), "static gate")
}
