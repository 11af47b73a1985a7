package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const defaultProbeTimeout = 2 * time.Second

// Prober reads the current status of the upstream once. A returned error
// means the probe itself failed.
type Prober interface {
	Probe(ctx context.Context) (Status, error)
}

// GRPCProber queries the standard grpc.health.v1 service of the upstream.
type GRPCProber struct {
	conn    *grpc.ClientConn
	client  healthpb.HealthClient
	service string
	timeout time.Duration
}

// NewGRPCProber creates a prober for addr. An empty service checks the
// server as a whole. The connection is established lazily.
func NewGRPCProber(addr, service string, timeout time.Duration, opts ...grpc.DialOption) (*GRPCProber, error) {
	if addr == "" {
		return nil, errors.New("health: grpc health addr is empty")
	}
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("health: grpc client %s: %w", addr, err)
	}
	return &GRPCProber{
		conn:    conn,
		client:  healthpb.NewHealthClient(conn),
		service: service,
		timeout: timeout,
	}, nil
}

// Probe maps SERVING to UP, NOT_SERVING to DOWN and any other reported
// status to DEGRADED.
func (p *GRPCProber) Probe(ctx context.Context) (Status, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.Check(ctx, &healthpb.HealthCheckRequest{Service: p.service})
	if err != nil {
		return StatusDown, fmt.Errorf("health: grpc check: %w", err)
	}

	switch resp.GetStatus() {
	case healthpb.HealthCheckResponse_SERVING:
		return StatusUp, nil
	case healthpb.HealthCheckResponse_NOT_SERVING:
		return StatusDown, nil
	default:
		return StatusDegraded, nil
	}
}

func (p *GRPCProber) Close() error {
	return p.conn.Close()
}
