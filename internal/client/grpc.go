package client

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCHealth probes the server's standard gRPC health service.
type GRPCHealth struct {
	conn   *grpc.ClientConn
	client healthpb.HealthClient
}

// NewGRPCHealth connects to the given gRPC address.
func NewGRPCHealth(addr string) (*GRPCHealth, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCHealth{conn: conn, client: healthpb.NewHealthClient(conn)}, nil
}

func (h *GRPCHealth) Close() error {
	return h.conn.Close()
}

// Check returns the serving status of service ("" for the whole server).
func (h *GRPCHealth) Check(ctx context.Context, service string) (string, error) {
	resp, err := h.client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return "", fmt.Errorf("health check: %w", err)
	}
	return resp.GetStatus().String(), nil
}

// Wait blocks until service reports SERVING or ctx ends, backing off
// between attempts up to one second.
func (h *GRPCHealth) Wait(ctx context.Context, service string) error {
	backoff := 200 * time.Millisecond
	for {
		callCtx, cancel := context.WithTimeout(ctx, time.Second)
		status, err := h.Check(callCtx, service)
		cancel()
		if err == nil && status == healthpb.HealthCheckResponse_SERVING.String() {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for gRPC health: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, time.Second)
	}
}
