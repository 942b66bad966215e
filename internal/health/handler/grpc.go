package handler

import (
	"context"
	"log"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// checkTimeout bounds each dependency probe.
const checkTimeout = 2 * time.Second

// Pinger is satisfied by *db.DB (*sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker is satisfied by the OPA admission evaluator.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server implements grpc.health.v1.Health for readiness and liveness.
// SERVING only when the store answers a ping and the admission policy compiles.
type Server struct {
	healthpb.UnimplementedHealthServer
	pinger Pinger
	policy PolicyChecker
}

// NewServer returns a Health server. Either dependency may be nil, in which case it is not probed.
func NewServer(pinger Pinger, policy PolicyChecker) *Server {
	return &Server{pinger: pinger, policy: policy}
}

// Check reports overall status; the service name in the request is ignored.
// Dependency failures are reported as NOT_SERVING, never as an RPC error.
func (s *Server) Check(ctx context.Context, _ *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if s.pinger != nil {
		pingCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := s.pinger.PingContext(pingCtx)
		cancel()
		if err != nil {
			log.Printf("health: store ping failed: %v", err)
			return notServing(), nil
		}
	}
	if s.policy != nil {
		policyCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := s.policy.HealthCheck(policyCtx)
		cancel()
		if err != nil {
			log.Printf("health: policy check failed: %v", err)
			return notServing(), nil
		}
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}

func notServing() *healthpb.HealthCheckResponse {
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}
}
