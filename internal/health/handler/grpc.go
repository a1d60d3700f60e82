package handler

import (
	"context"
	"log"
	"time"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ServiceName is the service reported by the processor's health endpoint. The empty name
// ("overall health") is accepted too.
const ServiceName = "omnichannel-support.processor"

const checkTimeout = 2 * time.Second

// Pinger checks database reachability. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks that the escalation policy still evaluates.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server implements grpc.health.v1.Health for the processor worker.
// A failing dependency is reported as NOT_SERVING, never as an RPC error.
type Server struct {
	healthpb.UnimplementedHealthServer
	db     Pinger
	policy PolicyChecker
}

// NewServer returns a health server. Either check may be nil.
func NewServer(db Pinger, policy PolicyChecker) *Server {
	return &Server{db: db, policy: policy}
}

// Check pings the database and evaluates the policy.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if svc := req.GetService(); svc != "" && svc != ServiceName {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", svc)
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			log.Printf("health: database ping failed: %v", err)
			return notServing(), nil
		}
	}
	if s.policy != nil {
		if err := s.policy.HealthCheck(ctx); err != nil {
			log.Printf("health: escalation policy check failed: %v", err)
			return notServing(), nil
		}
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}

func notServing() *healthpb.HealthCheckResponse {
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}
}
