// Package server builds the worker's gRPC endpoint. Only the standard health service is exposed.
package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	healthhandler "omnichannel-support/internal/health/handler"
	"omnichannel-support/internal/server/interceptors"
)

// Deps holds optional health dependencies.
type Deps struct {
	// HealthPinger is used for readiness (e.g. *sql.DB). If nil, the DB ping is skipped.
	HealthPinger healthhandler.Pinger
	// HealthPolicyChecker is used for readiness (e.g. the OPA escalation evaluator). If nil, the policy check is skipped.
	HealthPolicyChecker healthhandler.PolicyChecker
}

// NewGRPCServer returns a server with OTel stats, panic recovery and failure logging.
func NewGRPCServer() *grpc.Server {
	return grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.RecoveryUnary(),
			interceptors.LoggingUnary(map[string]bool{healthpb.Health_Check_FullMethodName: true}),
		),
	)
}

// RegisterServices registers the health service.
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	healthpb.RegisterHealthServer(s, healthhandler.NewServer(deps.HealthPinger, deps.HealthPolicyChecker))
}
