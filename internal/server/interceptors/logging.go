// Package interceptors holds the unary server interceptors of the worker gRPC endpoint.
package interceptors

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LoggingUnary logs every failed RPC with its code and duration. Methods in skipMethods are
// never logged (health probes run every few seconds).
func LoggingUnary(skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil && !skipMethods[info.FullMethod] {
			log.Printf("grpc: %s failed code=%s duration_ms=%d: %v",
				info.FullMethod, status.Code(err), time.Since(start).Milliseconds(), err)
		}
		return resp, err
	}
}

// RecoveryUnary turns a handler panic into an Internal error.
func RecoveryUnary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("grpc: panic in %s: %v\n%s", info.FullMethod, r, debug.Stack())
				err = status.Error(codes.Internal, fmt.Sprintf("internal error in %s", info.FullMethod))
			}
		}()
		return handler(ctx, req)
	}
}
