// Package observability provides the metrics HTTP server and gRPC interceptors.
package observability

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/consultedge/emi-reminder-ai/internal/observability/logging"
	"github.com/consultedge/emi-reminder-ai/internal/observability/metrics"
)

// GRPCTransport labels stream metrics for gRPC sessions.
const GRPCTransport = "grpc"

// UnaryServerInterceptor logs unary calls (health checks, reflection).
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	logger := logging.WithComponent("grpc")
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		logger.Debug().
			Str("method", info.FullMethod).
			Str("code", status.Code(err).String()).
			Dur("duration", time.Since(start)).
			Msg("gRPC unary call")

		return resp, err
	}
}

// StreamServerInterceptor records a conversation stream's lifetime and outcome.
func StreamServerInterceptor(m *metrics.Metrics) grpc.StreamServerInterceptor {
	logger := logging.WithComponent("grpc")
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		start := time.Now()
		m.RecordStreamStart(GRPCTransport)

		err := handler(srv, ss)

		duration := time.Since(start)
		success := err == nil
		m.RecordStreamEnd(GRPCTransport, success, duration.Seconds())

		ev := logger.Info()
		if !success {
			ev = logger.Warn().Err(err)
		}
		if p, ok := peer.FromContext(ss.Context()); ok && p.Addr != nil {
			ev = ev.Str("peer", p.Addr.String())
		}
		ev.Str("method", info.FullMethod).
			Str("code", status.Code(err).String()).
			Dur("duration", duration).
			Bool("success", success).
			Msg("gRPC stream completed")

		return err
	}
}
