// Package server exposes stored readings and the photo pipeline over gRPC and HTTP.
package server

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/gauge-tracker/internal/common"
)

// NewGRPCServer registers the readings service and the standard health service.
// The returned health server starts out SERVING for both the overall server and
// the readings service.
func NewGRPCServer(readings ReadingsServer, logger *slog.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append(opts, grpc.ChainUnaryInterceptor(logUnary(logger), recoverUnary(logger)))
	s := grpc.NewServer(opts...)
	RegisterReadingsServer(s, readings)

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ReadingsServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	return s, hs
}

func logUnary(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		ctx, reqID := common.EnsureRequestID(ctx)
		resp, err := handler(ctx, req)
		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "grpc.call",
			"method", info.FullMethod,
			"req_id", reqID,
			"code", status.Code(err).String(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}

// recoverUnary turns a handler panic into codes.Internal.
func recoverUnary(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if p := recover(); p != nil {
				common.LoggerFrom(ctx, logger).Error("grpc.panic", "method", info.FullMethod, "panic", p, "stack", string(debug.Stack()))
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}
