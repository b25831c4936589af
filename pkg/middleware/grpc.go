package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/wyfcoding/vectorplus/pkg/logger"
	"github.com/wyfcoding/vectorplus/pkg/metrics"
	"github.com/wyfcoding/vectorplus/pkg/protocol"
)

// traceMetadataKey gRPC metadata 中的 trace ID
const traceMetadataKey = "x-trace-id"

// GRPCLoggingInterceptor gRPC 日志拦截器
func GRPCLoggingInterceptor(l *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		traceID := extractTraceID(ctx)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx = logger.WithTraceID(ctx, traceID)

		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			st, _ := status.FromError(err)
			l.ErrorContext(ctx, "gRPC request failed",
				"method", info.FullMethod,
				"error_code", st.Code().String(),
				"error_message", st.Message(),
				"duration", time.Since(start),
			)
			return resp, err
		}
		l.InfoContext(ctx, "gRPC request completed", "method", info.FullMethod, "duration", time.Since(start))
		return resp, nil
	}
}

// GRPCRecoveryInterceptor panic 转为 codes.Internal
func GRPCRecoveryInterceptor(l *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				l.ErrorContext(ctx, "gRPC request panicked", "method", info.FullMethod, "panic", r)
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

// GRPCMetricsInterceptor gRPC 请求计数与耗时
func GRPCMetricsInterceptor(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		m.GRPCRequestsTotal.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
		m.GRPCRequestDuration.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
		return resp, err
	}
}

// GRPCCode 领域错误分类到 gRPC 状态码
func GRPCCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	var perr *protocol.Error
	if !errors.As(err, &perr) {
		return codes.Internal
	}
	switch perr.Class {
	case protocol.ClassValidation:
		return codes.InvalidArgument
	case protocol.ClassNotFound:
		return codes.NotFound
	case protocol.ClassState:
		return codes.FailedPrecondition
	case protocol.ClassTemporal, protocol.ClassEconomic:
		return codes.OutOfRange
	default:
		return codes.Internal
	}
}

// GRPCErrorInterceptor 将领域错误转换为 gRPC status，已是 status 的错误原样返回
func GRPCErrorInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		if _, ok := status.FromError(err); ok {
			return resp, err
		}
		code := GRPCCode(err)
		if code == codes.Internal {
			return resp, status.Error(codes.Internal, "internal server error")
		}
		return resp, status.Error(code, err.Error())
	}
}

// extractTraceID 优先取 context，其次取 incoming metadata
func extractTraceID(ctx context.Context) string {
	if id := logger.TraceID(ctx); id != "" {
		return id
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(traceMetadataKey); len(vals) > 0 {
			return vals[0]
		}
	}
	return ""
}
