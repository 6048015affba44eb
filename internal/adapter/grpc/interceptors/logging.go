package interceptors

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// UnaryLoggingInterceptor logs method, duration and status code of each call.
// Health checks are logged at debug level.
func UnaryLoggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		st, _ := status.FromError(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("duration", time.Since(start)),
			zap.String("status_code", st.Code().String()),
		}

		switch {
		case err != nil:
			fields = append(fields, zap.Error(err))
			log.Error("gRPC request failed", fields...)
		case isPublic(info.FullMethod):
			log.Debug("gRPC request completed", fields...)
		default:
			log.Info("gRPC request completed", fields...)
		}

		return resp, err
	}
}
