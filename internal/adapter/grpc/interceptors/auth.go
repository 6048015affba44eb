package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/seu-repo/energy-sentinel/internal/domain"
	"github.com/seu-repo/energy-sentinel/internal/ports"
)

type contextKey string

const callerKey contextKey = "caller"

// CallerFromContext returns the caller the auth interceptor authenticated.
func CallerFromContext(ctx context.Context) (*domain.Caller, bool) {
	c, ok := ctx.Value(callerKey).(*domain.Caller)
	return c, ok
}

// UnaryAuthInterceptor authenticates bearer tokens from the authorization
// metadata. Health and reflection methods are public.
func UnaryAuthInterceptor(validator ports.TokenValidator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if isPublic(info.FullMethod) {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		authHeader := md.Get("authorization")
		if len(authHeader) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing authorization header")
		}

		token, found := strings.CutPrefix(authHeader[0], "Bearer ")
		if !found || token == "" {
			return nil, status.Error(codes.Unauthenticated, "invalid authorization header format")
		}

		caller, err := validator.ValidateToken(ctx, token)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}

		return handler(context.WithValue(ctx, callerKey, caller), req)
	}
}

func isPublic(method string) bool {
	return strings.HasPrefix(method, "/grpc.health.v1.Health/") ||
		strings.HasPrefix(method, "/grpc.reflection.")
}
