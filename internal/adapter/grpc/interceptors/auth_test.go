package interceptors

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/seu-repo/energy-sentinel/internal/domain"
	"github.com/seu-repo/energy-sentinel/internal/mocks"
)

func TestUnaryAuthInterceptor(t *testing.T) {
	validator := &mocks.MockTokenValidator{
		ValidateTokenFunc: func(ctx context.Context, token string) (*domain.Caller, error) {
			if token == "good" {
				return &domain.Caller{UserID: "user-1", Role: domain.RoleUser}, nil
			}
			return nil, errors.New("bad token")
		},
	}
	interceptor := UnaryAuthInterceptor(validator)

	testCases := []struct {
		name     string
		method   string
		md       metadata.MD
		expected codes.Code
		caller   string
	}{
		{name: "Health is public", method: "/grpc.health.v1.Health/Check", expected: codes.OK},
		{name: "No metadata", method: "/energysentinel.v1.Pipeline/Detect", expected: codes.Unauthenticated},
		{name: "No header", method: "/energysentinel.v1.Pipeline/Detect", md: metadata.Pairs("x-other", "1"), expected: codes.Unauthenticated},
		{name: "Not bearer", method: "/energysentinel.v1.Pipeline/Detect", md: metadata.Pairs("authorization", "Basic abc"), expected: codes.Unauthenticated},
		{name: "Invalid token", method: "/energysentinel.v1.Pipeline/Detect", md: metadata.Pairs("authorization", "Bearer nope"), expected: codes.Unauthenticated},
		{name: "Valid token", method: "/energysentinel.v1.Pipeline/Detect", md: metadata.Pairs("authorization", "Bearer good"), expected: codes.OK, caller: "user-1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			if tc.md != nil {
				ctx = metadata.NewIncomingContext(ctx, tc.md)
			}

			var seen string
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				if c, ok := CallerFromContext(ctx); ok {
					seen = c.UserID
				}
				return "ok", nil
			}

			_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: tc.method}, handler)

			if status.Code(err) != tc.expected {
				t.Errorf("expected %s, got %v", tc.expected, err)
			}
			if seen != tc.caller {
				t.Errorf("expected caller %q, got %q", tc.caller, seen)
			}
		})
	}
}
