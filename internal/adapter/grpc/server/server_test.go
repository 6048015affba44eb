package server

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/seu-repo/energy-sentinel/internal/domain"
	"github.com/seu-repo/energy-sentinel/internal/mocks"
	healthsvc "github.com/seu-repo/energy-sentinel/internal/service/health"
)

func newTestServer(t *testing.T, dbDown *atomic.Bool) (*GRPCServer, healthpb.HealthClient) {
	t.Helper()

	ready := healthsvc.NewService(healthsvc.Config{CheckTimeout: time.Second}, zap.NewNop())
	ready.RegisterPing("database", func(ctx context.Context) error {
		if dbDown.Load() {
			return errors.New("connection refused")
		}
		return nil
	}, healthsvc.StatusUnhealthy)

	validator := &mocks.MockTokenValidator{
		ValidateTokenFunc: func(ctx context.Context, token string) (*domain.Caller, error) {
			t.Error("health checks must not require a token")
			return nil, errors.New("unexpected call")
		},
	}

	s := NewGRPCServer(ready, validator, zap.NewNop())

	lis := bufconn.Listen(1 << 20)
	go s.Serve(lis)
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to dial bufconn: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return s, healthpb.NewHealthClient(conn)
}

func TestGRPCServer_HealthMirrorsReadiness(t *testing.T) {
	// Arrange
	var dbDown atomic.Bool
	s, client := newTestServer(t, &dbDown)
	ctx := context.Background()

	for _, tc := range []struct {
		name     string
		down     bool
		expected healthpb.HealthCheckResponse_ServingStatus
	}{
		{name: "Dependencies up", down: false, expected: healthpb.HealthCheckResponse_SERVING},
		{name: "Database down", down: true, expected: healthpb.HealthCheckResponse_NOT_SERVING},
		{name: "Database back", down: false, expected: healthpb.HealthCheckResponse_SERVING},
	} {
		// Act
		dbDown.Store(tc.down)
		s.refresh(ctx)

		// Assert
		for _, service := range []string{"", ServiceName} {
			resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
			if err != nil {
				t.Fatalf("%s: Check(%q) failed: %v", tc.name, service, err)
			}
			if resp.Status != tc.expected {
				t.Errorf("%s: Check(%q) expected %v, got %v", tc.name, service, tc.expected, resp.Status)
			}
		}
	}
}

func TestGRPCServer_WatchReadinessStopsWithContext(t *testing.T) {
	var dbDown atomic.Bool
	s, client := newTestServer(t, &dbDown)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.WatchReadiness(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
		if err == nil && resp.Status == healthpb.HealthCheckResponse_SERVING {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("readiness never reported, last err: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WatchReadiness did not return after cancellation")
	}
}
