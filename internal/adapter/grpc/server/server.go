package server

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/seu-repo/energy-sentinel/internal/adapter/grpc/interceptors"
	"github.com/seu-repo/energy-sentinel/internal/ports"
	healthsvc "github.com/seu-repo/energy-sentinel/internal/service/health"
)

// ServiceName is the name readiness is reported under.
const ServiceName = "energysentinel.v1.Pipeline"

type GRPCServer struct {
	server *grpc.Server
	health *health.Server
	ready  *healthsvc.Service
	log    *zap.Logger
}

func NewGRPCServer(ready *healthsvc.Service, validator ports.TokenValidator, log *zap.Logger) *GRPCServer {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptors.UnaryLoggingInterceptor(log),
			interceptors.UnaryMetricsInterceptor(),
			interceptors.UnaryAuthInterceptor(validator),
		),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)

	// Enable reflection for debugging (e.g. grpcurl)
	reflection.Register(s)

	return &GRPCServer{
		server: s,
		health: hs,
		ready:  ready,
		log:    log,
	}
}

// WatchReadiness mirrors the readiness checks into the gRPC health service
// until ctx is done.
func (s *GRPCServer) WatchReadiness(ctx context.Context, interval time.Duration) {
	s.refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

func (s *GRPCServer) refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if !s.ready.Ready(ctx).Ready {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

func (s *GRPCServer) Serve(lis net.Listener) error {
	s.log.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
	return s.server.Serve(lis)
}

func (s *GRPCServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
