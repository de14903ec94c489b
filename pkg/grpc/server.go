package grpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/example/shopeasy/pkg/config"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name the storefront reports under.
const ServiceName = "shopeasy.Storefront"

// Probe checks one backing dependency, such as the key-value store.
type Probe func(ctx context.Context) error

// HealthServer exposes the standard gRPC health service. The storefront is
// SERVING while every registered probe passes.
type HealthServer struct {
	config *config.Config
	logger *zap.Logger
	srv    *grpc.Server
	health *health.Server

	mu     sync.Mutex
	probes map[string]Probe
}

func NewHealthServer(cfg *config.Config, logger *zap.Logger) *HealthServer {
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthServer{
		config: cfg,
		logger: logger,
		srv:    srv,
		health: hs,
		probes: make(map[string]Probe),
	}
}

// AddProbe registers a dependency check under name.
func (s *HealthServer) AddProbe(name string, p Probe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes[name] = p
}

// Check runs all probes once and publishes the result.
func (s *HealthServer) Check(ctx context.Context) bool {
	s.mu.Lock()
	probes := make(map[string]Probe, len(s.probes))
	for name, p := range s.probes {
		probes[name] = p
	}
	s.mu.Unlock()

	ok := true
	for name, p := range probes {
		if err := p(ctx); err != nil {
			s.logger.Warn("Health probe failed", zap.String("probe", name), zap.Error(err))
			ok = false
		}
	}

	status := healthpb.HealthCheckResponse_SERVING
	if !ok {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(ServiceName, status)
	s.health.SetServingStatus("", status)
	return ok
}

// Watch re-runs the probes every interval until ctx is done.
func (s *HealthServer) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, interval)
			s.Check(probeCtx)
			cancel()
		}
	}
}

func (s *HealthServer) Start() error {
	addr := s.config.GRPC.Addr()
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.logger.Info("Health service started", zap.String("address", addr))
	return s.Serve(lis)
}

func (s *HealthServer) Serve(lis net.Listener) error {
	return s.srv.Serve(lis)
}

func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}
