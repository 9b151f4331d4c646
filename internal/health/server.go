// Package health exposes readiness over the gRPC health protocol and HTTP.
package health

import (
	"context"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"messenger-service/internal/observability"
)

// ServiceName is the gRPC health service name reported besides the empty one.
const ServiceName = "messenger"

// Check probes one dependency.
type Check func(ctx context.Context) error

// Server runs dependency probes and publishes the result.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	checks map[string]Check
	log    *zap.Logger

	mu     sync.RWMutex
	last   map[string]string
	status bool
}

func NewServer(checks map[string]Check, log *zap.Logger) *Server {
	s := &Server{
		grpc: grpc.NewServer(
			grpc.StatsHandler(otelgrpc.NewServerHandler()),
			grpc.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
		),
		health: health.NewServer(),
		checks: checks,
		log:    log,
		last:   map[string]string{},
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.setServing(false)
	return s
}

// Probe runs every check once and updates the served status.
func (s *Server) Probe(ctx context.Context) (map[string]string, bool) {
	results := make(map[string]string, len(s.checks))
	ok := true
	for name, check := range s.checks {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := check(checkCtx)
		cancel()
		if err != nil {
			ok = false
			results[name] = err.Error()
			s.log.Warn("health check failed", zap.String("check", name), zap.Error(err))
			continue
		}
		results[name] = "ok"
	}

	s.mu.Lock()
	s.last, s.status = results, ok
	s.mu.Unlock()
	s.setServing(ok)
	return results, ok
}

// Last returns the most recent probe result.
func (s *Server) Last() (map[string]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.last))
	for k, v := range s.last {
		out[k] = v
	}
	return out, s.status
}

// RunProbes probes on every tick until ctx is done.
func (s *Server) RunProbes(ctx context.Context, interval time.Duration) {
	s.Probe(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Probe(ctx)
		}
	}
}

func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Stop marks every service as not serving and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func (s *Server) setServing(ok bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
