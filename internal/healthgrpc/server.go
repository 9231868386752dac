// Package healthgrpc exposes the standard gRPC health service for the guide
// server, driven by periodic session store pings.
package healthgrpc

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// ServiceName is the health service name reported for the chat API.
const ServiceName = "cosmicguide.Chat"

// DefaultCheckInterval is how often Monitor pings the store.
const DefaultCheckInterval = 15 * time.Second

// Pinger is anything whose liveness can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is a gRPC server carrying only the health service.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	pinger Pinger
	logger *slog.Logger
}

// New creates a health server. The overall and chat statuses start as NOT_SERVING
// until the first successful check.
func New(pinger Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer(grpc.KeepaliveParams(keepalive.ServerParameters{
		Time:    2 * time.Minute,
		Timeout: 10 * time.Second,
	}))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	s := &Server{grpc: gs, health: hs, pinger: pinger, logger: logger}
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Serve accepts connections on lis until Shutdown.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("gRPC health server listening", "addr", lis.Addr().String())
	return s.grpc.Serve(lis)
}

// Check pings the store once and updates the reported status.
func (s *Server) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.pinger.Ping(ctx); err != nil {
		s.logger.Warn("Health check failed", "error", err)
		s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
		return err
	}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
	return nil
}

// Monitor runs Check every interval until ctx is cancelled.
func (s *Server) Monitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	_ = s.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.Check(ctx)
		}
	}
}

// Shutdown reports NOT_SERVING to all watchers and stops the server gracefully.
func (s *Server) Shutdown() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func (s *Server) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
