// Package grpchealth exposes the standard grpc.health.v1 service so
// orchestrators can probe the analyzer over gRPC.
package grpchealth

import (
	"errors"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/example/palm-check/internal/logging"
)

// ServiceName is the health service name reported for the palm analyzer.
const ServiceName = "palm.Analyzer"

// Server wraps a gRPC server carrying only the health service.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger *zap.Logger
}

// New creates a health server. Both the overall status ("") and ServiceName
// start as NOT_SERVING until MarkServing is called.
func New(logger *zap.Logger) *Server {
	s := &Server{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		logger: logger.Named("grpc_health"),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Serve blocks accepting connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("gRPC health listening", zap.String("addr", lis.Addr().String()))
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return logging.NewOperationError("grpchealth.serve", "", err)
	}
	return nil
}

// MarkServing reports the analyzer as healthy.
func (s *Server) MarkServing() {
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
}

// MarkNotServing reports the analyzer as draining. Probes see it before
// in-flight HTTP requests finish.
func (s *Server) MarkNotServing() {
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
}

// Stop flips every service to NOT_SERVING and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func (s *Server) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
