// Package rpcserver is the optional gRPC surface of the daemon verb
// (§6): a thin listener around the standard grpc health-checking
// service, so external orchestration (systemd, a fleet controller) can
// probe whether the agent's long-running process is alive without
// shelling out to the CLI.
package rpcserver

import (
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cuemby/hostd/pkg/log"
)

// Server wraps a grpc.Server exposing the standard health service.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
}

// New builds a Server with the health service registered and marked
// SERVING for the empty (whole-server) service name.
func New() *Server {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{grpc: gs, health: hs}
}

// SetServing updates the health status reported for a named service.
// Nothing in cmd/hostd calls it: the daemon leaves the whole-server
// status SERVING for the life of the process.
func (s *Server) SetServing(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(service, status)
}

// Serve listens on addr and blocks until the listener or server stops.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	log.Logger.Info().Str("addr", addr).Msg("grpc health server listening")
	return s.grpc.Serve(lis)
}

// Stop gracefully stops the gRPC server.
func (s *Server) Stop() {
	s.grpc.GracefulStop()
}
