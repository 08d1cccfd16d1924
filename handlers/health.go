package handlers

import (
	"net"

	"masterserver/helpers"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Health service names, one per listener. The empty name reports the process as a whole.
const (
	HealthServiceOverall      = ""
	HealthServiceRegistration = "masterserver.Registration"
	HealthServiceDiscovery    = "masterserver.Discovery"
)

// HealthServer exposes the standard gRPC health service for the registration and discovery listeners.
type HealthServer struct {
	grpcServer *grpc.Server
	health     *health.Server
	logger     log.Logger
}

// NewHealthServer creates a health server with every service NOT_SERVING. Panics on nil logger.
func NewHealthServer(logger log.Logger) *HealthServer {
	logger = log.WithPrefix(helpers.NilPanic(logger, "handlers.health.go: logger is required"), "component", "HealthServer")

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	for _, name := range []string{HealthServiceOverall, HealthServiceRegistration, HealthServiceDiscovery} {
		healthServer.SetServingStatus(name, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	}
	return &HealthServer{grpcServer: grpcServer, health: healthServer, logger: logger}
}

// SetServing flips the status of one service.
func (h *HealthServer) SetServing(name string, serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus(name, status)
	level.Debug(h.logger).Log("msg", "health status changed", "service", name, "status", status)
}

// Serve accepts health checks on lis until Stop.
func (h *HealthServer) Serve(lis net.Listener) error {
	level.Info(h.logger).Log("msg", "Starting gRPC health server", "addr", lis.Addr().String())
	return h.grpcServer.Serve(lis)
}

// Stop reports every service NOT_SERVING, then stops the gRPC server.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.grpcServer.GracefulStop()
}
