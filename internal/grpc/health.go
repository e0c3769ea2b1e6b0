package grpc

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// AttendanceService is the health service name reported for the check-in pipeline.
const AttendanceService = "attendance.v1.AttendanceService"

// Health tracks serving status for the whole server and the attendance service.
type Health struct {
	server *health.Server
}

func NewHealth() *Health {
	return &Health{server: health.NewServer()}
}

// Register exposes grpc.health.v1.Health on the given server.
func (h *Health) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
}

// SetServing flips both the overall and the attendance service status.
func (h *Health) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(AttendanceService, status)
}

// Shutdown marks everything NOT_SERVING and ignores later updates.
func (h *Health) Shutdown() {
	h.server.Shutdown()
}

// Server returns the underlying health server.
func (h *Health) Server() healthpb.HealthServer {
	return h.server
}
