package handler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/medstore/internal/port"
)

// ServiceName is the gRPC health service name reported for the storefront.
const ServiceName = "medstore.Storefront"

// GRPCHealth serves grpc.health.v1 and tracks the order store's reachability.
type GRPCHealth struct {
	server *health.Server
	orders port.OrderRepository
	logger *zap.Logger
}

func NewGRPCHealth(orders port.OrderRepository, logger *zap.Logger) *GRPCHealth {
	return &GRPCHealth{
		server: health.NewServer(),
		orders: orders,
		logger: logger,
	}
}

func (h *GRPCHealth) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
}

// Check pings the store once and publishes the result.
func (h *GRPCHealth) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := h.orders.Ping(ctx); err != nil {
		h.logger.Warn("order store unreachable", zap.Error(err))
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(ServiceName, status)
	return status
}

// Run re-checks every interval until ctx is cancelled.
func (h *GRPCHealth) Run(ctx context.Context, interval time.Duration) {
	h.Check(ctx)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			checkCtx, cancel := context.WithTimeout(ctx, interval/2)
			h.Check(checkCtx)
			cancel()
		}
	}
}

// Shutdown marks every service NOT_SERVING.
func (h *GRPCHealth) Shutdown() {
	h.server.Shutdown()
}
