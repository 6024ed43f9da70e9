package httpapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"krona.org/internal/obs"
)

type readinessChecker interface {
	Check(ctx context.Context) error
}

// NewGRPCServer exposes the standard gRPC health service, mirroring the HTTP
// readiness probe. The returned stop function ends the probe loop; callers
// still own GracefulStop on the server.
func NewGRPCServer(probe readinessChecker, interval time.Duration) (*grpc.Server, func()) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			check, checkCancel := context.WithTimeout(ctx, interval)
			status := healthpb.HealthCheckResponse_SERVING
			if err := probe.Check(check); err != nil {
				status = healthpb.HealthCheckResponse_NOT_SERVING
			}
			checkCancel()
			obs.SetReady(status == healthpb.HealthCheckResponse_SERVING)
			hs.SetServingStatus("", status)

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return srv, cancel
}
