// Command healthcheck probes the booking-service gRPC health endpoint and
// exits non-zero unless it reports SERVING. Used as a container probe.
package main

import (
	"context"
	"os"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/config"
	"github.com/md-rashed-zaman/slotbook/libs/grpcx"
	"github.com/md-rashed-zaman/slotbook/libs/runtime"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	logger := runtime.NewLogger("booking-healthcheck")
	addr := config.String("GRPC_ADDR", "127.0.0.1:9093")

	conn, err := grpcx.Dial(addr, grpcx.DialOptions{})
	if err != nil {
		logger.Error("dial failed", "err", err, "addr", addr)
		os.Exit(1)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		logger.Error("health check failed", "err", err, "addr", addr)
		os.Exit(1)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		logger.Error("service not serving", "status", resp.GetStatus().String())
		os.Exit(1)
	}
}
