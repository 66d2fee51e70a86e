// Package app wires the engine runtime: durable store, remote client,
// connectivity monitor, sync coordinator, and the gRPC health server.
package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/outpost/internal/connectivity"
	"github.com/louisbranch/outpost/internal/remote/httpremote"
	"github.com/louisbranch/outpost/internal/storage/sqlite"
	"github.com/louisbranch/outpost/internal/syncer"
	"github.com/louisbranch/outpost/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// RuntimeConfig controls engine startup and sync behavior.
type RuntimeConfig struct {
	Port          int
	DBPath        string
	RemoteBaseURL string
	ProbeInterval time.Duration
	LeaseTTL      time.Duration
	MaxAttempts   int
}

const (
	defaultEnginePort = 8086
	defaultEngineDB   = "data/outpost.db"
)

// Run starts the engine runtime and blocks until ctx is canceled.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.RemoteBaseURL) == "" {
		return fmt.Errorf("remote base URL is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultEnginePort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultEngineDB
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create engine storage dir: %w", err)
		}
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open engine sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close engine sqlite store: %v", closeErr)
		}
	}()

	remoteStore, err := httpremote.New(cfg.RemoteBaseURL, nil)
	if err != nil {
		return fmt.Errorf("build remote client: %w", err)
	}

	monitor, err := connectivity.New(remoteStore.Reachable, connectivity.Config{
		Interval: cfg.ProbeInterval,
	})
	if err != nil {
		return fmt.Errorf("build connectivity monitor: %w", err)
	}

	emitter := telemetry.NewEmitter(store)
	coordinator, err := syncer.New(
		store,
		remoteStore,
		func(context.Context) bool { return monitor.Online() },
		emitter,
		syncer.Config{
			LeaseTTL:     cfg.LeaseTTL,
			MaxAttempts:  cfg.MaxAttempts,
			WriteTimeout: remoteStore.Timeout(),
		},
	)
	if err != nil {
		return fmt.Errorf("build sync coordinator: %w", err)
	}

	if err := monitor.Start(ctx, func(ctx context.Context) bool {
		result, err := coordinator.RunPass(ctx)
		if err != nil {
			log.Printf("sync pass: %v", err)
			return true
		}
		return result.Failed > 0
	}); err != nil {
		return fmt.Errorf("start connectivity monitor: %w", err)
	}
	defer monitor.Stop()

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on engine port %d: %w", cfg.Port, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("outpost.engine", grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	log.Printf("engine server listening at %v", listener.Addr())
	<-ctx.Done()
	return nil
}
