package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"project-hub/auth"
	"project-hub/domain"
	"project-hub/infrastructure/http/server"
	"project-hub/internal"
	"project-hub/observability"
	"project-hub/repositories"
	"project-hub/runtime"
	"project-hub/runtime/workers"
	"project-hub/services"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const shutdownTimeout = 10 * time.Second

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "project-hub terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// Returning instead of exiting lets every defer (database close first) run.
func run() (int, error) {
	// 1. Configuration & Logger
	config, err := internal.LoadConfig()
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, log, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := observability.NewMetrics(reg)
	if err := observability.RegisterProcessGauge(reg); err != nil {
		log.Warn("Process gauge unavailable", "error", err)
	}

	// 4. Scheduler
	sender, err := buildSender(config, log)
	if err != nil {
		return exitConfig, err
	}
	jobRepository := repositories.NewJobRepository(db, log, config.JobRetention)
	scheduler := runtime.NewScheduler(log, jobRepository, metrics, config.AttemptsAllowed)
	scheduler.RegisterHandler(domain.ReminderKind, services.NewReminderHandler(log, sender))

	// 5. Realtime core & supervision
	registry := runtime.NewRegistry()
	observability.RegisterConnectionGauge(reg, registry.Count)
	orchestrator := runtime.NewOrchestrator(log, workers.NewSupervisor(log, config.RestartInterval),
		registry, scheduler, metrics, runtime.OrchestratorConfig{
			BufferSize:      config.BufferSize,
			NumberOfWorkers: config.NumberOfWorkers,
			PollInterval:    config.PollInterval,
			PollBatchSize:   config.PollBatchSize,
			MetricInterval:  config.MetricInterval,
		})
	membership := runtime.NewMembership(log, registry, repositories.NewRoomRepository(db))
	realtime := services.NewRealtimeService(log, registry, membership, orchestrator.Broadcaster())
	reminders := services.NewReminderService(log, scheduler)

	workersDone := make(chan struct{})
	go func() {
		orchestrator.Start(ctx)
		close(workersDone)
	}()

	// 6. HTTP server (websocket + internal API)
	ready := func() error {
		if db.IsClosed() {
			return errors.New("badger is closed")
		}
		return nil
	}
	api := server.NewServer(log, realtime, reminders, auth.NewTokenManager(config.JWTSecret), reg, ready,
		server.Config{
			AllowedOrigins:       config.Origins(),
			ConnectionBufferSize: config.ConnectionBufferSize,
			WriteTimeout:         config.WriteTimeout,
			PingInterval:         config.PingInterval,
		})
	router := api.Router(ctx)
	if log.Enabled(ctx, slog.LevelDebug) {
		router.HandleFunc("/debug/inspect", internal.InspectHandler(db, jobMapper)).Methods(http.MethodGet)
		log.Info("Debug Badger inspector available", "path", "/debug/inspect")
	}
	address := net.JoinHostPort(config.Host, fmt.Sprint(config.Port))
	httpServer := &http.Server{Addr: address, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	// 7. gRPC health probe
	grpcAddress := net.JoinHostPort(config.Host, fmt.Sprint(config.GrpcPort))
	listener, err := net.Listen("tcp", grpcAddress)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", grpcAddress, err)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	errChan := make(chan error, 2)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()
	go func() {
		log.Info("Starting gRPC health server", "address", grpcAddress)
		if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	code := exitOK
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err = <-errChan:
		log.Error("Server failed, shutting down", "error", err)
		code = exitRuntime
	}

	// 9. Final Cleanup
	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warn("HTTP shutdown incomplete", "error", shutdownErr)
	}
	grpcServer.GracefulStop()
	orchestrator.Stop()
	stop()
	<-workersDone
	log.Info("Program stopped cleanly")

	return code, err
}
