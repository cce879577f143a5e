package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/certificate-verifier/internal/app"
	"github.com/joseph-ayodele/certificate-verifier/internal/async"
	"github.com/joseph-ayodele/certificate-verifier/internal/common"
	"github.com/joseph-ayodele/certificate-verifier/internal/server"
)

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := common.NewLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	if !cfg.LLM.AIConfigured() {
		logger.Warn("OPENAI_API_KEY not set", "fallback_enabled", cfg.LLM.FallbackEnabled)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	queue := async.NewProcessorQueue(a.Processor, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(3*time.Minute),
	)

	h := server.NewHandler(server.Deps{
		Pipeline:     a.Processor,
		Uploads:      a.Uploads,
		Certs:        a.Certs,
		Fields:       a.Fields,
		Exports:      a.Exports,
		Queue:        queue,
		DB:           a.DB,
		Registry:     a.Verifier,
		AIConfigured: cfg.LLM.AIConfigured(),
		CORSOrigins:  cfg.Server.CORSOrigins,
		Logger:       logger,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           server.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// gRPC health for orchestrators
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	go func() {
		logger.Info("grpc.health.listen", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()

	if err := server.Serve(ctx, srv, 15*time.Second, logger); err != nil {
		logger.Error("http server error", "error", err)
	}

	healthServer.Shutdown()
	grpcServer.GracefulStop()
	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	queue.Shutdown(drainCtx)
	logger.Info("stopped")
}
