package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/certificate-verifier/internal/common"
	"github.com/joseph-ayodele/certificate-verifier/internal/registry"
	"github.com/joseph-ayodele/certificate-verifier/internal/server"
)

func main() {
	_ = godotenv.Load()
	var (
		addr   = flag.String("addr", ":"+envOr("REGISTRY_PORT", "3000"), "listen address")
		dbPath = flag.String("db", envOr("REGISTRY_DB", "./data/certificates.json"), "registry JSON file (seeded when missing)")
	)
	flag.Parse()

	logger := common.NewLogger(os.Stdout, common.LogConfig{
		Level:  envOr("LOG_LEVEL", "info"),
		Format: envOr("LOG_FORMAT", "text"),
	})
	slog.SetDefault(logger)

	store, err := registry.Open(*dbPath, logger)
	if err != nil {
		logger.Error("failed to open registry", "path", *dbPath, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           registry.NewRouter(registry.NewHandler(store, logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := server.Serve(ctx, srv, 10*time.Second, logger); err != nil {
		logger.Error("registry server error", "error", err)
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
