package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joseph-ayodele/certificate-verifier/internal/app"
	"github.com/joseph-ayodele/certificate-verifier/internal/common"
	"github.com/joseph-ayodele/certificate-verifier/internal/ingest"
	"github.com/joseph-ayodele/certificate-verifier/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir      = flag.String("dir", "", "directory of certificates to process (required)")
		out      = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		useEnvDB = flag.Bool("env-db", false, "use DB_DRIVER/DB_URL instead of a temporary SQLite file")
		uploads  = flag.String("uploads", "", "where processed copies are stored (defaults to UPLOAD_DIR)")
		watch    = flag.Bool("watch", false, "keep processing new files until interrupted")
		debounce = flag.Duration("debounce", 2*time.Second, "quiet period before a changed file is processed in -watch mode")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(filepath.Clean(*dir)), "certificates.xlsx")
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	cfg.LLM.FallbackEnabled = true
	logger := common.NewLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)

	if !*useEnvDB {
		tmp, err := os.MkdirTemp("", "certificate-batch-")
		if err != nil {
			logger.Error("failed to create temp dir", "error", err)
			os.Exit(1)
		}
		defer os.RemoveAll(tmp)
		cfg.Database.Driver = repository.DriverSQLite
		cfg.Database.DSN = repository.SQLiteDSN(filepath.Join(tmp, "certificates.db"))
	}
	if *uploads != "" {
		cfg.Storage.UploadDir = *uploads
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	handle := fileHandler(a)

	logger.Info("starting batch", "dir", *dir, "mode", a.Engine.Mode())
	results, stats, err := ingest.WalkDirectory(ctx, *dir, true, handle, logger)
	if err != nil {
		logger.Error("failed to process directory", "error", err)
		os.Exit(1)
	}
	for _, r := range results {
		if r.Err != "" {
			logger.Warn("file failed", "path", r.SourcePath, "error", r.Err)
		}
	}
	logger.Info("directory processed",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"skipped", stats.Skipped,
		"failed", stats.Failed)

	if *watch {
		if err := watchDir(ctx, *dir, *debounce, handle, logger); err != nil {
			logger.Error("watch failed", "error", err)
		}
	}

	// a fresh context: the signal context is already done after -watch
	exportCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	xlsx, err := a.Exports.CertificatesXLSX(exportCtx)
	if err != nil {
		logger.Error("failed to export certificates", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsx, 0o644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Processed: %d\n", stats.Succeeded)
	fmt.Printf("- Duplicates skipped: %d\n", stats.Skipped)
	fmt.Printf("- Failures: %d\n", stats.Failed)
	fmt.Printf("- Output: %s\n", *out)
}

// fileHandler copies one file into storage and runs the pipeline on it.
// Files whose content is already stored are skipped.
func fileHandler(a *app.App) ingest.FileHandler {
	return func(ctx context.Context, path string) (string, bool, error) {
		hash, err := ingest.HashFile(path)
		if err != nil {
			return "", false, err
		}
		existing, err := a.Certs.GetByHash(ctx, hash)
		switch {
		case err == nil:
			return existing.ID.String(), true, nil
		case !errors.Is(err, common.ErrNotFound):
			return "", false, err
		}

		st, err := a.Uploads.SaveFile(ctx, path)
		if err != nil {
			return "", false, err
		}
		res, err := a.Processor.Process(ctx, st)
		if err != nil {
			_ = os.Remove(st.Path)
			return "", false, err
		}
		return res.Certificate.ID.String(), false, nil
	}
}

func watchDir(ctx context.Context, dir string, debounce time.Duration, handle ingest.FileHandler, logger *slog.Logger) error {
	paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:    []string{dir},
		Debounce: debounce,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	logger.Info("watching for new certificates", "dir", dir)
	for {
		select {
		case p, ok := <-paths:
			if !ok {
				return nil
			}
			if ingest.IsHidden(p) {
				continue
			}
			id, skipped, err := handle(ctx, p)
			switch {
			case err != nil:
				logger.Error("watch.file.failed", "path", p, "error", err)
			case skipped:
				logger.Info("watch.file.skipped", "path", p, "certificate_id", id)
			default:
				logger.Info("watch.file.ok", "path", p, "certificate_id", id)
			}
		case err, ok := <-errs:
			if ok && err != nil {
				logger.Warn("watcher error", "error", err)
			}
		}
	}
}
