package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/certificate-verifier/internal/app"
	"github.com/joseph-ayodele/certificate-verifier/internal/common"
	"github.com/joseph-ayodele/certificate-verifier/internal/ocr"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runocr <certificate.pdf|png|jpg|...>")
		os.Exit(2)
	}
	path := os.Args[1]

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.OCR.Timeout)
	defer cancel()

	extractor := ocr.NewExtractor(app.OCRConfig(cfg.OCR), logger)

	start := time.Now()
	res, err := extractor.Extract(ctx, path)
	dur := time.Since(start)
	if err != nil {
		logger.Error("text extraction failed",
			"path", path, "error", err, "code", common.CodeOf(err), "duration_ms", dur.Milliseconds())
		os.Exit(1)
	}

	logger.Info("text extraction OK",
		"method", res.Method,
		"pages", res.Pages,
		"bytes", len(res.Text),
		"confidence", res.Confidence,
		"warnings", len(res.Warnings),
		"duration_ms", dur.Milliseconds(),
	)
	fmt.Println(res.Text)
}
