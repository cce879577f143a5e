package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joseph-ayodele/certificate-verifier/internal/app"
	"github.com/joseph-ayodele/certificate-verifier/internal/common"
	"github.com/joseph-ayodele/certificate-verifier/internal/llm/openai"
)

// runllm sends an OCR text file through field extraction and summary, N times.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		logger.Error("usage: runllm <ocr_text_file> [times]")
		os.Exit(2)
	}
	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		logger.Error("read text file", "path", os.Args[1], "error", err)
		os.Exit(2)
	}
	times := 1
	if len(os.Args) >= 3 {
		if n, err := strconv.Atoi(os.Args[2]); err == nil && n > 0 {
			times = n
		}
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	engine := openai.SelectEngine(app.LLMConfig(cfg.LLM), cfg.LLM.FallbackEnabled, logger)
	logger.Info("engine selected", "mode", engine.Mode(), "model", cfg.LLM.Model)

	failures := 0
	for i := 1; i <= times; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.LLM.Timeout)
		start := time.Now()

		fields, _, err := engine.ExtractFields(ctx, string(data))
		if err != nil {
			cancel()
			failures++
			logger.Error("llm.run.extract.error", "iter", i, "error", err, "code", common.CodeOf(err))
			continue
		}
		summary, err := engine.Summarize(ctx, fields)
		cancel()
		if err != nil {
			failures++
			logger.Error("llm.run.summary.error", "iter", i, "error", err, "code", common.CodeOf(err))
			continue
		}

		logger.Info("llm.run.ok", "iter", i, "present", fields.Present(), "elapsed_ms", time.Since(start).Milliseconds())
		out, _ := json.MarshalIndent(map[string]any{"fields": fields, "summary": summary}, "", "  ")
		fmt.Println(string(out))
	}

	if failures > 0 {
		os.Exit(1)
	}
}
