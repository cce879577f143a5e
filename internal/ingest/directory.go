package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/certificate-verifier/constants"
)

// AllowedExt reports whether path carries an accepted certificate extension.
func AllowedExt(path string) bool {
	return constants.IsAllowedExt(filepath.Ext(path))
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

// WalkDirectory calls handle for every accepted file under root and collects
// per-file results. Per-file failures are recorded, not returned.
func WalkDirectory(ctx context.Context, root string, skipHidden bool, handle FileHandler, logger *slog.Logger) ([]FileResult, DirStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []FileResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(path) {
			return nil
		}
		stats.Matched++

		id, skipped, err := handle(ctx, path)
		switch {
		case err != nil:
			logger.Warn("ingest.dir.file_failed", "path", path, "error", err)
			results = append(results, FileResult{SourcePath: path, Err: err.Error()})
			stats.Failed++
		case skipped:
			results = append(results, FileResult{SourcePath: path, CertificateID: id, Skipped: true})
			stats.Skipped++
		default:
			results = append(results, FileResult{SourcePath: path, CertificateID: id})
			stats.Succeeded++
		}
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	logger.Info("ingest.dir.done", "root", root,
		"matched", stats.Matched, "succeeded", stats.Succeeded, "skipped", stats.Skipped, "failed", stats.Failed)
	return results, stats, nil
}
