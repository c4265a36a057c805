// Package startup provides utilities for daemon startup tasks.
package startup

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// DefaultCleanupAge is the default maximum age for leftover temp files.
const DefaultCleanupAge = 24 * time.Hour

// CleanupTempFiles removes intermediate files left in the temp
// directory by a previous run that crashed mid-edit. Files newer than
// maxAge are kept since an edit pipeline may still be producing them.
//
// Returns the number of files removed.
func CleanupTempFiles(logger *slog.Logger, tempDir string, maxAge time.Duration) (int, error) {
	if _, err := os.Stat(tempDir); os.IsNotExist(err) {
		logger.Debug("temp directory does not exist, skipping cleanup",
			slog.String("path", tempDir))
		return 0, nil
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	var removed int

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(tempDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			logger.Warn("failed to stat temp file",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(path); err != nil {
			logger.Warn("failed to remove stale temp file",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}

		logger.Info("removed stale temp file",
			slog.String("path", path),
			slog.Duration("age", time.Since(info.ModTime()).Round(time.Second)))
		removed++
	}

	return removed, nil
}
