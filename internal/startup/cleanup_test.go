package startup

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	if age > 0 {
		old := time.Now().Add(-age)
		require.NoError(t, os.Chtimes(path, old, old))
	}
	return path
}

func TestCleanupTempFilesRemovesStaleOnly(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.DiscardHandler)

	stale := writeTempFile(t, dir, "20250101_18.mkv", 48*time.Hour)
	fresh := writeTempFile(t, dir, "20250102_10.srt", 0)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))

	removed, err := CleanupTempFiles(logger, dir, DefaultCleanupAge)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
	assert.DirExists(t, filepath.Join(dir, "subdir"))
}

func TestCleanupTempFilesMissingDir(t *testing.T) {
	removed, err := CleanupTempFiles(slog.New(slog.DiscardHandler),
		filepath.Join(t.TempDir(), "missing"), DefaultCleanupAge)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
