package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"area-bot/internal/domain/entity"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir()) // без .env
	t.Setenv("SERVER_MODE", "debug")
	for _, k := range []string{"SEGMENTER_TIMEOUT", "DISPLAY_WIDTH", "REDIS_DB", "SESSION_TTL", "MAX_UPLOAD_BYTES"} {
		t.Setenv(k, "")
	}
	t.Setenv("HTTP_ADDR", ":8080")
	t.Setenv("DEFAULT_UNIT", "unit")
	t.Setenv("SCRATCH_DIR", "./images")
	t.Setenv("SEGMENTER_URL", "http://localhost:8000")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 700, cfg.DisplayWidth)
	require.Equal(t, 60*time.Second, cfg.SegmenterTimeout)
	require.Equal(t, 24*time.Hour, cfg.SessionTTL)
	require.Equal(t, int64(20<<20), cfg.MaxUploadBytes)
	require.Equal(t, "unit", cfg.DefaultUnit)
}

func TestLoad_Overrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SERVER_MODE", "debug")
	t.Setenv("DISPLAY_WIDTH", "512")
	t.Setenv("SEGMENTER_TIMEOUT", "5s")
	t.Setenv("DEFAULT_UNIT", "µm")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 512, cfg.DisplayWidth)
	require.Equal(t, 5*time.Second, cfg.SegmenterTimeout)
	require.Equal(t, "µm", cfg.DefaultUnit)
	require.Equal(t, "localhost:6379", cfg.RedisAddr)
}

func TestLoad_InvalidValues(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SERVER_MODE", "debug")
	t.Setenv("DEFAULT_UNIT", "unit")
	t.Setenv("SESSION_TTL", "")

	t.Setenv("DISPLAY_WIDTH", "wide")
	_, err := Load()
	require.ErrorContains(t, err, "DISPLAY_WIDTH")

	t.Setenv("DISPLAY_WIDTH", "0")
	_, err = Load()
	require.ErrorContains(t, err, "must be positive")

	t.Setenv("DISPLAY_WIDTH", "700")
	t.Setenv("SERVER_MODE", "prod")
	_, err = Load()
	require.ErrorContains(t, err, "SERVER_MODE")

	t.Setenv("SERVER_MODE", "release")
	t.Setenv("SESSION_TTL", "forever")
	_, err = Load()
	require.ErrorContains(t, err, "SESSION_TTL")

	t.Setenv("SESSION_TTL", "")
	for _, unit := range []string{"", "square mm", "abcdefghijklmnopq"} {
		t.Setenv("DEFAULT_UNIT", unit)
		_, err = Load()
		require.ErrorIs(t, err, entity.ErrInvalidUnit, "unit %q", unit)
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
