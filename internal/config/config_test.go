package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, 20, cfg.MaxRetries)
	require.Equal(t, 600, cfg.CacheDurationSec)
	require.Equal(t, 86400, cfg.TranslationCacheTTLSec)
	require.Equal(t, 1000, cfg.KeyCacheSize)
	require.Equal(t, 20000, cfg.RequestTimeoutMS)
	require.Equal(t, 10, cfg.ParallelTranslationLimit)
	require.Equal(t, 50, cfg.BatchDelayMS)
	require.Equal(t, 100, cfg.RequestDedupTTLMS)
	require.Equal(t, "gemini-2.0-flash", cfg.GeminiModel)
	require.Equal(t, "https://generativelanguage.googleapis.com", cfg.GeminiBaseURL)
	require.Equal(t, "v1beta", cfg.GeminiAPIVersion)
	require.False(t, cfg.StoreConfigured())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MAX_RETRIES", "7")
	t.Setenv("CACHE_DURATION_SECONDS", "30")
	t.Setenv("REQUEST_TIMEOUT_MS", "1500")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("GEMINI_MODEL", "gemini-exp")

	cfg := Load()
	require.Equal(t, 7, cfg.MaxRetries)
	require.Equal(t, 30*time.Second, cfg.CredentialCacheTTL())
	require.Equal(t, 1500*time.Millisecond, cfg.RequestTimeout())
	require.True(t, cfg.StoreConfigured())
	require.Equal(t, "gemini-exp", cfg.GeminiModel)
}

func TestLoadIgnoresMalformedInts(t *testing.T) {
	t.Setenv("MAX_RETRIES", "not-a-number")
	cfg := Load()
	require.Equal(t, 20, cfg.MaxRetries)
}

func TestConfigFileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\nmax_retries: 5\n"), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("MAX_RETRIES", "9")

	cfg := Load()
	// The file overlays the environment.
	require.Equal(t, 5, cfg.MaxRetries)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestConfigFileOverlayBrokenFileIsIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{nope"), 0o644))
	t.Setenv("CONFIG_FILE", path)

	cfg := Load()
	require.Equal(t, 20, cfg.MaxRetries)
}
