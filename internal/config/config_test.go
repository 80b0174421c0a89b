package config

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("LIBRARY_DIR", "/music")
	t.Setenv("CACHE_DIR", "/tmp/cache")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "/music", cfg.LibraryDir)
	assert.Equal(t, "/tmp/cache", cfg.CacheDir)
	assert.Equal(t, filepath.Join("/tmp/cache", "tunecrate.db"), cfg.DBPath)
	assert.Equal(t, 10, cfg.SearchLimit)
	assert.Equal(t, 5*time.Minute, cfg.SearchCacheTTL)
	assert.Equal(t, 15*time.Minute, cfg.MaxTrackDuration)
	assert.Equal(t, 4, cfg.MaxParallel)
	assert.Equal(t, 24*time.Hour, cfg.KeepCacheFor)
	assert.Equal(t, 30*time.Minute, cfg.CleanupInterval)
	assert.Equal(t, "https://lrclib.net", cfg.LyricsBaseURL)
	assert.Equal(t, "0.0.0.0:8080", cfg.Web.BindAddress)
	assert.Equal(t, 30*time.Second, cfg.Web.ReadTimeout)
	assert.Equal(t, time.Duration(0), cfg.Web.WriteTimeout)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "tunecrate", cfg.Telemetry.ServiceName)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("LIBRARY_DIR", "/srv/music")
	t.Setenv("CACHE_DIR", "/srv/cache")
	t.Setenv("DB_PATH", "/srv/data/app.db")
	t.Setenv("SEARCH_LIMIT", "25")
	t.Setenv("MAX_TRACK_DURATION", "10m")
	t.Setenv("WEB_BIND_ADDRESS", "127.0.0.1:9000")
	t.Setenv("WEB_WRITE_TIMEOUT", "2m")
	t.Setenv("TELEMETRY_ENABLED", "false")
	t.Setenv("TELEMETRY_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("MEDIA_SCAN_URL", "http://navidrome:4533/api/scanner/scan")
	t.Setenv("MEDIA_SCAN_TOKEN", "secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "/srv/data/app.db", cfg.DBPath)
	assert.Equal(t, 25, cfg.SearchLimit)
	assert.Equal(t, 10*time.Minute, cfg.MaxTrackDuration)
	assert.Equal(t, "127.0.0.1:9000", cfg.Web.BindAddress)
	assert.Equal(t, 2*time.Minute, cfg.Web.WriteTimeout)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "collector:4317", cfg.Telemetry.OTLPEndpoint)
	assert.Equal(t, "http://navidrome:4533/api/scanner/scan", cfg.MediaScanURL)
	assert.Equal(t, "secret", cfg.MediaScanToken)
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	t.Setenv("LIBRARY_DIR", "")
	t.Setenv("CACHE_DIR", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_SearchLimitBounds(t *testing.T) {
	tests := []struct {
		name    string
		limit   string
		wantErr bool
	}{
		{name: "at cap", limit: "30", wantErr: false},
		{name: "above cap", limit: "31", wantErr: true},
		{name: "zero", limit: "0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LIBRARY_DIR", "/music")
			t.Setenv("CACHE_DIR", "/tmp/cache")
			t.Setenv("SEARCH_LIMIT", tt.limit)

			_, err := LoadConfig()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{level: "DEBUG", want: slog.LevelDebug},
		{level: "debug", want: slog.LevelDebug},
		{level: "INFO", want: slog.LevelInfo},
		{level: "WARN", want: slog.LevelWarn},
		{level: "ERROR", want: slog.LevelError},
		{level: "bogus", want: slog.LevelInfo},
		{level: "", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := Config{LogLevel: tt.level}
			assert.Equal(t, tt.want, cfg.SlogLevel())
		})
	}
}
