package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/kelseyhightower/envconfig"
)

// maxSearchLimit caps how many candidates a single search may return.
const maxSearchLimit = 30

// Config struct for environment variables.
type Config struct {
	LibraryDir string `envconfig:"LIBRARY_DIR" required:"true"`
	CacheDir   string `envconfig:"CACHE_DIR" required:"true"`
	DBPath     string `envconfig:"DB_PATH"`

	SearchLimit      int           `envconfig:"SEARCH_LIMIT" default:"10"`
	SearchCacheTTL   time.Duration `envconfig:"SEARCH_CACHE_TTL" default:"5m"`
	MaxTrackDuration time.Duration `envconfig:"MAX_TRACK_DURATION" default:"15m"`
	MaxParallel      int           `envconfig:"MAX_PARALLEL" default:"4"`

	KeepCacheFor    time.Duration `envconfig:"KEEP_CACHE_FOR" default:"24h"`
	CleanupInterval time.Duration `envconfig:"CLEANUP_INTERVAL" default:"30m"`

	LogLevel      string `envconfig:"LOG_LEVEL" default:"INFO"`
	WebhookURL    string `envconfig:"WEBHOOK_URL"`
	LyricsBaseURL string `envconfig:"LYRICS_BASE_URL" default:"https://lrclib.net"`

	MediaScanURL   string `envconfig:"MEDIA_SCAN_URL"`
	MediaScanToken string `envconfig:"MEDIA_SCAN_TOKEN"`

	Web struct {
		BindAddress     string        `split_words:"true" default:"0.0.0.0:8080"`
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		WriteTimeout    time.Duration `split_words:"true" default:"0"`
		IdleTimeout     time.Duration `split_words:"true" default:"120s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	}

	Telemetry struct {
		Enabled        bool   `split_words:"true" default:"true"`
		ServiceName    string `split_words:"true" default:"tunecrate"`
		ServiceVersion string `split_words:"true" default:"dev"`
		OTLPEndpoint   string `split_words:"true"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.CacheDir, "tunecrate.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate enforces the bounds that envconfig tags cannot express.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LibraryDir, validation.Required),
		validation.Field(&c.CacheDir, validation.Required),
		validation.Field(&c.SearchLimit, validation.Min(1), validation.Max(maxSearchLimit)),
		validation.Field(&c.MaxParallel, validation.Min(1)),
	)
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
