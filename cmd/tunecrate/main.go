package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aferrazza/tunecrate/internal/catalog"
	"github.com/aferrazza/tunecrate/internal/catalog/youtube"
	"github.com/aferrazza/tunecrate/internal/cleanup"
	"github.com/aferrazza/tunecrate/internal/config"
	"github.com/aferrazza/tunecrate/internal/downloader"
	"github.com/aferrazza/tunecrate/internal/downloader/progress"
	"github.com/aferrazza/tunecrate/internal/http/rest"
	"github.com/aferrazza/tunecrate/internal/library"
	"github.com/aferrazza/tunecrate/internal/logctx"
	"github.com/aferrazza/tunecrate/internal/lyrics"
	"github.com/aferrazza/tunecrate/internal/notifier"
	"github.com/aferrazza/tunecrate/internal/storage/sqlite"
	"github.com/aferrazza/tunecrate/internal/svc/mediascan"
	"github.com/aferrazza/tunecrate/internal/tagger"
	"github.com/aferrazza/tunecrate/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/joho/godotenv/autoload"
	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const searchCacheEntries = 100

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger := slog.New(logctx.NewTraceHandler(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("tunecrate starting...", "log_level", cfg.LogLevel)

	if err := run(logctx.WithLogger(ctx, logger), cfg); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to start telemetry: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown telemetry", "err", err)
		}
	}()

	// When a log pipeline is active, fan records out to stdout and the
	// collector.
	if otelHandler, ok := tel.SlogHandler(cfg.Telemetry.ServiceName); ok {
		logger = slog.New(slogmulti.Fanout(
			logctx.NewTraceHandler(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})),
			otelHandler,
		))
		slog.SetDefault(logger)
		ctx = logctx.WithLogger(ctx, logger)
	}

	// =========================================================================
	// Start Storage
	if err := os.MkdirAll(cfg.LibraryDir, 0o755); err != nil {
		return fmt.Errorf("failed to create library dir: %w", err)
	}

	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}

	database, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	favorites := sqlite.NewInstrumentedFavoriteRepository(database, tel)
	playlists := sqlite.NewInstrumentedPlaylistRepository(database, tel)
	history := sqlite.NewInstrumentedSearchHistoryRepository(database, tel)

	// =========================================================================
	// Start Catalog Source
	if err := youtube.Install(ctx); err != nil {
		return fmt.Errorf("failed to provision catalog source: %w", err)
	}

	source := catalog.NewInstrumentedClient(
		youtube.NewClient(cfg.CacheDir, cfg.SearchLimit, cfg.MaxTrackDuration),
		tel,
		"ytdlp",
	)
	searcher := catalog.NewCachingSearcher(source, cfg.SearchCacheTTL, searchCacheEntries)

	// =========================================================================
	// Start Download Pipeline
	store := library.NewStore(cfg.LibraryDir, cfg.MaxParallel)
	tracker := progress.NewTracker()

	runner := downloader.NewRunner(store, source, tagger.NewID3Writer(), tracker, tel)
	defer runner.Close()

	setupDownloadEvents(ctx, runner, cfg)

	// =========================================================================
	// Start Cache Cleanup
	setupCleanup(ctx, cfg)

	// =========================================================================
	// Start API Service

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	handler := rest.NewMusicHandler(
		searcher,
		source,
		runner,
		store,
		tracker,
		favorites,
		playlists,
		history,
		lyrics.NewClient(cfg.LyricsBaseURL),
		tel,
	)

	server := setupServer(ctx, handler, tel, cfg)

	go func() {
		logger.Info("initializing API support", "host", cfg.Web.BindAddress)
		serverErrors <- server.ListenAndServe()
	}()

	logger.Info("library ready",
		"library_dir", cfg.LibraryDir,
		"cache_dir", cfg.CacheDir,
		"search_limit", cfg.SearchLimit,
		"cache_retention", cfg.KeepCacheFor.String(),
	)

	// =========================================================================
	// Wait for Shutdown
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("start shutdown")

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to gracefully shutdown the server", "err", err)

			if err = server.Close(); err != nil {
				return fmt.Errorf("could not stop server gracefully: %w", err)
			}
		}

		return nil
	}
}

// setupDownloadEvents consumes the runner's event channels for logging,
// webhook notifications and media server rescans.
func setupDownloadEvents(ctx context.Context, runner *downloader.Runner, cfg *config.Config) {
	logger := logctx.LoggerFromContext(ctx)

	var notif notifier.Notifier
	if cfg.WebhookURL != "" {
		notif = notifier.NewWebhookNotifier(cfg.WebhookURL)
	}

	var scanner *mediascan.Client
	if cfg.MediaScanURL != "" {
		scanner = mediascan.NewClient(cfg.MediaScanURL, cfg.MediaScanToken)
	}

	go func() {
		for event := range runner.OnDownloadFailed {
			logger.Error("download failed", "id", event.ID, "err", event.Err)

			if notif == nil {
				continue
			}

			if notifyErr := notif.Notify("❌ Download failed: " + event.ID); notifyErr != nil {
				logger.Error("failed to send notification", "id", event.ID, "err", notifyErr)
			}
		}
	}()

	go func() {
		for event := range runner.OnDownloadFinished {
			logger.Info("download finished", "id", event.ID, "title", event.Title, "artist", event.Artist)

			if notif != nil {
				if notifyErr := notif.Notify("✅ Added to library: " + event.Artist + " - " + event.Title); notifyErr != nil {
					logger.Error("failed to send notification", "id", event.ID, "err", notifyErr)
				}
			}

			if scanner != nil {
				if scanErr := scanner.TriggerScan(ctx); scanErr != nil {
					logger.Warn("failed to trigger media scan", "err", scanErr)
				}
			}
		}
	}()
}

// setupServer prepares the middleware chain and the http server.
func setupServer(ctx context.Context, handler *rest.MusicHandler, tel *telemetry.Telemetry, cfg *config.Config) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(telemetry.RequestID)
	r.Use(telemetry.NewHTTPMiddleware(tel).Middleware)
	r.Use(telemetry.HTTPLogging)
	r.Use(middleware.Recoverer)
	// Audio streams stay uncompressed so range requests pass through intact.
	r.Use(middleware.Compress(5, "application/json", "text/html"))

	r.Handle("/metrics", tel.Handler())
	r.Mount("/", handler.Routes())

	return &http.Server{
		Addr:         cfg.Web.BindAddress,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		Handler:      otelhttp.NewHandler(r, "tunecrate"),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}

func setupCleanup(ctx context.Context, cfg *config.Config) {
	logger := logctx.LoggerFromContext(ctx)

	if cfg.CleanupInterval <= 0 {
		logger.Info("cache cleanup disabled")

		return
	}

	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Info("cleanup goroutine shutting down.")

				return
			case <-ticker.C:
				if err := cleanup.DeleteStaleArtifacts(ctx, cfg.CacheDir, cfg.KeepCacheFor); err != nil {
					logger.Error("failed to delete stale cache artifacts", "err", err)
				}
			}
		}
	}()
}
