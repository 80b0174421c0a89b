package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aferrazza/tunecrate/internal/catalog"
	"github.com/aferrazza/tunecrate/internal/library"
	"github.com/aferrazza/tunecrate/internal/logctx"
	"github.com/aferrazza/tunecrate/internal/tagger"
	"github.com/aferrazza/tunecrate/internal/telemetry"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/singleflight"
)

const (
	StatusDownloaded = "downloaded"
	StatusExists     = "exists"

	coverFetchTimeout = 10 * time.Second
	maxCoverBytes     = 5 << 20

	eventBuffer = 16
)

var ErrUnrecognizedSource = errors.New("unrecognized source url")

var (
	watchIDPattern = regexp.MustCompile(`(?:v=|youtu\.be/)([A-Za-z0-9_-]{11})`)
	bareIDPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
)

// ExtractID derives the external track id from a source URL or a bare id.
func ExtractID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)

	if m := watchIDPattern.FindStringSubmatch(raw); m != nil {
		return m[1], nil
	}

	if bareIDPattern.MatchString(raw) {
		return raw, nil
	}

	return "", ErrUnrecognizedSource
}

// Result reports the outcome of a download request.
type Result struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	Status string `json:"status"`
}

// Event describes a finished or failed download for downstream consumers.
type Event struct {
	ID     string
	Title  string
	Artist string
	Err    error
}

// TagWriter embeds metadata into a finished audio file.
type TagWriter interface {
	Write(ctx context.Context, path string, meta tagger.Metadata) error
}

// ProgressTracker exposes per-track completion to the progress endpoint.
type ProgressTracker interface {
	Set(id string, percent float64)
	Done(id string)
}

// Runner drives the download pipeline: fetch and transcode into the
// work directory, embed tags and cover art, then finalize into the
// library root.
type Runner struct {
	store      *library.Store
	fetcher    catalog.Fetcher
	tags       TagWriter
	tracker    ProgressTracker
	telemetry  *telemetry.Telemetry
	httpClient *http.Client

	group singleflight.Group

	OnDownloadFinished chan Event
	OnDownloadFailed   chan Event
}

func NewRunner(
	store *library.Store,
	fetcher catalog.Fetcher,
	tags TagWriter,
	tracker ProgressTracker,
	tel *telemetry.Telemetry,
) *Runner {
	return &Runner{
		store:      store,
		fetcher:    fetcher,
		tags:       tags,
		tracker:    tracker,
		telemetry:  tel,
		httpClient: &http.Client{Timeout: coverFetchTimeout},

		OnDownloadFinished: make(chan Event, eventBuffer),
		OnDownloadFailed:   make(chan Event, eventBuffer),
	}
}

func (r *Runner) Close() {
	close(r.OnDownloadFinished)
	close(r.OnDownloadFailed)
}

// Download resolves the track id and runs the pipeline. It is
// idempotent per id, and concurrent requests for the same id share a
// single in-flight run.
func (r *Runner) Download(ctx context.Context, rawURL string) (*Result, error) {
	logger := logctx.LoggerFromContext(ctx)

	id, err := ExtractID(rawURL)
	if err != nil {
		return nil, err
	}

	if entry, err := r.store.Find(id); err == nil {
		logger.Debug("track already in library", "track_id", id)

		return &Result{ID: id, Path: entry.Path, Status: StatusExists}, nil
	} else if !errors.Is(err, library.ErrNotFound) {
		return nil, fmt.Errorf("failed to check library: %w", err)
	}

	value, err, shared := r.group.Do(id, func() (interface{}, error) {
		var result *Result

		instrumentedErr := r.telemetry.InstrumentDownload(ctx, func(ctx context.Context) error {
			var runErr error
			result, runErr = r.run(ctx, id)

			return runErr
		})
		if instrumentedErr != nil {
			return nil, instrumentedErr
		}

		return result, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		logger.Debug("joined in-flight download", "track_id", id)
	}

	return value.(*Result), nil
}

func (r *Runner) run(ctx context.Context, id string) (*Result, error) {
	logger := logctx.LoggerFromContext(ctx).With("track_id", id)

	r.tracker.Set(id, 0)
	defer r.tracker.Done(id)

	started := time.Now()

	fetched, err := r.fetcher.Fetch(ctx, id, func(externalID string, percent float64) {
		r.tracker.Set(externalID, percent)
	})
	if err != nil {
		r.emit(r.OnDownloadFailed, Event{ID: id, Err: err})

		return nil, fmt.Errorf("failed to fetch track: %w", err)
	}

	r.applyTags(ctx, fetched)

	target := r.store.PathFor(fetched.Artist, fetched.Title, id)

	if err := moveFile(fetched.Path, target); err != nil {
		r.emit(r.OnDownloadFailed, Event{ID: id, Err: err})

		return nil, fmt.Errorf("failed to finalize track: %w", err)
	}

	var size int64
	if info, err := os.Stat(target); err == nil {
		size = info.Size()
	}

	logger.Info("track added to library",
		"target", target,
		"file_size", humanize.Bytes(uint64(size)),
		"duration_ms", time.Since(started).Milliseconds())

	r.emit(r.OnDownloadFinished, Event{ID: id, Title: fetched.Title, Artist: fetched.Artist})

	return &Result{ID: id, Path: target, Status: StatusDownloaded}, nil
}

// applyTags embeds metadata and cover art. Failures here are logged and
// counted but never fail the download; the audio file must survive.
func (r *Runner) applyTags(ctx context.Context, fetched *catalog.FetchResult) {
	logger := logctx.LoggerFromContext(ctx).With("track_id", fetched.ExternalID)

	meta := tagger.Metadata{
		Title:    fetched.Title,
		Artist:   fetched.Artist,
		Duration: fetched.Duration,
	}

	if fetched.Thumbnail != "" {
		cover, mime, err := r.fetchCover(ctx, fetched.Thumbnail)
		if err != nil {
			logger.Warn("failed to fetch cover art", "err", err)
		} else {
			meta.Cover = cover
			meta.CoverMIME = mime
		}
	}

	if err := r.tags.Write(ctx, fetched.Path, meta); err != nil {
		logger.Warn("failed to write tags", "err", err)

		r.telemetry.RecordTagWrite("error")

		return
	}

	r.telemetry.RecordTagWrite("success")
}

func (r *Runner) fetchCover(ctx context.Context, thumbURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, thumbURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build cover request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch cover: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status code %d fetching cover", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCoverBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read cover body: %w", err)
	}

	mime := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}

	return body, mime, nil
}

// emit never blocks; a slow or absent consumer must not wedge a download.
func (r *Runner) emit(ch chan Event, event Event) {
	select {
	case ch <- event:
	default:
	}
}

// moveFile renames src to dst, falling back to a staged copy plus
// rename when the two paths live on different filesystems. A partial
// file never lands at dst.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}

	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".finalize-*")
	if err != nil {
		return fmt.Errorf("failed to create staging file: %w", err)
	}

	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()

		return fmt.Errorf("failed to copy file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()

		return fmt.Errorf("failed to sync staging file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close staging file: %w", err)
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}

	if err := os.Remove(src); err != nil {
		return fmt.Errorf("failed to remove source file: %w", err)
	}

	return nil
}
