package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/aferrazza/tunecrate/internal/catalog"
	"github.com/aferrazza/tunecrate/internal/logctx"
)

const (
	sourceName       = "ytdlp"
	watchURLTemplate = "https://www.youtube.com/watch?v=%s"
	searchTemplate   = "ytsearch%d:%s"
)

// Client resolves searches, playlist expansions and track fetches through the
// yt-dlp binary. Fetched tracks are transcoded to 320kbps MP3 inside workDir,
// named after the track id so retries overwrite instead of piling up.
type Client struct {
	workDir     string
	searchLimit int
	maxDuration time.Duration
}

// NewClient creates a catalog client backed by yt-dlp. maxDuration drops
// overlong candidates from search and playlist results; zero disables the
// filter.
func NewClient(workDir string, searchLimit int, maxDuration time.Duration) *Client {
	return &Client{
		workDir:     workDir,
		searchLimit: searchLimit,
		maxDuration: maxDuration,
	}
}

// Install provisions the yt-dlp binary, downloading a pinned release when the
// host has none. Must complete once before any Client call.
func Install(ctx context.Context) error {
	if _, err := ytdlp.Install(ctx, nil); err != nil {
		return fmt.Errorf("failed to provision yt-dlp: %w", err)
	}

	return nil
}

// sourceItem is one JSON line of yt-dlp dump output. Flat playlist entries
// carry a subset of these fields; absent ones stay zero.
type sourceItem struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Channel    string  `json:"channel"`
	Uploader   string  `json:"uploader"`
	Duration   float64 `json:"duration"`
	Thumbnail  string  `json:"thumbnail"`
	Thumbnails []struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
}

func (c *Client) Search(ctx context.Context, query string, limit int) ([]catalog.TrackCandidate, error) {
	logger := logctx.LoggerFromContext(ctx)

	if limit <= 0 {
		limit = c.searchLimit
	}

	if limit > catalog.MaxSearchResults {
		limit = catalog.MaxSearchResults
	}

	dl := ytdlp.New().
		DumpJSON().
		FlatPlaylist().
		SkipDownload()

	result, err := dl.Run(ctx, fmt.Sprintf(searchTemplate, limit, query))
	if err != nil {
		return nil, &catalog.UnavailableError{Source: sourceName, Operation: "search", Err: err}
	}

	candidates, parsed, total := c.parseCandidates(ctx, result.Stdout)
	if total > 0 && parsed == 0 {
		return nil, &catalog.UnavailableError{
			Source:    sourceName,
			Operation: "search",
			Err:       fmt.Errorf("no parseable entries in %d output lines", total),
		}
	}

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	logger.DebugContext(ctx, "catalog search completed", "query", query, "candidates", len(candidates))

	return candidates, nil
}

func (c *Client) Enumerate(ctx context.Context, playlistURL string) ([]catalog.TrackCandidate, error) {
	logger := logctx.LoggerFromContext(ctx)

	dl := ytdlp.New().
		DumpJSON().
		FlatPlaylist().
		SkipDownload()

	result, err := dl.Run(ctx, playlistURL)
	if err != nil {
		return nil, &catalog.UnavailableError{Source: sourceName, Operation: "enumerate", Err: err}
	}

	candidates, parsed, total := c.parseCandidates(ctx, result.Stdout)
	if total > 0 && parsed == 0 {
		return nil, &catalog.UnavailableError{
			Source:    sourceName,
			Operation: "enumerate",
			Err:       fmt.Errorf("no parseable entries in %d output lines", total),
		}
	}

	logger.DebugContext(ctx, "playlist enumerated", "url", playlistURL, "candidates", len(candidates))

	return candidates, nil
}

func (c *Client) Fetch(ctx context.Context, externalID string, onProgress catalog.ProgressFunc) (*catalog.FetchResult, error) {
	logger := logctx.LoggerFromContext(ctx)

	dl := ytdlp.New().
		Format("bestaudio/best").
		ExtractAudio().
		AudioFormat("mp3").
		AudioQuality("0").
		PostProcessorArgs("ffmpeg:-b:a 320k").
		NoPlaylist().
		ForceOverwrites().
		PrintJSON().
		Output(filepath.Join(c.workDir, "%(id)s.%(ext)s"))

	if onProgress != nil {
		dl.ProgressFunc(500*time.Millisecond, func(update ytdlp.ProgressUpdate) {
			if update.TotalBytes > 0 {
				onProgress(externalID, float64(update.DownloadedBytes)/float64(update.TotalBytes)*100)
			}
		})
	}

	result, err := dl.Run(ctx, watchURL(externalID))
	if err != nil {
		c.removeArtifacts(externalID)

		return nil, &catalog.ExtractError{ExternalID: externalID, Stage: "fetch", Err: err}
	}

	// The output template pins the transcoded file name; anything else means
	// the postprocessor did not finish.
	path := filepath.Join(c.workDir, externalID+".mp3")
	if _, err := os.Stat(path); err != nil {
		c.removeArtifacts(externalID)

		return nil, &catalog.ExtractError{ExternalID: externalID, Stage: "transcode", Err: err}
	}

	info := parseTrackInfo(result.Stdout)

	title := info.Title
	if title == "" {
		title = externalID
	}

	logger.DebugContext(ctx, "track fetched", "external_id", externalID, "title", title)

	return &catalog.FetchResult{
		ExternalID: externalID,
		Path:       path,
		Title:      title,
		Artist:     artistOf(info),
		Duration:   time.Duration(info.Duration * float64(time.Second)),
		Thumbnail:  thumbnailOf(info),
	}, nil
}

// parseCandidates turns dump output into candidates, skipping lines that do
// not decode. It returns the candidates plus how many lines parsed out of how
// many were seen, so callers can tell an empty result from a malformed one.
func (c *Client) parseCandidates(ctx context.Context, raw string) ([]catalog.TrackCandidate, int, int) {
	logger := logctx.LoggerFromContext(ctx)

	var (
		candidates []catalog.TrackCandidate
		parsed     int
		total      int
	)

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		total++

		var item sourceItem
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			logger.DebugContext(ctx, "skipping malformed catalog entry", "err", err)

			continue
		}

		parsed++

		if item.ID == "" {
			continue
		}

		if c.maxDuration > 0 && item.Duration > c.maxDuration.Seconds() {
			continue
		}

		candidates = append(candidates, catalog.TrackCandidate{
			ID:        item.ID,
			Title:     item.Title,
			Artist:    artistOf(item),
			Duration:  int64(item.Duration),
			Thumbnail: thumbnailOf(item),
			URL:       watchURL(item.ID),
		})
	}

	return candidates, parsed, total
}

// parseTrackInfo picks the first decodable entry out of a full dump. Returns
// a zero item when nothing decodes; fetch metadata then falls back to the id.
func parseTrackInfo(raw string) sourceItem {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var item sourceItem
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			continue
		}

		if item.ID != "" || item.Title != "" {
			return item
		}
	}

	return sourceItem{}
}

// removeArtifacts clears partial downloads for the given id out of the work
// directory. Best effort; the cache janitor catches anything left behind.
func (c *Client) removeArtifacts(externalID string) {
	matches, err := filepath.Glob(filepath.Join(c.workDir, externalID+".*"))
	if err != nil {
		return
	}

	for _, match := range matches {
		_ = os.Remove(match)
	}
}

func artistOf(item sourceItem) string {
	switch {
	case item.Channel != "":
		return item.Channel
	case item.Uploader != "":
		return item.Uploader
	default:
		return "Unknown"
	}
}

func thumbnailOf(item sourceItem) string {
	if item.Thumbnail != "" {
		return item.Thumbnail
	}

	if len(item.Thumbnails) > 0 {
		return item.Thumbnails[len(item.Thumbnails)-1].URL
	}

	return ""
}

func watchURL(id string) string {
	return fmt.Sprintf(watchURLTemplate, id)
}
