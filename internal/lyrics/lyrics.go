package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// ErrNotFound is returned when no lyrics exist for a track.
var ErrNotFound = errors.New("lyrics not found")

const (
	requestTimeout = 5 * time.Second
	userAgent      = "tunecrate/1.0"
)

// noisePattern strips parenthetical and bracketed qualifiers like
// "(Official Video)" that hurt lookup accuracy.
var noisePattern = regexp.MustCompile(`\(.*?\)|\[.*?\]`)

// Client looks up lyrics on an lrclib-compatible service.
type Client struct {
	client  *http.Client
	baseURL string
}

func NewClient(baseURL string) *Client {
	return &Client{
		client: &http.Client{
			Timeout: requestTimeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type lyricsRecord struct {
	SyncedLyrics string `json:"syncedLyrics"`
	PlainLyrics  string `json:"plainLyrics"`
}

func (rec lyricsRecord) best() string {
	if rec.SyncedLyrics != "" {
		return rec.SyncedLyrics
	}

	return rec.PlainLyrics
}

// Lookup finds lyrics for a track: an exact get first, then a fuzzy
// search fallback. Synced lyrics win over plain when both exist.
func (c *Client) Lookup(ctx context.Context, artist, title string) (string, error) {
	artist = clean(artist)
	title = clean(title)

	if text, err := c.get(ctx, artist, title); err == nil {
		return text, nil
	}

	return c.search(ctx, artist+" "+title)
}

func (c *Client) get(ctx context.Context, artist, title string) (string, error) {
	endpoint := fmt.Sprintf("%s/api/get?artist_name=%s&track_name=%s",
		c.baseURL, url.QueryEscape(artist), url.QueryEscape(title))

	var rec lyricsRecord
	if err := c.fetchJSON(ctx, endpoint, &rec); err != nil {
		return "", err
	}

	if text := rec.best(); text != "" {
		return text, nil
	}

	return "", ErrNotFound
}

func (c *Client) search(ctx context.Context, query string) (string, error) {
	endpoint := fmt.Sprintf("%s/api/search?q=%s", c.baseURL, url.QueryEscape(query))

	var recs []lyricsRecord
	if err := c.fetchJSON(ctx, endpoint, &recs); err != nil {
		return "", err
	}

	if len(recs) > 0 {
		if text := recs[0].best(); text != "" {
			return text, nil
		}
	}

	return "", ErrNotFound
}

func (c *Client) fetchJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("url: %s, status: %d", endpoint, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func clean(s string) string {
	return strings.TrimSpace(noisePattern.ReplaceAllString(s, ""))
}
