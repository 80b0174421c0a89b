package catalog

import (
	"context"
	"time"
)

// MaxSearchResults caps how many candidates a single search may return,
// whatever limit callers ask for.
const MaxSearchResults = 30

// TrackCandidate is one playable match returned by a catalog search. It
// carries source metadata only; nothing has been fetched yet.
type TrackCandidate struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Duration  int64  `json:"duration"`
	Thumbnail string `json:"thumbnail"`
	URL       string `json:"url"`
}

// FetchResult describes a transcoded audio file produced in the work
// directory, together with the metadata extracted from the source.
type FetchResult struct {
	ExternalID string
	Path       string
	Title      string
	Artist     string
	Duration   time.Duration
	Thumbnail  string
}

// ProgressFunc receives fetch progress as a percentage in [0, 100].
type ProgressFunc func(externalID string, percent float64)

type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]TrackCandidate, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, externalID string, onProgress ProgressFunc) (*FetchResult, error)
}

type Enumerator interface {
	Enumerate(ctx context.Context, playlistURL string) ([]TrackCandidate, error)
}

// Client is the full surface a catalog backend implements.
type Client interface {
	Searcher
	Fetcher
	Enumerator
}
