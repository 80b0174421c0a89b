package youtube

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCandidates(t *testing.T) {
	raw := strings.Join([]string{
		`{"id":"abc123def45","title":"First Song","channel":"First Artist","duration":180.0,"thumbnail":"https://img/1.jpg"}`,
		`{"id":"xyz987uvw65","title":"Second Song","uploader":"Second Artist","duration":240.5}`,
		`not json at all`,
		`{"id":"tooLongOne1","title":"Full Concert","channel":"Orchestra","duration":3600}`,
		`{"title":"No ID entry","duration":100}`,
	}, "\n")

	client := NewClient(t.TempDir(), 10, 15*time.Minute)

	candidates, parsed, total := client.parseCandidates(context.Background(), raw)

	assert.Equal(t, 5, total)
	assert.Equal(t, 4, parsed, "only the non-JSON line should fail to parse")
	require.Len(t, candidates, 2, "overlong and id-less entries are dropped")

	assert.Equal(t, "abc123def45", candidates[0].ID)
	assert.Equal(t, "First Song", candidates[0].Title)
	assert.Equal(t, "First Artist", candidates[0].Artist)
	assert.Equal(t, int64(180), candidates[0].Duration)
	assert.Equal(t, "https://img/1.jpg", candidates[0].Thumbnail)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123def45", candidates[0].URL)

	assert.Equal(t, "Second Artist", candidates[1].Artist, "uploader fills in when channel is missing")
}

func TestParseCandidates_ThumbnailFallback(t *testing.T) {
	raw := `{"id":"abc123def45","title":"Song","channel":"Artist","thumbnails":[{"url":"https://img/small.jpg"},{"url":"https://img/large.jpg"}]}`

	client := NewClient(t.TempDir(), 10, 0)

	candidates, _, _ := client.parseCandidates(context.Background(), raw)

	require.Len(t, candidates, 1)
	assert.Equal(t, "https://img/large.jpg", candidates[0].Thumbnail, "last thumbnail wins when no primary is set")
}

func TestParseCandidates_ArtistFallback(t *testing.T) {
	raw := `{"id":"abc123def45","title":"Song"}`

	client := NewClient(t.TempDir(), 10, 0)

	candidates, _, _ := client.parseCandidates(context.Background(), raw)

	require.Len(t, candidates, 1)
	assert.Equal(t, "Unknown", candidates[0].Artist)
}

func TestParseCandidates_NoDurationFilterWhenDisabled(t *testing.T) {
	raw := `{"id":"abc123def45","title":"Full Concert","channel":"Orchestra","duration":7200}`

	client := NewClient(t.TempDir(), 10, 0)

	candidates, _, _ := client.parseCandidates(context.Background(), raw)

	assert.Len(t, candidates, 1)
}

func TestParseCandidates_UnknownDurationKept(t *testing.T) {
	raw := `{"id":"abc123def45","title":"Live Stream","channel":"Artist","duration":null}`

	client := NewClient(t.TempDir(), 10, 15*time.Minute)

	candidates, parsed, total := client.parseCandidates(context.Background(), raw)

	assert.Equal(t, 1, total)
	assert.Equal(t, 1, parsed)
	require.Len(t, candidates, 1, "entries without a known duration are not filtered")
	assert.Equal(t, int64(0), candidates[0].Duration)
}

func TestParseCandidates_Empty(t *testing.T) {
	client := NewClient(t.TempDir(), 10, 15*time.Minute)

	candidates, parsed, total := client.parseCandidates(context.Background(), "\n  \n")

	assert.Empty(t, candidates)
	assert.Zero(t, parsed)
	assert.Zero(t, total)
}

func TestParseTrackInfo(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantTitle  string
		wantArtist string
	}{
		{
			name:       "full dump",
			raw:        `{"id":"abc123def45","title":"Song","channel":"Artist","duration":200.2}`,
			wantTitle:  "Song",
			wantArtist: "Artist",
		},
		{
			name:       "skips noise lines",
			raw:        "[download] 100%\n" + `{"id":"abc123def45","title":"Song","uploader":"Uploader"}`,
			wantTitle:  "Song",
			wantArtist: "Uploader",
		},
		{
			name:       "nothing decodable",
			raw:        "[download] 100%\n[ffmpeg] converting",
			wantTitle:  "",
			wantArtist: "Unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := parseTrackInfo(tt.raw)
			assert.Equal(t, tt.wantTitle, info.Title)
			assert.Equal(t, tt.wantArtist, artistOf(info))
		})
	}
}

func TestWatchURL(t *testing.T) {
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", watchURL("dQw4w9WgXcQ"))
}
