package downloader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aferrazza/tunecrate/internal/catalog"
	"github.com/aferrazza/tunecrate/internal/downloader/progress"
	"github.com/aferrazza/tunecrate/internal/library"
	"github.com/aferrazza/tunecrate/internal/tagger"
	"github.com/aferrazza/tunecrate/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testID = "dQw4w9WgXcQ"

type stubFetcher struct {
	mu      sync.Mutex
	calls   int
	workDir string
	result  catalog.FetchResult
	err     error

	started chan struct{}
	release chan struct{}
}

func (f *stubFetcher) Fetch(ctx context.Context, id string, onProgress catalog.ProgressFunc) (*catalog.FetchResult, error) {
	f.mu.Lock()
	f.calls++
	calls := f.calls
	f.mu.Unlock()

	if f.started != nil && calls == 1 {
		close(f.started)
		<-f.release
	}

	if f.err != nil {
		return nil, f.err
	}

	if onProgress != nil {
		onProgress(id, 50)
	}

	path := filepath.Join(f.workDir, id+".mp3")
	if err := os.WriteFile(path, []byte("transcoded audio"), 0o644); err != nil {
		return nil, err
	}

	res := f.result
	res.ExternalID = id
	res.Path = path

	if res.Title == "" {
		res.Title = "Stub Title"
	}

	if res.Artist == "" {
		res.Artist = "Stub Artist"
	}

	return &res, nil
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

type recordingTagWriter struct {
	mu    sync.Mutex
	calls []tagger.Metadata
	err   error
}

func (w *recordingTagWriter) Write(_ context.Context, _ string, meta tagger.Metadata) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.calls = append(w.calls, meta)

	return w.err
}

func (w *recordingTagWriter) last(t *testing.T) tagger.Metadata {
	t.Helper()

	w.mu.Lock()
	defer w.mu.Unlock()

	require.NotEmpty(t, w.calls)

	return w.calls[len(w.calls)-1]
}

func newTestRunner(t *testing.T) (*Runner, *stubFetcher, *recordingTagWriter, *library.Store) {
	t.Helper()

	store := library.NewStore(t.TempDir(), 1)
	fetcher := &stubFetcher{workDir: t.TempDir()}
	tags := &recordingTagWriter{}
	runner := NewRunner(store, fetcher, tags, progress.NewTracker(), &telemetry.Telemetry{})

	return runner, fetcher, tags, store
}

func TestExtractID(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", testID, false},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL1234567", testID, false},
		{"https://youtu.be/dQw4w9WgXcQ?t=30", testID, false},
		{"  dQw4w9WgXcQ  ", testID, false},
		{"https://example.com/song.mp3", "", true},
		{"short", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		id, err := ExtractID(tt.raw)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnrecognizedSource, tt.raw)

			continue
		}

		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, id, tt.raw)
	}
}

func TestRunner_Download_Success(t *testing.T) {
	runner, fetcher, tags, store := newTestRunner(t)
	fetcher.result.Duration = 3 * time.Minute

	result, err := runner.Download(context.Background(), "https://youtu.be/"+testID)
	require.NoError(t, err)

	assert.Equal(t, testID, result.ID)
	assert.Equal(t, StatusDownloaded, result.Status)

	entry, err := store.Find(testID)
	require.NoError(t, err)
	assert.Equal(t, entry.Path, result.Path)

	// The work-dir artifact must be gone after finalize.
	_, err = os.Stat(filepath.Join(fetcher.workDir, testID+".mp3"))
	assert.True(t, os.IsNotExist(err))

	meta := tags.last(t)
	assert.Equal(t, "Stub Title", meta.Title)
	assert.Equal(t, "Stub Artist", meta.Artist)
	assert.Equal(t, 3*time.Minute, meta.Duration)

	select {
	case event := <-runner.OnDownloadFinished:
		assert.Equal(t, testID, event.ID)
		assert.Equal(t, "Stub Title", event.Title)
	default:
		t.Fatal("expected a finished event")
	}
}

func TestRunner_Download_Idempotent(t *testing.T) {
	runner, fetcher, _, store := newTestRunner(t)

	first, err := runner.Download(context.Background(), testID)
	require.NoError(t, err)
	require.Equal(t, StatusDownloaded, first.Status)

	second, err := runner.Download(context.Background(), testID)
	require.NoError(t, err)

	assert.Equal(t, StatusExists, second.Status)
	assert.Equal(t, first.Path, second.Path)
	assert.Equal(t, 1, fetcher.callCount())

	entries, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRunner_Download_UnrecognizedSource(t *testing.T) {
	runner, fetcher, _, _ := newTestRunner(t)

	_, err := runner.Download(context.Background(), "https://example.com/watch?x=1")
	assert.ErrorIs(t, err, ErrUnrecognizedSource)
	assert.Zero(t, fetcher.callCount())
}

func TestRunner_Download_FetchFailure(t *testing.T) {
	runner, fetcher, _, store := newTestRunner(t)
	fetcher.err = errors.New("extractor blew up")

	_, err := runner.Download(context.Background(), testID)
	require.Error(t, err)

	// Nothing may land in the library after a failed run.
	_, err = store.Find(testID)
	assert.ErrorIs(t, err, library.ErrNotFound)

	select {
	case event := <-runner.OnDownloadFailed:
		assert.Equal(t, testID, event.ID)
		assert.Error(t, event.Err)
	default:
		t.Fatal("expected a failed event")
	}
}

func TestRunner_Download_TagFailureNonFatal(t *testing.T) {
	runner, _, tags, store := newTestRunner(t)
	tags.err = errors.New("tag container locked")

	result, err := runner.Download(context.Background(), testID)
	require.NoError(t, err)
	assert.Equal(t, StatusDownloaded, result.Status)

	_, err = store.Find(testID)
	assert.NoError(t, err)
}

func TestRunner_Download_CoverEmbedded(t *testing.T) {
	cover := []byte{0x89, 0x50, 0x4E, 0x47, 0x01}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(cover)
	}))
	defer srv.Close()

	runner, fetcher, tags, _ := newTestRunner(t)
	fetcher.result.Thumbnail = srv.URL

	_, err := runner.Download(context.Background(), testID)
	require.NoError(t, err)

	meta := tags.last(t)
	assert.Equal(t, cover, meta.Cover)
	assert.Equal(t, "image/png", meta.CoverMIME)
}

func TestRunner_Download_CoverFailureNonFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	runner, fetcher, tags, _ := newTestRunner(t)
	fetcher.result.Thumbnail = srv.URL

	result, err := runner.Download(context.Background(), testID)
	require.NoError(t, err)
	assert.Equal(t, StatusDownloaded, result.Status)

	meta := tags.last(t)
	assert.Nil(t, meta.Cover)
}

func TestRunner_Download_SharedInFlight(t *testing.T) {
	runner, fetcher, _, _ := newTestRunner(t)
	fetcher.started = make(chan struct{})
	fetcher.release = make(chan struct{})

	var wg sync.WaitGroup

	results := make([]*Result, 2)
	errs := make([]error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			results[i], errs[i] = runner.Download(context.Background(), testID)
		}(i)
	}

	<-fetcher.started
	// Give the second request time to join the in-flight group.
	time.Sleep(50 * time.Millisecond)
	close(fetcher.release)

	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 1, fetcher.callCount())
	assert.Equal(t, results[0].Path, results[1].Path)
}

func TestRunner_ProgressLifecycle(t *testing.T) {
	store := library.NewStore(t.TempDir(), 1)
	fetcher := &stubFetcher{workDir: t.TempDir()}
	tracker := progress.NewTracker()
	runner := NewRunner(store, fetcher, &recordingTagWriter{}, tracker, &telemetry.Telemetry{})

	_, err := runner.Download(context.Background(), testID)
	require.NoError(t, err)

	// Finished downloads leave no progress entry behind.
	assert.Equal(t, float64(-1), tracker.Get(testID))
}
