package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aferrazza/tunecrate/internal/logctx"
	"github.com/bogem/id3v2/v2"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

var ErrNotFound = errors.New("track not found in library")

// Entry is one MP3 file in the library root. The id is derived from the
// filename, so the directory listing is the only system of record.
type Entry struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Duration int64  `json:"duration"`
	Size     int64  `json:"size"`
	Path     string `json:"-"`
}

type Store struct {
	root         string
	scanParallel int
}

func NewStore(root string, scanParallel int) *Store {
	if scanParallel < 1 {
		scanParallel = 1
	}

	return &Store{root: root, scanParallel: scanParallel}
}

// PathFor returns the destination path inside the library root for a
// finished track.
func (s *Store) PathFor(artist, title, id string) string {
	return filepath.Join(s.root, FileName(artist, title, id))
}

// List re-enumerates the library root and reads tags from every entry.
// Tag reads run on a bounded worker group; unreadable files fall back
// to filename metadata and files that vanish mid-scan are skipped.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	logger := logctx.LoggerFromContext(ctx)

	dirEntries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read library dir: %w", err)
	}

	names := make([]string, 0, len(dirEntries))

	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}

		if _, ok := ParseID(de.Name()); !ok {
			continue
		}

		names = append(names, de.Name())
	}

	entries := make([]Entry, len(names))

	wg, ctx := errgroup.WithContext(ctx)

	sem := make(chan struct{}, s.scanParallel)

	for i := range names {
		name := names[i]
		sem <- struct{}{}

		wg.Go(func() error {
			defer func() { <-sem }() // release the slot

			entry, err := s.readEntry(ctx, name)
			if err != nil {
				logger.Debug("skipping unreadable library file", "file", name, "err", err)

				return nil
			}

			entries[i] = entry

			return nil
		})
	}

	if err := wg.Wait(); err != nil {
		return nil, fmt.Errorf("failed to scan library: %w", err)
	}

	songs := make([]Entry, 0, len(entries))

	for _, entry := range entries {
		if entry.ID != "" {
			songs = append(songs, entry)
		}
	}

	sort.Slice(songs, func(i, j int) bool {
		ti, tj := strings.ToLower(songs[i].Title), strings.ToLower(songs[j].Title)
		if ti != tj {
			return ti < tj
		}

		return songs[i].ID < songs[j].ID
	})

	return songs, nil
}

// Find probes for an entry by id without reading tags. Used by the
// download runner's idempotence check.
func (s *Store) Find(id string) (Entry, error) {
	path, err := s.locate(id)
	if err != nil {
		return Entry{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to stat library entry: %w", err)
	}

	entry := entryFromName(filepath.Base(path))
	entry.Path = path
	entry.Size = info.Size()

	return entry, nil
}

// Open returns a readable, seekable handle for streaming.
func (s *Store) Open(id string) (*os.File, os.FileInfo, error) {
	path, err := s.locate(id)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open library entry: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()

		return nil, nil, fmt.Errorf("failed to stat library entry: %w", err)
	}

	return f, info, nil
}

// CoverArt returns the first embedded front-cover picture and its MIME
// type, or ErrNotFound when the entry has no artwork.
func (s *Store) CoverArt(id string) ([]byte, string, error) {
	path, err := s.locate(id)
	if err != nil {
		return nil, "", err
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return nil, "", fmt.Errorf("failed to open tags: %w", err)
	}

	defer tag.Close()

	for _, frame := range tag.GetFrames(tag.CommonID("Attached picture")) {
		pic, ok := frame.(id3v2.PictureFrame)
		if !ok {
			continue
		}

		mime := pic.MimeType
		if mime == "" {
			mime = "image/jpeg"
		}

		return pic.Picture, mime, nil
	}

	return nil, "", ErrNotFound
}

func (s *Store) Delete(ctx context.Context, id string) error {
	logger := logctx.LoggerFromContext(ctx)

	path, err := s.locate(id)
	if err != nil {
		return err
	}

	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove library entry: %w", err)
	}

	logger.Info("removed library entry", "track_id", id, "file_size", humanize.Bytes(uint64(size)))

	return nil
}

func (s *Store) locate(id string) (string, error) {
	dirEntries, err := os.ReadDir(s.root)
	if err != nil {
		return "", fmt.Errorf("failed to read library dir: %w", err)
	}

	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}

		if got, ok := ParseID(de.Name()); ok && got == id {
			return filepath.Join(s.root, de.Name()), nil
		}
	}

	return "", ErrNotFound
}

func (s *Store) readEntry(ctx context.Context, name string) (Entry, error) {
	path := filepath.Join(s.root, name)

	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to stat library entry: %w", err)
	}

	entry := entryFromName(name)
	entry.Path = path
	entry.Size = info.Size()

	meta, err := readMeta(path)
	if err != nil {
		logctx.LoggerFromContext(ctx).Debug("falling back to filename metadata", "file", name, "err", err)

		return entry, nil
	}

	if meta.Title != "" {
		entry.Title = meta.Title
	}

	if artist := meta.Artist; artist != "" && artist != "NA" && artist != "Unknown" {
		entry.Artist = artist
	}

	if meta.Duration > 0 {
		entry.Duration = meta.Duration
	}

	if entry.Artist == "" {
		entry.Artist = "Unknown"
	}

	return entry, nil
}

// entryFromName recovers fallback metadata from the filename alone.
func entryFromName(name string) Entry {
	id, _ := ParseID(name)

	base := strings.TrimSuffix(name, fileExt)
	if open := strings.LastIndex(base, " ["); open >= 0 {
		base = base[:open]
	}

	artist, title := "Unknown", base
	if sep := strings.Index(base, " - "); sep >= 0 {
		artist, title = base[:sep], base[sep+3:]
	}

	return Entry{ID: id, Title: title, Artist: artist}
}
