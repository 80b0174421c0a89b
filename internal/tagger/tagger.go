package tagger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	id3v2 "github.com/bogem/id3v2/v2"
)

// Metadata is everything that gets embedded into a downloaded track. Zero
// fields are skipped rather than written as empty frames.
type Metadata struct {
	Title     string
	Artist    string
	Duration  time.Duration
	Cover     []byte
	CoverMIME string
}

// WriteError represents a failed tag write. The audio file itself is intact
// when this is returned; callers decide whether missing tags are fatal.
type WriteError struct {
	Path string // File the write was against
	Err  error  // Underlying error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write tags to %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// ID3Writer embeds metadata into MP3 files as ID3v2.4 frames. Duration is
// stored in a TLEN frame (milliseconds) so library listings never have to
// decode audio.
type ID3Writer struct{}

// NewID3Writer creates a new ID3 tag writer.
func NewID3Writer() *ID3Writer {
	return &ID3Writer{}
}

func (w *ID3Writer) Write(ctx context.Context, path string, meta Metadata) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	if meta.Title != "" {
		tag.SetTitle(meta.Title)
	}

	if meta.Artist != "" {
		tag.SetArtist(meta.Artist)
	}

	if meta.Duration > 0 {
		tag.AddTextFrame("TLEN", tag.DefaultEncoding(), strconv.FormatInt(meta.Duration.Milliseconds(), 10))
	}

	if len(meta.Cover) > 0 {
		mime := meta.CoverMIME
		if mime == "" {
			mime = "image/jpeg"
		}

		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    mime,
			PictureType: id3v2.PTFrontCover,
			Description: "Front cover",
			Picture:     meta.Cover,
		})
	}

	if err := tag.Save(); err != nil {
		return &WriteError{Path: path, Err: err}
	}

	return nil
}
