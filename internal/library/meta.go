package library

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
	mp3 "github.com/hajimehoshi/go-mp3"
)

type fileMeta struct {
	Title    string
	Artist   string
	Duration int64
}

// readMeta reads title, artist and duration from an MP3 file. Duration
// comes from the TLEN frame when present; otherwise the audio stream is
// decoded to count samples. Duration failures are non-fatal and leave
// the field at zero.
func readMeta(path string) (fileMeta, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fileMeta{}, fmt.Errorf("failed to open tags: %w", err)
	}

	defer tag.Close()

	meta := fileMeta{
		Title:  strings.TrimSpace(tag.Title()),
		Artist: strings.TrimSpace(tag.Artist()),
	}

	if ms := tagLengthMillis(tag); ms > 0 {
		meta.Duration = ms / 1000

		return meta, nil
	}

	if dur, err := decodedDuration(path); err == nil {
		meta.Duration = dur
	}

	return meta, nil
}

func tagLengthMillis(tag *id3v2.Tag) int64 {
	text := strings.TrimSpace(strings.Trim(tag.GetTextFrame("TLEN").Text, "\x00"))
	if text == "" {
		return 0
	}

	ms, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0
	}

	return ms
}

// decodedDuration walks the MP3 stream and derives the play time from
// the decoded sample count.
func decodedDuration(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open audio: %w", err)
	}

	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return 0, fmt.Errorf("failed to decode audio: %w", err)
	}

	// Decoded output is 16-bit stereo, so four bytes per sample.
	const bytesPerSample = 4

	samples := dec.Length() / bytesPerSample
	if samples <= 0 || dec.SampleRate() <= 0 {
		return 0, fmt.Errorf("audio stream reports no samples")
	}

	return samples / int64(dec.SampleRate()), nil
}
