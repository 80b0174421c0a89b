package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	id3v2 "github.com/bogem/id3v2/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTrack(t *testing.T, dir, artist, title, id string, frames ...func(*id3v2.Tag)) string {
	t.Helper()

	path := filepath.Join(dir, FileName(artist, title, id))
	require.NoError(t, os.WriteFile(path, []byte("not really audio"), 0o644))

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetTitle(title)
	tag.SetArtist(artist)

	for _, frame := range frames {
		frame(tag)
	}

	require.NoError(t, tag.Save())
	require.NoError(t, tag.Close())

	return path
}

func TestFileName(t *testing.T) {
	name := FileName("AC/DC", "Back in Black?", "dQw4w9WgXcQ")

	assert.Equal(t, "ACDC - Back in Black [dQw4w9WgXcQ].mp3", name)

	id, ok := ParseID(name)
	require.True(t, ok)
	assert.Equal(t, "dQw4w9WgXcQ", id)
}

func TestParseID(t *testing.T) {
	tests := []struct {
		name   string
		wantID string
		wantOK bool
	}{
		{"Artist - Title [dQw4w9WgXcQ].mp3", "dQw4w9WgXcQ", true},
		{"Weird - Name [with] - brackets [abc_DEF-123].mp3", "abc_DEF-123", true},
		{"no id here.mp3", "", false},
		{"empty id [].mp3", "", false},
		{"bad charset [abc$def].mp3", "", false},
		{"wrong extension [dQw4w9WgXcQ].flac", "", false},
		{"notes.txt", "", false},
	}

	for _, tt := range tests {
		id, ok := ParseID(tt.name)
		assert.Equal(t, tt.wantOK, ok, tt.name)
		assert.Equal(t, tt.wantID, id, tt.name)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`AC/DC`, "ACDC"},
		{`What? <is> "this": a\path|test*`, "What is this apathtest"},
		{"  .trimmed. ", "trimmed"},
		{"", "unknown"},
		{`///`, "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Sanitize(tt.in), tt.in)
	}

	long := make([]rune, 300)
	for i := range long {
		long[i] = 'a'
	}

	assert.Len(t, Sanitize(string(long)), maxNamePart)
}

func TestStore_List(t *testing.T) {
	dir := t.TempDir()

	writeTrack(t, dir, "Band", "banana song", "aaaaaaaaaa1")
	writeTrack(t, dir, "Band", "Apple Song", "aaaaaaaaaa2")
	writeTrack(t, dir, "Band", "Cherry Song", "aaaaaaaaaa3")

	// Noise that must be ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray.mp3"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))

	store := NewStore(dir, 2)

	songs, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, songs, 3)

	assert.Equal(t, "Apple Song", songs[0].Title)
	assert.Equal(t, "banana song", songs[1].Title)
	assert.Equal(t, "Cherry Song", songs[2].Title)

	for _, song := range songs {
		assert.Equal(t, "Band", song.Artist)
		assert.NotEmpty(t, song.ID)
		assert.Greater(t, song.Size, int64(0))
		assert.Zero(t, song.Duration)
	}
}

func TestStore_List_TLENDuration(t *testing.T) {
	dir := t.TempDir()

	writeTrack(t, dir, "Band", "Timed", "aaaaaaaaaa1", func(tag *id3v2.Tag) {
		tag.AddTextFrame("TLEN", tag.DefaultEncoding(), "222000")
	})

	store := NewStore(dir, 1)

	songs, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, songs, 1)
	assert.Equal(t, int64(222), songs[0].Duration)
}

func TestStore_List_FilenameFallback(t *testing.T) {
	dir := t.TempDir()

	// A well-named file with no tags at all.
	name := FileName("Fallback Artist", "Fallback Title", "bbbbbbbbbb1")
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("no tags here"), 0o644))

	store := NewStore(dir, 1)

	songs, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, songs, 1)

	assert.Equal(t, "Fallback Title", songs[0].Title)
	assert.Equal(t, "Fallback Artist", songs[0].Artist)
}

func TestStore_Find(t *testing.T) {
	dir := t.TempDir()

	writeTrack(t, dir, "Band", "Song", "aaaaaaaaaa1")

	store := NewStore(dir, 1)

	entry, err := store.Find("aaaaaaaaaa1")
	require.NoError(t, err)
	assert.Equal(t, "aaaaaaaaaa1", entry.ID)
	assert.Greater(t, entry.Size, int64(0))
	assert.NotEmpty(t, entry.Path)

	_, err = store.Find("missing-id00")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Open(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, FileName("Band", "Song", "aaaaaaaaaa1"))
	require.NoError(t, os.WriteFile(path, []byte("streamable bytes"), 0o644))

	store := NewStore(dir, 1)

	f, info, err := store.Open("aaaaaaaaaa1")
	require.NoError(t, err)

	defer f.Close()

	assert.Equal(t, int64(len("streamable bytes")), info.Size())

	buf := make([]byte, info.Size())
	_, err = f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "streamable bytes", string(buf))

	_, _, err = store.Open("missing-id00")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CoverArt(t *testing.T) {
	dir := t.TempDir()

	cover := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02}

	writeTrack(t, dir, "Band", "With Cover", "aaaaaaaaaa1", func(tag *id3v2.Tag) {
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    "image/png",
			PictureType: id3v2.PTFrontCover,
			Picture:     cover,
		})
	})
	writeTrack(t, dir, "Band", "No Cover", "aaaaaaaaaa2")

	store := NewStore(dir, 1)

	got, mime, err := store.CoverArt("aaaaaaaaaa1")
	require.NoError(t, err)
	assert.Equal(t, cover, got)
	assert.Equal(t, "image/png", mime)

	_, _, err = store.CoverArt("aaaaaaaaaa2")
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = store.CoverArt("missing-id00")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Delete(t *testing.T) {
	dir := t.TempDir()

	path := writeTrack(t, dir, "Band", "Doomed", "aaaaaaaaaa1")

	store := NewStore(dir, 1)

	require.NoError(t, store.Delete(context.Background(), "aaaaaaaaaa1"))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	err = store.Delete(context.Background(), "aaaaaaaaaa1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_PathFor(t *testing.T) {
	store := NewStore("/music", 1)

	assert.Equal(t, filepath.Join("/music", "Band - Song [aaaaaaaaaa1].mp3"), store.PathFor("Band", "Song", "aaaaaaaaaa1"))
}
