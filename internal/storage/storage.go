package storage

import "errors"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Favorite is a starred track. Favorites are user metadata only; they
// never imply the audio file still exists in the library.
type Favorite struct {
	VideoID string `json:"video_id"`
	Title   string `json:"title"`
	Artist  string `json:"artist"`
	AddedAt string `json:"added_at"`
}

type Playlist struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	SongCount int64  `json:"song_count"`
}

type PlaylistSong struct {
	ID         int64  `json:"id"`
	PlaylistID int64  `json:"playlist_id"`
	VideoID    string `json:"video_id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Position   int64  `json:"position"`
}

type FavoriteRepository interface {
	GetFavorites() ([]Favorite, error)
	ToggleFavorite(videoID, title, artist string) (bool, error)
}

type PlaylistRepository interface {
	GetPlaylists() ([]Playlist, error)
	CreatePlaylist(name string) (*Playlist, error)
	GetPlaylist(id int64) (*Playlist, []PlaylistSong, error)
	RenamePlaylist(id int64, name string) error
	DeletePlaylist(id int64) error
	AddSong(playlistID int64, videoID, title, artist string) error
	RemoveSong(playlistID int64, videoID string) error
}

type SearchHistoryRepository interface {
	RecordSearch(query string) error
	RecentSearches() ([]string, error)
	ClearSearches() error
}
