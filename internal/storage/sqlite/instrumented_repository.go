package sqlite

import (
	"context"
	"database/sql"

	"github.com/aferrazza/tunecrate/internal/storage"
	"github.com/aferrazza/tunecrate/internal/telemetry"
)

// InstrumentedFavoriteRepository wraps FavoriteRepository with telemetry.
type InstrumentedFavoriteRepository struct {
	repo      *FavoriteRepository
	telemetry *telemetry.Telemetry
}

func NewInstrumentedFavoriteRepository(dbConn *sql.DB, tel *telemetry.Telemetry) *InstrumentedFavoriteRepository {
	return &InstrumentedFavoriteRepository{
		repo:      NewFavoriteRepository(dbConn),
		telemetry: tel,
	}
}

func (r *InstrumentedFavoriteRepository) GetFavorites() ([]storage.Favorite, error) {
	var result []storage.Favorite

	var err error

	instrumentedErr := r.telemetry.InstrumentDBOperation(context.Background(), "get_favorites", func(ctx context.Context) error {
		result, err = r.repo.GetFavorites()

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}

func (r *InstrumentedFavoriteRepository) ToggleFavorite(videoID, title, artist string) (bool, error) {
	var result bool

	var err error

	instrumentedErr := r.telemetry.InstrumentDBOperation(context.Background(), "toggle_favorite", func(ctx context.Context) error {
		result, err = r.repo.ToggleFavorite(videoID, title, artist)

		return err
	})

	if instrumentedErr != nil {
		return false, instrumentedErr
	}

	return result, nil
}

// InstrumentedPlaylistRepository wraps PlaylistRepository with telemetry.
type InstrumentedPlaylistRepository struct {
	repo      *PlaylistRepository
	telemetry *telemetry.Telemetry
}

func NewInstrumentedPlaylistRepository(dbConn *sql.DB, tel *telemetry.Telemetry) *InstrumentedPlaylistRepository {
	return &InstrumentedPlaylistRepository{
		repo:      NewPlaylistRepository(dbConn),
		telemetry: tel,
	}
}

func (r *InstrumentedPlaylistRepository) GetPlaylists() ([]storage.Playlist, error) {
	var result []storage.Playlist

	var err error

	instrumentedErr := r.telemetry.InstrumentDBOperation(context.Background(), "get_playlists", func(ctx context.Context) error {
		result, err = r.repo.GetPlaylists()

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}

func (r *InstrumentedPlaylistRepository) CreatePlaylist(name string) (*storage.Playlist, error) {
	var result *storage.Playlist

	var err error

	instrumentedErr := r.telemetry.InstrumentDBOperation(context.Background(), "create_playlist", func(ctx context.Context) error {
		result, err = r.repo.CreatePlaylist(name)

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}

func (r *InstrumentedPlaylistRepository) GetPlaylist(id int64) (*storage.Playlist, []storage.PlaylistSong, error) {
	var playlist *storage.Playlist

	var songs []storage.PlaylistSong

	var err error

	instrumentedErr := r.telemetry.InstrumentDBOperation(context.Background(), "get_playlist", func(ctx context.Context) error {
		playlist, songs, err = r.repo.GetPlaylist(id)

		return err
	})

	if instrumentedErr != nil {
		return nil, nil, instrumentedErr
	}

	return playlist, songs, nil
}

func (r *InstrumentedPlaylistRepository) RenamePlaylist(id int64, name string) error {
	return r.telemetry.InstrumentDBOperation(context.Background(), "rename_playlist", func(ctx context.Context) error {
		return r.repo.RenamePlaylist(id, name)
	})
}

func (r *InstrumentedPlaylistRepository) DeletePlaylist(id int64) error {
	return r.telemetry.InstrumentDBOperation(context.Background(), "delete_playlist", func(ctx context.Context) error {
		return r.repo.DeletePlaylist(id)
	})
}

func (r *InstrumentedPlaylistRepository) AddSong(playlistID int64, videoID, title, artist string) error {
	return r.telemetry.InstrumentDBOperation(context.Background(), "add_playlist_song", func(ctx context.Context) error {
		return r.repo.AddSong(playlistID, videoID, title, artist)
	})
}

func (r *InstrumentedPlaylistRepository) RemoveSong(playlistID int64, videoID string) error {
	return r.telemetry.InstrumentDBOperation(context.Background(), "remove_playlist_song", func(ctx context.Context) error {
		return r.repo.RemoveSong(playlistID, videoID)
	})
}

// InstrumentedSearchHistoryRepository wraps SearchHistoryRepository with telemetry.
type InstrumentedSearchHistoryRepository struct {
	repo      *SearchHistoryRepository
	telemetry *telemetry.Telemetry
}

func NewInstrumentedSearchHistoryRepository(dbConn *sql.DB, tel *telemetry.Telemetry) *InstrumentedSearchHistoryRepository {
	return &InstrumentedSearchHistoryRepository{
		repo:      NewSearchHistoryRepository(dbConn),
		telemetry: tel,
	}
}

func (r *InstrumentedSearchHistoryRepository) RecordSearch(query string) error {
	return r.telemetry.InstrumentDBOperation(context.Background(), "record_search", func(ctx context.Context) error {
		return r.repo.RecordSearch(query)
	})
}

func (r *InstrumentedSearchHistoryRepository) RecentSearches() ([]string, error) {
	var result []string

	var err error

	instrumentedErr := r.telemetry.InstrumentDBOperation(context.Background(), "recent_searches", func(ctx context.Context) error {
		result, err = r.repo.RecentSearches()

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}

func (r *InstrumentedSearchHistoryRepository) ClearSearches() error {
	return r.telemetry.InstrumentDBOperation(context.Background(), "clear_searches", func(ctx context.Context) error {
		return r.repo.ClearSearches()
	})
}
