package sqlite

import (
	"database/sql"

	"github.com/aferrazza/tunecrate/internal/storage"
)

type PlaylistRepository struct {
	db *sql.DB
}

func NewPlaylistRepository(dbConn *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: dbConn}
}

func (r *PlaylistRepository) GetPlaylists() ([]storage.Playlist, error) {
	rows, err := r.db.Query(`
		SELECT p.id, p.name, p.created_at, COUNT(ps.id) AS song_count
		FROM playlists p
		LEFT JOIN playlist_songs ps ON p.id = ps.playlist_id
		GROUP BY p.id
		ORDER BY p.created_at DESC, p.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var playlists []storage.Playlist

	for rows.Next() {
		var pl storage.Playlist

		if err := rows.Scan(&pl.ID, &pl.Name, &pl.CreatedAt, &pl.SongCount); err != nil {
			return nil, err
		}

		playlists = append(playlists, pl)
	}

	return playlists, rows.Err()
}

func (r *PlaylistRepository) CreatePlaylist(name string) (*storage.Playlist, error) {
	res, err := r.db.Exec(`INSERT INTO playlists (name) VALUES (?)`, name)
	if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &storage.Playlist{ID: id, Name: name}, nil
}

func (r *PlaylistRepository) GetPlaylist(id int64) (*storage.Playlist, []storage.PlaylistSong, error) {
	var pl storage.Playlist

	err := r.db.QueryRow(`SELECT id, name, created_at FROM playlists WHERE id = ?`, id).
		Scan(&pl.ID, &pl.Name, &pl.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil, storage.ErrNotFound
	}

	if err != nil {
		return nil, nil, err
	}

	rows, err := r.db.Query(`
		SELECT id, playlist_id, video_id, title, artist, position
		FROM playlist_songs
		WHERE playlist_id = ?
		ORDER BY position`, id)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	songs := []storage.PlaylistSong{}

	for rows.Next() {
		var song storage.PlaylistSong

		if err := rows.Scan(&song.ID, &song.PlaylistID, &song.VideoID, &song.Title, &song.Artist, &song.Position); err != nil {
			return nil, nil, err
		}

		songs = append(songs, song)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	pl.SongCount = int64(len(songs))

	return &pl, songs, nil
}

func (r *PlaylistRepository) RenamePlaylist(id int64, name string) error {
	res, err := r.db.Exec(`UPDATE playlists SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// DeletePlaylist removes a playlist together with its songs. Deleting a
// missing playlist is a no-op.
func (r *PlaylistRepository) DeletePlaylist(id int64) error {
	if _, err := r.db.Exec(`DELETE FROM playlist_songs WHERE playlist_id = ?`, id); err != nil {
		return err
	}

	_, err := r.db.Exec(`DELETE FROM playlists WHERE id = ?`, id)

	return err
}

// AddSong appends a track to the end of a playlist. The position is
// computed in the insert itself so concurrent appends cannot collide.
func (r *PlaylistRepository) AddSong(playlistID int64, videoID, title, artist string) error {
	var id int64

	err := r.db.QueryRow(`SELECT id FROM playlists WHERE id = ?`, playlistID).Scan(&id)
	if err == sql.ErrNoRows {
		return storage.ErrNotFound
	}

	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		INSERT INTO playlist_songs (playlist_id, video_id, title, artist, position)
		VALUES (?, ?, ?, ?, COALESCE((SELECT MAX(position) FROM playlist_songs WHERE playlist_id = ?), 0) + 1)`,
		playlistID, videoID, title, artist, playlistID)

	return err
}

func (r *PlaylistRepository) RemoveSong(playlistID int64, videoID string) error {
	_, err := r.db.Exec(`DELETE FROM playlist_songs WHERE playlist_id = ? AND video_id = ?`, playlistID, videoID)

	return err
}
