package sqlite

import (
	"database/sql"

	"github.com/aferrazza/tunecrate/internal/storage"
)

type FavoriteRepository struct {
	db *sql.DB
}

func NewFavoriteRepository(dbConn *sql.DB) *FavoriteRepository {
	return &FavoriteRepository{db: dbConn}
}

func (r *FavoriteRepository) GetFavorites() ([]storage.Favorite, error) {
	rows, err := r.db.Query(`SELECT video_id, title, artist, added_at FROM favorites ORDER BY added_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var favorites []storage.Favorite

	for rows.Next() {
		var fav storage.Favorite

		if err := rows.Scan(&fav.VideoID, &fav.Title, &fav.Artist, &fav.AddedAt); err != nil {
			return nil, err
		}

		favorites = append(favorites, fav)
	}

	return favorites, rows.Err()
}

// ToggleFavorite flips the favorite state of a track and reports whether
// it is a favorite afterwards. Delete-first keeps the toggle race-free
// without an explicit transaction.
func (r *FavoriteRepository) ToggleFavorite(videoID, title, artist string) (bool, error) {
	res, err := r.db.Exec(`DELETE FROM favorites WHERE video_id = ?`, videoID)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	if affected > 0 {
		return false, nil
	}

	if _, err := r.db.Exec(`INSERT INTO favorites (video_id, title, artist) VALUES (?, ?, ?)`, videoID, title, artist); err != nil {
		return false, err
	}

	return true, nil
}
