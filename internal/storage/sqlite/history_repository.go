package sqlite

import (
	"database/sql"
)

const (
	historyKeepRows   = 50
	historyReturnRows = 20
)

type SearchHistoryRepository struct {
	db *sql.DB
}

func NewSearchHistoryRepository(dbConn *sql.DB) *SearchHistoryRepository {
	return &SearchHistoryRepository{db: dbConn}
}

// RecordSearch appends a query and trims the table so it never grows
// past historyKeepRows rows.
func (r *SearchHistoryRepository) RecordSearch(query string) error {
	if _, err := r.db.Exec(`INSERT INTO search_history (query) VALUES (?)`, query); err != nil {
		return err
	}

	_, err := r.db.Exec(`
		DELETE FROM search_history WHERE id NOT IN (
			SELECT id FROM search_history ORDER BY searched_at DESC, id DESC LIMIT ?
		)`, historyKeepRows)

	return err
}

// RecentSearches returns the latest distinct queries, newest first.
func (r *SearchHistoryRepository) RecentSearches() ([]string, error) {
	rows, err := r.db.Query(`
		SELECT query FROM search_history
		GROUP BY query
		ORDER BY MAX(searched_at) DESC, MAX(id) DESC
		LIMIT ?`, historyReturnRows)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var queries []string

	for rows.Next() {
		var query string

		if err := rows.Scan(&query); err != nil {
			return nil, err
		}

		queries = append(queries, query)
	}

	return queries, rows.Err()
}

func (r *SearchHistoryRepository) ClearSearches() error {
	_, err := r.db.Exec(`DELETE FROM search_history`)

	return err
}
