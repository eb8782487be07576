//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS terms_fts USING fts5(
			key UNINDEXED,
			name,
			definition,
			aliases,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsReset(tx *sql.Tx) error {
	if _, err := tx.Exec(`DELETE FROM terms_fts`); err != nil {
		return fmt.Errorf("index: clear fts: %w", err)
	}
	return nil
}

func ftsInsertTerm(tx *sql.Tx, key, name, definition string, aliases []string) error {
	_, err := tx.Exec(`INSERT INTO terms_fts (key, name, definition, aliases) VALUES (?, ?, ?, ?)`,
		key, name, definition, strings.Join(aliases, " "))
	if err != nil {
		return fmt.Errorf("index: insert fts: %w", err)
	}
	return nil
}

// SearchTerms performs an FTS5 search over term names, definitions and
// aliases and returns matches with snippets.
func (db *DB) SearchTerms(query string, limit int) ([]TermHit, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT f.key, t.name, t.file,
		       snippet(terms_fts, 2, '<b>', '</b>', '...', 32)
		FROM terms_fts f
		JOIN terms t ON t.key = f.key
		WHERE terms_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search terms: %w", err)
	}
	defer rows.Close()

	var out []TermHit
	for rows.Next() {
		var h TermHit
		if err := rows.Scan(&h.Key, &h.Name, &h.File, &h.Snippet); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
