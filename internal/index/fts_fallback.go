//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; term search uses LIKE over the terms table.
	return nil
}

func ftsReset(_ *sql.Tx) error { return nil }

func ftsInsertTerm(_ *sql.Tx, _, _, _ string, _ []string) error {
	// Name and definition are already stored in the terms table.
	return nil
}

// SearchTerms performs a LIKE-based search over term names, aliases and
// definitions (fallback when FTS5 is not compiled in).
func (db *DB) SearchTerms(query string, limit int) ([]TermHit, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT DISTINCT t.key, t.name, t.file, substr(t.definition, 1, 200)
		FROM terms t
		LEFT JOIN term_aliases a ON a.key = t.key
		WHERE t.name LIKE ? OR t.definition LIKE ? OR a.alias LIKE ?
		ORDER BY t.key
		LIMIT ?
	`, like, like, like, limit)
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
