// Package index mirrors the reference index into SQLite so that query
// surfaces can look records up without holding the whole graph in memory.
// The mirror is disposable: every rebuild replaces it wholesale.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS features (
	id          TEXT PRIMARY KEY,
	file        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT '',
	entry_point TEXT NOT NULL DEFAULT '',
	record      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS code (
	path   TEXT PRIMARY KEY,
	kind   TEXT NOT NULL,
	exists_on_disk INTEGER NOT NULL DEFAULT 0,
	record TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS interfaces (
	id           TEXT PRIMARY KEY,
	file         TEXT NOT NULL,
	from_feature TEXT NOT NULL DEFAULT '',
	to_feature   TEXT NOT NULL DEFAULT '',
	type         TEXT NOT NULL DEFAULT '',
	record       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS shared_types (
	id     TEXT PRIMARY KEY,
	file   TEXT NOT NULL,
	record TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS terms (
	key        TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	scope      TEXT NOT NULL,
	file       TEXT NOT NULL,
	definition TEXT NOT NULL DEFAULT '',
	record     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS term_aliases (
	alias TEXT NOT NULL,
	key   TEXT NOT NULL,
	UNIQUE(alias, key)
);

CREATE TABLE IF NOT EXISTS edges (
	source TEXT NOT NULL,
	target TEXT NOT NULL,
	type   TEXT NOT NULL,
	UNIQUE(source, target, type)
);

CREATE TABLE IF NOT EXISTS issues (
	seq        INTEGER PRIMARY KEY,
	file       TEXT NOT NULL DEFAULT '',
	line       INTEGER NOT NULL DEFAULT 0,
	kind       TEXT NOT NULL,
	code       TEXT NOT NULL DEFAULT '',
	severity   TEXT NOT NULL,
	subject    TEXT NOT NULL DEFAULT '',
	message    TEXT NOT NULL,
	suggestion TEXT NOT NULL DEFAULT '',
	cycle      TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS orphans (
	path       TEXT PRIMARY KEY,
	class      TEXT NOT NULL,
	referenced INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source, type);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target, type);
CREATE INDEX IF NOT EXISTS idx_term_aliases_alias ON term_aliases(alias);
CREATE INDEX IF NOT EXISTS idx_issues_file ON issues(file);
`

// Edge types stored in the edges table.
const (
	EdgeDependsOn = "depends_on"
	EdgeRelated   = "related"
	EdgeDocuments = "documents"
	EdgeImports   = "imports"
	EdgeUses      = "uses"
	EdgeProvides  = "provides"
)

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
