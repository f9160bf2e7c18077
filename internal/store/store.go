// Package store keeps content-addressed preset records in a single SQLite
// file. Every logical table shares one physical table keyed by
// (table, id); display names are unique within a logical table.
package store

import (
	"database/sql"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SchemaVersion is written to new stores and checked on open.
const SchemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS records (
	tbl        TEXT    NOT NULL,
	id         TEXT    NOT NULL,
	name       TEXT    NOT NULL DEFAULT '',
	kind       TEXT    NOT NULL DEFAULT '',
	class      TEXT    NOT NULL DEFAULT '',
	owner      TEXT    NOT NULL DEFAULT '',
	payload    BLOB    NOT NULL,
	seq        INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (tbl, id)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_records_name ON records(tbl, name) WHERE name <> '';
CREATE INDEX IF NOT EXISTS idx_records_seq ON records(tbl, seq);
CREATE TABLE IF NOT EXISTS links (
	tbl       TEXT    NOT NULL,
	owner_id  TEXT    NOT NULL,
	member_id TEXT    NOT NULL,
	position  INTEGER NOT NULL,
	PRIMARY KEY (tbl, owner_id, member_id)
);
CREATE TABLE IF NOT EXISTS kind_index (
	kind     TEXT    NOT NULL,
	id       TEXT    NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (kind, id)
);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Store wraps a SQLite connection holding preset records.
type Store struct {
	conn *sql.DB
	q    querier
	inTx bool
	Path string
	log  *zap.Logger
}

// Open opens or creates the store at path and applies the schema.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	// One connection: in-memory stores are per connection, and the file is
	// repacked into its archive as soon as it is closed.
	conn.SetMaxOpenConns(1)

	// Rollback journal keeps the store a single self-contained file.
	if _, err := conn.Exec("PRAGMA journal_mode=DELETE"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	s := &Store{conn: conn, q: conn, Path: path, log: log}
	if err := s.checkVersion(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) checkVersion() error {
	var v string
	err := s.q.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&v)
	if err == sql.ErrNoRows {
		_, err = s.q.Exec("INSERT INTO meta (key, value) VALUES ('schema_version', ?)", strconv.Itoa(SchemaVersion))
		if err != nil {
			return fmt.Errorf("writing schema version: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	n, err := strconv.Atoi(v)
	if err != nil || n > SchemaVersion {
		return fmt.Errorf("store schema version %q is not supported (max %d)", v, SchemaVersion)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

// Update runs fn inside one SQL transaction. Any error rolls back every
// write fn made. Nested calls join the outer transaction.
func (s *Store) Update(fn func(tx *Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	txs := &Store{conn: s.conn, q: tx, inTx: true, Path: s.Path, log: s.log}
	if err := fn(txs); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
