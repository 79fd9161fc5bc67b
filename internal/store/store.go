// Package store persists the symbol graph and per-file records in an
// embedded SQLite database exposed as an ordered key/value space.
//
// Key layout:
//
//	sym/<id>                  -> serialized Symbol
//	edg/<src>/<kind>/<dst>    -> empty (existence = edge present)
//	file/<path>               -> serialized FileRecord
//	meta/<k>                  -> scalar metadata
//
// Symbol ids contain slashes (they embed file paths), so the <src> and
// <dst> segments of edge keys are path-escaped to keep the layout
// parseable and prefix scans by source+kind exact.
package store

import (
	"database/sql"
	"fmt"
	"strconv"

	_ "github.com/mattn/go-sqlite3"

	sgerrors "github.com/standardbeagle/symgraph/internal/errors"
)

// SchemaVersion is written to meta/schema-version on creation. Opening
// a store written by a newer schema fails with ErrStoreSchemaMismatch.
const SchemaVersion = 1

const (
	prefixSym  = "sym/"
	prefixEdge = "edg/"
	prefixFile = "file/"
	prefixMeta = "meta/"

	// MetaSchemaVersion and MetaLastRevision are the well-known meta keys.
	MetaSchemaVersion = "schema-version"
	MetaLastRevision  = "last-revision"
)

// Store wraps the SQLite handle. Safe for concurrent readers; writes go
// through ApplyDelta which serializes on a transaction.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the store at dbPath with WAL mode enabled and
// validates the schema version. A database that fails the integrity
// check reports ErrStoreCorrupt.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, &sgerrors.StoreError{Operation: "open", Underlying: err}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", sgerrors.ErrStoreCorrupt, err)
	}

	var check string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&check); err != nil || check != "ok" {
		db.Close()
		if err == nil {
			err = fmt.Errorf("quick_check: %s", check)
		}
		return nil, fmt.Errorf("%w: %v", sgerrors.ErrStoreCorrupt, err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value BLOB NOT NULL) WITHOUT ROWID`); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", sgerrors.ErrStoreCorrupt, err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.checkSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) checkSchema() error {
	raw, err := s.Meta(MetaSchemaVersion)
	if err != nil {
		return err
	}
	if raw == "" {
		_, err := s.db.Exec(`INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)`,
			prefixMeta+MetaSchemaVersion, []byte(strconv.Itoa(SchemaVersion)))
		if err != nil {
			return &sgerrors.StoreError{Key: MetaSchemaVersion, Operation: "put", Underlying: err}
		}
		return nil
	}
	version, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%w: bad schema version %q", sgerrors.ErrStoreCorrupt, raw)
	}
	if version > SchemaVersion {
		return fmt.Errorf("%w: store has v%d, supported up to v%d",
			sgerrors.ErrStoreSchemaMismatch, version, SchemaVersion)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// get returns the value at key, or (nil, false) when absent.
func (s *Store) get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &sgerrors.StoreError{Key: key, Operation: "get", Underlying: err}
	}
	return value, true, nil
}

// scanPrefix iterates every (key, value) under a prefix in key order.
// The callback's key has the prefix already stripped.
func (s *Store) scanPrefix(prefix string, fn func(key string, value []byte) error) error {
	rows, err := s.db.Query(
		`SELECT key, value FROM kv WHERE key >= ? AND key < ? ORDER BY key`,
		prefix, prefixUpperBound(prefix))
	if err != nil {
		return &sgerrors.StoreError{Key: prefix, Operation: "scan", Underlying: err}
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return &sgerrors.StoreError{Key: prefix, Operation: "scan", Underlying: err}
		}
		if err := fn(key[len(prefix):], value); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: %v", sgerrors.ErrStoreCorrupt, err)
	}
	return nil
}

// prefixUpperBound returns the smallest string greater than every string
// with the given prefix, for half-open range scans.
func prefixUpperBound(prefix string) string {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xFF {
			b[i]++
			return string(b[:i+1])
		}
	}
	// All 0xFF: no upper bound; scan to the end of the keyspace.
	return string(rune(0x10FFFF))
}

// Meta reads a scalar metadata value; "" when unset.
func (s *Store) Meta(key string) (string, error) {
	value, ok, err := s.get(prefixMeta + key)
	if err != nil || !ok {
		return "", err
	}
	return string(value), nil
}

// PutMeta writes a scalar metadata value.
func (s *Store) PutMeta(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)`,
		prefixMeta+key, []byte(value))
	if err != nil {
		return &sgerrors.StoreError{Key: key, Operation: "put", Underlying: err}
	}
	return nil
}
