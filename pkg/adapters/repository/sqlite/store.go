package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	_ "modernc.org/sqlite"                               // Local SQLite driver

	"github.com/wadjakorntonsri/go-redirects/pkg/ports"
)

// Store implements the key-value contract on a single SQLite/libsql table.
type Store struct {
	db *sql.DB
}

func NewSQLiteStore(dbURL string) (*Store, error) {
	driverName := "sqlite"
	if strings.Contains(dbURL, "libsql://") || strings.Contains(dbURL, "wss://") {
		driverName = "libsql"
	}

	db, err := sql.Open(driverName, dbURL)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS kv (
		namespace TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (namespace, key)
	);
	`
	_, err := db.Exec(query)
	return err
}

func (s *Store) Get(ctx context.Context, ns ports.Namespace, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE namespace = ? AND key = ?`, string(ns), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) Put(ctx context.Context, ns ports.Namespace, key, value string) error {
	query := `INSERT INTO kv (namespace, key, value) VALUES (?, ?, ?)
			  ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value`
	_, err := s.db.ExecContext(ctx, query, string(ns), key, value)
	return err
}

func (s *Store) Delete(ctx context.Context, ns ports.Namespace, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE namespace = ? AND key = ?`, string(ns), key)
	return err
}

func (s *Store) Keys(ctx context.Context, ns ports.Namespace) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM kv WHERE namespace = ? ORDER BY key`, string(ns))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ensure interface compliance
var (
	_ ports.KVStore   = (*Store)(nil)
	_ ports.KeyLister = (*Store)(nil)
)
