package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wadjakorntonsri/go-redirects/pkg/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	namespace TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (namespace, key)
);`

// Store implements the key-value contract on a Postgres table.
type Store struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Get(ctx context.Context, ns ports.Namespace, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM kv WHERE namespace = $1 AND key = $2`, string(ns), key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) Put(ctx context.Context, ns ports.Namespace, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO kv (namespace, key, value) VALUES ($1, $2, $3)
		 ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value`,
		string(ns), key, value)
	return err
}

func (s *Store) Delete(ctx context.Context, ns ports.Namespace, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM kv WHERE namespace = $1 AND key = $2`, string(ns), key)
	return err
}

func (s *Store) Keys(ctx context.Context, ns ports.Namespace) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key FROM kv WHERE namespace = $1 ORDER BY key`, string(ns))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

var (
	_ ports.KVStore   = (*Store)(nil)
	_ ports.KeyLister = (*Store)(nil)
)
