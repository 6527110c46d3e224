// Package repository picks a key-value backend from a store URL.
package repository

import (
	"context"
	"strings"

	"github.com/wadjakorntonsri/go-redirects/pkg/adapters/repository/memory"
	"github.com/wadjakorntonsri/go-redirects/pkg/adapters/repository/postgres"
	"github.com/wadjakorntonsri/go-redirects/pkg/adapters/repository/redis"
	"github.com/wadjakorntonsri/go-redirects/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/go-redirects/pkg/ports"
)

// Open returns the backend for storeURL:
//
//	memory:                      in-process map
//	redis://, rediss://          Redis
//	postgres://, postgresql://   Postgres
//	anything else                SQLite, or Turso for libsql:// and wss://
func Open(ctx context.Context, storeURL, redisPrefix string) (ports.KVStore, error) {
	switch {
	case storeURL == "memory:" || storeURL == "memory":
		return memory.NewStore(), nil
	case strings.HasPrefix(storeURL, "redis://"), strings.HasPrefix(storeURL, "rediss://"):
		return redis.NewRedisStore(ctx, storeURL, redisPrefix)
	case strings.HasPrefix(storeURL, "postgres://"), strings.HasPrefix(storeURL, "postgresql://"):
		return postgres.NewPostgresStore(ctx, storeURL)
	default:
		return sqlite.NewSQLiteStore(storeURL)
	}
}
