package redis

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/wadjakorntonsri/go-redirects/pkg/ports"
)

// scanBatch is the COUNT hint passed to SCAN.
const scanBatch = 500

// Store maps each namespace onto a key prefix: <prefix><NAMESPACE>:<key>.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore connects using a redis:// or rediss:// URL.
func NewRedisStore(ctx context.Context, rawURL, prefix string) (*Store, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return NewStore(client, prefix), nil
}

// NewStore wraps an existing client.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(ns ports.Namespace, key string) string {
	return s.prefix + string(ns) + ":" + key
}

func (s *Store) Get(ctx context.Context, ns ports.Namespace, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(ns, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) Put(ctx context.Context, ns ports.Namespace, key, value string) error {
	return s.client.Set(ctx, s.key(ns, key), value, 0).Err()
}

func (s *Store) Delete(ctx context.Context, ns ports.Namespace, key string) error {
	return s.client.Del(ctx, s.key(ns, key)).Err()
}

// Keys walks the namespace with SCAN. Keys are returned without prefix.
func (s *Store) Keys(ctx context.Context, ns ports.Namespace) ([]string, error) {
	prefix := s.key(ns, "")
	var raw []string
	iter := s.client.Scan(ctx, 0, escapeGlob(prefix)+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		raw = append(raw, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return uniqueKeys(raw, prefix), nil
}

// uniqueKeys strips prefix and drops repeats. SCAN may return a key more
// than once while the keyspace is rehashing.
func uniqueKeys(raw []string, prefix string) []string {
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		keys = append(keys, strings.TrimPrefix(k, prefix))
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}

func (s *Store) Close() error {
	return s.client.Close()
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}

var (
	_ ports.KVStore   = (*Store)(nil)
	_ ports.KeyLister = (*Store)(nil)
)
