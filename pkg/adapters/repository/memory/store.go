package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/wadjakorntonsri/go-redirects/pkg/ports"
)

// Store keeps every namespace in process memory. Used for tests and local
// runs with STORE_URL=memory:.
type Store struct {
	mu   sync.RWMutex
	data map[ports.Namespace]map[string]string
}

func NewStore() *Store {
	return &Store{data: make(map[ports.Namespace]map[string]string)}
}

func (s *Store) Get(ctx context.Context, ns ports.Namespace, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[ns][key]
	return v, ok, nil
}

func (s *Store) Put(ctx context.Context, ns ports.Namespace, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.data[ns]
	if !ok {
		m = make(map[string]string)
		s.data[ns] = m
	}
	m[key] = value
	return nil
}

func (s *Store) Delete(ctx context.Context, ns ports.Namespace, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[ns], key)
	return nil
}

// Keys returns the keys of a namespace in lexical order.
func (s *Store) Keys(ctx context.Context, ns ports.Namespace) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data[ns]))
	for k := range s.data[ns] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) Close() error { return nil }

var (
	_ ports.KVStore   = (*Store)(nil)
	_ ports.KeyLister = (*Store)(nil)
)
