package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/go-redirects/pkg/adapters/repository/memory"
	"github.com/wadjakorntonsri/go-redirects/pkg/core/domain"
	"github.com/wadjakorntonsri/go-redirects/pkg/ports"
)

var errStoreDown = errors.New("store down")

// faultyStore fails writes to the namespaces listed in failPut/failDelete
// and puts to the single keys listed in failPutKey.
type faultyStore struct {
	*memory.Store
	mu         sync.Mutex
	failPut    map[ports.Namespace]bool
	failDelete map[ports.Namespace]bool
	failPutKey map[string]bool
}

func newFaultyStore() *faultyStore {
	return &faultyStore{
		Store:      memory.NewStore(),
		failPut:    map[ports.Namespace]bool{},
		failDelete: map[ports.Namespace]bool{},
		failPutKey: map[string]bool{},
	}
}

func (f *faultyStore) breakPut(ns ports.Namespace) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failPut[ns] = true
}

func (f *faultyStore) breakPutKey(ns ports.Namespace, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failPutKey[string(ns)+"/"+key] = true
}

func (f *faultyStore) breakDelete(ns ports.Namespace) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failDelete[ns] = true
}

func (f *faultyStore) Put(ctx context.Context, ns ports.Namespace, key, value string) error {
	f.mu.Lock()
	fail := f.failPut[ns] || f.failPutKey[string(ns)+"/"+key]
	f.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return f.Store.Put(ctx, ns, key, value)
}

func (f *faultyStore) Delete(ctx context.Context, ns ports.Namespace, key string) error {
	f.mu.Lock()
	fail := f.failDelete[ns]
	f.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return f.Store.Delete(ctx, ns, key)
}

func newTestService(t *testing.T) (*RedirectService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := NewRedirectService(store)
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc, store
}

func mustCreate(t *testing.T, svc *RedirectService, group, slug, target, user string) *domain.Redirect {
	t.Helper()
	rec, err := svc.Create(context.Background(), domain.CreateInput{Group: group, Slug: slug, Target: target}, user)
	require.NoError(t, err)
	return rec
}

func members(t *testing.T, store ports.KVStore, partition string) []string {
	t.Helper()
	keys, err := NewIndexes(store).Members(context.Background(), partition)
	require.NoError(t, err)
	return keys
}

func recordExists(t *testing.T, store ports.KVStore, key string) bool {
	t.Helper()
	_, ok, err := store.Get(context.Background(), ports.NamespaceRecords, key)
	require.NoError(t, err)
	return ok
}

func ptr(s string) *string { return &s }
