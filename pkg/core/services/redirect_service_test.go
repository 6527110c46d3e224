package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wadjakorntonsri/go-redirects/pkg/core/domain"
	"github.com/wadjakorntonsri/go-redirects/pkg/logger"
	"github.com/wadjakorntonsri/go-redirects/pkg/ports"
)

func TestCreate(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	rec, err := svc.Create(ctx, domain.CreateInput{
		Group: "ab", Slug: "home", Target: "https://example.com", Title: "Home",
	}, "u1")
	require.NoError(t, err)

	assert.Equal(t, "ab/home", rec.Key())
	assert.Equal(t, "u1", rec.CreatedBy)
	assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)
	assert.True(t, recordExists(t, store, "ab/home"))
	assert.Equal(t, []string{"ab/home"}, members(t, store, domain.PartitionAll))
	assert.Equal(t, []string{"ab/home"}, members(t, store, domain.UserPartition("u1")))

	raw, ok, _ := store.Get(ctx, ports.NamespaceCounters, "ab/home")
	assert.True(t, ok)
	assert.Equal(t, "0", raw)
}

func TestCreateConflict(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	mustCreate(t, svc, "ab", "home", "https://example.com", "u1")

	_, err := svc.Create(ctx, domain.CreateInput{Group: "ab", Slug: "home", Target: "https://other.example"}, "u2")
	assert.ErrorIs(t, err, domain.ErrConflict)

	view, err := svc.Get(ctx, "ab", "home")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", view.Redirect.Target)
	assert.Equal(t, []string{"ab/home"}, members(t, store, domain.PartitionAll))
	assert.Empty(t, members(t, store, domain.UserPartition("u2")))
}

func TestCreateValidationWritesNothing(t *testing.T) {
	tests := []struct {
		name string
		in   domain.CreateInput
		user string
	}{
		{name: "bad target", in: domain.CreateInput{Group: "ab", Slug: "home", Target: "not-a-url"}, user: "u1"},
		{name: "relative target", in: domain.CreateInput{Group: "ab", Slug: "home", Target: "/x"}, user: "u1"},
		{name: "bad group", in: domain.CreateInput{Group: "a b", Slug: "home", Target: "https://example.com"}, user: "u1"},
		{name: "long group", in: domain.CreateInput{Group: "abcdefghijklmnopqrstuvwxyz0123456", Slug: "home", Target: "https://example.com"}, user: "u1"},
		{name: "bad slug", in: domain.CreateInput{Group: "ab", Slug: "ho/me", Target: "https://example.com"}, user: "u1"},
		{name: "no creator", in: domain.CreateInput{Group: "ab", Slug: "home", Target: "https://example.com"}, user: ""},
		{name: "shadowed by api route", in: domain.CreateInput{Group: "api", Slug: "v1", Target: "https://example.com"}, user: "u1"},
		{name: "shadowed by logout route", in: domain.CreateInput{Group: "auth", Slug: "logout", Target: "https://example.com"}, user: "u1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(t)
			_, err := svc.Create(context.Background(), tt.in, tt.user)
			assert.ErrorIs(t, err, domain.ErrBadRequest)

			for _, ns := range ports.Namespaces {
				keys, err := store.Keys(context.Background(), ns)
				require.NoError(t, err)
				assert.Empty(t, keys, "namespace %s", ns)
			}
		})
	}
}

func TestCreateSurvivesSideEffectFailures(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore()
	store.breakPut(ports.NamespaceCounters)
	store.breakPut(ports.NamespaceIndexes)
	svc := NewRedirectService(store)

	_, err := svc.Create(ctx, domain.CreateInput{Group: "ab", Slug: "home", Target: "https://example.com"}, "u1")
	require.NoError(t, err)

	view, err := svc.Get(ctx, "ab", "home")
	require.NoError(t, err)
	assert.Zero(t, view.Clicks)
}

func TestCreatePrimaryWriteFailure(t *testing.T) {
	store := newFaultyStore()
	store.breakPut(ports.NamespaceRecords)
	svc := NewRedirectService(store)

	_, err := svc.Create(context.Background(), domain.CreateInput{Group: "ab", Slug: "home", Target: "https://example.com"}, "u1")
	assert.ErrorIs(t, err, domain.ErrInternal)
	assert.Empty(t, members(t, store, domain.PartitionAll))
}

func TestUniquenessOverCreateDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	for i := 0; i < 3; i++ {
		mustCreate(t, svc, "ab", "home", "https://example.com", "u1")
		_, err := svc.Create(ctx, domain.CreateInput{Group: "ab", Slug: "home", Target: "https://example.com"}, "u1")
		assert.ErrorIs(t, err, domain.ErrConflict)
		require.NoError(t, svc.Delete(ctx, "ab", "home"))
	}
}

func TestGetIncludesClicks(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	mustCreate(t, svc, "ab", "home", "https://example.com", "u1")
	require.NoError(t, store.Put(ctx, ports.NamespaceCounters, "ab/home", "7"))

	view, err := svc.Get(ctx, "ab", "home")
	require.NoError(t, err)
	assert.EqualValues(t, 7, view.Clicks)

	_, err = svc.Get(ctx, "ab", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetCorrupted(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	require.NoError(t, store.Put(ctx, ports.NamespaceRecords, "ab/bad", "{"))

	_, err := svc.Get(ctx, "ab", "bad")
	assert.ErrorIs(t, err, domain.ErrCorrupted)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateSameKey(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	orig := mustCreate(t, svc, "ab", "home", "https://example.com", "u1")

	res, err := svc.Update(ctx, "ab", "home", domain.Patch{
		Target: ptr("https://example.org"),
		Notes:  ptr("moved"),
		Group:  ptr("ab"),
	})
	require.NoError(t, err)

	assert.False(t, res.Renamed)
	assert.Empty(t, res.OldKey)
	assert.Equal(t, "https://example.org", res.Redirect.Target)
	assert.Equal(t, "moved", res.Redirect.Notes)
	assert.Equal(t, orig.CreatedAt, res.Redirect.CreatedAt)
	assert.True(t, res.Redirect.UpdatedAt.After(orig.UpdatedAt))
	assert.Equal(t, []string{"ab/home"}, members(t, store, domain.PartitionAll))
}

func TestUpdateRename(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	mustCreate(t, svc, "ab", "other", "https://other.example", "u1")
	orig, err := svc.Create(ctx, domain.CreateInput{
		Group: "ab", Slug: "home", Target: "https://example.com", Title: "Home", Notes: "n",
	}, "u1")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, ports.NamespaceCounters, "ab/home", "5"))

	res, err := svc.Update(ctx, "ab", "home", domain.Patch{Slug: ptr("landing")})
	require.NoError(t, err)
	assert.True(t, res.Renamed)
	assert.Equal(t, "ab/home", res.OldKey)
	assert.Equal(t, "ab/landing", res.NewKey)

	assert.False(t, recordExists(t, store, "ab/home"))
	assert.True(t, recordExists(t, store, "ab/landing"))
	assert.Equal(t, []string{"ab/other", "ab/landing"}, members(t, store, domain.PartitionAll))
	assert.Equal(t, []string{"ab/other", "ab/landing"}, members(t, store, domain.UserPartition("u1")))

	view, err := svc.Get(ctx, "ab", "landing")
	require.NoError(t, err)
	got := view.Redirect
	assert.Equal(t, orig.Target, got.Target)
	assert.Equal(t, orig.CreatedBy, got.CreatedBy)
	assert.Equal(t, orig.CreatedAt, got.CreatedAt)
	assert.Equal(t, orig.Title, got.Title)
	assert.Equal(t, orig.Notes, got.Notes)
	assert.Equal(t, "ab", got.Group)
	assert.Equal(t, "landing", got.Slug)
	assert.True(t, got.UpdatedAt.After(orig.UpdatedAt))
	assert.EqualValues(t, 5, view.Clicks)

	_, ok, _ := store.Get(ctx, ports.NamespaceCounters, "ab/home")
	assert.False(t, ok)

	_, err = svc.Get(ctx, "ab", "home")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateRenameConflict(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	mustCreate(t, svc, "ab", "home", "https://example.com", "u1")
	mustCreate(t, svc, "cd", "home", "https://example.org", "u2")

	_, err := svc.Update(ctx, "ab", "home", domain.Patch{Group: ptr("cd")})
	assert.ErrorIs(t, err, domain.ErrConflict)

	assert.True(t, recordExists(t, store, "ab/home"))
	assert.Equal(t, []string{"ab/home", "cd/home"}, members(t, store, domain.PartitionAll))
}

func TestCreateAllowsGroupsSharingRoutePrefix(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreate(t, svc, "api", "foo", "https://example.com", "u1")
	mustCreate(t, svc, "auth", "foo", "https://example.com", "u1")
	mustCreate(t, svc, "healthz", "x", "https://example.com", "u1")
}

func TestRenameIndexFailureSparesOtherPartition(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore()
	svc := NewRedirectService(store)
	mustCreate(t, svc, "ab", "home", "https://example.com", "u1")
	store.breakPutKey(ports.NamespaceIndexes, domain.PartitionAll)

	res, err := svc.Update(ctx, "ab", "home", domain.Patch{Slug: ptr("landing")})
	require.NoError(t, err)
	assert.True(t, res.Renamed)

	assert.Equal(t, []string{"ab/home"}, members(t, store, domain.PartitionAll))
	assert.Equal(t, []string{"ab/landing"}, members(t, store, domain.UserPartition("u1")))

	mine, err := svc.ListByUser(ctx, "u1", 1, 10)
	require.NoError(t, err)
	require.Len(t, mine.Items, 1)
	assert.Equal(t, "ab/landing", mine.Items[0].Key)
}

func TestRenameRecordDeleteFailureIsLogged(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.ErrorLevel)
	prev := logger.Log
	logger.Log = zap.New(core)
	t.Cleanup(func() { logger.Log = prev })

	store := newFaultyStore()
	svc := NewRedirectService(store)
	mustCreate(t, svc, "ab", "home", "https://example.com", "u1")
	store.breakDelete(ports.NamespaceRecords)

	_, err := svc.Update(ctx, "ab", "home", domain.Patch{Slug: ptr("landing")})
	assert.ErrorIs(t, err, domain.ErrInternal)
	assert.True(t, recordExists(t, store, "ab/home"))
	assert.True(t, recordExists(t, store, "ab/landing"))

	entries := logs.FilterField(zap.String("new_key", "ab/landing")).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "ab/home", entries[0].ContextMap()["old_key"])
}

func TestUpdateErrors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	mustCreate(t, svc, "ab", "home", "https://example.com", "u1")

	tests := []struct {
		name  string
		slug  string
		patch domain.Patch
		want  error
	}{
		{name: "empty patch", slug: "home", patch: domain.Patch{}, want: domain.ErrBadRequest},
		{name: "bad target", slug: "home", patch: domain.Patch{Target: ptr("nope")}, want: domain.ErrBadRequest},
		{name: "bad group", slug: "home", patch: domain.Patch{Group: ptr("")}, want: domain.ErrBadRequest},
		{name: "bad slug", slug: "home", patch: domain.Patch{Slug: ptr("a b")}, want: domain.ErrBadRequest},
		{name: "missing", slug: "gone", patch: domain.Patch{Title: ptr("x")}, want: domain.ErrNotFound},
		{name: "invalid before missing", slug: "gone", patch: domain.Patch{Target: ptr("nope")}, want: domain.ErrBadRequest},
		{name: "rename onto route", slug: "home", patch: domain.Patch{Group: ptr("api"), Slug: ptr("v1")}, want: domain.ErrBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Update(ctx, "ab", tt.slug, tt.patch)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	mustCreate(t, svc, "ab", "home", "https://example.com", "u1")
	mustCreate(t, svc, "ab", "keep", "https://example.com", "u1")

	require.NoError(t, svc.Delete(ctx, "ab", "home"))

	assert.False(t, recordExists(t, store, "ab/home"))
	assert.Equal(t, []string{"ab/keep"}, members(t, store, domain.PartitionAll))
	assert.Equal(t, []string{"ab/keep"}, members(t, store, domain.UserPartition("u1")))
	_, ok, _ := store.Get(ctx, ports.NamespaceCounters, "ab/home")
	assert.False(t, ok)

	assert.ErrorIs(t, svc.Delete(ctx, "ab", "home"), domain.ErrNotFound)
}

func TestDeleteCorruptedRecord(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	mustCreate(t, svc, "ab", "home", "https://example.com", "u1")
	require.NoError(t, store.Put(ctx, ports.NamespaceRecords, "ab/home", "garbage"))

	require.NoError(t, svc.Delete(ctx, "ab", "home"))
	assert.False(t, recordExists(t, store, "ab/home"))
	assert.Empty(t, members(t, store, domain.PartitionAll))
	// creator unknown, left for the reconciler
	assert.Equal(t, []string{"ab/home"}, members(t, store, domain.UserPartition("u1")))
}

func TestDeleteIndexFailureLeavesDanglingEntry(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore()
	svc := NewRedirectService(store)
	mustCreate(t, svc, "ab", "home", "https://example.com", "u1")
	mustCreate(t, svc, "ab", "keep", "https://example.com", "u1")

	store.breakPut(ports.NamespaceIndexes)
	require.NoError(t, svc.Delete(ctx, "ab", "home"))

	res, err := svc.List(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalItems)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "ab/keep", res.Items[0].Key)
}

func TestListAndListByUser(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	mustCreate(t, svc, "ab", "one", "https://example.com/1", "u1")
	mustCreate(t, svc, "ab", "two", "https://example.com/2", "u2")
	mustCreate(t, svc, "ab", "three", "https://example.com/3", "u1")
	require.NoError(t, store.Put(ctx, ports.NamespaceRecords, "ab/two", "broken"))

	all, err := svc.List(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, all.TotalItems)
	assert.Equal(t, 2, all.TotalPages)
	require.Len(t, all.Items, 2)
	assert.Equal(t, "ab/one", all.Items[0].Key)
	assert.NotNil(t, all.Items[0].Redirect)
	assert.Equal(t, "ab/two", all.Items[1].Key)
	assert.True(t, all.Items[1].Corrupted)
	assert.Nil(t, all.Items[1].Redirect)

	mine, err := svc.ListByUser(ctx, "u1", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, mine.TotalItems)
	assert.Equal(t, 1, mine.TotalPages)
	require.Len(t, mine.Items, 2)
	assert.Equal(t, "ab/three", mine.Items[1].Key)

	none, err := svc.ListByUser(ctx, "nobody", 1, 10)
	require.NoError(t, err)
	assert.NotNil(t, none.Items)
	assert.Empty(t, none.Items)

	_, err = svc.ListByUser(ctx, "", 1, 10)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestListNormalisesPaging(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.List(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, DefaultPageSize, res.PageSize)

	res, err = svc.List(context.Background(), 2, 1000)
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, res.PageSize)
}

func TestIndexConsistencyAfterOperations(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	check := func(key, user string, live bool) {
		t.Helper()
		assert.Equal(t, live, recordExists(t, store, key))
		assert.Equal(t, live, contains(members(t, store, domain.PartitionAll), key))
		assert.Equal(t, live, contains(members(t, store, domain.UserPartition(user)), key))
	}

	mustCreate(t, svc, "g1", "s1", "https://example.com", "u1")
	check("g1/s1", "u1", true)

	_, err := svc.Update(ctx, "g1", "s1", domain.Patch{Group: ptr("g2"), Slug: ptr("s2")})
	require.NoError(t, err)
	check("g1/s1", "u1", false)
	check("g2/s2", "u1", true)

	_, err = svc.Update(ctx, "g2", "s2", domain.Patch{Title: ptr("t")})
	require.NoError(t, err)
	check("g2/s2", "u1", true)

	require.NoError(t, svc.Delete(ctx, "g2", "s2"))
	check("g2/s2", "u1", false)
}

func contains(keys []string, key string) bool {
	n := 0
	for _, k := range keys {
		if k == key {
			n++
		}
	}
	return n == 1
}
