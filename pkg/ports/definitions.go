package ports

import (
	"context"

	"github.com/wadjakorntonsri/go-redirects/pkg/core/domain"
)

// Namespace is a logical keyspace inside the key-value store
type Namespace string

const (
	NamespaceRecords  Namespace = "RECORDS"
	NamespaceCounters Namespace = "COUNTERS"
	NamespaceIndexes  Namespace = "INDEXES"
)

// Namespaces lists every namespace the service writes to.
var Namespaces = []Namespace{NamespaceRecords, NamespaceCounters, NamespaceIndexes}

// KVStore is the single-key contract the service relies on. Get reports a
// missing key with found == false and a nil error.
type KVStore interface {
	Get(ctx context.Context, ns Namespace, key string) (value string, found bool, err error)
	Put(ctx context.Context, ns Namespace, key, value string) error
	Delete(ctx context.Context, ns Namespace, key string) error
	Close() error
}

// KeyLister is implemented by stores that can enumerate a namespace. Only
// the offline reconciler needs it.
type KeyLister interface {
	Keys(ctx context.Context, ns Namespace) ([]string, error)
}

// RedirectService defines the admin operations
type RedirectService interface {
	Create(ctx context.Context, in domain.CreateInput, createdBy string) (*domain.Redirect, error)
	Get(ctx context.Context, group, slug string) (*domain.RedirectView, error)
	List(ctx context.Context, page, pageSize int) (*domain.ListResult, error)
	ListByUser(ctx context.Context, createdBy string, page, pageSize int) (*domain.ListResult, error)
	Update(ctx context.Context, group, slug string, patch domain.Patch) (*domain.UpdateResult, error)
	Delete(ctx context.Context, group, slug string) error
}

// Resolver turns a public path into a redirect target
type Resolver interface {
	Resolve(ctx context.Context, group, slug string) (string, error)
}
