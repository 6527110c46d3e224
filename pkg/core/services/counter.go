package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/wadjakorntonsri/go-redirects/pkg/core/domain"
	"github.com/wadjakorntonsri/go-redirects/pkg/ports"
)

// Counters keeps approximate click counts in the COUNTERS namespace as
// decimal strings. Increment is a plain read-modify-write, so concurrent
// increments of one key can lose updates.
type Counters struct {
	store ports.KVStore
}

// NewCounters returns a Counters backed by store.
func NewCounters(store ports.KVStore) *Counters {
	return &Counters{store: store}
}

// Init sets the counter of key to 0.
func (c *Counters) Init(ctx context.Context, key string) error {
	return c.put(ctx, key, 0)
}

// Value reads the counter; absent or non-numeric values read as 0.
func (c *Counters) Value(ctx context.Context, key string) (int64, error) {
	return c.read(ctx, key)
}

// Increment adds one to the counter of key.
func (c *Counters) Increment(ctx context.Context, key string) error {
	n, err := c.read(ctx, key)
	if err != nil {
		return err
	}
	return c.put(ctx, key, n+1)
}

// Move copies the counter to newKey and deletes oldKey. Nothing happens if
// oldKey has no counter.
func (c *Counters) Move(ctx context.Context, oldKey, newKey string) error {
	raw, found, err := c.store.Get(ctx, ports.NamespaceCounters, oldKey)
	if err != nil {
		return fmt.Errorf("%w: get counter %s: %v", domain.ErrInternal, oldKey, err)
	}
	if !found {
		return nil
	}
	if err := c.store.Put(ctx, ports.NamespaceCounters, newKey, raw); err != nil {
		return fmt.Errorf("%w: put counter %s: %v", domain.ErrInternal, newKey, err)
	}
	return c.Remove(ctx, oldKey)
}

// Remove deletes the counter of key.
func (c *Counters) Remove(ctx context.Context, key string) error {
	if err := c.store.Delete(ctx, ports.NamespaceCounters, key); err != nil {
		return fmt.Errorf("%w: delete counter %s: %v", domain.ErrInternal, key, err)
	}
	return nil
}

func (c *Counters) read(ctx context.Context, key string) (int64, error) {
	raw, found, err := c.store.Get(ctx, ports.NamespaceCounters, key)
	if err != nil {
		return 0, fmt.Errorf("%w: get counter %s: %v", domain.ErrInternal, key, err)
	}
	if !found {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, nil
	}
	return n, nil
}

func (c *Counters) put(ctx context.Context, key string, n int64) error {
	if err := c.store.Put(ctx, ports.NamespaceCounters, key, strconv.FormatInt(n, 10)); err != nil {
		return fmt.Errorf("%w: put counter %s: %v", domain.ErrInternal, key, err)
	}
	return nil
}
