package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/wadjakorntonsri/go-redirects/pkg/core/domain"
	"github.com/wadjakorntonsri/go-redirects/pkg/logger"
	"github.com/wadjakorntonsri/go-redirects/pkg/ports"
)

// Indexes maintains the materialized partitions in the INDEXES namespace.
// Each partition is one JSON array that is read and rewritten whole on
// every mutation; cost is O(partition size) per call.
type Indexes struct {
	store ports.KVStore
}

// NewIndexes returns an Indexes backed by store.
func NewIndexes(store ports.KVStore) *Indexes {
	return &Indexes{store: store}
}

// Members returns the partition in insertion order. A missing partition is
// empty.
func (ix *Indexes) Members(ctx context.Context, partition string) ([]string, error) {
	raw, found, err := ix.store.Get(ctx, ports.NamespaceIndexes, partition)
	if err != nil {
		return nil, fmt.Errorf("%w: get partition %s: %v", domain.ErrInternal, partition, err)
	}
	if !found {
		return []string{}, nil
	}
	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		logger.Log.Error("corrupted index partition", zap.String("partition", partition), zap.Error(err))
		return nil, fmt.Errorf("%w: partition %s", domain.ErrCorrupted, partition)
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

func (ix *Indexes) write(ctx context.Context, partition string, keys []string) error {
	data, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("%w: encode partition: %v", domain.ErrInternal, err)
	}
	if err := ix.store.Put(ctx, ports.NamespaceIndexes, partition, string(data)); err != nil {
		return fmt.Errorf("%w: put partition %s: %v", domain.ErrInternal, partition, err)
	}
	return nil
}

// Add appends key unless it is already a member.
func (ix *Indexes) Add(ctx context.Context, partition, key string) error {
	keys, err := ix.Members(ctx, partition)
	if err != nil {
		return err
	}
	if slices.Contains(keys, key) {
		return nil
	}
	return ix.write(ctx, partition, append(keys, key))
}

// Remove drops key if present.
func (ix *Indexes) Remove(ctx context.Context, partition, key string) error {
	keys, err := ix.Members(ctx, partition)
	if err != nil {
		return err
	}
	i := slices.Index(keys, key)
	if i < 0 {
		return nil
	}
	return ix.write(ctx, partition, slices.Delete(keys, i, i+1))
}

// Rename moves oldKey to newKey in ALL and in the creator partition,
// removing before adding in each. A reader between the two steps sees the
// key absent rather than duplicated. Every step runs even if an earlier one
// failed; the failures are joined.
func (ix *Indexes) Rename(ctx context.Context, oldKey, newKey, createdBy string) error {
	var errs []error
	for _, partition := range []string{domain.PartitionAll, domain.UserPartition(createdBy)} {
		if err := ix.Remove(ctx, partition, oldKey); err != nil {
			errs = append(errs, err)
		}
		if err := ix.Add(ctx, partition, newKey); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ListPage slices the partition to [(page-1)*pageSize, page*pageSize).
func (ix *Indexes) ListPage(ctx context.Context, partition string, page, pageSize int) (domain.Page, error) {
	if page < 1 || pageSize < 1 {
		return domain.Page{}, fmt.Errorf("%w: page and page size must be positive", domain.ErrBadRequest)
	}
	keys, err := ix.Members(ctx, partition)
	if err != nil {
		return domain.Page{}, err
	}

	total := len(keys)
	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)

	return domain.Page{
		Keys:       slices.Clone(keys[start:end]),
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

// Drop deletes a whole partition.
func (ix *Indexes) Drop(ctx context.Context, partition string) error {
	if err := ix.store.Delete(ctx, ports.NamespaceIndexes, partition); err != nil {
		return fmt.Errorf("%w: delete partition %s: %v", domain.ErrInternal, partition, err)
	}
	return nil
}
