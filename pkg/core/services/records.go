package services

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/wadjakorntonsri/go-redirects/pkg/core/domain"
	"github.com/wadjakorntonsri/go-redirects/pkg/logger"
	"github.com/wadjakorntonsri/go-redirects/pkg/ports"
)

// Records owns the RECORDS namespace: composite key -> JSON redirect.
type Records struct {
	store ports.KVStore
}

// NewRecords returns a Records backed by store.
func NewRecords(store ports.KVStore) *Records {
	return &Records{store: store}
}

// Get loads a record. Decode failures are reported as ErrCorrupted, not
// ErrNotFound.
func (r *Records) Get(ctx context.Context, key string) (*domain.Redirect, error) {
	raw, found, err := r.store.Get(ctx, ports.NamespaceRecords, key)
	if err != nil {
		return nil, fmt.Errorf("%w: get record %s: %v", domain.ErrInternal, key, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}

	var rec domain.Redirect
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		logger.Log.Warn("corrupted record", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("%w: record %s", domain.ErrCorrupted, key)
	}
	return &rec, nil
}

// Exists reports whether anything is stored under key, decodable or not.
func (r *Records) Exists(ctx context.Context, key string) (bool, error) {
	_, found, err := r.store.Get(ctx, ports.NamespaceRecords, key)
	if err != nil {
		return false, fmt.Errorf("%w: get record %s: %v", domain.ErrInternal, key, err)
	}
	return found, nil
}

// Put encodes rec and stores it under its composite key.
func (r *Records) Put(ctx context.Context, rec *domain.Redirect) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: encode record: %v", domain.ErrInternal, err)
	}
	if err := r.store.Put(ctx, ports.NamespaceRecords, rec.Key(), string(data)); err != nil {
		return fmt.Errorf("%w: put record %s: %v", domain.ErrInternal, rec.Key(), err)
	}
	return nil
}

// Delete removes the record; deleting an absent key is not an error.
func (r *Records) Delete(ctx context.Context, key string) error {
	if err := r.store.Delete(ctx, ports.NamespaceRecords, key); err != nil {
		return fmt.Errorf("%w: delete record %s: %v", domain.ErrInternal, key, err)
	}
	return nil
}
