package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/wadjakorntonsri/go-redirects/pkg/core/domain"
	"github.com/wadjakorntonsri/go-redirects/pkg/logger"
	"github.com/wadjakorntonsri/go-redirects/pkg/ports"
)

const (
	maxSegmentLength = 256
	incrementTimeout = 5 * time.Second
)

// RedirectResolver serves public lookups. It never touches the indexes.
type RedirectResolver struct {
	records  *Records
	counters *Counters
	inflight sync.WaitGroup
}

// NewResolver returns a resolver over store.
func NewResolver(store ports.KVStore) *RedirectResolver {
	return &RedirectResolver{
		records:  NewRecords(store),
		counters: NewCounters(store),
	}
}

// Resolve returns the target of group/slug and bumps its counter in the
// background. The increment outlives the request and its result is only
// logged.
func (r *RedirectResolver) Resolve(ctx context.Context, group, slug string) (string, error) {
	if !validSegment(group) || !validSegment(slug) {
		return "", fmt.Errorf("%w: malformed path", domain.ErrBadRequest)
	}

	key := domain.CompositeKey(group, slug)
	rec, err := r.records.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrCorrupted) {
			logger.Log.Error("resolve hit corrupted record", zap.String("key", key))
		}
		return "", err
	}

	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		// request context is cancelled once the redirect is written
		ctx, cancel := context.WithTimeout(context.Background(), incrementTimeout)
		defer cancel()
		if err := r.counters.Increment(ctx, key); err != nil {
			logger.Log.Warn("click increment failed", zap.String("key", key), zap.Error(err))
		}
	}()

	return rec.Target, nil
}

// Wait blocks until every pending increment has finished.
func (r *RedirectResolver) Wait() {
	r.inflight.Wait()
}

func validSegment(s string) bool {
	if s == "" || len(s) > maxSegmentLength {
		return false
	}
	for _, c := range s {
		if c == '/' || unicode.IsSpace(c) || unicode.IsControl(c) {
			return false
		}
	}
	return true
}

var _ ports.Resolver = (*RedirectResolver)(nil)
