package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wadjakorntonsri/go-redirects/pkg/core/domain"
	"github.com/wadjakorntonsri/go-redirects/pkg/logger"
	"github.com/wadjakorntonsri/go-redirects/pkg/ports"
)

const (
	// DefaultPageSize applies when a list request has no usable page size.
	DefaultPageSize = 20
	// MaxPageSize caps the page size of list requests.
	MaxPageSize = 100
)

// RedirectService runs the admin operations. The record is always the
// first write and the last delete; counters and indexes are reconciled
// afterwards and their failures are logged, not returned.
type RedirectService struct {
	records  *Records
	indexes  *Indexes
	counters *Counters
	now      func() time.Time
}

// NewRedirectService wires records, indexes and counters over one store.
func NewRedirectService(store ports.KVStore) *RedirectService {
	return &RedirectService{
		records:  NewRecords(store),
		indexes:  NewIndexes(store),
		counters: NewCounters(store),
		now:      time.Now,
	}
}

func (s *RedirectService) Create(ctx context.Context, in domain.CreateInput, createdBy string) (*domain.Redirect, error) {
	if err := validateCreate(in, createdBy); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rec := &domain.Redirect{
		Group:     in.Group,
		Slug:      in.Slug,
		Target:    in.Target,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
		Title:     in.Title,
		Notes:     in.Notes,
	}
	if err := s.insert(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// insert writes a validated record that must not exist yet, then seeds
// its counter and index entries.
func (s *RedirectService) insert(ctx context.Context, rec *domain.Redirect) error {
	key := rec.Key()
	exists, err := s.records.Exists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", domain.ErrConflict, key)
	}

	if err := s.records.Put(ctx, rec); err != nil {
		return err
	}

	if err := s.counters.Init(ctx, key); err != nil {
		logger.Log.Warn("counter init failed", zap.String("key", key), zap.Error(err))
	}
	s.addToIndex(ctx, domain.PartitionAll, key)
	s.addToIndex(ctx, domain.UserPartition(rec.CreatedBy), key)

	logger.Log.Info("redirect created", zap.String("key", key), zap.String("created_by", rec.CreatedBy))
	return nil
}

func (s *RedirectService) Get(ctx context.Context, group, slug string) (*domain.RedirectView, error) {
	key := domain.CompositeKey(group, slug)
	rec, err := s.records.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return &domain.RedirectView{Redirect: rec, Clicks: s.clicks(ctx, key)}, nil
}

func (s *RedirectService) List(ctx context.Context, page, pageSize int) (*domain.ListResult, error) {
	return s.listPartition(ctx, domain.PartitionAll, page, pageSize)
}

func (s *RedirectService) ListByUser(ctx context.Context, createdBy string, page, pageSize int) (*domain.ListResult, error) {
	if createdBy == "" {
		return nil, fmt.Errorf("%w: user is required", domain.ErrBadRequest)
	}
	return s.listPartition(ctx, domain.UserPartition(createdBy), page, pageSize)
}

func (s *RedirectService) Update(ctx context.Context, group, slug string, patch domain.Patch) (*domain.UpdateResult, error) {
	if err := validatePatch(group, slug, patch); err != nil {
		return nil, err
	}

	oldKey := domain.CompositeKey(group, slug)
	cur, err := s.records.Get(ctx, oldKey)
	if err != nil {
		return nil, err
	}

	next := *cur
	if patch.Target != nil {
		next.Target = *patch.Target
	}
	if patch.Title != nil {
		next.Title = *patch.Title
	}
	if patch.Notes != nil {
		next.Notes = *patch.Notes
	}
	if patch.Group != nil {
		next.Group = *patch.Group
	}
	if patch.Slug != nil {
		next.Slug = *patch.Slug
	}
	next.UpdatedAt = s.now().UTC()

	newKey := next.Key()
	if newKey == oldKey {
		if err := s.records.Put(ctx, &next); err != nil {
			return nil, err
		}
		return &domain.UpdateResult{Redirect: &next}, nil
	}

	return s.rename(ctx, oldKey, &next)
}

// rename treats a key change as delete-old plus create-new with the same
// payload, carried through records, counters and indexes.
func (s *RedirectService) rename(ctx context.Context, oldKey string, next *domain.Redirect) (*domain.UpdateResult, error) {
	newKey := next.Key()
	exists, err := s.records.Exists(ctx, newKey)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrConflict, newKey)
	}

	if err := s.records.Put(ctx, next); err != nil {
		return nil, err
	}
	if err := s.records.Delete(ctx, oldKey); err != nil {
		logger.Log.Error("rename left both records in place, run reconcile",
			zap.String("old_key", oldKey), zap.String("new_key", newKey), zap.Error(err))
		return nil, err
	}

	if err := s.counters.Move(ctx, oldKey, newKey); err != nil {
		logger.Log.Warn("counter move failed", zap.String("old_key", oldKey), zap.String("new_key", newKey), zap.Error(err))
	}
	if err := s.indexes.Rename(ctx, oldKey, newKey, next.CreatedBy); err != nil {
		logger.Log.Error("index rename failed", zap.String("old_key", oldKey), zap.String("new_key", newKey), zap.Error(err))
	}

	logger.Log.Info("redirect renamed", zap.String("old_key", oldKey), zap.String("new_key", newKey))
	return &domain.UpdateResult{Redirect: next, Renamed: true, OldKey: oldKey, NewKey: newKey}, nil
}

func (s *RedirectService) Delete(ctx context.Context, group, slug string) error {
	key := domain.CompositeKey(group, slug)

	rec, err := s.records.Get(ctx, key)
	corrupted := errors.Is(err, domain.ErrCorrupted)
	if err != nil && !corrupted {
		return err
	}

	if err := s.records.Delete(ctx, key); err != nil {
		return err
	}

	if err := s.counters.Remove(ctx, key); err != nil {
		logger.Log.Warn("counter delete failed", zap.String("key", key), zap.Error(err))
	}
	s.removeFromIndex(ctx, domain.PartitionAll, key)
	if corrupted {
		// the creator is unknown; the reconciler cleans the user partition
		logger.Log.Warn("deleted corrupted record, user partition not updated", zap.String("key", key))
	} else {
		s.removeFromIndex(ctx, domain.UserPartition(rec.CreatedBy), key)
	}

	logger.Log.Info("redirect deleted", zap.String("key", key))
	return nil
}

func (s *RedirectService) listPartition(ctx context.Context, partition string, page, pageSize int) (*domain.ListResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	p, err := s.indexes.ListPage(ctx, partition, page, pageSize)
	if err != nil {
		return nil, err
	}

	items := make([]domain.ListItem, 0, len(p.Keys))
	for _, key := range p.Keys {
		rec, err := s.records.Get(ctx, key)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			logger.Log.Warn("dangling index entry", zap.String("partition", partition), zap.String("key", key))
			continue
		case errors.Is(err, domain.ErrCorrupted):
			items = append(items, domain.ListItem{Key: key, Corrupted: true})
			continue
		case err != nil:
			return nil, err
		}
		items = append(items, domain.ListItem{Key: key, Redirect: rec, Clicks: s.clicks(ctx, key)})
	}

	return &domain.ListResult{
		Items:      items,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalItems: p.TotalItems,
		TotalPages: p.TotalPages,
	}, nil
}

func (s *RedirectService) clicks(ctx context.Context, key string) int64 {
	n, err := s.counters.Value(ctx, key)
	if err != nil {
		logger.Log.Warn("counter read failed", zap.String("key", key), zap.Error(err))
	}
	return n
}

func (s *RedirectService) addToIndex(ctx context.Context, partition, key string) {
	if err := s.indexes.Add(ctx, partition, key); err != nil {
		logger.Log.Error("index add failed", zap.String("partition", partition), zap.String("key", key), zap.Error(err))
	}
}

func (s *RedirectService) removeFromIndex(ctx context.Context, partition, key string) {
	if err := s.indexes.Remove(ctx, partition, key); err != nil {
		logger.Log.Error("index remove failed", zap.String("partition", partition), zap.String("key", key), zap.Error(err))
	}
}

func validateCreate(in domain.CreateInput, createdBy string) error {
	switch {
	case !domain.ValidGroup(in.Group):
		return fmt.Errorf("%w: invalid group %q", domain.ErrBadRequest, in.Group)
	case !domain.ValidSlug(in.Slug):
		return fmt.Errorf("%w: invalid slug %q", domain.ErrBadRequest, in.Slug)
	case domain.Reserved(in.Group, in.Slug):
		return fmt.Errorf("%w: %s is a reserved path", domain.ErrBadRequest, domain.CompositeKey(in.Group, in.Slug))
	case !domain.ValidTarget(in.Target):
		return fmt.Errorf("%w: target must be an absolute URL", domain.ErrBadRequest)
	case createdBy == "":
		return fmt.Errorf("%w: creator is required", domain.ErrBadRequest)
	}
	return nil
}

// validatePatch checks p against the key it is applied to, so a rename onto
// a reserved path is refused before anything is read.
func validatePatch(group, slug string, p domain.Patch) error {
	if p.Group != nil {
		group = *p.Group
	}
	if p.Slug != nil {
		slug = *p.Slug
	}
	switch {
	case p.IsEmpty():
		return fmt.Errorf("%w: empty patch", domain.ErrBadRequest)
	case p.Target != nil && !domain.ValidTarget(*p.Target):
		return fmt.Errorf("%w: target must be an absolute URL", domain.ErrBadRequest)
	case p.Group != nil && !domain.ValidGroup(*p.Group):
		return fmt.Errorf("%w: invalid group %q", domain.ErrBadRequest, *p.Group)
	case p.Slug != nil && !domain.ValidSlug(*p.Slug):
		return fmt.Errorf("%w: invalid slug %q", domain.ErrBadRequest, *p.Slug)
	case (p.Group != nil || p.Slug != nil) && domain.Reserved(group, slug):
		return fmt.Errorf("%w: %s is a reserved path", domain.ErrBadRequest, domain.CompositeKey(group, slug))
	}
	return nil
}

var _ ports.RedirectService = (*RedirectService)(nil)
