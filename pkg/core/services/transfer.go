package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wadjakorntonsri/go-redirects/pkg/core/domain"
	"github.com/wadjakorntonsri/go-redirects/pkg/logger"
)

// ImportReport counts the outcome of an import.
type ImportReport struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Export returns every record reachable from the global index together
// with its click count, in index order. Dangling and corrupted entries are
// skipped and logged.
func (s *RedirectService) Export(ctx context.Context) ([]domain.RedirectView, error) {
	keys, err := s.indexes.Members(ctx, domain.PartitionAll)
	if err != nil {
		return nil, err
	}

	out := make([]domain.RedirectView, 0, len(keys))
	for _, key := range keys {
		rec, err := s.records.Get(ctx, key)
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrCorrupted) {
			logger.Log.Warn("export skipped entry", zap.String("key", key), zap.Error(err))
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, domain.RedirectView{Redirect: rec, Clicks: s.clicks(ctx, key)})
	}
	return out, nil
}

// Import recreates exported redirects, keeping creator, timestamps and
// click counts. Keys that already exist are skipped.
func (s *RedirectService) Import(ctx context.Context, views []domain.RedirectView) (*ImportReport, error) {
	report := &ImportReport{}
	for _, v := range views {
		if v.Redirect == nil {
			report.Failed++
			continue
		}
		rec := *v.Redirect
		in := domain.CreateInput{Group: rec.Group, Slug: rec.Slug, Target: rec.Target}
		if err := validateCreate(in, rec.CreatedBy); err != nil {
			logger.Log.Warn("import rejected record", zap.String("key", rec.Key()), zap.Error(err))
			report.Failed++
			continue
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = s.now().UTC()
		}
		if rec.UpdatedAt.IsZero() {
			rec.UpdatedAt = rec.CreatedAt
		}

		err := s.insert(ctx, &rec)
		switch {
		case errors.Is(err, domain.ErrConflict):
			report.Skipped++
			continue
		case err != nil:
			return report, fmt.Errorf("import %s: %w", rec.Key(), err)
		}

		if v.Clicks > 0 {
			if err := s.counters.put(ctx, rec.Key(), v.Clicks); err != nil {
				logger.Log.Warn("import counter failed", zap.String("key", rec.Key()), zap.Error(err))
			}
		}
		report.Imported++
	}
	return report, nil
}
