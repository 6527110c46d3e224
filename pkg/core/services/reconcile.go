package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"go.uber.org/zap"

	"github.com/wadjakorntonsri/go-redirects/pkg/core/domain"
	"github.com/wadjakorntonsri/go-redirects/pkg/logger"
	"github.com/wadjakorntonsri/go-redirects/pkg/ports"
)

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	Records        int      `json:"records"`
	Partitions     int      `json:"partitions"`
	Added          int      `json:"added"`
	Removed        int      `json:"removed"`
	OrphanCounters int      `json:"orphan_counters"`
	Corrupted      []string `json:"corrupted,omitempty"`
	DryRun         bool     `json:"dry_run"`
}

// Reconciler rebuilds index membership and drops orphan counters from the
// records themselves. It needs a store that can enumerate keys and should
// run while no admin writes are in flight.
type Reconciler struct {
	lister   ports.KeyLister
	records  *Records
	indexes  *Indexes
	counters *Counters
}

// NewReconciler fails unless store also implements ports.KeyLister.
func NewReconciler(store ports.KVStore) (*Reconciler, error) {
	lister, ok := store.(ports.KeyLister)
	if !ok {
		return nil, errors.New("store does not support key listing")
	}
	return &Reconciler{
		lister:   lister,
		records:  NewRecords(store),
		indexes:  NewIndexes(store),
		counters: NewCounters(store),
	}, nil
}

// Run repairs partitions and counters. With dryRun set it only reports.
func (rc *Reconciler) Run(ctx context.Context, dryRun bool) (*ReconcileReport, error) {
	report := &ReconcileReport{DryRun: dryRun}

	keys, err := rc.lister.Keys(ctx, ports.NamespaceRecords)
	if err != nil {
		return nil, fmt.Errorf("%w: list records: %v", domain.ErrInternal, err)
	}
	report.Records = len(keys)

	live := make(map[string]bool, len(keys))
	unknownOwner := make(map[string]bool)
	want := map[string]map[string]bool{domain.PartitionAll: {}}
	for _, key := range keys {
		live[key] = true
		want[domain.PartitionAll][key] = true

		rec, err := rc.records.Get(ctx, key)
		switch {
		case errors.Is(err, domain.ErrCorrupted):
			unknownOwner[key] = true
			report.Corrupted = append(report.Corrupted, key)
			continue
		case errors.Is(err, domain.ErrNotFound):
			// deleted since listing
			delete(live, key)
			delete(want[domain.PartitionAll], key)
			continue
		case err != nil:
			return nil, err
		}
		p := domain.UserPartition(rec.CreatedBy)
		if want[p] == nil {
			want[p] = map[string]bool{}
		}
		want[p][key] = true
	}

	partitions, err := rc.lister.Keys(ctx, ports.NamespaceIndexes)
	if err != nil {
		return nil, fmt.Errorf("%w: list partitions: %v", domain.ErrInternal, err)
	}
	for p := range want {
		if !slices.Contains(partitions, p) {
			partitions = append(partitions, p)
		}
	}
	sort.Strings(partitions)
	report.Partitions = len(partitions)

	for _, p := range partitions {
		current, err := rc.indexes.Members(ctx, p)
		if errors.Is(err, domain.ErrCorrupted) {
			report.Corrupted = append(report.Corrupted, "index:"+p)
			current = nil
		} else if err != nil {
			return nil, err
		}

		_, isUser := domain.PartitionOwner(p)
		keep := map[string]bool{}
		if isUser {
			// a corrupted record may belong to any creator
			for k := range unknownOwner {
				keep[k] = true
			}
		}

		next, added, removed := reconcilePartition(current, want[p], keep)
		report.Added += added
		report.Removed += removed
		if dryRun || (added == 0 && removed == 0 && current != nil) {
			continue
		}

		if len(next) == 0 && isUser {
			err = rc.indexes.Drop(ctx, p)
		} else {
			err = rc.indexes.write(ctx, p, next)
		}
		if err != nil {
			return nil, err
		}
		logger.Log.Info("partition reconciled", zap.String("partition", p), zap.Int("added", added), zap.Int("removed", removed))
	}

	counterKeys, err := rc.lister.Keys(ctx, ports.NamespaceCounters)
	if err != nil {
		return nil, fmt.Errorf("%w: list counters: %v", domain.ErrInternal, err)
	}
	for _, key := range counterKeys {
		if live[key] {
			continue
		}
		report.OrphanCounters++
		if dryRun {
			continue
		}
		if err := rc.counters.Remove(ctx, key); err != nil {
			return nil, err
		}
	}

	return report, nil
}

// reconcilePartition keeps the existing order of wanted members, drops
// everything else except keep, removes duplicates and appends missing
// wanted keys in lexical order.
func reconcilePartition(current []string, want, keep map[string]bool) (next []string, added, removed int) {
	seen := make(map[string]bool, len(current))
	next = make([]string, 0, len(want))
	for _, k := range current {
		if seen[k] || (!want[k] && !keep[k]) {
			removed++
			continue
		}
		seen[k] = true
		next = append(next, k)
	}

	var missing []string
	for k := range want {
		if !seen[k] {
			missing = append(missing, k)
		}
	}
	sort.Strings(missing)
	return append(next, missing...), len(missing), removed
}
