package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Retention bounds the history kept per dataset. Zero values disable a bound.
type Retention struct {
	MaxRuns int
	MaxAge  time.Duration
}

type deleteRunsFn func(context.Context, []Run) error

type fetchRunsFn func(string, FilterFn) ([]Run, error)

// pruneOutdated deletes the runs of a dataset older than MaxAge.
func (r Retention) pruneOutdated(ctx context.Context, dataset string, now time.Time, fetchFn fetchRunsFn, deleteFn deleteRunsFn) error {
	runs, err := fetchFn(dataset, func(run Run) bool {
		return now.Sub(run.CreatedAt) > r.MaxAge
	})
	if err != nil {
		return fmt.Errorf("unable find runs of %s: %w", dataset, err)
	}
	if err := deleteFn(ctx, runs); err != nil {
		return fmt.Errorf("unable delete outdated runs of %s: %w", dataset, err)
	}
	return nil
}

// pruneOversize deletes the oldest runs of a dataset beyond MaxRuns.
func (r Retention) pruneOversize(ctx context.Context, dataset string, fetchFn fetchRunsFn, deleteFn deleteRunsFn) error {
	runs, err := fetchFn(dataset, nil)
	if err != nil {
		return fmt.Errorf("unable find runs of %s: %w", dataset, err)
	}
	if len(runs) <= r.MaxRuns {
		return nil
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})
	if err := deleteFn(ctx, runs[:len(runs)-r.MaxRuns]); err != nil {
		return fmt.Errorf("unable delete oversize runs of %s: %w", dataset, err)
	}
	return nil
}

func (s *Store) DeleteMany(ctx context.Context, runs []Run) error {
	for _, run := range runs {
		if err := s.Delete(ctx, run); err != nil {
			return err
		}
	}
	return nil
}

// Prune applies the retention to every dataset.
func (s *Store) Prune(ctx context.Context, r Retention) error {
	datasets, err := s.Datasets()
	if err != nil {
		return fmt.Errorf("unable to fetch datasets: %w", err)
	}
	now := time.Now().UTC()
	for _, dataset := range datasets {
		if r.MaxAge > 0 {
			if err := r.pruneOutdated(ctx, dataset, now, s.FindByDataset, s.DeleteMany); err != nil {
				return err
			}
		}
		if r.MaxRuns > 0 {
			if err := r.pruneOversize(ctx, dataset, s.FindByDataset, s.DeleteMany); err != nil {
				return err
			}
		}
	}
	return nil
}
