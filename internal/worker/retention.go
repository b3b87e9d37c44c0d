// Package worker contains background workers that maintain the
// snapshot store.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/manfullwel/ska/internal/history"
)

// RetentionWorker periodically prunes every entity's history down to
// the retention limit. The pipeline prunes on write; this sweep also
// covers entities that stopped appearing in runs and limits lowered
// after data accumulated.
type RetentionWorker struct {
	store    history.Store
	keep     int
	interval time.Duration
	log      *zap.Logger
}

// NewRetentionWorker creates the worker. log may be nil.
func NewRetentionWorker(store history.Store, keep int, interval time.Duration, log *zap.Logger) *RetentionWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RetentionWorker{store: store, keep: keep, interval: interval, log: log}
}

// Run sweeps on a ticker until the context is cancelled.
func (w *RetentionWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.Sweep(ctx); err != nil {
				w.log.Warn("retention sweep failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// Sweep prunes all entities present in the store once.
func (w *RetentionWorker) Sweep(ctx context.Context) error {
	snaps, err := w.store.Query(ctx, history.Filter{})
	if err != nil {
		return err
	}

	entities := make(map[string]struct{})
	for _, snap := range snaps {
		entities[snap.Entity] = struct{}{}
	}
	for entity := range entities {
		if err := w.store.Prune(ctx, entity, w.keep); err != nil {
			return err
		}
	}
	w.log.Debug("retention sweep complete", zap.Int("entities", len(entities)))
	return nil
}
