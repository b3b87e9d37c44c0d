package history

import (
	"context"
	"sort"
	"sync"

	"github.com/manfullwel/ska/internal/types"
)

// MemoryStore is an in-memory Store for tests and toolchain-free runs.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps []types.HistorySnapshot
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append writes one snapshot.
func (s *MemoryStore) Append(ctx context.Context, snap types.HistorySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
	return nil
}

// Query returns matching snapshots ordered oldest first.
func (s *MemoryStore) Query(ctx context.Context, f Filter) ([]types.HistorySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []types.HistorySnapshot
	for _, snap := range s.snaps {
		if f.Entity != "" && snap.Entity != f.Entity {
			continue
		}
		if f.Group != "" && snap.Group != f.Group {
			continue
		}
		if f.Since != nil && snap.Timestamp.Before(*f.Since) {
			continue
		}
		if f.Until != nil && snap.Timestamp.After(*f.Until) {
			continue
		}
		matched = append(matched, snap)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})

	if limit := f.effectiveLimit(); len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}

// Prune keeps only the most recent keep snapshots for one entity.
func (s *MemoryStore) Prune(ctx context.Context, entity string, keep int) error {
	if keep <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var mine []int
	for i, snap := range s.snaps {
		if snap.Entity == entity {
			mine = append(mine, i)
		}
	}
	if len(mine) <= keep {
		return nil
	}

	sort.SliceStable(mine, func(i, j int) bool {
		return s.snaps[mine[i]].Timestamp.Before(s.snaps[mine[j]].Timestamp)
	})

	drop := make(map[int]bool, len(mine)-keep)
	for _, idx := range mine[:len(mine)-keep] {
		drop[idx] = true
	}

	kept := s.snaps[:0]
	for i, snap := range s.snaps {
		if !drop[i] {
			kept = append(kept, snap)
		}
	}
	s.snaps = kept
	return nil
}
