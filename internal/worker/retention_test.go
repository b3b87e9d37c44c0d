package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/manfullwel/ska/internal/history"
	"github.com/manfullwel/ska/internal/types"
)

func TestSweep_PrunesAllEntities(t *testing.T) {
	ctx := context.Background()
	store := history.NewMemoryStore()

	for _, entity := range []string{"alice", "bob"} {
		for i := 0; i < 5; i++ {
			store.Append(ctx, types.HistorySnapshot{
				ID:        uuid.NewString(),
				Entity:    entity,
				Group:     "north",
				Timestamp: time.Now().AddDate(0, 0, -5+i),
				Metrics:   types.EntityMetrics{TotalRecords: i},
			})
		}
	}

	w := NewRetentionWorker(store, 2, time.Hour, nil)
	if err := w.Sweep(ctx); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	for _, entity := range []string{"alice", "bob"} {
		snaps, err := store.Query(ctx, history.Filter{Entity: entity})
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if len(snaps) != 2 {
			t.Errorf("%s: len = %d, want 2", entity, len(snaps))
		}
	}
}
