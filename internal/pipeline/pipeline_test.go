package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manfullwel/ska/internal/history"
	"github.com/manfullwel/ska/internal/types"
)

func testDataset(entity, group string, rows [][]string) Dataset {
	return Dataset{
		Entity: entity,
		Group:  group,
		Header: []string{"DATA", "RESOLUCAO", "STATUS"},
		Rows:   rows,
	}
}

func TestRun_EndToEnd(t *testing.T) {
	store := history.NewMemoryStore()
	p := New(store, nil, nil, Options{})

	datasets := []Dataset{
		testDataset("alice", "north", [][]string{
			{"01/03/2024", "03/03/2024", "QUITADO"},
			{"02/03/2024", "", "PENDENTE"},
			{"03/03/2024", "05/03/2024", "APROVADO"},
			{"04/03/2024", "", "PENDENTE"},
		}),
		testDataset("bob", "north", [][]string{
			{"01/03/2024", "", "PENDENTE"},
			{"02/03/2024", "", "PENDENTE"},
		}),
	}

	result, err := p.Run(context.Background(), datasets)
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Len(t, result.Metrics, 2)
	assert.Empty(t, result.Failed)

	alice := result.Metrics["alice"]
	assert.Equal(t, 4, alice.TotalRecords)
	assert.InDelta(t, 0.5, alice.EfficiencyRate, 1e-9)

	require.Len(t, result.Rankings, 2)
	assert.Equal(t, "alice", result.Rankings[0].Entity)
	assert.Greater(t, result.Rankings[0].Score, result.Rankings[1].Score)

	// One run gives each entity a single snapshot: not enough history.
	require.Contains(t, result.Forecasts, "alice")
	assert.Equal(t, types.ForecastInsufficient, result.Forecasts["alice"].Status)

	snaps, err := store.Query(context.Background(), history.Filter{Entity: "alice"})
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestRun_SchemaErrorIsolatesEntity(t *testing.T) {
	store := history.NewMemoryStore()
	p := New(store, nil, nil, Options{})

	datasets := []Dataset{
		testDataset("alice", "north", [][]string{
			{"01/03/2024", "", "PENDENTE"},
		}),
		{
			Entity: "broken",
			Group:  "north",
			Header: []string{"IRRELEVANT", "COLUMNS"},
			Rows:   [][]string{{"x", "y"}},
		},
	}

	result, err := p.Run(context.Background(), datasets)
	require.NoError(t, err)

	assert.Len(t, result.Metrics, 1)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "broken", result.Failed[0].Entity)
	assert.Contains(t, result.Failed[0].Reason, "broken")

	// The failed entity must leave no trace in history or rankings.
	snaps, err := store.Query(context.Background(), history.Filter{Entity: "broken"})
	require.NoError(t, err)
	assert.Empty(t, snaps)
	require.Len(t, result.Rankings, 1)
	assert.Equal(t, "alice", result.Rankings[0].Entity)
}

func TestRun_DuplicateEntityRejected(t *testing.T) {
	store := history.NewMemoryStore()
	p := New(store, nil, nil, Options{})

	datasets := []Dataset{
		testDataset("alice", "north", [][]string{
			{"01/03/2024", "02/03/2024", "QUITADO"},
			{"02/03/2024", "", "PENDENTE"},
		}),
		testDataset("alice", "south", [][]string{
			{"01/03/2024", "", "PENDENTE"},
		}),
	}

	result, err := p.Run(context.Background(), datasets)
	require.NoError(t, err)

	// The first occurrence wins; the second is rejected, not merged.
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "alice", result.Failed[0].Entity)
	assert.Equal(t, "south", result.Failed[0].Group)
	assert.Contains(t, result.Failed[0].Reason, "duplicate")

	assert.Len(t, result.Metrics, 1)
	assert.Equal(t, 2, result.Metrics["alice"].TotalRecords)

	snaps, err := store.Query(context.Background(), history.Filter{Entity: "alice"})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "north", snaps[0].Group)
}

func TestRun_ForecastAfterRepeatedRuns(t *testing.T) {
	store := history.NewMemoryStore()
	p := New(store, nil, nil, Options{})

	ds := []Dataset{testDataset("alice", "north", [][]string{
		{"01/03/2024", "02/03/2024", "QUITADO"},
		{"02/03/2024", "", "PENDENTE"},
	})}

	ctx := context.Background()
	var last *RunResult
	for i := 0; i < 3; i++ {
		var err error
		last, err = p.Run(ctx, ds)
		require.NoError(t, err)
	}

	fc := last.Forecasts["alice"]
	assert.Equal(t, types.ForecastOK, fc.Status)
	assert.Len(t, fc.Predicted, 3)
	// Identical input each run: flat efficiency, no improvement.
	assert.Equal(t, types.TrendDecreasing, fc.Direction)
}

func TestRun_HistoryRetention(t *testing.T) {
	store := history.NewMemoryStore()
	p := New(store, nil, nil, Options{HistoryLimit: 2})

	ds := []Dataset{testDataset("alice", "north", [][]string{
		{"01/03/2024", "", "PENDENTE"},
	})}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := p.Run(ctx, ds)
		require.NoError(t, err)
	}

	snaps, err := store.Query(ctx, history.Filter{Entity: "alice"})
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
}

func TestRun_EmptyInput(t *testing.T) {
	p := New(history.NewMemoryStore(), nil, nil, Options{})
	_, err := p.Run(context.Background(), nil)
	assert.Error(t, err)
}
