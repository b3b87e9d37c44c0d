// Package ranking turns metric summaries into a single weighted score and
// an ordered, deterministic ranking across entities.
package ranking

import (
	"sort"

	"github.com/manfullwel/ska/internal/types"
)

// Weights is the scoring policy. Each component contributes at most its
// weight in points; with the defaults the score lands in [0,100].
type Weights struct {
	// Efficiency weights the resolved-like fraction.
	Efficiency float64
	// Processed weights the non-pending fraction.
	Processed float64
	// Time weights the resolution-speed score.
	Time float64
	// TrendBonus is a flat bonus for a positive trend slope.
	TrendBonus float64
	// TimeCeilingDays is the mean resolution time at or beyond which the
	// time component contributes nothing.
	TimeCeilingDays float64
	// PendingStatus identifies the status excluded from the processed
	// count.
	PendingStatus string
}

// DefaultWeights returns the 40/20/20/20 policy of the source system.
func DefaultWeights() Weights {
	return Weights{
		Efficiency:      40,
		Processed:       20,
		Time:            20,
		TrendBonus:      20,
		TimeCeilingDays: 10,
		PendingStatus:   types.StatusPending,
	}
}

// Score computes the weighted score for one metric summary. It is a pure
// function: identical metrics always yield the identical score. Zero
// records score 0.
func Score(m types.EntityMetrics, w Weights) float64 {
	if m.TotalRecords == 0 {
		return 0
	}

	score := m.EfficiencyRate * w.Efficiency
	score += m.ProcessedFraction * w.Processed

	if m.MeanResolutionDays != nil && w.TimeCeilingDays > 0 {
		timeScore := (w.TimeCeilingDays - *m.MeanResolutionDays) / w.TimeCeilingDays
		if timeScore < 0 {
			timeScore = 0
		}
		if timeScore > 1 {
			// Negative mean resolution time; treat as best-possible
			// rather than letting the score exceed its weight.
			timeScore = 1
		}
		score += timeScore * w.Time
	}

	if m.Trend.Slope > 0 {
		score += w.TrendBonus
	}
	return score
}

// Entry pairs an entity with its computed metrics for ranking.
type Entry struct {
	Entity  string
	Group   string
	Metrics types.EntityMetrics
}

// Rank scores every entry and returns rows ordered by score descending.
// Equal scores break ties by entity id ascending so the ranking is
// deterministic.
func Rank(entries []Entry, w Weights) []types.RankingRow {
	rows := make([]types.RankingRow, 0, len(entries))
	for _, e := range entries {
		pending := e.Metrics.StatusDistribution[w.PendingStatus]
		rows = append(rows, types.RankingRow{
			Entity:             e.Entity,
			Group:              e.Group,
			Score:              Score(e.Metrics, w),
			EfficiencyRate:     e.Metrics.EfficiencyRate,
			PendingCount:       pending,
			ProcessedCount:     e.Metrics.TotalRecords - pending,
			MeanResolutionDays: e.Metrics.MeanResolutionDays,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].Entity < rows[j].Entity
	})
	return rows
}
