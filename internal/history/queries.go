package history

import (
	"context"
	"sort"
	"time"

	"github.com/manfullwel/ska/internal/stats"
)

// GroupStats aggregates stored history for one group.
type GroupStats struct {
	Group          string  `json:"group"`
	Entities       int     `json:"entities"`
	Snapshots      int     `json:"snapshots"`
	MeanEfficiency float64 `json:"mean_efficiency"`
	TotalRecords   int     `json:"total_records"`

	// VolumeEfficiencyCorrelation is the Pearson r between each
	// entity's latest volume and efficiency. Nil when fewer than two
	// entities carry data, or when either side has no variance.
	VolumeEfficiencyCorrelation *float64 `json:"volume_efficiency_correlation,omitempty"`
	CorrelationStrength         string   `json:"correlation_strength,omitempty"`
}

// Correlation strength labels.
const (
	CorrelationStrong   = "strong"
	CorrelationModerate = "moderate"
	CorrelationWeak     = "weak"
)

func correlationStrength(r float64) string {
	abs := r
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs > 0.7:
		return CorrelationStrong
	case abs > 0.3:
		return CorrelationModerate
	default:
		return CorrelationWeak
	}
}

// TrendPoint is one (timestamp, efficiency) sample for an entity.
type TrendPoint struct {
	Timestamp  time.Time `json:"timestamp"`
	Efficiency float64   `json:"efficiency"`
}

// GroupComparison aggregates the stored history per group: mean
// efficiency across snapshots and total volume from each entity's
// latest snapshot. Results are sorted by group name.
func GroupComparison(ctx context.Context, store Store) ([]GroupStats, error) {
	snaps, err := store.Query(ctx, Filter{Limit: maxQueryLimit})
	if err != nil {
		return nil, err
	}

	type latest struct {
		volume     int
		efficiency float64
	}
	type acc struct {
		entities      map[string]latest // entity -> latest snapshot data
		efficiencySum float64
		count         int
	}
	byGroup := make(map[string]*acc)
	for _, snap := range snaps {
		a := byGroup[snap.Group]
		if a == nil {
			a = &acc{entities: make(map[string]latest)}
			byGroup[snap.Group] = a
		}
		// Query is oldest-first, so the last write per entity wins.
		a.entities[snap.Entity] = latest{
			volume:     snap.Metrics.TotalRecords,
			efficiency: snap.Metrics.EfficiencyRate,
		}
		a.efficiencySum += snap.Metrics.EfficiencyRate
		a.count++
	}

	result := make([]GroupStats, 0, len(byGroup))
	for group, a := range byGroup {
		total := 0
		var volumes, efficiencies []float64
		for _, l := range a.entities {
			total += l.volume
			if l.volume > 0 {
				volumes = append(volumes, float64(l.volume))
				efficiencies = append(efficiencies, l.efficiency)
			}
		}

		gs := GroupStats{
			Group:          group,
			Entities:       len(a.entities),
			Snapshots:      a.count,
			MeanEfficiency: a.efficiencySum / float64(a.count),
			TotalRecords:   total,
		}
		if r, ok := stats.PearsonR(volumes, efficiencies); ok {
			gs.VolumeEfficiencyCorrelation = &r
			gs.CorrelationStrength = correlationStrength(r)
		}
		result = append(result, gs)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Group < result[j].Group })
	return result, nil
}

// EfficiencyTrend returns an entity's (timestamp, efficiency) series
// over a trailing window, oldest first. A zero window means all
// retained history.
func EfficiencyTrend(ctx context.Context, store Store, entity string, window time.Duration) ([]TrendPoint, error) {
	f := Filter{Entity: entity}
	if window > 0 {
		since := time.Now().Add(-window)
		f.Since = &since
	}
	snaps, err := store.Query(ctx, f)
	if err != nil {
		return nil, err
	}

	points := make([]TrendPoint, 0, len(snaps))
	for _, snap := range snaps {
		points = append(points, TrendPoint{
			Timestamp:  snap.Timestamp,
			Efficiency: snap.Metrics.EfficiencyRate,
		})
	}
	return points, nil
}
