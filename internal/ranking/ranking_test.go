package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/manfullwel/ska/internal/types"
)

func metricsWith(eff, processed float64, meanDays *float64, slope float64, total int) types.EntityMetrics {
	pending := total - int(processed*float64(total))
	return types.EntityMetrics{
		TotalRecords:       total,
		EfficiencyRate:     eff,
		ProcessedFraction:  processed,
		MeanResolutionDays: meanDays,
		Trend:              types.Trend{Slope: slope},
		StatusDistribution: map[string]int{types.StatusPending: pending},
	}
}

func fptr(v float64) *float64 { return &v }

func TestScore_AllComponents(t *testing.T) {
	// Full efficiency, fully processed, instant resolution, rising trend.
	m := metricsWith(1, 1, fptr(0), 1, 10)
	assert.InDelta(t, 100, Score(m, DefaultWeights()), 1e-9)
}

func TestScore_ZeroRecords(t *testing.T) {
	assert.Zero(t, Score(types.EntityMetrics{}, DefaultWeights()))
}

func TestScore_Deterministic(t *testing.T) {
	m := metricsWith(0.6, 0.8, fptr(3), 0.2, 20)
	w := DefaultWeights()
	assert.Equal(t, Score(m, w), Score(m, w))
}

func TestScore_TimeComponent(t *testing.T) {
	w := DefaultWeights()

	// 5 days: time score (10-5)/10 = 0.5 → 10 points.
	fast := metricsWith(0, 0, fptr(5), -1, 10)
	assert.InDelta(t, 10, Score(fast, w), 1e-9)

	// Beyond the ceiling contributes nothing.
	slow := metricsWith(0, 0, fptr(25), -1, 10)
	assert.InDelta(t, 0, Score(slow, w), 1e-9)

	// Absent mean omits the component instead of treating it as zero days.
	absent := metricsWith(0, 0, nil, -1, 10)
	assert.InDelta(t, 0, Score(absent, w), 1e-9)
}

func TestScore_TrendBonusRequiresPositiveSlope(t *testing.T) {
	w := DefaultWeights()
	flat := metricsWith(0, 0, nil, 0, 10)
	rising := metricsWith(0, 0, nil, 0.01, 10)
	assert.Zero(t, Score(flat, w))
	assert.InDelta(t, 20, Score(rising, w), 1e-9)
}

func TestScore_Bounds(t *testing.T) {
	w := DefaultWeights()
	cases := []types.EntityMetrics{
		metricsWith(1, 1, fptr(-5), 2, 100), // negative mean stays capped
		metricsWith(0, 0, fptr(100), -2, 1),
		{},
	}
	for _, m := range cases {
		s := Score(m, w)
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 100.0)
	}
}

func TestRank_Order(t *testing.T) {
	entries := []Entry{
		{Entity: "carol", Group: "g", Metrics: metricsWith(0.2, 0.2, nil, -1, 10)},
		{Entity: "alice", Group: "g", Metrics: metricsWith(0.9, 0.9, nil, 1, 10)},
		{Entity: "bob", Group: "g", Metrics: metricsWith(0.5, 0.5, nil, -1, 10)},
	}

	rows := Rank(entries, DefaultWeights())

	assert.Equal(t, "alice", rows[0].Entity)
	assert.Equal(t, "bob", rows[1].Entity)
	assert.Equal(t, "carol", rows[2].Entity)
}

func TestRank_StableTieBreak(t *testing.T) {
	same := metricsWith(0.5, 0.5, nil, -1, 10)
	entries := []Entry{
		{Entity: "zoe", Group: "g", Metrics: same},
		{Entity: "ann", Group: "g", Metrics: same},
		{Entity: "meg", Group: "g", Metrics: same},
	}

	rows := Rank(entries, DefaultWeights())

	assert.Equal(t, []string{"ann", "meg", "zoe"},
		[]string{rows[0].Entity, rows[1].Entity, rows[2].Entity})
}

func TestRank_RowFields(t *testing.T) {
	m := types.EntityMetrics{
		TotalRecords:       10,
		EfficiencyRate:     0.4,
		ProcessedFraction:  0.6,
		MeanResolutionDays: fptr(2),
		StatusDistribution: map[string]int{types.StatusPending: 4, types.StatusSettled: 6},
	}
	rows := Rank([]Entry{{Entity: "alice", Group: "alpha", Metrics: m}}, DefaultWeights())

	assert.Len(t, rows, 1)
	assert.Equal(t, "alpha", rows[0].Group)
	assert.Equal(t, 4, rows[0].PendingCount)
	assert.Equal(t, 6, rows[0].ProcessedCount)
	assert.Equal(t, 0.4, rows[0].EfficiencyRate)
	assert.NotNil(t, rows[0].MeanResolutionDays)
}
