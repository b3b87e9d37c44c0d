// Package metrics derives the per-entity performance summary from a
// normalized record set: status distribution, efficiency, resolution-time
// statistics with Tukey outlier detection, weekly pattern and a linear
// trend over daily record counts. Computation is pure: one record set
// in, one EntityMetrics out, no shared state.
package metrics

import (
	"sort"
	"time"

	"github.com/manfullwel/ska/internal/stats"
	"github.com/manfullwel/ska/internal/types"
)

// Config controls the status classification and outlier policy. The
// defaults mirror the source system's allow-list.
type Config struct {
	// ResolvedStatuses count toward the efficiency rate.
	ResolvedStatuses []string
	// PendingStatus is excluded from the processed fraction.
	PendingStatus string
	// TukeyFactor is the IQR multiplier for resolution-day outliers.
	TukeyFactor float64
	// MinOutlierSample is the smallest subset for which quartiles are
	// meaningful; below it the outlier count is reported as 0.
	MinOutlierSample int
}

// DefaultConfig returns the standard classification policy.
func DefaultConfig() Config {
	return Config{
		ResolvedStatuses: []string{types.StatusVerified, types.StatusApproved, types.StatusSettled},
		PendingStatus:    types.StatusPending,
		TukeyFactor:      1.5,
		MinOutlierSample: 4,
	}
}

// Engine computes EntityMetrics under one classification policy.
type Engine struct {
	cfg      Config
	resolved map[string]struct{}
}

// NewEngine creates an Engine. Zero-value config fields fall back to the
// defaults.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if len(cfg.ResolvedStatuses) == 0 {
		cfg.ResolvedStatuses = def.ResolvedStatuses
	}
	if cfg.PendingStatus == "" {
		cfg.PendingStatus = def.PendingStatus
	}
	if cfg.TukeyFactor <= 0 {
		cfg.TukeyFactor = def.TukeyFactor
	}
	if cfg.MinOutlierSample <= 0 {
		cfg.MinOutlierSample = def.MinOutlierSample
	}

	resolved := make(map[string]struct{}, len(cfg.ResolvedStatuses))
	for _, s := range cfg.ResolvedStatuses {
		resolved[s] = struct{}{}
	}
	return &Engine{cfg: cfg, resolved: resolved}
}

// Compute derives the full metric summary for one entity's record set.
// Empty input yields a zero summary, not an error: every rate is 0 and
// the resolution statistics are absent.
func (e *Engine) Compute(records []types.Record) types.EntityMetrics {
	m := types.EntityMetrics{
		StatusDistribution: make(map[string]int),
		WeeklyPattern:      make(map[string]int),
		Trend:              types.Trend{Direction: types.TrendStable},
	}

	var resolvedLike, nonPending int
	var resolutionDays []float64
	dailyCounts := make(map[time.Time]int)

	for _, r := range records {
		m.TotalRecords++
		m.StatusDistribution[r.Status]++
		if _, ok := e.resolved[r.Status]; ok {
			resolvedLike++
		}
		if r.Status != e.cfg.PendingStatus {
			nonPending++
		}

		if r.CreatedAt != nil {
			m.WeeklyPattern[r.CreatedAt.Weekday().String()]++
			day := r.CreatedAt.Truncate(24 * time.Hour)
			dailyCounts[day]++
		}

		if r.CreatedAt != nil && r.ResolvedAt != nil {
			// Whole days, truncated toward zero. Negative values mean
			// resolution before creation; kept as a data-quality signal.
			days := int(r.ResolvedAt.Sub(*r.CreatedAt).Hours() / 24)
			if days < 0 {
				m.NegativeResolutionCount++
			}
			resolutionDays = append(resolutionDays, float64(days))
		}
	}

	if m.TotalRecords > 0 {
		m.EfficiencyRate = float64(resolvedLike) / float64(m.TotalRecords)
		m.ProcessedFraction = float64(nonPending) / float64(m.TotalRecords)
	}

	if len(resolutionDays) > 0 {
		mean := stats.Mean(resolutionDays)
		median := stats.Median(resolutionDays)
		m.MeanResolutionDays = &mean
		m.MedianResolutionDays = &median
		m.ResolutionOutlierCount = e.countOutliers(resolutionDays)
	}

	m.Trend = fitTrend(dailyCounts)
	return m
}

func (e *Engine) countOutliers(days []float64) int {
	if len(days) < e.cfg.MinOutlierSample {
		return 0
	}
	lo, hi, ok := stats.TukeyFences(days, e.cfg.TukeyFactor)
	if !ok {
		return 0
	}
	count := 0
	for _, d := range days {
		if d < lo || d > hi {
			count++
		}
	}
	return count
}

// fitTrend fits daily record counts against a sequential date index.
// Fewer than 2 distinct dates, or a degenerate fit, report as stable with
// r² 0; trend undefined is not an error.
func fitTrend(dailyCounts map[time.Time]int) types.Trend {
	if len(dailyCounts) < 2 {
		return types.Trend{Direction: types.TrendStable}
	}

	days := make([]time.Time, 0, len(dailyCounts))
	for day := range dailyCounts {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	counts := make([]float64, 0, len(days))
	for _, day := range days {
		counts = append(counts, float64(dailyCounts[day]))
	}

	fit, ok := stats.FitLine(counts)
	if !ok {
		return types.Trend{Direction: types.TrendStable}
	}

	direction := types.TrendStable
	switch {
	case fit.Slope > 0:
		direction = types.TrendIncreasing
	case fit.Slope < 0:
		direction = types.TrendDecreasing
	}
	return types.Trend{Direction: direction, Slope: fit.Slope, RSquared: fit.RSquared}
}
