// Package types provides the shared data model for the analytics core:
// normalized case records, per-entity metric summaries, ranking rows,
// bottleneck flags, history snapshots and forecast results. These structs
// cross package boundaries and are serialized as JSON by the HTTP layer
// and the history store.
package types

import "time"

// Soft-controlled status vocabulary. Input data may carry other values;
// these are the ones the engine assigns meaning to.
const (
	StatusPending       = "PENDING"
	StatusUnderReview   = "UNDER_REVIEW"
	StatusApproved      = "APPROVED"
	StatusSettled       = "SETTLED"
	StatusSeized        = "SEIZED"
	StatusCancelled     = "CANCELLED"
	StatusPriority      = "PRIORITY"
	StatusPriorityTotal = "PRIORITY_TOTAL"
	StatusVerified      = "VERIFIED"
)

// Trend directions for time-bucketed record counts.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// Record is one normalized case row belonging to one entity. Records are
// created once per ingestion pass, never mutated, and discarded after
// metrics are derived.
type Record struct {
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	Status     string     `json:"status"`
	Group      string     `json:"group,omitempty"`
}

// Trend is an ordinary-least-squares fit of daily record counts against a
// sequential date index.
type Trend struct {
	Direction string  `json:"direction"`
	Slope     float64 `json:"slope"`
	RSquared  float64 `json:"r_squared"`
}

// EntityMetrics is the computed summary for one entity at one point in
// time. MeanResolutionDays and MedianResolutionDays are nil when no record
// has both dates; "not computable" is distinct from zero.
type EntityMetrics struct {
	TotalRecords       int            `json:"total_records"`
	StatusDistribution map[string]int `json:"status_distribution"`

	// EfficiencyRate is the resolved-like fraction of the distribution;
	// ProcessedFraction is the non-pending fraction. The original system
	// conflated the two under one name, so both are kept as distinct
	// metrics.
	EfficiencyRate    float64 `json:"efficiency_rate"`
	ProcessedFraction float64 `json:"processed_fraction"`

	MeanResolutionDays   *float64 `json:"mean_resolution_days,omitempty"`
	MedianResolutionDays *float64 `json:"median_resolution_days,omitempty"`

	// ResolutionOutlierCount counts resolution-day values outside the
	// Tukey fences. NegativeResolutionCount counts records resolved
	// before their creation date; retained as a data-quality signal,
	// not clamped.
	ResolutionOutlierCount  int `json:"resolution_outlier_count"`
	NegativeResolutionCount int `json:"negative_resolution_count,omitempty"`

	WeeklyPattern map[string]int `json:"weekly_pattern"`
	Trend         Trend          `json:"trend"`
}

// RankingRow is one entry of the ordered ranking output.
type RankingRow struct {
	Entity             string   `json:"entity"`
	Group              string   `json:"group"`
	Score              float64  `json:"score"`
	EfficiencyRate     float64  `json:"efficiency_rate"`
	PendingCount       int      `json:"pending_count"`
	ProcessedCount     int      `json:"processed_count"`
	MeanResolutionDays *float64 `json:"mean_resolution_days,omitempty"`
}

// FailedEntity tags an entity whose dataset could not be analyzed. Failed
// entities appear in run output with their reason instead of being
// silently dropped.
type FailedEntity struct {
	Entity string `json:"entity"`
	Group  string `json:"group"`
	Reason string `json:"reason"`
}

// Bottleneck flag kinds.
const (
	BottleneckEfficiency   = "efficiency"
	BottleneckVolume       = "volume"
	BottleneckDistribution = "distribution"
)

// BottleneckFlag marks a statistically significant deviation of one entity
// from its group's central tendency. Entity is empty for the group-level
// distribution flag.
type BottleneckFlag struct {
	Entity           string  `json:"entity,omitempty"`
	Group            string  `json:"group"`
	Kind             string  `json:"kind"`
	Observed         float64 `json:"observed_value"`
	GroupMean        float64 `json:"group_mean,omitempty"`
	PercentDeviation float64 `json:"percent_deviation,omitempty"`
}

// HistorySnapshot is one EntityMetrics capture appended after an analysis
// run. The ordered snapshot sequence for one entity is the forecast
// engine's only state across runs.
type HistorySnapshot struct {
	ID        string        `json:"id"`
	Entity    string        `json:"entity"`
	Group     string        `json:"group"`
	Timestamp time.Time     `json:"timestamp"`
	Metrics   EntityMetrics `json:"metrics"`
}

// Forecast availability states.
const (
	ForecastOK           = "ok"
	ForecastNoHistory    = "no_history"
	ForecastInsufficient = "insufficient_history"
)

// Forecast advisory signals.
const (
	SignalDecline     = "significant_decline"
	SignalImprovement = "significant_improvement"
)

// ForecastResult projects an entity's efficiency from its snapshot
// history. When Status is not ForecastOK the numeric fields are unset;
// the engine never zero-fills an unavailable forecast.
type ForecastResult struct {
	Entity    string    `json:"entity"`
	Group     string    `json:"group,omitempty"`
	Status    string    `json:"status"`
	History   []float64 `json:"history,omitempty"`
	Predicted []float64 `json:"predicted,omitempty"`
	Slope     float64   `json:"slope,omitempty"`
	Intercept float64   `json:"intercept,omitempty"`
	RSquared  float64   `json:"r_squared,omitempty"`
	Direction string    `json:"direction,omitempty"`
	Signal    string    `json:"signal,omitempty"`
}
