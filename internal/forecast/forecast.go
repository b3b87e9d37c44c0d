// Package forecast fits a linear model over an entity's rolling history
// of efficiency snapshots and projects it a few periods ahead. History is
// read-only input here; retention and pruning belong to the history
// store.
package forecast

import (
	"github.com/manfullwel/ska/internal/stats"
	"github.com/manfullwel/ska/internal/types"
)

// Config holds the projection and alerting policy. The ratio and
// confidence thresholds encode policy from the source system, kept as
// named configuration rather than literals.
type Config struct {
	// Horizon is how many future periods to predict.
	Horizon int
	// MaxHistory bounds how many of the most recent snapshots are
	// consumed.
	MaxHistory int
	// MinSample is the minimum viable history length.
	MinSample int
	// DeclineRatio: predicted below this fraction of the last observed
	// value signals a significant decline.
	DeclineRatio float64
	// ImproveRatio: predicted above this multiple of the last observed
	// value signals a significant improvement.
	ImproveRatio float64
	// MinConfidence is the R² floor below which no signal is emitted.
	MinConfidence float64
}

// DefaultConfig returns the standard projection policy.
func DefaultConfig() Config {
	return Config{
		Horizon:       3,
		MaxHistory:    10,
		MinSample:     3,
		DeclineRatio:  0.8,
		ImproveRatio:  1.2,
		MinConfidence: 0.5,
	}
}

// Engine produces forecasts under one policy.
type Engine struct {
	cfg Config
}

// New creates an Engine. Zero-value config fields fall back to the
// defaults.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.Horizon <= 0 {
		cfg.Horizon = def.Horizon
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = def.MaxHistory
	}
	if cfg.MinSample < 2 {
		cfg.MinSample = def.MinSample
	}
	if cfg.DeclineRatio <= 0 {
		cfg.DeclineRatio = def.DeclineRatio
	}
	if cfg.ImproveRatio <= 0 {
		cfg.ImproveRatio = def.ImproveRatio
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	return &Engine{cfg: cfg}
}

// Forecast projects an entity's efficiency from its snapshot history.
// Snapshots must be ordered by timestamp ascending; only the most recent
// MaxHistory are consumed. Too little history reports an explicit status,
// never a zero-filled prediction.
func (e *Engine) Forecast(entity, group string, snapshots []types.HistorySnapshot) types.ForecastResult {
	if len(snapshots) > e.cfg.MaxHistory {
		snapshots = snapshots[len(snapshots)-e.cfg.MaxHistory:]
	}
	values := make([]float64, 0, len(snapshots))
	for _, s := range snapshots {
		values = append(values, s.Metrics.EfficiencyRate)
	}
	result := e.ForecastValues(entity, values)
	result.Group = group
	return result
}

// ForecastValues is the pure core of Forecast: it fits and projects an
// ordered efficiency series directly.
func (e *Engine) ForecastValues(entity string, values []float64) types.ForecastResult {
	result := types.ForecastResult{Entity: entity}

	switch {
	case len(values) == 0:
		result.Status = types.ForecastNoHistory
		return result
	case len(values) < e.cfg.MinSample:
		result.Status = types.ForecastInsufficient
		result.History = values
		return result
	}

	fit, ok := stats.FitLine(values)
	if !ok {
		// Degenerate fit; reported as not computable rather than a
		// made-up number.
		result.Status = types.ForecastInsufficient
		result.History = values
		return result
	}

	result.Status = types.ForecastOK
	result.History = values
	result.Predicted = fit.Project(len(values), e.cfg.Horizon)
	result.Slope = fit.Slope
	result.Intercept = fit.Intercept
	result.RSquared = fit.RSquared

	// Ties go to decreasing: only a strictly positive slope counts as
	// improvement.
	if fit.Slope > 0 {
		result.Direction = types.TrendIncreasing
	} else {
		result.Direction = types.TrendDecreasing
	}

	result.Signal = e.signal(values[len(values)-1], result.Predicted[0], fit.RSquared)
	return result
}

func (e *Engine) signal(last, next, r2 float64) string {
	if r2 <= e.cfg.MinConfidence {
		return ""
	}
	switch {
	case next < last*e.cfg.DeclineRatio:
		return types.SignalDecline
	case next > last*e.cfg.ImproveRatio:
		return types.SignalImprovement
	default:
		return ""
	}
}
