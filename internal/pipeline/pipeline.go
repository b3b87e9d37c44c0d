// Package pipeline orchestrates a full analysis run: normalization,
// per-entity metrics, ranking, bottleneck detection, history append
// and forecasting.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/manfullwel/ska/internal/bottleneck"
	"github.com/manfullwel/ska/internal/event"
	"github.com/manfullwel/ska/internal/eventbus"
	"github.com/manfullwel/ska/internal/forecast"
	"github.com/manfullwel/ska/internal/history"
	"github.com/manfullwel/ska/internal/metrics"
	"github.com/manfullwel/ska/internal/normalize"
	"github.com/manfullwel/ska/internal/ranking"
	"github.com/manfullwel/ska/internal/types"
)

// Dataset is one entity's raw tabular input: a header row and data
// rows, as read from a spreadsheet export.
type Dataset struct {
	Entity string     `json:"entity"`
	Group  string     `json:"group"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// RunResult is the complete output of one analysis run.
type RunResult struct {
	RunID       string                          `json:"run_id"`
	StartedAt   time.Time                       `json:"started_at"`
	Elapsed     time.Duration                   `json:"elapsed_ns"`
	Metrics     map[string]types.EntityMetrics  `json:"metrics"`
	Rankings    []types.RankingRow              `json:"rankings"`
	Bottlenecks []types.BottleneckFlag          `json:"bottlenecks"`
	Forecasts   map[string]types.ForecastResult `json:"forecasts"`
	Failed      []types.FailedEntity            `json:"failed,omitempty"`
}

// Options tunes a Pipeline. Zero values fall back to engine defaults.
type Options struct {
	Metrics      metrics.Config
	Weights      ranking.Weights
	Thresholds   bottleneck.Thresholds
	Forecast     forecast.Config
	HistoryLimit int
}

const defaultHistoryLimit = 10

// Pipeline wires the engines together over a history store.
type Pipeline struct {
	metrics      *metrics.Engine
	weights      ranking.Weights
	detector     *bottleneck.Detector
	forecaster   *forecast.Engine
	store        history.Store
	bus          *eventbus.Bus
	historyLimit int
	log          *zap.Logger
}

// New creates a Pipeline. store is required; bus and log may be nil.
func New(store history.Store, bus *eventbus.Bus, log *zap.Logger, opts Options) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	weights := opts.Weights
	if weights == (ranking.Weights{}) {
		weights = ranking.DefaultWeights()
	}
	return &Pipeline{
		metrics:      metrics.NewEngine(opts.Metrics),
		weights:      weights,
		detector:     bottleneck.NewDetector(opts.Thresholds),
		forecaster:   forecast.New(opts.Forecast),
		store:        store,
		bus:          bus,
		historyLimit: limit,
		log:          log,
	}
}

type entityOutcome struct {
	dataset Dataset
	metrics types.EntityMetrics
	err     error
}

// Run executes one full analysis over the given datasets. Entities
// whose input cannot be normalized are reported in Failed; they never
// abort the run.
func (p *Pipeline) Run(ctx context.Context, datasets []Dataset) (*RunResult, error) {
	if len(datasets) == 0 {
		return nil, errors.New("no datasets to analyze")
	}

	runID := uuid.NewString()
	started := time.Now()
	p.log.Info("analysis run started",
		zap.String("run_id", runID),
		zap.Int("datasets", len(datasets)))

	// Entity names identify result and history rows across groups, so a
	// run must not carry the same name twice; later occurrences are
	// rejected rather than silently overwriting the first.
	var duplicates []types.FailedEntity
	seen := make(map[string]struct{}, len(datasets))
	unique := datasets[:0:0]
	for _, ds := range datasets {
		if _, dup := seen[ds.Entity]; dup {
			duplicates = append(duplicates, types.FailedEntity{
				Entity: ds.Entity,
				Group:  ds.Group,
				Reason: fmt.Sprintf("duplicate entity name %q in run", ds.Entity),
			})
			continue
		}
		seen[ds.Entity] = struct{}{}
		unique = append(unique, ds)
	}
	datasets = unique

	// Per-entity computation is independent; fan out one goroutine per
	// dataset writing to its own slot.
	outcomes := make([]entityOutcome, len(datasets))
	var wg sync.WaitGroup
	for i, ds := range datasets {
		wg.Add(1)
		go func(i int, ds Dataset) {
			defer wg.Done()
			outcomes[i] = p.analyzeOne(ds)
		}(i, ds)
	}
	wg.Wait()

	result := &RunResult{
		RunID:     runID,
		StartedAt: started,
		Metrics:   make(map[string]types.EntityMetrics),
		Forecasts: make(map[string]types.ForecastResult),
		Failed:    duplicates,
	}

	byGroup := make(map[string]map[string]types.EntityMetrics)
	var entries []ranking.Entry
	for _, out := range outcomes {
		if out.err != nil {
			result.Failed = append(result.Failed, types.FailedEntity{
				Entity: out.dataset.Entity,
				Group:  out.dataset.Group,
				Reason: out.err.Error(),
			})
			p.log.Warn("entity skipped",
				zap.String("run_id", runID),
				zap.String("entity", out.dataset.Entity),
				zap.Error(out.err))
			continue
		}
		result.Metrics[out.dataset.Entity] = out.metrics
		entries = append(entries, ranking.Entry{
			Entity:  out.dataset.Entity,
			Group:   out.dataset.Group,
			Metrics: out.metrics,
		})
		if byGroup[out.dataset.Group] == nil {
			byGroup[out.dataset.Group] = make(map[string]types.EntityMetrics)
		}
		byGroup[out.dataset.Group][out.dataset.Entity] = out.metrics
	}

	result.Rankings = ranking.Rank(entries, p.weights)

	groups := make([]string, 0, len(byGroup))
	for g := range byGroup {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	for _, g := range groups {
		result.Bottlenecks = append(result.Bottlenecks, p.detector.Detect(g, byGroup[g])...)
	}

	if err := p.persistAndForecast(ctx, started, entries, result); err != nil {
		return nil, err
	}

	result.Elapsed = time.Since(started)
	p.publish(ctx, runID, result)
	p.log.Info("analysis run finished",
		zap.String("run_id", runID),
		zap.Int("entities", len(result.Metrics)),
		zap.Int("failed", len(result.Failed)),
		zap.Int("bottlenecks", len(result.Bottlenecks)),
		zap.Duration("elapsed", result.Elapsed))
	return result, nil
}

func (p *Pipeline) analyzeOne(ds Dataset) entityOutcome {
	records, err := normalize.Records(ds.Header, ds.Rows, ds.Group)
	if err != nil {
		return entityOutcome{dataset: ds, err: fmt.Errorf("normalizing %s: %w", ds.Entity, err)}
	}
	return entityOutcome{dataset: ds, metrics: p.metrics.Compute(records)}
}

// persistAndForecast appends this run's snapshots, prunes retention and
// computes forecasts from the updated history. Store writes are
// sequential: SQLite prefers a single writer.
func (p *Pipeline) persistAndForecast(ctx context.Context, at time.Time, entries []ranking.Entry, result *RunResult) error {
	for _, e := range entries {
		snap := types.HistorySnapshot{
			ID:        uuid.NewString(),
			Entity:    e.Entity,
			Group:     e.Group,
			Timestamp: at,
			Metrics:   e.Metrics,
		}
		if err := p.store.Append(ctx, snap); err != nil {
			return fmt.Errorf("appending snapshot for %s: %w", e.Entity, err)
		}
		if err := p.store.Prune(ctx, e.Entity, p.historyLimit); err != nil {
			return fmt.Errorf("pruning history for %s: %w", e.Entity, err)
		}

		snaps, err := p.store.Query(ctx, history.Filter{Entity: e.Entity, Limit: p.historyLimit})
		if err != nil {
			return fmt.Errorf("loading history for %s: %w", e.Entity, err)
		}
		fc := p.forecaster.Forecast(e.Entity, e.Group, snaps)
		result.Forecasts[e.Entity] = fc
	}
	return nil
}

func (p *Pipeline) publish(ctx context.Context, runID string, result *RunResult) {
	if p.bus == nil {
		return
	}
	for _, flag := range result.Bottlenecks {
		p.bus.Publish(ctx, event.NewBottleneckDetected(event.BottleneckDetectedPayload{
			RunID: runID,
			Flag:  flag,
		}))
	}
	for _, fc := range result.Forecasts {
		if fc.Signal == "" {
			continue
		}
		next := 0.0
		if len(fc.Predicted) > 0 {
			next = fc.Predicted[0]
		}
		p.bus.Publish(ctx, event.NewForecastAlert(event.ForecastAlertPayload{
			RunID:    runID,
			Entity:   fc.Entity,
			Group:    fc.Group,
			Signal:   fc.Signal,
			Next:     next,
			RSquared: fc.RSquared,
		}))
	}
	p.bus.Publish(ctx, event.NewRunCompleted(event.RunCompletedPayload{
		RunID:       runID,
		Entities:    len(result.Metrics),
		Failed:      len(result.Failed),
		Bottlenecks: len(result.Bottlenecks),
		Elapsed:     result.Elapsed,
	}))
}
