// Package event defines the domain events the analysis pipeline
// publishes: run lifecycle, bottleneck flags and forecast alerts.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/manfullwel/ska/internal/types"
)

// Event types published on the bus.
const (
	TypeRunCompleted       = "run_completed"
	TypeBottleneckDetected = "bottleneck_detected"
	TypeForecastAlert      = "forecast_alert"
)

// DomainEvent carries the canonical shape of every pipeline event.
type DomainEvent struct {
	ID         string          `json:"id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Entity     string          `json:"entity,omitempty"`
	Group      string          `json:"group,omitempty"`
	Summary    string          `json:"summary"`
	Payload    json.RawMessage `json:"payload"`
}

func newID() string { return uuid.New().String() }

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// RunCompletedPayload carries event-specific data for a finished
// analysis run.
type RunCompletedPayload struct {
	RunID       string        `json:"run_id"`
	Entities    int           `json:"entities"`
	Failed      int           `json:"failed"`
	Bottlenecks int           `json:"bottlenecks"`
	Elapsed     time.Duration `json:"elapsed_ns"`
}

func NewRunCompleted(p RunCompletedPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  TypeRunCompleted,
		OccurredAt: time.Now(),
		Summary:    fmt.Sprintf("run %s analyzed %d entities (%d failed)", p.RunID, p.Entities, p.Failed),
		Payload:    mustJSON(p),
	}
}

// BottleneckDetectedPayload carries one flagged deviation.
type BottleneckDetectedPayload struct {
	RunID string               `json:"run_id"`
	Flag  types.BottleneckFlag `json:"flag"`
}

func NewBottleneckDetected(p BottleneckDetectedPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  TypeBottleneckDetected,
		OccurredAt: time.Now(),
		Entity:     p.Flag.Entity,
		Group:      p.Flag.Group,
		Summary:    fmt.Sprintf("%s bottleneck in group %s (%.1f%% deviation)", p.Flag.Kind, p.Flag.Group, p.Flag.PercentDeviation),
		Payload:    mustJSON(p),
	}
}

// ForecastAlertPayload carries a significant projected change in an
// entity's efficiency.
type ForecastAlertPayload struct {
	RunID    string  `json:"run_id"`
	Entity   string  `json:"entity"`
	Group    string  `json:"group"`
	Signal   string  `json:"signal"`
	Next     float64 `json:"next"`
	RSquared float64 `json:"r_squared"`
}

func NewForecastAlert(p ForecastAlertPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  TypeForecastAlert,
		OccurredAt: time.Now(),
		Entity:     p.Entity,
		Group:      p.Group,
		Summary:    fmt.Sprintf("forecast %s for %s (next=%.3f, r2=%.2f)", p.Signal, p.Entity, p.Next, p.RSquared),
		Payload:    mustJSON(p),
	}
}
