// Package history provides the durable append-only log of metric
// snapshots keyed by entity, group and timestamp. The forecast engine
// reads snapshot sequences from here; nothing in the core mutates a
// snapshot once appended.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/manfullwel/ska/internal/types"
)

// Filter narrows a history query. Zero-value fields do not filter.
type Filter struct {
	Entity string
	Group  string
	Since  *time.Time
	Until  *time.Time
	// Limit caps the result to the most recent snapshots. 0 means the
	// default (100), capped at 500.
	Limit int
}

const (
	defaultQueryLimit = 100
	maxQueryLimit     = 500
)

func (f Filter) effectiveLimit() int {
	if f.Limit <= 0 || f.Limit > maxQueryLimit {
		return defaultQueryLimit
	}
	return f.Limit
}

// Store is the interface for reading and writing metric snapshots.
// Appends are atomic; Query returns snapshots ordered by timestamp
// ascending.
type Store interface {
	// Append writes one snapshot.
	Append(ctx context.Context, snap types.HistorySnapshot) error

	// Query returns snapshots matching the filter, oldest first. When
	// the filter's limit truncates, the most recent snapshots win.
	Query(ctx context.Context, f Filter) ([]types.HistorySnapshot, error)

	// Prune drops all but the most recent keep snapshots for an entity.
	Prune(ctx context.Context, entity string, keep int) error
}

// timeLayout is RFC 3339 with a fixed-width 9-digit fraction so that
// lexicographic ORDER BY and range comparisons on the stored text agree
// with chronological order. RFC3339Nano would trim trailing zeros and
// misorder same-second values.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store on a single-file SQLite database via
// database/sql. Snapshots live in one flat table: indexed key columns
// for filtering plus the full metrics document as JSON.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLiteStore over an open database handle.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// CreateSchema creates the snapshots table and indexes. Run at startup.
func (s *SQLiteStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS snapshots (
			id            TEXT PRIMARY KEY,
			entity        TEXT NOT NULL,
			entity_group  TEXT NOT NULL,
			taken_at      TEXT NOT NULL,
			total_records INTEGER NOT NULL,
			efficiency    REAL NOT NULL,
			trend         TEXT NOT NULL,
			metrics       TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_snapshots_entity_time
			ON snapshots (entity, taken_at DESC);

		CREATE INDEX IF NOT EXISTS idx_snapshots_group_time
			ON snapshots (entity_group, taken_at DESC);
	`)
	return err
}

// Append inserts one snapshot.
func (s *SQLiteStore) Append(ctx context.Context, snap types.HistorySnapshot) error {
	metricsJSON, err := json.Marshal(snap.Metrics)
	if err != nil {
		return fmt.Errorf("encoding metrics: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, entity, entity_group, taken_at, total_records, efficiency, trend, metrics)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID,
		snap.Entity,
		snap.Group,
		snap.Timestamp.UTC().Format(timeLayout),
		snap.Metrics.TotalRecords,
		snap.Metrics.EfficiencyRate,
		snap.Metrics.Trend.Direction,
		metricsJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}
	return nil
}

// Query returns matching snapshots ordered oldest first.
func (s *SQLiteStore) Query(ctx context.Context, f Filter) ([]types.HistorySnapshot, error) {
	conditions := []string{"1=1"}
	var args []interface{}

	if f.Entity != "" {
		conditions = append(conditions, "entity = ?")
		args = append(args, f.Entity)
	}
	if f.Group != "" {
		conditions = append(conditions, "entity_group = ?")
		args = append(args, f.Group)
	}
	if f.Since != nil {
		conditions = append(conditions, "taken_at >= ?")
		args = append(args, f.Since.UTC().Format(timeLayout))
	}
	if f.Until != nil {
		conditions = append(conditions, "taken_at <= ?")
		args = append(args, f.Until.UTC().Format(timeLayout))
	}

	// Newest first so the limit keeps the most recent; reversed below.
	query := fmt.Sprintf(`
		SELECT id, entity, entity_group, taken_at, metrics
		FROM snapshots
		WHERE %s
		ORDER BY taken_at DESC
		LIMIT ?`, strings.Join(conditions, " AND "))
	args = append(args, f.effectiveLimit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []types.HistorySnapshot
	for rows.Next() {
		var snap types.HistorySnapshot
		var takenAt string
		var metricsJSON []byte
		if err := rows.Scan(&snap.ID, &snap.Entity, &snap.Group, &takenAt, &metricsJSON); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, takenAt)
		if err != nil {
			return nil, fmt.Errorf("parsing snapshot timestamp %q: %w", takenAt, err)
		}
		snap.Timestamp = ts
		if err := json.Unmarshal(metricsJSON, &snap.Metrics); err != nil {
			return nil, fmt.Errorf("decoding metrics: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to oldest-first.
	for i, j := 0, len(snaps)-1; i < j; i, j = i+1, j-1 {
		snaps[i], snaps[j] = snaps[j], snaps[i]
	}
	return snaps, nil
}

// Prune keeps only the most recent keep snapshots for one entity.
func (s *SQLiteStore) Prune(ctx context.Context, entity string, keep int) error {
	if keep <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM snapshots
		WHERE entity = ? AND id NOT IN (
			SELECT id FROM snapshots
			WHERE entity = ?
			ORDER BY taken_at DESC
			LIMIT ?
		)`, entity, entity, keep)
	if err != nil {
		return fmt.Errorf("pruning snapshots: %w", err)
	}
	return nil
}
