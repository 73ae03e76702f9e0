// Package store persists loading-run history to SQLite so `fumo history`
// can show how boot times trend over time.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fumo/internal/loading"
	"fumo/internal/logging"

	_ "modernc.org/sqlite"
)

// HistoryStore records one row per completed loading run.
type HistoryStore struct {
	mu   sync.Mutex
	db   *sql.DB
	keep int
}

// Run is a persisted loading run.
type Run struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Steps     []loading.Step
	Forced    bool
}

// OpenHistory opens (or creates) the history database at path and migrates
// the schema. keep bounds retention; older rows are pruned on each record.
func OpenHistory(path string, keep int) (*HistoryStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	logging.StoreDebug("Opening history database at %s", path)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}

	hs := &HistoryStore{db: db, keep: keep}
	if err := hs.initializeSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return hs, nil
}

// initializeSchema creates the runs table.
func (hs *HistoryStore) initializeSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		duration_ms INTEGER NOT NULL,
		steps TEXT NOT NULL DEFAULT '[]',
		forced INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`
	_, err := hs.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return nil
}

// Record persists a finished run. Errors are returned, not fatal; callers
// typically just log them - a failed history write must never disturb the
// loading sequence itself.
func (hs *HistoryStore) Record(result loading.Result) error {
	timer := logging.StartTimer(logging.CategoryStore, "HistoryStore.Record")
	defer timer.Stop()

	stepsJSON, err := json.Marshal(result.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode steps: %w", err)
	}

	hs.mu.Lock()
	defer hs.mu.Unlock()

	_, err = hs.db.Exec(
		`INSERT OR REPLACE INTO runs (id, started_at, duration_ms, steps, forced) VALUES (?, ?, ?, ?, ?)`,
		result.RunID, result.Started.UTC(), result.Duration.Milliseconds(), string(stepsJSON), boolToInt(result.Forced),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to record run %s: %v", result.RunID, err)
		return fmt.Errorf("failed to record run: %w", err)
	}

	if hs.keep > 0 {
		_, err = hs.db.Exec(
			`DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY started_at DESC LIMIT ?)`,
			hs.keep,
		)
		if err != nil {
			return fmt.Errorf("failed to prune history: %w", err)
		}
	}
	return nil
}

// Recent returns up to n runs, newest first.
func (hs *HistoryStore) Recent(ctx context.Context, n int) ([]Run, error) {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	rows, err := hs.db.QueryContext(ctx,
		`SELECT id, started_at, duration_ms, steps, forced FROM runs ORDER BY started_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			durationMs int64
			stepsJSON  string
			forced     int
		)
		if err := rows.Scan(&r.ID, &r.StartedAt, &durationMs, &stepsJSON, &forced); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.Forced = forced != 0
		if err := json.Unmarshal([]byte(stepsJSON), &r.Steps); err != nil {
			// Tolerate rows written by older versions.
			r.Steps = nil
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Ping verifies the database is reachable. Used as the runtime readiness
// probe.
func (hs *HistoryStore) Ping(ctx context.Context) error {
	return hs.db.PingContext(ctx)
}

// Close closes the underlying database.
func (hs *HistoryStore) Close() error {
	return hs.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
