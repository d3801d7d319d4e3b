package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run records one invocation of the block pipeline.
type Run struct {
	ID         string
	Split      string
	TestScene  int
	ConfigJSON string
	NumScenes  int
	NumSamples int
	NumTiles   int
	StartedAt  time.Time
	FinishedAt time.Time
}

// RecordRun inserts or updates run. An empty ID is assigned a new UUID,
// which is returned.
func (c *Catalog) RecordRun(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.ConfigJSON == "" {
		run.ConfigJSON = "{}"
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	var finished sql.NullInt64
	if !run.FinishedAt.IsZero() {
		finished = sql.NullInt64{Int64: run.FinishedAt.UnixNano(), Valid: true}
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, split, test_scene, config_json, num_scenes, num_samples, num_tiles, started_unix_nanos, finished_unix_nanos)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			num_scenes = excluded.num_scenes,
			num_samples = excluded.num_samples,
			num_tiles = excluded.num_tiles,
			finished_unix_nanos = excluded.finished_unix_nanos
	`, run.ID, run.Split, run.TestScene, run.ConfigJSON, run.NumScenes, run.NumSamples, run.NumTiles,
		run.StartedAt.UnixNano(), finished)
	if err != nil {
		return "", fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return run.ID, nil
}

// ListRuns returns runs newest first, at most limit of them (0 for all).
func (c *Catalog) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT run_id, split, test_scene, config_json, num_scenes, num_samples, num_tiles,
			started_unix_nanos, finished_unix_nanos
		FROM runs ORDER BY started_unix_nanos DESC`
	args := []interface{}{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Split, &r.TestScene, &r.ConfigJSON, &r.NumScenes, &r.NumSamples,
			&r.NumTiles, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, started)
		if finished.Valid {
			r.FinishedAt = time.Unix(0, finished.Int64)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
