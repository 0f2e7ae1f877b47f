// Package metricsdb persists individual run rows and cached per-test
// aggregate metrics in a sqlite database. The cached metrics are a
// convenience for the analytics surface; the run rows stay the source of
// truth and every aggregate can be recomputed from them.
package metricsdb

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/regrun/regrun/flaky"
	"github.com/regrun/regrun/model"
)

// errExcerptLen caps the error output stored per run row.
const errExcerptLen = 500

const schema = `
CREATE TABLE IF NOT EXISTS test_runs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	path         TEXT    NOT NULL,
	status       TEXT    NOT NULL,
	duration_ms  INTEGER NOT NULL,
	started_at   TIMESTAMP NOT NULL,
	worker       INTEGER NOT NULL,
	error        TEXT
);
CREATE INDEX IF NOT EXISTS idx_test_runs_path ON test_runs(path, started_at);

CREATE TABLE IF NOT EXISTS test_metrics (
	path                 TEXT PRIMARY KEY,
	run_count            INTEGER NOT NULL,
	success_count        INTEGER NOT NULL,
	avg_duration_ms      INTEGER NOT NULL,
	min_duration_ms      INTEGER NOT NULL,
	max_duration_ms      INTEGER NOT NULL,
	stability_score      REAL NOT NULL,
	flakiness_score      REAL NOT NULL,
	maintenance_priority TEXT NOT NULL,
	tags                 TEXT,
	last_run             TIMESTAMP NOT NULL
);
`

// DB is the metrics database handle.
type DB struct {
	logger zerolog.Logger
	db     *sqlx.DB
}

// Open opens (creating if necessary) the metrics database at path.
func Open(logger zerolog.Logger, path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, ":") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metrics database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize metrics schema: %w", err)
	}
	return &DB{logger: logger, db: db}, nil
}

// Close releases the database handle.
func (d *DB) Close() error {
	return d.db.Close()
}

type runRow struct {
	Path       string    `db:"path"`
	Status     string    `db:"status"`
	DurationMS int64     `db:"duration_ms"`
	StartedAt  time.Time `db:"started_at"`
	Worker     int       `db:"worker"`
	Error      string    `db:"error"`
}

// RecordSummary inserts one run row per result in a single transaction.
func (d *DB) RecordSummary(summary model.ExecutionSummary) error {
	tx, err := d.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin metrics transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range summary.Results {
		row := runRow{
			Path:       r.Path,
			Status:     string(r.Status),
			DurationMS: r.Duration.Milliseconds(),
			StartedAt:  r.StartedAt.UTC(),
			Worker:     r.Worker,
			Error:      truncate(r.ErrorOutput, errExcerptLen),
		}
		if _, err := tx.NamedExec(`
			INSERT INTO test_runs (path, status, duration_ms, started_at, worker, error)
			VALUES (:path, :status, :duration_ms, :started_at, :worker, :error)`, row); err != nil {
			return fmt.Errorf("failed to insert run row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit metrics transaction: %w", err)
	}
	d.logger.Debug().Int("rows", len(summary.Results)).Msg("Recorded run rows")
	return nil
}

// ComputeMetrics recomputes a test's metrics from its run rows.
func (d *DB) ComputeMetrics(path string) (model.TestMetrics, error) {
	var rows []runRow
	err := d.db.Select(&rows, `
		SELECT path, status, duration_ms, started_at, worker, COALESCE(error, '') AS error
		FROM test_runs WHERE path = ? ORDER BY started_at ASC`, path)
	if err != nil {
		return model.TestMetrics{}, fmt.Errorf("failed to load run rows for %s: %w", path, err)
	}
	if len(rows) == 0 {
		return model.TestMetrics{Path: path}, nil
	}
	return deriveMetrics(path, rows), nil
}

// RefreshMetrics recomputes cached aggregates for every known test and
// upserts them into test_metrics. It returns the refreshed metrics
// sorted by descending maintenance urgency.
func (d *DB) RefreshMetrics() ([]model.TestMetrics, error) {
	var paths []string
	if err := d.db.Select(&paths, `SELECT DISTINCT path FROM test_runs`); err != nil {
		return nil, fmt.Errorf("failed to list tested paths: %w", err)
	}

	metrics := make([]model.TestMetrics, 0, len(paths))
	for _, p := range paths {
		m, err := d.ComputeMetrics(p)
		if err != nil {
			return nil, err
		}
		if err := d.upsertMetrics(m); err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}

	sort.Slice(metrics, func(i, j int) bool {
		a, b := metrics[i], metrics[j]
		if a.MaintenancePriority.Rank() != b.MaintenancePriority.Rank() {
			return a.MaintenancePriority.Rank() < b.MaintenancePriority.Rank()
		}
		return a.Path < b.Path
	})

	d.logger.Info().Int("tests", len(metrics)).Msg("Refreshed cached metrics")
	return metrics, nil
}

// CachedMetrics returns the cached aggregates, most urgent first.
func (d *DB) CachedMetrics(limit int) ([]model.TestMetrics, error) {
	type metricsRow struct {
		Path                string    `db:"path"`
		RunCount            int       `db:"run_count"`
		SuccessCount        int       `db:"success_count"`
		AvgDurationMS       int64     `db:"avg_duration_ms"`
		MinDurationMS       int64     `db:"min_duration_ms"`
		MaxDurationMS       int64     `db:"max_duration_ms"`
		StabilityScore      float64   `db:"stability_score"`
		FlakinessScore      float64   `db:"flakiness_score"`
		MaintenancePriority string    `db:"maintenance_priority"`
		Tags                string    `db:"tags"`
		LastRun             time.Time `db:"last_run"`
	}

	query := `SELECT path, run_count, success_count, avg_duration_ms, min_duration_ms,
		max_duration_ms, stability_score, flakiness_score, maintenance_priority,
		COALESCE(tags, '') AS tags, last_run
		FROM test_metrics ORDER BY stability_score ASC, path ASC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []metricsRow
	if err := d.db.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to load cached metrics: %w", err)
	}

	metrics := make([]model.TestMetrics, 0, len(rows))
	for _, r := range rows {
		var tags []string
		if r.Tags != "" {
			tags = strings.Split(r.Tags, ",")
		}
		metrics = append(metrics, model.TestMetrics{
			Path:                r.Path,
			RunCount:            r.RunCount,
			SuccessCount:        r.SuccessCount,
			AvgDuration:         time.Duration(r.AvgDurationMS) * time.Millisecond,
			MinDuration:         time.Duration(r.MinDurationMS) * time.Millisecond,
			MaxDuration:         time.Duration(r.MaxDurationMS) * time.Millisecond,
			StabilityScore:      r.StabilityScore,
			FlakinessScore:      r.FlakinessScore,
			MaintenancePriority: model.Priority(r.MaintenancePriority),
			Tags:                tags,
			LastRun:             r.LastRun,
		})
	}
	return metrics, nil
}

func (d *DB) upsertMetrics(m model.TestMetrics) error {
	_, err := d.db.Exec(`
		INSERT INTO test_metrics (path, run_count, success_count, avg_duration_ms,
			min_duration_ms, max_duration_ms, stability_score, flakiness_score,
			maintenance_priority, tags, last_run)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			run_count = excluded.run_count,
			success_count = excluded.success_count,
			avg_duration_ms = excluded.avg_duration_ms,
			min_duration_ms = excluded.min_duration_ms,
			max_duration_ms = excluded.max_duration_ms,
			stability_score = excluded.stability_score,
			flakiness_score = excluded.flakiness_score,
			maintenance_priority = excluded.maintenance_priority,
			tags = excluded.tags,
			last_run = excluded.last_run`,
		m.Path, m.RunCount, m.SuccessCount, m.AvgDuration.Milliseconds(),
		m.MinDuration.Milliseconds(), m.MaxDuration.Milliseconds(),
		m.StabilityScore, m.FlakinessScore, string(m.MaintenancePriority),
		strings.Join(m.Tags, ","), m.LastRun.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert metrics for %s: %w", m.Path, err)
	}
	return nil
}

// deriveMetrics computes the aggregate view of one test's run rows:
// stability is the plain success rate, flakiness is the transition score
// over the last runs, and the maintenance priority and tags follow from
// fixed thresholds.
func deriveMetrics(path string, rows []runRow) model.TestMetrics {
	m := model.TestMetrics{
		Path:     path,
		RunCount: len(rows),
	}

	var totalMS, minMS, maxMS int64
	minMS = rows[0].DurationMS
	var statuses []model.Status
	for _, r := range rows {
		if model.Status(r.Status).Passed() {
			m.SuccessCount++
		}
		totalMS += r.DurationMS
		if r.DurationMS < minMS {
			minMS = r.DurationMS
		}
		if r.DurationMS > maxMS {
			maxMS = r.DurationMS
		}
		statuses = append(statuses, model.Status(r.Status))
		if r.StartedAt.After(m.LastRun) {
			m.LastRun = r.StartedAt
		}
	}

	m.AvgDuration = time.Duration(totalMS/int64(len(rows))) * time.Millisecond
	m.MinDuration = time.Duration(minMS) * time.Millisecond
	m.MaxDuration = time.Duration(maxMS) * time.Millisecond
	m.StabilityScore = float64(m.SuccessCount) / float64(m.RunCount)

	recent := statuses
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	if len(statuses) >= 5 {
		m.FlakinessScore = flaky.Score(recent)
	}

	m.MaintenancePriority = maintenancePriority(m)
	m.Tags = maintenanceTags(m)
	return m
}

func maintenancePriority(m model.TestMetrics) model.Priority {
	switch {
	case m.StabilityScore < 0.5:
		return model.PriorityCritical
	case m.StabilityScore < 0.8 || m.FlakinessScore > 0.5:
		return model.PriorityHigh
	case m.FlakinessScore > 0.3 || m.AvgDuration > time.Minute:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}

func maintenanceTags(m model.TestMetrics) []string {
	var tags []string
	if m.StabilityScore < 0.2 {
		tags = append(tags, "unstable")
	}
	if m.FlakinessScore > 0.3 {
		tags = append(tags, "flaky")
	}
	if m.AvgDuration > time.Minute {
		tags = append(tags, "slow")
	}
	return tags
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
