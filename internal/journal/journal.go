// Package journal records finished runs and their stage results in SQLite.
// The journal is write-mostly: it backs the runs command and is never read
// back into a session.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/valpere/transbench/internal"
	"github.com/valpere/transbench/internal/catalog"
	"github.com/valpere/transbench/internal/pipeline"
)

// ErrNotFound is returned by GetRun for an unknown id.
var ErrNotFound = errors.New("run not found")

type Journal struct {
	db *sql.DB
}

func Open(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer is enough and avoids SQLITE_BUSY between connections.
	db.SetMaxOpenConns(1)

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return j, nil
}

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		intent TEXT NOT NULL,
		input TEXT NOT NULL,
		state TEXT NOT NULL,
		halted_at TEXT,
		error TEXT,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS stage_results (
		run_id TEXT NOT NULL,
		stage_idx INTEGER NOT NULL,
		role_id TEXT NOT NULL,
		output TEXT NOT NULL,
		succeeded BOOLEAN NOT NULL,
		error TEXT,
		attempts INTEGER NOT NULL,
		prompt_tokens INTEGER,
		latency_ms INTEGER,
		PRIMARY KEY (run_id, stage_idx),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_stage_results_role ON stage_results(role_id);
	`

	_, err := j.db.Exec(schema)
	return err
}

// StageRecord is a stored stage result.
type StageRecord struct {
	Index        int
	RoleID       internal.RoleID
	Output       string
	Succeeded    bool
	Error        string
	Attempts     int
	PromptTokens int
	Latency      time.Duration
}

// RunRecord is a stored run. Stages is only filled by GetRun.
type RunRecord struct {
	ID         string
	Mode       internal.Mode
	Intent     internal.Intent
	Input      string
	State      string
	HaltedAt   internal.RoleID
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
	Stages     []StageRecord
}

func (r RunRecord) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// SaveRun stores run and all of its stage results in one transaction.
func (j *Journal) SaveRun(ctx context.Context, run *pipeline.Run) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	errText := ""
	if run.Err != nil {
		errText = run.Err.Error()
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, mode, intent, input, state, halted_at, error, started_at, finished_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Mode), string(run.Intent), normalizeText(run.Input), run.State.String(),
		string(run.HaltedAt), errText, run.StartedAt.UTC(), run.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	for i, st := range run.Stages {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO stage_results (run_id, stage_idx, role_id, output, succeeded, error, attempts, prompt_tokens, latency_ms) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, string(st.RoleID), st.Output, st.Succeeded, st.ErrorText(), st.Attempts, st.PromptTokens, st.Latency.Milliseconds())
		if err != nil {
			return fmt.Errorf("failed to insert stage %d of run %s: %w", i, run.ID, err)
		}
	}

	return tx.Commit()
}

// ListOptions filters ListRuns. Zero values mean no filter; Limit <= 0
// returns everything.
type ListOptions struct {
	Mode  internal.Mode
	State string
	Limit int
}

// ListRuns returns runs newest first, without stage results.
func (j *Journal) ListRuns(ctx context.Context, opts ListOptions) ([]RunRecord, error) {
	query := `SELECT id, mode, intent, input, state, halted_at, error, started_at, finished_at FROM runs`
	var (
		where []string
		args  []interface{}
	)
	if opts.Mode != "" {
		where = append(where, "mode = ?")
		args = append(args, string(opts.Mode))
	}
	if opts.State != "" {
		where = append(where, "state = ?")
		args = append(args, opts.State)
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY started_at DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var (
		r                RunRecord
		mode, intent     string
		haltedAt, errMsg sql.NullString
	)
	if err := row.Scan(&r.ID, &mode, &intent, &r.Input, &r.State, &haltedAt, &errMsg, &r.StartedAt, &r.FinishedAt); err != nil {
		return RunRecord{}, err
	}
	r.Mode = internal.Mode(mode)
	r.Intent = internal.Intent(intent)
	r.HaltedAt = internal.RoleID(haltedAt.String)
	r.Error = errMsg.String
	return r, nil
}

// GetRun returns one run with its stage results in execution order. The id
// may be a unique prefix.
func (j *Journal) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, mode, intent, input, state, halted_at, error, started_at, finished_at FROM runs WHERE substr(id, 1, length(?)) = ? LIMIT 2`,
		id, id)
	if err != nil {
		return nil, err
	}
	var matches []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		matches = append(matches, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
	default:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
	}

	run := matches[0]
	stages, err := j.stages(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	run.Stages = stages
	return &run, nil
}

func (j *Journal) stages(ctx context.Context, runID string) ([]StageRecord, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT stage_idx, role_id, output, succeeded, error, attempts, prompt_tokens, latency_ms FROM stage_results WHERE run_id = ? ORDER BY stage_idx`,
		runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stages []StageRecord
	for rows.Next() {
		var (
			s         StageRecord
			roleID    string
			errMsg    sql.NullString
			latencyMs int64
		)
		if err := rows.Scan(&s.Index, &roleID, &s.Output, &s.Succeeded, &errMsg, &s.Attempts, &s.PromptTokens, &latencyMs); err != nil {
			return nil, err
		}
		s.RoleID = internal.RoleID(roleID)
		s.Error = errMsg.String
		s.Latency = time.Duration(latencyMs) * time.Millisecond
		stages = append(stages, s)
	}
	return stages, rows.Err()
}

// StageStats summarises the stored results of one role.
type StageStats struct {
	RoleID       internal.RoleID
	Calls        int
	Failures     int
	AvgLatency   time.Duration
	AvgAttempts  float64
	PromptTokens int
}

// Stats aggregates stage results per role, in catalog order.
func (j *Journal) Stats(ctx context.Context) ([]StageStats, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT
			role_id,
			COUNT(*),
			COALESCE(SUM(CASE WHEN succeeded THEN 0 ELSE 1 END), 0),
			COALESCE(AVG(latency_ms), 0),
			COALESCE(AVG(attempts), 0),
			COALESCE(SUM(prompt_tokens), 0)
		FROM stage_results
		GROUP BY role_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []StageStats
	for rows.Next() {
		var (
			s         StageStats
			roleID    string
			avgMillis float64
		)
		if err := rows.Scan(&roleID, &s.Calls, &s.Failures, &avgMillis, &s.AvgAttempts, &s.PromptTokens); err != nil {
			return nil, err
		}
		s.RoleID = internal.RoleID(roleID)
		s.AvgLatency = time.Duration(avgMillis * float64(time.Millisecond))
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(stats, func(a, b int) bool {
		return catalog.StageIndex(stats[a].RoleID) < catalog.StageIndex(stats[b].RoleID)
	})
	return stats, nil
}

// Clear removes every run and returns how many were deleted.
func (j *Journal) Clear(ctx context.Context) (int64, error) {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM stage_results`); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// normalizeText trims whitespace and applies Unicode NFC normalization so
// stored inputs compare consistently.
func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}
