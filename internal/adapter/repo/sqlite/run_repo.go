// Package sqliterepo stores the step-run log in an embedded SQLite file.
package sqliterepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"agentbridge/internal/app/ports"
	"agentbridge/internal/domain/world"
)

type RunRepo struct {
	db *sql.DB
}

var _ ports.RunRepository = (*RunRepo)(nil)

func Open(path string) (*RunRepo, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &RunRepo{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS step_runs (
			run_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			code TEXT NOT NULL,
			programs TEXT NOT NULL,
			outcome TEXT NOT NULL,
			message TEXT NOT NULL,
			events_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_step_runs_started_at ON step_runs(started_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (r *RunRepo) Close() error {
	return r.db.Close()
}

func (r *RunRepo) Save(ctx context.Context, run ports.RunRecord) error {
	events := run.Events
	if events == nil {
		events = []world.Event{}
	}
	b, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("encode events: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO step_runs(run_id, session_id, started_at, finished_at, code, programs, outcome, message, events_json)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SessionID, run.StartedAt.UnixNano(), run.FinishedAt.UnixNano(),
		run.Code, run.Programs, run.Outcome, run.Message, string(b),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ports.ErrConflict
	}
	return err
}

func (r *RunRepo) Get(ctx context.Context, id string) (ports.RunRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT run_id, session_id, started_at, finished_at, code, programs, outcome, message, events_json
		 FROM step_runs WHERE run_id = ?`, id)
	var (
		run               ports.RunRecord
		started, finished int64
		events            string
	)
	err := row.Scan(&run.ID, &run.SessionID, &started, &finished, &run.Code, &run.Programs, &run.Outcome, &run.Message, &events)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.RunRecord{}, ports.ErrNotFound
	}
	if err != nil {
		return ports.RunRecord{}, err
	}
	run.StartedAt = time.Unix(0, started)
	run.FinishedAt = time.Unix(0, finished)
	if err := json.Unmarshal([]byte(events), &run.Events); err != nil {
		return ports.RunRecord{}, fmt.Errorf("decode events: %w", err)
	}
	return run, nil
}

func (r *RunRepo) List(ctx context.Context, q ports.RunQuery) ([]ports.RunRecord, error) {
	var (
		where []string
		args  []any
	)
	if !q.From.IsZero() {
		where = append(where, "started_at >= ?")
		args = append(args, q.From.UnixNano())
	}
	if !q.To.IsZero() {
		where = append(where, "started_at <= ?")
		args = append(args, q.To.UnixNano())
	}
	query := `SELECT run_id, session_id, started_at, finished_at, code, programs, outcome, message FROM step_runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ports.RunRecord{}
	for rows.Next() {
		var (
			run               ports.RunRecord
			started, finished int64
		)
		if err := rows.Scan(&run.ID, &run.SessionID, &started, &finished, &run.Code, &run.Programs, &run.Outcome, &run.Message); err != nil {
			return nil, err
		}
		run.StartedAt = time.Unix(0, started)
		run.FinishedAt = time.Unix(0, finished)
		out = append(out, run)
	}
	return out, rows.Err()
}
