package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/agentflow/pkg/domain"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Store implements ports.RunStore and ports.GraphStore backed by SQLite.
//
// Each run is one row holding {run_id, graph_id, status, step_count, state}
// plus its step log and error detail; state and log are stored as JSON text.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dsn using the pure-Go driver and
// initializes the schema.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite serializes writers anyway; a single connection also keeps
	// ":memory:" databases from splitting across the pool.
	db.SetMaxOpenConns(1)

	store, err := NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewStore initializes the required schema in the given database and returns a new Store.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize sqlite schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			graph_id TEXT NOT NULL,
			status TEXT NOT NULL,
			step_count INTEGER NOT NULL,
			state TEXT NOT NULL,
			log TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			error_code TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL DEFAULT '',
			finished_at TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS graphs (
			graph_id TEXT PRIMARY KEY,
			spec TEXT NOT NULL
		);`,
	)
	return err
}

// SaveRun creates or replaces the run row.
func (s *Store) SaveRun(ctx context.Context, run *domain.Run) error {
	state, err := json.Marshal(run.State)
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}
	log, err := json.Marshal(run.Log)
	if err != nil {
		return fmt.Errorf("failed to marshal run log: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, graph_id, status, step_count, state, log, error, error_code, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			graph_id = excluded.graph_id,
			status = excluded.status,
			step_count = excluded.step_count,
			state = excluded.state,
			log = excluded.log,
			error = excluded.error,
			error_code = excluded.error_code,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at`,
		run.ID,
		run.GraphID,
		string(run.Status),
		run.StepCount,
		string(state),
		string(log),
		run.Error,
		run.ErrorCode,
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// LoadRun reads the run row.
func (s *Store) LoadRun(ctx context.Context, runID string) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, graph_id, status, step_count, state, log, error, error_code, started_at, finished_at
		FROM runs WHERE run_id = ?`, runID)

	var (
		run                   domain.Run
		status                string
		state, log            string
		startedAt, finishedAt string
	)
	err := row.Scan(&run.ID, &run.GraphID, &status, &run.StepCount, &state, &log,
		&run.Error, &run.ErrorCode, &startedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	run.Status = domain.RunStatus(status)
	if err := json.Unmarshal([]byte(state), &run.State); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run state: %w", err)
	}
	if err := json.Unmarshal([]byte(log), &run.Log); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run log: %w", err)
	}
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if run.FinishedAt, err = parseTime(finishedAt); err != nil {
		return nil, err
	}
	return &run, nil
}

// DeleteRun removes the run row.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID)
	return err
}

// ListRuns returns the stored run IDs.
func (s *Store) ListRuns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id FROM runs ORDER BY run_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveGraph inserts the definition unless its ID is taken.
func (s *Store) SaveGraph(ctx context.Context, spec domain.GraphSpec) error {
	data, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO graphs (graph_id, spec) VALUES (?, ?)`, spec.ID, string(data))
	if err != nil {
		return fmt.Errorf("failed to save graph: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrGraphExists
	}
	return nil
}

// LoadGraph reads a definition.
func (s *Store) LoadGraph(ctx context.Context, graphID string) (domain.GraphSpec, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT spec FROM graphs WHERE graph_id = ?`, graphID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.GraphSpec{}, domain.ErrGraphNotFound
	}
	if err != nil {
		return domain.GraphSpec{}, fmt.Errorf("failed to load graph: %w", err)
	}

	var spec domain.GraphSpec
	if err := json.Unmarshal([]byte(data), &spec); err != nil {
		return domain.GraphSpec{}, fmt.Errorf("failed to unmarshal graph: %w", err)
	}
	return spec, nil
}

// ListGraphs returns every definition ordered by ID.
func (s *Store) ListGraphs(ctx context.Context) ([]domain.GraphSpec, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT spec FROM graphs ORDER BY graph_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list graphs: %w", err)
	}
	defer rows.Close()

	var specs []domain.GraphSpec
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var spec domain.GraphSpec
		if err := json.Unmarshal([]byte(data), &spec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal graph: %w", err)
		}
		specs = append(specs, spec)
	}
	return specs, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
