package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"batteryctl/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id             TEXT PRIMARY KEY,
    evaluated_at   DATETIME NOT NULL,
    action         TEXT     NOT NULL,
    target_soc     INTEGER  NOT NULL,
    current_soc    REAL,
    applied        INTEGER  NOT NULL DEFAULT 0,
    reason         TEXT,
    projected_cost REAL,
    average_price  REAL,
    forecast_hours REAL,
    source         TEXT,
    result_json    TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_at ON runs(evaluated_at DESC);
`

const runRetention = 30 * 24 * time.Hour

// Run is one persisted control evaluation.
type Run struct {
	ID            string       `json:"id"`
	EvaluatedAt   time.Time    `json:"evaluated_at"`
	Action        model.Action `json:"action"`
	TargetSoc     int          `json:"target_soc"`
	CurrentSoc    *float64     `json:"current_soc,omitempty"`
	Applied       bool         `json:"applied"`
	Reason        string       `json:"reason,omitempty"`
	ProjectedCost float64      `json:"projected_cost_eur"`
	AveragePrice  float64      `json:"average_price_eur_per_kwh"`
	ForecastHours float64      `json:"forecast_hours"`
	Source        string       `json:"source,omitempty"`
	ResultJSON    string       `json:"-"`
}

// RunStore keeps run history in a local SQLite database. The driver is
// pure Go, so the binary stays cgo-free.
type RunStore struct {
	db *sql.DB
}

// NewRunStore opens (or creates) the database at path, applies the schema
// and prunes runs older than the retention window.
func NewRunStore(path string) (*RunStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store.NewRunStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store.NewRunStore: apply schema: %w", err)
	}

	s := &RunStore{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// Save inserts a run. An empty ID is filled with a fresh UUID; the
// (possibly generated) ID is returned.
func (s *RunStore) Save(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.EvaluatedAt.IsZero() {
		run.EvaluatedAt = time.Now().UTC()
	}

	applied := 0
	if run.Applied {
		applied = 1
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
			(id, evaluated_at, action, target_soc, current_soc, applied,
			 reason, projected_cost, average_price, forecast_hours, source, result_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.EvaluatedAt.UTC().Format(time.RFC3339),
		string(run.Action),
		run.TargetSoc,
		run.CurrentSoc,
		applied,
		run.Reason,
		run.ProjectedCost,
		run.AveragePrice,
		run.ForecastHours,
		run.Source,
		run.ResultJSON,
	); err != nil {
		return "", fmt.Errorf("store.Save: insert run %s: %w", run.ID, err)
	}
	return run.ID, nil
}

// Recent returns up to limit runs, newest first.
func (s *RunStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, evaluated_at, action, target_soc, current_soc, applied,
		       reason, projected_cost, average_price, forecast_hours, source, result_json
		FROM runs
		ORDER BY evaluated_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("store.Recent: query: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("store.Recent: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LastApplied returns the most recent run that actually wrote to the
// inverter, or nil when none exists yet.
func (s *RunStore) LastApplied(ctx context.Context) (*Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, evaluated_at, action, target_soc, current_soc, applied,
		       reason, projected_cost, average_price, forecast_hours, source, result_json
		FROM runs
		WHERE applied = 1
		ORDER BY evaluated_at DESC
		LIMIT 1
	`)
	if err != nil {
		return nil, fmt.Errorf("store.LastApplied: query: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	run, err := scanRun(rows)
	if err != nil {
		return nil, fmt.Errorf("store.LastApplied: %w", err)
	}
	return &run, nil
}

// Close closes the underlying database.
func (s *RunStore) Close() error {
	return s.db.Close()
}

// Result decodes the stored optimizer result payload into out.
func (r Run) Result(out any) error {
	if r.ResultJSON == "" {
		return fmt.Errorf("run %s carries no result payload", r.ID)
	}
	return json.Unmarshal([]byte(r.ResultJSON), out)
}

func (s *RunStore) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-runRetention).Format(time.RFC3339)
	s.db.ExecContext(ctx, `DELETE FROM runs WHERE evaluated_at < ?`, cutoff)
}

func scanRun(rows *sql.Rows) (Run, error) {
	var (
		run         Run
		evaluatedAt string
		action      string
		applied     int
		currentSoc  sql.NullFloat64
		reason      sql.NullString
		source      sql.NullString
		resultJSON  sql.NullString
	)
	if err := rows.Scan(
		&run.ID, &evaluatedAt, &action, &run.TargetSoc, &currentSoc, &applied,
		&reason, &run.ProjectedCost, &run.AveragePrice, &run.ForecastHours,
		&source, &resultJSON,
	); err != nil {
		return Run{}, fmt.Errorf("scan row: %w", err)
	}

	run.Action = model.Action(action)
	run.Applied = applied == 1
	run.Reason = reason.String
	run.Source = source.String
	run.ResultJSON = resultJSON.String
	if currentSoc.Valid {
		soc := currentSoc.Float64
		run.CurrentSoc = &soc
	}
	if t, err := time.Parse(time.RFC3339, evaluatedAt); err == nil {
		run.EvaluatedAt = t
	}
	return run, nil
}
