package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/census-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	year       TEXT NOT NULL,
	dataset    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	summary    TEXT,
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_rows (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	seq          INTEGER NOT NULL,
	scale        TEXT NOT NULL,
	primary_code TEXT NOT NULL,
	roc_sic      TEXT NOT NULL,
	asset        INTEGER NOT NULL,
	isic         TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS run_aggregates (
	run_id    TEXT NOT NULL REFERENCES runs(id),
	dimension TEXT NOT NULL,
	group_key TEXT NOT NULL,
	total     INTEGER NOT NULL,
	PRIMARY KEY (run_id, dimension, group_key)
);

CREATE INDEX IF NOT EXISTS idx_runs_year ON runs(year);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

// Migrate creates the schema if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, year, dataset string) (*model.Run, error) {
	now := time.Now().UTC()
	run := &model.Run{
		ID:        uuid.New().String(),
		Year:      year,
		Dataset:   dataset,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, year, dataset, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Year, run.Dataset, string(run.Status), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: create run")
	}
	return run, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, summary model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, summary = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), string(summaryJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: complete run")
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), reason, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: fail run")
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, year, dataset, status, summary, error, created_at, updated_at FROM runs WHERE id = ?`, runID)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, year, dataset, status, summary, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Year != "" {
		query += ` AND year = ?`
		args = append(args, filter.Year)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, filter.limit())
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveRows(ctx context.Context, runID string, rows []model.AnnotatedRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: save rows: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_rows (run_id, seq, scale, primary_code, roc_sic, asset, isic) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: save rows: prepare")
	}
	defer stmt.Close()

	for i, r := range rows {
		if _, err := stmt.ExecContext(ctx, runID, i, r.Scale, r.Primary, r.PrimaryShort, r.Asset, r.Classification); err != nil {
			return 0, eris.Wrapf(err, "sqlite: save rows: row %d", i)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: save rows: commit")
	}
	return int64(len(rows)), nil
}

func (s *SQLiteStore) SaveAggregate(ctx context.Context, runID string, dimension model.Field, totals map[string]int64) error {
	if len(totals) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: save aggregate: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_aggregates (run_id, dimension, group_key, total) VALUES (?, ?, ?, ?)
		 ON CONFLICT (run_id, dimension, group_key) DO UPDATE SET total = excluded.total`)
	if err != nil {
		return eris.Wrap(err, "sqlite: save aggregate: prepare")
	}
	defer stmt.Close()

	for key, total := range totals {
		if _, err := stmt.ExecContext(ctx, runID, string(dimension), key, total); err != nil {
			return eris.Wrapf(err, "sqlite: save aggregate: key %q", key)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: save aggregate: commit")
}

func (s *SQLiteStore) GetAggregate(ctx context.Context, runID string, dimension model.Field) ([]model.AggregateEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT dimension, group_key, total FROM run_aggregates WHERE run_id = ? AND dimension = ? ORDER BY group_key`,
		runID, string(dimension))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get aggregate")
	}
	defer rows.Close()

	var out []model.AggregateEntry
	for rows.Next() {
		var e model.AggregateEntry
		var dim string
		if err := rows.Scan(&dim, &e.Key, &e.Total); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan aggregate")
		}
		e.Dimension = model.Field(dim)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: get aggregate iterate")
}

// helpers

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("store: not found")

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var status string
	var summaryJSON sql.NullString

	err := row.Scan(&r.ID, &r.Year, &r.Dataset, &status, &summaryJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.Status = model.RunStatus(status)

	if summaryJSON.Valid {
		if err := decodeSummary([]byte(summaryJSON.String), &r); err != nil {
			return nil, err
		}
	}
	return &r, nil
}

func decodeSummary(data []byte, r *model.Run) error {
	if len(data) == 0 {
		return nil
	}
	r.Summary = &model.RunSummary{}
	if err := json.Unmarshal(data, r.Summary); err != nil {
		return eris.Wrap(err, fmt.Sprintf("store: unmarshal summary for run %s", r.ID))
	}
	return nil
}
