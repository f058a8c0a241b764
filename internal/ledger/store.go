// Package ledger keeps a history of checker runs and their verdicts in a
// SQL database.
package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"amsprobe/domain/core"
	"amsprobe/domain/verdict"
	"amsprobe/internal"
	"amsprobe/internal/errors"
)

// Run is one invocation of the checker.
type Run struct {
	ID         string     `db:"id"`
	TestFile   string     `db:"test_file"`
	SimFile    string     `db:"sim_file"`
	WorkDir    string     `db:"workdir"`
	Extract    bool       `db:"extract"`
	ConfigHash string     `db:"config_hash"`
	StartedAt  time.Time  `db:"started_at"`
	FinishedAt *time.Time `db:"finished_at"`
}

// Verdict is a stored verdict row.
type Verdict struct {
	RunID    string `db:"run_id"`
	Test     string `db:"test"`
	Mode     string `db:"mode"`
	Response string `db:"response"`
	Pin      string `db:"pin"`
	Residual string `db:"residual"`
}

// ModeVerdict converts the row back to the domain type.
func (v Verdict) ModeVerdict() verdict.ModeVerdict {
	return verdict.ModeVerdict{
		Test:     v.Test,
		Mode:     v.Mode,
		Response: v.Response,
		Pin:      verdict.Status(v.Pin),
		Residual: verdict.Status(v.Residual),
	}
}

// Store is a run ledger backed by sqlite3 or postgres.
type Store struct {
	db     *sqlx.DB
	logger *internal.Logger
}

// ParseDSN splits a ledger DSN into a driver name and a driver source.
// "sqlite3://path" opens a sqlite file, "postgres://..." and
// "postgresql://..." are passed to lib/pq unchanged.
func ParseDSN(dsn string) (driver, source string, err error) {
	switch {
	case strings.HasPrefix(dsn, "sqlite3://"):
		source = strings.TrimPrefix(dsn, "sqlite3://")
		if source == "" {
			return "", "", errors.ConfigInvalidf("ledger dsn %q has no path", dsn)
		}
		return "sqlite3", source, nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dsn, nil
	default:
		return "", "", errors.ConfigInvalidf("unsupported ledger dsn %q", dsn)
	}
}

// Open connects to the ledger and applies pending migrations.
func Open(ctx context.Context, dsn string, logger *internal.Logger) (*Store, error) {
	driver, source, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.ConnectContext(ctx, driver, source)
	if err != nil {
		return nil, errors.Wrapf(errors.DatabaseError(err.Error()), "connect %s ledger", driver)
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}
	s := &Store{db: db, logger: logger.WithComponent("Ledger")}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun inserts run, assigning its ID and start time.
func (s *Store) RecordRun(ctx context.Context, run *Run) error {
	run.ID = core.NewRunID().String()
	run.StartedAt = time.Now().UTC()
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO runs (id, test_file, sim_file, workdir, extract, config_hash, started_at)
		VALUES (:id, :test_file, :sim_file, :workdir, :extract, :config_hash, :started_at)
	`, run)
	if err != nil {
		return errors.Wrap(errors.DatabaseError(err.Error()), "record run")
	}
	return nil
}

// FinishRun stamps the end time of a run.
func (s *Store) FinishRun(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind("UPDATE runs SET finished_at = ? WHERE id = ?"), time.Now().UTC(), runID)
	if err != nil {
		return errors.Wrap(errors.DatabaseError(err.Error()), "finish run")
	}
	return nil
}

// GetRun loads one run.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	err := s.db.GetContext(ctx, &run, s.db.Rebind(`
		SELECT id, test_file, sim_file, workdir, extract, config_hash, started_at, finished_at
		FROM runs WHERE id = ?`), runID)
	if err != nil {
		return nil, errors.WithCode(errors.CodeNotFound, errors.Wrapf(err, "run %s", runID))
	}
	return &run, nil
}

// RecordVerdicts stores the verdicts of a run in one transaction.
func (s *Store) RecordVerdicts(ctx context.Context, runID string, verdicts []verdict.ModeVerdict) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.DatabaseError(err.Error()), "begin")
	}
	defer tx.Rollback()

	for _, v := range verdicts {
		row := Verdict{
			RunID:    runID,
			Test:     v.Test,
			Mode:     v.Mode,
			Response: v.Response,
			Pin:      string(v.Pin),
			Residual: string(v.Residual),
		}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO verdicts (run_id, test, mode, response, pin, residual)
			VALUES (:run_id, :test, :mode, :response, :pin, :residual)
		`, row)
		if err != nil {
			return errors.Wrapf(errors.DatabaseError(err.Error()), "record verdict %s/%s", v.Test, v.Response)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.DatabaseError(err.Error()), "commit")
	}
	return nil
}

// RecordVerdict stores a single verdict.
func (s *Store) RecordVerdict(ctx context.Context, runID string, v verdict.ModeVerdict) error {
	return s.RecordVerdicts(ctx, runID, []verdict.ModeVerdict{v})
}

// ListVerdicts returns the verdicts of a run ordered by test, mode and response.
func (s *Store) ListVerdicts(ctx context.Context, runID string) ([]Verdict, error) {
	var out []Verdict
	err := s.db.SelectContext(ctx, &out, s.db.Rebind(`
		SELECT run_id, test, mode, response, pin, residual
		FROM verdicts WHERE run_id = ?
		ORDER BY test, mode, response`), runID)
	if err != nil {
		return nil, errors.Wrap(errors.DatabaseError(err.Error()), "list verdicts")
	}
	return out, nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	var out []Run
	err := s.db.SelectContext(ctx, &out, s.db.Rebind(`
		SELECT id, test_file, sim_file, workdir, extract, config_hash, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, errors.Wrap(errors.DatabaseError(err.Error()), "list runs")
	}
	return out, nil
}
