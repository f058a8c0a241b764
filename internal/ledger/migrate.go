package ledger

import (
	"context"
	"crypto/sha256"
	"fmt"

	"amsprobe/internal/errors"
)

type migration struct {
	version string
	sql     string
}

// Statements stay in the subset understood by both sqlite and postgres.
var migrations = []migration{
	{"001_runs", `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			test_file TEXT NOT NULL,
			sim_file TEXT NOT NULL,
			workdir TEXT NOT NULL,
			extract BOOLEAN NOT NULL DEFAULT FALSE,
			started_at TIMESTAMP NOT NULL
		)`},
	{"002_verdicts", `
		CREATE TABLE IF NOT EXISTS verdicts (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			test TEXT NOT NULL,
			mode TEXT NOT NULL,
			response TEXT NOT NULL,
			pin TEXT NOT NULL,
			residual TEXT NOT NULL,
			PRIMARY KEY (run_id, test, mode, response)
		)`},
	{"003_runs_finished", `ALTER TABLE runs ADD COLUMN finished_at TIMESTAMP`},
	{"004_verdicts_run_index", `CREATE INDEX IF NOT EXISTS idx_verdicts_run ON verdicts(run_id)`},
	{"005_runs_config_hash", `ALTER TABLE runs ADD COLUMN config_hash TEXT NOT NULL DEFAULT ''`},
}

// Migrate applies every migration not yet recorded in schema_migrations.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			checksum TEXT NOT NULL
		)`)
	if err != nil {
		return errors.Wrap(errors.DatabaseError(err.Error()), "failed to create migrations table")
	}

	var versions []string
	if err := s.db.SelectContext(ctx, &versions, "SELECT version FROM schema_migrations"); err != nil {
		return errors.Wrap(errors.DatabaseError(err.Error()), "failed to get applied migrations")
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return errors.Wrapf(errors.DatabaseError(err.Error()), "failed to apply migration %s", m.version)
		}
		s.logger.Debug("applied migration %s", m.version)
	}
	return nil
}

func (s *Store) apply(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind("INSERT INTO schema_migrations (version, checksum) VALUES (?, ?)"), m.version, checksum(m.sql)); err != nil {
		return err
	}
	return tx.Commit()
}

func checksum(sql string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(sql)))
}
