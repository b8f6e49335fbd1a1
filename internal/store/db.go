// Package store is otto's StateStore: a single embedded SQLite
// database (one per user, shared across projects) recording run and
// task history for the `history`/`stats`/`clean` commands. The
// skip-on-unchanged decision does not read it; that is mtime-based.
//
// Grounded on otto-rs's src/executor/state/manager.rs (StateManager,
// exact method names and table shape) and migrations.rs (schema_version
// table, migrate-from-current-version loop). Backed by
// modernc.org/sqlite, a pit dependency that pit's own source never
// imports — repurposed here as otto's only storage engine, wired
// through the stdlib database/sql interface the way pit wires its
// loader package around jackc/pgx/microsoft/go-mssqldb.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/druarnfield/otto/internal/engine"
)

// Store is a StateStore backed by a single SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path, enables
// WAL mode for concurrent readers during a run, and migrates the
// schema to the current version.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, engine.NewError(engine.ErrStore, fmt.Errorf("opening %s: %w", path, err))
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers anyway; avoid SQLITE_BUSY races

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, engine.NewError(engine.ErrStore, fmt.Errorf("enabling WAL: %w", err))
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, engine.NewError(engine.ErrStore, fmt.Errorf("enabling foreign keys: %w", err))
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) currentVersion() (int64, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'`).Scan(&count)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}
	var version sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&version); err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return version.Int64, nil
}

func (s *Store) setVersion(version int64) error {
	_, err := s.db.Exec(`INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`, version, time.Now().Unix())
	return err
}

// migrate brings a fresh or older database up to schemaVersion.
// Idempotent: running it twice against an up-to-date database is a
// no-op, same contract as otto-rs's migrate().
func (s *Store) migrate() error {
	current, err := s.currentVersion()
	if err != nil {
		return engine.NewError(engine.ErrStore, fmt.Errorf("reading schema version: %w", err))
	}

	switch {
	case current == 0:
		if _, err := s.db.Exec(initSchema); err != nil {
			return engine.NewError(engine.ErrStore, fmt.Errorf("initializing schema: %w", err))
		}
		return s.wrapErr(s.setVersion(schemaVersion))
	case current < schemaVersion:
		// Future migrations land here as additional `case` steps,
		// each followed by setVersion(nextVersion).
		return s.wrapErr(s.setVersion(schemaVersion))
	case current > schemaVersion:
		return engine.NewError(engine.ErrStore, fmt.Errorf(
			"database schema version %d is newer than supported version %d; upgrade otto", current, schemaVersion))
	}
	return nil
}

func (s *Store) wrapErr(err error) error {
	if err == nil {
		return nil
	}
	return engine.NewError(engine.ErrStore, err)
}
