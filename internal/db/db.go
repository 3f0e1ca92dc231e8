package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/brief/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 2

// Init initializes the SQLite database at baseDir/brief.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.brief.
func Init(baseDir string) (*sql.DB, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	// Explicit chmod (best-effort, may not work on all platforms)
	_ = os.Chmod(baseDir, 0700)

	// Pragmas in the connection string apply to every pooled connection
	dbPath := filepath.Join(baseDir, "brief.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	// Run migrations (this creates the file if it doesn't exist)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	// Set file permissions after file exists (best-effort)
	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: Initial schema (v1)
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS users (
		  id          TEXT PRIMARY KEY,
		  open_id     TEXT NOT NULL UNIQUE,
		  name        TEXT,
		  created_at  INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS cases (
		  id          TEXT PRIMARY KEY,
		  user_id     TEXT NOT NULL REFERENCES users(id),
		  title       TEXT NOT NULL,
		  description TEXT,
		  query       TEXT NOT NULL,
		  status      TEXT NOT NULL DEFAULT 'pending'
		              CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
		  created_at  INTEGER NOT NULL,
		  updated_at  INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_cases_user_created
		ON cases(user_id, created_at DESC);

		CREATE INDEX IF NOT EXISTS idx_cases_status
		ON cases(status);

		CREATE TABLE IF NOT EXISTS agent_logs (
		  id          TEXT PRIMARY KEY,
		  case_id     TEXT NOT NULL REFERENCES cases(id),
		  agent_name  TEXT NOT NULL,
		  action      TEXT NOT NULL,
		  input       TEXT,
		  output      TEXT,
		  reasoning   TEXT,
		  timestamp   INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_agent_logs_case_ts
		ON agent_logs(case_id, timestamp, id);

		CREATE TABLE IF NOT EXISTS results (
		  id             TEXT PRIMARY KEY,
		  case_id        TEXT NOT NULL REFERENCES cases(id),
		  summary        TEXT,
		  findings       TEXT,
		  precedents     TEXT,
		  statutes       TEXT,
		  recommendation TEXT,
		  created_at     INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_results_case_created
		ON results(case_id, created_at DESC, id DESC);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Migration 1 -> 2: claim token owned by the run that moved a case into processing
	if version < 2 {
		if _, err := db.Exec(`ALTER TABLE cases ADD COLUMN claim_id TEXT`); err != nil {
			return fmt.Errorf("migration 2 failed: %w", err)
		}
		if err := SetUserVersion(db, 2); err != nil {
			return err
		}
	}

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
