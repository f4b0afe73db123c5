package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store manages the SQLite connection and schema.
type Store struct {
	db *sql.DB
}

// NewStore initializes the SQLite database connection.
// It enables WAL mode for concurrency and durability.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the necessary tables if they don't exist.
func (s *Store) migrate() error {
	// One row per materialization. Counts and the failure are columns for
	// querying, the full result is kept as a JSON blob.
	query := `
	CREATE TABLE IF NOT EXISTS materializations (
		id TEXT PRIMARY KEY,
		pattern TEXT NOT NULL,
		description TEXT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		node_count INTEGER NOT NULL,
		edge_count INTEGER NOT NULL,
		succeeded INTEGER NOT NULL,

		-- Failure (NULL when succeeded)
		failed_phase TEXT,
		failed_step INTEGER, -- index within the phase
		failed_ref TEXT,     -- template node id or source->target
		failure_reason TEXT,

		result JSON NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_materializations_started ON materializations(started_at);
	CREATE INDEX IF NOT EXISTS idx_materializations_pattern ON materializations(pattern);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create materializations table: %w", err)
	}

	return s.addFailedRef()
}

// addFailedRef upgrades journals whose failed_step column held the template
// reference instead of the step index.
func (s *Store) addFailedRef() error {
	rows, err := s.db.Query(`PRAGMA table_info(materializations)`)
	if err != nil {
		return fmt.Errorf("failed to inspect materializations: %w", err)
	}
	found := false
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan column info: %w", err)
		}
		if name == "failed_ref" {
			found = true
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to inspect materializations: %w", err)
	}
	if found {
		return nil
	}

	if _, err := s.db.Exec(`
		ALTER TABLE materializations ADD COLUMN failed_ref TEXT;
		UPDATE materializations SET failed_ref = failed_step, failed_step = NULL;
	`); err != nil {
		return fmt.Errorf("failed to add failed_ref: %w", err)
	}
	return nil
}
