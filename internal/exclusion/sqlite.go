package exclusion

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS path_rules (
	position INTEGER PRIMARY KEY,
	prefix   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS query_param_set_rules (
	position INTEGER PRIMARY KEY,
	names    TEXT NOT NULL
);`

// SQLiteBackend stores one row per rule. The position column keeps list
// order; every save rewrites both tables in a single transaction.
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

func OpenSQLiteBackend(path string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteBackend{db: db, path: path}, nil
}

func (s *SQLiteBackend) Path() string { return s.path }

func (s *SQLiteBackend) Load() (Rules, error) {
	var rules Rules

	rows, err := s.db.Query(`SELECT prefix FROM path_rules ORDER BY position`)
	if err != nil {
		return Rules{}, fmt.Errorf("querying path rules: %w", err)
	}
	for rows.Next() {
		var prefix string
		if err := rows.Scan(&prefix); err != nil {
			rows.Close()
			return Rules{}, fmt.Errorf("scanning path rule: %w", err)
		}
		rules.Paths = append(rules.Paths, PathRule{Prefix: prefix})
	}
	if err := rows.Close(); err != nil {
		return Rules{}, err
	}

	rows, err = s.db.Query(`SELECT names FROM query_param_set_rules ORDER BY position`)
	if err != nil {
		return Rules{}, fmt.Errorf("querying query parameter set rules: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return Rules{}, fmt.Errorf("scanning query parameter set rule: %w", err)
		}
		var names []string
		if err := json.Unmarshal([]byte(raw), &names); err != nil {
			return Rules{}, fmt.Errorf("decoding query parameter names: %w", err)
		}
		rules.QueryParamSets = append(rules.QueryParamSets, QueryParamSetRule{Names: names})
	}
	return rules, rows.Err()
}

func (s *SQLiteBackend) Save(rules Rules) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`DELETE FROM path_rules`); err != nil {
		return fmt.Errorf("clearing path rules: %w", err)
	}
	if _, err = tx.Exec(`DELETE FROM query_param_set_rules`); err != nil {
		return fmt.Errorf("clearing query parameter set rules: %w", err)
	}

	for i, rule := range rules.Paths {
		if _, err = tx.Exec(`INSERT INTO path_rules (position, prefix) VALUES (?, ?)`, i, rule.Prefix); err != nil {
			return fmt.Errorf("inserting path rule: %w", err)
		}
	}
	for i, rule := range rules.QueryParamSets {
		names, mErr := json.Marshal(rule.Names)
		if mErr != nil {
			err = mErr
			return fmt.Errorf("encoding query parameter names: %w", err)
		}
		if _, err = tx.Exec(`INSERT INTO query_param_set_rules (position, names) VALUES (?, ?)`, i, string(names)); err != nil {
			return fmt.Errorf("inserting query parameter set rule: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing exclusions: %w", err)
	}
	return nil
}

func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}
