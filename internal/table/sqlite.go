package table

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/mickamy/cardscope/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS results (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	file     TEXT NOT NULL,
	seq      INTEGER NOT NULL,
	label    TEXT NOT NULL,
	estimate REAL NOT NULL,
	actual   REAL NOT NULL
);`

// SQLite stores result rows in a single table of an SQLite database file.
type SQLite struct {
	db    *sql.DB
	label string
}

// OpenSQLite opens (or creates) the database at path. A non-empty label must match the estimator
// already recorded there.
func OpenSQLite(path, label string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("table: open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("table: init sqlite schema: %w", err)
	}
	if label != "" {
		var recorded string
		err := db.QueryRow("SELECT label FROM results ORDER BY id ASC LIMIT 1").Scan(&recorded)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			_ = db.Close()
			return nil, fmt.Errorf("table: read label of %s: %w", path, err)
		case recorded != label:
			_ = db.Close()
			return nil, fmt.Errorf("table: %s records estimator %q, not %q", path, recorded, label)
		}
	}
	return &SQLite{db: db, label: label}, nil
}

// Append inserts the block inside one transaction.
func (s *SQLite) Append(ctx context.Context, file string, nodes []model.Metric) error {
	if len(nodes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("table: begin: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO results (file, seq, label, estimate, actual) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("table: prepare: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for i, n := range nodes {
		if _, err := stmt.ExecContext(ctx, file, i, s.label, n.Estimated, n.Actual); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("table: insert %s[%d]: %w", file, i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("table: commit: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func loadSQLite(path string) (*Table, error) {
	s, err := OpenSQLite(path, "")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = s.Close()
	}()

	rows, err := s.db.Query("SELECT file, seq, label, estimate, actual FROM results ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("table: query %s: %w", path, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	t := &Table{}
	run := 0
	for rows.Next() {
		var (
			row   Row
			seq   int
			label string
		)
		if err := rows.Scan(&row.File, &seq, &label, &row.Estimated, &row.Actual); err != nil {
			return nil, fmt.Errorf("table: scan: %w", err)
		}
		// every Append numbers its rows from 0
		if seq == 0 {
			run++
		}
		row.Run = run
		if t.Label == "" {
			t.Label = label
		}
		t.Rows = append(t.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("table: iterate %s: %w", path, err)
	}
	return t, nil
}
