// Package table persists extracted node metrics as an append-only result table keyed by query
// file name. Keys are not unique: every run appends a fresh block of rows.
package table

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mickamy/cardscope/internal/model"
)

// ActualColumn names the observed row count column.
const ActualColumn = "Actual"

// Sink receives one block of node metrics per processed query.
type Sink interface {
	Append(ctx context.Context, file string, nodes []model.Metric) error
	Close() error
}

// Row is one persisted (estimate, actual) pair. Run numbers the append that wrote the row; rows
// loaded from a file without run markers share run 0.
type Row struct {
	File      string
	Run       int
	Estimated float64
	Actual    float64
}

// Table is a loaded result table.
type Table struct {
	// Label names the estimator column, e.g. "AQO(RIDGE)".
	Label string
	Rows  []Row
}

// Block groups consecutive rows that share a file name.
type Block struct {
	File  string
	Nodes []model.Metric
}

// Open returns the sink matching the extension of path: .db, .sqlite and .sqlite3 select SQLite,
// everything else CSV.
func Open(path, label string) (Sink, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("table: empty output path")
	}
	if isSQLite(path) {
		return OpenSQLite(path, label)
	}
	return NewCSV(path, label), nil
}

// Load reads a table written by either sink.
func Load(path string) (*Table, error) {
	if isSQLite(path) {
		return loadSQLite(path)
	}
	return loadCSV(path)
}

// Blocks splits the rows into per-file blocks in file order. A block ends when the file name or
// the run changes, so repeated appends for one file stay apart even when adjacent.
func (t *Table) Blocks() []Block {
	var out []Block
	for i, row := range t.Rows {
		if i == 0 || t.Rows[i-1].File != row.File || t.Rows[i-1].Run != row.Run {
			out = append(out, Block{File: row.File})
		}
		last := &out[len(out)-1]
		last.Nodes = append(last.Nodes, model.Metric{Estimated: row.Estimated, Actual: row.Actual})
	}
	return out
}

// Files returns the distinct file names in first-seen order.
func (t *Table) Files() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, row := range t.Rows {
		if _, ok := seen[row.File]; ok {
			continue
		}
		seen[row.File] = struct{}{}
		out = append(out, row.File)
	}
	return out
}

// Metrics returns every row as a metric pair.
func (t *Table) Metrics() []model.Metric {
	out := make([]model.Metric, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, model.Metric{Estimated: row.Estimated, Actual: row.Actual})
	}
	return out
}

// Latest returns the last block recorded for every file, in first-seen file order.
func (t *Table) Latest() []Block {
	last := map[string]Block{}
	for _, b := range t.Blocks() {
		last[b.File] = b
	}
	out := make([]Block, 0, len(last))
	for _, file := range t.Files() {
		out = append(out, last[file])
	}
	return out
}

// ByFile returns every pair recorded for file, across all blocks.
func (t *Table) ByFile(file string) []model.Metric {
	var out []model.Metric
	for _, row := range t.Rows {
		if row.File == file {
			out = append(out, model.Metric{Estimated: row.Estimated, Actual: row.Actual})
		}
	}
	return out
}

func isSQLite(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	default:
		return false
	}
}
