package table

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mickamy/cardscope/internal/model"
)

// runMarker prefixes the line written before every appended block. Readers such as pandas skip it
// with comment='#'.
const runMarker = "#"

// CSV appends rows to a comma separated file whose first column is the unnamed file index,
// followed by the estimator column and Actual.
type CSV struct {
	path  string
	label string
}

// NewCSV creates a sink writing to path. The file is created on first append.
func NewCSV(path, label string) *CSV {
	return &CSV{path: path, label: label}
}

// Append writes a run marker and one row per node. The header is only written when the file is
// new or empty; an existing header must name the same estimator.
func (c *CSV) Append(_ context.Context, file string, nodes []model.Metric) error {
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("table: open %s: %w", c.path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("table: stat %s: %w", c.path, err)
	}

	var records [][]string
	if info.Size() == 0 {
		records = append(records, []string{"", c.label, ActualColumn})
	} else if err := c.checkHeader(f); err != nil {
		return err
	}
	if len(nodes) > 0 {
		records = append(records, []string{runMarker + " " + file})
	}
	for _, n := range nodes {
		records = append(records, []string{file, formatFloat(n.Estimated), formatFloat(n.Actual)})
	}

	w := csv.NewWriter(f)
	for _, record := range records {
		if err := w.Write(record); err != nil {
			return fmt.Errorf("table: write %s: %w", c.path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("table: write %s: %w", c.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("table: close %s: %w", c.path, err)
	}
	return nil
}

func (c *CSV) checkHeader(r io.Reader) error {
	header, err := csv.NewReader(r).Read()
	if err != nil {
		return fmt.Errorf("table: read header of %s: %w", c.path, err)
	}
	if len(header) != 3 {
		return fmt.Errorf("table: %s: header has %d columns, want 3", c.path, len(header))
	}
	if header[1] != c.label {
		return fmt.Errorf("table: %s records estimator %q, not %q", c.path, header[1], c.label)
	}
	return nil
}

// Close is a no-op; every Append closes the file it opened.
func (c *CSV) Close() error { return nil }

func loadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("table: open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("table: %s is empty", path)
		}
		return nil, fmt.Errorf("table: read header: %w", err)
	}
	if len(header) != 3 {
		return nil, fmt.Errorf("table: %s: header has %d columns, want 3", path, len(header))
	}

	t := &Table{Label: header[1]}
	run := 0
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("table: read %s: %w", path, err)
		}
		line, _ := r.FieldPos(0)
		if len(record) == 1 && strings.HasPrefix(record[0], runMarker) {
			run++
			continue
		}
		if len(record) != 3 {
			return nil, fmt.Errorf("table: %s line %d: %d fields, want 3", path, line, len(record))
		}
		est, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("table: %s line %d: estimate: %w", path, line, err)
		}
		act, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, fmt.Errorf("table: %s line %d: actual: %w", path, line, err)
		}
		t.Rows = append(t.Rows, Row{File: record[0], Run: run, Estimated: est, Actual: act})
	}
	return t, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
