package test

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"golang.org/x/tools/txtar"

	"github.com/mickamy/cardscope/internal/model"
	"github.com/mickamy/cardscope/internal/parser"
)

var (
	rootPath string
	once     sync.Once
)

// RootPath resolves a path relative to the repository rootPath (where go.mod resides).
func RootPath(t *testing.T) string {
	t.Helper()
	once.Do(func() {
		wd, err := os.Getwd()
		if err != nil {
			t.Fatalf("getwd: %v", err)
		}
		for {
			if _, err := os.Stat(filepath.Join(wd, "go.mod")); err == nil {
				rootPath = wd
				break
			}
			next := filepath.Dir(wd)
			if next == wd {
				t.Fatalf("go.mod not found from %s", wd)
			}
			wd = next
		}
	})
	return rootPath
}

// SamplePath joins rel onto the samples directory.
func SamplePath(t *testing.T, rel string) string {
	t.Helper()
	return filepath.Join(RootPath(t), "samples", rel)
}

// LoadArchive parses a txtar fixture from the samples directory.
func LoadArchive(t *testing.T, rel string) *txtar.Archive {
	t.Helper()
	archive, err := txtar.ParseFile(SamplePath(t, rel))
	if err != nil {
		t.Fatalf("parse archive %s: %v", rel, err)
	}
	return archive
}

// ArchiveFile returns the content of name inside archive.
func ArchiveFile(t *testing.T, archive *txtar.Archive, name string) []byte {
	t.Helper()
	for _, f := range archive.Files {
		if f.Name == name {
			return f.Data
		}
	}
	t.Fatalf("archive has no file %q", name)
	return nil
}

// LoadSamplePlan parses plan.json from a txtar fixture under samples/plans.
func LoadSamplePlan(t *testing.T, name string) *model.Explain {
	t.Helper()
	archive := LoadArchive(t, filepath.Join("plans", name))
	plan, err := parser.ParseJSON(bytes.NewReader(ArchiveFile(t, archive, "plan.json")))
	if err != nil {
		t.Fatalf("parse plan: %v", err)
	}
	return plan
}

// Chain builds a plan whose root has a single-child chain of the given (estimated, actual) pairs.
func Chain(root [2]float64, path ...[2]float64) *model.Explain {
	top := &model.PlanNode{NodeType: "Aggregate", PlanRows: root[0], ActualRows: root[1]}
	parent := top
	for _, p := range path {
		child := &model.PlanNode{NodeType: "Nested Loop", PlanRows: p[0], ActualRows: p[1]}
		parent.Children = []*model.PlanNode{child}
		parent = child
	}
	return &model.Explain{Plan: top}
}
