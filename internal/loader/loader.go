package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// QueryFile is one SQL file of a batch.
type QueryFile struct {
	Name string
	Path string
}

// List returns the query files of a batch. With no explicit names every regular file in dir is
// returned, sorted by name. Otherwise the named files are resolved relative to dir in the order
// given, repeated names kept once.
func List(dir string, only []string) ([]QueryFile, error) {
	if len(only) > 0 {
		return pick(dir, only), nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("loader: list %s: %w", dir, err)
	}
	var files []QueryFile
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		files = append(files, QueryFile{Name: entry.Name(), Path: filepath.Join(dir, entry.Name())})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func pick(dir string, names []string) []QueryFile {
	seen := mapset.NewThreadUnsafeSet[string]()
	files := make([]QueryFile, 0, len(names))
	for _, name := range names {
		if !seen.Add(name) {
			continue
		}
		files = append(files, QueryFile{Name: name, Path: filepath.Join(dir, name)})
	}
	return files
}

// Read loads the SQL text of f.
func Read(f QueryFile) (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("loader: read %s: %w", f.Path, err)
	}
	return string(data), nil
}

// Remove deletes f once it has been processed.
func Remove(f QueryFile) error {
	if err := os.Remove(f.Path); err != nil {
		return fmt.Errorf("loader: remove %s: %w", f.Path, err)
	}
	return nil
}
