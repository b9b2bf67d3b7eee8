package table_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mickamy/cardscope/internal/model"
	"github.com/mickamy/cardscope/internal/table"
	"github.com/mickamy/cardscope/test"
)

var (
	first  = []model.Metric{{Estimated: 10, Actual: 12}, {Estimated: 3, Actual: 5}}
	second = []model.Metric{{Estimated: 11, Actual: 12}, {Estimated: 4.5, Actual: 5}}
)

func TestCSVAppendKeepsDuplicates(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.csv")

	sink, err := table.Open(path, "AQO(RIDGE)")
	require.NoError(t, err)
	require.NoError(t, sink.Append(ctx, "1a.sql", first))
	require.NoError(t, sink.Append(ctx, "2a.sql", first[:1]))
	require.NoError(t, sink.Close())

	// a second run reopens the file and must not rewrite the header
	sink, err = table.Open(path, "AQO(RIDGE)")
	require.NoError(t, err)
	require.NoError(t, sink.Append(ctx, "1a.sql", second))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, ",AQO(RIDGE),Actual\n"+
		"# 1a.sql\n1a.sql,10,12\n1a.sql,3,5\n"+
		"# 2a.sql\n2a.sql,10,12\n"+
		"# 1a.sql\n1a.sql,11,12\n1a.sql,4.5,5\n", string(raw))

	loaded, err := table.Load(path)
	require.NoError(t, err)
	require.Equal(t, "AQO(RIDGE)", loaded.Label)
	require.Len(t, loaded.Rows, 5)
	require.Equal(t, append(append([]model.Metric{}, first...), second...), loaded.ByFile("1a.sql"))
	require.Equal(t, []string{"1a.sql", "2a.sql"}, loaded.Files())

	blocks := loaded.Blocks()
	require.Len(t, blocks, 3)
	require.Equal(t, "1a.sql", blocks[2].File)
	require.Equal(t, second, blocks[2].Nodes)
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results.db")

	sink, err := table.Open(path, "AQO(NN)")
	require.NoError(t, err)
	require.NoError(t, sink.Append(ctx, "1a.sql", first))
	require.NoError(t, sink.Append(ctx, "1a.sql", second))
	require.NoError(t, sink.Append(ctx, "empty.sql", nil))
	require.NoError(t, sink.Close())

	loaded, err := table.Load(path)
	require.NoError(t, err)
	require.Equal(t, "AQO(NN)", loaded.Label)
	require.Len(t, loaded.Rows, 4)
	require.Equal(t, append(append([]model.Metric{}, first...), second...), loaded.ByFile("1a.sql"))
}

func TestRepeatedRunsStaySeparateBlocks(t *testing.T) {
	for _, name := range []string{"data.csv", "results.db"} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), name)

			for _, nodes := range [][]model.Metric{first, second} {
				sink, err := table.Open(path, "AQO(RIDGE)")
				require.NoError(t, err)
				require.NoError(t, sink.Append(ctx, "1a.sql", nodes))
				require.NoError(t, sink.Close())
			}

			loaded, err := table.Load(path)
			require.NoError(t, err)
			require.Len(t, loaded.Rows, 4)

			blocks := loaded.Blocks()
			require.Len(t, blocks, 2)
			require.Equal(t, first, blocks[0].Nodes)
			require.Equal(t, second, blocks[1].Nodes)

			latest := loaded.Latest()
			require.Len(t, latest, 1)
			require.Equal(t, second, latest[0].Nodes)
		})
	}
}

func TestReopenWithOtherLabelFails(t *testing.T) {
	for _, name := range []string{"data.csv", "results.db"} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), name)

			sink, err := table.Open(path, "AQO(RIDGE)")
			require.NoError(t, err)
			require.NoError(t, sink.Append(ctx, "1a.sql", first))
			require.NoError(t, sink.Close())

			sink, err = table.Open(path, "Postgres")
			if err == nil {
				err = sink.Append(ctx, "1a.sql", second)
				_ = sink.Close()
			}
			require.ErrorContains(t, err, `records estimator "AQO(RIDGE)", not "Postgres"`)

			loaded, err := table.Load(path)
			require.NoError(t, err)
			require.Equal(t, "AQO(RIDGE)", loaded.Label)
			require.Len(t, loaded.Rows, 2)
		})
	}
}

func TestLoadSampleCSVWithRunMarkers(t *testing.T) {
	loaded, err := table.Load(test.SamplePath(t, "aqo.csv"))
	require.NoError(t, err)
	require.Equal(t, "AQO(RIDGE)", loaded.Label)
	require.Len(t, loaded.Blocks(), 2)
	require.Equal(t, 1, loaded.Rows[0].Run)
	require.Equal(t, 2, loaded.Rows[len(loaded.Rows)-1].Run)
}

func TestLoadSampleCSV(t *testing.T) {
	loaded, err := table.Load(test.SamplePath(t, "baseline.csv"))
	require.NoError(t, err)
	require.Equal(t, "Postgres", loaded.Label)
	require.Len(t, loaded.Blocks(), 2)
	require.Equal(t, 1800.0, loaded.ByFile("2a.sql")[0].Actual)
}

func TestLoadCSVErrors(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err := table.Load(empty)
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte(",X,Actual\n1a.sql,ten,12\n"), 0o644))
	_, err = table.Load(bad)
	require.ErrorContains(t, err, "line 2")

	short := filepath.Join(dir, "short.csv")
	require.NoError(t, os.WriteFile(short, []byte(",X,Actual\n# 1a.sql\n1a.sql,12\n"), 0o644))
	_, err = table.Load(short)
	require.ErrorContains(t, err, "line 3")

	_, err = table.Load(filepath.Join(dir, "missing.csv"))
	require.Error(t, err)

	_, err = table.Open(" ", "X")
	require.Error(t, err)
}
