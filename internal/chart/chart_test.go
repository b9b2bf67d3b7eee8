package chart_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mickamy/cardscope/internal/chart"
	"github.com/mickamy/cardscope/internal/model"
)

var nodes = []model.Metric{{Estimated: 1, Actual: 1}, {Estimated: 2, Actual: 4}}

func TestValuesLinearAndLog(t *testing.T) {
	actual, planned := chart.Values(nodes, chart.Linear)
	require.Equal(t, []float64{1, 4}, actual)
	require.Equal(t, []float64{1, 2}, planned)

	logActual, logPlanned := chart.Values(nodes, chart.Log)
	require.Len(t, logActual, 2)
	for i := range actual {
		require.InDelta(t, math.Log(actual[i]), logActual[i], 1e-12)
		require.InDelta(t, math.Log(planned[i]), logPlanned[i], 1e-12)
	}
}

func TestValuesLogClampsZero(t *testing.T) {
	actual, planned := chart.Values([]model.Metric{{Estimated: 0, Actual: math.E}}, chart.Log)
	require.Equal(t, []float64{0}, planned)
	require.InDelta(t, 1.0, actual[0], 1e-12)
}

func TestRound(t *testing.T) {
	require.Equal(t, "1.39", chart.Round(math.Log(4)))
	require.Equal(t, "4", chart.Round(4))
	require.Equal(t, "0.5", chart.Round(0.499999))
}

func TestPath(t *testing.T) {
	require.Equal(t, filepath.Join("out", "1a.sql(log).png"), chart.Path("out", "1a.sql", chart.Log))
	require.Equal(t, filepath.Join("out", "1a.sql.png"), chart.Path("out", "1a.sql", chart.Linear))
}

func TestBuildTwoGroupedBarPairs(t *testing.T) {
	for _, scale := range []chart.Scale{chart.Linear, chart.Log} {
		p, err := chart.Build(nodes, scale, chart.Options{})
		require.NoError(t, err)
		require.Equal(t, "Cardinality", p.Y.Label.Text)
		require.Equal(t, scale == chart.Log, p.Title.Text == "Cardinality estimation on nodes(log)")

		actual, planned, err := chart.Bars(nodes, scale, chart.Options{})
		require.NoError(t, err)
		wantActual, wantPlanned := chart.Values(nodes, scale)
		require.Equal(t, wantActual, []float64(actual.Values))
		require.Equal(t, wantPlanned, []float64(planned.Values))
		require.Equal(t, -actual.Offset, planned.Offset)
		require.Less(t, float64(actual.Offset), 0.0)
	}
}

func TestRenderWritesBothImages(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "charts")

	paths, err := chart.Render(dir, "1a.sql", nodes, chart.Options{})
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "1a.sql(log).png"),
		filepath.Join(dir, "1a.sql.png"),
	}, paths)
	for _, path := range paths {
		info, err := os.Stat(path)
		require.NoError(t, err)
		require.NotZero(t, info.Size())
	}
}

func TestRenderRejectsEmpty(t *testing.T) {
	_, err := chart.Render(t.TempDir(), "x.sql", nil, chart.Options{})
	require.Error(t, err)
}
