package html_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mickamy/cardscope/internal/render/html"
	"github.com/mickamy/cardscope/internal/table"
	"github.com/mickamy/cardscope/test"
)

func TestRenderSampleHTML(t *testing.T) {
	loaded, err := table.Load(test.SamplePath(t, "aqo.csv"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, html.Render(&buf, loaded, html.Options{Title: "test", IncludeStyles: true, ChartDir: "img"}))

	out := buf.String()
	require.Contains(t, out, "<title>test</title>")
	require.Contains(t, out, "Estimator AQO(RIDGE)")
	require.Contains(t, out, `id="1a-sql-b0-2"`)
	require.Contains(t, out, `src="img/2a.sql.png"`)
	require.Contains(t, out, `alt="img/2a.sql(log).png"`)
}

func TestRenderRepeatedBlocksHaveDistinctAnchors(t *testing.T) {
	loaded := &table.Table{Label: "AQO(RIDGE)", Rows: []table.Row{
		{File: "1a.sql", Run: 1, Estimated: 10, Actual: 12},
		{File: "1a.sql", Run: 2, Estimated: 11, Actual: 12},
	}}

	var buf bytes.Buffer
	require.NoError(t, html.Render(&buf, loaded, html.Options{Title: "runs"}))

	out := buf.String()
	require.Equal(t, 1, strings.Count(out, `id="1a-sql-b0-0"`))
	require.Equal(t, 1, strings.Count(out, `id="1a-sql-b1-0"`))
}

func TestRenderEmptyHTML(t *testing.T) {
	require.Error(t, html.Render(&bytes.Buffer{}, &table.Table{}, html.Options{}))
}
