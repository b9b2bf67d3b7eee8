package insight_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mickamy/cardscope/internal/config"
	"github.com/mickamy/cardscope/internal/insight"
	"github.com/mickamy/cardscope/internal/model"
)

func TestBuildMessages(t *testing.T) {
	config.Use(config.Default())
	t.Cleanup(func() { config.Use(config.Default()) })

	nodes := []model.Metric{
		{Estimated: 10, Actual: 12},
		{Estimated: 3, Actual: 500, NodeType: "Seq Scan", Relation: "title"},
	}
	msgs := insight.BuildMessages("1a.sql", 0, nodes)
	require.Len(t, msgs, 2)
	require.Equal(t, insight.SeverityCritical, msgs[0].Severity)
	require.Contains(t, msgs[0].Text, "#1 Seq Scan title expected 3 got 500")
	require.Equal(t, "1a-sql-b0-1", msgs[0].Anchor)
	require.Equal(t, "All 2 nodes underestimated", msgs[1].Text)
}

func TestBuildMessagesAccurate(t *testing.T) {
	msgs := insight.BuildMessages("x.sql", 0, []model.Metric{{Estimated: 5, Actual: 5}, {Estimated: 7, Actual: 7}})
	require.Empty(t, msgs)
	require.Nil(t, insight.BuildMessages("x.sql", 0, nil))
}

func TestZeroRowsMessage(t *testing.T) {
	msgs := insight.BuildMessages("x.sql", 0, []model.Metric{{Estimated: 5, Actual: 5}, {Estimated: 40, Actual: 0}})
	var texts []string
	for _, m := range msgs {
		texts = append(texts, m.Text)
	}
	require.Contains(t, texts, "#1 returned no rows but 40 were expected")
}

func TestSeverityThresholds(t *testing.T) {
	t.Cleanup(func() { config.Use(config.Default()) })
	cfg := config.Default()
	cfg.Insights.QErrorWarning = 2
	config.Use(cfg)

	require.Equal(t, insight.SeverityInfo, insight.SeverityFor(1.5))
	require.Equal(t, insight.SeverityWarning, insight.SeverityFor(2))
	require.Equal(t, insight.SeverityCritical, insight.SeverityFor(math.Inf(1)))
	require.Equal(t, "q ∞", insight.FormatQError(math.Inf(1)))
	require.Equal(t, "q 2.50", insight.FormatQError(2.5))
}

func TestRootMessage(t *testing.T) {
	config.Use(config.Default())
	t.Cleanup(func() { config.Use(config.Default()) })

	msg, ok := insight.RootMessage("1a.sql", model.Metric{Estimated: 2, Actual: 500})
	require.True(t, ok)
	require.Equal(t, insight.SeverityCritical, msg.Severity)
	require.Equal(t, "Root misestimate: 1a.sql expected 2 got 500 (q 250.00)", msg.Text)

	msg, ok = insight.RootMessage("1a.sql", model.Metric{Estimated: 40, Actual: 0})
	require.True(t, ok)
	require.Contains(t, msg.Text, "q ∞")

	_, ok = insight.RootMessage("1a.sql", model.Metric{Estimated: 100, Actual: 90})
	require.False(t, ok)
}

func TestAnchorIDUnique(t *testing.T) {
	require.Equal(t, "1a-sql-b0-2", insight.AnchorID("1a.sql", 0, 2))
	require.NotEqual(t, insight.AnchorID("1a.sql", 0, 2), insight.AnchorID("1a.sql", 1, 2))
	require.NotEqual(t, insight.AnchorID("1a.sql", 0, 1), insight.AnchorID("1a-sql", 1, 1))
}
