package html

import (
	"fmt"
	"html/template"
	"io"
	"math"

	"github.com/mickamy/cardscope/internal/chart"
	"github.com/mickamy/cardscope/internal/extract"
	"github.com/mickamy/cardscope/internal/insight"
	"github.com/mickamy/cardscope/internal/model"
	"github.com/mickamy/cardscope/internal/table"
)

// Options configures the HTML renderer.
type Options struct {
	Title         string
	IncludeStyles bool
	// ChartDir, when set, embeds the chart images written by the chart command.
	ChartDir string
}

// Render writes an HTML report of a result table with one card per recorded block.
func Render(w io.Writer, t *table.Table, opts Options) error {
	if t == nil || len(t.Rows) == 0 {
		return fmt.Errorf("html render: empty table")
	}
	if opts.Title == "" {
		opts.Title = "cardscope report"
	}
	tpl, err := template.New("report").Parse(reportTemplate)
	if err != nil {
		return fmt.Errorf("html render: compile template: %w", err)
	}
	if err := tpl.Execute(w, buildTemplateData(t, opts)); err != nil {
		return fmt.Errorf("html render: execute template: %w", err)
	}
	return nil
}

type templateData struct {
	Title         string
	IncludeStyles bool
	Summary       summaryView
	Insights      []insightView
	Blocks        []blockView
}

type summaryView struct {
	Label      string
	Files      int
	Rows       int
	MeanQError string
}

type insightView struct {
	Icon     string
	Severity string
	Text     string
	Anchor   string
}

type blockView struct {
	File       string
	MeanQError string
	Nodes      []nodeView
	Charts     []string
}

type nodeView struct {
	Label     string
	Anchor    string
	Estimated string
	Actual    string
	QError    string
	Severity  string
	BarWidth  float64
}

func buildTemplateData(t *table.Table, opts Options) templateData {
	blocks := t.Blocks()

	var insights []insightView
	views := make([]blockView, 0, len(blocks))
	for bi, block := range blocks {
		for _, msg := range insight.BuildMessages(block.File, bi, block.Nodes) {
			insights = append(insights, insightView{
				Icon:     severityIcon(msg.Severity),
				Severity: string(msg.Severity),
				Text:     block.File + ": " + msg.Text,
				Anchor:   msg.Anchor,
			})
		}
		views = append(views, buildBlockView(bi, block, opts))
	}

	return templateData{
		Title:         opts.Title,
		IncludeStyles: opts.IncludeStyles,
		Summary: summaryView{
			Label:      t.Label,
			Files:      len(t.Files()),
			Rows:       len(t.Rows),
			MeanQError: formatMean(t.Metrics()),
		},
		Insights: insights,
		Blocks:   views,
	}
}

func buildBlockView(bi int, block table.Block, opts Options) blockView {
	view := blockView{File: block.File, MeanQError: formatMean(block.Nodes)}
	for i, node := range block.Nodes {
		q := extract.QError(node)
		ratio := 1.0
		if !math.IsInf(q, 1) {
			ratio = math.Min(math.Log10(math.Max(q, 1))/3, 1)
		}
		view.Nodes = append(view.Nodes, nodeView{
			Label:     insight.NodeLabel(i, node),
			Anchor:    insight.AnchorID(block.File, bi, i),
			Estimated: fmt.Sprintf("%.0f", node.Estimated),
			Actual:    fmt.Sprintf("%.0f", node.Actual),
			QError:    insight.FormatQError(q),
			Severity:  string(insight.SeverityFor(q)),
			BarWidth:  ratio * 100,
		})
	}
	if opts.ChartDir != "" {
		view.Charts = []string{
			chart.Path(opts.ChartDir, block.File, chart.Linear),
			chart.Path(opts.ChartDir, block.File, chart.Log),
		}
	}
	return view
}

func formatMean(nodes []model.Metric) string {
	mean, ok := extract.MeanQError(nodes)
	if !ok {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", mean)
}

func severityIcon(sev insight.Severity) string {
	switch sev {
	case insight.SeverityCritical:
		return "🔥"
	case insight.SeverityWarning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}

const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8">
	<title>{{.Title}}</title>
	{{- if .IncludeStyles }}
	<style>
		body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Helvetica, Arial, sans-serif; margin: 0; padding: 0; background: #f7f7f8; color: #202124; }
		main { max-width: 960px; margin: 0 auto; padding: 32px 24px 48px; }
		header { background: #212a3b; color: #f7f7f8; padding: 32px 24px; }
		header h1 { margin: 0 0 8px; font-size: 28px; }
		header p { margin: 4px 0; opacity: 0.8; }
		section { margin-top: 32px; }
		section h2 { margin-bottom: 12px; font-size: 20px; }
		.file-card { background: #fff; border-radius: 12px; padding: 16px 18px; margin-bottom: 16px; box-shadow: 0 8px 20px rgba(16,37,58,0.12); }
		.file-card h3 { margin: 0 0 8px; font-size: 16px; color: #253043; }
		.file-card table { width: 100%; border-collapse: collapse; font-size: 14px; }
		.file-card td, .file-card th { padding: 6px 8px; border-bottom: 1px solid rgba(91,112,131,0.16); text-align: right; }
		.file-card td:first-child, .file-card th:first-child { text-align: left; }
		.bar { background: rgba(33,42,59,0.08); border-radius: 999px; height: 8px; overflow: hidden; min-width: 120px; }
		.bar span { display: block; height: 100%; background: linear-gradient(90deg, #faae32 0%, #f44747 100%); width: calc(var(--width) * 1%); }
		.charts img { max-width: 48%; margin-top: 12px; }
		.insight-list { list-style: none; margin: 0; padding: 0; display: flex; flex-direction: column; gap: 10px; }
		.insight-list li { background: #fff; border-radius: 12px; padding: 14px 16px; font-size: 14px; display: flex; gap: 10px; }
		.insight-list li.severity-critical { border-left: 4px solid #f44747; }
		.insight-list li.severity-warning { border-left: 4px solid #faae32; }
		.insight-list li.severity-info { border-left: 4px solid rgba(33,42,59,0.15); }
		tr.severity-critical td { color: #b21f1f; }
		tr.severity-warning td { color: #b25600; }
	</style>
	{{- end }}
</head>
<body>
	<header>
		<h1>{{.Title}}</h1>
		<p>Estimator {{.Summary.Label}} · Files {{.Summary.Files}} · Rows {{.Summary.Rows}} · Mean q-error {{.Summary.MeanQError}}</p>
	</header>
	<main>
		{{- if .Insights }}
		<section>
			<h2>Insights</h2>
			<ul class="insight-list">
				{{- range .Insights }}
				<li class="severity-{{.Severity}}"><span class="icon">{{.Icon}}</span><a href="#{{.Anchor}}">{{.Text}}</a></li>
				{{- end }}
			</ul>
		</section>
		{{- end }}

		<section>
			<h2>Queries</h2>
			{{- range .Blocks }}
			<div class="file-card">
				<h3>{{.File}} · mean q-error {{.MeanQError}}</h3>
				<table>
					<tr><th>Node</th><th>Estimated</th><th>Actual</th><th>Q-error</th><th></th></tr>
					{{- range .Nodes }}
					<tr id="{{.Anchor}}" class="severity-{{.Severity}}">
						<td>{{.Label}}</td><td>{{.Estimated}}</td><td>{{.Actual}}</td><td>{{.QError}}</td>
						<td><div class="bar"><span style="--width: {{printf "%.2f" .BarWidth}};"></span></div></td>
					</tr>
					{{- end }}
				</table>
				{{- if .Charts }}
				<div class="charts">
					{{- range .Charts }}<img src="{{.}}" alt="{{.}}">{{- end }}
				</div>
				{{- end }}
			</div>
			{{- end }}
		</section>
	</main>
</body>
</html>
`
