package tui

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/mickamy/cardscope/internal/extract"
	"github.com/mickamy/cardscope/internal/insight"
	"github.com/mickamy/cardscope/internal/table"
)

// Options controls how the TUI renderer behaves.
type Options struct {
	EnableColor  bool
	MaxNodes     int
	ShowWarnings bool
	BarWidth     int
}

// Render prints every block of the result table as a node list with q-error bars.
func Render(w io.Writer, t *table.Table, opts Options) error {
	if w == nil {
		return errors.New("tui: writer is nil")
	}
	if t == nil || len(t.Rows) == 0 {
		return errors.New("tui: empty table")
	}
	if opts.BarWidth <= 0 {
		opts.BarWidth = 20
	}
	p := newPalette(w, opts.EnableColor)

	blocks := t.Blocks()
	mean, ok := extract.MeanQError(t.Metrics())
	summary := fmt.Sprintf("Estimator %s | files %d | blocks %d | rows %d", t.Label, len(t.Files()), len(blocks), len(t.Rows))
	if ok {
		summary += fmt.Sprintf(" | mean q-error %.2f", mean)
	}
	_, _ = fmt.Fprintf(w, "%s\n\n", summary)

	if opts.ShowWarnings {
		renderInsights(w, blocks, p)
	}

	for _, block := range blocks {
		header := fmt.Sprintf("%s (%d nodes", block.File, len(block.Nodes))
		if m, ok := extract.MeanQError(block.Nodes); ok {
			header += fmt.Sprintf(", mean q %.2f", m)
		}
		_, _ = fmt.Fprintf(w, "%s)\n", p.bold.Render(header))

		limit := len(block.Nodes)
		if opts.MaxNodes > 0 && opts.MaxNodes < limit {
			limit = opts.MaxNodes
		}
		for i := 0; i < limit; i++ {
			connector := "|-- "
			if i == limit-1 && limit == len(block.Nodes) {
				connector = "`-- "
			}
			_, _ = fmt.Fprintf(w, "%s%s\n", connector, renderLine(i, block, opts, p))
		}
		if limit < len(block.Nodes) {
			_, _ = fmt.Fprintf(w, "`-- ... (%d more nodes)\n", len(block.Nodes)-limit)
		}
		_, _ = fmt.Fprintln(w)
	}
	return nil
}

func renderLine(i int, block table.Block, opts Options, p palette) string {
	node := block.Nodes[i]
	q := extract.QError(node)

	bar := drawBar(qerrorRatio(q), opts.BarWidth)
	bar = p.forSeverity(insight.SeverityFor(q)).Render(bar)

	direction := "="
	switch {
	case node.Actual > node.Estimated:
		direction = "under"
	case node.Actual < node.Estimated:
		direction = "over"
	}

	parts := []string{
		fmt.Sprintf("#%-2d", i),
		fmt.Sprintf("est %s", humanize.Commaf(node.Estimated)),
		fmt.Sprintf("actual %s", humanize.Commaf(node.Actual)),
		insight.FormatQError(q),
		bar,
		direction,
	}
	return strings.Join(parts, " | ")
}

func renderInsights(w io.Writer, blocks []table.Block, p palette) {
	var lines []string
	for bi, block := range blocks {
		for _, msg := range insight.BuildMessages(block.File, bi, block.Nodes) {
			text := p.forSeverity(msg.Severity).Render(msg.Text)
			lines = append(lines, fmt.Sprintf("  - %s %s: %s", severityIcon(msg.Severity), block.File, text))
		}
	}
	if len(lines) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w, "Insights:")
	for _, line := range lines {
		_, _ = fmt.Fprintln(w, line)
	}
	_, _ = fmt.Fprintln(w)
}

// qerrorRatio maps a q-error onto [0,1] on a log10 scale saturating at 1000.
func qerrorRatio(q float64) float64 {
	if math.IsInf(q, 1) {
		return 1
	}
	if q <= 1 {
		return 0
	}
	return math.Min(math.Log10(q)/3, 1)
}

func drawBar(ratio float64, width int) string {
	if width <= 0 {
		return ""
	}
	clamped := math.Max(0, math.Min(ratio, 1))
	fill := int(math.Round(clamped * float64(width)))
	if clamped > 0 && fill == 0 {
		fill = 1
	}
	return strings.Repeat("#", fill) + strings.Repeat("-", width-fill)
}

type palette struct {
	bold     lipgloss.Style
	warning  lipgloss.Style
	critical lipgloss.Style
	plain    lipgloss.Style
}

func newPalette(w io.Writer, enable bool) palette {
	r := lipgloss.NewRenderer(w)
	plain := r.NewStyle()
	if !enable {
		return palette{bold: plain, warning: plain, critical: plain, plain: plain}
	}
	return palette{
		bold:     r.NewStyle().Bold(true),
		warning:  r.NewStyle().Foreground(lipgloss.Color("3")),
		critical: r.NewStyle().Foreground(lipgloss.Color("1")),
		plain:    plain,
	}
}

func (p palette) forSeverity(sev insight.Severity) lipgloss.Style {
	switch sev {
	case insight.SeverityCritical:
		return p.critical
	case insight.SeverityWarning:
		return p.warning
	default:
		return p.plain
	}
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
