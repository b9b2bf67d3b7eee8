package diff

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/mickamy/cardscope/internal/config"
	"github.com/mickamy/cardscope/internal/extract"
	"github.com/mickamy/cardscope/internal/model"
	"github.com/mickamy/cardscope/internal/table"
)

// Options configures the diff sensitivity.
type Options struct {
	MinQErrorDelta float64
	MaxItems       int
}

// Report summarises how two estimators compare on the same queries.
type Report struct {
	Summary      Summary          `json:"summary"`
	Regressions  []Entry          `json:"regressions"`
	Improvements []Entry          `json:"improvements"`
	Unmatched    []string         `json:"unmatched,omitempty"`
	Insights     []insightMessage `json:"insights"`
	Options      Options          `json:"-"`
}

// Summary covers table-wide differences.
type Summary struct {
	BaseLabel        string  `json:"base_label"`
	TargetLabel      string  `json:"target_label"`
	Files            int     `json:"files"`
	BaseMeanQError   float64 `json:"base_mean_qerror"`
	TargetMeanQError float64 `json:"target_mean_qerror"`
	PercentChange    float64 `json:"percent_change"`
}

// Entry captures the delta for one query file.
type Entry struct {
	File          string  `json:"file"`
	Nodes         int     `json:"nodes"`
	BaseQError    float64 `json:"base_qerror"`
	TargetQError  float64 `json:"target_qerror"`
	DeltaQError   float64 `json:"delta_qerror"`
	PercentChange float64 `json:"percent_change"`
	WorstNode     int     `json:"worst_node"`
}

type insightMessage struct {
	Severity string `json:"severity"`
	Icon     string `json:"icon"`
	Message  string `json:"message"`
}

// Compare matches the latest block of every file present in both tables and compares their mean
// q-error node by node. Nodes are paired by position; extra nodes on either side are ignored.
func Compare(base, target *table.Table, opts Options) (*Report, error) {
	if base == nil || len(base.Rows) == 0 {
		return nil, fmt.Errorf("diff: base table missing")
	}
	if target == nil || len(target.Rows) == 0 {
		return nil, fmt.Errorf("diff: target table missing")
	}
	opts = applyDefaults(opts)

	targetBlocks := map[string]table.Block{}
	for _, b := range target.Latest() {
		targetBlocks[b.File] = b
	}

	var (
		regressions, improvements []Entry
		unmatched                 []string
		allBase, allTarget        []model.Metric
		files                     int
	)
	for _, b := range base.Latest() {
		t, ok := targetBlocks[b.File]
		if !ok {
			unmatched = append(unmatched, b.File)
			continue
		}
		delete(targetBlocks, b.File)

		n := min(len(b.Nodes), len(t.Nodes))
		entry, ok := buildEntry(b.File, b.Nodes[:n], t.Nodes[:n])
		if !ok {
			continue
		}
		files++
		allBase = append(allBase, b.Nodes[:n]...)
		allTarget = append(allTarget, t.Nodes[:n]...)

		switch {
		case entry.DeltaQError >= opts.MinQErrorDelta:
			regressions = append(regressions, entry)
		case entry.DeltaQError <= -opts.MinQErrorDelta:
			improvements = append(improvements, entry)
		}
	}
	for file := range targetBlocks {
		unmatched = append(unmatched, file)
	}
	sort.Strings(unmatched)

	sort.Slice(regressions, func(i, j int) bool {
		return regressions[i].DeltaQError > regressions[j].DeltaQError
	})
	sort.Slice(improvements, func(i, j int) bool {
		return improvements[i].DeltaQError < improvements[j].DeltaQError
	})
	if opts.MaxItems > 0 {
		if len(regressions) > opts.MaxItems {
			regressions = regressions[:opts.MaxItems]
		}
		if len(improvements) > opts.MaxItems {
			improvements = improvements[:opts.MaxItems]
		}
	}

	baseMean, _ := extract.MeanQError(allBase)
	targetMean, _ := extract.MeanQError(allTarget)
	report := &Report{
		Summary: Summary{
			BaseLabel:        base.Label,
			TargetLabel:      target.Label,
			Files:            files,
			BaseMeanQError:   baseMean,
			TargetMeanQError: targetMean,
			PercentChange:    percentChange(baseMean, targetMean),
		},
		Regressions:  regressions,
		Improvements: improvements,
		Unmatched:    unmatched,
		Options:      opts,
	}
	report.Insights = synthesizeInsights(report)
	return report, nil
}

// Markdown renders the report as a Markdown document.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("# cardscope diff\n\n")
	b.WriteString("## Summary\n")
	_, _ = fmt.Fprintf(&b, "- Estimators: %s → %s over %d files\n", r.Summary.BaseLabel, r.Summary.TargetLabel, r.Summary.Files)
	_, _ = fmt.Fprintf(&b, "- Mean q-error: %.2f → %.2f (%+.1f%%)\n", r.Summary.BaseMeanQError, r.Summary.TargetMeanQError, r.Summary.PercentChange)
	if len(r.Unmatched) > 0 {
		_, _ = fmt.Fprintf(&b, "- Only in one table: %s\n", strings.Join(r.Unmatched, ", "))
	}
	b.WriteString("\n### Insights\n")
	if len(r.Insights) == 0 {
		b.WriteString("- No notable estimate changes detected\n")
	} else {
		for _, insight := range r.Insights {
			_, _ = fmt.Fprintf(&b, "- %s %s\n", insight.Icon, insight.Message)
		}
	}

	writeSection(&b, "Regressions", r.Regressions)
	writeSection(&b, "Improvements", r.Improvements)
	return b.String()
}

func writeSection(b *strings.Builder, title string, entries []Entry) {
	_, _ = fmt.Fprintf(b, "\n### %s\n", title)
	if len(entries) == 0 {
		b.WriteString("- None above threshold\n")
		return
	}
	b.WriteString("| Query | Nodes | Base q-error | Target q-error | Δ | Δ % | Worst node |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|---:|\n")
	for _, e := range entries {
		_, _ = fmt.Fprintf(b, "| %s | %d | %.2f | %.2f | %+.2f | %+.1f%% | #%d |\n",
			e.File, e.Nodes, e.BaseQError, e.TargetQError, e.DeltaQError, e.PercentChange, e.WorstNode)
	}
}

// JSON marshals the diff report into an indented JSON document.
func (r *Report) JSON() ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("nil report")
	}
	type alias Report
	return json.MarshalIndent((*alias)(r), "", "  ")
}

func buildEntry(file string, base, target []model.Metric) (Entry, bool) {
	baseQ, okBase := extract.MeanQError(base)
	targetQ, okTarget := extract.MeanQError(target)
	if !okBase || !okTarget {
		return Entry{}, false
	}
	return Entry{
		File:          file,
		Nodes:         len(base),
		BaseQError:    baseQ,
		TargetQError:  targetQ,
		DeltaQError:   targetQ - baseQ,
		PercentChange: percentChange(baseQ, targetQ),
		WorstNode:     extract.Worst(target),
	}, true
}

func synthesizeInsights(r *Report) []insightMessage {
	const maxItems = 3
	var insights []insightMessage
	for i, e := range r.Regressions {
		if i >= maxItems {
			break
		}
		insights = append(insights, insightMessage{
			Severity: "warning",
			Icon:     "⚠️",
			Message:  fmt.Sprintf("%s q-error %.2f → %.2f", e.File, e.BaseQError, e.TargetQError),
		})
	}
	for i, e := range r.Improvements {
		if i >= maxItems {
			break
		}
		insights = append(insights, insightMessage{
			Severity: "improvement",
			Icon:     "✅",
			Message:  fmt.Sprintf("%s q-error %.2f → %.2f (%.1f%%)", e.File, e.BaseQError, e.TargetQError, e.PercentChange),
		})
	}
	return insights
}

func percentChange(base, target float64) float64 {
	const eps = 1e-9
	if math.Abs(base) <= eps {
		if math.Abs(target) <= eps {
			return 0
		}
		return 100
	}
	return (target - base) / base * 100
}

func applyDefaults(opts Options) Options {
	cfg := config.Active().Diff
	if opts.MinQErrorDelta <= 0 {
		opts.MinQErrorDelta = cfg.MinQErrorDelta
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = cfg.MaxItems
	}
	return opts
}
