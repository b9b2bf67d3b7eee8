// Package chart renders grouped bar charts of estimated and actual row counts per plan node.
package chart

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"

	"github.com/mickamy/cardscope/internal/model"
)

// Scale selects how bar heights are derived from row counts.
type Scale int

const (
	Linear Scale = iota
	// Log uses the natural logarithm.
	Log
)

func (s Scale) String() string {
	if s == Log {
		return "log"
	}
	return "linear"
}

// Options controls image geometry.
type Options struct {
	Width    vg.Length
	Height   vg.Length
	BarWidth vg.Length
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 6.4 * vg.Inch
	}
	if o.Height <= 0 {
		o.Height = 4.8 * vg.Inch
	}
	if o.BarWidth <= 0 {
		o.BarWidth = vg.Points(14)
	}
	return o
}

// Values returns the bar heights for the actual and planned series. In log scale non-positive
// counts are drawn as 0 since their logarithm is undefined.
func Values(nodes []model.Metric, scale Scale) (actual, planned []float64) {
	actual = make([]float64, 0, len(nodes))
	planned = make([]float64, 0, len(nodes))
	for _, n := range nodes {
		actual = append(actual, scaled(n.Actual, scale))
		planned = append(planned, scaled(n.Estimated, scale))
	}
	return actual, planned
}

func scaled(v float64, scale Scale) float64 {
	if scale != Log {
		return v
	}
	if v <= 0 {
		return 0
	}
	return math.Log(v)
}

// Path returns the image path for file in dir: "<file>.png" or "<file>(log).png".
func Path(dir, file string, scale Scale) string {
	if scale == Log {
		return filepath.Join(dir, file+"(log).png")
	}
	return filepath.Join(dir, file+".png")
}

// Render writes the log and linear charts of one query into dir and returns their paths.
func Render(dir, file string, nodes []model.Metric, opts Options) ([]string, error) {
	if len(nodes) == 0 {
		return nil, errors.New("chart: no node metrics")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("chart: create %s: %w", dir, err)
	}
	opts = opts.withDefaults()

	var paths []string
	for _, scale := range []Scale{Log, Linear} {
		p, err := Build(nodes, scale, opts)
		if err != nil {
			return nil, err
		}
		path := Path(dir, file, scale)
		if err := p.Save(opts.Width, opts.Height, path); err != nil {
			return nil, fmt.Errorf("chart: save %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Build assembles the plot for one scale without writing it.
func Build(nodes []model.Metric, scale Scale, opts Options) (*plot.Plot, error) {
	opts = opts.withDefaults()
	actual, planned := Values(nodes, scale)

	p := plot.New()
	p.Title.Text = "Cardinality estimation on nodes"
	if scale == Log {
		p.Title.Text += "(log)"
	}
	p.Y.Label.Text = "Cardinality"

	w := opts.BarWidth
	actualBars, plannedBars, err := Bars(nodes, scale, opts)
	if err != nil {
		return nil, err
	}

	actualLabels, err := barLabels(actual, -w/2)
	if err != nil {
		return nil, err
	}
	plannedLabels, err := barLabels(planned, w/2)
	if err != nil {
		return nil, err
	}

	p.Add(actualBars, plannedBars, actualLabels, plannedLabels)
	p.Legend.Add("actual_rows", actualBars)
	p.Legend.Add("plan_rows", plannedBars)
	p.Legend.Top = true

	ticks := make([]string, len(nodes))
	for i := range ticks {
		ticks[i] = strconv.Itoa(i)
	}
	p.NominalX(ticks...)
	return p, nil
}

// Bars returns the actual_rows and plan_rows series, offset to either side of each node index.
func Bars(nodes []model.Metric, scale Scale, opts Options) (actual, planned *plotter.BarChart, err error) {
	opts = opts.withDefaults()
	w := opts.BarWidth
	actualValues, plannedValues := Values(nodes, scale)

	actual, err = plotter.NewBarChart(plotter.Values(actualValues), w)
	if err != nil {
		return nil, nil, fmt.Errorf("chart: actual bars: %w", err)
	}
	actual.LineStyle.Width = vg.Length(0)
	actual.Color = plotutil.Color(0)
	actual.Offset = -w / 2

	planned, err = plotter.NewBarChart(plotter.Values(plannedValues), w)
	if err != nil {
		return nil, nil, fmt.Errorf("chart: planned bars: %w", err)
	}
	planned.LineStyle.Width = vg.Length(0)
	planned.Color = plotutil.Color(1)
	planned.Offset = w / 2
	return actual, planned, nil
}

// barLabels places each value, rounded to two decimals, just above its bar.
func barLabels(values []float64, dx vg.Length) (*plotter.Labels, error) {
	xys := make(plotter.XYs, len(values))
	strs := make([]string, len(values))
	for i, v := range values {
		xys[i] = plotter.XY{X: float64(i), Y: v}
		strs[i] = Round(v)
	}
	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: strs})
	if err != nil {
		return nil, fmt.Errorf("chart: labels: %w", err)
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].XAlign = text.XCenter
	}
	labels.Offset = vg.Point{X: dx, Y: vg.Points(3)}
	return labels, nil
}

// Round formats v with at most two decimals, dropping trailing zeros.
func Round(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
