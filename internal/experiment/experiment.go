// Package experiment runs the sequential batch pipelines: read a query file, execute it with
// EXPLAIN ANALYZE, extract node metrics, then persist or chart them. Any failure aborts the batch.
package experiment

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/mickamy/cardscope/internal/chart"
	"github.com/mickamy/cardscope/internal/extract"
	"github.com/mickamy/cardscope/internal/insight"
	"github.com/mickamy/cardscope/internal/loader"
	"github.com/mickamy/cardscope/internal/model"
	"github.com/mickamy/cardscope/internal/parser"
	"github.com/mickamy/cardscope/internal/runner"
	"github.com/mickamy/cardscope/internal/table"
)

// Executor runs a query under a training protocol and returns the EXPLAIN JSON of the measured run.
type Executor interface {
	Train(ctx context.Context, sqlStatement string, p runner.Protocol) ([]byte, error)
}

// Deps wires the collaborators of a batch.
type Deps struct {
	Exec     Executor
	Protocol runner.Protocol
	Descent  extract.Descent
	Logger   log.Logger
}

func (d Deps) logger() log.Logger {
	if d.Logger == nil {
		return log.NewNopLogger()
	}
	return d.Logger
}

// CollectOptions configures the table pipeline.
type CollectOptions struct {
	Sink table.Sink
	// Remove deletes each query file once its rows are persisted.
	Remove bool
}

// Collect trains and measures every file, appending each file's node metrics to the sink as soon
// as they are extracted.
func Collect(ctx context.Context, deps Deps, files []loader.QueryFile, opts CollectOptions) ([]model.QueryMetrics, error) {
	if opts.Sink == nil {
		return nil, fmt.Errorf("experiment: collect without sink")
	}
	logger := deps.logger()

	results := make([]model.QueryMetrics, 0, len(files))
	for _, f := range files {
		metrics, err := measure(ctx, deps, deps.Protocol, f)
		if err != nil {
			return results, err
		}
		if err := opts.Sink.Append(ctx, f.Name, metrics.Nodes); err != nil {
			return results, fmt.Errorf("%s: %w", f.Name, err)
		}
		if opts.Remove {
			if err := loader.Remove(f); err != nil {
				return results, err
			}
			_ = level.Debug(logger).Log("msg", "removed query file", "path", f.Path)
		}
		results = append(results, *metrics)
	}
	return results, nil
}

// ChartOptions configures the chart pipeline.
type ChartOptions struct {
	OutDir string
	Chart  chart.Options
}

// Chart measures every file once without training and, after the whole batch, renders a linear
// and a log chart per file.
func Chart(ctx context.Context, deps Deps, files []loader.QueryFile, opts ChartOptions) ([]model.QueryMetrics, error) {
	logger := deps.logger()
	direct := deps.Protocol
	direct.TrainingRuns = 0

	results := make([]model.QueryMetrics, 0, len(files))
	for _, f := range files {
		metrics, err := measure(ctx, deps, direct, f)
		if err != nil {
			return results, err
		}
		results = append(results, *metrics)
	}

	for _, r := range results {
		paths, err := chart.Render(opts.OutDir, r.File, r.Nodes, opts.Chart)
		if err != nil {
			return results, fmt.Errorf("%s: %w", r.File, err)
		}
		_ = level.Info(logger).Log("msg", "wrote charts", "file", r.File, "images", len(paths))
	}
	return results, nil
}

func measure(ctx context.Context, deps Deps, protocol runner.Protocol, f loader.QueryFile) (*model.QueryMetrics, error) {
	logger := deps.logger()
	_ = level.Info(logger).Log("msg", "Use file", "path", f.Path)

	sqlText, err := loader.Read(f)
	if err != nil {
		return nil, err
	}
	payload, err := deps.Exec.Train(ctx, sqlText, protocol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	plan, err := parser.ParseJSON(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	metrics, err := extract.Extract(plan, deps.Descent)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	metrics.File = f.Name

	_ = level.Info(logger).Log("msg", "extracted", "file", f.Name, "nodes", len(metrics.Nodes),
		"root_estimate", metrics.Whole.Estimated, "root_actual", metrics.Whole.Actual,
		"root_qerror", insight.FormatQError(extract.QError(metrics.Whole)))
	if msg, ok := insight.RootMessage(f.Name, metrics.Whole); ok {
		_ = level.Warn(logger).Log("msg", msg.Text, "severity", msg.Severity)
	}
	return metrics, nil
}
