package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/mickamy/cardscope/internal/config"
	"github.com/mickamy/cardscope/internal/diff"
	"github.com/mickamy/cardscope/internal/experiment"
	"github.com/mickamy/cardscope/internal/extract"
	"github.com/mickamy/cardscope/internal/loader"
	"github.com/mickamy/cardscope/internal/logging"
	"github.com/mickamy/cardscope/internal/render/html"
	"github.com/mickamy/cardscope/internal/render/tui"
	"github.com/mickamy/cardscope/internal/runner"
	"github.com/mickamy/cardscope/internal/table"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "collect":
		err = collectCommand(args)
	case "chart":
		err = chartCommand(args)
	case "report":
		err = reportCommand(args)
	case "diff":
		err = diffCommand(args)
	case "version":
		err = versionCommand(args)
	case "help", "-h", "--help":
		usage()
		return
	default:
		_, _ = fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`cardscope - cardinality estimation experiments for PostgreSQL AQO

Usage:
  cardscope <command> [options] [query files...]

Commands:
  collect  Train AQO on each query, then append controlled-mode node estimates to a result table
  chart    Run each query once and draw estimated vs actual rows per node (linear and log)
  report   Render a result table (TUI or HTML)
  diff     Compare two result tables and emit a Markdown summary
  version  Show CLI version information

Query files default to every file in --dir, sorted by name.
Use "cardscope <command> -h" for command-specific help.`)
}

func applyConfigPath(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("CARDSCOPE_CONFIG"))
	}
	return config.Apply(path)
}

// batchFlags are shared by the commands that talk to the database.
type batchFlags struct {
	url        *string
	dir        *string
	descent    *string
	timeout    *time.Duration
	logLevel   *string
	configPath *string
}

func registerBatchFlags(fs *flag.FlagSet) batchFlags {
	return batchFlags{
		url:        fs.String("url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string; defaults to $DATABASE_URL, then the config dsn"),
		dir:        fs.String("dir", "", "Directory holding the query files (default from config)"),
		descent:    fs.String("descent", "", "Plan descent policy: leftmost or largest-actual (default from config)"),
		timeout:    fs.Duration("timeout", 0, "Optional per-statement timeout, e.g. 45s"),
		logLevel:   fs.String("log-level", "info", "Log level: debug, info, warn or error"),
		configPath: fs.String("config", "", "Path to configuration file (JSON or YAML). Falls back to $CARDSCOPE_CONFIG"),
	}
}

// batch is the resolved state of a database-backed command.
type batch struct {
	exec   *runner.Executor
	deps   experiment.Deps
	files  []loader.QueryFile
	logger log.Logger
}

func openBatch(ctx context.Context, bf batchFlags, names []string) (*batch, error) {
	if err := applyConfigPath(*bf.configPath); err != nil {
		return nil, err
	}
	cfg := config.Active().Experiment

	logger, err := logging.New(os.Stderr, *bf.logLevel)
	if err != nil {
		return nil, err
	}

	descentName := *bf.descent
	if descentName == "" {
		descentName = cfg.Descent
	}
	descent, err := extract.ParseDescent(descentName)
	if err != nil {
		return nil, err
	}

	dir := strings.TrimSpace(*bf.dir)
	if dir == "" {
		dir = cfg.QueryDir
	}
	files, err := loader.List(dir, names)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no query files in %s", dir)
	}

	dsn := strings.TrimSpace(*bf.url)
	if dsn == "" {
		dsn = cfg.DSN
	}
	exec, err := runner.Open(ctx, dsn, runner.Options{Timeout: *bf.timeout})
	if err != nil {
		return nil, err
	}
	_ = level.Info(logger).Log("msg", "connected", "files", len(files), "dir", dir, "descent", descent.Name())

	return &batch{
		exec: exec,
		deps: experiment.Deps{
			Exec: exec,
			Protocol: runner.Protocol{
				TrainingRuns:   cfg.TrainingRuns,
				Setting:        cfg.ModeSetting,
				LearnMode:      cfg.LearnMode,
				ControlledMode: cfg.ControlledMode,
			},
			Descent: descent,
			Logger:  logger,
		},
		files:  files,
		logger: logger,
	}, nil
}

func (b *batch) close(ctx context.Context) {
	if err := b.exec.Close(ctx); err != nil {
		_ = level.Warn(b.logger).Log("msg", "close connection", "err", err)
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.SetOutput(os.Stdout)
			fs.Usage()
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func collectCommand(args []string) error {
	fs := flag.NewFlagSet("collect", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "Usage: cardscope collect [--url <url>] [--dir queries] [--out data.csv] [--remove] [files...]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	bf := registerBatchFlags(fs)
	var (
		outPath = fs.String("out", "data.csv", "Result table; .csv appends rows, .db/.sqlite stores them in SQLite")
		label   = fs.String("label", "", "Estimator column name (default from config)")
		remove  = fs.Bool("remove", false, "Delete each query file after its rows are stored")
	)

	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	ctx := context.Background()
	b, err := openBatch(ctx, bf, fs.Args())
	if err != nil {
		return err
	}
	defer b.close(ctx)

	column := strings.TrimSpace(*label)
	if column == "" {
		column = config.Active().Experiment.Label
	}
	sink, err := table.Open(*outPath, column)
	if err != nil {
		return err
	}
	defer func() {
		_ = sink.Close()
	}()

	results, err := experiment.Collect(ctx, b.deps, b.files, experiment.CollectOptions{Sink: sink, Remove: *remove})
	if err != nil {
		return err
	}
	_ = level.Info(b.logger).Log("msg", "collect finished", "queries", len(results), "out", *outPath)
	return nil
}

func chartCommand(args []string) error {
	fs := flag.NewFlagSet("chart", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "Usage: cardscope chart [--url <url>] [--dir queries] [--out-dir charts] [files...]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	bf := registerBatchFlags(fs)
	outDir := fs.String("out-dir", "charts", "Directory receiving <file>.png and <file>(log).png")

	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	ctx := context.Background()
	b, err := openBatch(ctx, bf, fs.Args())
	if err != nil {
		return err
	}
	defer b.close(ctx)

	results, err := experiment.Chart(ctx, b.deps, b.files, experiment.ChartOptions{OutDir: *outDir})
	if err != nil {
		return err
	}
	_ = level.Info(b.logger).Log("msg", "chart finished", "queries", len(results), "out_dir", *outDir)
	return nil
}

func reportCommand(args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "Usage: cardscope report --input data.csv [--mode tui|html] [--out file]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	var (
		input      = fs.String("input", "", "Result table (.csv or .db)")
		output     = fs.String("out", "", "Output path (stdout if omitted)")
		mode       = fs.String("mode", "tui", "Output mode: tui or html")
		title      = fs.String("title", "cardscope report", "Report title (HTML)")
		charts     = fs.String("charts", "", "Chart directory to embed images from (HTML)")
		color      = fs.Bool("color", true, "Enable ANSI colors for TUI output")
		maxNodes   = fs.Int("max-nodes", 0, "Limit nodes listed per query (TUI)")
		warnings   = fs.Bool("warnings", true, "Show insights (TUI)")
		includeCSS = fs.Bool("css", true, "Include inline styles (HTML)")
		configPath = fs.String("config", "", "Path to configuration file (JSON or YAML). Falls back to $CARDSCOPE_CONFIG")
	)

	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	if err := applyConfigPath(*configPath); err != nil {
		return err
	}
	if *input == "" {
		return fmt.Errorf("--input is required")
	}

	loaded, err := table.Load(*input)
	if err != nil {
		return err
	}

	target := io.Writer(os.Stdout)
	if *output != "" {
		file, err := os.Create(*output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer func() {
			_ = file.Close()
		}()
		target = file
	}

	switch *mode {
	case "tui":
		return tui.Render(target, loaded, tui.Options{
			EnableColor:  *color,
			MaxNodes:     *maxNodes,
			ShowWarnings: *warnings,
		})
	case "html":
		return html.Render(target, loaded, html.Options{
			Title:         *title,
			IncludeStyles: *includeCSS,
			ChartDir:      *charts,
		})
	default:
		return fmt.Errorf("unknown mode %q (expected tui or html)", *mode)
	}
}

func diffCommand(args []string) error {
	fs := flag.NewFlagSet("diff", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(os.Stdout, "Usage: cardscope diff --base base.csv --target target.csv [--format md|json]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	var (
		basePath   = fs.String("base", "", "Baseline result table")
		targetPath = fs.String("target", "", "Target result table")
		format     = fs.String("format", "md", "Output format (md or json)")
		output     = fs.String("out", "", "Output path (stdout if omitted)")
		minDelta   = fs.Float64("min-delta", 0, "Minimum mean q-error change to report (default from config)")
		maxItems   = fs.Int("limit", 0, "Maximum rows per section (default from config)")
		configPath = fs.String("config", "", "Path to configuration file (JSON or YAML). Falls back to $CARDSCOPE_CONFIG")
	)

	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	if err := applyConfigPath(*configPath); err != nil {
		return err
	}
	if *basePath == "" || *targetPath == "" {
		return fmt.Errorf("--base and --target are required")
	}

	base, err := table.Load(*basePath)
	if err != nil {
		return fmt.Errorf("load base: %w", err)
	}
	target, err := table.Load(*targetPath)
	if err != nil {
		return fmt.Errorf("load target: %w", err)
	}

	report, err := diff.Compare(base, target, diff.Options{
		MinQErrorDelta: *minDelta,
		MaxItems:       *maxItems,
	})
	if err != nil {
		return err
	}

	switch *format {
	case "md", "markdown":
		content := report.Markdown()
		if *output == "" {
			fmt.Print(content)
			return nil
		}
		return os.WriteFile(*output, []byte(content), 0o644)
	case "json":
		payload, err := report.JSON()
		if err != nil {
			return err
		}
		if *output == "" {
			_, _ = os.Stdout.Write(payload)
			_, _ = os.Stdout.WriteString("\n")
			return nil
		}
		return os.WriteFile(*output, payload, 0o644)
	default:
		return fmt.Errorf("unsupported format %q", *format)
	}
}

func versionCommand(args []string) error {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	short := fs.Bool("short", false, "Print only the version number")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.SetOutput(os.Stdout)
			fs.Usage()
			return nil
		}
		return err
	}

	v, meta := resolveVersion()
	if *short {
		fmt.Println(v)
		return nil
	}
	if meta != "" {
		fmt.Printf("cardscope %s (%s)\n", v, meta)
	} else {
		fmt.Printf("cardscope %s\n", v)
	}
	return nil
}

func resolveVersion() (string, string) {
	v := strings.TrimSpace(version)
	if v == "" {
		v = "dev"
	}

	var commit, buildTime string
	var dirty bool
	if info, ok := debug.ReadBuildInfo(); ok {
		if (v == "dev" || v == "(devel)") &&
			info.Main.Version != "" &&
			info.Main.Version != "(devel)" &&
			!strings.HasPrefix(info.Main.Version, "v0.0.0-") {
			v = info.Main.Version
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				commit = setting.Value
			case "vcs.time":
				buildTime = setting.Value
			case "vcs.modified":
				dirty = setting.Value == "true"
			}
		}
	}

	var details []string
	if commit != "" {
		short := commit
		if len(short) > 12 {
			short = short[:12]
		}
		if dirty {
			short += "*"
			dirty = false
		}
		details = append(details, fmt.Sprintf("commit %s", short))
	}
	if buildTime != "" {
		details = append(details, fmt.Sprintf("built %s", buildTime))
	}
	if dirty {
		details = append(details, "modified workspace")
	}

	return v, strings.Join(details, ", ")
}
