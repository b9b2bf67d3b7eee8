package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config holds the experiment protocol and reporting thresholds.
type Config struct {
	Experiment ExperimentConfig `json:"experiment" yaml:"experiment"`
	Insights   InsightConfig    `json:"insights" yaml:"insights"`
	Diff       DiffConfig       `json:"diff" yaml:"diff"`
}

// ExperimentConfig describes how queries are executed and labelled.
type ExperimentConfig struct {
	// TrainingRuns is the number of learn-mode executions before the measured one.
	TrainingRuns   int    `json:"training_runs" yaml:"training_runs"`
	ModeSetting    string `json:"mode_setting" yaml:"mode_setting"`
	LearnMode      string `json:"learn_mode" yaml:"learn_mode"`
	ControlledMode string `json:"controlled_mode" yaml:"controlled_mode"`
	// Label names the estimate column of the result table.
	Label   string `json:"label" yaml:"label"`
	Descent string `json:"descent" yaml:"descent"`
	// QueryDir is where query files are listed from when no directory flag is given.
	QueryDir string `json:"query_dir" yaml:"query_dir"`
	DSN      string `json:"dsn" yaml:"dsn"`
}

// InsightConfig defines q-error thresholds for report messages.
type InsightConfig struct {
	QErrorWarning  float64 `json:"qerror_warning" yaml:"qerror_warning"`
	QErrorCritical float64 `json:"qerror_critical" yaml:"qerror_critical"`
}

// DiffConfig defines thresholds for table comparisons.
type DiffConfig struct {
	MinQErrorDelta float64 `json:"min_qerror_delta" yaml:"min_qerror_delta"`
	MaxItems       int     `json:"max_items" yaml:"max_items"`
}

var (
	mu     sync.RWMutex
	active = Default()
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Experiment: ExperimentConfig{
			TrainingRuns:   4,
			ModeSetting:    "aqo.mode",
			LearnMode:      "learn",
			ControlledMode: "controlled",
			Label:          "AQO(RIDGE)",
			Descent:        "leftmost",
			QueryDir:       "queries",
			DSN:            "dbname=imdbload",
		},
		Insights: InsightConfig{
			QErrorWarning:  10,
			QErrorCritical: 100,
		},
		Diff: DiffConfig{
			MinQErrorDelta: 0.1,
			MaxItems:       8,
		},
	}
}

// Active returns the currently applied configuration.
func Active() Config {
	mu.RLock()
	defer mu.RUnlock()
	return active
}

// Use replaces the active configuration.
func Use(cfg Config) {
	mu.Lock()
	active = cfg
	mu.Unlock()
}

// Apply loads configuration from the provided path. Files ending in .yaml or .yml are read as
// YAML, anything else as JSON. Empty path resets to default.
func Apply(path string) error {
	if path == "" {
		Use(Default())
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if cfg.Experiment.TrainingRuns < 0 {
		return fmt.Errorf("parse config: training_runs must not be negative, got %d", cfg.Experiment.TrainingRuns)
	}
	Use(cfg)
	return nil
}
