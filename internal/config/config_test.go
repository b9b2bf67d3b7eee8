package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mickamy/cardscope/test"
)

func TestApplyDefaultAndFile(t *testing.T) {
	Use(Default())
	t.Cleanup(func() { Use(Default()) })

	require.Equal(t, 4, Active().Experiment.TrainingRuns)
	require.Equal(t, "aqo.mode", Active().Experiment.ModeSetting)

	require.NoError(t, Apply(test.SamplePath(t, "config.example.json")))

	cfg := Active()
	require.Equal(t, 2, cfg.Experiment.TrainingRuns)
	require.Equal(t, "AQO(NN)", cfg.Experiment.Label)
	require.Equal(t, "largest-actual", cfg.Experiment.Descent)
	require.Equal(t, "learn", cfg.Experiment.LearnMode, "unset keys keep defaults")
	require.Equal(t, 50.0, cfg.Insights.QErrorCritical)
	require.Equal(t, 12, cfg.Diff.MaxItems)

	require.NoError(t, Apply(""))
	require.Equal(t, Default(), Active())
}

func TestApplyYAML(t *testing.T) {
	t.Cleanup(func() { Use(Default()) })

	require.NoError(t, Apply(test.SamplePath(t, "config.example.yaml")))

	cfg := Active()
	require.Equal(t, 6, cfg.Experiment.TrainingRuns)
	require.Equal(t, "intelligent", cfg.Experiment.LearnMode)
	require.Equal(t, "controlled", cfg.Experiment.ControlledMode)
	require.Equal(t, 4.0, cfg.Insights.QErrorWarning)
	require.Equal(t, 100.0, cfg.Insights.QErrorCritical)
}

func TestApplyRejectsNegativeTraining(t *testing.T) {
	t.Cleanup(func() { Use(Default()) })

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"experiment": {"training_runs": -1}}`), 0o644))
	require.Error(t, Apply(path))
	require.Equal(t, 4, Active().Experiment.TrainingRuns)
}

func TestApplyMissingFile(t *testing.T) {
	require.Error(t, Apply(filepath.Join(os.TempDir(), "does-not-exist.json")))
}
