package logging_test

import (
	"bytes"
	"testing"

	"github.com/go-kit/log/level"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/cardscope/internal/logging"
)

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(&buf, "warn")
	require.NoError(t, err)

	_ = level.Info(logger).Log("msg", "hidden")
	_ = level.Warn(logger).Log("msg", "shown", "file", "1a.sql")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "level=warn")
	require.Contains(t, out, "msg=shown")
	require.Contains(t, out, "file=1a.sql")
}

func TestUnknownLevel(t *testing.T) {
	_, err := logging.New(&bytes.Buffer{}, "verbose")
	require.Error(t, err)
}
