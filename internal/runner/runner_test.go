package runner_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/cardscope/internal/runner"
)

type fakeRow struct {
	payload []byte
	err     error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*[]byte)) = r.payload
	return nil
}

type fakeConn struct {
	log     []string
	failOn  string
	payload []byte
	closed  bool
}

func (c *fakeConn) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	entry := sql
	for _, a := range args {
		entry += " " + a.(string)
	}
	c.log = append(c.log, entry)
	if c.failOn != "" && c.failOn == entry {
		return pgconn.CommandTag{}, errors.New("boom")
	}
	return pgconn.NewCommandTag("SELECT 1"), nil
}

func (c *fakeConn) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	c.log = append(c.log, sql)
	if c.failOn != "" && c.failOn == sql {
		return fakeRow{err: errors.New("boom")}
	}
	return fakeRow{payload: c.payload}
}

func (c *fakeConn) Close(context.Context) error {
	c.closed = true
	return nil
}

func TestExplainPrefixesQuery(t *testing.T) {
	conn := &fakeConn{payload: []byte(`[{"Plan":{}}]`)}
	exec := runner.New(conn, runner.Options{})

	got, err := exec.Explain(context.Background(), "  SELECT 1;\n")
	require.NoError(t, err)
	require.Equal(t, `[{"Plan":{}}]`, string(got))
	require.Equal(t, []string{"EXPLAIN (ANALYZE ON, VERBOSE ON, FORMAT JSON) SELECT 1"}, conn.log)

	require.NoError(t, exec.Close(context.Background()))
	require.True(t, conn.closed)
}

func TestExplainRejectsEmptyStatement(t *testing.T) {
	exec := runner.New(&fakeConn{}, runner.Options{})
	_, err := exec.Explain(context.Background(), " ; ")
	require.Error(t, err)
}

func TestTrainRunsProtocolInOrder(t *testing.T) {
	conn := &fakeConn{payload: []byte(`[]`)}
	exec := runner.New(conn, runner.Options{})

	_, err := exec.Train(context.Background(), "SELECT 1", runner.Protocol{
		TrainingRuns:   4,
		Setting:        "aqo.mode",
		LearnMode:      "learn",
		ControlledMode: "controlled",
	})
	require.NoError(t, err)

	learn := "SELECT set_config($1, $2, false) aqo.mode learn"
	explain := runner.ExplainPrefix + "SELECT 1"
	want := []string{
		learn, explain,
		learn, explain,
		learn, explain,
		learn, explain,
		"SELECT set_config($1, $2, false) aqo.mode controlled", explain,
	}
	require.Equal(t, want, conn.log)
}

func TestTrainWithoutRunsExplainsOnce(t *testing.T) {
	conn := &fakeConn{payload: []byte(`[]`)}
	exec := runner.New(conn, runner.Options{})

	_, err := exec.Train(context.Background(), "SELECT 1", runner.Protocol{Setting: "aqo.mode"})
	require.NoError(t, err)
	require.Equal(t, []string{runner.ExplainPrefix + "SELECT 1"}, conn.log)
}

func TestTrainPropagatesFailures(t *testing.T) {
	conn := &fakeConn{failOn: "SELECT set_config($1, $2, false) aqo.mode controlled"}
	exec := runner.New(conn, runner.Options{})

	_, err := exec.Train(context.Background(), "SELECT 1", runner.Protocol{
		TrainingRuns: 1, Setting: "aqo.mode", LearnMode: "learn", ControlledMode: "controlled",
	})
	require.ErrorContains(t, err, "boom")

	conn = &fakeConn{failOn: runner.ExplainPrefix + "SELECT 1"}
	_, err = runner.New(conn, runner.Options{}).Train(context.Background(), "SELECT 1", runner.Protocol{
		TrainingRuns: 2, Setting: "aqo.mode", LearnMode: "learn", ControlledMode: "controlled",
	})
	require.ErrorContains(t, err, "training run 1")
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	_, err := runner.Open(context.Background(), " ", runner.Options{})
	require.Error(t, err)
}
