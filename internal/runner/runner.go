package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ExplainPrefix is prepended to every query. VERBOSE keeps AQO's per-node annotations.
const ExplainPrefix = "EXPLAIN (ANALYZE ON, VERBOSE ON, FORMAT JSON) "

// Conn is the subset of *pgx.Conn the executor relies on.
type Conn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close(ctx context.Context) error
}

// Options customises how EXPLAIN is executed.
type Options struct {
	// Timeout bounds each statement. Zero waits forever.
	Timeout time.Duration
}

// Protocol describes the optimizer training performed before the measured execution.
type Protocol struct {
	TrainingRuns   int
	Setting        string
	LearnMode      string
	ControlledMode string
}

// Executor sends instrumented EXPLAIN commands over a single connection.
type Executor struct {
	conn Conn
	opts Options
}

// Open connects to dsn. The connection is reused for every query of the batch.
func Open(ctx context.Context, dsn string, opts Options) (*Executor, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("runner: empty DSN")
	}
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("runner: connect: %w", err)
	}
	return New(conn, opts), nil
}

// New wraps an established connection.
func New(conn Conn, opts Options) *Executor {
	return &Executor{conn: conn, opts: opts}
}

// Close releases the underlying connection.
func (e *Executor) Close(ctx context.Context) error {
	return e.conn.Close(ctx)
}

// Explain runs EXPLAIN ANALYZE for sqlStatement and returns the raw JSON document.
func (e *Executor) Explain(ctx context.Context, sqlStatement string) ([]byte, error) {
	query := strings.TrimRight(strings.TrimSpace(sqlStatement), ";")
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("runner: empty sql statement")
	}

	ctx, cancel := e.bound(ctx)
	defer cancel()

	var payload []byte
	if err := e.conn.QueryRow(ctx, ExplainPrefix+query).Scan(&payload); err != nil {
		return nil, fmt.Errorf("runner: query: %w", err)
	}
	return payload, nil
}

// SetMode changes a session setting such as aqo.mode.
func (e *Executor) SetMode(ctx context.Context, setting, mode string) error {
	if setting == "" {
		return fmt.Errorf("runner: empty setting name")
	}
	ctx, cancel := e.bound(ctx)
	defer cancel()

	if _, err := e.conn.Exec(ctx, "SELECT set_config($1, $2, false)", setting, mode); err != nil {
		return fmt.Errorf("runner: set %s = %q: %w", setting, mode, err)
	}
	return nil
}

// Train executes sqlStatement p.TrainingRuns times in learn mode, then once in controlled mode,
// and returns the plan of the controlled execution. With no training runs the query is explained
// once without touching the session mode.
func (e *Executor) Train(ctx context.Context, sqlStatement string, p Protocol) ([]byte, error) {
	if p.TrainingRuns <= 0 {
		return e.Explain(ctx, sqlStatement)
	}
	for i := 0; i < p.TrainingRuns; i++ {
		if err := e.SetMode(ctx, p.Setting, p.LearnMode); err != nil {
			return nil, err
		}
		if _, err := e.Explain(ctx, sqlStatement); err != nil {
			return nil, fmt.Errorf("training run %d: %w", i+1, err)
		}
	}
	if err := e.SetMode(ctx, p.Setting, p.ControlledMode); err != nil {
		return nil, err
	}
	return e.Explain(ctx, sqlStatement)
}

func (e *Executor) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.opts.Timeout > 0 {
		return context.WithTimeout(ctx, e.opts.Timeout)
	}
	return ctx, func() {}
}
