// Package executor compiles metric requests, renders them for the selected
// database and runs them through a registered adapter.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/leapstack-labs/leapmetrics/internal/history"
	"github.com/leapstack-labs/leapmetrics/pkg/adapter"
	"github.com/leapstack-labs/leapmetrics/pkg/compiler"
	"github.com/leapstack-labs/leapmetrics/pkg/core"
	"github.com/leapstack-labs/leapmetrics/pkg/dialect"
	"github.com/leapstack-labs/leapmetrics/pkg/semantic"
	"github.com/leapstack-labs/leapmetrics/pkg/sqlgen"
)

// FallbackDialect renders explanations when no database is configured.
const FallbackDialect = "duckdb"

// Options configures an Executor.
type Options struct {
	Databases       map[string]core.DatabaseConfig
	DefaultDatabase string
	// MaxRows caps the rows read per query; zero means unlimited.
	MaxRows int
	// History records every executed query when set.
	History *history.Store
	Logger  *slog.Logger
}

// Executor runs compiled plans. Adapters are connected on first use and
// reused until Close. It is safe for concurrent use.
type Executor struct {
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	adapters map[string]core.Adapter
}

// New creates an executor.
func New(opts Options) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{opts: opts, logger: logger, adapters: make(map[string]core.Adapter)}
}

// Explanation is a compiled request rendered for one database.
type Explanation struct {
	Plan     *core.Plan `json:"plan"`
	SQL      string     `json:"sql"`
	Args     []any      `json:"args"`
	Database string     `json:"database,omitempty"`
	Dialect  string     `json:"dialect"`
}

// Result is an executed query.
type Result struct {
	Data       []map[string]any `json:"data"`
	Columns    []string         `json:"columns"`
	RowCount   int              `json:"row_count"`
	SQL        string           `json:"sql"`
	ModelName  string           `json:"model_name"`
	Measures   []string         `json:"measures"`
	Dimensions []string         `json:"dimensions"`
	Database   string           `json:"database"`
	Truncated  bool             `json:"truncated,omitempty"`
	DurationMS int64            `json:"duration_ms"`
}

// Explain compiles req and renders its SQL without touching a database.
// databaseID optionally selects the target database.
func (e *Executor) Explain(reg *semantic.Registry, req core.CompileRequest, databaseID string) (*Explanation, error) {
	plan, err := compiler.Compile(reg, req)
	if err != nil {
		return nil, err
	}

	id, dbType := "", FallbackDialect
	if len(e.opts.Databases) > 0 || databaseID != "" {
		var db core.DatabaseConfig
		if id, db, err = e.SelectDatabase(plan, databaseID); err != nil {
			return nil, err
		}
		dbType = db.Type
	}

	d, err := dialect.Lookup(dbType)
	if err != nil {
		return nil, err
	}
	q, err := sqlgen.Generate(plan, d)
	if err != nil {
		return nil, err
	}
	args := q.Args
	if args == nil {
		args = []any{}
	}
	return &Explanation{Plan: plan, SQL: q.SQL, Args: args, Database: id, Dialect: d.Name}, nil
}

// Run compiles, renders and executes req. Compilation failures are returned
// unchanged; backend failures are wrapped in *core.ExecutionError.
func (e *Executor) Run(ctx context.Context, reg *semantic.Registry, req core.CompileRequest, databaseID string) (*Result, error) {
	ex, err := e.Explain(reg, req, databaseID)
	if err != nil {
		return nil, err
	}
	if ex.Database == "" {
		return nil, errNoDatabases()
	}

	start := time.Now()
	res, err := e.execute(ctx, ex, req)
	elapsed := time.Since(start)

	e.record(ctx, ex, req, res, elapsed, err)
	if err != nil {
		return nil, err
	}
	res.DurationMS = elapsed.Milliseconds()
	return res, nil
}

func (e *Executor) execute(ctx context.Context, ex *Explanation, req core.CompileRequest) (*Result, error) {
	a, err := e.Adapter(ctx, ex.Database)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("executing query", "model", ex.Plan.Model, "database", ex.Database)
	rows, err := a.Query(ctx, ex.SQL, ex.Args...)
	if err != nil {
		return nil, &core.ExecutionError{Database: ex.Database, Err: err}
	}
	defer func() { _ = rows.Close() }()

	data, columns, truncated, err := scanRows(rows, e.opts.MaxRows)
	if err != nil {
		return nil, &core.ExecutionError{Database: ex.Database, Err: err}
	}
	if len(data) == 0 || len(columns) == 0 {
		columns = ex.Plan.ColumnNames()
	}

	return &Result{
		Data:       data,
		Columns:    columns,
		RowCount:   len(data),
		SQL:        ex.SQL,
		ModelName:  ex.Plan.Model,
		Measures:   nonNil(req.Measures),
		Dimensions: nonNil(req.Dimensions),
		Database:   ex.Database,
		Truncated:  truncated,
	}, nil
}

func (e *Executor) record(ctx context.Context, ex *Explanation, req core.CompileRequest, res *Result, elapsed time.Duration, runErr error) {
	if e.opts.History == nil {
		return
	}
	entry := &history.Entry{
		Model:      ex.Plan.Model,
		Database:   ex.Database,
		Request:    req,
		SQL:        ex.SQL,
		DurationMS: elapsed.Milliseconds(),
	}
	if res != nil {
		entry.RowCount = res.RowCount
	}
	if runErr != nil {
		entry.Error = runErr.Error()
	}
	// A cancelled request still gets its run recorded.
	if err := e.opts.History.Record(context.WithoutCancel(ctx), entry); err != nil {
		e.logger.Warn("failed to record query run", "error", err)
	}
}

// SelectDatabase picks the database a plan runs against: the database its
// models declare, else databaseID, else the default database, else the
// only configured database.
func (e *Executor) SelectDatabase(plan *core.Plan, databaseID string) (string, core.DatabaseConfig, error) {
	id := plan.Database
	switch {
	case id != "" && databaseID != "" && id != databaseID:
		return "", core.DatabaseConfig{}, &core.InvalidRequestError{
			Field:  "database_id",
			Reason: fmt.Sprintf("model %q is bound to database %q, not %q", plan.Model, id, databaseID),
		}
	case id != "":
	case databaseID != "":
		id = databaseID
	case e.opts.DefaultDatabase != "":
		id = e.opts.DefaultDatabase
	case len(e.opts.Databases) == 1:
		for only := range e.opts.Databases {
			id = only
		}
	case len(e.opts.Databases) == 0:
		return "", core.DatabaseConfig{}, errNoDatabases()
	default:
		return "", core.DatabaseConfig{}, &core.InvalidRequestError{
			Field:  "database_id",
			Reason: fmt.Sprintf("multiple databases configured, choose one of %s", strings.Join(e.DatabaseNames(), ", ")),
		}
	}

	db, ok := e.opts.Databases[id]
	if !ok {
		return "", core.DatabaseConfig{}, &core.InvalidRequestError{
			Field:  "database_id",
			Reason: fmt.Sprintf("unknown database %q (available: %s)", id, strings.Join(e.DatabaseNames(), ", ")),
		}
	}
	return id, db, nil
}

func errNoDatabases() error {
	return &core.InvalidRequestError{Field: "database_id", Reason: "no databases configured"}
}

// DatabaseNames returns the configured database identifiers sorted.
func (e *Executor) DatabaseNames() []string {
	names := make([]string, 0, len(e.opts.Databases))
	for name := range e.opts.Databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Adapter returns the connected adapter for a database, connecting on first use.
func (e *Executor) Adapter(ctx context.Context, id string) (core.Adapter, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if a, ok := e.adapters[id]; ok {
		return a, nil
	}
	db, ok := e.opts.Databases[id]
	if !ok {
		return nil, &core.InvalidRequestError{Field: "database_id", Reason: fmt.Sprintf("unknown database %q", id)}
	}

	a, err := adapter.NewAdapter(db.AdapterConfig(), e.logger.With("database", id))
	if err != nil {
		return nil, &core.ExecutionError{Database: id, Err: err}
	}
	if err := a.Connect(ctx, db.AdapterConfig()); err != nil {
		return nil, &core.ExecutionError{Database: id, Err: err}
	}
	e.logger.Info("connected", "database", id, "type", db.Type)
	e.adapters[id] = a
	return a, nil
}

// TableMetadata reads live metadata for a model's table from the database
// the model resolves to.
func (e *Executor) TableMetadata(ctx context.Context, m *core.Model) (*core.TableMetadata, error) {
	id, _, err := e.SelectDatabase(&core.Plan{Model: m.Name, Database: m.Database}, "")
	if err != nil {
		return nil, err
	}
	a, err := e.Adapter(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.GetTableMetadata(ctx, m.Schema+"."+m.Table)
}

// Close closes every connected adapter.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for id, a := range e.adapters {
		if err := a.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
		delete(e.adapters, id)
	}
	return errors.Join(errs...)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
