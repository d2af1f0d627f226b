package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rohankatakam/scholargraph/internal/errors"
)

const nodeCountQuery = "MATCH (n) RETURN count(n) AS node_count"

// QuerySummary describes a finished statement. A summary that was never
// populated (failed statements) serializes as {}.
type QuerySummary struct {
	RecordsCount int            `json:"records_count"`
	Keys         []string       `json:"keys"`
	QueryType    string         `json:"query_type"`
	Counters     map[string]int `json:"counters"`

	populated bool
}

// Empty reports whether the summary carries no information
func (s QuerySummary) Empty() bool {
	return !s.populated
}

// MarshalJSON implements json.Marshaler
func (s QuerySummary) MarshalJSON() ([]byte, error) {
	if !s.populated {
		return []byte("{}"), nil
	}
	type plain QuerySummary
	return json.Marshal(plain(s))
}

// QueryResult is the uniform outcome of executing one statement
type QueryResult struct {
	Success bool             `json:"success"`
	Data    []map[string]any `json:"data"`
	Error   string           `json:"error,omitempty"`
	Summary QuerySummary     `json:"summary"`
}

// FailedResult builds the failure shape: no rows and an empty summary
func FailedResult(message string) QueryResult {
	return QueryResult{
		Success: false,
		Data:    []map[string]any{},
		Error:   message,
	}
}

// Executor runs arbitrary statements and normalizes their results. It never
// returns a Go error from ExecuteQuery; every failure becomes a QueryResult
// with Success false.
type Executor struct {
	runner Runner
	logger *slog.Logger
}

// NewExecutor creates an executor on top of a runner
func NewExecutor(runner Runner, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		runner: runner,
		logger: logger.With("component", "executor"),
	}
}

// ExecuteQuery runs a user statement with parameters in an auto-commit transaction
func (e *Executor) ExecuteQuery(ctx context.Context, statement string, params map[string]any) QueryResult {
	return e.Execute(ctx, Statement{
		Text:      statement,
		Params:    params,
		Mode:      AccessModeWrite,
		Operation: OpStatement,
	})
}

// ExecuteReadOnly runs a statement in a read transaction; writes are rejected by the server
func (e *Executor) ExecuteReadOnly(ctx context.Context, statement string, params map[string]any) QueryResult {
	return e.Execute(ctx, Statement{
		Text:      statement,
		Params:    params,
		Mode:      AccessModeRead,
		Operation: OpStatement,
	})
}

// Execute runs a fully described statement
func (e *Executor) Execute(ctx context.Context, stmt Statement) QueryResult {
	if strings.TrimSpace(stmt.Text) == "" {
		return FailedResult("query cannot be empty")
	}
	if stmt.Params == nil {
		stmt.Params = map[string]any{}
	}

	raw, err := e.runner.Run(ctx, stmt)
	if err != nil {
		e.logger.Error("query execution failed",
			"operation", stmt.Operation,
			"error", err)
		return FailedResult(err.Error())
	}

	data, err := normalizeRows(raw)
	if err != nil {
		e.logger.Warn("result normalization failed",
			"operation", stmt.Operation,
			"error", err)
		return FailedResult(err.Error())
	}

	counters := raw.Counters
	if counters == nil {
		counters = map[string]int{}
	}
	keys := raw.Keys
	if keys == nil {
		keys = []string{}
	}

	return QueryResult{
		Success: true,
		Data:    data,
		Summary: QuerySummary{
			RecordsCount: len(data),
			Keys:         keys,
			QueryType:    raw.QueryType,
			Counters:     counters,
			populated:    true,
		},
	}
}

// CountNodes returns the number of nodes in the database
func (e *Executor) CountNodes(ctx context.Context) (int64, error) {
	raw, err := e.runner.Run(ctx, Statement{
		Text:      nodeCountQuery,
		Params:    map[string]any{},
		Mode:      AccessModeRead,
		Operation: OpNodeCount,
	})
	if err != nil {
		return 0, errors.ExecutionError(err, "node count failed")
	}
	if len(raw.Rows) == 0 || len(raw.Rows[0]) == 0 {
		return 0, errors.ExecutionError(fmt.Errorf("no rows returned"), "node count failed")
	}

	scalar, ok := raw.Rows[0][0].(Scalar)
	if !ok {
		return 0, errors.UnsupportedShapeErrorf("unexpected node count cell: %T", raw.Rows[0][0])
	}
	count, ok := scalar.Value.(int64)
	if !ok {
		return 0, errors.UnsupportedShapeErrorf("unexpected type for node count: %T (expected int64)", scalar.Value)
	}
	return count, nil
}

func normalizeRows(raw *RawResult) ([]map[string]any, error) {
	data := make([]map[string]any, 0, len(raw.Rows))
	for _, row := range raw.Rows {
		out := make(map[string]any, len(raw.Keys))
		for i, key := range raw.Keys {
			var cell Cell = Scalar{}
			if i < len(row) {
				cell = row[i]
			}
			v, err := NormalizeCell(cell)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", key, err)
			}
			out[key] = v
		}
		data = append(data, out)
	}
	return data, nil
}
