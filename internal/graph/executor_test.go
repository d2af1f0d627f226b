package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/scholargraph/internal/errors"
	"github.com/rohankatakam/scholargraph/internal/logging"
)

func TestExecuteQuery_EmptyStatementSkipsDriver(t *testing.T) {
	runner := &fakeRunner{}
	exec := NewExecutor(runner, logging.Discard())

	for _, stmt := range []string{"", "   ", "\n\t"} {
		result := exec.ExecuteQuery(context.Background(), stmt, nil)
		assert.False(t, result.Success)
		assert.NotEmpty(t, result.Error)
		assert.Equal(t, []map[string]any{}, result.Data)
		assert.True(t, result.Summary.Empty())
	}
	assert.Equal(t, 0, runner.callCount)
}

func TestExecuteQuery_Success(t *testing.T) {
	runner := &fakeRunner{results: []*RawResult{{
		Keys: []string{"n", "count"},
		Rows: [][]Cell{
			{scholar("4:db:1", "Ada"), Scalar{Value: int64(3)}},
			{scholar("4:db:2", "Alan"), Scalar{Value: int64(1)}},
		},
		QueryType: "r",
		Counters:  map[string]int{},
	}}}
	exec := NewExecutor(runner, logging.Discard())

	params := map[string]any{"name": "Ada"}
	result := exec.ExecuteQuery(context.Background(), "MATCH (n:Scholar) RETURN n, 3 AS count", params)

	require.True(t, result.Success, result.Error)
	require.Len(t, result.Data, 2)
	assert.Equal(t, "node", result.Data[0]["n"].(map[string]any)["type"])
	assert.Equal(t, int64(3), result.Data[0]["count"])
	assert.Equal(t, 2, result.Summary.RecordsCount)
	assert.Equal(t, []string{"n", "count"}, result.Summary.Keys)
	assert.Equal(t, "r", result.Summary.QueryType)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, params, runner.calls[0].Params)
	assert.Equal(t, AccessModeWrite, runner.calls[0].Mode)
	assert.Equal(t, OpStatement, runner.calls[0].Operation)
}

func TestExecuteQuery_WriteCounters(t *testing.T) {
	runner := &fakeRunner{results: []*RawResult{{
		Keys:      []string{},
		QueryType: "w",
		Counters:  map[string]int{"nodes_created": 1, "properties_set": 2},
	}}}
	exec := NewExecutor(runner, logging.Discard())

	result := exec.ExecuteQuery(context.Background(), "CREATE (:Scholar {name: $n, field: $f})", map[string]any{"n": "A", "f": "B"})
	require.True(t, result.Success)
	assert.Equal(t, []map[string]any{}, result.Data)
	assert.Equal(t, 0, result.Summary.RecordsCount)
	assert.Equal(t, map[string]int{"nodes_created": 1, "properties_set": 2}, result.Summary.Counters)

	body, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"success": true,
		"data": [],
		"summary": {
			"records_count": 0,
			"keys": [],
			"query_type": "w",
			"counters": {"nodes_created": 1, "properties_set": 2}
		}
	}`, string(body))
}

func TestExecuteQuery_DriverFailure(t *testing.T) {
	runner := &fakeRunner{errs: []error{fmt.Errorf("Invalid input 'MATC'")}}
	exec := NewExecutor(runner, logging.Discard())

	result := exec.ExecuteQuery(context.Background(), "MATC (n) RETURN n", nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "Invalid input")

	body, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success": false, "data": [], "error": "Invalid input 'MATC'", "summary": {}}`, string(body))
}

func TestExecuteQuery_PathColumnFails(t *testing.T) {
	runner := &fakeRunner{results: []*RawResult{{
		Keys: []string{"p"},
		Rows: [][]Cell{{Path{Nodes: []Node{scholar("1", "a")}}}},
	}}}
	exec := NewExecutor(runner, logging.Discard())

	result := exec.ExecuteQuery(context.Background(), "MATCH p=()-->() RETURN p", nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unsupported result shape")
	assert.True(t, result.Summary.Empty())
}

func TestExecuteReadOnly_UsesReadMode(t *testing.T) {
	runner := &fakeRunner{}
	exec := NewExecutor(runner, logging.Discard())

	result := exec.ExecuteReadOnly(context.Background(), "MATCH (n) RETURN n", nil)
	assert.True(t, result.Success)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, AccessModeRead, runner.calls[0].Mode)
	assert.NotNil(t, runner.calls[0].Params)
}

func TestCountNodes(t *testing.T) {
	t.Run("count", func(t *testing.T) {
		runner := &fakeRunner{results: []*RawResult{{
			Keys: []string{"node_count"},
			Rows: [][]Cell{{Scalar{Value: int64(128)}}},
		}}}
		exec := NewExecutor(runner, logging.Discard())

		count, err := exec.CountNodes(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(128), count)
		assert.Equal(t, nodeCountQuery, runner.calls[0].Text)
		assert.Equal(t, OpNodeCount, runner.calls[0].Operation)
	})

	t.Run("driver error", func(t *testing.T) {
		runner := &fakeRunner{errs: []error{fmt.Errorf("connection refused")}}
		exec := NewExecutor(runner, logging.Discard())

		_, err := exec.CountNodes(context.Background())
		require.Error(t, err)
		assert.True(t, errors.HasType(err, errors.ErrorTypeExecution))
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("unexpected type", func(t *testing.T) {
		runner := &fakeRunner{results: []*RawResult{{
			Keys: []string{"node_count"},
			Rows: [][]Cell{{Scalar{Value: "many"}}},
		}}}
		exec := NewExecutor(runner, logging.Discard())

		_, err := exec.CountNodes(context.Background())
		assert.True(t, errors.HasType(err, errors.ErrorTypeUnsupportedShape))
	})
}

func TestTransactionConfigs(t *testing.T) {
	configs := TransactionConfigs(0)
	assert.Zero(t, configs[OpStatement].Timeout)
	assert.Equal(t, "llm", configs[OpGenerated].Metadata["source"])

	cfg := configFor(configs, "unknown_op")
	assert.Equal(t, "unknown_op", cfg.Metadata["operation"])
	assert.Len(t, configs[OpNodeCount].AsNeo4jConfig(), 2)
}
