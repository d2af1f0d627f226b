package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/scholargraph/internal/audit"
	apperrors "github.com/rohankatakam/scholargraph/internal/errors"
	"github.com/rohankatakam/scholargraph/internal/extraction"
	"github.com/rohankatakam/scholargraph/internal/graph"
	"github.com/rohankatakam/scholargraph/internal/logging"
	"github.com/rohankatakam/scholargraph/internal/nl2cypher"
)

type stubQueries struct {
	result   graph.QueryResult
	count    int64
	countErr error
	calls    []graph.Statement
	panicMsg string
}

func (s *stubQueries) Execute(_ context.Context, stmt graph.Statement) graph.QueryResult {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	s.calls = append(s.calls, stmt)
	return s.result
}

func (s *stubQueries) CountNodes(context.Context) (int64, error) {
	return s.count, s.countErr
}

type stubGraphs struct {
	limits []int
}

func (s *stubGraphs) ProjectGraph(_ context.Context, limit int) graph.ProjectedGraph {
	s.limits = append(s.limits, limit)
	g := graph.EmptyGraph()
	g.Nodes = append(g.Nodes, graph.NodeView{"id": "Li Hua", "name": "Li Hua", "category": "Scholar"})
	g.Categories = append(g.Categories, graph.Category{Name: "Scholar"})
	return g
}

type stubAI struct {
	result nl2cypher.Result
	inputs []string
}

func (s *stubAI) GenerateAndRun(_ context.Context, text string) nl2cypher.Result {
	s.inputs = append(s.inputs, text)
	r := s.result
	r.UserInput = text
	return r
}

type stubHistory struct {
	records []audit.GenerationRecord
	err     error
	limit   int
}

func (s *stubHistory) Recent(_ context.Context, limit int) ([]audit.GenerationRecord, error) {
	s.limit = limit
	return s.records, s.err
}

type fixture struct {
	queries *stubQueries
	graphs  *stubGraphs
	ai      *stubAI
	history *stubHistory
	router  http.Handler
}

func newFixture(t *testing.T, withHistory bool) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		queries: &stubQueries{},
		graphs:  &stubGraphs{},
		ai:      &stubAI{},
		history: &stubHistory{},
	}
	deps := Dependencies{
		Queries:        f.queries,
		Graphs:         f.graphs,
		AI:             f.ai,
		Extractor:      extraction.NewExtractor(logging.Discard()),
		Limits:         Limits{DefaultNodeLimit: 50, MaxNodeLimit: 200},
		Prefix:         "/api",
		AllowedOrigins: []string{"http://localhost:5173"},
	}
	if withHistory {
		deps.History = f.history
	}
	f.router = NewRouter(logging.Discard(), deps)
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	return payload
}

func TestPing(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(http.MethodGet, "/api/ping", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","message":"pong!"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestIndex(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/ping")
}

func TestDBTest(t *testing.T) {
	f := newFixture(t, false)
	f.queries.count = 42

	rec := f.do(http.MethodGet, "/api/db-test", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	payload := decode(t, rec)
	assert.Equal(t, "success", payload["status"])
	assert.Contains(t, payload["message"], "42 nodes")

	f.queries.countErr = fmt.Errorf("connection refused")
	rec = f.do(http.MethodGet, "/api/db-test", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	payload = decode(t, rec)
	assert.Equal(t, "error", payload["status"])
	assert.NotEmpty(t, payload["message"])
}

func TestQuery(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodPost, "/api/query", `{"query_text":"Who does Li Hua work with?","user_id":"u1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	payload := decode(t, rec)
	scholars := payload["scholars"].([]any)
	require.Len(t, scholars, 1)
	assert.Equal(t, "Li Hua", scholars[0].(map[string]any)["name"])
	assert.Len(t, payload["relationships"], 2)
}

func TestQuery_Validation(t *testing.T) {
	f := newFixture(t, false)

	for _, body := range []string{`{"query_text":""}`, `{"user_id":"u1"}`, `{}`} {
		rec := f.do(http.MethodPost, "/api/query", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		payload := decode(t, rec)
		assert.Equal(t, "error", payload["status"])
		assert.Contains(t, payload["message"], "query_text", body)
	}

	rec := f.do(http.MethodPost, "/api/query", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["message"], "invalid request body")
}

func TestBindingError(t *testing.T) {
	var req QueryRequest
	err := binding.JSON.BindBody([]byte(`{"user_id":"u1"}`), &req)
	require.Error(t, err)

	verr := bindingError(err)
	assert.Equal(t, apperrors.ErrorTypeValidation, verr.Type)
	assert.Equal(t, `request body validation failed: query_text failed on "required"`, verr.Message)
	assert.Equal(t, []string{"query_text"}, verr.Context["fields"])
	assert.Equal(t, http.StatusBadRequest, httpStatus(verr))

	verr = bindingError(fmt.Errorf("unexpected EOF"))
	assert.Equal(t, "invalid request body: unexpected EOF", verr.Message)
	assert.NotContains(t, verr.Context, "fields")
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperrors.ValidationError("limit must be positive"), http.StatusBadRequest},
		{"wrapped validation", fmt.Errorf("decode: %w", apperrors.ValidationError("bad")), http.StatusBadRequest},
		{"service unavailable", apperrors.ServiceUnavailableError("llm client not initialized"), http.StatusServiceUnavailable},
		{"storage", apperrors.StorageError(fmt.Errorf("bolt closed"), "read failed"), http.StatusInternalServerError},
		{"plain", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, httpStatus(tt.err))
		})
	}
}

func TestGraphData_Limit(t *testing.T) {
	f := newFixture(t, false)

	tests := []struct {
		query string
		want  int
	}{
		{"", 50},
		{"?limit=10", 10},
		{"?limit=-5", 0},
		{"?limit=1000", 200},
		{"?limit=abc", 50},
	}
	for _, tt := range tests {
		rec := f.do(http.MethodGet, "/api/graph-data"+tt.query, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, tt.want, f.graphs.limits[len(f.graphs.limits)-1], tt.query)
	}

	rec := f.do(http.MethodGet, "/api/graph-data", "")
	payload := decode(t, rec)
	assert.Len(t, payload["nodes"], 1)
	assert.Empty(t, payload["links"])
	assert.Len(t, payload["categories"], 1)
}

func TestCypher(t *testing.T) {
	f := newFixture(t, false)
	f.queries.result = graph.QueryResult{
		Success: true,
		Data:    []map[string]any{{"count": 3}},
	}

	rec := f.do(http.MethodPost, "/api/cypher", `{"query":"MATCH (n:Scholar {name: $name}) RETURN count(n) AS count","parameters":{"name":"Li Hua"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	payload := decode(t, rec)
	assert.Equal(t, true, payload["success"])

	require.Len(t, f.queries.calls, 1)
	stmt := f.queries.calls[0]
	assert.Equal(t, graph.AccessModeWrite, stmt.Mode)
	assert.Equal(t, graph.OpStatement, stmt.Operation)
	assert.Equal(t, "Li Hua", stmt.Params["name"])
}

func TestCypher_IntegerParameters(t *testing.T) {
	f := newFixture(t, false)
	f.queries.result = graph.QueryResult{Success: true, Data: []map[string]any{}}

	rec := f.do(http.MethodPost, "/api/cypher",
		`{"query":"MATCH (n) RETURN n LIMIT $limit","parameters":{"limit":5,"year":2020,"score":0.5,"years":[2019,2020]}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, f.queries.calls, 1)
	p := f.queries.calls[0].Params
	limit, ok := p["limit"].(int64)
	require.True(t, ok, "limit decoded as %T", p["limit"])
	assert.Equal(t, int64(5), limit)
	assert.Equal(t, int64(2020), p["year"])
	assert.Equal(t, 0.5, p["score"])
	assert.Equal(t, []any{int64(2019), int64(2020)}, p["years"])
}

func TestCypher_ParametersOptional(t *testing.T) {
	f := newFixture(t, false)
	f.queries.result = graph.QueryResult{Success: true, Data: []map[string]any{}}

	for _, body := range []string{`{"query":"RETURN 1"}`, `{"query":"RETURN 1","parameters":null}`} {
		rec := f.do(http.MethodPost, "/api/cypher", body)
		require.Equal(t, http.StatusOK, rec.Code, body)
	}
	require.Len(t, f.queries.calls, 2)
	for _, stmt := range f.queries.calls {
		assert.NotNil(t, stmt.Params)
		assert.Empty(t, stmt.Params)
	}
}

func TestCypher_RejectsNonObjectParameters(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodPost, "/api/cypher", `{"query":"RETURN $x","parameters":[1,2]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decode(t, rec)
	assert.Equal(t, false, payload["success"])
	assert.Contains(t, payload["error"], "parameters must be a JSON object")
	assert.Empty(t, f.queries.calls)
}

func TestCypher_Failure(t *testing.T) {
	f := newFixture(t, false)
	f.queries.result = graph.FailedResult("query cannot be empty")

	rec := f.do(http.MethodPost, "/api/cypher", `{"query":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success":false,"data":[],"error":"query cannot be empty","summary":{}}`, rec.Body.String())

	rec = f.do(http.MethodPost, "/api/cypher", `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, decode(t, rec)["success"])
}

func TestCypher_PanicRecovered(t *testing.T) {
	f := newFixture(t, false)
	f.queries.panicMsg = "driver exploded"

	rec := f.do(http.MethodPost, "/api/cypher", `{"query":"RETURN 1"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	payload := decode(t, rec)
	assert.Equal(t, "error", payload["status"])
	assert.NotContains(t, rec.Body.String(), "driver exploded")
}

func TestAICypher_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		result nl2cypher.Result
		want   int
	}{
		{"success", nl2cypher.Result{Success: true, GeneratedQuery: "MATCH (n) RETURN n"}, http.StatusOK},
		{"validation", nl2cypher.Result{Step: nl2cypher.StepValidation, Error: "user input cannot be empty"}, http.StatusBadRequest},
		{"ai_generation", nl2cypher.Result{Step: nl2cypher.StepAIGeneration, Error: "bad output"}, http.StatusBadRequest},
		{"service_check", nl2cypher.Result{Step: nl2cypher.StepServiceCheck, Error: "AI service is not available"}, http.StatusInternalServerError},
		{"general_error", nl2cypher.Result{Step: nl2cypher.StepGeneralError, Error: "internal error"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			f.ai.result = tt.result

			rec := f.do(http.MethodPost, "/api/ai-cypher", `{"user_input":"list scholars"}`)
			assert.Equal(t, tt.want, rec.Code)
			payload := decode(t, rec)
			assert.Equal(t, tt.result.Success, payload["success"])
			assert.Equal(t, "list scholars", payload["user_input"])
			if !tt.result.Success {
				assert.Equal(t, string(tt.result.Step), payload["step"])
			}
		})
	}
}

func TestAICypher_ExecutionFailureIsOK(t *testing.T) {
	f := newFixture(t, false)
	exec := graph.FailedResult("Invalid input")
	f.ai.result = nl2cypher.Result{Success: true, GeneratedQuery: "MATCH (n RETURN n", ExecutionResult: &exec}

	rec := f.do(http.MethodPost, "/api/ai-cypher", `{"user_input":"broken"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	payload := decode(t, rec)
	assert.Equal(t, false, payload["execution_result"].(map[string]any)["success"])
}

func TestAICypher_BadBody(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodPost, "/api/ai-cypher", `{"user_input":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decode(t, rec)
	assert.Equal(t, "validation", payload["step"])
	assert.Contains(t, payload["error"], "invalid request body")
	assert.Empty(t, f.ai.inputs)
}

func TestAIHistory(t *testing.T) {
	f := newFixture(t, true)
	f.history.records = []audit.GenerationRecord{
		{ID: "b", CreatedAt: time.Now(), UserInput: "second", Success: true},
		{ID: "a", CreatedAt: time.Now().Add(-time.Minute), UserInput: "first", Step: "ai_generation"},
	}

	rec := f.do(http.MethodGet, "/api/ai-cypher/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultHistoryLimit, f.history.limit)
	payload := decode(t, rec)
	assert.Equal(t, "success", payload["status"])
	records := payload["records"].([]any)
	require.Len(t, records, 2)
	assert.Equal(t, "second", records[0].(map[string]any)["user_input"])

	rec = f.do(http.MethodGet, "/api/ai-cypher/history?limit=5", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, f.history.limit)

	rec = f.do(http.MethodGet, "/api/ai-cypher/history?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, `limit must be a positive integer, got "zero"`, decode(t, rec)["message"])

	f.history.err = fmt.Errorf("bolt closed")
	rec = f.do(http.MethodGet, "/api/ai-cypher/history", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAIHistory_Disabled(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodGet, "/api/ai-cypher/history", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "error", decode(t, rec)["status"])
}

func TestCORS(t *testing.T) {
	f := newFixture(t, false)

	req := httptest.NewRequest(http.MethodOptions, "/api/cypher", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/cypher", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Wildcard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(logging.Discard(), Dependencies{
		Queries:        &stubQueries{},
		Graphs:         &stubGraphs{},
		AI:             &stubAI{},
		Extractor:      extraction.NewExtractor(logging.Discard()),
		Prefix:         "/api",
		AllowedOrigins: []string{"*"},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("Origin", "http://anywhere.example")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "http://anywhere.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
