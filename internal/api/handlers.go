package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/rohankatakam/scholargraph/internal/audit"
	apperrors "github.com/rohankatakam/scholargraph/internal/errors"
	"github.com/rohankatakam/scholargraph/internal/extraction"
	"github.com/rohankatakam/scholargraph/internal/graph"
	"github.com/rohankatakam/scholargraph/internal/nl2cypher"
)

const defaultHistoryLimit = 20

// QueryService executes statements; *graph.Executor satisfies it
type QueryService interface {
	Execute(ctx context.Context, stmt graph.Statement) graph.QueryResult
	CountNodes(ctx context.Context) (int64, error)
}

// GraphService builds the visualization payload; *graph.Projector satisfies it
type GraphService interface {
	ProjectGraph(ctx context.Context, nodeLimit int) graph.ProjectedGraph
}

// AIService runs natural-language requests; *nl2cypher.Bridge satisfies it
type AIService interface {
	GenerateAndRun(ctx context.Context, userText string) nl2cypher.Result
}

// EntityExtractor parses free text; *extraction.Extractor satisfies it
type EntityExtractor interface {
	Extract(ctx context.Context, text string) extraction.Entities
}

// HistoryStore lists past generations; *audit.Store satisfies it
type HistoryStore interface {
	Recent(ctx context.Context, limit int) ([]audit.GenerationRecord, error)
}

// Handlers holds the endpoint implementations
type Handlers struct {
	queries   QueryService
	graphs    GraphService
	ai        AIService
	extractor EntityExtractor
	history   HistoryStore
	limits    Limits
	prefix    string
	logger    *slog.Logger
}

// Limits bounds /graph-data
type Limits struct {
	DefaultNodeLimit int
	MaxNodeLimit     int
}

// NewHandlers wires the endpoint dependencies. history may be nil.
func NewHandlers(logger *slog.Logger, deps Dependencies) *Handlers {
	limits := deps.Limits
	if limits.DefaultNodeLimit <= 0 {
		limits.DefaultNodeLimit = 50
	}
	return &Handlers{
		queries:   deps.Queries,
		graphs:    deps.Graphs,
		ai:        deps.AI,
		extractor: deps.Extractor,
		history:   deps.History,
		limits:    limits,
		prefix:    deps.Prefix,
		logger:    logger,
	}
}

func (h *Handlers) ping(c *gin.Context) {
	c.JSON(http.StatusOK, success("pong!"))
}

func (h *Handlers) dbTest(c *gin.Context) {
	count, err := h.queries.CountNodes(c.Request.Context())
	if err != nil {
		h.logger.Error("node count failed", "error", err)
		c.JSON(http.StatusInternalServerError, failure("database connection failed"))
		return
	}
	c.JSON(http.StatusOK, success(fmt.Sprintf("Connected to Neo4j, the database holds %d nodes.", count)))
}

func (h *Handlers) query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		verr := bindingError(err)
		c.JSON(h.rejected(c, verr), failure(verr.Message))
		return
	}

	entities := h.extractor.Extract(c.Request.Context(), req.QueryText)
	c.JSON(http.StatusOK, entities)
}

func (h *Handlers) graphData(c *gin.Context) {
	limit := h.nodeLimit(c.Query("limit"))
	c.JSON(http.StatusOK, h.graphs.ProjectGraph(c.Request.Context(), limit))
}

// nodeLimit parses ?limit. Missing or malformed values use the default,
// negatives clamp to zero and large values clamp to the configured maximum.
func (h *Handlers) nodeLimit(raw string) int {
	if raw == "" {
		return h.limits.DefaultNodeLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return h.limits.DefaultNodeLimit
	}
	if limit < 0 {
		return 0
	}
	if h.limits.MaxNodeLimit > 0 && limit > h.limits.MaxNodeLimit {
		return h.limits.MaxNodeLimit
	}
	return limit
}

func (h *Handlers) cypher(c *gin.Context) {
	var req CypherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		verr := bindingError(err)
		c.JSON(h.rejected(c, verr), graph.FailedResult(verr.Message))
		return
	}
	params, err := graph.DecodeParams(req.Parameters)
	if err != nil {
		c.JSON(h.rejected(c, err), graph.FailedResult(err.Error()))
		return
	}

	result := h.queries.Execute(c.Request.Context(), graph.Statement{
		Text:      req.Query,
		Params:    params,
		Mode:      graph.AccessModeWrite,
		Operation: graph.OpStatement,
	})
	if !result.Success {
		c.JSON(http.StatusBadRequest, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handlers) aiCypher(c *gin.Context) {
	var req AICypherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		verr := bindingError(err)
		c.JSON(h.rejected(c, verr), nl2cypher.Result{
			Error: verr.Message,
			Step:  nl2cypher.StepValidation,
		})
		return
	}

	result := h.ai.GenerateAndRun(c.Request.Context(), req.UserInput)
	c.JSON(statusForResult(result), result)
}

// statusForResult maps the failing step to an HTTP status
func statusForResult(r nl2cypher.Result) int {
	if r.Success {
		return http.StatusOK
	}
	switch r.Step {
	case nl2cypher.StepValidation, nl2cypher.StepAIGeneration:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) aiHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, failure("audit log is disabled"))
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			verr := apperrors.ValidationErrorf("limit must be a positive integer, got %q", raw).
				WithContext("field", "limit")
			c.JSON(h.rejected(c, verr), failure(verr.Message))
			return
		}
		limit = n
	}

	records, err := h.history.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("failed to read generation history", "error", err, "error_type", apperrors.GetType(err))
		c.JSON(httpStatus(err), failure("failed to read generation history"))
		return
	}
	if records == nil {
		records = []audit.GenerationRecord{}
	}
	c.JSON(http.StatusOK, HistoryResponse{Status: statusSuccess, Records: records})
}

func (h *Handlers) index(c *gin.Context) {
	page := fmt.Sprintf(welcomePage, h.prefix, h.prefix)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

const welcomePage = "<h1>Welcome to the scholar network API!</h1>" +
	"<p>Visit %s/ping or %s/db-test to check the service status.</p>"

// bindingError converts a binding failure into a validation error. Field
// failures are named in the message and listed under the "fields" context key.
func bindingError(err error) *apperrors.Error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.ValidationErrorf("invalid request body: %v", err)
	}
	fields := make([]string, 0, len(verrs))
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := fieldName(fe)
		fields = append(fields, name)
		parts = append(parts, fmt.Sprintf("%s failed on %q", name, fe.Tag()))
	}
	return apperrors.ValidationErrorf("request body validation failed: %s", strings.Join(parts, "; ")).
		WithContext("fields", fields)
}

func fieldName(fe validator.FieldError) string {
	switch fe.Field() {
	case "QueryText":
		return "query_text"
	case "UserID":
		return "user_id"
	default:
		return fe.Field()
	}
}

// httpStatus maps a structured error to a response status
func httpStatus(err error) int {
	switch apperrors.GetType(err) {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// rejected logs a refused request and returns the status to answer with
func (h *Handlers) rejected(c *gin.Context, err error) int {
	args := []any{"path", c.FullPath(), "error", err, "error_type", apperrors.GetType(err)}
	var aerr *apperrors.Error
	if errors.As(err, &aerr) && len(aerr.Context) > 0 {
		args = append(args, "context", aerr.Context)
	}
	h.logger.Debug("request rejected", args...)
	return httpStatus(err)
}
