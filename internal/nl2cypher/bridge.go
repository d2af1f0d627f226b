package nl2cypher

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/rohankatakam/scholargraph/internal/audit"
	"github.com/rohankatakam/scholargraph/internal/graph"
	"github.com/rohankatakam/scholargraph/internal/llm"
)

// Step names the phase of GenerateAndRun that failed
type Step string

const (
	StepValidation   Step = "validation"
	StepServiceCheck Step = "service_check"
	StepAIGeneration Step = "ai_generation"
	StepGeneralError Step = "general_error"
)

// keywords is the loose acceptance check for generated text
var keywords = []string{"MATCH", "CREATE", "MERGE", "RETURN"}

// fencePattern matches a markdown code block, optionally tagged cypher
var fencePattern = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n?(.*?)\\s*```$")

// Result is the bridge envelope. Success results carry GeneratedQuery,
// ExecutionResult and ModelUsed; failures carry Error and Step.
type Result struct {
	Success         bool               `json:"success"`
	UserInput       string             `json:"user_input"`
	GeneratedQuery  string             `json:"generated_query,omitempty"`
	ExecutionResult *graph.QueryResult `json:"execution_result,omitempty"`
	ModelUsed       string             `json:"model_used,omitempty"`
	Error           string             `json:"error,omitempty"`
	Step            Step               `json:"step,omitempty"`
}

// QueryExecutor runs a statement; *graph.Executor satisfies it
type QueryExecutor interface {
	Execute(ctx context.Context, stmt graph.Statement) graph.QueryResult
}

// Recorder receives every attempt; *audit.Store satisfies it
type Recorder interface {
	Append(ctx context.Context, rec audit.GenerationRecord) error
}

// Options tune the completion request and execution
type Options struct {
	Temperature float64
	MaxTokens   int
	// ReadOnly executes generated statements in read transactions so the
	// database refuses writes.
	ReadOnly bool
}

// Bridge turns natural-language requests into executed Cypher
type Bridge struct {
	executor  QueryExecutor
	completer llm.Completer
	recorder  Recorder
	schema    *Schema
	opts      Options
	logger    *slog.Logger
}

// NewBridge wires the bridge. completer is nil when the LLM client could not
// be constructed at startup; every request then fails with service_check.
func NewBridge(executor QueryExecutor, completer llm.Completer, schema *Schema, opts Options, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.1
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 500
	}
	return &Bridge{
		executor:  executor,
		completer: completer,
		schema:    schema,
		opts:      opts,
		logger:    logger.With("component", "nl2cypher"),
	}
}

// WithRecorder attaches an audit recorder
func (b *Bridge) WithRecorder(r Recorder) *Bridge {
	b.recorder = r
	return b
}

// Available reports whether an LLM client is wired in
func (b *Bridge) Available() bool {
	return b.completer != nil
}

// GenerateAndRun asks the model for a statement and executes it verbatim.
// The keyword check is the only validation applied to the generated text.
func (b *Bridge) GenerateAndRun(ctx context.Context, userText string) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("nl2cypher panic", "panic", r)
			result = b.fail(userText, StepGeneralError, fmt.Sprintf("internal error: %v", r))
		}
		b.record(ctx, result)
	}()

	if strings.TrimSpace(userText) == "" {
		return b.fail(userText, StepValidation, "user input cannot be empty")
	}

	if b.completer == nil {
		return b.fail(userText, StepServiceCheck, "AI service is not available")
	}

	generated, err := b.completer.Complete(ctx, llm.CompletionRequest{
		System:      b.schema.SystemPrompt(),
		User:        userText,
		Temperature: b.opts.Temperature,
		MaxTokens:   b.opts.MaxTokens,
	})
	if err != nil {
		return b.fail(userText, StepAIGeneration, fmt.Sprintf("failed to generate Cypher: %v", err))
	}

	statement := CleanStatement(generated)
	if !HasKeyword(statement) {
		r := b.fail(userText, StepAIGeneration, "generated text is not a valid Cypher statement")
		r.GeneratedQuery = statement
		return r
	}

	b.logger.Info("generated cypher",
		"input_length", len(userText),
		"statement", statement,
		"read_only", b.opts.ReadOnly)

	mode := graph.AccessModeWrite
	if b.opts.ReadOnly {
		mode = graph.AccessModeRead
	}
	execResult := b.executor.Execute(ctx, graph.Statement{
		Text:      statement,
		Params:    map[string]any{},
		Mode:      mode,
		Operation: graph.OpGenerated,
	})

	return Result{
		Success:         true,
		UserInput:       userText,
		GeneratedQuery:  statement,
		ExecutionResult: &execResult,
		ModelUsed:       b.completer.Model(),
	}
}

func (b *Bridge) fail(userText string, step Step, msg string) Result {
	b.logger.Warn("nl2cypher failed", "step", step, "error", msg)
	return Result{
		Success:   false,
		UserInput: userText,
		Error:     msg,
		Step:      step,
	}
}

// record appends the attempt to the audit log. Failures are logged only.
func (b *Bridge) record(ctx context.Context, r Result) {
	if b.recorder == nil {
		return
	}

	rec := audit.GenerationRecord{
		UserInput:      r.UserInput,
		GeneratedQuery: r.GeneratedQuery,
		Model:          r.ModelUsed,
		Success:        r.Success && r.ExecutionResult != nil && r.ExecutionResult.Success,
		Step:           string(r.Step),
		Error:          r.Error,
	}
	if rec.Model == "" && b.completer != nil {
		rec.Model = b.completer.Model()
	}
	if r.ExecutionResult != nil && !r.ExecutionResult.Success {
		rec.Error = r.ExecutionResult.Error
	}

	if err := b.recorder.Append(context.WithoutCancel(ctx), rec); err != nil {
		b.logger.Warn("failed to record generation", "error", err)
	}
}

// CleanStatement trims whitespace and a surrounding markdown code fence
func CleanStatement(text string) string {
	text = strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// HasKeyword reports whether text contains MATCH, CREATE, MERGE or RETURN, ignoring case
func HasKeyword(text string) bool {
	upper := strings.ToUpper(text)
	for _, kw := range keywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}
