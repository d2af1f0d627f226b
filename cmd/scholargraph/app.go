package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/rohankatakam/scholargraph/internal/api"
	"github.com/rohankatakam/scholargraph/internal/audit"
	"github.com/rohankatakam/scholargraph/internal/config"
	"github.com/rohankatakam/scholargraph/internal/extraction"
	"github.com/rohankatakam/scholargraph/internal/graph"
	"github.com/rohankatakam/scholargraph/internal/llm"
	"github.com/rohankatakam/scholargraph/internal/logging"
	"github.com/rohankatakam/scholargraph/internal/nl2cypher"
)

// llmMode controls how an LLM construction failure is treated
type llmMode int

const (
	llmSkip     llmMode = iota // no LLM client
	llmOptional                // failure leaves the bridge unavailable
	llmRequired                // failure aborts startup
)

// app holds the services shared by every command. Each service is
// constructed once here and passed down explicitly.
type app struct {
	cfg       *config.Config
	neo4j     *graph.Client
	executor  *graph.Executor
	projector *graph.Projector
	extractor *extraction.Extractor
	llm       *llm.Client
	bridge    *nl2cypher.Bridge
	audit     *audit.Store
	logger    *slog.Logger
}

func newApp(ctx context.Context, cfg *config.Config, mode llmMode) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logging.Component("app"),
	}

	client, err := graph.NewClient(cfg.Neo4j, slog.Default())
	if err != nil {
		return nil, err
	}
	a.neo4j = client
	a.executor = graph.NewExecutor(client, slog.Default())
	a.projector = graph.NewProjector(client, slog.Default())
	a.extractor = extraction.NewExtractor(slog.Default())

	if mode == llmSkip {
		return a, nil
	}

	if cfg.AI.AuditPath != "" {
		store, err := audit.Open(cfg.AI.AuditPath, slog.Default())
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.audit = store
	}

	schema, err := nl2cypher.LoadSchema(cfg.AI.SchemaFile)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	var completer llm.Completer
	llmClient, err := llm.NewClient(ctx, cfg.LLM, slog.Default())
	switch {
	case err == nil:
		a.llm = llmClient
		completer = llmClient
	case mode == llmRequired:
		a.Close(ctx)
		return nil, err
	default:
		logger.WithError(err).Warn("AI service unavailable; /ai-cypher will answer service_check")
	}

	a.bridge = nl2cypher.NewBridge(a.executor, completer, schema, nl2cypher.Options{
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		ReadOnly:    cfg.AI.ReadOnly,
	}, slog.Default())
	if a.audit != nil {
		a.bridge.WithRecorder(a.audit)
	}

	return a, nil
}

// routerDeps wires the HTTP handlers to the shared services
func (a *app) routerDeps() api.Dependencies {
	deps := api.Dependencies{
		Queries:   a.executor,
		Graphs:    a.projector,
		AI:        a.bridge,
		Extractor: a.extractor,
		Limits: api.Limits{
			DefaultNodeLimit: a.cfg.Graph.DefaultNodeLimit,
			MaxNodeLimit:     a.cfg.Graph.MaxNodeLimit,
		},
		Prefix:         a.cfg.HTTP.Prefix,
		AllowedOrigins: a.cfg.HTTP.AllowedOrigins,
		Debug:          a.cfg.HTTP.Debug,
	}
	if a.audit != nil {
		deps.History = a.audit
	}
	return deps
}

// Close releases every service that was opened
func (a *app) Close(ctx context.Context) {
	if a.llm != nil {
		if err := a.llm.Close(); err != nil {
			a.logger.Warn("failed to close llm client", "error", err)
		}
	}
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			a.logger.Warn("failed to close audit log", "error", err)
		}
	}
	if a.neo4j != nil {
		if err := a.neo4j.Close(ctx); err != nil {
			a.logger.Warn("failed to close neo4j driver", "error", err)
		}
	}
}

// validate runs config validation for a command and logs warnings
func validate(vctx config.ValidationContext) error {
	result := cfg.Validate(vctx)
	for _, w := range result.Warnings {
		logger.Warn(w)
	}
	return result.AsError()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
