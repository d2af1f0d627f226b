package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/scholargraph/internal/config"
	"github.com/rohankatakam/scholargraph/internal/graph"
)

var (
	cypherParams   string
	cypherReadOnly bool
)

var cypherCmd = &cobra.Command{
	Use:   "cypher <statement>",
	Short: "Execute a Cypher statement and print the normalized result",
	Example: `  scholargraph cypher "MATCH (s:Scholar) RETURN s LIMIT 5"
  scholargraph cypher "MATCH (s:Scholar {name: \$name}) RETURN s" --params '{"name":"Li Hua"}'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCypher,
}

func init() {
	cypherCmd.Flags().StringVar(&cypherParams, "params", "", "statement parameters as a JSON object")
	cypherCmd.Flags().BoolVar(&cypherReadOnly, "read-only", false, "run in a read transaction so writes are refused")
}

func runCypher(cmd *cobra.Command, args []string) error {
	if err := validate(config.ValidationContextCypher); err != nil {
		return err
	}

	params, err := parseParams(cypherParams)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, llmSkip)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	statement := strings.Join(args, " ")
	var result graph.QueryResult
	if cypherReadOnly {
		result = a.executor.ExecuteReadOnly(ctx, statement, params)
	} else {
		result = a.executor.ExecuteQuery(ctx, statement, params)
	}

	if err := printJSON(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("statement failed: %s", result.Error)
	}
	return nil
}

func parseParams(raw string) (map[string]any, error) {
	params, err := graph.DecodeParams([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid --params: %w", err)
	}
	return params, nil
}
