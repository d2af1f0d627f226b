package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/scholargraph/internal/config"
)

var askReadOnly bool

var askCmd = &cobra.Command{
	Use:   "ask <request>",
	Short: "Turn a natural-language request into Cypher and run it",
	Long: `Ask the configured LLM for a Cypher statement matching the request,
execute it against Neo4j and print the result envelope.

Generated statements run with write access unless --read-only (or
ai.read_only in the config) is set.`,
	Example: `  scholargraph ask "Add a student Zhang San who is a master's student"
  scholargraph ask --read-only "Which scholars collaborate with Li Hua?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askReadOnly, "read-only", false, "execute the generated statement in a read transaction")
}

func runAsk(cmd *cobra.Command, args []string) error {
	if askReadOnly {
		cfg.AI.ReadOnly = true
	}
	if err := validate(config.ValidationContextAsk); err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, llmRequired)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	result := a.bridge.GenerateAndRun(ctx, strings.Join(args, " "))
	if err := printJSON(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("%s failed: %s", result.Step, result.Error)
	}
	return nil
}
