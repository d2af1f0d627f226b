package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/scholargraph/internal/audit"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent natural-language generations from the audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.AI.AuditPath == "" {
			return fmt.Errorf("audit log is disabled (set ai.audit_path or AI_AUDIT_PATH)")
		}

		store, err := audit.Open(cfg.AI.AuditPath, slog.Default())
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.Recent(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), records)
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of records to show")
}
